package graphql

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Document is a parsed GraphQL query or mutation. Parsing happens once at
// program start, so a malformed document is caught before any request is
// made, and the operation name is available for logs and error messages.
type Document struct {
	// The operation name declared in the document, e.g. "get_all_systems".
	Name string
	// The kind of operation: "query" or "mutation".
	Operation string
	// The raw GraphQL source sent to the server.
	Source string

	variables map[string]bool
}

// ParseDocument parses source as an executable GraphQL document containing
// exactly one named operation.
func ParseDocument(source string) (*Document, error) {
	qd, perr := parser.ParseQuery(&ast.Source{Input: source})
	if perr != nil {
		return nil, fmt.Errorf("invalid graphql document: %w", perr)
	}
	if len(qd.Operations) != 1 {
		return nil, fmt.Errorf("graphql document must contain exactly one operation, got %d", len(qd.Operations))
	}
	op := qd.Operations[0]
	if op.Name == "" {
		return nil, fmt.Errorf("graphql operation must be named")
	}
	vars := make(map[string]bool, len(op.VariableDefinitions))
	for _, vd := range op.VariableDefinitions {
		vars[vd.Variable] = true
	}
	return &Document{
		Name:      op.Name,
		Operation: string(op.Operation),
		Source:    source,
		variables: vars,
	}, nil
}

// MustParseDocument is like ParseDocument but panics on error.
// For package-level document constants.
func MustParseDocument(source string) *Document {
	d, err := ParseDocument(source)
	if err != nil {
		panic(err)
	}
	return d
}

// HasVariable reports whether the document declares the given variable.
func (d *Document) HasVariable(name string) bool {
	return d.variables[name]
}
