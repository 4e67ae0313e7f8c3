package filter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jhaugan/catsync/internal/api"
)

// regexCacheSize bounds the number of compiled regular expressions kept
// per evaluator.
const regexCacheSize = 256

// Evaluator holds a compiled filter expression and provides methods to match it against records.
// It caches compiled regular expressions for performance.
type Evaluator struct {
	expr       Expression
	regexCache *lru.Cache[string, *regexp.Regexp]
}

// NewEvaluator creates a new Evaluator for the given expression AST.
func NewEvaluator(expr Expression) *Evaluator {
	// lru.New fails only for non-positive sizes.
	cache, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	return &Evaluator{
		expr:       expr,
		regexCache: cache,
	}
}

// Compile parses input and returns an Evaluator for the resulting expression.
func Compile(input string) (*Evaluator, error) {
	expr, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(expr), nil
}

// String returns the canonical form of the compiled expression.
func (ev *Evaluator) String() string {
	return ev.expr.String()
}

// fulltextAccessor collects all scalar leaf values of the JSON object the
// record was decoded from. Tag keys are field values on the wire, so they
// are included without further work. Records constructed in memory carry
// no raw JSON and are marshaled first.
func fulltextAccessor(kind api.Kind, e *api.Entity) ([]string, bool) {
	raw, err := e.RawJSON()
	if err != nil {
		return nil, false
	}
	values, err := collectLeafValues(raw)
	if err != nil {
		return nil, false
	}
	return values, true
}

// attributeAccessor defines a function that extracts specific string attribute values from a record.
// It returns a slice of strings and a boolean indicating if the attribute is applicable.
// The record's kind is passed in, since records do not carry it themselves.
type attributeAccessor func(kind api.Kind, e *api.Entity) (values []string, ok bool)

// attributeAccessors maps filter attribute names to functions that can retrieve them from a record.
var attributeAccessors = map[string]attributeAccessor{
	"*":    fulltextAccessor,
	"id":   func(kind api.Kind, e *api.Entity) ([]string, bool) { return []string{e.ID}, true },
	"kind": func(kind api.Kind, e *api.Entity) ([]string, bool) { return []string{kind.String()}, true },
	"name": func(kind api.Kind, e *api.Entity) ([]string, bool) { return []string{e.Name}, true },
	"description": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		return []string{e.Description}, true
	},
	"alias": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		// AllAliases includes the name, which is the alias base for
		// conversions.
		return e.AllAliases(), true
	},
	"owner": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		o := e.Owner
		if o == nil {
			return nil, false // No owner
		}
		var values []string
		for _, v := range []string{o.ID, o.Name, o.Alias} {
			if v != "" {
				values = append(values, v)
			}
		}
		return values, true
	},
	"tag": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		if e.Tags == nil {
			return nil, true
		}
		// Tags match in their key:value form, so both "tag:tier" and
		// "tag:'tier:1'" hit a {tier, 1} tag.
		values := make([]string, 0, len(e.Tags.Nodes))
		for _, t := range e.Tags.Nodes {
			values = append(values, t.Key+":"+t.Value)
		}
		return values, true
	},
	"note": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		if e.Note == "" {
			return nil, false
		}
		return []string{e.Note}, true
	},
	"child": func(kind api.Kind, e *api.Entity) ([]string, bool) {
		children := e.Children()
		if len(children) == 0 {
			return nil, false
		}
		var values []string
		for _, c := range children {
			if c.Name != "" {
				values = append(values, c.Name)
			}
			values = append(values, c.Aliases...)
			values = append(values, c.ManagedAliases...)
		}
		return values, true
	},
}

// Matches returns true if the record matches the expression held by the Evaluator.
func (ev *Evaluator) Matches(kind api.Kind, e *api.Entity) (bool, error) {
	return ev.evaluateNode(kind, e, ev.expr)
}

// evaluateNode recursively walks the expression tree.
func (ev *Evaluator) evaluateNode(kind api.Kind, e *api.Entity, expr Expression) (bool, error) {
	switch v := expr.(type) {
	case *Term:
		// A bare term full-text matches any leaf value of the record.
		values, ok := fulltextAccessor(kind, e)
		if !ok {
			return false, nil
		}
		needle := strings.ToLower(v.Value)
		for _, value := range values {
			if strings.Contains(strings.ToLower(value), needle) {
				return true, nil
			}
		}
		return false, nil

	case *AttributeTerm:
		attr := strings.ToLower(v.Attribute)
		accessor, ok := attributeAccessors[attr]
		if !ok {
			return false, fmt.Errorf("unknown attribute for filtering: %s", v.Attribute)
		}

		values, ok := accessor(kind, e)
		if !ok {
			// Attribute is not applicable to this record.
			return false, nil
		}

		// Check if any of the returned values match the filter value.
		for _, value := range values {
			matches, err := ev.matchesOperator(value, v.Operator, v.Value)
			if err != nil {
				return false, err
			}
			if matches {
				return true, nil
			}
		}
		return false, nil

	case *NotExpression:
		matches, err := ev.evaluateNode(kind, e, v.Expression)
		if err != nil {
			return false, err
		}
		return !matches, nil

	case *BinaryExpression:
		leftMatches, err := ev.evaluateNode(kind, e, v.Left)
		if err != nil {
			return false, err
		}

		if v.Operator == "AND" {
			if !leftMatches {
				return false, nil
			}
			return ev.evaluateNode(kind, e, v.Right)
		}

		if v.Operator == "OR" {
			if leftMatches {
				return true, nil
			}
			return ev.evaluateNode(kind, e, v.Right)
		}
	}

	return false, fmt.Errorf("unsupported expression type")
}

// matchesOperator performs the actual string comparison based on the operator.
func (ev *Evaluator) matchesOperator(recordValue, operator, filterValue string) (bool, error) {
	switch operator {
	case ":":
		return strings.Contains(strings.ToLower(recordValue), strings.ToLower(filterValue)), nil
	case "~":
		re, found := ev.regexCache.Get(filterValue)
		if !found {
			var err error
			re, err = regexp.Compile("(?i)" + filterValue) // (?i) for case-insensitivity
			if err != nil {
				return false, fmt.Errorf("invalid regular expression %q: %w", filterValue, err)
			}
			ev.regexCache.Add(filterValue, re)
		}

		return re.MatchString(recordValue), nil
	default:
		return false, nil
	}
}

// collectLeafValues walks a JSON document and returns all scalar leaf
// values. Object keys are ignored; only object values are traversed.
// Null leaves are skipped.
func collectLeafValues(raw json.RawMessage) ([]string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make([]string, 0, 16)

	var walk func(v any)
	walk = func(v any) {
		switch n := v.(type) {
		case map[string]any:
			for _, c := range n {
				walk(c)
			}
		case []any:
			for _, c := range n {
				walk(c)
			}
		case string:
			out = append(out, n)
		case float64:
			out = append(out, strconv.FormatFloat(n, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(n))
		}
	}

	walk(doc)
	return out, nil
}
