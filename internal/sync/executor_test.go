package sync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jhaugan/catsync/internal/graphql"
)

// stubExecutor replays canned responses in order and records every call,
// so tests can assert on the exact operations and variables sent.
type stubExecutor struct {
	t         *testing.T
	responses []stubResponse
	calls     []stubCall
}

type stubCall struct {
	op   string
	vars map[string]any
}

type stubResponse struct {
	data string
	errs []graphql.Error
	err  error
}

func (s *stubExecutor) Execute(ctx context.Context, doc *graphql.Document, vars map[string]any) (*graphql.Response, error) {
	s.calls = append(s.calls, stubCall{op: doc.Name, vars: vars})
	if len(s.responses) == 0 {
		s.t.Fatalf("unexpected call to %s (all %d canned responses consumed)", doc.Name, len(s.calls)-1)
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &graphql.Response{Data: json.RawMessage(r.data), Errors: r.errs}, nil
}

func (s *stubExecutor) cursorsSent() []any {
	var cs []any
	for _, c := range s.calls {
		cs = append(cs, c.vars["endCursor"])
	}
	return cs
}
