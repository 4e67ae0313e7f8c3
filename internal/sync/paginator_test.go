package sync

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jhaugan/catsync/internal/graphql"
)

func systemsPage(nodes string, cursor string, hasNext bool) string {
	pageInfo := `{"endCursor": null, "hasNextPage": false}`
	if hasNext {
		pageInfo = `{"endCursor": "` + cursor + `", "hasNextPage": true}`
	}
	return `{"account": {"systems": {"nodes": [` + nodes + `], "pageInfo": ` + pageInfo + `}}}`
}

func TestFetchAll(t *testing.T) {
	stub := &stubExecutor{t: t, responses: []stubResponse{
		{data: systemsPage(`{"id": "S1"}, {"id": "S2"}`, "c1", true)},
		{data: systemsPage(`{"id": "S3"}, {"id": "S4"}`, "c2", true)},
		{data: systemsPage(`{"id": "S5"}`, "", false)},
	}}
	p := &Paginator{Client: stub}
	got, err := p.FetchAll(context.Background(), SystemsQuery)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	// All pages concatenated, server order preserved.
	if diff := cmp.Diff([]string{"S1", "S2", "S3", "S4", "S5"}, ids); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	// First request carries a null cursor, then the server-issued ones.
	if diff := cmp.Diff([]any{nil, "c1", "c2"}, stub.cursorsSent()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	stub := &stubExecutor{t: t, responses: []stubResponse{
		{data: systemsPage(``, "", false)},
	}}
	p := &Paginator{Client: stub}
	got, err := p.FetchAll(context.Background(), SystemsQuery)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want none", len(got))
	}
}

func TestFetchAllMaxPages(t *testing.T) {
	page := systemsPage(`{"id": "S1"}`, "again", true)
	stub := &stubExecutor{t: t, responses: []stubResponse{
		{data: page}, {data: page}, {data: page},
	}}
	p := &Paginator{Client: stub, MaxPages: 3}
	_, err := p.FetchAll(context.Background(), SystemsQuery)
	if err == nil {
		t.Fatal("FetchAll terminated on a server that always reports more pages")
	}
	if len(stub.calls) != 3 {
		t.Errorf("made %d requests, want 3", len(stub.calls))
	}
}

func TestFetchAllRequiresCursorVariable(t *testing.T) {
	q := EntityQuery{
		Doc:  graphql.MustParseDocument(`query no_cursor { account { systems { nodes { id } } } }`),
		Path: []string{"account", "systems"},
	}
	stub := &stubExecutor{t: t}
	p := &Paginator{Client: stub}
	if _, err := p.FetchAll(context.Background(), q); err == nil {
		t.Fatal("FetchAll accepted a query without $endCursor")
	}
	if len(stub.calls) != 0 {
		t.Errorf("made %d requests, want none", len(stub.calls))
	}
}

func TestFetchAllGraphQLErrors(t *testing.T) {
	stub := &stubExecutor{t: t, responses: []stubResponse{
		{data: `null`, errs: []graphql.Error{{Message: "not authorized"}}},
	}}
	p := &Paginator{Client: stub}
	_, err := p.FetchAll(context.Background(), SystemsQuery)
	if err == nil {
		t.Fatal("FetchAll ignored GraphQL-level errors")
	}
	if !strings.Contains(err.Error(), "get_all_systems") {
		t.Errorf("error %q does not name the operation", err)
	}
}

func TestFetchAllMissingPath(t *testing.T) {
	stub := &stubExecutor{t: t, responses: []stubResponse{
		{data: `{"account": {}}`},
	}}
	p := &Paginator{Client: stub}
	if _, err := p.FetchAll(context.Background(), SystemsQuery); err == nil {
		t.Fatal("FetchAll accepted a response without the record path")
	}
}
