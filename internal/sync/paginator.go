package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhaugan/catsync/internal/api"
)

// DefaultMaxPages bounds a paginated fetch when no explicit limit is set.
const DefaultMaxPages = 1000

// Paginator fetches every page of a cursor-paginated entity query and
// returns the concatenated records in server order.
type Paginator struct {
	Client Executor
	// MaxPages bounds the number of page requests, so that a server that
	// keeps answering hasNextPage=true cannot loop the fetch forever.
	// [optional] 0 means DefaultMaxPages; negative means no bound.
	MaxPages int
}

// FetchAll pages through q until the server reports no further pages.
// The query document must declare an $endCursor variable; the first page
// is requested with a null cursor.
func (p *Paginator) FetchAll(ctx context.Context, q EntityQuery) ([]api.Entity, error) {
	if !q.Doc.HasVariable("endCursor") {
		return nil, fmt.Errorf("query %s does not declare $endCursor", q.Doc.Name)
	}
	maxPages := p.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	var all []api.Entity
	var cursor any
	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			return nil, fmt.Errorf("%s: giving up after %d pages with the server still reporting more", q.Doc.Name, maxPages)
		}
		resp, err := p.Client.Execute(ctx, q.Doc, map[string]any{"endCursor": cursor})
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", q.Doc.Name, err)
		}
		conn, err := decodeConnection(resp.Data, q.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Doc.Name, err)
		}
		all = append(all, conn.Nodes...)
		if !conn.PageInfo.HasNextPage {
			return all, nil
		}
		if conn.PageInfo.EndCursor != nil {
			cursor = *conn.PageInfo.EndCursor
		} else {
			cursor = nil
		}
	}
}

// decodeConnection walks path into the response data and decodes the
// entity connection found there.
func decodeConnection(data json.RawMessage, path []string) (*api.Connection, error) {
	cur := data
	for i, key := range path {
		if len(cur) == 0 || string(cur) == "null" {
			return nil, fmt.Errorf("response is missing %q", strings.Join(path[:i+1], "."))
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(cur, &m); err != nil {
			return nil, fmt.Errorf("unexpected response shape at %q: %w", strings.Join(path[:i+1], "."), err)
		}
		next, ok := m[key]
		if !ok {
			return nil, fmt.Errorf("response is missing %q", strings.Join(path[:i+1], "."))
		}
		cur = next
	}
	if len(cur) == 0 || string(cur) == "null" {
		return nil, fmt.Errorf("response is missing %q", strings.Join(path, "."))
	}
	var conn api.Connection
	if err := json.Unmarshal(cur, &conn); err != nil {
		return nil, fmt.Errorf("decoding %q connection: %w", strings.Join(path, "."), err)
	}
	return &conn, nil
}
