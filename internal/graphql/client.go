// Package graphql implements the GraphQL-over-HTTP client used to talk to
// the catalog: one POST per request, bearer authentication, no retries.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request is the JSON body of a GraphQL HTTP request.
// Variables is always serialized, even when empty, to match what the
// server expects for parameterless operations.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Error is one GraphQL-level error entry from the response payload.
type Error struct {
	Message string `json:"message"`
	// Path elements are field names or list indices.
	Path []any `json:"path,omitempty"`
}

// Response is the parsed top-level GraphQL response object.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// Err returns an error describing the GraphQL-level errors carried in the
// response, or nil if there are none. Execute never calls this itself:
// a transport-level success with payload errors is the caller's to check.
func (r *Response) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return fmt.Errorf("graphql errors: %v", msgs)
}

// TransportError reports a non-2xx HTTP response from the endpoint.
// The raw response body is retained for the error message, since the
// server reports most failures (invalid token, malformed query) that way.
type TransportError struct {
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("catalog request failed with status %d: %s", e.StatusCode, e.Body)
}

// Options configures optional behavior of a Client.
type Options struct {
	// The HTTP client used for requests.
	// [optional] Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client executes GraphQL operations against a single catalog endpoint.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
}

// New returns a Client for the given endpoint. The bearer token is sent
// with every request; it is the caller's job to source it (typically from
// the environment) before constructing the client.
func New(endpoint, token string, opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpc:    httpc,
	}
}

// Execute sends the document with the given variables and returns the
// parsed top-level response. A nil vars map is sent as null, which the
// server treats like an empty variable set.
func (c *Client) Execute(ctx context.Context, doc *Document, vars map[string]any) (*Response, error) {
	body, err := json.Marshal(Request{Query: doc.Source, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", doc.Name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", doc.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", doc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: b}
	}
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", doc.Name, err)
	}
	return &r, nil
}
