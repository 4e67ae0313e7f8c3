package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhaugan/catsync/internal/api"
)

// DefaultServicePrefix is prepended to a system's name to form the alias
// of the service created from it. The prefix marks converted entities so
// they can be told apart from natively created services.
const DefaultServicePrefix = "SEARCH-"

// ConversionError reports a creation mutation that did not yield the
// expected created entity, typically because the server answered with
// validation errors instead of an entity.
type ConversionError struct {
	Op     string // operation name of the mutation
	Source string // name of the source entity being converted
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %q (%s): %s", e.Source, e.Op, e.Reason)
}

// ServiceConverter creates one service per source system.
type ServiceConverter struct {
	Client Executor
	// Prefix overrides DefaultServicePrefix for the created aliases.
	// [optional]
	Prefix string
}

// Variables returns the serviceCreate variables for source. The owner is
// carried over as an identifier input when present; an unowned source
// produces no ownerInput key at all.
func (c *ServiceConverter) Variables(source *api.Entity) map[string]any {
	vars := map[string]any{
		"alias":       c.prefix() + source.Name,
		"description": source.Description,
	}
	if id := source.OwnerID(); id != "" {
		vars["ownerInput"] = api.IdentifierInput{ID: id}
	}
	return vars
}

// Convert creates a service from the given system and returns the created
// service's id. No child-relationship edges are created here; that is the
// reconciler's job.
func (c *ServiceConverter) Convert(ctx context.Context, source *api.Entity) (string, error) {
	resp, err := c.Client.Execute(ctx, createServiceMutation, c.Variables(source))
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", &ConversionError{Op: createServiceMutation.Name, Source: source.Name, Reason: err.Error()}
	}
	res, err := decodeMutation(resp.Data, "serviceCreate")
	if err != nil {
		return "", &ConversionError{Op: createServiceMutation.Name, Source: source.Name, Reason: err.Error()}
	}
	if len(res.Errors) > 0 {
		return "", &ConversionError{Op: createServiceMutation.Name, Source: source.Name, Reason: res.Errors.join()}
	}
	if res.Service == nil || res.Service.ID == "" {
		return "", &ConversionError{Op: createServiceMutation.Name, Source: source.Name, Reason: "response lacks serviceCreate.service.id"}
	}
	return res.Service.ID, nil
}

func (c *ServiceConverter) prefix() string {
	if c.Prefix == "" {
		return DefaultServicePrefix
	}
	return c.Prefix
}

// TargetAlias returns the alias the service created from source will get.
func (c *ServiceConverter) TargetAlias(source *api.Entity) string {
	return c.prefix() + source.Name
}

// SystemConverter creates one system per source domain.
type SystemConverter struct {
	Client Executor
}

// Variables returns the systemCreate variables for source. Description and
// note default to empty strings; ownerId is omitted when the source has no
// owner.
func (c *SystemConverter) Variables(source *api.Entity) map[string]any {
	vars := map[string]any{
		"alias":       source.Name,
		"description": source.Description,
		"note":        source.Note,
	}
	if id := source.OwnerID(); id != "" {
		vars["ownerId"] = id
	}
	return vars
}

// Convert creates a system from the given domain and returns the new
// system's id extracted from the response.
func (c *SystemConverter) Convert(ctx context.Context, source *api.Entity) (string, error) {
	resp, err := c.Client.Execute(ctx, createSystemMutation, c.Variables(source))
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", &ConversionError{Op: createSystemMutation.Name, Source: source.Name, Reason: err.Error()}
	}
	res, err := decodeMutation(resp.Data, "systemCreate")
	if err != nil {
		return "", &ConversionError{Op: createSystemMutation.Name, Source: source.Name, Reason: err.Error()}
	}
	if res.System == nil || res.System.ID == "" {
		return "", &ConversionError{Op: createSystemMutation.Name, Source: source.Name, Reason: "response lacks systemCreate.system.id"}
	}
	return res.System.ID, nil
}

// TargetAlias returns the alias the system created from source will get.
func (c *SystemConverter) TargetAlias(source *api.Entity) string {
	return source.Name
}

// mutationResult is the shared response payload shape of the creation and
// assignment mutations. Only one of System/Service is present, depending
// on the mutation.
type mutationResult struct {
	System  *api.Entity    `json:"system"`
	Service *api.Entity    `json:"service"`
	Errors  mutationErrors `json:"errors"`
}

type mutationError struct {
	Message string   `json:"message"`
	Path    []string `json:"path"`
}

type mutationErrors []mutationError

func (errs mutationErrors) join() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Path) > 0 {
			msgs[i] = fmt.Sprintf("%s (at %s)", e.Message, strings.Join(e.Path, "."))
		} else {
			msgs[i] = e.Message
		}
	}
	return "server reported: " + strings.Join(msgs, "; ")
}

// decodeMutation extracts the named mutation payload from response data.
func decodeMutation(data json.RawMessage, field string) (*mutationResult, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, fmt.Errorf("response has no data")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unexpected response shape: %w", err)
	}
	raw, ok := m[field]
	if !ok || string(raw) == "null" {
		return nil, fmt.Errorf("response lacks %s", field)
	}
	var res mutationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", field, err)
	}
	return &res, nil
}
