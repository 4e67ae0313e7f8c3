// This file contains the wire types for entities returned by the catalog's
// GraphQL API. The shapes mirror the JSON of the entity queries; decoded
// entities retain the raw server bytes so that snapshots persist exactly
// what the server returned.
package api

import (
	"encoding/json"
	"strings"
)

// Kind identifies the hierarchy level of a catalog entity.
type Kind string

const (
	KindDomain  Kind = "domain"
	KindSystem  Kind = "system"
	KindService Kind = "service"
)

func (k Kind) String() string { return string(k) }

// SourceInfo holds internal bookkeeping data shared by all decoded entities.
// It is used for error messages and to reconstruct the exact server JSON
// when writing snapshots.
type SourceInfo struct {
	Raw  json.RawMessage // The raw JSON object the entity was decoded from.
	Path string          // The snapshot path the entity was read from, if any.
}

// Team identifies the team that owns an entity.
type Team struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// Tag is a key/value pair attached to an entity.
type Tag struct {
	ID    string `json:"id,omitempty"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// TagList mirrors the connection shape in which tags are returned.
type TagList struct {
	Nodes []Tag `json:"nodes,omitempty"`
}

// ChildRef identifies a child entity inside a child connection.
// Only the domain query returns alias lists for children.
type ChildRef struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
	ManagedAliases []string `json:"managedAliases,omitempty"`
}

// ChildList mirrors the connection shape in which child entities are returned.
type ChildList struct {
	Nodes []ChildRef `json:"nodes,omitempty"`
}

// ParentRef identifies the parent of a system.
type ParentRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Entity is one catalog record as returned by the entity queries.
// Domains and systems share the shape; fields that only one kind carries
// (parent, the child connections) are simply absent on the other.
type Entity struct {
	// The server-assigned identifier. Immutable once created.
	ID string `json:"id,omitempty"`
	// The human-readable name, used as the alias base for conversions.
	Name string `json:"name,omitempty"`
	// [optional]
	Description string `json:"description,omitempty"`
	// Alias forms under which the entity can be addressed.
	// [optional]
	Aliases []string `json:"aliases,omitempty"`
	// [optional]
	ManagedAliases []string `json:"managedAliases,omitempty"`
	// [optional]
	Owner *Team `json:"owner,omitempty"`
	// [optional]
	Tags *TagList `json:"tags,omitempty"`
	// The parent system or domain. Systems only.
	// [optional]
	Parent *ParentRef `json:"parent,omitempty"`
	// [optional]
	ChildSystems *ChildList `json:"childSystems,omitempty"`
	// [optional]
	ChildServices *ChildList `json:"childServices,omitempty"`
	// [optional]
	ChildInfrastructureResources *ChildList `json:"childInfrastructureResources,omitempty"`
	// [optional]
	Note string `json:"note,omitempty"`

	// Internal bookkeeping data, not part of the API.
	*SourceInfo `json:"-"`
}

// UnmarshalJSON decodes the entity and records the raw bytes in SourceInfo.
func (e *Entity) UnmarshalJSON(data []byte) error {
	// Alias type without methods to avoid unmarshal recursion.
	type entity Entity
	var x entity
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	*e = Entity(x)
	e.SourceInfo = &SourceInfo{Raw: append(json.RawMessage(nil), data...)}
	return nil
}

// RawJSON returns the exact JSON object the entity was decoded from.
// Entities constructed in memory (no source info) are marshaled instead.
func (e *Entity) RawJSON() (json.RawMessage, error) {
	if e.SourceInfo != nil && len(e.SourceInfo.Raw) > 0 {
		return e.SourceInfo.Raw, nil
	}
	return json.Marshal(e)
}

// OwnerID returns the id of the owning team, or "" for unowned entities.
func (e *Entity) OwnerID() string {
	if e.Owner == nil {
		return ""
	}
	return e.Owner.ID
}

// AllAliases returns the name followed by every alias form of the entity.
func (e *Entity) AllAliases() []string {
	as := make([]string, 0, 1+len(e.Aliases)+len(e.ManagedAliases))
	if e.Name != "" {
		as = append(as, e.Name)
	}
	as = append(as, e.Aliases...)
	as = append(as, e.ManagedAliases...)
	return as
}

// HasAlias reports whether s matches the entity's name or any of its
// aliases. Matching ignores case: aliases are server-normalized to lower
// case while names usually are not.
func (e *Entity) HasAlias(s string) bool {
	for _, a := range e.AllAliases() {
		if strings.EqualFold(a, s) {
			return true
		}
	}
	return false
}

// Children returns all child references in server order: child systems,
// then child services, then child infrastructure resources.
func (e *Entity) Children() []ChildRef {
	var cs []ChildRef
	for _, l := range []*ChildList{e.ChildSystems, e.ChildServices, e.ChildInfrastructureResources} {
		if l != nil {
			cs = append(cs, l.Nodes...)
		}
	}
	return cs
}

// TagValue returns the value of the first tag with the given key and
// whether such a tag exists.
func (e *Entity) TagValue(key string) (string, bool) {
	if e.Tags == nil {
		return "", false
	}
	for _, t := range e.Tags.Nodes {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// PageInfo is the pagination envelope returned with every connection.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Connection is the {nodes, pageInfo} shape in which entity lists are
// returned. TotalCount is only selected by some queries.
type Connection struct {
	Nodes      []Entity `json:"nodes"`
	PageInfo   PageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount,omitempty"`
}

// IdentifierInput addresses an entity in mutation input, either by server
// id or by alias. Exactly one field should be set.
type IdentifierInput struct {
	ID    string `json:"id,omitempty"`
	Alias string `json:"alias,omitempty"`
}
