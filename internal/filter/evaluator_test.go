package filter

import (
	"encoding/json"
	"testing"

	"github.com/jhaugan/catsync/internal/api"
)

func mustRecord(t *testing.T, data string) *api.Entity {
	t.Helper()
	var e api.Entity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("invalid test record: %v", err)
	}
	return &e
}

func TestEvaluator_Matches(t *testing.T) {
	// Decoded from JSON so that the raw bytes (including fields the struct
	// does not model, like legacyKey) are available for full-text search.
	sys := mustRecord(t, `{
		"id": "S1",
		"name": "Payment Processing",
		"description": "Clears card payments",
		"aliases": ["payment_processing"],
		"managedAliases": ["payments"],
		"owner": {"id": "T1", "name": "Platform Team", "alias": "platform"},
		"tags": {"nodes": [
			{"id": "TAG1", "key": "tier", "value": "1"},
			{"id": "TAG2", "key": "region", "value": "eu"}
		]},
		"childServices": {"nodes": [{"id": "V1", "name": "Card Gateway"}]},
		"legacyKey": "zephyr"
	}`)
	dom := mustRecord(t, `{
		"id": "D1",
		"name": "Payments",
		"aliases": ["payments_domain"],
		"note": "Migrated from the legacy catalog",
		"childSystems": {"nodes": [
			{"id": "S1", "name": "Payment Processing", "aliases": ["payment_processing"]}
		]}
	}`)
	bare := mustRecord(t, `{"id": "X1", "name": "Empty"}`)

	tests := []struct {
		name      string
		filter    string
		kind      api.Kind
		record    *api.Entity
		wantMatch bool
		wantErr   bool
	}{
		// Bare Term Matching (full text)
		{
			name:      "full-text match on description",
			filter:    "card",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "full-text match on raw-only field",
			filter:    "zephyr",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "full-text no match",
			filter:    "inventory",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "star attribute full-text match",
			filter:    "*:zephyr",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},

		// Attribute Matching (Operator ':')
		{
			name:      "id match",
			filter:    "id:S1",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "kind match",
			filter:    "kind:system",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "kind no match",
			filter:    "kind:domain",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "name contains match",
			filter:    "name:payment",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "alias match on managed alias",
			filter:    "alias:payments",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "owner alias match",
			filter:    "owner:platform",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "owner name match with quoted value",
			filter:    "owner:'platform team'",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "owner id match",
			filter:    "owner:T1",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "owner not applicable",
			filter:    "owner:platform",
			kind:      api.KindDomain,
			record:    dom,
			wantMatch: false,
		},
		{
			name:      "tag key match",
			filter:    "tag:tier",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "tag key-value match",
			filter:    "tag:'tier:1'",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "tag value match",
			filter:    "tag:eu",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "tag no match",
			filter:    "tag:prod",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "note match",
			filter:    "note:legacy",
			kind:      api.KindDomain,
			record:    dom,
			wantMatch: true,
		},
		{
			name:      "note not applicable",
			filter:    "note:legacy",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "description match",
			filter:    "description:'card payments'",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "child name match",
			filter:    "child:'card gateway'",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "child alias match",
			filter:    "child:payment_processing",
			kind:      api.KindDomain,
			record:    dom,
			wantMatch: true,
		},
		{
			name:      "child not applicable",
			filter:    "child:gateway",
			kind:      api.KindSystem,
			record:    bare,
			wantMatch: false,
		},

		// Regex Matching (Operator '~')
		{
			name:      "regex match",
			filter:    "name~^payment",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "regex no match",
			filter:    "name~^processing",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "regex matches owner id case-insensitively",
			filter:    "owner~^t1$",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},

		// Logical Operators
		{
			name:      "AND match",
			filter:    "owner:platform AND tag:tier",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "AND no match",
			filter:    "owner:platform AND tag:prod",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: false,
		},
		{
			name:      "OR match",
			filter:    "tag:prod OR tag:tier",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "NOT match",
			filter:    "!tag:prod",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "NOT keyword match",
			filter:    "NOT tag:prod",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "implicit AND of bare terms",
			filter:    "card zephyr",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},
		{
			name:      "complex filter with parentheses",
			filter:    "tag:tier AND (owner:legacy OR alias:payments)",
			kind:      api.KindSystem,
			record:    sys,
			wantMatch: true,
		},

		// Error Cases
		{
			name:    "unknown attribute",
			filter:  "foo:bar",
			kind:    api.KindSystem,
			record:  sys,
			wantErr: true,
		},
		{
			name:    "invalid regex",
			filter:  "name~[a-",
			kind:    api.KindSystem,
			record:  sys,
			wantErr: true, // This error surfaces during evaluation, not parsing
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.filter)
			if err != nil {
				if tt.wantErr {
					return // Expected parse error
				}
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}

			evaluator := NewEvaluator(expr)
			gotMatch, err := evaluator.Matches(tt.kind, tt.record)

			if (err != nil) != tt.wantErr {
				t.Errorf("Evaluator.Matches() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && gotMatch != tt.wantMatch {
				t.Errorf("Evaluator.Matches() = %v, want %v", gotMatch, tt.wantMatch)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	ev, err := Compile("tag:tier OR note:legacy")
	if err != nil {
		t.Fatalf("Compile() returned an unexpected error: %v", err)
	}
	if got, want := ev.String(), "(tag:tier OR note:legacy)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if _, err := Compile("tag:"); err == nil {
		t.Errorf("Compile() accepted an invalid filter")
	}
}
