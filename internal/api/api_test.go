package api

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const domainNode = `{
    "id": "D1",
    "name": "Payments",
    "description": "Payment processing",
    "aliases": ["payments"],
    "managedAliases": ["payments_domain"],
    "owner": {"id": "T1", "name": "Payments Team", "alias": "payments-team"},
    "tags": {"nodes": [{"id": "G1", "key": "env", "value": "prod"}]},
    "childSystems": {"nodes": [
        {"id": "S1", "name": "Checkout", "aliases": ["checkout"]},
        {"id": "S2", "name": "Billing"}
    ]},
    "note": "migrated"
}`

func TestEntityUnmarshalJSON(t *testing.T) {
	var got Entity
	if err := json.Unmarshal([]byte(domainNode), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := Entity{
		ID:             "D1",
		Name:           "Payments",
		Description:    "Payment processing",
		Aliases:        []string{"payments"},
		ManagedAliases: []string{"payments_domain"},
		Owner:          &Team{ID: "T1", Name: "Payments Team", Alias: "payments-team"},
		Tags:           &TagList{Nodes: []Tag{{ID: "G1", Key: "env", Value: "prod"}}},
		ChildSystems: &ChildList{Nodes: []ChildRef{
			{ID: "S1", Name: "Checkout", Aliases: []string{"checkout"}},
			{ID: "S2", Name: "Billing"},
		}},
		Note: "migrated",
	}
	opts := []cmp.Option{
		cmpopts.IgnoreFields(Entity{}, "SourceInfo"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("Entity mismatch (-want +got):\n%s", diff)
	}
	if got.SourceInfo == nil || len(got.SourceInfo.Raw) == 0 {
		t.Fatal("expected raw source bytes to be retained")
	}
	// The retained bytes must be the input, not a re-marshaled form.
	var wantRaw, gotRaw any
	if err := json.Unmarshal([]byte(domainNode), &wantRaw); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(got.SourceInfo.Raw, &gotRaw); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantRaw, gotRaw); diff != "" {
		t.Errorf("raw bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityRawJSON(t *testing.T) {
	var decoded Entity
	if err := json.Unmarshal([]byte(`{"id":"S1","name":"Checkout","unknownField":42}`), &decoded); err != nil {
		t.Fatal(err)
	}
	raw, err := decoded.RawJSON()
	if err != nil {
		t.Fatalf("RawJSON failed: %v", err)
	}
	// Fields the struct does not model survive the round trip.
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["unknownField"]; !ok {
		t.Error("expected unknownField to be preserved in raw JSON")
	}

	// In-memory entities fall back to marshaling.
	mem := Entity{ID: "S2", Name: "Billing"}
	raw, err = mem.RawJSON()
	if err != nil {
		t.Fatalf("RawJSON failed: %v", err)
	}
	if want := `{"id":"S2","name":"Billing"}`; string(raw) != want {
		t.Errorf("RawJSON = %s, want %s", raw, want)
	}
}

func TestEntityHasAlias(t *testing.T) {
	e := Entity{
		Name:           "Checkout",
		Aliases:        []string{"checkout"},
		ManagedAliases: []string{"checkout_system"},
	}
	tests := []struct {
		alias string
		want  bool
	}{
		{"Checkout", true},
		{"checkout", true},
		{"CHECKOUT_SYSTEM", true},
		{"billing", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := e.HasAlias(tc.alias); got != tc.want {
			t.Errorf("HasAlias(%q) = %v, want %v", tc.alias, got, tc.want)
		}
	}
}

func TestEntityChildren(t *testing.T) {
	e := Entity{
		ChildSystems:                 &ChildList{Nodes: []ChildRef{{ID: "S1", Name: "Checkout"}}},
		ChildServices:                &ChildList{Nodes: []ChildRef{{ID: "V1", Name: "checkout-api"}}},
		ChildInfrastructureResources: &ChildList{Nodes: []ChildRef{{ID: "R1", Name: "checkout-db"}}},
	}
	want := []ChildRef{
		{ID: "S1", Name: "Checkout"},
		{ID: "V1", Name: "checkout-api"},
		{ID: "R1", Name: "checkout-db"},
	}
	if diff := cmp.Diff(want, e.Children()); diff != "" {
		t.Errorf("Children mismatch (-want +got):\n%s", diff)
	}
	if got := (&Entity{}).Children(); len(got) != 0 {
		t.Errorf("Children of empty entity = %v, want none", got)
	}
}

func TestEntityOwnerID(t *testing.T) {
	if got := (&Entity{}).OwnerID(); got != "" {
		t.Errorf("OwnerID of unowned entity = %q, want empty", got)
	}
	e := Entity{Owner: &Team{ID: "T1"}}
	if got := e.OwnerID(); got != "T1" {
		t.Errorf("OwnerID = %q, want T1", got)
	}
}

func TestEntityTagValue(t *testing.T) {
	e := Entity{Tags: &TagList{Nodes: []Tag{
		{Key: "env", Value: "prod"},
		{Key: "tier", Value: "1"},
	}}}
	if v, ok := e.TagValue("tier"); !ok || v != "1" {
		t.Errorf("TagValue(tier) = %q, %v; want 1, true", v, ok)
	}
	if _, ok := e.TagValue("region"); ok {
		t.Error("TagValue(region) reported a match for a missing key")
	}
	if _, ok := (&Entity{}).TagValue("env"); ok {
		t.Error("TagValue on entity without tags reported a match")
	}
}
