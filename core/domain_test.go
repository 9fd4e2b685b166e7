package core

import (
	"encoding/json"
	"testing"
)

func TestNewSchemaIdentity(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		version int64
		wantErr bool
	}{
		{name: "standard measure", id: "omh:omh:step_count", version: 1},
		{name: "provider", id: "omh:fitbit:activity", version: 2},
		{name: "trimmed", id: "  omh:internal:steps ", version: 1},
		{name: "empty", id: "", version: 1, wantErr: true},
		{name: "wrong namespace", id: "abc:fitbit:activity", version: 1, wantErr: true},
		{name: "bad characters", id: "omh:fit bit:activity", version: 1, wantErr: true},
		{name: "zero version", id: "omh:omh:step_count", version: 0, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := NewSchemaIdentity(tc.id, tc.version)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.id)
				}
				if ErrorKind(err) != ErrorBadInput {
					t.Fatalf("expected bad input kind, got %q", ErrorKind(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("new identity: %v", err)
			}
			if identity.Version() != tc.version {
				t.Fatalf("expected version %d, got %d", tc.version, identity.Version())
			}
		})
	}
}

func TestParseDomainAndDataType(t *testing.T) {
	if got := ParseDomain("omh:fitbit:activity"); got != "fitbit" {
		t.Fatalf("expected fitbit, got %q", got)
	}
	if got := ParseDomain("omh:fitbit"); got != "" {
		t.Fatalf("expected empty domain for short id, got %q", got)
	}
	dataType, err := DataTypeFromSchemaID("omh:omh:step_count")
	if err != nil || dataType != "step_count" {
		t.Fatalf("expected step_count, got %q err=%v", dataType, err)
	}
	if _, err := DataTypeFromSchemaID("omh:omh"); err == nil {
		t.Fatalf("expected malformed id error")
	}
	if got := StandardMeasureID("heart_rate"); got != "omh:omh:heart_rate" {
		t.Fatalf("unexpected standard measure id %q", got)
	}
}

func TestDataPoint_WithOwnerCopies(t *testing.T) {
	original := testPoints("alice", "omh:internal:steps", 1, fixedTime())[0]
	moved := original.WithOwner("bob")
	if original.Owner != "alice" || moved.Owner != "bob" {
		t.Fatalf("expected owner copy, got original=%q moved=%q", original.Owner, moved.Owner)
	}
	moved.Payload[0] = '['
	if original.Payload[0] != '{' {
		t.Fatalf("expected payload to be copied")
	}
}

func TestColumnList_Normalize(t *testing.T) {
	got := ColumnList{" value ", "", "unit.name", "value", ".unit.system."}.Normalize()
	want := []string{"value", "unit.name", "unit.system"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if (ColumnList{" "}).Normalize() != nil {
		t.Fatalf("expected blank columns to normalize to nil")
	}
}

func TestProjectPayload(t *testing.T) {
	payload := json.RawMessage(`{"value":3,"unit":{"name":"count","system":"si"},"extra":true}`)
	projected, err := ProjectPayload(payload, ColumnList{"value", "unit.name", "missing"})
	if err != nil {
		t.Fatalf("project payload: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(projected, &decoded); err != nil {
		t.Fatalf("decode projection: %v", err)
	}
	if _, ok := decoded["extra"]; ok {
		t.Fatalf("expected extra to be dropped: %s", projected)
	}
	unit, ok := decoded["unit"].(map[string]any)
	if !ok || unit["name"] != "count" || unit["system"] != nil {
		t.Fatalf("unexpected nested projection: %s", projected)
	}
}

func TestAuthorizationGrant_Validate(t *testing.T) {
	if err := testGrant("alice", "fitbit").Validate(); err != nil {
		t.Fatalf("expected valid grant: %v", err)
	}
	if err := (AuthorizationGrant{Username: "alice", Domain: "fitbit"}).Validate(); err == nil {
		t.Fatalf("expected missing access token to fail")
	}
}
