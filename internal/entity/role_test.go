package entity

import (
	"testing"

	"metagrid/internal/schema"
)

func roleSchema(fields ...schema.Field) *schema.Schema {
	return &schema.Schema{ID: "t", SingularName: "T", Fields: fields}
}

func TestResolveByRole_NoMatch(t *testing.T) {
	s := roleSchema(schema.Field{ID: "f1", Name: "name", Component: schema.ComponentText})
	if v := ResolveByRole(s, Record{"name": "x"}, schema.RoleTitle); v != nil {
		t.Fatalf("expected nil for undeclared role, got %v", v)
	}
}

func TestResolveByRole_SingleReturnsRawValue(t *testing.T) {
	s := roleSchema(schema.Field{ID: "f1", Name: "priority", Role: schema.RoleBadge, Component: schema.ComponentSelect})
	raw := map[string]any{"id": "high", "label": "High"}
	v := ResolveByRole(s, Record{"priority": raw}, schema.RoleBadge)
	got, ok := v.(map[string]any)
	if !ok || got["id"] != "high" {
		t.Fatalf("expected raw map value back, got %v", v)
	}
}

func TestResolveByRole_SingleEmptyIsNil(t *testing.T) {
	s := roleSchema(schema.Field{ID: "f1", Name: "title", Role: schema.RoleTitle, Component: schema.ComponentText})
	if v := ResolveByRole(s, Record{"title": ""}, schema.RoleTitle); v != nil {
		t.Fatalf("expected nil for empty value, got %v", v)
	}
	if v := ResolveByRole(s, Record{}, schema.RoleTitle); v != nil {
		t.Fatalf("expected nil for absent value, got %v", v)
	}
}

func TestResolveByRole_MultipleJoinsDisplayStrings(t *testing.T) {
	s := roleSchema(
		schema.Field{ID: "f1", Name: "first", Role: schema.RoleTitle, Component: schema.ComponentText},
		schema.Field{ID: "f2", Name: "last", Role: schema.RoleTitle, Component: schema.ComponentText},
	)
	v := ResolveByRole(s, Record{"first": "Ada", "last": "Lovelace"}, schema.RoleTitle)
	if v != "Ada | Lovelace" {
		t.Fatalf("expected joined display string, got %v", v)
	}
}

func TestResolveByRole_MultipleSkipsEmpties(t *testing.T) {
	s := roleSchema(
		schema.Field{ID: "f1", Name: "first", Role: schema.RoleTitle, Component: schema.ComponentText},
		schema.Field{ID: "f2", Name: "middle", Role: schema.RoleTitle, Component: schema.ComponentText},
		schema.Field{ID: "f3", Name: "last", Role: schema.RoleTitle, Component: schema.ComponentText},
	)
	v := ResolveByRole(s, Record{"first": "Ada", "middle": "", "last": "Lovelace"}, schema.RoleTitle)
	if v != "Ada | Lovelace" {
		t.Fatalf("expected empties skipped, got %v", v)
	}

	// All empty collapses to nil, not "".
	v = ResolveByRole(s, Record{"first": "", "last": ""}, schema.RoleTitle)
	if v != nil {
		t.Fatalf("expected nil when every match is empty, got %v", v)
	}
}

func TestResolveSingleByRole_FirstNonEmptyWins(t *testing.T) {
	s := roleSchema(
		schema.Field{ID: "f1", Name: "a", Role: schema.RoleIcon, Component: schema.ComponentIcon},
		schema.Field{ID: "f2", Name: "b", Role: schema.RoleIcon, Component: schema.ComponentIcon},
	)
	v := ResolveSingleByRole(s, Record{"a": "", "b": "star"}, schema.RoleIcon)
	if v != "star" {
		t.Fatalf("expected first non-empty match, got %v", v)
	}
}

func TestResolveDisplay_FlattensOptionObject(t *testing.T) {
	s := roleSchema(schema.Field{ID: "f1", Name: "status", Role: schema.RoleStatus, Component: schema.ComponentSelect})
	rec := Record{"status": map[string]any{"id": "open", "label": "Open"}}
	if got := ResolveDisplay(s, rec, schema.RoleStatus); got != "Open" {
		t.Fatalf("expected label, got %q", got)
	}
}
