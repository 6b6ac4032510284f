package entity

import (
	"strings"

	"metagrid/internal/schema"
)

// ResolveByRole finds the value "meaning" role inside a record. One matching
// field returns its raw value. Several fields sharing the role return their
// display strings joined with " | " in declaration order, skipping empties.
// No matching field returns nil. Never errors: absent data yields nil.
func ResolveByRole(s *schema.Schema, rec Record, role schema.FieldRole) any {
	fields := s.FieldsByRole(role)
	switch len(fields) {
	case 0:
		return nil
	case 1:
		v, ok := rec[fields[0].Name]
		if !ok || IsEmptyValue(v) {
			return nil
		}
		return v
	}

	var parts []string
	for _, f := range fields {
		v, ok := rec[f.Name]
		if !ok || IsEmptyValue(v) {
			continue
		}
		if s := DisplayString(v); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, " | ")
}

// ResolveSingleByRole forces a single scalar for contexts that cannot take
// a joined list, such as a badge's icon: the first non-empty match wins.
func ResolveSingleByRole(s *schema.Schema, rec Record, role schema.FieldRole) any {
	for _, f := range s.FieldsByRole(role) {
		v, ok := rec[f.Name]
		if ok && !IsEmptyValue(v) {
			return v
		}
	}
	return nil
}

// ResolveDisplay is ResolveByRole flattened to a display string.
func ResolveDisplay(s *schema.Schema, rec Record, role schema.FieldRole) string {
	return DisplayString(ResolveByRole(s, rec, role))
}
