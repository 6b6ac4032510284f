// Package view projects the coordinator's result into one of four
// interchangeable layouts. All modes share one column/field derivation, so
// switching modes never changes what data is shown, only its shape.
package view

import "metagrid/internal/schema"

type Mode string

const (
	ModeTable     Mode = "table"
	ModeGrid      Mode = "grid"
	ModeList      Mode = "list"
	ModeHierarchy Mode = "hierarchy"
)

// ResolveMode maps a requested mode onto one the schema supports.
// Hierarchy on a non-hierarchical schema silently falls back to table, as
// does anything unrecognized.
func ResolveMode(s *schema.Schema, requested Mode) Mode {
	switch requested {
	case ModeTable, ModeGrid, ModeList:
		return requested
	case ModeHierarchy:
		if s.AllowHierarchicalParent {
			return ModeHierarchy
		}
		return ModeTable
	default:
		return ModeTable
	}
}
