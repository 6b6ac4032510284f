package view

import "metagrid/internal/schema"

type ColumnKind string

const (
	ColumnActions  ColumnKind = "actions"
	ColumnField    ColumnKind = "field"
	ColumnSection  ColumnKind = "section"
	ColumnMetadata ColumnKind = "metadata"
)

type Column struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Kind     ColumnKind `json:"kind"`
	Sortable bool       `json:"sortable"`

	// FieldName is set for field columns, SectionID for section columns.
	FieldName string `json:"fieldName,omitempty"`
	SectionID string `json:"sectionId,omitempty"`
}

// Metadata column ids, enabled by the created/updated toggle.
const (
	ColCreated = "_created"
	ColUpdated = "_updated"
)

// DeriveColumns computes the table layout once per schema: a leading
// actions column, one column per visible non-repeating field (sortable iff
// the component is a regular scalar), one column per repeating section,
// and optional trailing created/updated metadata columns.
func DeriveColumns(s *schema.Schema, includeMetadata bool) []Column {
	cols := []Column{{ID: "_actions", Kind: ColumnActions}}

	for _, f := range s.VisibleFields() {
		cols = append(cols, Column{
			ID:        f.ID,
			Label:     f.Label,
			Kind:      ColumnField,
			Sortable:  f.Component.Sortable(),
			FieldName: f.Name,
		})
	}

	for _, sec := range s.RepeatingSections() {
		cols = append(cols, Column{
			ID:        "section:" + sec.ID,
			Label:     sec.Label,
			Kind:      ColumnSection,
			Sortable:  false,
			SectionID: sec.ID,
		})
	}

	if includeMetadata {
		cols = append(cols,
			Column{ID: ColCreated, Label: "Created", Kind: ColumnMetadata},
			Column{ID: ColUpdated, Label: "Updated", Kind: ColumnMetadata},
		)
	}
	return cols
}
