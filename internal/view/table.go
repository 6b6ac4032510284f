package view

import (
	"time"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

// MetaTooltip exposes the full timestamp and actor identity behind a
// metadata cell's short display.
type MetaTooltip struct {
	At    time.Time `json:"at"`
	Actor string    `json:"actor,omitempty"`
}

type Cell struct {
	Display string `json:"display"`
	Value   any    `json:"value,omitempty"`
	// Count is set for inline repeating-section cells; relation-backed
	// sections stay nil and unsortable because their rows live elsewhere.
	Count   *int         `json:"count,omitempty"`
	Tooltip *MetaTooltip `json:"tooltip,omitempty"`
}

type Row struct {
	ID    string          `json:"id"`
	Cells map[string]Cell `json:"cells"`
}

// ProjectTable renders records against a derived column set.
func ProjectTable(s *schema.Schema, records []entity.Record, cols []Column) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{ID: rec.ID(), Cells: make(map[string]Cell, len(cols))}
		for _, col := range cols {
			switch col.Kind {
			case ColumnField:
				v := rec[col.FieldName]
				row.Cells[col.ID] = Cell{Display: entity.DisplayString(v), Value: v}
			case ColumnSection:
				row.Cells[col.ID] = sectionCell(s, rec, col.SectionID)
			case ColumnMetadata:
				row.Cells[col.ID] = metadataCell(rec, col.ID)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// sectionCell shows an item count for inline-array sections and an empty
// cell for relation-backed ones.
func sectionCell(s *schema.Schema, rec entity.Record, sectionID string) Cell {
	var sec *schema.Section
	for i := range s.Sections {
		if s.Sections[i].ID == sectionID {
			sec = &s.Sections[i]
			break
		}
	}
	if sec == nil || sec.RelationBacked() {
		return Cell{}
	}

	count := 0
	if items, ok := rec[sectionID].([]any); ok {
		count = len(items)
	} else {
		// Inline sections may also store rows under the section's fields.
		for _, f := range s.SectionFields(sectionID) {
			if items, ok := rec[f.Name].([]any); ok && len(items) > count {
				count = len(items)
			}
		}
	}
	return Cell{Count: &count, Display: entity.DisplayString(count)}
}

func metadataCell(rec entity.Record, colID string) Cell {
	var at time.Time
	var actor string
	if colID == ColCreated {
		at, actor = rec.CreatedAt(), rec.CreatedBy()
	} else {
		at, actor = rec.UpdatedAt(), rec.UpdatedBy()
	}
	if at.IsZero() {
		return Cell{}
	}
	return Cell{
		Display: at.Format("2006-01-02"),
		Tooltip: &MetaTooltip{At: at, Actor: actor},
	}
}
