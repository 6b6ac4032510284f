package schema

import (
	"fmt"
	"sort"
)

// RepeatingConfig describes a relation-backed repeating section: rows come
// from another schema linked through a relation type instead of an inline
// array on the record.
type RepeatingConfig struct {
	TargetSchema   string `json:"targetSchema"`
	RelationTypeID string `json:"relationTypeId"`
}

type Section struct {
	ID                 string           `json:"id"`
	Label              string           `json:"label"`
	Order              int              `json:"order,omitempty"`
	IsRepeatingSection bool             `json:"isRepeatingSection,omitempty"`
	RepeatingConfig    *RepeatingConfig `json:"repeatingConfig,omitempty"`
}

// RelationBacked reports whether the section's rows live in another schema.
func (s *Section) RelationBacked() bool {
	return s.IsRepeatingSection && s.RepeatingConfig != nil && s.RepeatingConfig.TargetSchema != ""
}

// StatusGroup declares an alternate status vocabulary independent of a
// literal status field.
type StatusGroup struct {
	ID       string        `json:"id"`
	Statuses []FieldOption `json:"statuses"`
}

type ButtonKind string

const (
	ButtonNavigate   ButtonKind = "navigate"
	ButtonOpenURL    ButtonKind = "open-url"
	ButtonOpenDialog ButtonKind = "open-dialog"
)

var validButtonKinds = map[ButtonKind]bool{
	ButtonNavigate: true, ButtonOpenURL: true, ButtonOpenDialog: true,
}

// CustomButton is a declarative per-row action. Condition is an optional
// expr-lang expression evaluated against the record; empty means always
// visible.
type CustomButton struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon,omitempty"`
	Kind      ButtonKind `json:"kind"`
	Target    string     `json:"target"`
	Condition string     `json:"condition,omitempty"`

	CompiledCondition any `json:"-"` // cached *vm.Program, set lazily
}

// Schema is the declarative description of one entity type. Loaded once per
// page and treated as immutable afterwards.
type Schema struct {
	ID           string `json:"id"`
	PluralName   string `json:"pluralName"`
	SingularName string `json:"singularName"`
	Icon         string `json:"icon,omitempty"`

	Fields   []Field      `json:"fields"`
	Sections []Section    `json:"sections,omitempty"`
	Status   *StatusGroup `json:"statusGroup,omitempty"`

	AllowHierarchicalParent bool `json:"allowHierarchicalParent,omitempty"`
	IsNotCompanyBased       bool `json:"isNotCompanyBased,omitempty"`
	CanSelectMultiCompanies bool `json:"canSelectMultiCompanies,omitempty"`
	AllowAssignTo           bool `json:"allowAssignTo,omitempty"`
	AllowDataAssignedTo     bool `json:"allowDataAssignedTo,omitempty"`

	CustomButtons []CustomButton `json:"customButtons,omitempty"`
}

// Validate checks the document after JSON decoding. Unknown roles,
// components and button kinds are rejected rather than silently ignored.
func (s *Schema) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("schema: missing id")
	}
	if s.SingularName == "" {
		return fmt.Errorf("schema %s: missing singularName", s.ID)
	}
	names := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("schema %s: %w", s.ID, err)
		}
		if names[f.Name] {
			return fmt.Errorf("schema %s: duplicate field name %q", s.ID, f.Name)
		}
		names[f.Name] = true
	}
	sections := make(map[string]bool, len(s.Sections))
	for i := range s.Sections {
		sections[s.Sections[i].ID] = true
	}
	for i := range s.Fields {
		if sid := s.Fields[i].SectionID; sid != "" && !sections[sid] {
			return fmt.Errorf("schema %s: field %q references unknown section %q", s.ID, s.Fields[i].Name, sid)
		}
	}
	for i := range s.CustomButtons {
		if !validButtonKinds[s.CustomButtons[i].Kind] {
			return fmt.Errorf("schema %s: unknown button kind %q", s.ID, s.CustomButtons[i].Kind)
		}
	}
	return nil
}

// GetField returns the field with the given name, or nil.
func (s *Schema) GetField(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// FieldsByRole returns all fields declaring the role, in declaration order.
func (s *Schema) FieldsByRole(role FieldRole) []*Field {
	var out []*Field
	for i := range s.Fields {
		if s.Fields[i].Role == role {
			out = append(out, &s.Fields[i])
		}
	}
	return out
}

// HasRole reports whether any field declares the role.
func (s *Schema) HasRole(role FieldRole) bool {
	for i := range s.Fields {
		if s.Fields[i].Role == role {
			return true
		}
	}
	return false
}

// VisibleFields returns non-hidden fields outside repeating sections,
// ordered by Order then declaration position.
func (s *Schema) VisibleFields() []*Field {
	repeating := make(map[string]bool)
	for i := range s.Sections {
		if s.Sections[i].IsRepeatingSection {
			repeating[s.Sections[i].ID] = true
		}
	}
	type entry struct {
		f   *Field
		pos int
	}
	var entries []entry
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Hidden || repeating[f.SectionID] {
			continue
		}
		entries = append(entries, entry{f, i})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].f.Order != entries[b].f.Order {
			return entries[a].f.Order < entries[b].f.Order
		}
		return entries[a].pos < entries[b].pos
	})
	out := make([]*Field, len(entries))
	for i, e := range entries {
		out[i] = e.f
	}
	return out
}

// RepeatingSections returns sections flagged as repeating, ordered by Order.
func (s *Schema) RepeatingSections() []*Section {
	var out []*Section
	for i := range s.Sections {
		if s.Sections[i].IsRepeatingSection {
			out = append(out, &s.Sections[i])
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Order < out[b].Order })
	return out
}

// SectionFields returns the fields belonging to a section, in declaration order.
func (s *Schema) SectionFields(sectionID string) []*Field {
	var out []*Field
	for i := range s.Fields {
		if s.Fields[i].SectionID == sectionID {
			out = append(out, &s.Fields[i])
		}
	}
	return out
}

// CompanyBased reports whether records of this schema are scoped to a company.
func (s *Schema) CompanyBased() bool {
	return !s.IsNotCompanyBased
}
