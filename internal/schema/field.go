package schema

import "fmt"

// FieldRole is a semantic tag on a field that lets generic code find
// "the field that means X" without knowing the field's name.
type FieldRole string

const (
	RoleNone        FieldRole = ""
	RoleTitle       FieldRole = "title"
	RoleSubtitle    FieldRole = "subtitle"
	RoleDescription FieldRole = "description"
	RoleStatus      FieldRole = "status"
	RoleBadge       FieldRole = "badge"
	RoleRating      FieldRole = "rating"
	RoleCode        FieldRole = "code"
	RoleAvatar      FieldRole = "avatar"
	RoleIcon        FieldRole = "icon"
	RoleColor       FieldRole = "color"
	RolePerson      FieldRole = "person"
	RoleDueDate     FieldRole = "due-date"
)

var validRoles = map[FieldRole]bool{
	RoleNone: true, RoleTitle: true, RoleSubtitle: true, RoleDescription: true,
	RoleStatus: true, RoleBadge: true, RoleRating: true, RoleCode: true,
	RoleAvatar: true, RoleIcon: true, RoleColor: true, RolePerson: true,
	RoleDueDate: true,
}

// ComponentKind identifies the widget a field renders with. The kind also
// decides column sortability and the storage column type.
type ComponentKind string

const (
	ComponentText        ComponentKind = "text"
	ComponentTextarea    ComponentKind = "textarea"
	ComponentNumber      ComponentKind = "number"
	ComponentSelect      ComponentKind = "select"
	ComponentMultiSelect ComponentKind = "multiselect"
	ComponentDate        ComponentKind = "date"
	ComponentCheckbox    ComponentKind = "checkbox"
	ComponentRating      ComponentKind = "rating"
	ComponentColor       ComponentKind = "color"
	ComponentIcon        ComponentKind = "icon"
	ComponentAvatar      ComponentKind = "avatar"
	ComponentFile        ComponentKind = "file"
	ComponentRelation    ComponentKind = "relation"
)

var validComponents = map[ComponentKind]bool{
	ComponentText: true, ComponentTextarea: true, ComponentNumber: true,
	ComponentSelect: true, ComponentMultiSelect: true, ComponentDate: true,
	ComponentCheckbox: true, ComponentRating: true, ComponentColor: true,
	ComponentIcon: true, ComponentAvatar: true, ComponentFile: true,
	ComponentRelation: true,
}

// Sortable reports whether a column backed by this component kind can be
// sorted server-side. Only regular scalar kinds qualify.
func (k ComponentKind) Sortable() bool {
	switch k {
	case ComponentText, ComponentTextarea, ComponentNumber, ComponentSelect,
		ComponentDate, ComponentCheckbox, ComponentRating:
		return true
	default:
		return false
	}
}

type FieldOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

type Field struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Label     string        `json:"label"`
	Role      FieldRole     `json:"role,omitempty"`
	Component ComponentKind `json:"component"`
	SectionID string        `json:"sectionId,omitempty"`
	Options   []FieldOption `json:"options,omitempty"`
	Hidden    bool          `json:"hidden,omitempty"`
	Order     int           `json:"order,omitempty"`
}

// Validate rejects unknown roles and component kinds. Schema documents
// arrive as loose JSON; bad tags fail at load time, not at render time.
func (f *Field) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field %s: missing name", f.ID)
	}
	if !validRoles[f.Role] {
		return fmt.Errorf("field %s: unknown role %q", f.Name, f.Role)
	}
	if !validComponents[f.Component] {
		return fmt.Errorf("field %s: unknown component %q", f.Name, f.Component)
	}
	return nil
}
