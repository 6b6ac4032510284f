package view

import (
	"math"
	"strconv"
	"time"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

// Card is the grid/list projection of one record. Every pointer block is
// role-conditional: a schema that does not declare the role yields nil, and
// the renderer suppresses the block entirely instead of showing an empty
// placeholder.
type Card struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Subtitle    string `json:"subtitle,omitempty"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`

	Status *entity.Option  `json:"status,omitempty"`
	Badges []entity.Option `json:"badges,omitempty"`
	Person *entity.Option  `json:"person,omitempty"`
	Avatar *entity.Option  `json:"avatar,omitempty"`

	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`

	Rating *float64 `json:"rating,omitempty"`

	DueDate   *time.Time `json:"dueDate,omitempty"`
	DueInDays *int       `json:"dueInDays,omitempty"`

	Buttons []ResolvedButton `json:"buttons,omitempty"`
}

// ProjectCard builds the card for one record via the role resolver and
// option normalizer.
func ProjectCard(s *schema.Schema, rec entity.Record) Card {
	card := Card{
		ID:          rec.ID(),
		Title:       entity.ResolveDisplay(s, rec, schema.RoleTitle),
		Subtitle:    entity.ResolveDisplay(s, rec, schema.RoleSubtitle),
		Description: entity.ResolveDisplay(s, rec, schema.RoleDescription),
		Code:        entity.ResolveDisplay(s, rec, schema.RoleCode),
	}

	if s.HasRole(schema.RoleStatus) || s.Status != nil {
		card.Status = resolveStatus(s, rec)
	}
	if s.HasRole(schema.RoleBadge) {
		for _, f := range s.FieldsByRole(schema.RoleBadge) {
			card.Badges = append(card.Badges, entity.Normalize(rec[f.Name])...)
		}
	}
	if s.HasRole(schema.RolePerson) {
		card.Person = entity.NormalizeOne(entity.ResolveSingleByRole(s, rec, schema.RolePerson))
	}
	if s.HasRole(schema.RoleAvatar) {
		card.Avatar = entity.NormalizeOne(entity.ResolveSingleByRole(s, rec, schema.RoleAvatar))
	}
	if s.HasRole(schema.RoleIcon) {
		card.Icon = entity.DisplayString(entity.ResolveSingleByRole(s, rec, schema.RoleIcon))
	}
	if s.HasRole(schema.RoleColor) {
		card.Color = entity.DisplayString(entity.ResolveSingleByRole(s, rec, schema.RoleColor))
	}
	if s.HasRole(schema.RoleRating) {
		if r, ok := toFloat(entity.ResolveSingleByRole(s, rec, schema.RoleRating)); ok {
			card.Rating = &r
		}
	}
	if s.HasRole(schema.RoleDueDate) {
		if due := resolveDueDate(s, rec); due != nil {
			card.DueDate = due
			days := daysUntil(*due, time.Now())
			card.DueInDays = &days
		}
	}

	card.Buttons = ResolveButtons(s, rec)
	return card
}

// ProjectCards projects a whole page of records.
func ProjectCards(s *schema.Schema, records []entity.Record) []Card {
	cards := make([]Card, 0, len(records))
	for _, rec := range records {
		cards = append(cards, ProjectCard(s, rec))
	}
	return cards
}

// resolveStatus prefers the role-tagged field, then the literal status
// attribute. A declared status group supplies icon and color for the value.
func resolveStatus(s *schema.Schema, rec entity.Record) *entity.Option {
	v := entity.ResolveSingleByRole(s, rec, schema.RoleStatus)
	if v == nil && rec.Status() != "" {
		v = rec.Status()
	}
	opt := entity.NormalizeOne(v)
	if opt == nil {
		return nil
	}
	if s.Status != nil {
		for _, st := range s.Status.Statuses {
			if st.ID == opt.ID || st.Label == opt.Label {
				return &entity.Option{ID: st.ID, Label: st.Label, Icon: st.Icon, Color: st.Color}
			}
		}
	}
	return opt
}

func resolveDueDate(s *schema.Schema, rec entity.Record) *time.Time {
	for _, f := range s.FieldsByRole(schema.RoleDueDate) {
		switch v := rec[f.Name].(type) {
		case time.Time:
			return &v
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02"} {
				if t, err := time.Parse(layout, v); err == nil {
					return &t
				}
			}
		}
	}
	return nil
}

// daysUntil counts whole days from now to due, negative when overdue.
func daysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
