package entity

// Option is the canonical shape every heterogeneous field value normalizes
// to before being rendered as a badge, avatar or person chip. Downstream
// code never branches on raw value shape.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Normalize canonicalizes a bare primitive, a single {id,label} object, or
// an array of either into []Option. Order is preserved and duplicates are
// kept; dedup policy belongs to the caller.
func Normalize(v any) []Option {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]Option, 0, len(val))
		for _, item := range val {
			out = append(out, Normalize(item)...)
		}
		return out
	case []string:
		out := make([]Option, 0, len(val))
		for _, s := range val {
			out = append(out, Option{ID: s, Label: s})
		}
		return out
	case map[string]any:
		opt := Option{
			ID:    DisplayString(val["id"]),
			Label: DisplayString(val["label"]),
		}
		if icon, ok := val["icon"].(string); ok {
			opt.Icon = icon
		}
		if color, ok := val["color"].(string); ok {
			opt.Color = color
		}
		if opt.Label == "" {
			opt.Label = opt.ID
		}
		if opt.ID == "" && opt.Label == "" {
			return nil
		}
		return []Option{opt}
	case Option:
		return []Option{val}
	default:
		s := DisplayString(v)
		if s == "" {
			return nil
		}
		return []Option{{ID: s, Label: s}}
	}
}

// NormalizeOne returns the first normalized option, or nil.
func NormalizeOne(v any) *Option {
	opts := Normalize(v)
	if len(opts) == 0 {
		return nil
	}
	return &opts[0]
}
