package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one entity row as delivered by the backend: system attributes
// plus arbitrary schema-declared field values. The runtime never mutates a
// record in place; every write goes to the backend followed by a re-fetch.
type Record map[string]any

// System attribute keys shared by every schema.
const (
	KeyID         = "id"
	KeyCompanyID  = "companyId"
	KeyParent     = "parent"
	KeyStatus     = "status"
	KeyAssignedTo = "assignedTo"
	KeyCreatedAt  = "createdAt"
	KeyCreatedBy  = "createdBy"
	KeyUpdatedAt  = "updatedAt"
	KeyUpdatedBy  = "updatedBy"
)

// ID returns the record id as a string, or "" when absent.
func (r Record) ID() string { return r.str(KeyID) }

// CompanyID returns the owning company id, or "" for company-less records.
func (r Record) CompanyID() string { return r.str(KeyCompanyID) }

// Parent returns the hierarchy parent id, or "" for roots.
func (r Record) Parent() string { return r.str(KeyParent) }

// Status returns the status value, or "".
func (r Record) Status() string { return r.str(KeyStatus) }

func (r Record) CreatedBy() string { return r.str(KeyCreatedBy) }
func (r Record) UpdatedBy() string { return r.str(KeyUpdatedBy) }

// CreatedAt returns the creation timestamp, or the zero time when absent or
// unparseable.
func (r Record) CreatedAt() time.Time { return r.timeAt(KeyCreatedAt) }

// UpdatedAt returns the last-update timestamp, or the zero time.
func (r Record) UpdatedAt() time.Time { return r.timeAt(KeyUpdatedAt) }

func (r Record) str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (r Record) timeAt(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DisplayString converts any field value to the string a cell or chip would
// show. Option objects render their label, arrays join with ", ".
func DisplayString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any:
		if label, ok := val["label"].(string); ok && label != "" {
			return label
		}
		if id, ok := val["id"]; ok {
			return DisplayString(id)
		}
		return ""
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := DisplayString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsEmptyValue reports whether a field value counts as absent for role
// resolution: nil, empty string, or an empty slice.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	default:
		return false
	}
}
