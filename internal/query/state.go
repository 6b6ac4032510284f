package query

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SortKey is one entry of a multi-column sort.
type SortKey struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// PageSize is the page length, or PageSizeAll for an unpaginated listing.
type PageSize int

const PageSizeAll PageSize = -1

const DefaultPageSize PageSize = 25

var allowedPageSizes = map[PageSize]bool{
	10: true, 25: true, 50: true, 100: true, 500: true, PageSizeAll: true,
}

func (p PageSize) Valid() bool {
	return allowedPageSizes[p]
}

func (p PageSize) All() bool {
	return p == PageSizeAll
}

// QueryValue renders the wire form of the limit parameter.
func (p PageSize) QueryValue() string {
	if p.All() {
		return "all"
	}
	return strconv.Itoa(int(p))
}

func (p PageSize) MarshalJSON() ([]byte, error) {
	if p.All() {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(int(p))), nil
}

func (p *PageSize) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*p = PageSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "all" {
			*p = PageSizeAll
			return nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			*p = PageSize(n)
			return nil
		}
	}
	return fmt.Errorf("invalid page size: %s", b)
}

// State is everything the coordinator reconciles into one effective query.
// Created with defaults on page mount, mutated only through the
// coordinator's setters, discarded on navigation away.
type State struct {
	Search   string         `json:"search"`
	Filters  map[string]any `json:"filters,omitempty"`
	Sort     []SortKey      `json:"sort,omitempty"`
	Page     int            `json:"page"`
	PageSize PageSize       `json:"pageSize"`
	Scope    Scope          `json:"scope"`
}

// fingerprintOf serializes any facet combination canonically: struct fields
// in declaration order, map keys sorted by encoding/json. Two states with
// the same fingerprint build the same effective query.
func fingerprintOf(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only non-serializable filter values can land here; fall back to
		// an always-unequal form so a fetch is issued rather than dropped.
		return fmt.Sprintf("!%v", v)
	}
	return string(b)
}
