// Package grouping partitions a filtered, sorted result set into
// per-company buckets for the "all companies" view.
package grouping

import (
	"metagrid/internal/entity"
	"metagrid/internal/query"
	"metagrid/internal/schema"
)

// Result is a pure partition of the input: order within each bucket is the
// input order, untouched.
type Result struct {
	// Grouped maps company id to its records. Order lists company ids by
	// first appearance so rendering stays deterministic.
	Grouped map[string][]entity.Record `json:"grouped"`
	Order   []string                   `json:"order"`
	// Ungrouped collects records carrying no company id.
	Ungrouped []entity.Record `json:"ungrouped,omitempty"`
}

// Group returns nil (no grouping) unless the schema is company-scoped, the
// scope is the all-companies sentinel, and at least one visible record
// carries a company id.
func Group(s *schema.Schema, scope query.Scope, records []entity.Record) *Result {
	if !s.CompanyBased() || !scope.AllCompanies {
		return nil
	}

	hasCompany := false
	for _, rec := range records {
		if rec.CompanyID() != "" {
			hasCompany = true
			break
		}
	}
	if !hasCompany {
		return nil
	}

	res := &Result{Grouped: make(map[string][]entity.Record)}
	for _, rec := range records {
		cid := rec.CompanyID()
		if cid == "" {
			res.Ungrouped = append(res.Ungrouped, rec)
			continue
		}
		if _, seen := res.Grouped[cid]; !seen {
			res.Order = append(res.Order, cid)
		}
		res.Grouped[cid] = append(res.Grouped[cid], rec)
	}
	return res
}
