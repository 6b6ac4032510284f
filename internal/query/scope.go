package query

import "metagrid/internal/schema"

// AssignmentView selects the point of view for assignment-scoped listings.
type AssignmentView string

const (
	ViewAssignedTo  AssignmentView = "assignedTo"
	ViewInitiatedBy AssignmentView = "initiatedBy"
)

// AllCompaniesID is the sentinel company selection meaning "every company
// the user can see". It triggers per-company grouping downstream.
const AllCompaniesID = "all"

// Scope is the tenant and assignment point of view restricting which
// records are visible. It is an explicit value threaded into the
// coordinator, never read from ambient global state.
type Scope struct {
	// CompanyIDs is the active company selection. Empty while the company
	// list is still loading.
	CompanyIDs []string `json:"companyIds,omitempty"`
	// AllCompanies marks the "all companies" sentinel selection.
	AllCompanies bool `json:"allCompanies,omitempty"`

	// AssignmentActive restricts the listing to one user's point of view.
	AssignmentActive bool           `json:"assignmentActive,omitempty"`
	AssignmentUserID string         `json:"assignmentUserId,omitempty"`
	AssignmentView   AssignmentView `json:"assignmentView,omitempty"`
}

// Resolved reports whether the scope is complete enough to query with.
// An unresolved scope suppresses fetches entirely, so an incorrect
// unscoped request never reaches the network.
func (s Scope) Resolved(sch *schema.Schema) bool {
	if sch.CompanyBased() && !s.AllCompanies && len(s.CompanyIDs) == 0 {
		return false
	}
	if s.AssignmentActive && s.AssignmentUserID == "" {
		return false
	}
	return true
}

func (s Scope) view() AssignmentView {
	if s.AssignmentView == "" {
		return ViewAssignedTo
	}
	return s.AssignmentView
}
