package query

import (
	"context"

	"metagrid/internal/entity"
)

// ListParams is the fully-resolved effective query sent to the backend.
type ListParams struct {
	Search        string
	Filters       map[string]any
	Sort          []SortKey
	Page          int
	PageSize      PageSize
	CompanyIDs    []string
	AssignedToIDs []string
	CreatedByIDs  []string

	// BypassCache forces a cold read on manual refresh.
	BypassCache bool
}

type ListResult struct {
	Records    []entity.Record
	TotalItems int
	TotalPages int
}

// Counts feeds the assignment-scope toggle UI.
type Counts struct {
	AssignedToCount  int `json:"assignedToCount"`
	InitiatedByCount int `json:"initiatedByCount"`
}

// Backend is the store the coordinator reads from and writes through. The
// embedded data service and the remote HTTP client both implement it.
type Backend interface {
	FetchList(ctx context.Context, schemaID string, p ListParams) (*ListResult, error)
	FetchCounts(ctx context.Context, schemaID, userID string, companyIDs []string) (*Counts, error)
	Create(ctx context.Context, schemaID string, values map[string]any) (entity.Record, error)
	Update(ctx context.Context, schemaID, id string, values map[string]any) (entity.Record, error)
	Delete(ctx context.Context, schemaID, id string) error
}
