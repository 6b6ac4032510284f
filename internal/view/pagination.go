package view

import "metagrid/internal/query"

// Pagination is what the paging control renders. TotalPages is always at
// least 1, so an empty result set with pageSize "all" still reports a
// well-formed single page.
type Pagination struct {
	Page       int            `json:"page"`
	PageSize   query.PageSize `json:"pageSize"`
	TotalItems int            `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
}

// Paginate reconciles the backend-reported totals with the current facet
// state. A missing or nonsensical reported page count is recomputed.
func Paginate(st query.State, totalItems, reportedPages int) Pagination {
	p := Pagination{
		Page:       st.Page,
		PageSize:   st.PageSize,
		TotalItems: totalItems,
	}
	switch {
	case st.PageSize.All() || totalItems == 0:
		p.TotalPages = 1
	case reportedPages > 0:
		p.TotalPages = reportedPages
	default:
		size := int(st.PageSize)
		p.TotalPages = (totalItems + size - 1) / size
	}
	return p
}
