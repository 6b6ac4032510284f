package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"metagrid/internal/apperr"
	"metagrid/internal/grouping"
	"metagrid/internal/query"
	"metagrid/internal/view"
)

type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	rt := app.Group("/runtime", middleware...)

	rt.Post("/sessions", h.Open)
	rt.Get("/sessions/:id", h.Snapshot)
	rt.Delete("/sessions/:id", h.Close)

	rt.Post("/sessions/:id/refresh", h.Refresh)
	rt.Put("/sessions/:id/search", h.SetSearch)
	rt.Put("/sessions/:id/filters", h.SetFilters)
	rt.Put("/sessions/:id/sort", h.SetSort)
	rt.Put("/sessions/:id/page", h.SetPage)
	rt.Put("/sessions/:id/page-size", h.SetPageSize)
	rt.Put("/sessions/:id/scope", h.SetScope)
	rt.Put("/sessions/:id/view", h.SetView)
	rt.Post("/sessions/:id/expand/:nodeId", h.ToggleExpand)
	rt.Get("/sessions/:id/counts", h.Counts)

	rt.Post("/sessions/:id/records", h.CreateRecord)
	rt.Put("/sessions/:id/records/:recordId", h.UpdateRecord)
	rt.Delete("/sessions/:id/records/:recordId", h.DeleteRecord)
	rt.Put("/sessions/:id/records/:recordId/parent", h.ChangeParent)
}

// Snapshot is everything a page render needs: facet state, fetch phase,
// shared columns, and the projection for the active view mode.
type Snapshot struct {
	SessionID string      `json:"sessionId"`
	SchemaID  string      `json:"schemaId"`
	Phase     query.Phase `json:"phase"`
	Error     string      `json:"error,omitempty"`
	State     query.State `json:"state"`

	Mode       view.Mode        `json:"mode"`
	Columns    []view.Column    `json:"columns"`
	Rows       []view.Row       `json:"rows,omitempty"`
	Cards      []view.Card      `json:"cards,omitempty"`
	Tree       []view.TreeNode  `json:"tree,omitempty"`
	Groups     *grouping.Result `json:"groups,omitempty"`
	Pagination view.Pagination  `json:"pagination"`
}

func (h *Handler) snapshot(s *Session) Snapshot {
	coord := s.Coordinator
	sch := coord.Schema()
	state := coord.State()
	records := coord.Records()
	totalItems, totalPages := coord.Totals()

	requested, showMetadata := s.viewPrefs()
	mode := view.ResolveMode(sch, requested)
	cols := view.DeriveColumns(sch, showMetadata)

	snap := Snapshot{
		SessionID:  s.ID,
		SchemaID:   sch.ID,
		Phase:      coord.Phase(),
		State:      state,
		Mode:       mode,
		Columns:    cols,
		Groups:     grouping.Group(sch, state.Scope, records),
		Pagination: view.Paginate(state, totalItems, totalPages),
	}
	if err := coord.LastError(); err != nil {
		snap.Error = err.Error()
	}

	switch mode {
	case view.ModeTable:
		snap.Rows = view.ProjectTable(sch, records, cols)
	case view.ModeGrid, view.ModeList:
		snap.Cards = view.ProjectCards(sch, records)
	case view.ModeHierarchy:
		snap.Tree = view.ProjectHierarchy(sch, records, s.Expand)
	}
	return snap
}

// Open handles POST /runtime/sessions
func (h *Handler) Open(c *fiber.Ctx) error {
	var body struct {
		SchemaID string         `json:"schemaId"`
		Scope    query.Scope    `json:"scope"`
		PageSize query.PageSize `json:"pageSize"`
		Mode     view.Mode      `json:"mode"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	if body.SchemaID == "" {
		return apperr.InvalidPayload("schemaId is required")
	}

	s, err := h.manager.Open(body.SchemaID, body.Scope, body.PageSize, callerID(c))
	if err != nil {
		return err
	}
	if body.Mode != "" {
		s.SetView(body.Mode, false)
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

// Snapshot handles GET /runtime/sessions/:id
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

// Close handles DELETE /runtime/sessions/:id
func (h *Handler) Close(c *fiber.Ctx) error {
	h.manager.Close(c.Params("id"))
	return c.JSON(fiber.Map{"success": true})
}

// Refresh handles POST /runtime/sessions/:id/refresh — an unconditional
// cold re-read of the current effective query.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	s.Coordinator.Refresh()
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetSearch(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	s.Coordinator.SetSearch(body.Text)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetFilters(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Filters map[string]any `json:"filters"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	s.Coordinator.SetFilters(body.Filters)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetSort(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Sort []query.SortKey `json:"sort"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	s.Coordinator.SetSort(body.Sort)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetPage(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Page int `json:"page"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	s.Coordinator.SetPage(body.Page)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetPageSize(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		PageSize query.PageSize `json:"pageSize"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	if !body.PageSize.Valid() {
		return apperr.InvalidPayload("Invalid page size")
	}
	s.Coordinator.SetPageSize(body.PageSize)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetScope(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Scope query.Scope `json:"scope"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	scope := body.Scope
	if scope.AssignmentActive && scope.AssignmentUserID == "" {
		scope.AssignmentUserID = callerID(c)
	}
	s.Coordinator.SetScope(scope)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

func (h *Handler) SetView(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		Mode         view.Mode `json:"mode"`
		ShowMetadata bool      `json:"showMetadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	s.SetView(body.Mode, body.ShowMetadata)
	return c.JSON(fiber.Map{"success": true, "data": h.snapshot(s)})
}

// ToggleExpand handles POST /runtime/sessions/:id/expand/:nodeId
func (h *Handler) ToggleExpand(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	open := s.Expand.Toggle(c.Params("nodeId"))
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"expanded": open}})
}

// Counts handles GET /runtime/sessions/:id/counts
func (h *Handler) Counts(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	counts, err := s.Coordinator.FetchCounts(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": counts})
}

// CreateRecord handles POST /runtime/sessions/:id/records
func (h *Handler) CreateRecord(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var values map[string]any
	if err := c.BodyParser(&values); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	rec, err := s.Coordinator.Create(c.Context(), values)
	if err != nil {
		return mutationError(err)
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "data": rec})
}

// UpdateRecord handles PUT /runtime/sessions/:id/records/:recordId
func (h *Handler) UpdateRecord(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var values map[string]any
	if err := c.BodyParser(&values); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	rec, err := s.Coordinator.Update(c.Context(), c.Params("recordId"), values)
	if err != nil {
		return mutationError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": rec})
}

// DeleteRecord handles DELETE /runtime/sessions/:id/records/:recordId.
// With ?cascade=true on a hierarchical schema the record and all its
// descendants go, sequentially; a mid-batch failure reports how far the
// cascade got.
func (h *Handler) DeleteRecord(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	cascade := c.QueryBool("cascade")
	res, err := s.Coordinator.Delete(c.Context(), c.Params("recordId"), cascade)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{
			"success": false,
			"data":    res,
			"error": &apperr.AppError{
				Code:    "PARTIAL_CASCADE_FAILURE",
				Message: err.Error(),
			},
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

// ChangeParent handles PUT /runtime/sessions/:id/records/:recordId/parent
func (h *Handler) ChangeParent(c *fiber.Ctx) error {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var body struct {
		ParentID string `json:"parentId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}
	if err := s.Coordinator.ChangeParent(c.Context(), c.Params("recordId"), body.ParentID); err != nil {
		var cycleErr *query.CycleError
		if errors.As(err, &cycleErr) {
			return apperr.InvalidPayload(cycleErr.Error())
		}
		return mutationError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// mutationError converts coordinator mutation failures to the envelope.
// The failing form stays open client-side; nothing is lost.
func mutationError(err error) error {
	return apperr.New("MUTATION_FAILED", 502, err.Error())
}
