package dataservice

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"metagrid/internal/apperr"
	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

type Handler struct {
	store    *Store
	registry *schema.Registry
}

func NewHandler(store *Store, reg *schema.Registry) *Handler {
	return &Handler{store: store, registry: reg}
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	api.Get("/schemas/:schemaId", h.GetSchema)
	api.Get("/data/:schemaId/count", h.Count)
	api.Get("/data/:schemaId", h.List)
	api.Post("/data/:schemaId", h.Create)
	api.Put("/data/:schemaId/:id", h.Update)
	api.Delete("/data/:schemaId/:id", h.Delete)
}

// List handles GET /api/data/:schemaId
func (h *Handler) List(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}

	plan, err := parseListQuery(c, sch)
	if err != nil {
		return err
	}

	listSQL, listParams := h.store.buildListSQL(sch, plan)
	rows, err := QueryRows(c.Context(), h.store.DB, listSQL, listParams...)
	if err != nil {
		return fmt.Errorf("list %s: %w", sch.ID, err)
	}

	countSQL, countParams := h.store.buildCountSQL(sch, plan)
	countRow, err := QueryRow(c.Context(), h.store.DB, countSQL, countParams...)
	if err != nil {
		return fmt.Errorf("count %s: %w", sch.ID, err)
	}
	total := asInt(countRow["count"])

	records := make([]entity.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(sch, row))
	}

	totalPages := 1
	if !plan.all && total > 0 {
		totalPages = (total + plan.limit - 1) / plan.limit
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"pagination": fiber.Map{
			"totalItems": total,
			"totalPages": totalPages,
		},
	})
}

// Count handles GET /api/data/:schemaId/count — the two counters behind
// the assignment point-of-view toggle.
func (h *Handler) Count(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}
	userID := c.Query("userId")
	if userID == "" {
		return apperr.InvalidPayload("userId is required")
	}
	companyIDs := splitIDs(c.Query("companyIds"))

	countFor := func(col string) (int, error) {
		pb := h.store.newParamBuilder()
		sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = %s",
			tableName(sch.ID), col, pb.Add(userID))
		if len(companyIDs) > 0 {
			ph := make([]string, len(companyIDs))
			for i, id := range companyIDs {
				ph[i] = pb.Add(id)
			}
			sql += fmt.Sprintf(" AND company_id IN (%s)", joinComma(ph))
		}
		row, err := QueryRow(c.Context(), h.store.DB, sql, pb.params...)
		if err != nil {
			return 0, err
		}
		return asInt(row["count"]), nil
	}

	assigned, err := countFor("assigned_to")
	if err != nil {
		return fmt.Errorf("count assigned %s: %w", sch.ID, err)
	}
	initiated, err := countFor("created_by")
	if err != nil {
		return fmt.Errorf("count initiated %s: %w", sch.ID, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"assignedToCount":  assigned,
			"initiatedByCount": initiated,
		},
	})
}

// Create handles POST /api/data/:schemaId
func (h *Handler) Create(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}

	id := entity.Record(body).ID()
	if id == "" {
		id = uuid.New().String()
	}
	actor := c.Get("X-User-Id")

	cols := []string{"id", "created_by", "updated_by"}
	pb := h.store.newParamBuilder()
	placeholders := []string{pb.Add(id), pb.Add(actor), pb.Add(actor)}

	for _, sc := range systemColumns {
		switch sc.key {
		case entity.KeyID, entity.KeyCreatedAt, entity.KeyCreatedBy,
			entity.KeyUpdatedAt, entity.KeyUpdatedBy:
			continue
		}
		if v, ok := body[sc.key]; ok {
			cols = append(cols, sc.col)
			placeholders = append(placeholders, pb.Add(v))
		}
	}
	for i := range sch.Fields {
		f := &sch.Fields[i]
		v, ok := body[f.Name]
		if !ok {
			continue
		}
		stored, err := valueToColumn(v)
		if err != nil {
			return apperr.InvalidPayload(err.Error())
		}
		cols = append(cols, colName(f.Name))
		placeholders = append(placeholders, pb.Add(stored))
	}

	now := h.store.Dialect.NowExpr()
	sql := fmt.Sprintf("INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, %s, %s)",
		tableName(sch.ID), joinComma(cols), joinComma(placeholders), now, now)
	if _, err := Exec(c.Context(), h.store.DB, sql, pb.params...); err != nil {
		return fmt.Errorf("create %s: %w", sch.ID, err)
	}

	rec, err := h.fetchRecord(c, sch, id)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "data": rec})
}

// Update handles PUT /api/data/:schemaId/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	if _, err := h.fetchRecord(c, sch, id); err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayload("Invalid JSON body")
	}

	pb := h.store.newParamBuilder()
	var sets []string
	for _, sc := range systemColumns {
		switch sc.key {
		case entity.KeyID, entity.KeyCreatedAt, entity.KeyCreatedBy,
			entity.KeyUpdatedAt, entity.KeyUpdatedBy:
			continue
		}
		if v, ok := body[sc.key]; ok {
			sets = append(sets, fmt.Sprintf("%s = %s", sc.col, pb.Add(v)))
		}
	}
	for i := range sch.Fields {
		f := &sch.Fields[i]
		v, ok := body[f.Name]
		if !ok {
			continue
		}
		stored, err := valueToColumn(v)
		if err != nil {
			return apperr.InvalidPayload(err.Error())
		}
		sets = append(sets, fmt.Sprintf("%s = %s", colName(f.Name), pb.Add(stored)))
	}
	if len(sets) == 0 {
		return apperr.InvalidPayload("No updatable fields in body")
	}

	sets = append(sets, fmt.Sprintf("updated_by = %s", pb.Add(c.Get("X-User-Id"))))
	sets = append(sets, "updated_at = "+h.store.Dialect.NowExpr())

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		tableName(sch.ID), joinComma(sets), pb.Add(id))
	if _, err := Exec(c.Context(), h.store.DB, sql, pb.params...); err != nil {
		return fmt.Errorf("update %s/%s: %w", sch.ID, id, err)
	}

	rec, err := h.fetchRecord(c, sch, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": rec})
}

// Delete handles DELETE /api/data/:schemaId/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	pb := h.store.newParamBuilder()
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = %s", tableName(sch.ID), pb.Add(id))
	affected, err := Exec(c.Context(), h.store.DB, sql, pb.params...)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", sch.ID, id, err)
	}
	if affected == 0 {
		return apperr.NotFound(sch.SingularName, id)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": id}})
}

// GetSchema handles GET /api/schemas/:schemaId
func (h *Handler) GetSchema(c *fiber.Ctx) error {
	sch, err := h.resolveSchema(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": sch})
}

func (h *Handler) resolveSchema(c *fiber.Ctx) (*schema.Schema, error) {
	id := c.Params("schemaId")
	sch := h.registry.Get(id)
	if sch == nil {
		return nil, apperr.UnknownSchema(id)
	}
	return sch, nil
}

func (h *Handler) fetchRecord(c *fiber.Ctx, sch *schema.Schema, id string) (entity.Record, error) {
	pb := h.store.newParamBuilder()
	sql := fmt.Sprintf("SELECT * FROM %s WHERE id = %s", tableName(sch.ID), pb.Add(id))
	row, err := QueryRow(c.Context(), h.store.DB, sql, pb.params...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound(sch.SingularName, id)
		}
		return nil, fmt.Errorf("fetch %s/%s: %w", sch.ID, id, err)
	}
	return rowToRecord(sch, row), nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
