package dataservice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"metagrid/internal/apperr"
	"metagrid/internal/schema"
)

func storeSchema() *schema.Schema {
	return &schema.Schema{
		ID:           "tasks",
		SingularName: "Task",
		Fields: []schema.Field{
			{ID: "f1", Name: "title", Label: "Title", Role: schema.RoleTitle, Component: schema.ComponentText},
			{ID: "f2", Name: "priority", Label: "Priority", Component: schema.ComponentSelect},
			{ID: "f3", Name: "estimate", Label: "Estimate", Component: schema.ComponentNumber},
			{ID: "f4", Name: "tags", Label: "Tags", Component: schema.ComponentMultiSelect},
		},
	}
}

// planFor runs parseListQuery against a real request context.
func planFor(t *testing.T, rawQuery string) (*listPlan, error) {
	t.Helper()
	var plan *listPlan
	var planErr error
	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		plan, planErr = parseListQuery(c, storeSchema())
		return nil
	})
	req, _ := http.NewRequest("GET", "/t?"+rawQuery, nil)
	if _, err := app.Test(req, -1); err != nil {
		t.Fatalf("test request: %v", err)
	}
	return plan, planErr
}

func TestParseListQuery_Defaults(t *testing.T) {
	plan, err := planFor(t, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if plan.page != 1 || plan.limit != 25 || plan.all {
		t.Fatalf("unexpected defaults %+v", plan)
	}
}

func TestParseListQuery_UnknownFilterFieldIs400(t *testing.T) {
	_, err := planFor(t, "bogus=x")
	if err == nil {
		t.Fatal("expected error for unknown filter field")
	}
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNKNOWN_FIELD" || appErr.Status != 400 {
		t.Fatalf("expected 400 UNKNOWN_FIELD, got %v", err)
	}
}

func TestParseListQuery_UnsortableFieldIs400(t *testing.T) {
	_, err := planFor(t, "sort=tags")
	if err == nil {
		t.Fatal("expected error for unsortable sort field")
	}
}

func TestParseListQuery_SortSpec(t *testing.T) {
	plan, err := planFor(t, "sort=-createdAt,title")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(plan.sorts) != 2 {
		t.Fatalf("expected 2 sort clauses, got %+v", plan.sorts)
	}
	if plan.sorts[0].col != "created_at" || plan.sorts[0].dir != "DESC" {
		t.Fatalf("unexpected first clause %+v", plan.sorts[0])
	}
	if plan.sorts[1].col != "f_title" || plan.sorts[1].dir != "ASC" {
		t.Fatalf("unexpected second clause %+v", plan.sorts[1])
	}
}

func TestParseListQuery_FilterCoercion(t *testing.T) {
	plan, err := planFor(t, "estimate=3.5&priority=high&status=open")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	byCol := map[string]any{}
	for _, f := range plan.filters {
		byCol[f.col] = f.value
	}
	if byCol["f_estimate"] != 3.5 {
		t.Fatalf("expected numeric coercion, got %v (%T)", byCol["f_estimate"], byCol["f_estimate"])
	}
	if byCol["f_priority"] != "high" {
		t.Fatalf("expected select filter kept as string, got %v", byCol["f_priority"])
	}
	if byCol["status"] != "open" {
		t.Fatalf("expected system status filter, got %v", byCol["status"])
	}
}

func TestParseListQuery_LimitAll(t *testing.T) {
	plan, err := planFor(t, "limit=all&page=4")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !plan.all || plan.page != 4 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestBuildListSQL_SqlitePlaceholders(t *testing.T) {
	s := &Store{Dialect: sqliteDialect{}}
	plan := &listPlan{
		page: 2, limit: 25,
		search:     "inv",
		companyIDs: []string{"c1", "c2"},
		filters:    []filterClause{{col: "status", value: "open"}},
		sorts:      []orderClause{{col: "f_title", dir: "ASC"}},
	}
	sqlStr, params := s.buildListSQL(storeSchema(), plan)

	if !strings.HasPrefix(sqlStr, "SELECT * FROM data_tasks") {
		t.Fatalf("unexpected SQL %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "company_id IN (?, ?)") {
		t.Fatalf("expected company IN clause, got %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "status = ?") {
		t.Fatalf("expected status filter, got %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "LOWER(f_title) LIKE ?") {
		t.Fatalf("expected search over title, got %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "ORDER BY f_title ASC") {
		t.Fatalf("expected sort clause, got %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "LIMIT ? OFFSET ?") {
		t.Fatalf("expected pagination, got %q", sqlStr)
	}
	// limit 25 page 2 -> offset 25, appended after filters and search needle.
	if params[len(params)-2] != 25 || params[len(params)-1] != 25 {
		t.Fatalf("unexpected limit/offset params %v", params)
	}
}

func TestBuildListSQL_AllSkipsPagination(t *testing.T) {
	s := &Store{Dialect: sqliteDialect{}}
	sqlStr, _ := s.buildListSQL(storeSchema(), &listPlan{page: 1, limit: 25, all: true})
	if strings.Contains(sqlStr, "LIMIT") {
		t.Fatalf("limit=all must not paginate, got %q", sqlStr)
	}
	if !strings.Contains(sqlStr, "ORDER BY created_at DESC") {
		t.Fatalf("expected default sort, got %q", sqlStr)
	}
}

func TestBuildListSQL_PostgresPlaceholders(t *testing.T) {
	s := &Store{Dialect: postgresDialect{}}
	sqlStr, params := s.buildListSQL(storeSchema(), &listPlan{
		page: 1, limit: 10,
		filters: []filterClause{{col: "status", value: "open"}},
	})
	if !strings.Contains(sqlStr, "status = $1") {
		t.Fatalf("expected numbered placeholder, got %q", sqlStr)
	}
	if len(params) != 3 { // status, limit, offset
		t.Fatalf("expected 3 params, got %v", params)
	}
}

func TestSplitIDs(t *testing.T) {
	if got := splitIDs("a, b ,c"); len(got) != 3 || got[1] != "b" {
		t.Fatalf("unexpected split %v", got)
	}
	if got := splitIDs(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestTableAndColumnNames(t *testing.T) {
	if got := tableName("Sales Orders"); got != "data_sales_orders" {
		t.Fatalf("unexpected table name %q", got)
	}
	if got := colName("due-date"); got != "f_due_date" {
		t.Fatalf("unexpected column name %q", got)
	}
}

func TestValueToColumn(t *testing.T) {
	if v, err := valueToColumn("x"); err != nil || v != "x" {
		t.Fatalf("scalar should pass through, got %v (%v)", v, err)
	}
	v, err := valueToColumn([]any{"a", "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded []string
	if err := json.Unmarshal([]byte(v.(string)), &decoded); err != nil || len(decoded) != 2 {
		t.Fatalf("expected JSON text, got %v", v)
	}
}

func TestRowToRecord(t *testing.T) {
	sch := storeSchema()
	row := map[string]any{
		"id":         "r1",
		"company_id": "c1",
		"f_title":    "First",
		"f_tags":     `["a","b"]`,
		"f_estimate": nil,
	}
	rec := rowToRecord(sch, row)
	if rec.ID() != "r1" || rec.CompanyID() != "c1" {
		t.Fatalf("system columns not mapped: %v", rec)
	}
	if rec["title"] != "First" {
		t.Fatalf("field column not mapped: %v", rec)
	}
	tags, ok := rec["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("multiselect should decode from JSON text, got %v", rec["tags"])
	}
	if _, present := rec["estimate"]; present {
		t.Fatalf("null columns must stay absent, got %v", rec)
	}
}

func TestColumnToValue_Checkbox(t *testing.T) {
	f := &schema.Field{Name: "done", Component: schema.ComponentCheckbox}
	if v := columnToValue(f, int64(1)); v != true {
		t.Fatalf("expected true, got %v", v)
	}
	if v := columnToValue(f, int64(0)); v != false {
		t.Fatalf("expected false, got %v", v)
	}
}
