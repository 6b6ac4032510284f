package dataservice

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"metagrid/internal/apperr"
	"metagrid/internal/schema"
)

// listPlan is a parsed, validated listing request.
type listPlan struct {
	search  string
	filters []filterClause
	sorts   []orderClause

	page  int
	limit int
	all   bool

	companyIDs    []string
	assignedToIDs []string
	createdByIDs  []string
}

type filterClause struct {
	col   string
	value any
}

type orderClause struct {
	col string
	dir string // ASC or DESC
}

var reservedKeys = map[string]bool{
	"search": true, "page": true, "limit": true, "sort": true,
	"companyIds": true, "assignedToIds": true, "createdByIds": true,
	"userId": true,
}

// Filterable system attributes and their columns.
var systemFilterCols = map[string]string{
	"status":    "status",
	"companyId": "company_id",
	"parent":    "parent",
}

var systemSortCols = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"status":    "status",
}

// parseListQuery validates every query parameter against the schema:
// unknown filter or sort fields are a 400, not a silent no-op.
func parseListQuery(c *fiber.Ctx, sch *schema.Schema) (*listPlan, error) {
	plan := &listPlan{page: 1, limit: 25}

	plan.search = strings.TrimSpace(c.Query("search"))
	plan.companyIDs = splitIDs(c.Query("companyIds"))
	plan.assignedToIDs = splitIDs(c.Query("assignedToIds"))
	plan.createdByIDs = splitIDs(c.Query("createdByIds"))

	for key, val := range c.Queries() {
		if reservedKeys[key] || val == "" {
			continue
		}
		if col, ok := systemFilterCols[key]; ok {
			plan.filters = append(plan.filters, filterClause{col: col, value: val})
			continue
		}
		f := sch.GetField(key)
		if f == nil {
			return nil, apperr.New("UNKNOWN_FIELD", 400,
				fmt.Sprintf("Unknown filter field: %s", key))
		}
		coerced, err := coerceFilterValue(f, val)
		if err != nil {
			return nil, apperr.New("INVALID_PAYLOAD", 400,
				fmt.Sprintf("Invalid filter value for %s: %v", key, err))
		}
		plan.filters = append(plan.filters, filterClause{col: colName(f.Name), value: coerced})
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			dir := "ASC"
			name := part
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				name = part[1:]
			}
			col, ok := systemSortCols[name]
			if !ok {
				f := sch.GetField(name)
				if f == nil {
					return nil, apperr.New("UNKNOWN_FIELD", 400,
						fmt.Sprintf("Unknown sort field: %s", name))
				}
				if !f.Component.Sortable() {
					return nil, apperr.New("INVALID_PAYLOAD", 400,
						fmt.Sprintf("Field is not sortable: %s", name))
				}
				col = colName(f.Name)
			}
			plan.sorts = append(plan.sorts, orderClause{col: col, dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.page = v
		}
	}
	switch lim := c.Query("limit"); {
	case lim == "all":
		plan.all = true
	case lim != "":
		if v, err := strconv.Atoi(lim); err == nil && v > 0 {
			plan.limit = v
		}
	}

	return plan, nil
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func coerceFilterValue(f *schema.Field, val string) (any, error) {
	switch f.Component {
	case schema.ComponentNumber, schema.ComponentRating:
		return strconv.ParseFloat(val, 64)
	case schema.ComponentCheckbox:
		return strconv.ParseBool(val)
	default:
		return val, nil
	}
}

// buildWhere assembles the shared WHERE clause for select and count.
func (s *Store) buildWhere(sch *schema.Schema, plan *listPlan, pb *paramBuilder) []string {
	var where []string

	addIn := func(col string, ids []string) {
		if len(ids) == 0 {
			return
		}
		ph := make([]string, len(ids))
		for i, id := range ids {
			ph[i] = pb.Add(id)
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")))
	}
	addIn("company_id", plan.companyIDs)
	addIn("assigned_to", plan.assignedToIDs)
	addIn("created_by", plan.createdByIDs)

	for _, f := range plan.filters {
		where = append(where, fmt.Sprintf("%s = %s", f.col, pb.Add(f.value)))
	}

	if plan.search != "" {
		needle := "%" + strings.ToLower(plan.search) + "%"
		var parts []string
		for _, col := range searchColumns(sch) {
			parts = append(parts, fmt.Sprintf("LOWER(%s) LIKE %s", col, pb.Add(needle)))
		}
		if len(parts) > 0 {
			where = append(where, "("+strings.Join(parts, " OR ")+")")
		}
	}
	return where
}

// searchColumns picks the free-text haystack: text-ish components plus any
// field carrying a display role.
func searchColumns(sch *schema.Schema) []string {
	var cols []string
	for i := range sch.Fields {
		f := &sch.Fields[i]
		switch {
		case f.Component == schema.ComponentText, f.Component == schema.ComponentTextarea:
			cols = append(cols, colName(f.Name))
		case f.Role == schema.RoleTitle, f.Role == schema.RoleSubtitle,
			f.Role == schema.RoleDescription, f.Role == schema.RoleCode:
			cols = append(cols, colName(f.Name))
		}
	}
	return cols
}

func (s *Store) buildListSQL(sch *schema.Schema, plan *listPlan) (string, []any) {
	pb := s.newParamBuilder()
	sql := "SELECT * FROM " + tableName(sch.ID)

	if where := s.buildWhere(sch, plan, pb); len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}

	if len(plan.sorts) > 0 {
		var parts []string
		for _, o := range plan.sorts {
			parts = append(parts, fmt.Sprintf("%s %s", o.col, o.dir))
		}
		sql += " ORDER BY " + strings.Join(parts, ", ")
	} else {
		sql += " ORDER BY created_at DESC"
	}

	if !plan.all {
		sql += fmt.Sprintf(" LIMIT %s OFFSET %s",
			pb.Add(plan.limit), pb.Add((plan.page-1)*plan.limit))
	}
	return sql, pb.params
}

func (s *Store) buildCountSQL(sch *schema.Schema, plan *listPlan) (string, []any) {
	pb := s.newParamBuilder()
	sql := "SELECT COUNT(*) AS count FROM " + tableName(sch.ID)
	if where := s.buildWhere(sch, plan, pb); len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql, pb.params
}
