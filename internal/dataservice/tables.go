package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

// System columns present on every data table, keyed by record attribute.
var systemColumns = []struct {
	key string
	col string
}{
	{entity.KeyID, "id"},
	{entity.KeyCompanyID, "company_id"},
	{entity.KeyParent, "parent"},
	{entity.KeyStatus, "status"},
	{entity.KeyAssignedTo, "assigned_to"},
	{entity.KeyCreatedAt, "created_at"},
	{entity.KeyCreatedBy, "created_by"},
	{entity.KeyUpdatedAt, "updated_at"},
	{entity.KeyUpdatedBy, "updated_by"},
}

func systemColumn(key string) string {
	for _, sc := range systemColumns {
		if sc.key == key {
			return sc.col
		}
	}
	return ""
}

func tableName(schemaID string) string {
	return "data_" + sanitize(schemaID)
}

// colName prefixes field columns so schema-declared names can never
// collide with system columns or SQL keywords.
func colName(fieldName string) string {
	return "f_" + sanitize(fieldName)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EnsureTables creates (or extends) one data table per registered schema.
// Existing tables get missing field columns added; nothing is dropped.
func (s *Store) EnsureTables(ctx context.Context, reg *schema.Registry) error {
	for _, sch := range reg.All() {
		if err := s.ensureTable(ctx, sch); err != nil {
			return fmt.Errorf("ensure table for %s: %w", sch.ID, err)
		}
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context, sch *schema.Schema) error {
	table := tableName(sch.ID)
	tsType := s.Dialect.ColumnType(schema.ComponentDate)

	exists, err := s.Dialect.TableExists(ctx, s.DB, table)
	if err != nil {
		return err
	}

	if !exists {
		cols := []string{
			"id TEXT PRIMARY KEY",
			"company_id TEXT",
			"parent TEXT",
			"status TEXT",
			"assigned_to TEXT",
			"created_at " + tsType,
			"created_by TEXT",
			"updated_at " + tsType,
			"updated_by TEXT",
		}
		for i := range sch.Fields {
			f := &sch.Fields[i]
			cols = append(cols, fmt.Sprintf("%s %s", colName(f.Name), s.Dialect.ColumnType(f.Component)))
		}
		ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", "))
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		log.Printf("Created table %s (%d field columns)", table, len(sch.Fields))
		return nil
	}

	existing, err := s.Dialect.GetColumns(ctx, s.DB, table)
	if err != nil {
		return err
	}
	for i := range sch.Fields {
		f := &sch.Fields[i]
		col := colName(f.Name)
		if existing[col] {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col, s.Dialect.ColumnType(f.Component))
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
		log.Printf("Added column %s.%s", table, col)
	}
	return nil
}

// rowToRecord maps a database row back to the wire-shaped record.
func rowToRecord(sch *schema.Schema, row map[string]any) entity.Record {
	rec := make(entity.Record, len(row))
	for _, sc := range systemColumns {
		if v, ok := row[sc.col]; ok && v != nil {
			rec[sc.key] = v
		}
	}
	for i := range sch.Fields {
		f := &sch.Fields[i]
		v, ok := row[colName(f.Name)]
		if !ok || v == nil {
			continue
		}
		rec[f.Name] = columnToValue(f, v)
	}
	return rec
}

func columnToValue(f *schema.Field, v any) any {
	switch f.Component {
	case schema.ComponentMultiSelect, schema.ComponentFile, schema.ComponentRelation:
		if s, ok := v.(string); ok && s != "" {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
		}
	case schema.ComponentCheckbox:
		switch n := v.(type) {
		case int64:
			return n != 0
		case float64:
			return n != 0
		}
	}
	return v
}

// valueToColumn prepares a field value for storage: composite values are
// serialized to JSON text, scalars pass through.
func valueToColumn(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field value: %w", err)
		}
		return string(b), nil
	}
}
