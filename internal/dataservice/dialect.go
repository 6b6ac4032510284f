package dataservice

import (
	"context"
	"database/sql"
	"fmt"

	"metagrid/internal/schema"
)

// Dialect abstracts the SQL differences between the two supported engines.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string
	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string
	// Placeholder returns the parameter placeholder for a 1-based index.
	Placeholder(index int) string
	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string
	// ColumnType maps a component kind to the DDL column type.
	ColumnType(kind schema.ComponentKind) string
	// CaseInsensitiveLike returns the operator for case-insensitive matching.
	CaseInsensitiveLike() string
	// TableExists checks whether a table exists.
	TableExists(ctx context.Context, db *sql.DB, table string) (bool, error)
	// GetColumns returns the existing column names of a table.
	GetColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error)
}

func NewDialect(driver string) Dialect {
	if driver == "sqlite" {
		return sqliteDialect{}
	}
	return postgresDialect{}
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }
func (postgresDialect) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}
func (postgresDialect) NowExpr() string             { return "NOW()" }
func (postgresDialect) CaseInsensitiveLike() string { return "ILIKE" }

func (postgresDialect) ColumnType(kind schema.ComponentKind) string {
	switch kind {
	case schema.ComponentNumber, schema.ComponentRating:
		return "NUMERIC"
	case schema.ComponentCheckbox:
		return "BOOLEAN"
	case schema.ComponentDate:
		return "TIMESTAMPTZ"
	case schema.ComponentMultiSelect, schema.ComponentFile, schema.ComponentRelation:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (postgresDialect) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).
		Scan(&exists)
	return exists, err
}

func (postgresDialect) GetColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = $1", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string              { return "sqlite" }
func (sqliteDialect) DriverName() string        { return "sqlite" }
func (sqliteDialect) Placeholder(i int) string  { return "?" }
func (sqliteDialect) NowExpr() string           { return "CURRENT_TIMESTAMP" }
func (sqliteDialect) CaseInsensitiveLike() string { return "LIKE" }

func (sqliteDialect) ColumnType(kind schema.ComponentKind) string {
	switch kind {
	case schema.ComponentNumber, schema.ComponentRating:
		return "NUMERIC"
	case schema.ComponentCheckbox:
		return "INTEGER"
	default:
		// SQLite stores timestamps and JSON payloads as TEXT.
		return "TEXT"
	}
}

func (sqliteDialect) TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (sqliteDialect) GetColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// paramBuilder collects values and emits dialect-correct placeholders.
type paramBuilder struct {
	dialect Dialect
	params  []any
}

func (p *paramBuilder) Add(v any) string {
	p.params = append(p.params, v)
	return p.dialect.Placeholder(len(p.params))
}
