package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DefaultSchema is assumed whenever a caller omits the schema name.
const DefaultSchema = "public"

// ErrNoObject marks a describe/list target that does not exist, as opposed to
// one that exists but is empty.
var ErrNoObject = errors.New("object does not exist")

// ColumnDescription is one column of a table or view.
type ColumnDescription struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default,omitempty"`
}

// TableDescription is the structured answer of describe_table.
type TableDescription struct {
	Schema  string              `json:"schema"`
	Name    string              `json:"name"`
	Columns []ColumnDescription `json:"columns"`
}

// ViewDescription is the structured answer of describe_view.
type ViewDescription struct {
	Schema     string              `json:"schema"`
	Name       string              `json:"name"`
	Columns    []ColumnDescription `json:"columns"`
	Definition string              `json:"definition"`
}

// ListSchemas returns every schema name, sorted.
func (db *DB) ListSchemas(ctx context.Context) ([]string, error) {
	return db.stringList(ctx,
		"SELECT schema_name FROM information_schema.schemata ORDER BY schema_name")
}

// ListTables returns the base table names of one schema, sorted. An unknown
// schema yields an empty list, which is a valid empty result.
func (db *DB) ListTables(ctx context.Context, schema string) ([]string, error) {
	return db.stringList(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`, schema)
}

// ListViews returns the view names of one schema, sorted.
func (db *DB) ListViews(ctx context.Context, schema string) ([]string, error) {
	return db.stringList(ctx,
		`SELECT table_name FROM information_schema.views
		 WHERE table_schema = $1
		 ORDER BY table_name`, schema)
}

// DescribeTable returns the column layout of one table. Describing a table
// that does not exist is ErrNoObject, not an empty description.
func (db *DB) DescribeTable(ctx context.Context, schema, table string) (*TableDescription, error) {
	cols, err := db.columns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s", ErrNoObject, schema, table)
	}
	return &TableDescription{Schema: schema, Name: table, Columns: cols}, nil
}

// DescribeView returns the column layout and definition of one view.
func (db *DB) DescribeView(ctx context.Context, schema, view string) (*ViewDescription, error) {
	var definition *string
	err := db.pool.QueryRow(ctx,
		`SELECT view_definition FROM information_schema.views
		 WHERE table_schema = $1 AND table_name = $2`, schema, view).Scan(&definition)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: view %s.%s", ErrNoObject, schema, view)
		}
		return nil, fmt.Errorf("querying view definition: %w", err)
	}

	cols, err := db.columns(ctx, schema, view)
	if err != nil {
		return nil, err
	}

	desc := &ViewDescription{Schema: schema, Name: view, Columns: cols}
	if definition != nil {
		desc.Definition = *definition
	}
	return desc, nil
}

func (db *DB) columns(ctx context.Context, schema, relation string) ([]ColumnDescription, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schema, relation)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var out []ColumnDescription
	for rows.Next() {
		var c ColumnDescription
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &c.Default); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		c.Nullable = nullable == "YES"
		out = append(out, c)
	}
	return out, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (db *DB) stringList(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
