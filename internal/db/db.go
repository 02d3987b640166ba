// Package db wraps a pgx connection pool as the query executor: it runs SQL
// with positional arguments, reports column metadata with PostgreSQL type
// OIDs, resolves OIDs to type names, and answers catalog introspection.
// Statement timeouts and connection limits belong to the pool configuration,
// not to the callers.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazyhaar/pgmcp/pkg/mcprt"
)

// DB is a pooled PostgreSQL handle. Safe for concurrent use.
type DB struct {
	pool *pgxpool.Pool
}

// Open parses connString, applies maxConns when positive, and pings before
// returning.
func Open(ctx context.Context, connString string, maxConns int) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// ServerVersion returns the server's version string, used as a startup
// connectivity preflight.
func (db *DB) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := db.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}
	return version, nil
}

// Query executes sql with positional args and returns the rows verbatim plus
// column metadata. []byte values (bytea and friends) are rendered as strings
// so results stay JSON-serializable.
func (db *DB) Query(ctx context.Context, sql string, args []any) (*mcprt.QueryResult, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		db.record(ctx, sql, time.Since(start), err)
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]mcprt.Column, len(fds))
	for i, fd := range fds {
		cols[i] = mcprt.Column{Name: fd.Name, TypeOID: fd.DataTypeOID}
	}

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			db.record(ctx, sql, time.Since(start), err)
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[cols[i].Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		db.record(ctx, sql, time.Since(start), err)
		return nil, err
	}

	db.record(ctx, sql, time.Since(start), nil)
	return &mcprt.QueryResult{Rows: out, RowCount: len(out), Columns: cols}, nil
}

// ResolveTypeNames maps type OIDs to pg_type names. OIDs with no catalog
// entry are simply absent from the result.
func (db *DB) ResolveTypeNames(ctx context.Context, oids []uint32) (map[uint32]string, error) {
	if len(oids) == 0 {
		return map[uint32]string{}, nil
	}
	rows, err := db.pool.Query(ctx, "SELECT oid, typname FROM pg_type WHERE oid = ANY($1)", oids)
	if err != nil {
		return nil, fmt.Errorf("querying pg_type: %w", err)
	}
	defer rows.Close()

	out := make(map[uint32]string, len(oids))
	for rows.Next() {
		var oid uint32
		var name string
		if err := rows.Scan(&oid, &name); err != nil {
			return nil, fmt.Errorf("scanning pg_type row: %w", err)
		}
		out[oid] = name
	}
	return out, rows.Err()
}

// record logs SQL timing: Debug normally, Warn past 100ms, Error on failure.
func (db *DB) record(ctx context.Context, sql string, d time.Duration, err error) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	} else if d > 100*time.Millisecond {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("component", "sql"),
		slog.String("query", sql),
		slog.Duration("duration", d),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.LogAttrs(ctx, level, "SQL", attrs...)
}
