// Package mcprt is the dynamic tool runtime: it persists parameterized query
// definitions as files, registers them as live MCP tools, and executes them
// against a pooled query executor.
package mcprt

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/hazyhaar/pgmcp/internal/paramschema"
)

// ToolDefinition is the persisted record fully describing one saved query
// tool. SQLPrepared and ParameterOrder are derived from SQLTemplate on every
// save; they are never edited independently.
type ToolDefinition struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	SQLTemplate     string         `json:"sql_template"`
	SQLPrepared     string         `json:"sql_prepared"`
	ParameterSchema map[string]any `json:"parameter_schema"`
	ParameterOrder  []string       `json:"parameter_order"`
}

// Column is one output column as reported by the executor.
type Column struct {
	Name    string
	TypeOID uint32
}

// QueryResult is the executor's raw answer: rows verbatim, a count, and
// column metadata carrying the database's type identifiers.
type QueryResult struct {
	Rows     []map[string]any
	RowCount int
	Columns  []Column
}

// Executor runs SQL with positional arguments and resolves type identifiers
// to names. Implemented by internal/db over a pgx pool; tests substitute
// fakes. Both methods must be safe for concurrent use.
type Executor interface {
	Query(ctx context.Context, sql string, args []any) (*QueryResult, error)
	ResolveTypeNames(ctx context.Context, oids []uint32) (map[uint32]string, error)
}

var (
	// ErrNotFound is returned for lifecycle operations against a name the
	// registry does not currently hold.
	ErrNotFound = errors.New("tool not found")
	// ErrExists is returned by a save without overwrite against a live name.
	ErrExists = errors.New("tool already exists")
	// ErrProtected is returned for delete or save attempts against built-in
	// tool names.
	ErrProtected = errors.New("tool name is protected")
	// ErrCorrupt marks a persisted record that exists but fails structural
	// validation, as opposed to one that is simply absent.
	ErrCorrupt = errors.New("stored tool definition is corrupt")
)

// ValidationError aggregates every failing field of one invocation so the
// caller can fix a multi-field submission in a single round trip.
type ValidationError struct {
	Fields []paramschema.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		msgs[i] = fe.Error()
	}
	return "invalid parameters: " + strings.Join(msgs, "; ")
}

var (
	toolNameRe  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	paramNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidToolName reports whether name is lowercase snake_case starting with a
// letter, the shape required of every saved tool name.
func ValidToolName(name string) bool {
	return toolNameRe.MatchString(name)
}
