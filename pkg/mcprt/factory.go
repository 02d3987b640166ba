package mcprt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pgmcp/internal/paramschema"
	"github.com/hazyhaar/pgmcp/internal/sqlparams"
)

// UnknownTypeName marks a column whose type identifier the resolver did not
// cover. The raw identifier is still carried alongside.
const UnknownTypeName = "unknown"

// ColumnInfo is one column descriptor in a formatted execution result.
type ColumnInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	TypeOID  uint32 `json:"type_oid"`
}

// ExecutionResult is the formatted answer of one tool invocation.
type ExecutionResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Columns  []ColumnInfo     `json:"columns"`
}

// StageFunc receives progress markers as a handler advances. May be nil.
type StageFunc func(stage string)

// Handler executes one invocation of a SQL-backed tool.
type Handler func(ctx context.Context, input map[string]any, stage StageFunc) (*ExecutionResult, error)

// NewHandler builds the executable handler for a definition: validate input
// (aggregating every field error), map named values to positional slots,
// execute, resolve column type names, format. The exact same path serves
// saved tools and ad-hoc queries; the latter just synthesize a definition on
// the fly.
func NewHandler(exec Executor, def *ToolDefinition) Handler {
	validator := paramschema.NewValidator(def.ParameterSchema)
	order := append([]string(nil), def.ParameterOrder...)
	prepared := def.SQLPrepared

	return func(ctx context.Context, input map[string]any, stage StageFunc) (*ExecutionResult, error) {
		report := func(s string) {
			if stage != nil {
				stage(s)
			}
		}

		report("validating input")
		coerced, fieldErrs := validator.Validate(input)
		if len(fieldErrs) > 0 {
			return nil, &ValidationError{Fields: fieldErrs}
		}

		args := sqlparams.PositionalValues(coerced, order)

		report("executing query")
		result, err := exec.Query(ctx, prepared, args)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}

		report("resolving type names")
		names := resolveColumnTypes(ctx, exec, result.Columns)

		cols := make([]ColumnInfo, len(result.Columns))
		for i, c := range result.Columns {
			typeName, ok := names[c.TypeOID]
			if !ok {
				typeName = UnknownTypeName
			}
			cols[i] = ColumnInfo{Name: c.Name, TypeName: typeName, TypeOID: c.TypeOID}
		}

		rows := result.Rows
		if rows == nil {
			rows = []map[string]any{}
		}
		return &ExecutionResult{Rows: rows, RowCount: result.RowCount, Columns: cols}, nil
	}
}

// resolveColumnTypes asks the executor for the distinct type identifiers in
// cols. A resolver failure is a shortfall, not an execution failure: the
// result degrades to the unknown marker.
func resolveColumnTypes(ctx context.Context, exec Executor, cols []Column) map[uint32]string {
	seen := make(map[uint32]bool, len(cols))
	var oids []uint32
	for _, c := range cols {
		if !seen[c.TypeOID] {
			seen[c.TypeOID] = true
			oids = append(oids, c.TypeOID)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	names, err := exec.ResolveTypeNames(ctx, oids)
	if err != nil {
		slog.Warn("type name resolution failed", "error", err)
		return nil
	}
	return names
}
