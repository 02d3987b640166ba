package mcprt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/pgmcp/internal/sqlparams"
)

// fakeExecutor records the SQL and arguments it receives and answers with
// canned results.
type fakeExecutor struct {
	lastSQL  string
	lastArgs []any

	result   *QueryResult
	queryErr error

	typeNames  map[uint32]string
	resolveErr error
}

func (f *fakeExecutor) Query(ctx context.Context, sql string, args []any) (*QueryResult, error) {
	f.lastSQL = sql
	f.lastArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &QueryResult{Rows: []map[string]any{}, RowCount: 0}, nil
}

func (f *fakeExecutor) ResolveTypeNames(ctx context.Context, oids []uint32) (map[uint32]string, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.typeNames, nil
}

func handlerDefinition(template string, schema map[string]any) *ToolDefinition {
	prepared, order := sqlparams.Parse(template)
	return &ToolDefinition{
		Name:            "test_tool",
		SQLTemplate:     template,
		SQLPrepared:     prepared,
		ParameterSchema: schema,
		ParameterOrder:  order,
	}
}

func TestHandlerFullFlow(t *testing.T) {
	exec := &fakeExecutor{
		result: &QueryResult{
			Rows:     []map[string]any{{"id": int64(7), "name": "ada"}},
			RowCount: 1,
			Columns:  []Column{{Name: "id", TypeOID: 20}, {Name: "name", TypeOID: 25}},
		},
		typeNames: map[uint32]string{20: "int8", 25: "text"},
	}
	def := handlerDefinition(
		"SELECT id, name FROM users WHERE org = :org AND age > :min_age",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"org":     map[string]any{"type": "string"},
				"min_age": map[string]any{"type": "integer", "default": float64(18)},
			},
			"required": []any{"org"},
		},
	)

	var stages []string
	result, err := NewHandler(exec, def)(context.Background(),
		map[string]any{"org": "acme"},
		func(s string) { stages = append(stages, s) })
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM users WHERE org = $1 AND age > $2", exec.lastSQL)

	// Supplied values are coerced; declared defaults apply verbatim.
	assert.Equal(t, []any{"acme", float64(18)}, exec.lastArgs)

	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, []ColumnInfo{
		{Name: "id", TypeName: "int8", TypeOID: 20},
		{Name: "name", TypeName: "text", TypeOID: 25},
	}, result.Columns)

	assert.Equal(t, []string{"validating input", "executing query", "resolving type names"}, stages)
}

func TestHandlerAggregatesValidationErrors(t *testing.T) {
	exec := &fakeExecutor{}
	def := handlerDefinition(
		"SELECT 1 WHERE a = :a AND b = :b",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "integer"},
				"b": map[string]any{"type": "string"},
			},
			"required": []any{"a", "b"},
		},
	)

	_, err := NewHandler(exec, def)(context.Background(),
		map[string]any{"a": "not a number"}, nil)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	// Validation failure never reaches the executor.
	assert.Empty(t, exec.lastSQL)
}

func TestHandlerRepeatedParameterBindsOnce(t *testing.T) {
	exec := &fakeExecutor{}
	def := handlerDefinition("SELECT * FROM t WHERE a = :x OR b = :x OR c = :y", nil)

	_, err := NewHandler(exec, def)(context.Background(),
		map[string]any{"x": "v1", "y": "v2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM t WHERE a = $1 OR b = $1 OR c = $2", exec.lastSQL)
	assert.Equal(t, []any{"v1", "v2"}, exec.lastArgs)
}

func TestHandlerUnresolvedTypesDegradeToUnknown(t *testing.T) {
	exec := &fakeExecutor{
		result: &QueryResult{
			Rows:     []map[string]any{{"v": "x"}},
			RowCount: 1,
			Columns:  []Column{{Name: "v", TypeOID: 99999}},
		},
		resolveErr: errors.New("catalog unavailable"),
	}
	def := handlerDefinition("SELECT v FROM t", nil)

	result, err := NewHandler(exec, def)(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Columns, 1)
	assert.Equal(t, UnknownTypeName, result.Columns[0].TypeName)
	assert.Equal(t, uint32(99999), result.Columns[0].TypeOID)
}

func TestHandlerPartialTypeResolution(t *testing.T) {
	exec := &fakeExecutor{
		result: &QueryResult{
			RowCount: 0,
			Columns:  []Column{{Name: "a", TypeOID: 25}, {Name: "b", TypeOID: 424242}},
		},
		typeNames: map[uint32]string{25: "text"},
	}
	def := handlerDefinition("SELECT a, b FROM t", nil)

	result, err := NewHandler(exec, def)(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "text", result.Columns[0].TypeName)
	assert.Equal(t, UnknownTypeName, result.Columns[1].TypeName)
}

func TestHandlerQueryErrorWrapped(t *testing.T) {
	base := errors.New("relation does not exist")
	exec := &fakeExecutor{queryErr: base}
	def := handlerDefinition("SELECT * FROM nope", nil)

	_, err := NewHandler(exec, def)(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "executing query")
}

func TestHandlerNilRowsBecomeEmptySlice(t *testing.T) {
	exec := &fakeExecutor{result: &QueryResult{Rows: nil, RowCount: 0}}
	def := handlerDefinition("DELETE FROM t WHERE id = :id", nil)

	result, err := NewHandler(exec, def)(context.Background(), map[string]any{"id": float64(3)}, nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
}

func TestHandlerMissingUndeclaredParameterBindsNull(t *testing.T) {
	exec := &fakeExecutor{}
	def := handlerDefinition("SELECT * FROM t WHERE a = :a AND b = :b", nil)

	_, err := NewHandler(exec, def)(context.Background(), map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	require.Len(t, exec.lastArgs, 2)
	assert.Nil(t, exec.lastArgs[1])
}
