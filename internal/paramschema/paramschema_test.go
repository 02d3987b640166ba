package paramschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidSchema(t *testing.T) {
	tests := []struct {
		name      string
		candidate any
		want      bool
	}{
		{"nil", nil, false},
		{"bare string", "string", false},
		{"number", 42, false},
		{"array", []any{"a"}, false},
		{"empty object", map[string]any{}, true},
		{"object without properties", map[string]any{"type": "object"}, true},
		{
			"well-formed properties",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_id": map[string]any{"type": "integer"},
				},
			},
			true,
		},
		{
			"unknown type vocabulary is still structurally valid",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"blob": map[string]any{"type": "geometry"},
				},
			},
			true,
		},
		{"non-string top-level type", map[string]any{"type": 7}, false},
		{
			"non-string property type",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{"type": 7},
				},
			},
			false,
		},
		{
			"property that is not an object",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"x": "string"},
			},
			false,
		},
		{
			"properties that is not an object",
			map[string]any{"type": "object", "properties": []any{}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidSchema(tt.candidate))
		})
	}
}

func userSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_id": map[string]any{"type": "integer", "description": "User ID"},
			"name":    map[string]any{"type": "string"},
			"active":  map[string]any{"type": "boolean", "default": true},
			"limit":   map[string]any{"type": "integer", "default": float64(20)},
		},
		"required": []any{"user_id", "name"},
	}
}

func TestValidateMissingRequired(t *testing.T) {
	v := NewValidator(userSchema())

	_, errs := v.Validate(map[string]any{})
	require.Len(t, errs, 2)
	fields := []string{errs[0].Field, errs[1].Field}
	assert.Contains(t, fields, "user_id")
	assert.Contains(t, fields, "name")
	assert.Contains(t, errs[0].Message, "required")
}

func TestValidateDefaultsAndCoercion(t *testing.T) {
	v := NewValidator(userSchema())

	out, errs := v.Validate(map[string]any{
		"user_id": float64(42), // JSON numbers decode as float64
		"name":    "ada",
	})
	require.Empty(t, errs)
	assert.Equal(t, int64(42), out["user_id"])
	assert.Equal(t, "ada", out["name"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, float64(20), out["limit"])
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	v := NewValidator(userSchema())

	_, errs := v.Validate(map[string]any{
		"user_id": "not-a-number",
		"name":    7,
		"active":  "yes",
	})
	require.Len(t, errs, 3)
}

func TestValidateNonWholeInteger(t *testing.T) {
	v := NewValidator(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n": map[string]any{"type": "integer"},
		},
		"required": []any{"n"},
	})

	_, errs := v.Validate(map[string]any{"n": 1.5})
	require.Len(t, errs, 1)
	assert.Equal(t, "n", errs[0].Field)
}

func TestValidateArrayItems(t *testing.T) {
	v := NewValidator(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"anything": map[string]any{"type": "array"},
		},
	})

	out, errs := v.Validate(map[string]any{
		"tags":     []any{"a", "b"},
		"anything": []any{"x", float64(1), true},
	})
	require.Empty(t, errs)
	assert.Equal(t, []any{"a", "b"}, out["tags"])

	_, errs = v.Validate(map[string]any{"tags": []any{"a", float64(2)}})
	require.Len(t, errs, 1)
	assert.Equal(t, "tags[1]", errs[0].Field)
}

func TestValidateUnknownTypePassthrough(t *testing.T) {
	v := NewValidator(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"geom": map[string]any{"type": "geometry"},
		},
		"required": []any{"geom"},
	})

	out, errs := v.Validate(map[string]any{"geom": map[string]any{"x": 1}})
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"x": 1}, out["geom"])
}

func TestValidateUndeclaredKeysPassThrough(t *testing.T) {
	v := NewValidator(map[string]any{"type": "object", "properties": map[string]any{}})

	out, errs := v.Validate(map[string]any{"extra": "kept"})
	require.Empty(t, errs)
	assert.Equal(t, "kept", out["extra"])
}

func TestValidateNilSchemaPassesEverything(t *testing.T) {
	v := NewValidator(nil)

	out, errs := v.Validate(map[string]any{"a": 1, "b": "x"})
	require.Empty(t, errs)
	assert.Len(t, out, 2)
}

func TestFieldValidatorsNonObjectSchema(t *testing.T) {
	assert.Empty(t, FieldValidators(map[string]any{"type": "string"}))
	assert.Empty(t, FieldValidators(map[string]any{"type": "object"}))
	assert.Empty(t, FieldValidators(nil))
}

func TestFieldValidatorsRequiredWithDefault(t *testing.T) {
	fields := FieldValidators(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "default": float64(10)},
		},
		"required": []any{"limit"},
	})
	require.Contains(t, fields, "limit")
	assert.False(t, fields["limit"].Required)
	assert.True(t, fields["limit"].HasDefault)
}
