// Package paramschema interprets JSON-Schema-shaped parameter declarations
// into runtime validators. It is a direct structural interpreter: no schema
// compilation, no generated code. Types it does not model are accepted as-is
// rather than rejected, so schema authors may use vocabulary beyond the
// validated core (string, number, integer, boolean, array).
package paramschema

import (
	"fmt"
	"math"
	"sort"
)

// FieldError describes one failed field, with the field path and the reason.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidSchema reports whether candidate is a schema object a validator can
// be built from: a non-nil map whose declared type (and the types of its
// properties, if any) are strings. Unrecognized type vocabulary is fine;
// non-object candidates, nil, and malformed type declarations are not.
func IsValidSchema(candidate any) bool {
	m, ok := candidate.(map[string]any)
	if !ok || m == nil {
		return false
	}
	if !wellFormedType(m) {
		return false
	}
	props, present := m["properties"]
	if !present {
		return true
	}
	pm, ok := props.(map[string]any)
	if !ok {
		return false
	}
	for _, p := range pm {
		ps, ok := p.(map[string]any)
		if !ok {
			return false
		}
		if !wellFormedType(ps) {
			return false
		}
	}
	return true
}

func wellFormedType(schema map[string]any) bool {
	t, present := schema["type"]
	if !present {
		return true
	}
	_, ok := t.(string)
	return ok
}

// FieldValidator checks one declared property.
type FieldValidator struct {
	Name        string
	Type        string // empty means unconstrained
	Description string
	Required    bool
	Default     any
	HasDefault  bool
	Items       *FieldValidator // element schema for arrays, nil if unconstrained
}

// FieldValidators builds one validator per declared property, keyed by
// property name. Schemas whose top-level type is not an object, or that
// declare no properties, yield an empty map: they expose no named inputs.
func FieldValidators(schema map[string]any) map[string]*FieldValidator {
	out := make(map[string]*FieldValidator)
	if schema == nil {
		return out
	}
	if t, ok := schema["type"].(string); ok && t != "object" {
		return out
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return out
	}

	required := make(map[string]bool)
	if list, ok := schema["required"].([]any); ok {
		for _, r := range list {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	for name, raw := range props {
		ps, _ := raw.(map[string]any)
		fv := &FieldValidator{Name: name}
		if ps != nil {
			fv.Type, _ = ps["type"].(string)
			fv.Description, _ = ps["description"].(string)
			if def, present := ps["default"]; present {
				fv.Default = def
				fv.HasDefault = true
			}
			if items, ok := ps["items"].(map[string]any); ok {
				it := &FieldValidator{Name: name + "[]"}
				it.Type, _ = items["type"].(string)
				fv.Items = it
			}
		}
		// A declared default always satisfies required-ness.
		fv.Required = required[name] && !fv.HasDefault
		out[name] = fv
	}
	return out
}

// Check validates a single value against the field's declared type and
// returns the coerced value. Integers arrive from JSON as float64 and are
// coerced to int64 when whole.
func (f *FieldValidator) Check(value any) (any, *FieldError) {
	switch f.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return nil, &FieldError{Field: f.Name, Message: fmt.Sprintf("expected string, got %T", value)}
		}
		return s, nil
	case "number":
		n, ok := toFloat(value)
		if !ok {
			return nil, &FieldError{Field: f.Name, Message: fmt.Sprintf("expected number, got %T", value)}
		}
		return n, nil
	case "integer":
		n, ok := toFloat(value)
		if !ok || n != math.Trunc(n) {
			return nil, &FieldError{Field: f.Name, Message: fmt.Sprintf("expected integer, got %v", value)}
		}
		return int64(n), nil
	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, &FieldError{Field: f.Name, Message: fmt.Sprintf("expected boolean, got %T", value)}
		}
		return b, nil
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return nil, &FieldError{Field: f.Name, Message: fmt.Sprintf("expected array, got %T", value)}
		}
		if f.Items == nil || f.Items.Type == "" {
			return arr, nil
		}
		coerced := make([]any, len(arr))
		for i, el := range arr {
			v, err := f.Items.Check(el)
			if err != nil {
				return nil, &FieldError{
					Field:   fmt.Sprintf("%s[%d]", f.Name, i),
					Message: err.Message,
				}
			}
			coerced[i] = v
		}
		return coerced, nil
	default:
		// Unmodeled type vocabulary: accept unvalidated.
		return value, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Validator validates a whole input object against a parameter schema.
type Validator struct {
	fields map[string]*FieldValidator
}

// NewValidator builds a Validator from a parameter schema. A nil schema
// yields a validator that passes everything through untouched.
func NewValidator(schema map[string]any) *Validator {
	return &Validator{fields: FieldValidators(schema)}
}

// Validate checks input against every declared field and returns the coerced
// values plus all field errors. Errors aggregate: a multi-field submission is
// reported in full, not cut off at the first failure. Missing fields take
// their default when one is declared, error when required, and are simply
// absent otherwise. Input keys with no declared field pass through untouched.
func (v *Validator) Validate(input map[string]any) (map[string]any, []FieldError) {
	out := make(map[string]any, len(input))
	var errs []FieldError

	for _, name := range v.fieldNames() {
		f := v.fields[name]
		value, present := input[name]
		if !present {
			if f.HasDefault {
				out[name] = f.Default
			} else if f.Required {
				errs = append(errs, FieldError{Field: name, Message: "required parameter is missing"})
			}
			continue
		}
		coerced, err := f.Check(value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		out[name] = coerced
	}

	for name, value := range input {
		if _, declared := v.fields[name]; !declared {
			out[name] = value
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// fieldNames returns declared fields in stable order so error lists are
// deterministic.
func (v *Validator) fieldNames() []string {
	names := make([]string, 0, len(v.fields))
	for name := range v.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
