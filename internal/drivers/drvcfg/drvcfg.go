// Package drvcfg holds the small config-table helpers every built-in
// driver (internal/drivers/*) needs to turn its `cfg` sub-table (spec
// §6, a map[string]any decoded from YAML) into typed value.Value
// instances and scalars. Grounded directly on spec §4.4/§6 — no pack
// library models "an untyped config map keyed by driver-declared output
// type", so this is hand-written conversion code rather than a wired
// dependency.
package drvcfg

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/value"
)

// TagFromString maps a driver config's "type" field to a value.Tag.
func TagFromString(s string) (value.Tag, error) {
	switch s {
	case "bool":
		return value.TagBool, nil
	case "int":
		return value.TagInt32, nil
	case "float":
		return value.TagFloat64, nil
	case "str":
		return value.TagStr, nil
	case "color":
		return value.TagColor, nil
	default:
		return 0, fmt.Errorf("drvcfg: unknown type %q", s)
	}
}

// Literal converts a cfg-table scalar (as decoded from YAML: bool, int,
// float64, or string) into a value.Value of the given declared tag.
// Numeric literals given as native YAML ints/floats are accepted
// directly; int, float and color literals may also be given as a
// string, parsed via value.ParseInt/ParseFloat/ParseColor. A bool must
// be a native YAML bool, and a str or color must be a string.
func Literal(tag value.Tag, raw any) (value.Value, error) {
	switch tag {
	case value.TagBool:
		if b, ok := raw.(bool); ok {
			return value.Bool(b), nil
		}
		return nil, fmt.Errorf("drvcfg: expected bool, got %T", raw)

	case value.TagInt32:
		switch n := raw.(type) {
		case int:
			return value.Int32(n), nil
		case int64:
			return value.Int32(n), nil
		case string:
			return value.ParseInt(n)
		default:
			return nil, fmt.Errorf("drvcfg: expected int, got %T", raw)
		}

	case value.TagFloat64:
		switch n := raw.(type) {
		case float64:
			return value.ParseFloat(fmt.Sprintf("%g", n))
		case int:
			return value.Float64(float64(n)), nil
		case string:
			return value.ParseFloat(n)
		default:
			return nil, fmt.Errorf("drvcfg: expected float, got %T", raw)
		}

	case value.TagStr:
		if s, ok := raw.(string); ok {
			return value.Str(s), nil
		}
		return nil, fmt.Errorf("drvcfg: expected str, got %T", raw)

	case value.TagColor:
		if s, ok := raw.(string); ok {
			return value.ParseColor(s)
		}
		return nil, fmt.Errorf("drvcfg: expected color string, got %T", raw)

	default:
		return nil, fmt.Errorf("drvcfg: unsupported tag %v", tag)
	}
}

// String reads a required string field.
func String(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("drvcfg: missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("drvcfg: field %q must be a string, got %T", key, v)
	}
	return s, nil
}

// StringOr reads an optional string field, falling back to def.
func StringOr(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int reads a required integer field (YAML decodes bare integers as
// Go int).
func Int(cfg map[string]any, key string) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, fmt.Errorf("drvcfg: missing required field %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("drvcfg: field %q must be an int, got %T", key, v)
	}
}

// IntOr reads an optional integer field, falling back to def.
func IntOr(cfg map[string]any, key string, def int) int {
	if n, err := Int(cfg, key); err == nil {
		return n
	}
	return def
}

// Slice reads a required list field (YAML decodes sequences as
// []any).
func Slice(cfg map[string]any, key string) ([]any, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, fmt.Errorf("drvcfg: missing required field %q", key)
	}
	s, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("drvcfg: field %q must be a list, got %T", key, v)
	}
	return s, nil
}

// Map converts a list element (expected map[string]any, the shape YAML
// gives a nested mapping) or returns an error.
func Map(elem any) (map[string]any, error) {
	m, ok := elem.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("drvcfg: expected a mapping, got %T", elem)
	}
	return m, nil
}
