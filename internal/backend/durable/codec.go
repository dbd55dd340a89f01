package durable

import (
	"fmt"

	"github.com/nerrad567/drmemd/internal/value"
)

// encode renders v to the text form stored in latest_readings.value.
// Each variant's own String() is already a faithful, parseable
// representation (decimal, %g, #rrggbbaa, raw text, true/false).
func encode(v value.Value) (string, error) {
	switch v.(type) {
	case value.Bool, value.Int32, value.Float64, value.Str, value.Color:
		return v.String(), nil
	default:
		return "", fmt.Errorf("durable: array variants are not persisted, got %v", v.Kind())
	}
}

// decode parses s back into the variant named by tag.
func decode(tag value.Tag, s string) (value.Value, error) {
	switch tag {
	case value.TagBool:
		switch s {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		default:
			return nil, fmt.Errorf("durable: invalid stored bool %q", s)
		}
	case value.TagInt32:
		return value.ParseInt(s)
	case value.TagFloat64:
		return value.ParseFloat(s)
	case value.TagStr:
		return value.Str(s), nil
	case value.TagColor:
		return value.ParseColor(s)
	default:
		return nil, fmt.Errorf("durable: unsupported stored type %v", tag)
	}
}
