// Package value implements the tagged value type shared by every other
// component: the backend, the driver runtime, and the logic engine all
// exchange readings and settings as a value.Value.
package value

import "fmt"

// Tag identifies which variant a Value holds.
type Tag int

const (
	TagBool Tag = iota
	TagInt32
	TagFloat64
	TagStr
	TagColor
	TagBoolArray
	TagInt32Array
	TagFloat64Array
	TagStrArray
)

// String renders a tag for diagnostics.
func (t Tag) String() string {
	switch t {
	case TagBool:
		return "bool"
	case TagInt32:
		return "int"
	case TagFloat64:
		return "float"
	case TagStr:
		return "str"
	case TagColor:
		return "color"
	case TagBoolArray:
		return "[bool]"
	case TagInt32Array:
		return "[int]"
	case TagFloat64Array:
		return "[float]"
	case TagStrArray:
		return "[str]"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the variants the spec defines. Concrete
// types below are the only implementations; callers type-switch or use
// Kind() to discriminate.
type Value interface {
	Kind() Tag
	String() string
}

// Bool is the boolean variant.
type Bool bool

func (v Bool) Kind() Tag    { return TagBool }
func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}

// Int32 is the 32-bit signed integer variant.
type Int32 int32

func (v Int32) Kind() Tag      { return TagInt32 }
func (v Int32) String() string { return fmt.Sprintf("%d", int32(v)) }

// Float64 is the finite-only 64-bit float variant. The construction
// helper ParseFloat rejects NaN and ±Inf; a Float64 built directly
// with a non-finite value is a caller bug, not a representable state.
type Float64 float64

func (v Float64) Kind() Tag      { return TagFloat64 }
func (v Float64) String() string { return fmt.Sprintf("%g", float64(v)) }

// Str is the UTF-8 string variant.
type Str string

func (v Str) Kind() Tag      { return TagStr }
func (v Str) String() string { return string(v) }

// Color is linear-sRGB with 8-bit alpha.
type Color struct {
	R, G, B, A uint8
}

func (v Color) Kind() Tag { return TagColor }
func (v Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", v.R, v.G, v.B, v.A)
}

// BoolArray, Int32Array, Float64Array, StrArray are homogeneous array
// variants. The spec reserves these in the wire format; the logic engine
// does not reference them in the current scope.
type BoolArray []bool
type Int32Array []int32
type Float64Array []float64
type StrArray []string

func (v BoolArray) Kind() Tag      { return TagBoolArray }
func (v BoolArray) String() string { return fmt.Sprintf("%v", []bool(v)) }

func (v Int32Array) Kind() Tag      { return TagInt32Array }
func (v Int32Array) String() string { return fmt.Sprintf("%v", []int32(v)) }

func (v Float64Array) Kind() Tag      { return TagFloat64Array }
func (v Float64Array) String() string { return fmt.Sprintf("%v", []float64(v)) }

func (v StrArray) Kind() Tag      { return TagStrArray }
func (v StrArray) String() string { return fmt.Sprintf("%v", []string(v)) }

// SameType reports whether a and b carry the same variant tag.
func SameType(a, b Value) bool {
	return a.Kind() == b.Kind()
}
