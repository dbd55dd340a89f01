package value

import "errors"

// Sentinel errors for the value package, checked with errors.Is().
var (
	// ErrNotFinite is returned when a float literal or construction would
	// produce NaN or an infinity, neither of which is representable.
	ErrNotFinite = errors.New("value: not a finite float")

	// ErrOutOfRange is returned when an integer literal does not fit in
	// signed 32 bits.
	ErrOutOfRange = errors.New("value: integer out of 32-bit range")

	// ErrBadColor is returned when a color literal is not a recognised
	// #RRGGBB / #RRGGBBAA form or a known named color.
	ErrBadColor = errors.New("value: invalid color literal")

	// ErrBadLiteral is returned for any other malformed literal.
	ErrBadLiteral = errors.New("value: invalid literal")

	// ErrTypeMismatch is returned by Compare and Equal when the two
	// operands are not comparable under the spec's typing rules.
	ErrTypeMismatch = errors.New("value: type mismatch")
)
