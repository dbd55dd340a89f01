package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// namedColors is the fixed set of named colors the logic grammar accepts.
// Alpha defaults to 255 for all of them.
var namedColors = map[string]Color{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
}

// ParseInt parses a signed decimal integer literal, rejecting anything
// outside the 32-bit range per the spec's int variant.
func ParseInt(s string) (Int32, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLiteral, s)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	return Int32(n), nil
}

// ParseFloat parses a float literal, rejecting NaN and infinities.
func ParseFloat(s string) (Float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLiteral, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotFinite, s)
	}
	return Float64(f), nil
}

// ParseColor parses "#RRGGBB", "#RRGGBBAA", or a named color. Alpha
// defaults to 255 when unspecified.
func ParseColor(s string) (Color, error) {
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		switch len(hex) {
		case 6, 8:
			b, err := parseHexBytes(hex)
			if err != nil {
				return Color{}, err
			}
			c := Color{R: b[0], G: b[1], B: b[2], A: 255}
			if len(b) == 4 {
				c.A = b[3]
			}
			return c, nil
		default:
			return Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
	}
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	return Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
}

func parseHexBytes(hex string) ([]byte, error) {
	out := make([]byte, len(hex)/2)
	for i := range out {
		n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadColor, hex)
		}
		out[i] = byte(n)
	}
	return out, nil
}
