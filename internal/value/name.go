package value

import (
	"fmt"
	"strings"
)

// Name is a device name: a non-empty sequence of colon-separated segments,
// each matching [A-Za-z0-9][A-Za-z0-9-]*. Names are globally unique and
// immutable for the lifetime of a process.
type Name string

// ParseName validates s against the device-name grammar.
func ParseName(s string) (Name, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty device name", ErrBadLiteral)
	}
	segs := strings.Split(s, ":")
	for _, seg := range segs {
		if !validSegment(seg) {
			return "", fmt.Errorf("%w: invalid segment %q in %q", ErrBadLiteral, seg, s)
		}
	}
	return Name(s), nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for i, r := range seg {
		alnum := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if i == 0 {
			if !alnum {
				return false
			}
			continue
		}
		if !alnum && r != '-' {
			return false
		}
	}
	return true
}

// Join appends a leaf segment to a driver instance prefix, producing the
// name of a device that driver owns.
func (n Name) Join(leaf string) Name {
	return Name(string(n) + ":" + leaf)
}

func (n Name) String() string { return string(n) }
