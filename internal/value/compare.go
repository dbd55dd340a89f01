package value

import "fmt"

// Ordering is the result of Compare.
type Ordering int

const (
	Less Ordering = iota - 1
	Eq
	Greater
)

// Equal reports whether a and b hold the same value under the spec's
// typing rules: same-type equality for bool/str/color, numeric equality
// for int/float with int promoted to float when mixed. Cross-type
// comparisons outside that (e.g. bool vs str) return ErrTypeMismatch.
func Equal(a, b Value) (bool, error) {
	ord, err := compareNumericOrEqual(a, b, true)
	if err != nil {
		return false, err
	}
	return ord == Eq, nil
}

// Compare orders a and b. Only numeric variants (int/float, with int
// promoted to float when mixed) support <, <=, >, >=; other same-type
// pairs support only Equal/NotEqual via Equal above, so Compare on them
// returns ErrTypeMismatch.
func Compare(a, b Value) (Ordering, error) {
	return compareNumericOrEqual(a, b, false)
}

func compareNumericOrEqual(a, b Value, equalityOnly bool) (Ordering, error) {
	af, aIsNum := asFloat(a)
	bf, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return Less, nil
		case af > bf:
			return Greater, nil
		default:
			return Eq, nil
		}
	}

	if !equalityOnly {
		return 0, fmt.Errorf("%w: ordering requires numeric operands, got %s and %s", ErrTypeMismatch, a.Kind(), b.Kind())
	}

	if a.Kind() != b.Kind() {
		return 0, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a.Kind(), b.Kind())
	}

	switch av := a.(type) {
	case Bool:
		if bool(av) == bool(b.(Bool)) {
			return Eq, nil
		}
		return Less, nil
	case Str:
		if string(av) == string(b.(Str)) {
			return Eq, nil
		}
		return Less, nil
	case Color:
		if av == b.(Color) {
			return Eq, nil
		}
		return Less, nil
	default:
		return 0, fmt.Errorf("%w: uncomparable type %s", ErrTypeMismatch, a.Kind())
	}
}

func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int32:
		return float64(n), true
	case Float64:
		return float64(n), true
	default:
		return 0, false
	}
}
