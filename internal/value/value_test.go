package value

import "testing"

func TestParseName(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"room:switch", false},
		{"t", false},
		{"deck:motion-sensor", false},
		{"", true},
		{":leaf", true},
		{"room::switch", true},
		{"room:_bad", true},
	}
	for _, c := range cases {
		_, err := ParseName(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseName(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
		}
	}
}

func TestNameJoin(t *testing.T) {
	n := Name("t")
	if got := n.Join("output"); got != "t:output" {
		t.Errorf("Join = %q, want t:output", got)
	}
}

func TestEqualCrossType(t *testing.T) {
	if _, err := Equal(Bool(true), Str("true")); err == nil {
		t.Errorf("expected type mismatch comparing bool and str")
	}
}

func TestEqualNumericPromotion(t *testing.T) {
	eq, err := Equal(Int32(3), Float64(3.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eq {
		t.Errorf("expected 3 == 3.0")
	}
}

func TestCompareOrdering(t *testing.T) {
	ord, err := Compare(Int32(2), Float64(3.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord != Less {
		t.Errorf("expected Less, got %v", ord)
	}
}

func TestCompareNonNumericFails(t *testing.T) {
	if _, err := Compare(Str("a"), Str("b")); err == nil {
		t.Errorf("expected ordering of strings to fail")
	}
}

func TestWireRoundTrip(t *testing.T) {
	vals := []Value{
		Bool(true),
		Int32(-42),
		Float64(3.25),
		Str("hello"),
		Color{R: 10, G: 20, B: 30, A: 255},
		BoolArray{true, false, true},
		Int32Array{1, 2, 3},
	}
	for _, v := range vals {
		enc, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		dec, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%v): %v", v, err)
		}
		if n != len(enc) {
			t.Errorf("Decode consumed %d bytes, want %d", n, len(enc))
		}
		if dec.Kind() != v.Kind() {
			t.Errorf("round trip kind mismatch: got %v want %v", dec.Kind(), v.Kind())
		}
		if dec.String() != v.String() {
			t.Errorf("round trip mismatch: got %v want %v", dec, v)
		}
	}
}
