package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/smalljs/object"
)

// ---------------------------------------------------------------------------
// SmallInt tests
// ---------------------------------------------------------------------------

func TestSmallIntRoundTrip(t *testing.T) {
	tests := []int{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), int(MaxSmallInt), int(MinSmallInt)}

	for _, n := range tests {
		w := FromInt(n)
		if !w.IsSmallInt() {
			t.Errorf("FromInt(%d).IsSmallInt() = false", n)
			continue
		}
		if got := w.Int(); got != n {
			t.Errorf("FromInt(%d).Int() = %d", n, got)
		}
		if w.Kind() != KindInt {
			t.Errorf("FromInt(%d).Kind() = %v, want int", n, w.Kind())
		}
	}
}

func TestFromIntOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FromInt(MaxInt64) should panic")
		}
	}()
	FromInt(math.MaxInt64)
}

func TestLargeIntGoesThroughDictionary(t *testing.T) {
	d := NewDictionary()
	n := math.MaxInt64

	w := Encode(n, d)
	if !w.IsDict() {
		t.Fatalf("Encode(MaxInt64) = %s, want dictionary word", w)
	}
	v, err := Decode(w, d)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v != n {
		t.Errorf("Decode = %v, want %d", v, n)
	}
}

// ---------------------------------------------------------------------------
// Specials
// ---------------------------------------------------------------------------

func TestSpecials(t *testing.T) {
	if FromBool(true) != True || FromBool(false) != False {
		t.Error("FromBool does not map to the sentinels")
	}
	for _, w := range []Word{False, FromInt(0)} {
		if w.IsTruthy() {
			t.Errorf("%s should not be truthy", w)
		}
	}
	for _, w := range []Word{True, Undefined, FromInt(1), FromInt(-1), EncodeRef(0), EncodeDict(0)} {
		if !w.IsTruthy() {
			t.Errorf("%s should be truthy", w)
		}
	}
	if Undefined.Kind() != KindUndefined {
		t.Errorf("Undefined.Kind() = %v", Undefined.Kind())
	}
	if markEmpty.Kind() != KindInvalid {
		t.Error("the GC mark should not be a value")
	}
}

// ---------------------------------------------------------------------------
// Encode / Decode
// ---------------------------------------------------------------------------

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := NewDictionary()
	fn := object.NewFunction("f", nil)
	class := object.NewClass("Point", "x", "y")

	tests := []any{
		0, 7, -7, math.MinInt64,
		true, false,
		object.Undefined,
		Ref(16),
		"hello", "",
		3.5,
		fn, class,
	}

	for _, v := range tests {
		w := Encode(v, d)
		got, err := Decode(w, d)
		if err != nil {
			t.Errorf("Decode(Encode(%v)): %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("Decode(Encode(%v)) = %v", v, got)
		}
	}
}

func TestEncodeNilIsUndefined(t *testing.T) {
	if w := Encode(nil, NewDictionary()); w != Undefined {
		t.Errorf("Encode(nil) = %s, want undefined", w)
	}
}

func TestEncodeKinds(t *testing.T) {
	d := NewDictionary()
	tests := []struct {
		v    any
		kind Kind
	}{
		{12, KindInt},
		{true, KindBool},
		{object.Undefined, KindUndefined},
		{Ref(2), KindRef},
		{"s", KindDict},
		{1.25, KindDict},
	}
	for _, tt := range tests {
		if got := Encode(tt.v, d).Kind(); got != tt.kind {
			t.Errorf("Encode(%v).Kind() = %v, want %v", tt.v, got, tt.kind)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	d := NewDictionary()

	if _, err := Decode(markEmpty, d); !errors.Is(err, ErrMalformedWord) {
		t.Errorf("Decode(markEmpty) error = %v, want ErrMalformedWord", err)
	}
	bad := Word(7<<tagBits) | tagSpecial
	if _, err := Decode(bad, d); !errors.Is(err, ErrMalformedWord) {
		t.Errorf("Decode(special 7) error = %v, want ErrMalformedWord", err)
	}
	if _, err := Decode(EncodeDict(3), d); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Decode(dict 3) error = %v, want ErrBadIndex", err)
	}
}

func TestWordString(t *testing.T) {
	tests := []struct {
		w    Word
		want string
	}{
		{FromInt(-3), "int(-3)"},
		{True, "true"},
		{False, "false"},
		{Undefined, "undefined"},
		{EncodeRef(4), "ref(4)"},
		{EncodeDict(9), "dict(9)"},
		{markEmpty, "mark(empty)"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
