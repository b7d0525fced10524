package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/smalljs/object"
)

func TestDictionaryInternDeduplicates(t *testing.T) {
	d := NewDictionary()

	a := d.Intern("x")
	b := d.Intern(2.5)
	if d.Intern("x") != a {
		t.Error("interning the same string twice should return the same index")
	}
	if d.Intern(2.5) != b {
		t.Error("interning the same float twice should return the same index")
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

func TestDictionaryPointerIdentity(t *testing.T) {
	d := NewDictionary()
	f1 := object.NewFunction("f", nil)
	f2 := object.NewFunction("f", nil)

	if d.Intern(f1) == d.Intern(f2) {
		t.Error("distinct function objects should get distinct indices")
	}
	if d.Intern(f1) != d.Intern(f1) {
		t.Error("the same function object should keep its index")
	}
}

func TestDictionaryNonComparableAlwaysAppends(t *testing.T) {
	d := NewDictionary()
	s := []int{1, 2}

	i := d.Intern(s)
	j := d.Intern(s)
	if i == j {
		t.Error("non-comparable values should not be de-duplicated")
	}
	if _, ok := d.Lookup(s); ok {
		t.Error("Lookup of a non-comparable value should fail")
	}
}

func TestDictionaryStableIndices(t *testing.T) {
	d := NewDictionary()
	first := d.Intern("first")
	for i := 0; i < 500; i++ {
		d.Intern(i * 1000)
	}
	v, err := d.Resolve(first)
	if err != nil || v != "first" {
		t.Errorf("Resolve(%d) = %v, %v; want first", first, v, err)
	}
	if d.Intern("first") != first {
		t.Error("index changed after growth")
	}
}

func TestDictionaryAppendKeepsFirstIndex(t *testing.T) {
	d := NewDictionary()
	a := d.Append("dup")
	b := d.Append("dup")
	if a == b {
		t.Fatal("Append should always add a new entry")
	}
	if idx, _ := d.Lookup("dup"); idx != a {
		t.Errorf("Lookup(dup) = %d, want first index %d", idx, a)
	}
	if v, _ := d.Resolve(b); v != "dup" {
		t.Errorf("Resolve(%d) = %v", b, v)
	}
}

func TestDictionaryResolveOutOfRange(t *testing.T) {
	d := NewDictionary()
	d.Intern("only")
	for _, idx := range []int{-1, 1, 100} {
		if _, err := d.Resolve(idx); !errors.Is(err, ErrBadIndex) {
			t.Errorf("Resolve(%d) error = %v, want ErrBadIndex", idx, err)
		}
	}
}

func TestDictionaryEntriesIsCopy(t *testing.T) {
	d := NewDictionary()
	d.Intern("a")
	entries := d.Entries()
	entries[0] = "b"
	if v, _ := d.Resolve(0); v != "a" {
		t.Errorf("Entries() leaked internal storage, Resolve(0) = %v", v)
	}
}

func TestDictionaryFloatsByBits(t *testing.T) {
	d := NewDictionary()
	zero := d.Intern(0.0)
	negZero := d.Intern(math.Copysign(0, -1))
	if zero == negZero {
		t.Error("0.0 and -0.0 should get distinct indices")
	}
	v, _ := d.Resolve(negZero)
	if f, ok := v.(float64); !ok || !math.Signbit(f) {
		t.Errorf("Resolve(-0.0) = %v", v)
	}

	nan := d.Intern(math.NaN())
	if d.Intern(math.NaN()) != nan {
		t.Error("NaN should be interned once")
	}
	if idx, ok := d.Lookup(math.NaN()); !ok || idx != nan {
		t.Errorf("Lookup(NaN) = %d, %v", idx, ok)
	}
	if d.Len() != 3 {
		t.Errorf("Len() = %d, want 3", d.Len())
	}
}
