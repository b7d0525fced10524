package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestHeapAllocLayout(t *testing.T) {
	d := NewDictionary()
	class := EncodeDict(d.Intern("Point"))
	h := NewHeap(16)

	ref, err := h.Alloc(class, []Word{FromInt(1), FromInt(2)})
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ref != 0 {
		t.Errorf("first ref = %d, want 0", ref)
	}
	if h.Used() != ObjectHeaderSize+2 {
		t.Errorf("Used() = %d, want %d", h.Used(), ObjectHeaderSize+2)
	}
	if h.words[ref+gcOffset] != markEmpty {
		t.Errorf("mark = %s, want mark(empty)", h.words[ref+gcOffset])
	}
	if got, err := h.Class(ref); err != nil || got != class {
		t.Errorf("Class = %s, %v", got, err)
	}
	if h.Field(ref, 1) != FromInt(2) {
		t.Errorf("field 1 = %s", h.Field(ref, 1))
	}

	ref2, err := h.Alloc(class, nil)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ref2 != 4 {
		t.Errorf("second ref = %d, want 4", ref2)
	}

	h.SetField(ref, 0, True)
	if h.Field(ref, 0) != True {
		t.Error("SetField did not store")
	}
}

func TestHeapExhausted(t *testing.T) {
	h := NewHeap(5)
	class := EncodeDict(0)

	if _, err := h.Alloc(class, []Word{0, 0}); err != nil {
		t.Fatalf("first Alloc: %v", err)
	}
	_, err := h.Alloc(class, []Word{0})
	if !errors.Is(err, ErrHeapExhausted) {
		t.Errorf("error = %v, want ErrHeapExhausted", err)
	}
	if h.Used() != 4 {
		t.Errorf("failed allocation moved the pointer to %d", h.Used())
	}
}

func TestHeapClassOfInvalidRef(t *testing.T) {
	h := NewHeap(8)
	if _, err := h.Class(0); !errors.Is(err, ErrMalformedWord) {
		t.Errorf("Class(0) on empty heap error = %v", err)
	}
}

func TestHeapClassOfInteriorRef(t *testing.T) {
	d := NewDictionary()
	h := NewHeap(16)
	name := EncodeDict(d.Intern("name"))
	ref, _ := h.Alloc(EncodeDict(d.Intern("Pair")), []Word{name, name})

	// The first field holds a dictionary word, like a class header would.
	for _, bad := range []int{ref + ObjectHeaderSize, ref + ObjectHeaderSize + 1, ref + 1} {
		if _, err := h.Class(bad); !errors.Is(err, ErrMalformedWord) {
			t.Errorf("Class(%d) error = %v, want ErrMalformedWord", bad, err)
		}
	}
	if _, err := h.Class(ref); err != nil {
		t.Errorf("Class(%d): %v", ref, err)
	}
}

func TestHeapDump(t *testing.T) {
	d := NewDictionary()
	h := NewHeap(8)
	h.Alloc(EncodeDict(d.Intern("Box")), []Word{FromInt(7)})

	dump := h.Dump(d)
	for _, want := range []string{"0: dict(0) Box", "1: mark(empty)", "2: int(7)"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}
