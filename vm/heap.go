package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Heap is a flat word array holding objects allocated by NEW.
//
// Object layout:
//
//	ref+0  class   dictionary word of the class descriptor
//	ref+1  mark    GC mark, markEmpty at allocation
//	ref+2  fields  one word per declared field, in class order
//
// Allocation bumps a pointer; there is no collector. When an allocation
// would exceed capacity the heap reports ErrHeapExhausted.
type Heap struct {
	words []Word
	hp    int // next free offset
}

// Header layout
const (
	classOffset      = 0
	gcOffset         = 1
	ObjectHeaderSize = 2
)

// ErrHeapExhausted is returned when an allocation does not fit. Collection
// is not implemented.
var ErrHeapExhausted = errors.New("heap exhausted")

// NewHeap creates a heap of capacity words.
func NewHeap(capacity int) *Heap {
	return &Heap{words: make([]Word, capacity)}
}

// Cap returns the heap capacity in words.
func (h *Heap) Cap() int { return len(h.words) }

// Used returns the number of allocated words.
func (h *Heap) Used() int { return h.hp }

// Alloc places a new object of class with the given field values and returns
// its offset.
func (h *Heap) Alloc(class Word, fields []Word) (int, error) {
	size := ObjectHeaderSize + len(fields)
	if h.hp+size > len(h.words) {
		return 0, fmt.Errorf("%w: need %d words, %d of %d used", ErrHeapExhausted, size, h.hp, len(h.words))
	}
	ref := h.hp
	h.words[ref+classOffset] = class
	h.words[ref+gcOffset] = markEmpty
	copy(h.words[ref+ObjectHeaderSize:], fields)
	h.hp += size
	return ref, nil
}

// valid reports whether ref points at an allocated object header. Field
// words never hold a GC mark, so a reference into the middle of an object
// fails the mark check.
func (h *Heap) valid(ref int) bool {
	return ref >= 0 && ref+ObjectHeaderSize <= h.hp &&
		h.words[ref+classOffset].IsDict() && h.words[ref+gcOffset] == markEmpty
}

// Class returns the class word of the object at ref.
func (h *Heap) Class(ref int) (Word, error) {
	if !h.valid(ref) {
		return 0, fmt.Errorf("%w: no object at heap offset %d", ErrMalformedWord, ref)
	}
	return h.words[ref+classOffset], nil
}

// Field returns field index of the object at ref. The caller resolves index
// through the class descriptor.
func (h *Heap) Field(ref, index int) Word {
	return h.words[ref+ObjectHeaderSize+index]
}

// SetField stores w into field index of the object at ref.
func (h *Heap) SetField(ref, index int, w Word) {
	h.words[ref+ObjectHeaderSize+index] = w
}

// Dump renders the allocated words, decoding what can be decoded.
func (h *Heap) Dump(d *Dictionary) string {
	var sb strings.Builder
	for i := 0; i < h.hp; i++ {
		w := h.words[i]
		fmt.Fprintf(&sb, "%d: %s", i, w)
		if w.IsDict() {
			if v, err := d.Resolve(w.DictIndex()); err == nil {
				fmt.Fprintf(&sb, " %v", v)
			} else {
				sb.WriteString(" (can't decode)")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
