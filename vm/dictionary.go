package vm

import (
	"fmt"
	"math"
	"reflect"
)

// ---------------------------------------------------------------------------
// Dictionary: interned constants
// ---------------------------------------------------------------------------

// Dictionary interns host objects (strings, floats, function objects, class
// descriptors) to stable indices usable inside dictionary-tagged words.
//
// The table is append-only: indices are assigned in order, never reused and
// never removed. Comparable values are de-duplicated by Go equality, so the
// same string or the same function object always maps to one index. Floats
// are compared by bit pattern: 0.0 and -0.0 stay distinct and a NaN is
// interned once.
//
// A Dictionary belongs to a single engine and is not safe for concurrent use.
type Dictionary struct {
	byValue map[any]int // comparable value -> index
	byIndex []any       // index -> value
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{
		byValue: make(map[any]int),
		byIndex: make([]any, 0, 64),
	}
}

// floatKey keys a float64 by its bits.
type floatKey uint64

func hashable(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}

// key returns the map key de-duplicating v.
func key(v any) any {
	if f, ok := v.(float64); ok {
		return floatKey(math.Float64bits(f))
	}
	return v
}

// Intern returns the index for v, appending it if not already present.
// Non-comparable values are always appended.
func (d *Dictionary) Intern(v any) int {
	if hashable(v) {
		if idx, ok := d.byValue[key(v)]; ok {
			return idx
		}
	}
	return d.Append(v)
}

// Append adds v at the next index without looking for an existing entry.
// The first index of a comparable value stays the one Intern returns.
func (d *Dictionary) Append(v any) int {
	idx := len(d.byIndex)
	d.byIndex = append(d.byIndex, v)
	if hashable(v) {
		if _, ok := d.byValue[key(v)]; !ok {
			d.byValue[key(v)] = idx
		}
	}
	return idx
}

// Lookup returns the index of v without interning it.
func (d *Dictionary) Lookup(v any) (int, bool) {
	if !hashable(v) {
		return 0, false
	}
	idx, ok := d.byValue[key(v)]
	return idx, ok
}

// Resolve returns the value at index.
func (d *Dictionary) Resolve(index int) (any, error) {
	if index < 0 || index >= len(d.byIndex) {
		return nil, fmt.Errorf("%w: %d (len=%d)", ErrBadIndex, index, len(d.byIndex))
	}
	return d.byIndex[index], nil
}

// Len returns the number of interned values.
func (d *Dictionary) Len() int {
	return len(d.byIndex)
}

// Entries returns all values in index order.
func (d *Dictionary) Entries() []any {
	result := make([]any, len(d.byIndex))
	copy(result, d.byIndex)
	return result
}
