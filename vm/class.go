package vm

import (
	"fmt"

	"github.com/chazu/smalljs/object"
)

// ---------------------------------------------------------------------------
// Class descriptors
// ---------------------------------------------------------------------------

// A class descriptor is an *object.Object whose own properties map field
// names to field indices (see object.NewClass). Heap objects refer to it by
// dictionary word.

// FieldIndex returns the slot index for a field by name.
// Returns -1 if the class does not declare the field.
func FieldIndex(class *object.Object, name string) int {
	v, ok := class.Lookup(name)
	if !ok {
		return -1
	}
	idx, ok := v.(int)
	if !ok || idx < 0 || idx >= class.Len() {
		return -1
	}
	return idx
}

// resolveClass decodes a class word through the dictionary.
func resolveClass(w Word, d *Dictionary) (*object.Object, error) {
	if !w.IsDict() {
		return nil, fmt.Errorf("%w: class operand %s", ErrMalformedWord, w)
	}
	v, err := d.Resolve(w.DictIndex())
	if err != nil {
		return nil, err
	}
	class, ok := v.(*object.Object)
	if !ok {
		return nil, object.Failf("%v is not a class", v)
	}
	return class, nil
}
