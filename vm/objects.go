package vm

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/smalljs/object"
)

// ---------------------------------------------------------------------------
// Object protocol: NEW, GET, PUT
// ---------------------------------------------------------------------------

// newObject pops one value per declared field, the first field deepest, and
// pushes a reference to the new object.
func (e *Engine) newObject(classWord Word) {
	class, err := resolveClass(classWord, e.dict)
	if err != nil {
		e.raise(err)
	}
	n := class.Len()
	if e.sp-n < e.fr.top() {
		e.fault(ErrStackUnderflow)
	}
	fields := e.stack[e.sp-n : e.sp]
	ref, err := e.heap.Alloc(classWord, fields)
	if err != nil {
		if log.AllowLevel(commonlog.Debug) {
			log.Debugf("engine %s: heap dump\n%s", e.id, e.heap.Dump(e.dict))
		}
		e.fault(err)
	}
	e.sp -= n
	e.push(EncodeRef(ref))
}

// receiverObject pops an object reference and resolves its class.
func (e *Engine) receiverObject() (int, *object.Object) {
	w := e.pop()
	if !w.IsRef() {
		e.fail("%v is not an object", e.decode(w))
	}
	ref := w.Ref()
	classWord, err := e.heap.Class(ref)
	if err != nil {
		e.fault(err)
	}
	class, err := resolveClass(classWord, e.dict)
	if err != nil {
		e.raise(err)
	}
	return ref, class
}

// getField pushes the named field of the popped object, or undefined when the
// class has no such field.
func (e *Engine) getField(name string) {
	ref, class := e.receiverObject()
	idx := FieldIndex(class, name)
	if idx < 0 {
		e.push(Undefined)
		return
	}
	e.push(e.heap.Field(ref, idx))
}

// putField pops a value, then an object, and stores the value into the named
// field. Unknown fields fail.
func (e *Engine) putField(name string) {
	v := e.pop()
	ref, class := e.receiverObject()
	idx := FieldIndex(class, name)
	if idx < 0 {
		e.fail("invalid field %s", name)
	}
	e.heap.SetField(ref, idx, v)
}

// ---------------------------------------------------------------------------
// Instance: host view of a heap object
// ---------------------------------------------------------------------------

// Instance is how heap objects appear to native functions and to callers of
// Execute/Call. It reads through to the engine's heap, so it observes later
// PUTs. Two instances are == exactly when they denote the same object.
type Instance struct {
	ref  Ref
	heap *Heap
	dict *Dictionary
}

func (e *Engine) instance(offset int) Instance {
	return Instance{ref: Ref(offset), heap: e.heap, dict: e.dict}
}

// Ref returns the heap offset of the object.
func (i Instance) Ref() Ref { return i.ref }

// Class returns the object's class descriptor.
func (i Instance) Class() (*object.Object, error) {
	w, err := i.heap.Class(int(i.ref))
	if err != nil {
		return nil, err
	}
	return resolveClass(w, i.dict)
}

// ClassName returns the name of the object's class, or "" if it cannot be
// resolved.
func (i Instance) ClassName() string {
	class, err := i.Class()
	if err != nil {
		return ""
	}
	return class.Name()
}

// Get returns the decoded value of a field. Nested objects come back as
// Instance; ok is false when the class has no such field.
func (i Instance) Get(name string) (any, bool) {
	class, err := i.Class()
	if err != nil {
		return nil, false
	}
	idx := FieldIndex(class, name)
	if idx < 0 {
		return nil, false
	}
	w := i.heap.Field(int(i.ref), idx)
	if w.IsRef() {
		return Instance{ref: Ref(w.Ref()), heap: i.heap, dict: i.dict}, true
	}
	v, err := Decode(w, i.dict)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (i Instance) String() string {
	class, err := i.Class()
	if err != nil {
		return i.ref.String()
	}
	var sb strings.Builder
	sb.WriteString(class.Name())
	sb.WriteString("{")
	for n, name := range fieldNames(class) {
		if n > 0 {
			sb.WriteString(", ")
		}
		w := i.heap.Field(int(i.ref), n)
		if w.IsRef() {
			// Nested objects are shown by reference so cycles terminate.
			fmt.Fprintf(&sb, "%s: %s", name, Ref(w.Ref()))
			continue
		}
		v, err := Decode(w, i.dict)
		if err != nil {
			v = w
		}
		fmt.Fprintf(&sb, "%s: %v", name, v)
	}
	sb.WriteString("}")
	return sb.String()
}

// fieldNames lists a class's fields in index order.
func fieldNames(class *object.Object) []string {
	names := make([]string, class.Len())
	for _, key := range class.Keys() {
		if idx := FieldIndex(class, key); idx >= 0 && names[idx] == "" {
			names[idx] = key
		}
	}
	return names
}
