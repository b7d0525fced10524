// Package object holds the host-side object model shared by the evaluators:
// property-bag objects used as environments, functions and class descriptors,
// the undefined value, and the Failure error raised by language-level faults.
package object

import (
	"fmt"
	"strings"
)

// CodeKey is the attribute under which a compiled function carries its code.
// Functions without it are native primitives.
const CodeKey = "__code__"

// ---------------------------------------------------------------------------
// Undefined
// ---------------------------------------------------------------------------

// UndefinedType is the type of the single Undefined value.
type UndefinedType struct{}

func (UndefinedType) String() string { return "undefined" }

// Undefined is the value of unset variables, missing fields and functions that
// return nothing.
var Undefined = UndefinedType{}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

// Invoker is the calling contract of a function object: a receiver plus the
// ordered arguments, producing exactly one value.
type Invoker func(receiver any, args ...any) (any, error)

// Object is a named property bag with an optional prototype and an optional
// invoker. The same type serves as global environment, plain object, function
// and class descriptor.
//
// Objects are not safe for concurrent use.
type Object struct {
	name    string
	proto   *Object
	props   map[string]any
	keys    []string // own property names in registration order
	invoker Invoker
}

func newObject(name string, proto *Object, invoker Invoker) *Object {
	return &Object{
		name:    name,
		proto:   proto,
		props:   make(map[string]any),
		invoker: invoker,
	}
}

// NewEnv creates an environment whose lookups fall back to parent.
func NewEnv(parent *Object) *Object {
	return newObject("env", parent, nil)
}

// NewObject creates a plain object with the given prototype (may be nil).
func NewObject(proto *Object) *Object {
	return newObject("object", proto, nil)
}

// NewFunction creates a function object backed by a native invoker.
func NewFunction(name string, invoker Invoker) *Object {
	return newObject(name, nil, invoker)
}

// NewClass creates a class descriptor mapping each field name to its index in
// declaration order. Duplicate field names keep their first index.
func NewClass(name string, fields ...string) *Object {
	c := newObject(name, nil, nil)
	for _, f := range fields {
		if _, ok := c.props[f]; ok {
			continue
		}
		c.Register(f, len(c.keys))
	}
	return c
}

// Name returns the object's name ("env", "object", a function or class name).
func (o *Object) Name() string {
	return o.name
}

// Proto returns the prototype, or nil.
func (o *Object) Proto() *Object {
	return o.proto
}

// Lookup finds name on the object or along its prototype chain.
func (o *Object) Lookup(name string) (any, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if v, ok := cur.props[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// LookupOrDefault is Lookup with a fallback value.
func (o *Object) LookupOrDefault(name string, def any) any {
	if v, ok := o.Lookup(name); ok {
		return v
	}
	return def
}

// Register binds name on the object itself, overwriting any previous binding.
func (o *Object) Register(name string, value any) {
	if _, ok := o.props[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.props[name] = value
}

// Len returns the number of own properties. For a class descriptor this is
// the field count.
func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns the own property names in registration order.
func (o *Object) Keys() []string {
	result := make([]string, len(o.keys))
	copy(result, o.keys)
	return result
}

// IsFunction reports whether the object can be invoked, either natively or
// through an attached code attribute.
func (o *Object) IsFunction() bool {
	if o.invoker != nil {
		return true
	}
	_, ok := o.props[CodeKey]
	return ok
}

// Invoke calls the native invoker. Compiled functions have to go through the
// engine that owns their dictionary.
func (o *Object) Invoke(receiver any, args ...any) (any, error) {
	if o.invoker == nil {
		return nil, Failf("%s is not a native function", o.name)
	}
	return o.invoker(receiver, args...)
}

// String renders functions and classes by name and plain objects with their
// own properties.
func (o *Object) String() string {
	if o.IsFunction() {
		return "function " + o.name
	}
	if o.name != "object" {
		return o.name
	}
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range o.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, o.props[k])
	}
	sb.WriteString("}")
	return sb.String()
}
