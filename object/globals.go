package object

import (
	"cmp"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("smalljs.object")

// ---------------------------------------------------------------------------
// Global environment
// ---------------------------------------------------------------------------

// NewGlobalEnv creates the global environment shared by a program run:
// globalThis, print writing to out, and the arithmetic and comparison
// primitives. Operators take exactly two arguments; comparisons yield the
// integers 1 and 0.
func NewGlobalEnv(out io.Writer) *Object {
	env := NewEnv(nil)
	env.Register("globalThis", env)
	env.Register("print", NewFunction("print", func(_ any, args ...any) (any, error) {
		log.Debugf("print called with %v", args)
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		if _, err := fmt.Fprintln(out, strings.Join(parts, " ")); err != nil {
			return nil, fmt.Errorf("print: %w", err)
		}
		return Undefined, nil
	}))

	registerIntOp(env, "+", func(a, b int) (int, error) { return a + b, nil })
	registerIntOp(env, "-", func(a, b int) (int, error) { return a - b, nil })
	registerIntOp(env, "*", func(a, b int) (int, error) { return a * b, nil })
	registerIntOp(env, "/", func(a, b int) (int, error) {
		if b == 0 {
			return 0, Failf("division by zero")
		}
		return a / b, nil
	})
	registerIntOp(env, "%", func(a, b int) (int, error) {
		if b == 0 {
			return 0, Failf("division by zero")
		}
		return a % b, nil
	})

	registerBinary(env, "==", func(a, b any) (any, error) { return truth(equal(a, b)), nil })
	registerBinary(env, "!=", func(a, b any) (any, error) { return truth(!equal(a, b)), nil })
	registerCompare(env, "<", func(c int) bool { return c < 0 })
	registerCompare(env, "<=", func(c int) bool { return c <= 0 })
	registerCompare(env, ">", func(c int) bool { return c > 0 })
	registerCompare(env, ">=", func(c int) bool { return c >= 0 })
	return env
}

func registerBinary(env *Object, name string, fn func(a, b any) (any, error)) {
	env.Register(name, NewFunction(name, func(_ any, args ...any) (any, error) {
		if len(args) != 2 {
			return nil, Failf("%s expects 2 arguments but was %d", name, len(args))
		}
		return fn(args[0], args[1])
	}))
}

func registerIntOp(env *Object, name string, fn func(a, b int) (int, error)) {
	registerBinary(env, name, func(a, b any) (any, error) {
		x, ok1 := a.(int)
		y, ok2 := b.(int)
		if !ok1 || !ok2 {
			return nil, Failf("%s expects integers, got %v and %v", name, a, b)
		}
		return fn(x, y)
	})
}

func registerCompare(env *Object, name string, test func(int) bool) {
	registerBinary(env, name, func(a, b any) (any, error) {
		c, ok := compare(a, b)
		if !ok {
			return nil, Failf("%s cannot compare %v and %v", name, a, b)
		}
		return truth(test(c)), nil
	})
}

// truth maps a Go condition to the integer result of a comparison.
func truth(b bool) int {
	if b {
		return 1
	}
	return 0
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// compare orders integers, floats (mixed with integers) and strings.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int:
		switch y := b.(type) {
		case int:
			return cmp.Compare(x, y), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmp.Compare(x, y), true
		case int:
			return cmp.Compare(x, float64(y)), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	}
	return 0, false
}
