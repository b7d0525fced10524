package vm

import (
	"fmt"

	"github.com/chazu/smalljs/object"
)

// ---------------------------------------------------------------------------
// Code: a compiled function body
// ---------------------------------------------------------------------------

// Code is an immutable compiled program fragment: a flat word stream mixing
// opcodes and inline operands, the number of local slots (slot 0 is the
// receiver) and the number of parameters including the receiver.
type Code struct {
	instrs         []Word
	slotCount      int
	parameterCount int
}

// NewCode copies instrs into a new Code unit. parameterCount counts the
// implicit receiver, so it is at least 1, and slotCount covers every
// parameter.
func NewCode(instrs []Word, slotCount, parameterCount int) (*Code, error) {
	if parameterCount < 1 {
		return nil, fmt.Errorf("code: parameter count %d does not include the receiver", parameterCount)
	}
	if slotCount < parameterCount {
		return nil, fmt.Errorf("code: slot count %d smaller than parameter count %d", slotCount, parameterCount)
	}
	if len(instrs) == 0 {
		return nil, fmt.Errorf("code: empty instruction stream")
	}
	c := &Code{
		instrs:         make([]Word, len(instrs)),
		slotCount:      slotCount,
		parameterCount: parameterCount,
	}
	copy(c.instrs, instrs)
	return c, nil
}

// Instructions returns a copy of the instruction stream.
func (c *Code) Instructions() []Word {
	result := make([]Word, len(c.instrs))
	copy(result, c.instrs)
	return result
}

// SlotCount returns the number of local slots, receiver included.
func (c *Code) SlotCount() int { return c.slotCount }

// ParameterCount returns the number of parameters, receiver included.
func (c *Code) ParameterCount() int { return c.parameterCount }

// Arity returns the number of declared parameters a caller must supply.
func (c *Code) Arity() int { return c.parameterCount - 1 }

// ---------------------------------------------------------------------------
// Compiled functions
// ---------------------------------------------------------------------------

// NewFunction creates a function object carrying code under object.CodeKey.
// It has no native invoker; only an Engine can run it.
func NewFunction(name string, code *Code) *object.Object {
	fn := object.NewFunction(name, nil)
	if code != nil {
		fn.Register(object.CodeKey, code)
	}
	return fn
}

// CodeOf returns the code attached to fn. ok is false for native functions;
// err is set when the attribute exists but is not a *Code.
func CodeOf(fn *object.Object) (code *Code, ok bool, err error) {
	v, found := fn.Lookup(object.CodeKey)
	if !found {
		return nil, false, nil
	}
	code, isCode := v.(*Code)
	if !isCode {
		return nil, true, object.Failf("invalid code attribute in function %s", fn.Name())
	}
	return code, true, nil
}
