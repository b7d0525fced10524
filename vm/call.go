package vm

import (
	"fmt"

	"github.com/chazu/smalljs/object"
)

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// enter sets up a frame for code. The qualifier, receiver and argc arguments
// are already on the stack; baseArg is the offset of the first argument.
// saved is written into the new frame's activation record.
func (e *Engine) enter(fn *object.Object, code *Code, baseArg, argc int, saved activationRecord) {
	if code.parameterCount != argc+1 {
		e.fail("wrong number of arguments for %s expected %d but was %d",
			fn.Name(), code.parameterCount-1, argc)
	}

	callee := frame{bp: baseArg + receiverArgOffset, code: code}
	if callee.top() > len(e.stack) {
		e.fault(fmt.Errorf("%w: %s needs %d words at %d", ErrStackOverflow, fn.Name(), callee.top()-callee.bp, callee.bp))
	}
	if callee.activation() < baseArg+argc {
		e.fault(fmt.Errorf("%w: activation record of %s overlaps its arguments", ErrBadOperand, fn.Name()))
	}

	e.writeActivation(callee, saved)
	for i := callee.bp + code.parameterCount; i < callee.activation(); i++ {
		e.stack[i] = Undefined
	}

	e.fr = callee
	e.function = fn
	e.instrs = code.instrs
	e.pc = 0
	e.sp = callee.top()
}

// funcall implements FUNCALL argc. The stack holds, from deepest:
// qualifier, receiver, arg1..argc.
func (e *Engine) funcall(argc int) {
	if argc < 0 {
		e.fault(fmt.Errorf("%w: argument count %d", ErrBadOperand, argc))
	}
	baseArg := e.sp - argc
	if baseArg+qualifierArgOffset < e.fr.top() {
		e.fault(ErrStackUnderflow)
	}

	q := e.decode(e.stack[baseArg+qualifierArgOffset])
	fn, ok := q.(*object.Object)
	if !ok || !fn.IsFunction() {
		e.fail("can't call non function %v", q)
	}

	code, compiled, err := CodeOf(fn)
	if err != nil {
		e.raise(err)
	}
	if !compiled {
		receiver := e.decode(e.stack[baseArg+receiverArgOffset])
		args := make([]any, argc)
		for i := range args {
			args[i] = e.decode(e.stack[baseArg+i])
		}
		result := e.invokeNative(fn, receiver, args)
		e.sp = baseArg + qualifierArgOffset
		e.push(e.encode(result))
		return
	}

	e.enter(fn, code, baseArg, argc, activationRecord{
		bp:     e.fr.bp,
		pc:     e.pc,
		caller: e.encode(e.function),
	})
}

// invokeNative calls a host function. Failures propagate as they are; other
// errors are attributed to the function.
func (e *Engine) invokeNative(fn *object.Object, receiver any, args []any) any {
	result, err := fn.Invoke(receiver, args...)
	if err != nil {
		if f, ok := object.AsFailure(err); ok {
			panic(f)
		}
		e.fail("%s: %v", fn.Name(), err)
	}
	return result
}

// ret implements RET. It reports done when the outermost frame returns.
func (e *Engine) ret() (any, bool) {
	result := e.pop()
	saved := e.readActivation(e.fr)
	if saved.pc == 0 {
		return e.decode(result), true
	}

	e.sp = e.fr.qualifier()

	caller, ok := e.decode(saved.caller).(*object.Object)
	if !ok {
		e.fault(fmt.Errorf("%w: caller %s", ErrMalformedWord, saved.caller))
	}
	code, compiled, err := CodeOf(caller)
	if err != nil {
		e.raise(err)
	}
	if !compiled {
		e.fault(fmt.Errorf("%w: caller %s has no code", ErrMalformedWord, caller.Name()))
	}

	e.fr = frame{bp: saved.bp, code: code}
	e.function = caller
	e.instrs = code.instrs
	e.pc = saved.pc
	if e.sp < e.fr.top() {
		e.fault(ErrStackUnderflow)
	}
	e.push(result)
	return nil, false
}
