package vm

// ---------------------------------------------------------------------------
// Frames: activation records inside the value stack
// ---------------------------------------------------------------------------
//
// Stack layout around a call to a compiled function with N arguments:
//
//	bp-1                 qualifier (the callee)
//	bp+0                 receiver  (local slot 0)
//	bp+1 .. bp+N         arguments (local slots 1..N)
//	bp+N+1 .. bp+S-1     remaining locals, set to undefined on entry
//	bp+S+0               saved base pointer
//	bp+S+1               saved return pc (0 = outermost invocation)
//	bp+S+2               saved caller function (dictionary word)
//	bp+S+3 ..            operand stack of the callee
//
// where S is the callee's slot count.

// Activation record layout, relative to bp + slotCount
const (
	bpOffset       = 0
	pcOffset       = 1
	funOffset      = 2
	activationSize = 3
)

// Call prefix layout, relative to the first argument
const (
	receiverArgOffset  = -1
	qualifierArgOffset = -2
	funcallPrefix      = 2
)

// frame describes the running function's region of the stack.
type frame struct {
	bp   int // receiver slot, local slot 0
	code *Code
}

// activation returns the offset of the frame's activation record.
func (f frame) activation() int {
	return f.bp + f.code.slotCount
}

// top returns the lowest operand-stack offset of the frame. Nothing below it
// may be popped while the frame runs.
func (f frame) top() int {
	if f.code == nil {
		return 0
	}
	return f.activation() + activationSize
}

// qualifier returns the offset of the slot holding the callee.
func (f frame) qualifier() int {
	return f.bp - 1
}

// activationRecord is the decoded content of an activation record.
type activationRecord struct {
	bp     int
	pc     int
	caller Word
}

// writeActivation stores a in f's activation record. Saved bp and pc are
// tagged as small integers so the stack only ever holds valid words.
func (e *Engine) writeActivation(f frame, a activationRecord) {
	at := f.activation()
	e.stack[at+bpOffset] = FromInt(a.bp)
	e.stack[at+pcOffset] = FromInt(a.pc)
	e.stack[at+funOffset] = a.caller
}

// readActivation loads f's activation record.
func (e *Engine) readActivation(f frame) activationRecord {
	at := f.activation()
	bp, pc := e.stack[at+bpOffset], e.stack[at+pcOffset]
	if !bp.IsSmallInt() || !pc.IsSmallInt() {
		e.fault(ErrMalformedWord)
	}
	return activationRecord{
		bp:     bp.Int(),
		pc:     pc.Int(),
		caller: e.stack[at+funOffset],
	}
}
