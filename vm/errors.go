package vm

import (
	"errors"
	"fmt"
)

// Engine-invariant violations. These should not happen when the compiler and
// the engine agree; they surface wrapped in a Fault.
var (
	ErrUnknownOpcode  = errors.New("unknown instruction")
	ErrBadOperand     = errors.New("invalid inline operand")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrCodeOverrun    = errors.New("program counter past end of code")
	ErrStepLimit      = errors.New("instruction budget exhausted")
)

// Fault is a fatal engine error: an invariant violation, resource exhaustion
// or a Go runtime error recovered from the dispatch loop.
type Fault struct {
	Op  Opcode // instruction being executed, zero before the first fetch
	PC  int    // program counter after the fetch
	Err error
}

func (f *Fault) Error() string {
	if f.Op == 0 {
		return fmt.Sprintf("vm fault: %v", f.Err)
	}
	return fmt.Sprintf("vm fault at pc %d (%s): %v", f.PC, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
