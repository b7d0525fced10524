package object

import (
	"errors"
	"fmt"
)

// Failure is a language-level error a program author can cause: undefined
// variables, bad calls, bad field access. Line is 1-based and zero when the
// reporting evaluator does not track source lines.
type Failure struct {
	Message string
	Line    int
}

func (f *Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("at line %d, %s", f.Line, f.Message)
	}
	return f.Message
}

// Failf builds a Failure without line information.
func Failf(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// AsFailure returns the Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
