package vm

import (
	"io"

	"github.com/chazu/smalljs/object"
)

// Run executes the entry function fn of a program built against dict, with a
// fresh global environment whose print writes to out.
func Run(fn *object.Object, dict *Dictionary, out io.Writer, cfg Config) (any, error) {
	e := NewEngine(dict, object.NewGlobalEnv(out), cfg)
	return e.Execute(fn)
}
