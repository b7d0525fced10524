package vm

import (
	"fmt"
	"strings"
)

// traceStack logs the instruction about to execute and the live stack, top
// last, marking the current frame's base pointer.
func (e *Engine) traceStack() {
	instr, _ := DisassembleInstruction(e.instrs, e.pc, e.dict)
	var sb strings.Builder
	for i := 0; i < e.sp; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		if i == e.fr.bp && e.fr.code != nil {
			sb.WriteString("|")
		}
		sb.WriteString(e.stack[i].String())
	}
	name := ""
	if e.function != nil {
		name = e.function.Name()
	}
	log.Debugf("engine %s: %s %s [%s]", e.id, name, instr, sb.String())
}

// StackDump renders the used part of the stack, one word per line.
func (e *Engine) StackDump() string {
	var sb strings.Builder
	for i := 0; i < e.sp; i++ {
		w := e.stack[i]
		fmt.Fprintf(&sb, "%d: %s", i, w)
		if w.IsDict() {
			if v, err := e.dict.Resolve(w.DictIndex()); err == nil {
				fmt.Fprintf(&sb, " %v", v)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
