package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at pos and returns the
// offset of the next one. dict may be nil, in which case dictionary operands
// are shown by index.
func DisassembleInstruction(instrs []Word, pos int, dict *Dictionary) (string, int) {
	op := Opcode(instrs[pos])
	info := op.Info()
	if !op.Valid() || info.Operand == OperandNone {
		return fmt.Sprintf("%04d  %s", pos, info.Name), pos + 1
	}
	if pos+1 >= len(instrs) {
		return fmt.Sprintf("%04d  %s <missing operand>", pos, info.Name), pos + 1
	}

	w := instrs[pos+1]
	switch info.Operand {
	case OperandSlot, OperandCount:
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, int64(w)), pos + 2
	case OperandLabel:
		return fmt.Sprintf("%04d  %s (-> %04d)", pos, info.Name, int64(w)), pos + 2
	default:
		return fmt.Sprintf("%04d  %s %s", pos, info.Name, operandString(w, dict)), pos + 2
	}
}

// operandString decodes an inline tagged word for display.
func operandString(w Word, dict *Dictionary) string {
	if !w.IsDict() || dict == nil {
		return w.String()
	}
	v, err := dict.Resolve(w.DictIndex())
	if err != nil {
		return w.String() + " <bad index>"
	}
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", v)
}

// Disassemble returns a full disassembly of code, one instruction per line.
func Disassemble(code *Code, dict *Dictionary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; slots=%d params=%d\n", code.slotCount, code.parameterCount)
	for pos := 0; pos < len(code.instrs); {
		var line string
		line, pos = DisassembleInstruction(code.instrs, pos, dict)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
