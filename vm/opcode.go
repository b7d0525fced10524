package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the first word of every instruction. Operands follow inline in
// the same word stream.
type Opcode int

const (
	OpCONST         Opcode = 1  // push inline tagged word
	OpLOOKUP        Opcode = 2  // push global named by inline dictionary word
	OpREGISTER      Opcode = 3  // pop into global named by inline dictionary word
	OpLOAD          Opcode = 4  // push local slot
	OpSTORE         Opcode = 5  // pop into local slot
	OpDUP           Opcode = 6  // duplicate top of stack
	OpPOP           Opcode = 7  // discard top of stack
	OpSWAP          Opcode = 8  // exchange the top two words
	OpFUNCALL       Opcode = 9  // call with inline argument count
	OpRET           Opcode = 10 // return top of stack
	OpGOTO          Opcode = 11 // jump to inline label
	OpJUMP_IF_FALSE Opcode = 12 // pop, jump to inline label if false
	OpNEW           Opcode = 13 // allocate object of inline class word
	OpGET           Opcode = 14 // pop reference, push field named by inline word
	OpPUT           Opcode = 15 // pop value and reference, store field
	OpPRINT         Opcode = 16 // pop, print, push undefined
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandKind says how the inline operand of an instruction is interpreted.
type OperandKind int

const (
	OperandNone  OperandKind = iota
	OperandWord              // a tagged constant
	OperandName              // a dictionary word naming a variable or field
	OperandClass             // a dictionary word naming a class descriptor
	OperandSlot              // a raw local slot offset
	OperandCount             // a raw argument count
	OperandLabel             // a raw absolute instruction offset
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string      // human-readable name
	Operand     OperandKind // kind of the single inline operand, if any
	StackEffect int         // net effect on stack (-1 = variable)
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpCONST:         {"CONST", OperandWord, 1},
	OpLOOKUP:        {"LOOKUP", OperandName, 1},
	OpREGISTER:      {"REGISTER", OperandName, -1},
	OpLOAD:          {"LOAD", OperandSlot, 1},
	OpSTORE:         {"STORE", OperandSlot, -1},
	OpDUP:           {"DUP", OperandNone, 1},
	OpPOP:           {"POP", OperandNone, -1},
	OpSWAP:          {"SWAP", OperandNone, 0},
	OpFUNCALL:       {"FUNCALL", OperandCount, -1}, // variable: pops argc+2, pushes 1
	OpRET:           {"RET", OperandNone, -1},
	OpGOTO:          {"GOTO", OperandLabel, 0},
	OpJUMP_IF_FALSE: {"JUMP_IF_FALSE", OperandLabel, -1},
	OpNEW:           {"NEW", OperandClass, -1}, // variable: pops field count, pushes 1
	OpGET:           {"GET", OperandName, 0},
	OpPUT:           {"PUT", OperandName, -2},
	OpPRINT:         {"PRINT", OperandNone, 0},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%d", int(op))}
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Size returns the instruction length in words, opcode included.
func (op Opcode) Size() int {
	if op.Info().Operand == OperandNone {
		return 1
	}
	return 2
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// OpcodeByName returns the opcode with the given mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}
