package vm

import "fmt"

// ---------------------------------------------------------------------------
// Builder: helper for constructing Code
// ---------------------------------------------------------------------------

// Builder emits instruction words, interning names and constants in the
// dictionary the resulting code will run against.
type Builder struct {
	dict   *Dictionary
	words  []Word
	labels []*Label
}

// NewBuilder creates a builder bound to dict.
func NewBuilder(dict *Dictionary) *Builder {
	return &Builder{
		dict:  dict,
		words: make([]Word, 0, 64),
	}
}

// Len returns the current length in words.
func (b *Builder) Len() int {
	return len(b.words)
}

// Emit appends an opcode and its raw operands.
func (b *Builder) Emit(op Opcode, operands ...Word) *Builder {
	b.words = append(b.words, Word(op))
	b.words = append(b.words, operands...)
	return b
}

// Const pushes the encoding of v. A Word is emitted as is.
func (b *Builder) Const(v any) *Builder {
	if w, ok := v.(Word); ok {
		return b.Emit(OpCONST, w)
	}
	return b.Emit(OpCONST, Encode(v, b.dict))
}

func (b *Builder) name(name string) Word {
	return EncodeDict(b.dict.Intern(name))
}

// Lookup pushes the global called name.
func (b *Builder) Lookup(name string) *Builder { return b.Emit(OpLOOKUP, b.name(name)) }

// Register pops into the global called name.
func (b *Builder) Register(name string) *Builder { return b.Emit(OpREGISTER, b.name(name)) }

// Load pushes local slot.
func (b *Builder) Load(slot int) *Builder { return b.Emit(OpLOAD, Word(slot)) }

// Store pops into local slot.
func (b *Builder) Store(slot int) *Builder { return b.Emit(OpSTORE, Word(slot)) }

func (b *Builder) Dup() *Builder   { return b.Emit(OpDUP) }
func (b *Builder) Pop() *Builder   { return b.Emit(OpPOP) }
func (b *Builder) Swap() *Builder  { return b.Emit(OpSWAP) }
func (b *Builder) Ret() *Builder   { return b.Emit(OpRET) }
func (b *Builder) Print() *Builder { return b.Emit(OpPRINT) }

// Funcall calls with argc arguments on top of qualifier and receiver.
func (b *Builder) Funcall(argc int) *Builder { return b.Emit(OpFUNCALL, Word(argc)) }

// New allocates an instance of class, taking its fields off the stack.
func (b *Builder) New(class any) *Builder {
	return b.Emit(OpNEW, EncodeDict(b.dict.Intern(class)))
}

// Get replaces the reference on top of the stack with its field.
func (b *Builder) Get(field string) *Builder { return b.Emit(OpGET, b.name(field)) }

// Put stores the top of stack into field of the reference below it.
func (b *Builder) Put(field string) *Builder { return b.Emit(OpPUT, b.name(field)) }

// CallGlobal emits the common sequence for calling a global function with an
// undefined receiver; args must already be emitted by emitArgs.
func (b *Builder) CallGlobal(name string, argc int, emitArgs func(*Builder)) *Builder {
	b.Lookup(name).Const(Undefined)
	emitArgs(b)
	return b.Funcall(argc)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label is an instruction offset that may be referenced before it is marked.
type Label struct {
	resolved bool
	position int   // target, once resolved
	refs     []int // operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	l := &Label{refs: make([]int, 0, 2)}
	b.labels = append(b.labels, l)
	return l
}

// Mark resolves label to the current position.
func (b *Builder) Mark(label *Label) *Builder {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.words)
	for _, ref := range label.refs {
		b.words[ref] = Word(label.position)
	}
	label.refs = nil
	return b
}

func (b *Builder) jump(op Opcode, label *Label) *Builder {
	b.words = append(b.words, Word(op))
	if label.resolved {
		b.words = append(b.words, Word(label.position))
		return b
	}
	label.refs = append(label.refs, len(b.words))
	b.words = append(b.words, 0)
	return b
}

// Goto jumps to label unconditionally.
func (b *Builder) Goto(label *Label) *Builder { return b.jump(OpGOTO, label) }

// JumpIfFalse pops a condition and jumps to label if it is false.
func (b *Builder) JumpIfFalse(label *Label) *Builder { return b.jump(OpJUMP_IF_FALSE, label) }

// Build checks that every label is resolved and returns the code.
func (b *Builder) Build(slotCount, parameterCount int) (*Code, error) {
	for _, l := range b.labels {
		if !l.resolved && len(l.refs) > 0 {
			return nil, fmt.Errorf("builder: unresolved label referenced at %v", l.refs)
		}
	}
	return NewCode(b.words, slotCount, parameterCount)
}
