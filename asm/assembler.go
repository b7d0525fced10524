// Package asm assembles the line-oriented text form of smalljs programs into
// function objects runnable by the vm package.
//
// A program is a sequence of class and function declarations:
//
//	; comment
//	class Point x y
//	func add a b
//	  var tmp
//	  LOOKUP +
//	  CONST undefined
//	  LOAD a
//	  LOAD b
//	  FUNCALL 2
//	  RET
//	end
//
// Slot 0 of every function is "this", followed by the parameters and then
// the variables in declaration order. Jump targets are labels written as
// "name:" on their own line. "@name" is a reference to a function of the
// same program and may appear before the function is declared.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/smalljs/object"
	"github.com/chazu/smalljs/vm"
)

var log = commonlog.GetLogger("smalljs.asm")

// EntryName is the function a program starts in.
const EntryName = "main"

var errUnterminated = errors.New("unterminated string literal")

// Error reports a problem at a source line. Line is zero for problems that
// concern the program as a whole.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func errorf(line int, format string, args ...any) *Error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Program is the result of assembling a source file.
type Program struct {
	Dict      *vm.Dictionary
	Entry     *object.Object
	Functions map[string]*object.Object
	Classes   map[string]*object.Object
	Order     []string // function names in declaration order
}

// Disassemble renders every function of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for i, name := range p.Order {
		if i > 0 {
			sb.WriteString("\n")
		}
		code, _, _ := vm.CodeOf(p.Functions[name])
		fmt.Fprintf(&sb, "func %s\n", name)
		if code != nil {
			sb.WriteString(vm.Disassemble(code, p.Dict))
		}
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------------

type line struct {
	no     int
	tokens []Token
}

// funcState tracks the function being assembled.
type funcState struct {
	fn      *object.Object
	line    int
	params  int
	slots   map[string]int
	nslots  int
	builder *vm.Builder
	labels  map[string]*vm.Label
	marked  map[string]bool
	usedAt  map[string]int // first line referencing each label
}

type assembler struct {
	prog *Program
	cur  *funcState
}

// Assemble parses src and builds a program against a fresh dictionary.
func Assemble(src string) (*Program, error) {
	return AssembleReader(strings.NewReader(src))
}

// AssembleReader is Assemble over a reader.
func AssembleReader(r io.Reader) (*Program, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	a := &assembler{prog: &Program{
		Dict:      vm.NewDictionary(),
		Functions: make(map[string]*object.Object),
		Classes:   make(map[string]*object.Object),
	}}

	// Declarations first so functions and classes can be referenced before
	// they appear.
	if err := a.declare(lines); err != nil {
		return nil, err
	}
	for _, l := range lines {
		if err := a.line(l); err != nil {
			return nil, err
		}
	}
	if a.cur != nil {
		return nil, errorf(a.cur.line, "function %s is missing end", a.cur.fn.Name())
	}

	entry, ok := a.prog.Functions[EntryName]
	if !ok {
		return nil, &Error{Msg: "no main function"}
	}
	a.prog.Entry = entry
	log.Debugf("assembled %d function(s), %d class(es), %d constant(s)",
		len(a.prog.Functions), len(a.prog.Classes), a.prog.Dict.Len())
	return a.prog, nil
}

func readLines(r io.Reader) ([]line, error) {
	var lines []line
	scanner := bufio.NewScanner(r)
	no := 0
	for scanner.Scan() {
		no++
		tokens, err := lexLine(scanner.Text(), no)
		if err != nil {
			return nil, err
		}
		if len(tokens) > 0 {
			lines = append(lines, line{no: no, tokens: tokens})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	return lines, nil
}

// declare creates every class and an empty function object for every func.
func (a *assembler) declare(lines []line) error {
	for _, l := range lines {
		head := l.tokens[0]
		if head.Type != TokenWord {
			continue
		}
		switch head.Literal {
		case "class":
			names, err := identifiers(l, 1, "class")
			if err != nil {
				return err
			}
			if _, dup := a.prog.Classes[names[0]]; dup {
				return errorf(l.no, "class %s declared twice", names[0])
			}
			a.prog.Classes[names[0]] = object.NewClass(names[0], names[1:]...)
		case "func":
			names, err := identifiers(l, 1, "function")
			if err != nil {
				return err
			}
			if _, dup := a.prog.Functions[names[0]]; dup {
				return errorf(l.no, "function %s declared twice", names[0])
			}
			a.prog.Functions[names[0]] = vm.NewFunction(names[0], nil)
			a.prog.Order = append(a.prog.Order, names[0])
		}
	}
	return nil
}

// identifiers returns the words of l after the directive, requiring at least
// min of them.
func identifiers(l line, min int, what string) ([]string, error) {
	args := l.tokens[1:]
	if len(args) < min {
		return nil, errorf(l.no, "%s needs a name", what)
	}
	names := make([]string, len(args))
	for i, t := range args {
		if t.Type != TokenWord || !isIdentifier(t.Literal) {
			return nil, errorf(l.no, "invalid %s name %q", what, t.Literal)
		}
		names[i] = t.Literal
	}
	return names, nil
}

func (a *assembler) line(l line) error {
	head := l.tokens[0]

	if head.Type == TokenLabel {
		if len(l.tokens) > 1 {
			return errorf(l.no, "label %s must be on its own line", head.Literal)
		}
		return a.label(l.no, head.Literal)
	}
	if head.Type != TokenWord {
		return errorf(l.no, "unexpected %s %q", head.Type, head.Literal)
	}

	switch head.Literal {
	case "class":
		if a.cur != nil {
			return errorf(l.no, "class inside function %s", a.cur.fn.Name())
		}
		return nil
	case "func":
		return a.beginFunc(l)
	case "var":
		return a.declareVars(l)
	case "end":
		return a.endFunc(l)
	}
	return a.instruction(l)
}

func (a *assembler) beginFunc(l line) error {
	if a.cur != nil {
		return errorf(l.no, "func inside function %s", a.cur.fn.Name())
	}
	names, _ := identifiers(l, 1, "function")
	st := &funcState{
		fn:      a.prog.Functions[names[0]],
		line:    l.no,
		params:  len(names) - 1,
		slots:   map[string]int{"this": 0},
		nslots:  1,
		builder: vm.NewBuilder(a.prog.Dict),
		labels:  make(map[string]*vm.Label),
		marked:  make(map[string]bool),
		usedAt:  make(map[string]int),
	}
	for _, p := range names[1:] {
		if err := st.addSlot(l.no, p); err != nil {
			return err
		}
	}
	a.cur = st
	return nil
}

func (st *funcState) addSlot(lineNo int, name string) error {
	if _, dup := st.slots[name]; dup {
		return errorf(lineNo, "duplicate local %s", name)
	}
	st.slots[name] = st.nslots
	st.nslots++
	return nil
}

func (a *assembler) declareVars(l line) error {
	if a.cur == nil {
		return errorf(l.no, "var outside function")
	}
	names, err := identifiers(l, 1, "variable")
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := a.cur.addSlot(l.no, n); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) endFunc(l line) error {
	st := a.cur
	if st == nil {
		return errorf(l.no, "end outside function")
	}
	if len(l.tokens) > 1 {
		return errorf(l.no, "unexpected %q after end", l.tokens[1].Literal)
	}

	// Report undefined labels in source order
	var missing []string
	for name := range st.usedAt {
		if !st.marked[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return st.usedAt[missing[i]] < st.usedAt[missing[j]] })
		return errorf(st.usedAt[missing[0]], "undefined label %s", missing[0])
	}

	if st.builder.Len() == 0 {
		return errorf(st.line, "function %s has no instructions", st.fn.Name())
	}
	code, err := st.builder.Build(st.nslots, st.params+1)
	if err != nil {
		return errorf(st.line, "function %s: %v", st.fn.Name(), err)
	}
	st.fn.Register(object.CodeKey, code)
	a.cur = nil
	return nil
}

func (a *assembler) labelFor(name string) *vm.Label {
	l, ok := a.cur.labels[name]
	if !ok {
		l = a.cur.builder.NewLabel()
		a.cur.labels[name] = l
	}
	return l
}

func (a *assembler) label(lineNo int, name string) error {
	if a.cur == nil {
		return errorf(lineNo, "label %s outside function", name)
	}
	if a.cur.marked[name] {
		return errorf(lineNo, "label %s defined twice", name)
	}
	a.cur.builder.Mark(a.labelFor(name))
	a.cur.marked[name] = true
	return nil
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

func (a *assembler) instruction(l line) error {
	st := a.cur
	mnemonic := l.tokens[0].Literal
	if st == nil {
		return errorf(l.no, "%s outside function", mnemonic)
	}
	op, ok := vm.OpcodeByName(strings.ToUpper(mnemonic))
	if !ok {
		return errorf(l.no, "unknown instruction %s", mnemonic)
	}

	info := op.Info()
	args := l.tokens[1:]
	if info.Operand == vm.OperandNone {
		if len(args) != 0 {
			return errorf(l.no, "%s takes no operand", info.Name)
		}
		st.builder.Emit(op)
		return nil
	}
	if len(args) != 1 {
		return errorf(l.no, "%s takes one operand", info.Name)
	}
	arg := args[0]
	b := st.builder

	switch info.Operand {
	case vm.OperandWord:
		v, err := a.constant(l.no, arg)
		if err != nil {
			return err
		}
		b.Const(v)

	case vm.OperandName:
		if arg.Type != TokenWord && arg.Type != TokenString {
			return errorf(l.no, "%s needs a name, got %q", info.Name, arg.Literal)
		}
		b.Emit(op, vm.EncodeDict(a.prog.Dict.Intern(arg.Literal)))

	case vm.OperandClass:
		class, ok := a.prog.Classes[arg.Literal]
		if !ok || arg.Type != TokenWord {
			return errorf(l.no, "unknown class %s", arg.Literal)
		}
		b.New(class)

	case vm.OperandSlot:
		slot, err := st.slot(l.no, arg)
		if err != nil {
			return err
		}
		b.Emit(op, vm.Word(slot))

	case vm.OperandCount:
		n, err := strconv.Atoi(arg.Literal)
		if arg.Type != TokenInt || err != nil || n < 0 {
			return errorf(l.no, "%s needs an argument count, got %q", info.Name, arg.Literal)
		}
		b.Emit(op, vm.Word(n))

	case vm.OperandLabel:
		if arg.Type != TokenWord || !isIdentifier(arg.Literal) {
			return errorf(l.no, "%s needs a label, got %q", info.Name, arg.Literal)
		}
		if _, seen := st.usedAt[arg.Literal]; !seen {
			st.usedAt[arg.Literal] = l.no
		}
		target := a.labelFor(arg.Literal)
		if op == vm.OpGOTO {
			b.Goto(target)
		} else {
			b.JumpIfFalse(target)
		}
	}
	return nil
}

// constant decodes a CONST operand.
func (a *assembler) constant(lineNo int, t Token) (any, error) {
	switch t.Type {
	case TokenInt:
		n, err := strconv.ParseInt(t.Literal, 0, 64)
		if err != nil {
			return nil, errorf(lineNo, "bad integer %s", t.Literal)
		}
		return int(n), nil
	case TokenFloat:
		f, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			return nil, errorf(lineNo, "bad float %s", t.Literal)
		}
		return f, nil
	case TokenString:
		return t.Literal, nil
	case TokenFuncRef:
		fn, ok := a.prog.Functions[t.Literal]
		if !ok {
			return nil, errorf(lineNo, "unknown function %s", t.Literal)
		}
		return fn, nil
	case TokenWord:
		switch t.Literal {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "undefined":
			return object.Undefined, nil
		}
		if class, ok := a.prog.Classes[t.Literal]; ok {
			return class, nil
		}
	}
	return nil, errorf(lineNo, "bad constant %q", t.Literal)
}

// slot resolves a LOAD/STORE operand given by name or number.
func (st *funcState) slot(lineNo int, t Token) (int, error) {
	if t.Type == TokenInt {
		n, err := strconv.Atoi(t.Literal)
		if err != nil || n < 0 || n >= st.nslots {
			return 0, errorf(lineNo, "slot %s out of range", t.Literal)
		}
		return n, nil
	}
	n, ok := st.slots[t.Literal]
	if !ok {
		return 0, errorf(lineNo, "unknown local %s", t.Literal)
	}
	return n, nil
}
