package vm

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/smalljs/object"
)

var log = commonlog.GetLogger("smalljs.vm")

// Default capacities in words.
const (
	DefaultStackSize = 4096
	DefaultHeapSize  = 4096
)

// Config sizes an engine.
type Config struct {
	StackSize int   // operand/frame stack capacity in words
	HeapSize  int   // heap capacity in words
	MaxSteps  int64 // instruction budget per invocation, 0 = unlimited
	Trace     bool  // dump the stack before every instruction (debug log)
}

// DefaultConfig returns the default capacities with no budget and no trace.
func DefaultConfig() Config {
	return Config{StackSize: DefaultStackSize, HeapSize: DefaultHeapSize}
}

// ---------------------------------------------------------------------------
// Engine: the stack machine
// ---------------------------------------------------------------------------

// Engine executes Code against a flat word stack and a flat word heap.
//
// An engine owns its stack and heap and shares nothing with other engines
// except what the caller hands it: the dictionary the code was built against
// and the global environment. It is not safe for concurrent use.
type Engine struct {
	id      uuid.UUID
	cfg     Config
	dict    *Dictionary
	globals *object.Object

	// Execution state
	stack    []Word
	sp       int // next free stack slot
	heap     *Heap
	pc       int
	op       Opcode // instruction being executed
	fr       frame
	function *object.Object
	instrs   []Word
	steps    int64
}

// NewEngine creates an engine. Zero capacities in cfg fall back to defaults.
func NewEngine(dict *Dictionary, globals *object.Object, cfg Config) *Engine {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.HeapSize <= 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	return &Engine{
		id:      uuid.New(),
		cfg:     cfg,
		dict:    dict,
		globals: globals,
		stack:   make([]Word, cfg.StackSize),
		heap:    NewHeap(cfg.HeapSize),
	}
}

// ID identifies the engine in logs.
func (e *Engine) ID() uuid.UUID { return e.id }

// Dictionary returns the dictionary the engine decodes against.
func (e *Engine) Dictionary() *Dictionary { return e.dict }

// Globals returns the global environment.
func (e *Engine) Globals() *object.Object { return e.globals }

// Heap returns the engine's heap.
func (e *Engine) Heap() *Heap { return e.heap }

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Execute runs a compiled function as the outermost frame with an undefined
// receiver and no arguments, and returns its decoded result.
func (e *Engine) Execute(fn *object.Object) (any, error) {
	return e.Call(fn, object.Undefined)
}

// Call invokes fn with receiver and args as the outermost invocation. Native
// functions are invoked directly. Compiled functions get the same argument
// count check as FUNCALL.
//
// Any fatal condition ends the invocation: language-level faults come back
// as *object.Failure, engine faults as *Fault. The stack is reset on every
// call; the heap and globals persist across calls.
func (e *Engine) Call(fn *object.Object, receiver any, args ...any) (result any, err error) {
	defer e.recoverFault(&err)

	code, compiled, err := CodeOf(fn)
	if err != nil {
		return nil, err
	}
	if !compiled {
		if !fn.IsFunction() {
			return nil, object.Failf("can't call non function %v", fn)
		}
		return fn.Invoke(receiver, args...)
	}

	log.Debugf("engine %s: call %s with %d argument(s)", e.id, fn.Name(), len(args))
	e.sp, e.steps, e.op = 0, 0, 0
	e.fr = frame{}
	e.push(e.encode(fn))
	e.push(e.encode(receiver))
	for _, a := range args {
		e.push(e.encode(a))
	}
	e.enter(fn, code, funcallPrefix, len(args), activationRecord{caller: e.encode(fn)})

	result = e.run()
	log.Debugf("engine %s: %s returned %v after %d step(s)", e.id, fn.Name(), result, e.steps)
	return result, nil
}

// recoverFault turns a panic raised on a fatal path into the returned error.
func (e *Engine) recoverFault(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch x := r.(type) {
	case *object.Failure:
		*err = x
	case *Fault:
		*err = x
	case runtime.Error:
		*err = &Fault{Op: e.op, PC: e.pc, Err: x}
	case error:
		*err = x
	default:
		*err = &Fault{Op: e.op, PC: e.pc, Err: fmt.Errorf("%v", x)}
	}
	log.Debugf("engine %s: %v", e.id, *err)
}

// fail raises a language-level failure.
func (e *Engine) fail(format string, args ...any) {
	panic(object.Failf(format, args...))
}

// fault raises an engine fault for the current instruction.
func (e *Engine) fault(err error) {
	panic(&Fault{Op: e.op, PC: e.pc, Err: err})
}

// raise re-raises err, keeping failures as they are.
func (e *Engine) raise(err error) {
	if f, ok := object.AsFailure(err); ok {
		panic(f)
	}
	e.fault(err)
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (e *Engine) push(w Word) {
	if e.sp >= len(e.stack) {
		e.fault(ErrStackOverflow)
	}
	e.stack[e.sp] = w
	e.sp++
}

func (e *Engine) pop() Word {
	if e.sp <= e.fr.top() {
		e.fault(ErrStackUnderflow)
	}
	e.sp--
	return e.stack[e.sp]
}

func (e *Engine) peek() Word {
	if e.sp <= e.fr.top() {
		e.fault(ErrStackUnderflow)
	}
	return e.stack[e.sp-1]
}

func (e *Engine) encode(v any) Word {
	if inst, ok := v.(Instance); ok {
		return EncodeRef(int(inst.ref))
	}
	return Encode(v, e.dict)
}

// decode maps w to its host value; references become Instance views.
func (e *Engine) decode(w Word) any {
	if w.IsRef() {
		return e.instance(w.Ref())
	}
	v, err := Decode(w, e.dict)
	if err != nil {
		e.fault(err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Operand fetch
// ---------------------------------------------------------------------------

func (e *Engine) operand() Word {
	if e.pc >= len(e.instrs) {
		e.fault(ErrCodeOverrun)
	}
	w := e.instrs[e.pc]
	e.pc++
	return w
}

// nameOperand decodes an inline dictionary word that must name a string.
func (e *Engine) nameOperand(what string) string {
	w := e.operand()
	if !w.IsDict() {
		e.fault(fmt.Errorf("%w: %s name %s", ErrBadOperand, what, w))
	}
	v, err := e.dict.Resolve(w.DictIndex())
	if err != nil {
		e.fault(err)
	}
	name, ok := v.(string)
	if !ok {
		e.fail("invalid %s name %v", what, v)
	}
	return name
}

func (e *Engine) slotOperand() int {
	slot := int(e.operand())
	if slot < 0 || slot >= e.fr.code.slotCount {
		e.fault(fmt.Errorf("%w: slot %d of %d", ErrBadOperand, slot, e.fr.code.slotCount))
	}
	return e.fr.bp + slot
}

func (e *Engine) labelOperand() int {
	label := int(e.operand())
	if label < 0 || label >= len(e.instrs) {
		e.fault(fmt.Errorf("%w: label %d", ErrBadOperand, label))
	}
	return label
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// run executes until the outermost frame returns.
func (e *Engine) run() any {
	for {
		if e.cfg.MaxSteps > 0 {
			e.steps++
			if e.steps > e.cfg.MaxSteps {
				e.fault(ErrStepLimit)
			}
		}
		if e.pc >= len(e.instrs) {
			e.fault(ErrCodeOverrun)
		}
		e.op = Opcode(e.instrs[e.pc])
		if e.cfg.Trace {
			e.traceStack()
		}
		e.pc++

		switch e.op {
		case OpCONST:
			e.push(e.operand())

		case OpLOOKUP:
			name := e.nameOperand("variable")
			v, ok := e.globals.Lookup(name)
			if !ok {
				e.fail("undefined variable %s", name)
			}
			e.push(e.encode(v))

		case OpREGISTER:
			name := e.nameOperand("variable")
			e.globals.Register(name, e.decode(e.pop()))

		case OpLOAD:
			e.push(e.stack[e.slotOperand()])

		case OpSTORE:
			at := e.slotOperand()
			e.stack[at] = e.pop()

		case OpDUP:
			e.push(e.peek())

		case OpPOP:
			e.pop()

		case OpSWAP:
			v1 := e.pop()
			v2 := e.pop()
			e.push(v1)
			e.push(v2)

		case OpFUNCALL:
			e.funcall(int(e.operand()))

		case OpRET:
			if result, done := e.ret(); done {
				return result
			}

		case OpGOTO:
			e.pc = e.labelOperand()

		case OpJUMP_IF_FALSE:
			label := e.labelOperand()
			if !e.pop().IsTruthy() {
				e.pc = label
			}

		case OpNEW:
			e.newObject(e.operand())

		case OpGET:
			e.getField(e.nameOperand("field"))

		case OpPUT:
			e.putField(e.nameOperand("field"))

		case OpPRINT:
			e.print()

		default:
			e.fault(fmt.Errorf("%w: %d", ErrUnknownOpcode, int(e.op)))
		}
	}
}

// print forwards the decoded top of stack to the global print primitive and
// pushes undefined as the instruction's result.
func (e *Engine) print() {
	v := e.decode(e.pop())
	p, ok := e.globals.Lookup("print")
	if !ok {
		e.fail("undefined variable print")
	}
	fn, ok := p.(*object.Object)
	if !ok {
		e.fail("can't call non function %v", p)
	}
	e.invokeNative(fn, object.Undefined, []any{v})
	e.push(Undefined)
}
