package asm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/smalljs/object"
	"github.com/chazu/smalljs/vm"
)

const factorialSource = `
; factorial of 5
func fact n
  LOOKUP <=
  CONST undefined
  LOAD n
  CONST 1
  FUNCALL 2
  JUMP_IF_FALSE recurse
  CONST 1
  RET
recurse:
  LOOKUP *
  CONST undefined
  LOAD n
  CONST @fact
  CONST undefined
  LOOKUP -
  CONST undefined
  LOAD n
  CONST 1
  FUNCALL 2
  FUNCALL 1
  FUNCALL 2
  RET
end

func main
  CONST @fact
  CONST undefined
  CONST 5
  FUNCALL 1
  RET
end
`

func run(t *testing.T, src string) (any, string) {
	t.Helper()
	prog, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var out bytes.Buffer
	result, err := vm.Run(prog.Entry, prog.Dict, &out, vm.DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result, out.String()
}

func TestAssembleFactorial(t *testing.T) {
	result, _ := run(t, factorialSource)
	if result != 120 {
		t.Errorf("fact(5) = %v, want 120", result)
	}
}

func TestAssembleProgramShape(t *testing.T) {
	prog, err := Assemble(factorialSource)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog.Order) != 2 || prog.Order[0] != "fact" || prog.Order[1] != "main" {
		t.Errorf("Order = %v", prog.Order)
	}
	if prog.Entry != prog.Functions["main"] {
		t.Error("entry should be main")
	}
	code, ok, err := vm.CodeOf(prog.Functions["fact"])
	if !ok || err != nil {
		t.Fatalf("fact has no code: %v", err)
	}
	if code.ParameterCount() != 2 || code.SlotCount() != 2 {
		t.Errorf("fact params/slots = %d/%d, want 2/2", code.ParameterCount(), code.SlotCount())
	}
}

func TestAssembleObjects(t *testing.T) {
	src := `
class Point x y
func main
  var p
  CONST 3
  CONST 4
  NEW Point
  STORE p
  LOAD p
  CONST 10
  PUT x
  LOOKUP +
  CONST undefined
  LOAD p
  GET x
  LOAD p
  GET y
  FUNCALL 2
  RET
end
`
	result, _ := run(t, src)
	if result != 14 {
		t.Errorf("result = %v, want 14", result)
	}
}

func TestAssembleGlobalsAndPrint(t *testing.T) {
	src := `
func main
  CONST "hello, world"   ; a string with a comma
  PRINT
  POP
  CONST 2.5
  REGISTER answer
  LOOKUP answer
  RET
end
`
	result, out := run(t, src)
	if result != 2.5 {
		t.Errorf("result = %v, want 2.5", result)
	}
	if out != "hello, world\n" {
		t.Errorf("output = %q", out)
	}
}

func TestAssembleConstants(t *testing.T) {
	src := `
class Box v
func main
  CONST true
  CONST false
  CONST undefined
  CONST -7
  CONST 0x10
  CONST "a \"quoted\" string; not a comment"
  CONST Box
  CONST @main
  RET
end
`
	prog, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code, _, _ := vm.CodeOf(prog.Entry)
	instrs := code.Instructions()

	want := []any{
		true, false, object.Undefined, -7, 16,
		`a "quoted" string; not a comment`,
		prog.Classes["Box"], prog.Entry,
	}
	for i, w := range want {
		got, err := vm.Decode(instrs[2*i+1], prog.Dict)
		if err != nil {
			t.Fatalf("constant %d: %v", i, err)
		}
		if got != w {
			t.Errorf("constant %d = %v, want %v", i, got, w)
		}
	}
}

func TestAssembleSlotsByNumberAndThis(t *testing.T) {
	src := `
func pick a b
  LOAD 2
  STORE this
  LOAD 0
  RET
end
func main
  CONST @pick
  CONST undefined
  CONST 1
  CONST 2
  FUNCALL 2
  RET
end
`
	result, _ := run(t, src)
	if result != 2 {
		t.Errorf("result = %v, want 2", result)
	}
}

func TestAssembleLowercaseMnemonics(t *testing.T) {
	result, _ := run(t, "func main\n  const 9\n  ret\nend\n")
	if result != 9 {
		t.Errorf("result = %v, want 9", result)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"no main", "func f\n RET\nend\n", 0, "no main function"},
		{"missing end", "func main\n CONST 1\n RET\n", 1, "missing end"},
		{"unknown op", "func main\n FLY 1\nend\n", 2, "unknown instruction FLY"},
		{"unknown local", "func main\n LOAD x\n RET\nend\n", 2, "unknown local x"},
		{"slot range", "func main\n LOAD 3\n RET\nend\n", 2, "out of range"},
		{"unknown class", "func main\n NEW Nope\n RET\nend\n", 2, "unknown class Nope"},
		{"unknown function", "func main\n CONST @nope\n RET\nend\n", 2, "unknown function nope"},
		{"undefined label", "func main\n GOTO done\n RET\nend\n", 2, "undefined label done"},
		{"label twice", "func main\na:\na:\n RET\nend\n", 3, "defined twice"},
		{"extra operand", "func main\n RET 1\nend\n", 2, "takes no operand"},
		{"missing operand", "func main\n LOAD\nend\n", 2, "takes one operand"},
		{"bad count", "func main\n FUNCALL x\nend\n", 2, "argument count"},
		{"unterminated string", "func main\n CONST \"abc\nend\n", 2, "unterminated"},
		{"duplicate function", "func main\n RET\nend\nfunc main\n RET\nend\n", 4, "declared twice"},
		{"duplicate local", "func main a a\n RET\nend\n", 1, "duplicate local a"},
		{"empty function", "func main\nend\n", 1, "no instructions"},
		{"nested func", "func main\nfunc other\n", 2, "func inside function"},
		{"outside function", "RET\n", 1, "outside function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			var asmErr *Error
			if !errors.As(err, &asmErr) {
				t.Fatalf("error = %v (%T), want *Error", err, err)
			}
			if asmErr.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", asmErr.Line, tt.line, err)
			}
			if !strings.Contains(asmErr.Msg, tt.msg) {
				t.Errorf("message = %q, want it to contain %q", asmErr.Msg, tt.msg)
			}
		})
	}
}

func TestProgramDisassemble(t *testing.T) {
	prog, err := Assemble(factorialSource)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	dis := prog.Disassemble()
	for _, want := range []string{"func fact", "func main", "LOOKUP \"<=\"", "JUMP_IF_FALSE (-> ", "CONST function fact"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %q:\n%s", want, dis)
		}
	}
}

func TestLexLine(t *testing.T) {
	tokens, err := lexLine(`  CONST "x y" ; trailing`, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 || tokens[0].Literal != "CONST" || tokens[1].Type != TokenString || tokens[1].Literal != "x y" {
		t.Errorf("tokens = %+v", tokens)
	}

	tests := map[string]TokenType{
		"42":    TokenInt,
		"-3":    TokenInt,
		"1.5":   TokenFloat,
		"1e3":   TokenFloat,
		"Inf":   TokenWord,
		"-":     TokenWord,
		"<=":    TokenWord,
		"@main": TokenFuncRef,
		"loop:": TokenLabel,
	}
	for word, want := range tests {
		if got := classify(word).Type; got != want {
			t.Errorf("classify(%q) = %v, want %v", word, got, want)
		}
	}
}
