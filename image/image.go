// Package image snapshots an assembled program, its constant dictionary and
// entry function, into a self-contained value that can be written as CBOR,
// content-addressed and loaded back into a runnable form.
package image

import (
	"errors"
	"fmt"

	"github.com/chazu/smalljs/object"
	"github.com/chazu/smalljs/vm"
)

// Version is the image format version written by this package.
const Version = 1

var (
	// ErrNativeFunction is returned when a dictionary holds a host function,
	// which has no portable representation.
	ErrNativeFunction = errors.New("native functions cannot be imaged")
	// ErrUnsupportedConstant is returned for dictionary entries of other host
	// types.
	ErrUnsupportedConstant = errors.New("unsupported constant")
	// ErrCorrupt is returned by Load for images that do not describe a valid
	// program.
	ErrCorrupt = errors.New("corrupt image")
)

// ConstantKind identifies what a Constant describes.
type ConstantKind uint8

const (
	ConstString   ConstantKind = 1
	ConstFloat    ConstantKind = 2
	ConstInt      ConstantKind = 3
	ConstClass    ConstantKind = 4
	ConstFunction ConstantKind = 5
)

func (k ConstantKind) String() string {
	switch k {
	case ConstString:
		return "string"
	case ConstFloat:
		return "float"
	case ConstInt:
		return "int"
	case ConstClass:
		return "class"
	case ConstFunction:
		return "function"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Constant is one dictionary entry. Only the fields of its kind are set.
type Constant struct {
	Kind   ConstantKind `cbor:"1,keyasint"`
	Text   string       `cbor:"2,keyasint,omitempty"` // string
	Float  float64      `cbor:"3,keyasint,omitempty"` // float
	Int    int64        `cbor:"4,keyasint,omitempty"` // int outside the inline range
	Name   string       `cbor:"5,keyasint,omitempty"` // class or function name
	Fields []string     `cbor:"6,keyasint,omitempty"` // class fields in index order
	Code   []int64      `cbor:"7,keyasint,omitempty"` // function instruction words
	Slots  int          `cbor:"8,keyasint,omitempty"`
	Params int          `cbor:"9,keyasint,omitempty"`
}

// Image is a program snapshot. Constants are in dictionary index order so
// the dictionary words embedded in code stay valid after loading.
type Image struct {
	Version   int        `cbor:"1,keyasint"`
	Constants []Constant `cbor:"2,keyasint"`
	Entry     int        `cbor:"3,keyasint"` // dictionary index of the entry function
}

// FromDictionary snapshots dict with entry as the entry function. entry is
// interned into dict if it is not there yet.
func FromDictionary(dict *vm.Dictionary, entry *object.Object) (*Image, error) {
	if _, ok, err := vm.CodeOf(entry); err != nil || !ok {
		return nil, fmt.Errorf("image: entry %s is not a compiled function", entry.Name())
	}
	img := &Image{Version: Version, Entry: dict.Intern(entry)}

	for i, v := range dict.Entries() {
		c, err := constant(v)
		if err != nil {
			return nil, fmt.Errorf("image: constant %d: %w", i, err)
		}
		img.Constants = append(img.Constants, c)
	}
	return img, nil
}

func constant(v any) (Constant, error) {
	switch x := v.(type) {
	case string:
		return Constant{Kind: ConstString, Text: x}, nil
	case float64:
		return Constant{Kind: ConstFloat, Float: x}, nil
	case int:
		return Constant{Kind: ConstInt, Int: int64(x)}, nil
	case *object.Object:
		code, compiled, err := vm.CodeOf(x)
		if err != nil {
			return Constant{}, err
		}
		if compiled {
			words := code.Instructions()
			c := Constant{
				Kind:   ConstFunction,
				Name:   x.Name(),
				Code:   make([]int64, len(words)),
				Slots:  code.SlotCount(),
				Params: code.ParameterCount(),
			}
			for i, w := range words {
				c.Code[i] = int64(w)
			}
			return c, nil
		}
		if x.IsFunction() {
			return Constant{}, fmt.Errorf("%w: %s", ErrNativeFunction, x.Name())
		}
		fields := make([]string, x.Len())
		for _, name := range x.Keys() {
			if idx := vm.FieldIndex(x, name); idx >= 0 {
				fields[idx] = name
			}
		}
		return Constant{Kind: ConstClass, Name: x.Name(), Fields: fields}, nil
	}
	return Constant{}, fmt.Errorf("%w: %T", ErrUnsupportedConstant, v)
}

// Load rebuilds the dictionary and returns it with the entry function.
// Entries are appended, not interned, so every index matches the original.
func (img *Image) Load() (*vm.Dictionary, *object.Object, error) {
	if img.Version != Version {
		return nil, nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, img.Version, Version)
	}

	dict := vm.NewDictionary()
	type pending struct {
		fn *object.Object
		c  Constant
	}
	var funcs []pending

	for i, c := range img.Constants {
		switch c.Kind {
		case ConstString:
			dict.Append(c.Text)
		case ConstFloat:
			dict.Append(c.Float)
		case ConstInt:
			dict.Append(int(c.Int))
		case ConstClass:
			dict.Append(object.NewClass(c.Name, c.Fields...))
		case ConstFunction:
			fn := vm.NewFunction(c.Name, nil)
			dict.Append(fn)
			funcs = append(funcs, pending{fn, c})
		default:
			return nil, nil, fmt.Errorf("%w: constant %d has %s", ErrCorrupt, i, c.Kind)
		}
	}

	// Code is attached once every constant exists so operands can be checked.
	for _, p := range funcs {
		words := make([]vm.Word, len(p.c.Code))
		for i, w := range p.c.Code {
			words[i] = vm.Word(w)
		}
		if err := verify(words, dict.Len()); err != nil {
			return nil, nil, fmt.Errorf("%w: function %s: %v", ErrCorrupt, p.c.Name, err)
		}
		code, err := vm.NewCode(words, p.c.Slots, p.c.Params)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: function %s: %v", ErrCorrupt, p.c.Name, err)
		}
		p.fn.Register(object.CodeKey, code)
	}

	v, err := dict.Resolve(img.Entry)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: entry: %v", ErrCorrupt, err)
	}
	entry, ok := v.(*object.Object)
	if !ok {
		return nil, nil, fmt.Errorf("%w: entry %v is not a function", ErrCorrupt, v)
	}
	if _, compiled, _ := vm.CodeOf(entry); !compiled {
		return nil, nil, fmt.Errorf("%w: entry %s has no code", ErrCorrupt, entry.Name())
	}
	return dict, entry, nil
}

// verify checks that every opcode is known, every operand is present and
// every dictionary operand is in range.
func verify(words []vm.Word, dictLen int) error {
	for pc := 0; pc < len(words); {
		op := vm.Opcode(words[pc])
		if !op.Valid() {
			return fmt.Errorf("unknown opcode %d at %d", int64(words[pc]), pc)
		}
		if pc+op.Size() > len(words) {
			return fmt.Errorf("%s at %d is missing its operand", op, pc)
		}
		switch op.Info().Operand {
		case vm.OperandWord, vm.OperandName, vm.OperandClass:
			w := words[pc+1]
			if w.IsDict() && w.DictIndex() >= dictLen {
				return fmt.Errorf("%s at %d refers to constant %d of %d", op, pc, w.DictIndex(), dictLen)
			}
		}
		pc += op.Size()
	}
	return nil
}
