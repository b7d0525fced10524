package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/smalljs/object"
)

// Word is a tagged value as stored on the operand stack, in heap slots and
// inline in instruction streams.
//
// Encoding scheme (low three bits are the tag):
//   - SmallInt:   payload << 3 | 0  (61-bit signed integer)
//   - Reference:  offset  << 3 | 1  (heap offset)
//   - Dictionary: index   << 3 | 2  (constant dictionary index)
//   - Special:    id      << 3 | 3  (false, true, undefined, GC marks)
type Word int64

// Tag constants
const (
	tagBits = 3
	tagMask = 1<<tagBits - 1

	tagInt     Word = 0
	tagRef     Word = 1
	tagDict    Word = 2
	tagSpecial Word = 3
)

// Special payloads
const (
	specialFalse = iota
	specialTrue
	specialUndefined
	specialMarkEmpty
)

// Pre-defined special words
const (
	False     = Word(specialFalse<<tagBits) | tagSpecial
	True      = Word(specialTrue<<tagBits) | tagSpecial
	Undefined = Word(specialUndefined<<tagBits) | tagSpecial

	// The GC mark only ever appears in heap headers.
	markEmpty = Word(specialMarkEmpty<<tagBits) | tagSpecial
)

// SmallInt range (61-bit signed)
const (
	MaxSmallInt int64 = 1<<(63-tagBits) - 1
	MinSmallInt int64 = -(1 << (63 - tagBits))
)

var (
	// ErrMalformedWord reports a word whose tag or payload is not a value.
	ErrMalformedWord = errors.New("malformed word")
	// ErrBadIndex reports a dictionary index outside the populated range.
	ErrBadIndex = errors.New("invalid dictionary index")
)

// Kind is the category of a tagged word.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindUndefined
	KindRef
	KindDict
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindUndefined:
		return "undefined"
	case KindRef:
		return "reference"
	case KindDict:
		return "dictionary"
	}
	return "invalid"
}

// Kind returns the category of w. GC marks and unknown specials are
// KindInvalid.
func (w Word) Kind() Kind {
	switch w & tagMask {
	case tagInt:
		return KindInt
	case tagRef:
		return KindRef
	case tagDict:
		return KindDict
	case tagSpecial:
		switch w {
		case False, True:
			return KindBool
		case Undefined:
			return KindUndefined
		}
	}
	return KindInvalid
}

func (w Word) payload() int {
	return int(w >> tagBits)
}

// IsTruthy reports whether w counts as true in a conditional jump. The
// integer 0 and the false sentinel are false; every other word is true.
func (w Word) IsTruthy() bool {
	return w != False && w != FromInt(0)
}

// ---------------------------------------------------------------------------
// SmallInt
// ---------------------------------------------------------------------------

// IsSmallInt reports whether w holds an inline integer.
func (w Word) IsSmallInt() bool {
	return w&tagMask == tagInt
}

// Int returns the integer in w.
// Panics if w is not a small integer.
func (w Word) Int() int {
	if !w.IsSmallInt() {
		panic("Word.Int: not a small integer")
	}
	return w.payload()
}

// FromInt encodes n inline.
// Panics if n is outside the SmallInt range; Encode interns such values instead.
func FromInt(n int) Word {
	if !fitsSmallInt(n) {
		panic("FromInt: value out of range")
	}
	return Word(n) << tagBits
}

func fitsSmallInt(n int) bool {
	return int64(n) >= MinSmallInt && int64(n) <= MaxSmallInt
}

// ---------------------------------------------------------------------------
// Booleans
// ---------------------------------------------------------------------------

// FromBool returns True or False.
func FromBool(b bool) Word {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// Ref is the host-side view of a heap reference: the offset of the object
// header in the engine's heap.
type Ref int

func (r Ref) String() string {
	return fmt.Sprintf("<object@%d>", int(r))
}

// IsRef reports whether w is a heap reference.
func (w Word) IsRef() bool {
	return w&tagMask == tagRef
}

// EncodeRef tags a heap offset as a reference.
func EncodeRef(offset int) Word {
	return Word(offset)<<tagBits | tagRef
}

// Ref returns the heap offset in w.
// Panics if w is not a reference.
func (w Word) Ref() int {
	if !w.IsRef() {
		panic("Word.Ref: not a reference")
	}
	return w.payload()
}

// ---------------------------------------------------------------------------
// Dictionary indices
// ---------------------------------------------------------------------------

// IsDict reports whether w is a dictionary index.
func (w Word) IsDict() bool {
	return w&tagMask == tagDict
}

// EncodeDict tags a dictionary index.
func EncodeDict(index int) Word {
	return Word(index)<<tagBits | tagDict
}

// DictIndex returns the dictionary index in w.
// Panics if w is not a dictionary index.
func (w Word) DictIndex() int {
	if !w.IsDict() {
		panic("Word.DictIndex: not a dictionary index")
	}
	return w.payload()
}

// ---------------------------------------------------------------------------
// Encode / Decode
// ---------------------------------------------------------------------------

// Encode maps a host value to a word. Integers that fit are inline; bool,
// undefined and nil are specials; Ref is a heap reference. Everything else
// (strings, floats, functions, classes, large integers) goes through d.
func Encode(v any, d *Dictionary) Word {
	switch x := v.(type) {
	case nil:
		return Undefined
	case int:
		if fitsSmallInt(x) {
			return FromInt(x)
		}
	case bool:
		return FromBool(x)
	case object.UndefinedType:
		return Undefined
	case Ref:
		return EncodeRef(int(x))
	}
	return EncodeDict(d.Intern(v))
}

// Decode maps a word back to its host value. References decode to Ref.
func Decode(w Word, d *Dictionary) (any, error) {
	switch w.Kind() {
	case KindInt:
		return w.payload(), nil
	case KindBool:
		return w == True, nil
	case KindUndefined:
		return object.Undefined, nil
	case KindRef:
		return Ref(w.payload()), nil
	case KindDict:
		return d.Resolve(w.payload())
	}
	return nil, fmt.Errorf("%w: %#x", ErrMalformedWord, int64(w))
}

// String renders w without a dictionary, for dumps.
func (w Word) String() string {
	switch w.Kind() {
	case KindInt:
		return fmt.Sprintf("int(%d)", w.payload())
	case KindBool:
		if w == True {
			return "true"
		}
		return "false"
	case KindUndefined:
		return "undefined"
	case KindRef:
		return fmt.Sprintf("ref(%d)", w.payload())
	case KindDict:
		return fmt.Sprintf("dict(%d)", w.payload())
	}
	if w == markEmpty {
		return "mark(empty)"
	}
	return fmt.Sprintf("invalid(%#x)", int64(w))
}
