package core

import (
	"bytes"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is the tagged scalar/string union described in spec §3. A string
// Value carries both the byte payload and an Owned flag: Owned=true means
// this particular Value is the one responsible for the buffer (own-copy
// has been applied to it, or it was freshly allocated); Owned=false means
// the buffer is an alias of a longer-lived owner (the constant pool, a
// local slot, a global slot) and this Value must not outlive it.
//
// Non-string variants carry their payload directly and ignore Owned.
type Value struct {
	Kind  Kind
	I     int64
	F     float64
	Ch    byte
	B     bool
	Str   []byte
	Owned bool
}

func Null() Value                  { return Value{Kind: KindNull} }
func Int(i int64) Value            { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value        { return Value{Kind: KindFloat, F: f} }
func Bool(b bool) Value            { return Value{Kind: KindBool, B: b} }
func Char(c byte) Value            { return Value{Kind: KindChar, Ch: c} }

// StringOwned wraps buf as a freshly-owned string value. The caller must
// not mutate buf afterward; ownership of the slice transfers to the Value.
func StringOwned(buf []byte) Value {
	return Value{Kind: KindString, Str: buf, Owned: true}
}

// StringOwnedFrom allocates an owned copy of s.
func StringOwnedFrom(s string) Value {
	return StringOwned([]byte(s))
}

// StringBorrow produces a Value that aliases buf without copying it. Used
// for push-const and load-local/load-global on string slots, where the
// spec requires "no allocation."
func StringBorrow(buf []byte) Value {
	return Value{Kind: KindString, Str: buf, Owned: false}
}

// OwnCopy implements the own_copy operation from spec §4.1: returns v
// unchanged if it is not a string, or if it is already owned; otherwise
// allocates a fresh heap copy of its buffer and returns an owned Value.
// This is the one place an allocation is forced by the ownership
// discipline rather than by program semantics (string concatenation,
// to-string, etc).
func (v Value) OwnCopy() Value {
	if v.Kind != KindString || v.Owned {
		return v
	}
	buf := make([]byte, len(v.Str))
	copy(buf, v.Str)
	return Value{Kind: KindString, Str: buf, Owned: true}
}

// Release is the logical destruction hook from spec §3: "destruction is
// a no-op unless it is an owned string." Go's garbage collector reclaims
// the backing array regardless; Release exists so call sites that must
// free-before-overwrite (store-local, store-global, frame teardown) read
// the way the ownership discipline describes, and so tests can assert the
// one-owner invariant by tracking release calls if ever needed.
func (v Value) Release() {
	_ = v
}

// Truthy implements spec §4.1: non-zero numerics, non-empty strings,
// non-NUL chars, and true are truthy; everything else is falsy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindChar:
		return v.Ch != 0
	case KindString:
		return len(v.Str) > 0
	case KindNull:
		return false
	default:
		return false
	}
}

// ToDisplay renders v the way to_display does in spec §4.1: strings pass
// through, everything else is formatted canonically.
func (v Value) ToDisplay() string {
	switch v.Kind {
	case KindString:
		return string(v.Str)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindChar:
		return string([]byte{v.Ch})
	case KindNull:
		return "null"
	default:
		return "<invalid>"
	}
}

// Eq implements spec §4.7's equal/not-equal semantics: type-equal
// operands compared by variant, strings compared by bytes, nulls equal
// iff both null, otherwise not-equal.
func (v Value) Eq(u Value) bool {
	if v.Kind != u.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == u.B
	case KindInt:
		return v.I == u.I
	case KindFloat:
		return v.F == u.F
	case KindChar:
		return v.Ch == u.Ch
	case KindString:
		return bytes.Equal(v.Str, u.Str)
	default:
		return false
	}
}

// AsFloat64 promotes an Int/Float value to float64, used by the
// Int/Float comparison-mixing rule decided in SPEC_FULL.md §5.2: Int
// operands promote to Float and compare with IEEE754 semantics.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}

func isNumeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}
