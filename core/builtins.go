package core

import (
	"bufio"
	"math"
	"strconv"
	"strings"
)

// BuiltinID is the stable numeric id spec §6 promises every built-in.
// Print and formatted-print are assigned ids but are never looked up in
// the dispatch table — the VM recognizes them and handles them inline
// (spec §4.4).
type BuiltinID int

const (
	BuiltinPrint BuiltinID = iota
	BuiltinPrintf

	BuiltinInput
	BuiltinReadLine

	BuiltinAbs
	BuiltinSqrt
	BuiltinPow
	BuiltinSin
	BuiltinCos
	BuiltinTan
	BuiltinFloor
	BuiltinCeil
	BuiltinRound
	BuiltinMax
	BuiltinMin

	BuiltinStrLen
	BuiltinSubstr
	BuiltinToUpperCase
	BuiltinToLowerCase
	BuiltinStrContains
	BuiltinStrIndexOf
	BuiltinStrReplace
	BuiltinStrTrim
	BuiltinStrSplit

	BuiltinToInt
	BuiltinToFloat
	BuiltinToString
	BuiltinToBool
	BuiltinTypeOf

	BuiltinExit
	BuiltinAssert
	BuiltinIsNull
	BuiltinIsInt
	BuiltinIsFloat
	BuiltinIsString
	BuiltinIsBool

	builtinCount
)

// BuiltinFunc is the calling convention every table-dispatched built-in
// honors: pop argc values, push exactly one return value (spec §4.7's
// "call-builtin" row and §5's resource model).
type BuiltinFunc func(vm *VM, args []Value) (Value, *RuntimeError)

type builtinEntry struct {
	id   BuiltinID
	name string
	fn   BuiltinFunc
}

// BuiltinRegistry is the static {id, name, handler} table (component H/I
// support, spec §4.4). Print/printf are registered so Lookup resolves
// their name and id at parse/codegen time, but their Fn fields are nil —
// the VM must never dispatch through the table for them.
type BuiltinRegistry struct {
	entries []builtinEntry
	byName  map[string]BuiltinID
}

func NewBuiltinRegistry() *BuiltinRegistry {
	r := &BuiltinRegistry{byName: make(map[string]BuiltinID)}
	r.register(BuiltinPrint, "print", nil)
	r.register(BuiltinPrintf, "printf", nil)
	r.register(BuiltinInput, "input", builtinInput)
	r.register(BuiltinReadLine, "readLine", builtinInput)

	r.register(BuiltinAbs, "abs", builtinAbs)
	r.register(BuiltinSqrt, "sqrt", builtinSqrt)
	r.register(BuiltinPow, "pow", builtinPow)
	r.register(BuiltinSin, "sin", builtinSin)
	r.register(BuiltinCos, "cos", builtinCos)
	r.register(BuiltinTan, "tan", builtinTan)
	r.register(BuiltinFloor, "floor", builtinFloor)
	r.register(BuiltinCeil, "ceil", builtinCeil)
	r.register(BuiltinRound, "round", builtinRound)
	r.register(BuiltinMax, "max", builtinMax)
	r.register(BuiltinMin, "min", builtinMin)

	r.register(BuiltinStrLen, "strLen", builtinStrLen)
	r.register(BuiltinSubstr, "substr", builtinSubstr)
	r.register(BuiltinToUpperCase, "toUpperCase", builtinToUpperCase)
	r.register(BuiltinToLowerCase, "toLowerCase", builtinToLowerCase)
	r.register(BuiltinStrContains, "strContains", builtinStrContains)
	r.register(BuiltinStrIndexOf, "strIndexOf", builtinStrIndexOf)
	r.register(BuiltinStrReplace, "strReplace", builtinStrReplace)
	r.register(BuiltinStrTrim, "strTrim", builtinStrTrim)
	r.register(BuiltinStrSplit, "strSplit", builtinStrSplit)

	r.register(BuiltinToInt, "toInt", builtinToInt)
	r.register(BuiltinToFloat, "toFloat", builtinToFloat)
	r.register(BuiltinToString, "toString", builtinToString)
	r.register(BuiltinToBool, "toBool", builtinToBool)
	r.register(BuiltinTypeOf, "typeOf", builtinTypeOf)

	r.register(BuiltinExit, "exit", builtinExit)
	r.register(BuiltinAssert, "assert", builtinAssert)
	r.register(BuiltinIsNull, "isNull", builtinIsKind(KindNull))
	r.register(BuiltinIsInt, "isInt", builtinIsKind(KindInt))
	r.register(BuiltinIsFloat, "isFloat", builtinIsKind(KindFloat))
	r.register(BuiltinIsString, "isString", builtinIsKind(KindString))
	r.register(BuiltinIsBool, "isBool", builtinIsKind(KindBool))
	return r
}

func (r *BuiltinRegistry) register(id BuiltinID, name string, fn BuiltinFunc) {
	r.entries = append(r.entries, builtinEntry{id: id, name: name, fn: fn})
	r.byName[name] = id
}

// Lookup resolves a callee name to its built-in id, used by the code
// generator's call-emission step (spec §4.6) and by the resolver.
func (r *BuiltinRegistry) Lookup(name string) (BuiltinID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *BuiltinRegistry) Dispatch(id BuiltinID, vm *VM, args []Value) (Value, *RuntimeError) {
	if int(id) < 0 || int(id) >= len(r.entries) {
		return Null(), rtErrorf(Location{}, "invalid builtin id %d", id)
	}
	entry := r.entries[id]
	if entry.fn == nil {
		return Null(), rtErrorf(Location{}, "builtin %q is not table-dispatched", entry.name)
	}
	return entry.fn(vm, args)
}

func requireArgs(name string, args []Value, n int) *RuntimeError {
	if len(args) != n {
		return rtErrorf(Location{}, "%s requires %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func argFloat(v Value) (float64, bool) {
	return v.AsFloat64()
}

// --- I/O ---

// builtinInput backs both input and readLine: read one line from
// standard input and strip a single trailing CR or LF (spec §6's
// "Standard input / output"); EOF yields an owned empty string.
func builtinInput(vm *VM, args []Value) (Value, *RuntimeError) {
	if vm.stdin == nil {
		vm.stdin = bufio.NewReader(vm.stdinSource)
	}
	line, err := vm.stdin.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && line == "" {
		return StringOwnedFrom(""), nil
	}
	return StringOwnedFrom(line), nil
}

// --- math ---

func builtinAbs(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("abs", args, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindInt:
		n := args[0].I
		if n < 0 {
			n = -n
		}
		return Int(n), nil
	case KindFloat:
		return Float(math.Abs(args[0].F)), nil
	default:
		return Null(), rtErrorf(Location{}, "abs requires a numeric argument")
	}
}

func unaryMath(name string, f func(float64) float64) BuiltinFunc {
	return func(vm *VM, args []Value) (Value, *RuntimeError) {
		if err := requireArgs(name, args, 1); err != nil {
			return Null(), err
		}
		x, ok := argFloat(args[0])
		if !ok {
			return Null(), rtErrorf(Location{}, "%s requires a numeric argument", name)
		}
		return Float(f(x)), nil
	}
}

var builtinSqrt = unaryMath("sqrt", math.Sqrt)
var builtinSin = unaryMath("sin", math.Sin)
var builtinCos = unaryMath("cos", math.Cos)
var builtinTan = unaryMath("tan", math.Tan)

func builtinPow(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("pow", args, 2); err != nil {
		return Null(), err
	}
	base, ok1 := argFloat(args[0])
	exp, ok2 := argFloat(args[1])
	if !ok1 || !ok2 {
		return Null(), rtErrorf(Location{}, "pow requires numeric arguments")
	}
	return Float(math.Pow(base, exp)), nil
}

func builtinFloor(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("floor", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind == KindInt {
		return args[0], nil
	}
	x, ok := argFloat(args[0])
	if !ok {
		return Null(), rtErrorf(Location{}, "floor requires a numeric argument")
	}
	return Int(int64(math.Floor(x))), nil
}

func builtinCeil(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("ceil", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind == KindInt {
		return args[0], nil
	}
	x, ok := argFloat(args[0])
	if !ok {
		return Null(), rtErrorf(Location{}, "ceil requires a numeric argument")
	}
	return Int(int64(math.Ceil(x))), nil
}

func builtinRound(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("round", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind == KindInt {
		return args[0], nil
	}
	x, ok := argFloat(args[0])
	if !ok {
		return Null(), rtErrorf(Location{}, "round requires a numeric argument")
	}
	return Int(int64(math.Round(x))), nil
}

func builtinMax(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("max", args, 2); err != nil {
		return Null(), err
	}
	return numericExtreme(args[0], args[1], false)
}

func builtinMin(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("min", args, 2); err != nil {
		return Null(), err
	}
	return numericExtreme(args[0], args[1], true)
}

func numericExtreme(a, b Value, wantMin bool) (Value, *RuntimeError) {
	if a.Kind == KindInt && b.Kind == KindInt {
		if (a.I < b.I) == wantMin {
			return a, nil
		}
		return b, nil
	}
	fa, ok1 := argFloat(a)
	fb, ok2 := argFloat(b)
	if !ok1 || !ok2 {
		return Null(), rtErrorf(Location{}, "max/min require numeric arguments")
	}
	if (fa < fb) == wantMin {
		return Float(fa), nil
	}
	return Float(fb), nil
}

// --- string ---

func builtinStrLen(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strLen", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strLen requires a string argument")
	}
	return Int(int64(len(args[0].Str))), nil
}

// builtinSubstr implements (s, start, len?) with start/len clamped to the
// string's bounds rather than erroring, matching the original stdlib's
// defensive clamping.
func builtinSubstr(vm *VM, args []Value) (Value, *RuntimeError) {
	if len(args) != 2 && len(args) != 3 {
		return Null(), rtErrorf(Location{}, "substr requires 2 or 3 arguments, got %d", len(args))
	}
	if args[0].Kind != KindString || args[1].Kind != KindInt {
		return Null(), rtErrorf(Location{}, "substr requires (string, int, int?)")
	}
	s := args[0].Str
	start := int(args[1].I)
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	length := len(s) - start
	if len(args) == 3 {
		if args[2].Kind != KindInt {
			return Null(), rtErrorf(Location{}, "substr requires (string, int, int?)")
		}
		length = int(args[2].I)
		if length < 0 {
			length = 0
		}
		if start+length > len(s) {
			length = len(s) - start
		}
	}
	out := make([]byte, length)
	copy(out, s[start:start+length])
	return StringOwned(out), nil
}

func builtinToUpperCase(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toUpperCase", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString {
		return Null(), rtErrorf(Location{}, "toUpperCase requires a string argument")
	}
	return StringOwnedFrom(strings.ToUpper(string(args[0].Str))), nil
}

func builtinToLowerCase(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toLowerCase", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString {
		return Null(), rtErrorf(Location{}, "toLowerCase requires a string argument")
	}
	return StringOwnedFrom(strings.ToLower(string(args[0].Str))), nil
}

func builtinStrContains(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strContains", args, 2); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strContains requires two string arguments")
	}
	return Bool(strings.Contains(string(args[0].Str), string(args[1].Str))), nil
}

func builtinStrIndexOf(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strIndexOf", args, 2); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strIndexOf requires two string arguments")
	}
	return Int(int64(strings.Index(string(args[0].Str), string(args[1].Str)))), nil
}

// builtinStrReplace replaces ALL occurrences of old with replacement,
// returning the original string unchanged when old is empty (spec §6).
func builtinStrReplace(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strReplace", args, 3); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString || args[1].Kind != KindString || args[2].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strReplace requires three string arguments")
	}
	old := string(args[1].Str)
	if old == "" {
		return args[0].OwnCopy(), nil
	}
	replaced := strings.ReplaceAll(string(args[0].Str), old, string(args[2].Str))
	return StringOwnedFrom(replaced), nil
}

func builtinStrTrim(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strTrim", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strTrim requires a string argument")
	}
	return StringOwnedFrom(strings.TrimSpace(string(args[0].Str))), nil
}

// builtinStrSplit currently returns the token count pending array
// support (spec §6, §9's "Reserved array opcodes").
func builtinStrSplit(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("strSplit", args, 2); err != nil {
		return Null(), err
	}
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Null(), rtErrorf(Location{}, "strSplit requires two string arguments")
	}
	sep := string(args[1].Str)
	var parts []string
	if sep == "" {
		parts = strings.Split(string(args[0].Str), "")
	} else {
		parts = strings.Split(string(args[0].Str), sep)
	}
	return Int(int64(len(parts))), nil
}

// --- conversions ---

func builtinToInt(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toInt", args, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindInt:
		return args[0], nil
	case KindFloat:
		return Int(int64(args[0].F)), nil
	case KindBool:
		if args[0].B {
			return Int(1), nil
		}
		return Int(0), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(string(args[0].Str)), 10, 64)
		if err != nil {
			return Null(), nil
		}
		return Int(n), nil
	default:
		return Null(), nil
	}
}

func builtinToFloat(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toFloat", args, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindInt:
		return Float(float64(args[0].I)), nil
	case KindFloat:
		return args[0], nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(args[0].Str)), 64)
		if err != nil {
			return Null(), nil
		}
		return Float(f), nil
	default:
		return Null(), nil
	}
}

func builtinToString(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toString", args, 1); err != nil {
		return Null(), err
	}
	return StringOwnedFrom(args[0].ToDisplay()), nil
}

func builtinToBool(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("toBool", args, 1); err != nil {
		return Null(), err
	}
	if args[0].Kind == KindString {
		switch string(args[0].Str) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
	}
	return Bool(args[0].Truthy()), nil
}

func builtinTypeOf(vm *VM, args []Value) (Value, *RuntimeError) {
	if err := requireArgs("typeOf", args, 1); err != nil {
		return Null(), err
	}
	return StringOwnedFrom(args[0].Kind.String()), nil
}

// --- utilities ---

// builtinExit halts the VM immediately, setting the exit code from its
// integer argument (spec §5's "the exit built-in halts the VM").
func builtinExit(vm *VM, args []Value) (Value, *RuntimeError) {
	code := 0
	if len(args) >= 1 && args[0].Kind == KindInt {
		code = int(args[0].I)
	}
	vm.halted = true
	vm.exitCode = code
	return Null(), nil
}

// builtinAssert prints "ASSERTION FAILED" (optionally with a message) and
// halts with exit code 1 when its first argument is falsy (spec §6/§9,
// grounded on the original stdlib's assert).
func builtinAssert(vm *VM, args []Value) (Value, *RuntimeError) {
	if len(args) < 1 {
		return Null(), rtErrorf(Location{}, "assert requires at least 1 argument")
	}
	if args[0].Truthy() {
		return Null(), nil
	}
	msg := "ASSERTION FAILED"
	if len(args) >= 2 && args[1].Kind == KindString {
		msg = msg + ": " + string(args[1].Str)
	}
	vm.stderrLine(msg)
	vm.halted = true
	vm.exitCode = 1
	return Null(), nil
}

func builtinIsKind(k Kind) BuiltinFunc {
	return func(vm *VM, args []Value) (Value, *RuntimeError) {
		if len(args) != 1 {
			return Null(), rtErrorf(Location{}, "is%s requires 1 argument", k.String())
		}
		return Bool(args[0].Kind == k), nil
	}
}
