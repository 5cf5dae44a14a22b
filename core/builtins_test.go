package core

import (
	"bytes"
	"strings"
	"testing"
)

func callBuiltin(t *testing.T, name string, args ...Value) Value {
	t.Helper()
	reg := NewBuiltinRegistry()
	id, ok := reg.Lookup(name)
	if !ok {
		t.Fatalf("builtin %q not registered", name)
	}
	vm := NewVM(NewChunk(), reg, NewDiagnostics(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	v, err := reg.Dispatch(id, vm, args)
	if err != nil {
		t.Fatalf("%s(%v) errored: %v", name, args, err)
	}
	return v
}

func Test_Builtin_Substr_ClampsOutOfRangeLength(t *testing.T) {
	v := callBuiltin(t, "substr", StringOwnedFrom("hello"), Int(2), Int(100))
	if string(v.Str) != "llo" {
		t.Fatalf("got %q, want %q", v.Str, "llo")
	}
}

func Test_Builtin_Substr_ClampsNegativeStart(t *testing.T) {
	v := callBuiltin(t, "substr", StringOwnedFrom("hello"), Int(-3))
	if string(v.Str) != "hello" {
		t.Fatalf("got %q, want %q", v.Str, "hello")
	}
}

func Test_Builtin_StrReplace_ReplacesAllOccurrences(t *testing.T) {
	v := callBuiltin(t, "strReplace", StringOwnedFrom("a-b-a-b"), StringOwnedFrom("a"), StringOwnedFrom("X"))
	if string(v.Str) != "X-b-X-b" {
		t.Fatalf("got %q", v.Str)
	}
}

func Test_Builtin_StrReplace_EmptyOldLeavesStringUnchanged(t *testing.T) {
	v := callBuiltin(t, "strReplace", StringOwnedFrom("abc"), StringOwnedFrom(""), StringOwnedFrom("X"))
	if string(v.Str) != "abc" {
		t.Fatalf("got %q, want unchanged %q", v.Str, "abc")
	}
}

func Test_Builtin_StrSplit_ReturnsTokenCount(t *testing.T) {
	v := callBuiltin(t, "strSplit", StringOwnedFrom("a,b,c"), StringOwnedFrom(","))
	if v.Kind != KindInt || v.I != 3 {
		t.Fatalf("got %v, want Int(3)", v)
	}
}

func Test_Builtin_ToInt_ParsesStringOrFails(t *testing.T) {
	v := callBuiltin(t, "toInt", StringOwnedFrom("42"))
	if v.Kind != KindInt || v.I != 42 {
		t.Fatalf("got %v", v)
	}
	bad := callBuiltin(t, "toInt", StringOwnedFrom("not a number"))
	if bad.Kind != KindNull {
		t.Fatalf("expected null on unparseable input, got %v", bad)
	}
}

func Test_Builtin_TypeOf(t *testing.T) {
	v := callBuiltin(t, "typeOf", Int(1))
	if string(v.Str) != "int" {
		t.Fatalf("got %q", v.Str)
	}
}

func Test_Builtin_MaxMin(t *testing.T) {
	if v := callBuiltin(t, "max", Int(3), Int(7)); v.I != 7 {
		t.Fatalf("max(3,7) = %v", v)
	}
	if v := callBuiltin(t, "min", Int(3), Int(7)); v.I != 3 {
		t.Fatalf("min(3,7) = %v", v)
	}
}

func Test_Builtin_IsKindFamily(t *testing.T) {
	if v := callBuiltin(t, "isInt", Int(1)); !v.B {
		t.Fatalf("isInt(1) should be true")
	}
	if v := callBuiltin(t, "isString", Int(1)); v.B {
		t.Fatalf("isString(1) should be false")
	}
}

func Test_Builtin_PrintAndPrintf_AreNotTableDispatched(t *testing.T) {
	reg := NewBuiltinRegistry()
	id, _ := reg.Lookup("print")
	vm := NewVM(NewChunk(), reg, NewDiagnostics(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if _, err := reg.Dispatch(id, vm, []Value{Int(1)}); err == nil {
		t.Fatalf("print must not be dispatchable through the builtin table")
	}
	pid, _ := reg.Lookup("printf")
	if _, err := reg.Dispatch(pid, vm, []Value{StringOwnedFrom("x")}); err == nil {
		t.Fatalf("printf must not be dispatchable through the builtin table")
	}
}
