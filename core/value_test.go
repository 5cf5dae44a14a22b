package core

import "testing"

func Test_Value_StringBorrow_DoesNotCopy(t *testing.T) {
	buf := []byte("hello")
	v := StringBorrow(buf)
	if v.Owned {
		t.Fatalf("StringBorrow produced an owned value")
	}
	if &v.Str[0] != &buf[0] {
		t.Fatalf("StringBorrow copied the backing array instead of aliasing it")
	}
}

func Test_Value_OwnCopy_AllocatesOnlyWhenBorrowed(t *testing.T) {
	buf := []byte("hello")
	borrowed := StringBorrow(buf)
	owned := borrowed.OwnCopy()

	if !owned.Owned {
		t.Fatalf("OwnCopy did not mark the result owned")
	}
	if &owned.Str[0] == &buf[0] {
		t.Fatalf("OwnCopy aliased the original buffer instead of copying it")
	}
	owned.Str[0] = 'H'
	if buf[0] == 'H' {
		t.Fatalf("mutating the owned copy leaked into the borrowed source")
	}

	alreadyOwned := StringOwnedFrom("world")
	again := alreadyOwned.OwnCopy()
	if &again.Str[0] != &alreadyOwned.Str[0] {
		t.Fatalf("OwnCopy reallocated an already-owned value")
	}
}

func Test_Value_Truthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Int(0), false},
		{Int(1), true},
		{Float(0), false},
		{Float(0.5), true},
		{Bool(false), false},
		{Bool(true), true},
		{StringOwnedFrom(""), false},
		{StringOwnedFrom("x"), true},
		{Char(0), false},
		{Char('a'), true},
		{Null(), false},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func Test_Value_Eq_StringsCompareByBytes(t *testing.T) {
	a := StringOwnedFrom("abc")
	b := StringBorrow([]byte("abc"))
	if !a.Eq(b) {
		t.Fatalf("equal byte content should compare equal regardless of ownership")
	}
	c := StringOwnedFrom("abd")
	if a.Eq(c) {
		t.Fatalf("differing byte content compared equal")
	}
}

func Test_Value_Eq_RequiresSameKind(t *testing.T) {
	if Int(1).Eq(Float(1)) {
		t.Fatalf("Eq should not itself promote Int/Float; that's valuesEqual's job in the VM")
	}
}

func Test_Value_AsFloat64_PromotesInt(t *testing.T) {
	f, ok := Int(3).AsFloat64()
	if !ok || f != 3.0 {
		t.Fatalf("Int(3).AsFloat64() = %v, %v", f, ok)
	}
	if _, ok := StringOwnedFrom("x").AsFloat64(); ok {
		t.Fatalf("string should not promote to float")
	}
}
