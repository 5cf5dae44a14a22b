package core

import "testing"

func resolveSource(t *testing.T, src string) *Diagnostics {
	t.Helper()
	diags := NewDiagnostics()
	tz := NewTokenizer(src, "<test>")
	toks := tz.Tokenize(diags)
	program := ParseProgram(toks, diags)
	builtins := NewBuiltinRegistry()
	NewResolver(diags, builtins).Resolve(program)
	return diags
}

func Test_Resolver_UndefinedIdentifier(t *testing.T) {
	diags := resolveSource(t, `Let x : Int = y;`)
	if !diags.HasErrors() {
		t.Fatalf("expected an undefined-identifier diagnostic")
	}
}

func Test_Resolver_RedeclarationInSameScope(t *testing.T) {
	diags := resolveSource(t, `
		Let x : Int = 1;
		Let x : Int = 2;
	`)
	if !diags.HasErrors() {
		t.Fatalf("expected a redeclaration diagnostic")
	}
}

func Test_Resolver_ShadowingAcrossScopesIsAllowed(t *testing.T) {
	diags := resolveSource(t, `
		Let x : Int = 1;
		func useIt() {
			Let x : Int = 2;
			return x;
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("shadowing a global from inside a function should not error: %v", diags.All())
	}
}

func Test_Resolver_FunctionArityMismatch(t *testing.T) {
	diags := resolveSource(t, `
		func add(a: Int, b: Int) {
			return a + b;
		}
		Let x : Int = add(1);
	`)
	if !diags.HasErrors() {
		t.Fatalf("expected an arity-mismatch diagnostic")
	}
}

func Test_Resolver_BuiltinCallsSkipArityCheck(t *testing.T) {
	diags := resolveSource(t, `Let n : Int = strLen("hi");`)
	if diags.HasErrors() {
		t.Fatalf("built-in call should resolve cleanly: %v", diags.All())
	}
}

func Test_Resolver_CallToUndefinedFunction(t *testing.T) {
	diags := resolveSource(t, `Let x : Int = doesNotExist();`)
	if !diags.HasErrors() {
		t.Fatalf("expected a call-to-undefined-function diagnostic")
	}
}
