package core

import (
	"bytes"
	"strings"
	"testing"
)

func runProgram(t *testing.T, src string) (stdout string, exitCode int, diags *Diagnostics) {
	t.Helper()
	var out bytes.Buffer
	var errOut bytes.Buffer
	ctx := NewContext("<test>")
	ctx.Stdout = &out
	ctx.Stderr = &errOut
	ctx.Stdin = strings.NewReader("")
	exitCode, diags = Run(ctx, src)
	return out.String(), exitCode, diags
}

func Test_VM_ArithmeticAndPrint(t *testing.T) {
	out, code, diags := runProgram(t, `print(1 + 2 * 3);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "7\n" {
		t.Fatalf("got %q, want %q", out, "7\n")
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func Test_VM_FloatPromotion(t *testing.T) {
	out, _, diags := runProgram(t, `print(1 + 2.5);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "3.5\n" {
		t.Fatalf("got %q, want %q", out, "3.5\n")
	}
}

func Test_VM_StringConcat(t *testing.T) {
	out, _, diags := runProgram(t, `
		Let a : String = "hello, ";
		Let b : String = "world";
		print(a + b);
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "hello, world\n" {
		t.Fatalf("got %q", out)
	}
}

func Test_VM_FunctionCallAndReturn(t *testing.T) {
	out, _, diags := runProgram(t, `
		func add(a: Int, b: Int) {
			return a + b;
		}
		func main() {
			print(add(3, 4));
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "7\n" {
		t.Fatalf("got %q, want %q", out, "7\n")
	}
}

func Test_VM_WhileLoopWithBreak(t *testing.T) {
	out, _, diags := runProgram(t, `
		Let i : Int = 0;
		while (true) {
			if (i == 3) {
				break;
			}
			print(i);
			i = i + 1;
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "0\n1\n2\n" {
		t.Fatalf("got %q, want %q", out, "0\n1\n2\n")
	}
}

func Test_VM_ForLoopWithContinue(t *testing.T) {
	out, _, diags := runProgram(t, `
		for (Let i : Int = 0; i < 5; i = i + 1) {
			if (i % 2 == 0) {
				continue;
			}
			print(i);
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "1\n3\n" {
		t.Fatalf("got %q, want %q", out, "1\n3\n")
	}
}

func Test_VM_RecursiveFunction(t *testing.T) {
	out, _, diags := runProgram(t, `
		func fact(n: Int) {
			if (n <= 1) {
				return 1;
			}
			return n * fact(n - 1);
		}
		func main() {
			print(fact(5));
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "120\n" {
		t.Fatalf("got %q, want %q", out, "120\n")
	}
}

func Test_VM_DivisionByZero_HaltsWithRuntimeError(t *testing.T) {
	_, code, _ := runProgram(t, `print(1 / 0);`)
	if code == 0 {
		t.Fatalf("expected a nonzero exit code from division by zero")
	}
}

func Test_VM_BuiltinSubstrAndAbs(t *testing.T) {
	out, _, diags := runProgram(t, `
		print(substr("hello world", 6));
		print(abs(-5));
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "world\n5\n" {
		t.Fatalf("got %q", out)
	}
}

func Test_VM_BuiltinAssert_FailureHaltsWithExitCode1(t *testing.T) {
	_, code, _ := runProgram(t, `assert(false, "should not happen");`)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func Test_VM_BuiltinExit_SetsExitCode(t *testing.T) {
	_, code, _ := runProgram(t, `
		exit(42);
		print("unreachable");
	`)
	if code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
}

func Test_VM_PrintfColonMode(t *testing.T) {
	out, _, diags := runProgram(t, `printf("%s is %d" : "answer", 42);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "answer is 42" {
		t.Fatalf("got %q", out)
	}
}

func Test_VM_DivisionByZero_PushesNullToPreserveStackBalance(t *testing.T) {
	vm := NewVM(NewChunk(), NewBuiltinRegistry(), NewDiagnostics(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if err := vm.push(Int(1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := vm.push(Int(0)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := vm.step(Instruction{Op: OpDiv}); err == nil {
		t.Fatalf("expected a division-by-zero runtime error")
	}
	v, err := vm.pop()
	if err != nil {
		t.Fatalf("expected a recovered Null on the stack, pop failed: %v", err)
	}
	if v.Kind != KindNull {
		t.Fatalf("expected Null pushed as the division-by-zero recovery value, got %v", v)
	}
}

func Test_VM_ModuloByZero_PushesNullToPreserveStackBalance(t *testing.T) {
	vm := NewVM(NewChunk(), NewBuiltinRegistry(), NewDiagnostics(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	_ = vm.push(Float(1))
	_ = vm.push(Float(0))
	if err := vm.step(Instruction{Op: OpMod}); err == nil {
		t.Fatalf("expected a modulo-by-zero runtime error")
	}
	v, err := vm.pop()
	if err != nil {
		t.Fatalf("expected a recovered Null on the stack, pop failed: %v", err)
	}
	if v.Kind != KindNull {
		t.Fatalf("expected Null pushed as the modulo-by-zero recovery value, got %v", v)
	}
}

func Test_VM_ArrayOps_PushNullToPreserveStackBalance(t *testing.T) {
	vm := NewVM(NewChunk(), NewBuiltinRegistry(), NewDiagnostics(), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if err := vm.step(Instruction{Op: OpArrayNew}); err == nil {
		t.Fatalf("expected an unimplemented-array-op runtime error")
	}
	v, err := vm.pop()
	if err != nil {
		t.Fatalf("expected a recovered Null on the stack, pop failed: %v", err)
	}
	if v.Kind != KindNull {
		t.Fatalf("expected Null pushed as the array-op recovery value, got %v", v)
	}
}

func Test_VM_PrintfPercentI_AliasesPercentD(t *testing.T) {
	out, _, diags := runProgram(t, `printf("%i" : 42);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "42" {
		t.Fatalf("got %q, want %q", out, "42")
	}
}

func Test_VM_PrintfPercentB_RendersBool(t *testing.T) {
	out, _, diags := runProgram(t, `printf("%b %b" : true, false);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "true false" {
		t.Fatalf("got %q, want %q", out, "true false")
	}
}

func Test_VM_GlobalAssignmentPersistsAcrossStatements(t *testing.T) {
	out, _, diags := runProgram(t, `
		Let total : Int = 0;
		total = total + 10;
		total = total + 5;
		print(total);
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	if out != "15\n" {
		t.Fatalf("got %q, want %q", out, "15\n")
	}
}
