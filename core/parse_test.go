package core

import "testing"

func parseSource(t *testing.T, src string) ([]Node, *Diagnostics) {
	t.Helper()
	diags := NewDiagnostics()
	tz := NewTokenizer(src, "<test>")
	toks := tz.Tokenize(diags)
	program := ParseProgram(toks, diags)
	return program, diags
}

func Test_Parser_LetDeclaration(t *testing.T) {
	program, diags := parseSource(t, `Let x : Int = 1 + 2;`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if len(program) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program))
	}
	decl, ok := program[0].(*VarDecl)
	if !ok {
		t.Fatalf("expected *VarDecl, got %T", program[0])
	}
	if decl.Name != "x" || decl.Type.Name != "Int" {
		t.Fatalf("unexpected decl: %+v", decl)
	}
	bin, ok := decl.Init.(*BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected an addition initializer, got %#v", decl.Init)
	}
}

func Test_Parser_TypePrefixedDeclaration(t *testing.T) {
	program, diags := parseSource(t, `Int count = 0;`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	decl, ok := program[0].(*VarDecl)
	if !ok || decl.Name != "count" {
		t.Fatalf("expected count declared as Int, got %#v", program[0])
	}
}

func Test_Parser_IfElse(t *testing.T) {
	program, diags := parseSource(t, `
		if (x < 1) {
			return 1;
		} else if (x < 2) {
			return 2;
		} else {
			return 3;
		}
	`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	ifs, ok := program[0].(*IfStmt)
	if !ok {
		t.Fatalf("expected *IfStmt, got %T", program[0])
	}
	if _, ok := ifs.Else.(*IfStmt); !ok {
		t.Fatalf("expected chained else-if, got %T", ifs.Else)
	}
}

func Test_Parser_ForLoop(t *testing.T) {
	program, diags := parseSource(t, `for (Let i : Int = 0; i < 10; i = i + 1) { }`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	forStmt, ok := program[0].(*ForStmt)
	if !ok {
		t.Fatalf("expected *ForStmt, got %T", program[0])
	}
	if forStmt.Init == nil || forStmt.Cond == nil || forStmt.Step == nil {
		t.Fatalf("expected all three for-clauses populated: %+v", forStmt)
	}
}

func Test_Parser_PrintfColonMode(t *testing.T) {
	program, diags := parseSource(t, `printf("count: %d" : n);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	stmt, ok := program[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected *ExprStmt, got %T", program[0])
	}
	call, ok := stmt.X.(*CallExpr)
	if !ok || !call.ColonMode {
		t.Fatalf("expected a colon-mode call, got %#v", stmt.X)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 arguments (format + n), got %d", len(call.Args))
	}
}

func Test_Parser_PlainPrintDoesNotEngageColonMode(t *testing.T) {
	_, diags := parseSource(t, `print(a : b);`)
	if !diags.HasErrors() {
		t.Fatalf("expected a syntax error: colon-mode is scoped to printf, not print")
	}
}

func Test_Parser_OrdinaryCallDoesNotEngageColonMode(t *testing.T) {
	program, diags := parseSource(t, `foo(a, b, c);`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	call := program[0].(*ExprStmt).X.(*CallExpr)
	if call.ColonMode {
		t.Fatalf("a non-printf call must never enter colon mode")
	}
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Args))
	}
}

func Test_Parser_AssignmentIsRightAssociative(t *testing.T) {
	program, diags := parseSource(t, `a = b = 1;`)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	assign := program[0].(*ExprStmt).X.(*AssignExpr)
	if _, ok := assign.Target.(*Ident); !ok {
		t.Fatalf("outer target should be the identifier a, got %#v", assign.Target)
	}
	if _, ok := assign.Value.(*AssignExpr); !ok {
		t.Fatalf("expected nested assignment as the value, got %#v", assign.Value)
	}
}

func Test_Parser_MissingClosingParen_RecordsDiagnosticAndRecovers(t *testing.T) {
	_, diags := parseSource(t, `Let x : Int = (1 + 2;`)
	if !diags.HasErrors() {
		t.Fatalf("expected a diagnostic for the missing ')'")
	}
}
