package core

import "testing"

func tokenKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	diags := NewDiagnostics()
	tz := NewTokenizer(src, "<test>")
	toks := tz.Tokenize(diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected tokenize errors for %q: %v", src, diags.All())
	}
	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds
}

func Test_Tokenizer_LetDeclaration(t *testing.T) {
	got := tokenKinds(t, "Let x : Int = 5")
	want := []TokenKind{TokLet, TokIdentifier, TokColon, TokIdentifier, TokAssign, TokInt, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func Test_Tokenizer_ImportIsCapitalized(t *testing.T) {
	diags := NewDiagnostics()
	tz := NewTokenizer("import", "<test>")
	toks := tz.Tokenize(diags)
	if toks[0].Kind != TokIdentifier {
		t.Fatalf("lowercase \"import\" should tokenize as an identifier, got %v", toks[0].Kind)
	}

	tz2 := NewTokenizer("Import", "<test>")
	toks2 := tz2.Tokenize(diags)
	if toks2[0].Kind != TokImport {
		t.Fatalf("capitalized \"Import\" should tokenize as the keyword, got %v", toks2[0].Kind)
	}
}

func Test_Tokenizer_BitWidthSuffixedTypeName(t *testing.T) {
	diags := NewDiagnostics()
	tz := NewTokenizer("Int64", "<test>")
	toks := tz.Tokenize(diags)
	if !toks[0].IsTypeName() {
		t.Fatalf("Int64 should be recognized as a type name")
	}
	name, width, ok := SplitTypeLexeme("Int64")
	if !ok || name != "Int" || width != 64 {
		t.Fatalf("SplitTypeLexeme(Int64) = %q, %d, %v", name, width, ok)
	}
}

func Test_Tokenizer_BlockComment_Nests(t *testing.T) {
	diags := NewDiagnostics()
	tz := NewTokenizer("/# outer /# inner #/ still outer #/ 42", "<test>")
	toks := tz.Tokenize(diags)
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags.All())
	}
	if toks[0].Kind != TokInt || toks[0].IntVal != 42 {
		t.Fatalf("expected the comment to be fully skipped, got %v", toks)
	}
}

func Test_Tokenizer_StringEscapes(t *testing.T) {
	diags := NewDiagnostics()
	tz := NewTokenizer(`"a\nb\tc"`, "<test>")
	toks := tz.Tokenize(diags)
	if toks[0].StrVal != "a\nb\tc" {
		t.Fatalf("got %q", toks[0].StrVal)
	}
}

func Test_Tokenizer_UnterminatedString_ReportsDiagnostic(t *testing.T) {
	diags := NewDiagnostics()
	tz := NewTokenizer(`"unterminated`, "<test>")
	tz.Tokenize(diags)
	if !diags.HasErrors() {
		t.Fatalf("expected an unterminated-string diagnostic")
	}
}
