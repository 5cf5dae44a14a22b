package core

import (
	"io"
	"os"
)

// Context carries the options that vary per run rather than per
// pipeline stage: the resolved-to-be-strict flag from the Open Question
// decision in SPEC_FULL.md §5.3, plus the I/O streams the VM's
// input/readLine/print/printf/assert built-ins read and write.
type Context struct {
	Filename string
	Strict   bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewContext returns a Context wired to the process's standard streams.
func NewContext(filename string) *Context {
	return &Context{
		Filename: filename,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Program is everything the pipeline produces on the way from source
// text to an executable Chunk: useful on its own for --debug-ast and
// --debug-bytecode, and as the input to Run.
type Program struct {
	AST   []Node
	Chunk *Chunk
}

// Compile runs the tokenizer, parser, resolver, and code generator in
// sequence, threading one Diagnostics collector through all four (spec
// §4's "A-I" pipeline, minus the tokenizer/type-checker contracts spec.md
// leaves implicit and SPEC_FULL.md §3 fills in with the same collector).
// It always returns whatever AST and Chunk it managed to build, even
// when diags.HasErrors() is true, so callers can still inspect partial
// output under --debug-ast.
func Compile(ctx *Context, source string, diags *Diagnostics, builtins *BuiltinRegistry) *Program {
	tokenizer := NewTokenizer(source, ctx.Filename)
	tokens := tokenizer.Tokenize(diags)

	program := ParseProgram(tokens, diags)

	resolver := NewResolver(diags, builtins)
	resolver.Resolve(program)

	if ctx.Strict && diags.HasErrors() {
		return &Program{AST: program}
	}

	gen := NewGenerator(diags, builtins)
	chunk := gen.Generate(program)

	return &Program{AST: program, Chunk: chunk}
}

// Run compiles and then executes source against ctx's streams, returning
// the process exit code the CLI should use.
func Run(ctx *Context, source string) (exitCode int, diags *Diagnostics) {
	diags = NewDiagnostics()
	builtins := NewBuiltinRegistry()

	program := Compile(ctx, source, diags, builtins)
	if diags.HasErrors() && (ctx.Strict || program.Chunk == nil) {
		return 1, diags
	}

	vm := NewVM(program.Chunk, builtins, diags, ctx.Stdin, ctx.Stdout, ctx.Stderr)
	if err := vm.Run(); err != nil {
		return 1, diags
	}
	return vm.ExitCode(), diags
}
