package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/fatih/color"
	"github.com/reeflective/readline"

	"github.com/birchlang/birch/core"
)

const version = "0.1.0"

const helpMessage = `birch is a tiny statically-declared scripting language.

Usage:
  birch <file> [flags]
  birch               start the REPL
`

var (
	debugAST      bool
	debugBytecode bool
	showTime      bool
	strictTypes   bool
)

func main() {
	args := parseFlags(os.Args[1:])

	if len(args) == 0 {
		repl()
		return
	}
	os.Exit(runFile(args[0]))
}

// parseFlags hand-rolls the flag scan rather than reaching for the flag
// package's auto-usage, since the CLI's only job is a handful of boolean
// switches ahead of an optional file argument.
func parseFlags(argv []string) []string {
	var rest []string
	for _, a := range argv {
		switch a {
		case "--debug-ast":
			debugAST = true
		case "--debug-bytecode":
			debugBytecode = true
		case "--time":
			showTime = true
		case "--strict-types":
			strictTypes = true
		case "-h", "--help":
			fmt.Print(helpMessage)
			os.Exit(0)
		default:
			rest = append(rest, a)
		}
	}
	return rest
}

func runFile(path string) int {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	source := string(content)

	ctx := core.NewContext(path)
	ctx.Strict = strictTypes

	diags := core.NewDiagnostics()
	builtins := core.NewBuiltinRegistry()

	start := time.Now()
	program := core.Compile(ctx, source, diags, builtins)
	compileElapsed := time.Since(start)

	if debugAST {
		for _, n := range program.AST {
			fmt.Println(n)
		}
	}
	if debugBytecode && program.Chunk != nil {
		fmt.Print(program.Chunk.Disassemble())
	}

	if diags.Count() > 0 {
		printDiagnosticsWithSource(diags, source)
	}
	if diags.HasErrors() && (ctx.Strict || program.Chunk == nil) {
		return 1
	}

	vm := core.NewVM(program.Chunk, builtins, diags, os.Stdin, os.Stdout, os.Stderr)
	runStart := time.Now()
	if rerr := vm.Run(); rerr != nil {
		fmt.Fprintln(os.Stderr, rerr.Error())
		return 1
	}
	runElapsed := time.Since(runStart)

	if showTime {
		fmt.Fprintf(os.Stderr, "compile: %s  run: %s\n", compileElapsed, runElapsed)
	}
	return vm.ExitCode()
}

func repl() {
	rl := readline.NewShell()
	rl.Prompt.Primary(func() string { return "birch> " })
	rl.SyntaxHighlighter = highlightLine

	ctx := core.NewContext("<stdin>")
	ctx.Strict = strictTypes
	builtins := core.NewBuiltinRegistry()

	fmt.Printf("birch %s — Ctrl-D to exit\n", version)

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			break
		} else if err != nil {
			fmt.Fprintln(os.Stderr, err)
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		diags := core.NewDiagnostics()
		program := core.Compile(ctx, line, diags, builtins)

		if debugAST {
			for _, n := range program.AST {
				fmt.Println(n)
			}
		}
		if debugBytecode && program.Chunk != nil {
			fmt.Print(program.Chunk.Disassemble())
		}

		if diags.Count() > 0 {
			printDiagnosticsWithSource(diags, line)
		}
		if diags.HasErrors() && (ctx.Strict || program.Chunk == nil) {
			continue
		}

		vm := core.NewVM(program.Chunk, builtins, diags, os.Stdin, os.Stdout, os.Stderr)
		if rerr := vm.Run(); rerr != nil {
			fmt.Fprintln(os.Stderr, rerr.Error())
		}
	}
}

// highlightLine colors one line of REPL input token-by-token, in the
// style of ion's REPL highlighter, using birch's own tokenizer rather
// than a generic lexer — so the colors track the language's actual
// grammar (keywords, types, strings, numbers) as the user types.
func highlightLine(line []rune) string {
	src := string(line)
	diags := core.NewDiagnostics()
	tokenizer := core.NewTokenizer(src, "<repl>")
	tokens := tokenizer.Tokenize(diags)

	var out strings.Builder
	for _, tok := range tokens {
		switch {
		case tok.Kind == core.TokString:
			out.WriteString(color.GreenString("%q", tok.StrVal))
		case tok.Kind == core.TokInt || tok.Kind == core.TokFloat:
			out.WriteString(color.MagentaString(tok.Lexeme))
		case tok.IsTypeName():
			out.WriteString(color.CyanString(tok.Lexeme))
		case isKeywordKind(tok.Kind):
			out.WriteString(color.YellowString(tok.Lexeme))
		case tok.Kind == core.TokEOF, tok.Kind == core.TokNewline:
			// nothing to render
		default:
			out.WriteString(tok.Lexeme)
		}
		out.WriteByte(' ')
	}
	return strings.TrimRight(out.String(), " ")
}

func isKeywordKind(k core.TokenKind) bool {
	switch k {
	case core.TokLet, core.TokFunc, core.TokReturn, core.TokIf, core.TokElse,
		core.TokFor, core.TokWhile, core.TokImport, core.TokBreak, core.TokContinue,
		core.TokTrue, core.TokFalse:
		return true
	default:
		return false
	}
}

// printDiagnosticsWithSource prints the plain collector dump and then,
// once for each source line that carries a diagnostic, that line rendered through a
// chroma lexer so the CLI's error output gets the same syntax coloring
// as any other highlighted snippet, not just a bare text copy.
func printDiagnosticsWithSource(diags *core.Diagnostics, source string) {
	diags.PrintStderr()

	lines := strings.Split(source, "\n")
	lexer := lexers.Get("go")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get("monokai")
	formatter := formatters.Get("terminal16m")

	seen := map[int]bool{}
	for _, d := range diags.All() {
		if d.Loc.Line < 1 || d.Loc.Line > len(lines) || seen[d.Loc.Line] {
			continue
		}
		seen[d.Loc.Line] = true
		line := lines[d.Loc.Line-1]

		iter, err := lexer.Tokenise(nil, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, line)
			continue
		}
		if err := formatter.Format(os.Stderr, style, iter); err != nil {
			fmt.Fprintln(os.Stderr, line)
		}
		fmt.Fprintln(os.Stderr)
	}
}
