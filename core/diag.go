package core

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Stage identifies which pipeline component raised a Diagnostic.
type Stage int

const (
	StageTokenize Stage = iota
	StageParse
	StageResolve
	StageRuntime
)

func (s Stage) String() string {
	switch s {
	case StageTokenize:
		return "lex"
	case StageParse:
		return "parse"
	case StageResolve:
		return "resolve"
	case StageRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Severity distinguishes diagnostics that must stop the pipeline from
// ones that are merely advisory.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Location anchors a Diagnostic (or a token, or an AST node) to a point
// in the source text.
type Location struct {
	Filename string
	Line     int
	Col      int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Col)
}

// Diagnostic is one entry in the append-only collector.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Loc      Location
	Message  string
}

// Diagnostics is the append-only diagnostic collector (component C).
// Every pipeline stage is handed the same *Diagnostics and appends to it;
// nothing is ever removed or deduplicated.
type Diagnostics struct {
	items []Diagnostic
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) Addf(stage Stage, sev Severity, loc Location, format string, args ...any) {
	d.items = append(d.items, Diagnostic{
		Stage:    stage,
		Severity: sev,
		Loc:      loc,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *Diagnostics) Errorf(stage Stage, loc Location, format string, args ...any) {
	d.Addf(stage, SeverityError, loc, format, args...)
}

func (d *Diagnostics) Warnf(stage Stage, loc Location, format string, args ...any) {
	d.Addf(stage, SeverityWarning, loc, format, args...)
}

func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Count() int {
	return len(d.items)
}

// Print writes every accumulated diagnostic to w, one per line, anchored
// with a file:line:column prefix and colorized by severity.
func (d *Diagnostics) Print(w io.Writer) {
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow, color.Bold)
	stageColor := color.New(color.FgCyan)

	for _, it := range d.items {
		label := "error"
		c := errColor
		if it.Severity == SeverityWarning {
			label = "warning"
			c = warnColor
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			it.Loc.String(),
			c.Sprint(label),
			stageColor.Sprintf("[%s]", it.Stage),
			it.Message,
		)
	}
}

// PrintStderr is a convenience wrapper used by the CLI.
func (d *Diagnostics) PrintStderr() {
	d.Print(os.Stderr)
}
