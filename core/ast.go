package core

import (
	"fmt"
	"strings"
)

// Node is the tagged-node interface every syntax tree element satisfies
// (component D). String() backs the --debug-ast CLI flag.
type Node interface {
	String() string
	Pos() Location
}

// TypeRef is a parsed type reference: a name from TypeNames, an optional
// bit-width suffix, and an optional array marker (spec §4.3's "Types").
type TypeRef struct {
	Name     string
	BitWidth int // 0 when unspecified
	IsArray  bool
	Loc      Location
}

func (t TypeRef) String() string {
	s := t.Name
	if t.BitWidth != 0 {
		s += fmt.Sprintf("%d", t.BitWidth)
	}
	if t.IsArray {
		s += "[]"
	}
	return s
}

// --- declarations / statements ---

type VarDecl struct {
	Name string
	Type TypeRef
	Init Expr // nil if no initializer
	Loc  Location
}

func (n *VarDecl) Pos() Location { return n.Loc }
func (n *VarDecl) String() string {
	if n.Init == nil {
		return fmt.Sprintf("let %s : %s", n.Name, n.Type)
	}
	return fmt.Sprintf("let %s : %s = %s", n.Name, n.Type, n.Init)
}

type Param struct {
	Name string
	Type TypeRef
}

type FuncDecl struct {
	Name       string
	ReturnType *TypeRef // nil means void
	Params     []Param
	Body       *Block
	Loc        Location
}

func (n *FuncDecl) Pos() Location { return n.Loc }
func (n *FuncDecl) String() string {
	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	ret := "void"
	if n.ReturnType != nil {
		ret = n.ReturnType.String()
	}
	return fmt.Sprintf("func %s %s(%s) %s", ret, n.Name, strings.Join(params, ", "), n.Body)
}

type Block struct {
	Stmts []Node
	Loc   Location
}

func (n *Block) Pos() Location { return n.Loc }
func (n *Block) String() string {
	parts := make([]string, len(n.Stmts))
	for i, s := range n.Stmts {
		parts[i] = s.String()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

type IfStmt struct {
	Cond Expr
	Then *Block
	Else Node // *Block, *IfStmt, or nil
	Loc  Location
}

func (n *IfStmt) Pos() Location { return n.Loc }
func (n *IfStmt) String() string {
	if n.Else == nil {
		return fmt.Sprintf("if (%s) %s", n.Cond, n.Then)
	}
	return fmt.Sprintf("if (%s) %s else %s", n.Cond, n.Then, n.Else)
}

type WhileStmt struct {
	Cond Expr
	Body *Block
	Loc  Location
}

func (n *WhileStmt) Pos() Location { return n.Loc }
func (n *WhileStmt) String() string {
	return fmt.Sprintf("while (%s) %s", n.Cond, n.Body)
}

type ForStmt struct {
	Init Node // *VarDecl, *ExprStmt, or nil
	Cond Expr // nil means always-true
	Step Node // *ExprStmt or nil
	Body *Block
	Loc  Location
}

func (n *ForStmt) Pos() Location { return n.Loc }
func (n *ForStmt) String() string {
	init, step := "", ""
	if n.Init != nil {
		init = n.Init.String()
	}
	if n.Step != nil {
		step = n.Step.String()
	}
	cond := ""
	if n.Cond != nil {
		cond = n.Cond.String()
	}
	return fmt.Sprintf("for (%s; %s; %s) %s", init, cond, step, n.Body)
}

type ReturnStmt struct {
	Value Expr // nil for void return
	Loc   Location
}

func (n *ReturnStmt) Pos() Location { return n.Loc }
func (n *ReturnStmt) String() string {
	if n.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", n.Value)
}

type BreakStmt struct{ Loc Location }

func (n *BreakStmt) Pos() Location { return n.Loc }
func (n *BreakStmt) String() string { return "break" }

type ContinueStmt struct{ Loc Location }

func (n *ContinueStmt) Pos() Location { return n.Loc }
func (n *ContinueStmt) String() string { return "continue" }

// ImportStmt is retained as a node but has no runtime effect (spec §4.3).
type ImportStmt struct {
	Path []string
	Loc  Location
}

func (n *ImportStmt) Pos() Location { return n.Loc }
func (n *ImportStmt) String() string {
	return fmt.Sprintf("import <%s>", strings.Join(n.Path, "."))
}

type ExprStmt struct {
	X   Expr
	Loc Location
}

func (n *ExprStmt) Pos() Location   { return n.Loc }
func (n *ExprStmt) String() string { return n.X.String() }

// BadNode is the placeholder synthesized on parse errors (spec §4.3,
// §7's recovery policy: "insert a placeholder node and continue").
type BadNode struct{ Loc Location }

func (n *BadNode) Pos() Location   { return n.Loc }
func (n *BadNode) String() string { return "<bad>" }

// --- expressions ---

type Expr interface {
	Node
}

type IntLit struct {
	Value int64
	Loc   Location
}

func (n *IntLit) Pos() Location   { return n.Loc }
func (n *IntLit) String() string { return fmt.Sprintf("%d", n.Value) }

type FloatLit struct {
	Value float64
	Loc   Location
}

func (n *FloatLit) Pos() Location   { return n.Loc }
func (n *FloatLit) String() string { return fmt.Sprintf("%g", n.Value) }

type StringLit struct {
	Value string
	Loc   Location
}

func (n *StringLit) Pos() Location   { return n.Loc }
func (n *StringLit) String() string { return fmt.Sprintf("%q", n.Value) }

type CharLit struct {
	Value byte
	Loc   Location
}

func (n *CharLit) Pos() Location   { return n.Loc }
func (n *CharLit) String() string { return fmt.Sprintf("'%c'", n.Value) }

type BoolLit struct {
	Value bool
	Loc   Location
}

func (n *BoolLit) Pos() Location { return n.Loc }
func (n *BoolLit) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

type Ident struct {
	Name string
	Loc  Location
}

func (n *Ident) Pos() Location   { return n.Loc }
func (n *Ident) String() string { return n.Name }

type UnaryExpr struct {
	Op string
	X  Expr
	Loc Location
}

func (n *UnaryExpr) Pos() Location   { return n.Loc }
func (n *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", n.Op, n.X) }

type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Loc   Location
}

func (n *BinaryExpr) Pos() Location { return n.Loc }
func (n *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

type AssignExpr struct {
	Target Expr
	Value  Expr
	Loc    Location
}

func (n *AssignExpr) Pos() Location { return n.Loc }
func (n *AssignExpr) String() string {
	return fmt.Sprintf("(%s = %s)", n.Target, n.Value)
}

// CallExpr supports both ordinary comma-separated arguments and the
// colon-mode formatted-print syntax (spec §4.3's "Call syntax"); the
// parser records whether colon-mode fired so the code generator and
// pretty-printer can both see it.
type CallExpr struct {
	Callee    string
	Args      []Expr
	ColonMode bool
	Loc       Location
}

func (n *CallExpr) Pos() Location { return n.Loc }
func (n *CallExpr) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	sep := ", "
	if n.ColonMode && len(parts) > 0 {
		return fmt.Sprintf("%s(%s : %s)", n.Callee, parts[0], strings.Join(parts[1:], sep))
	}
	return fmt.Sprintf("%s(%s)", n.Callee, strings.Join(parts, sep))
}

type IndexExpr struct {
	X     Expr
	Index Expr
	Loc   Location
}

func (n *IndexExpr) Pos() Location   { return n.Loc }
func (n *IndexExpr) String() string { return fmt.Sprintf("%s[%s]", n.X, n.Index) }
