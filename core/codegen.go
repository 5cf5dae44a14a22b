package core

// varInfo records where one declared name lives: a global slot, or a
// local slot inside the function currently being generated.
type varInfo struct {
	Global bool
	Slot   uint32
	Type   TypeRef
}

// varScope is the code generator's name table, chained like
// resolverScope but carrying slot assignments instead of plain presence.
type varScope struct {
	outer   *varScope
	entries map[string]varInfo
}

func newVarScope(outer *varScope) *varScope {
	return &varScope{outer: outer, entries: make(map[string]varInfo)}
}

func (s *varScope) lookup(name string) (varInfo, bool) {
	for sc := s; sc != nil; sc = sc.outer {
		if v, ok := sc.entries[name]; ok {
			return v, true
		}
	}
	return varInfo{}, false
}

// loopCtx accumulates the pending-jump lists spec §4.6 and §9 call for:
// break/continue targets aren't known until the loop finishes emitting,
// so every break/continue jump is recorded here and backpatched once the
// loop's end and its continue target are fixed.
type loopCtx struct {
	breakJumps    []int
	continueJumps []int
}

// Generator is the code generator (component H). It runs the emission
// algorithm from spec §4.6: global slot allocation, then function
// registration (with the sentinel start_ip so forward calls resolve),
// then a single emission pass over function bodies followed by
// top-level statements, a call to main if one was declared, and a
// trailing halt.
type Generator struct {
	chunk    *Chunk
	diags    *Diagnostics
	builtins *BuiltinRegistry

	vars         *varScope
	nextGlobal   uint32
	nextLocal    uint32
	curLocalMax  uint32
	loops        []*loopCtx
	funcs        map[string]*FuncDecl
}

func NewGenerator(diags *Diagnostics, builtins *BuiltinRegistry) *Generator {
	return &Generator{
		chunk:    NewChunk(),
		diags:    diags,
		builtins: builtins,
		funcs:    make(map[string]*FuncDecl),
	}
}

// Generate runs the three passes over program and returns the finished
// chunk.
func (g *Generator) Generate(program []Node) *Chunk {
	global := newVarScope(nil)
	g.vars = global

	// Pass 1: global slot allocation (top-level var decls only).
	for _, n := range program {
		if vd, ok := n.(*VarDecl); ok {
			slot := g.nextGlobal
			g.nextGlobal++
			global.entries[vd.Name] = varInfo{Global: true, Slot: slot, Type: vd.Type}
		}
	}

	// Pass 2: function registration with the sentinel start_ip, so a call
	// site compiled before the callee's body is emitted still resolves to
	// a valid (if not-yet-fixed) function table entry.
	for _, n := range program {
		if fn, ok := n.(*FuncDecl); ok {
			g.funcs[fn.Name] = fn
			g.chunk.AddFunction(fn.Name, SentinelIP, len(fn.Params))
		}
	}

	// Pass 3a: emit function bodies first, behind a jump so that execution,
	// which starts at instruction 0, skips straight to the top-level code.
	skipFuncs := g.chunk.Emit(OpJump, 0, 0, Location{})
	for _, n := range program {
		if fn, ok := n.(*FuncDecl); ok {
			g.genFunction(fn)
		}
	}
	g.chunk.Patch(skipFuncs, uint32(len(g.chunk.Code)))

	// Pass 3b: emit top-level statements (non-function, non-import).
	for _, n := range program {
		switch n.(type) {
		case *FuncDecl, *ImportStmt:
			continue
		}
		g.genStmt(n, global)
	}

	// Pass 3c: call main if the program declared one, discarding its
	// return value, then halt.
	if mainFn, ok := g.funcs["main"]; ok {
		idx, _ := g.chunk.FindFunction("main")
		g.chunk.Emit(OpCall, uint32(idx), uint32(len(mainFn.Params)), mainFn.Loc)
		g.chunk.Emit(OpPop, 0, 0, mainFn.Loc)
	}
	g.chunk.Emit(OpHalt, 0, 0, Location{})

	return g.chunk
}

func (g *Generator) genFunction(fn *FuncDecl) {
	startIP := uint32(len(g.chunk.Code))
	idx, _ := g.chunk.FindFunction(fn.Name)
	g.chunk.AddFunction(fn.Name, startIP, len(fn.Params))

	outer := g.vars
	scope := newVarScope(outer)
	g.nextLocal = 0
	g.curLocalMax = 0

	for _, p := range fn.Params {
		g.declareLocal(scope, p.Name, p.Type)
	}

	savedVars := g.vars
	g.vars = scope
	for _, stmt := range fn.Body.Stmts {
		g.genStmt(stmt, scope)
	}
	g.vars = savedVars

	// Fall off the end without an explicit return: push null and return,
	// so the call instruction always finds exactly one value on the
	// operand stack.
	g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, fn.Loc)
	g.chunk.Emit(OpReturn, 0, 0, fn.Loc)

	g.chunk.Functions[idx].LocalCount = int(g.curLocalMax)
}

// declareLocal allocates the next never-reused local slot for name. Slots
// are not reclaimed when a block scope ends (spec §9's flat allocation
// scheme), so g.curLocalMax only ever grows within a function.
func (g *Generator) declareLocal(scope *varScope, name string, typ TypeRef) varInfo {
	slot := g.nextLocal
	g.nextLocal++
	if g.nextLocal > g.curLocalMax {
		g.curLocalMax = g.nextLocal
	}
	info := varInfo{Global: false, Slot: slot, Type: typ}
	scope.entries[name] = info
	return info
}

func (g *Generator) genStmt(n Node, scope *varScope) {
	switch n := n.(type) {
	case *VarDecl:
		g.genVarDecl(n, scope)
	case *Block:
		inner := newVarScope(scope)
		for _, stmt := range n.Stmts {
			g.genStmt(stmt, inner)
		}
	case *IfStmt:
		g.genIf(n, scope)
	case *WhileStmt:
		g.genWhile(n, scope)
	case *ForStmt:
		g.genFor(n, scope)
	case *ReturnStmt:
		if n.Value != nil {
			g.genExpr(n.Value, scope)
		} else {
			g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, n.Loc)
		}
		g.chunk.Emit(OpReturn, 0, 0, n.Loc)
	case *BreakStmt:
		if len(g.loops) == 0 {
			g.diags.Errorf(StageRuntime, n.Loc, "break outside a loop")
			return
		}
		idx := g.chunk.Emit(OpJump, 0, 0, n.Loc)
		lc := g.loops[len(g.loops)-1]
		lc.breakJumps = append(lc.breakJumps, idx)
	case *ContinueStmt:
		if len(g.loops) == 0 {
			g.diags.Errorf(StageRuntime, n.Loc, "continue outside a loop")
			return
		}
		idx := g.chunk.Emit(OpJump, 0, 0, n.Loc)
		lc := g.loops[len(g.loops)-1]
		lc.continueJumps = append(lc.continueJumps, idx)
	case *ExprStmt:
		g.genExpr(n.X, scope)
		g.chunk.Emit(OpPop, 0, 0, n.Loc)
	case *ImportStmt, *BadNode:
		// no runtime effect
	}
}

func (g *Generator) genVarDecl(n *VarDecl, scope *varScope) {
	if n.Init != nil {
		g.genExpr(n.Init, scope)
	} else {
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(zeroValueFor(n.Type)), 0, n.Loc)
	}

	if existing, ok := scope.entries[n.Name]; ok && existing.Global {
		g.chunk.Emit(OpStoreGlobal, existing.Slot, 0, n.Loc)
		return
	}
	if g.vars.outer == nil {
		// Top-level code runs without a call frame, so a declaration nested
		// in a top-level block or for-init takes a fresh global slot.
		slot := g.nextGlobal
		g.nextGlobal++
		scope.entries[n.Name] = varInfo{Global: true, Slot: slot, Type: n.Type}
		g.chunk.Emit(OpStoreGlobal, slot, 0, n.Loc)
		return
	}
	info := g.declareLocal(scope, n.Name, n.Type)
	g.chunk.Emit(OpStoreLocal, info.Slot, 0, n.Loc)
}

func zeroValueFor(t TypeRef) Value {
	switch t.Name {
	case "Int", "int":
		return Int(0)
	case "Float", "float":
		return Float(0)
	case "Bool", "bool":
		return Bool(false)
	case "Char", "char":
		return Char(0)
	case "String", "string":
		return StringOwnedFrom("")
	default:
		return Null()
	}
}

func (g *Generator) genIf(n *IfStmt, scope *varScope) {
	g.genExpr(n.Cond, scope)
	jfalse := g.chunk.Emit(OpJumpIfFalse, 0, 0, n.Loc)
	g.genStmt(n.Then, scope)

	if n.Else == nil {
		g.chunk.Patch(jfalse, uint32(len(g.chunk.Code)))
		return
	}
	jend := g.chunk.Emit(OpJump, 0, 0, n.Loc)
	g.chunk.Patch(jfalse, uint32(len(g.chunk.Code)))
	g.genStmt(n.Else, scope)
	g.chunk.Patch(jend, uint32(len(g.chunk.Code)))
}

func (g *Generator) genWhile(n *WhileStmt, scope *varScope) {
	condStart := uint32(len(g.chunk.Code))
	g.genExpr(n.Cond, scope)
	jfalse := g.chunk.Emit(OpJumpIfFalse, 0, 0, n.Loc)

	lc := &loopCtx{}
	g.loops = append(g.loops, lc)
	g.genStmt(n.Body, scope)
	g.loops = g.loops[:len(g.loops)-1]

	g.chunk.Emit(OpJump, condStart, 0, n.Loc)
	endIP := uint32(len(g.chunk.Code))
	g.chunk.Patch(jfalse, endIP)
	for _, idx := range lc.breakJumps {
		g.chunk.Patch(idx, endIP)
	}
	for _, idx := range lc.continueJumps {
		g.chunk.Patch(idx, condStart)
	}
}

func (g *Generator) genFor(n *ForStmt, scope *varScope) {
	inner := newVarScope(scope)
	if n.Init != nil {
		g.genStmt(n.Init, inner)
	}

	condStart := uint32(len(g.chunk.Code))
	var jfalse int
	hasCond := n.Cond != nil
	if hasCond {
		g.genExpr(n.Cond, inner)
		jfalse = g.chunk.Emit(OpJumpIfFalse, 0, 0, n.Loc)
	}

	lc := &loopCtx{}
	g.loops = append(g.loops, lc)
	for _, stmt := range n.Body.Stmts {
		g.genStmt(stmt, inner)
	}
	g.loops = g.loops[:len(g.loops)-1]

	stepStart := uint32(len(g.chunk.Code))
	if n.Step != nil {
		g.genStmt(n.Step, inner)
	}
	g.chunk.Emit(OpJump, condStart, 0, n.Loc)
	endIP := uint32(len(g.chunk.Code))

	if hasCond {
		g.chunk.Patch(jfalse, endIP)
	}
	for _, idx := range lc.breakJumps {
		g.chunk.Patch(idx, endIP)
	}
	for _, idx := range lc.continueJumps {
		g.chunk.Patch(idx, stepStart)
	}
}

// genExpr emits code for e and returns its statically inferred type when
// one can be determined (used only to pick add vs concat for "+"); the
// zero TypeRef means unknown.
func (g *Generator) genExpr(e Expr, scope *varScope) TypeRef {
	switch e := e.(type) {
	case *IntLit:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Int(e.Value)), 0, e.Loc)
		return TypeRef{Name: "Int"}
	case *FloatLit:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Float(e.Value)), 0, e.Loc)
		return TypeRef{Name: "Float"}
	case *StringLit:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(StringOwnedFrom(e.Value)), 0, e.Loc)
		return TypeRef{Name: "String"}
	case *CharLit:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Char(e.Value)), 0, e.Loc)
		return TypeRef{Name: "Char"}
	case *BoolLit:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Bool(e.Value)), 0, e.Loc)
		return TypeRef{Name: "Bool"}
	case *Ident:
		info, ok := scope.lookup(e.Name)
		if !ok {
			g.diags.Errorf(StageRuntime, e.Loc, "undefined identifier %q", e.Name)
			g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, e.Loc)
			return TypeRef{}
		}
		if info.Global {
			g.chunk.Emit(OpLoadGlobal, info.Slot, 0, e.Loc)
		} else {
			g.chunk.Emit(OpLoadLocal, info.Slot, 0, e.Loc)
		}
		return info.Type
	case *UnaryExpr:
		typ := g.genExpr(e.X, scope)
		if e.Op == "-" {
			g.chunk.Emit(OpNegate, 0, 0, e.Loc)
		} else {
			g.chunk.Emit(OpNot, 0, 0, e.Loc)
		}
		return typ
	case *BinaryExpr:
		return g.genBinary(e, scope)
	case *AssignExpr:
		return g.genAssign(e, scope)
	case *CallExpr:
		return g.genCall(e, scope)
	case *IndexExpr:
		g.genExpr(e.X, scope)
		g.genExpr(e.Index, scope)
		g.chunk.Emit(OpArrayGet, 0, 0, e.Loc)
		return TypeRef{}
	case *BadExpr:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, e.Pos())
		return TypeRef{}
	default:
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, Location{})
		return TypeRef{}
	}
}

func (g *Generator) genBinary(e *BinaryExpr, scope *varScope) TypeRef {
	leftType := g.genExpr(e.Left, scope)
	rightType := g.genExpr(e.Right, scope)
	loc := e.Loc

	switch e.Op {
	case "+":
		if leftType.Name == "String" && rightType.Name == "String" {
			g.chunk.Emit(OpConcat, 0, 0, loc)
			return TypeRef{Name: "String"}
		}
		g.chunk.Emit(OpAdd, 0, 0, loc)
		return numericResultType(leftType, rightType)
	case "-":
		g.chunk.Emit(OpSub, 0, 0, loc)
		return numericResultType(leftType, rightType)
	case "*":
		g.chunk.Emit(OpMul, 0, 0, loc)
		return numericResultType(leftType, rightType)
	case "/":
		g.chunk.Emit(OpDiv, 0, 0, loc)
		return numericResultType(leftType, rightType)
	case "%":
		g.chunk.Emit(OpMod, 0, 0, loc)
		return numericResultType(leftType, rightType)
	case "==":
		g.chunk.Emit(OpEq, 0, 0, loc)
	case "!=":
		g.chunk.Emit(OpNotEq, 0, 0, loc)
	case "<":
		g.chunk.Emit(OpLess, 0, 0, loc)
	case "<=":
		g.chunk.Emit(OpLessEq, 0, 0, loc)
	case ">":
		g.chunk.Emit(OpGreater, 0, 0, loc)
	case ">=":
		g.chunk.Emit(OpGreaterEq, 0, 0, loc)
	case "&&":
		g.chunk.Emit(OpAnd, 0, 0, loc)
	case "||":
		g.chunk.Emit(OpOr, 0, 0, loc)
	}
	return TypeRef{Name: "Bool"}
}

func numericResultType(a, b TypeRef) TypeRef {
	if a.Name == "Float" || b.Name == "Float" {
		return TypeRef{Name: "Float"}
	}
	return TypeRef{Name: "Int"}
}

func (g *Generator) genAssign(e *AssignExpr, scope *varScope) TypeRef {
	switch target := e.Target.(type) {
	case *Ident:
		g.genExpr(e.Value, scope)
		info, ok := scope.lookup(target.Name)
		if !ok {
			g.diags.Errorf(StageRuntime, target.Loc, "undefined identifier %q", target.Name)
			return TypeRef{}
		}
		if info.Global {
			g.chunk.Emit(OpStoreGlobal, info.Slot, 0, e.Loc)
			g.chunk.Emit(OpLoadGlobal, info.Slot, 0, e.Loc)
		} else {
			g.chunk.Emit(OpStoreLocal, info.Slot, 0, e.Loc)
			g.chunk.Emit(OpLoadLocal, info.Slot, 0, e.Loc)
		}
		return info.Type
	case *IndexExpr:
		// array-set consumes (array, index, value); the array opcodes are
		// unimplemented (reserved) so this always fails at runtime today.
		g.genExpr(target.X, scope)
		g.genExpr(target.Index, scope)
		g.genExpr(e.Value, scope)
		g.chunk.Emit(OpArraySet, 0, 0, e.Loc)
		return TypeRef{}
	default:
		g.diags.Errorf(StageRuntime, e.Loc, "invalid assignment target")
		return TypeRef{}
	}
}

func (g *Generator) genCall(e *CallExpr, scope *varScope) TypeRef {
	for _, a := range e.Args {
		g.genExpr(a, scope)
	}
	if id, ok := g.builtins.Lookup(e.Callee); ok {
		g.chunk.Emit(OpCallBuiltin, uint32(id), uint32(len(e.Args)), e.Loc)
		return TypeRef{}
	}
	idx, ok := g.chunk.FindFunction(e.Callee)
	if !ok {
		g.diags.Errorf(StageRuntime, e.Loc, "call to undefined function %q", e.Callee)
		g.chunk.Emit(OpPushConst, g.chunk.AddConstant(Null()), 0, e.Loc)
		return TypeRef{}
	}
	g.chunk.Emit(OpCall, uint32(idx), uint32(len(e.Args)), e.Loc)
	if fn, ok := g.funcs[e.Callee]; ok && fn.ReturnType != nil {
		return *fn.ReturnType
	}
	return TypeRef{}
}
