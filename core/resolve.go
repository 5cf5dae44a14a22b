package core

// resolverScope is one level of the resolver's symbol table, grounded on
// ion/compiler.go's SymbolTable (outer-scope chaining) but flattened: the
// resolver never captures free variables, since the language has no
// closures.
type resolverScope struct {
	outer *resolverScope
	names map[string]bool
}

func newResolverScope(outer *resolverScope) *resolverScope {
	return &resolverScope{outer: outer, names: make(map[string]bool)}
}

func (s *resolverScope) declaredHere(name string) bool {
	return s.names[name]
}

func (s *resolverScope) resolves(name string) bool {
	for sc := s; sc != nil; sc = sc.outer {
		if sc.names[name] {
			return true
		}
	}
	return false
}

// funcSig records a function's declared arity for the call-arity check.
type funcSig struct {
	paramCount int
}

// Resolver is the type/symbol resolver (component G, external contract
// per spec §4.5). It never rewrites the tree; it only appends to a
// Diagnostics. Whether its errors block the pipeline is controlled by
// Context.Strict (SPEC_FULL.md §5.3).
type Resolver struct {
	diags     *Diagnostics
	funcs     map[string]funcSig
	builtins  *BuiltinRegistry
}

func NewResolver(diags *Diagnostics, builtins *BuiltinRegistry) *Resolver {
	return &Resolver{diags: diags, funcs: make(map[string]funcSig), builtins: builtins}
}

// Resolve walks the whole program: required checks are undefined
// identifier, redeclaration in the current scope, and function arity
// mismatch (spec §4.5).
func (r *Resolver) Resolve(program []Node) {
	global := newResolverScope(nil)

	for _, n := range program {
		if fn, ok := n.(*FuncDecl); ok {
			r.funcs[fn.Name] = funcSig{paramCount: len(fn.Params)}
		}
	}

	for _, n := range program {
		r.resolveStmt(n, global)
	}
}

func (r *Resolver) declare(scope *resolverScope, name string, loc Location) {
	if scope.declaredHere(name) {
		r.diags.Errorf(StageResolve, loc, "redeclaration of %q in the same scope", name)
		return
	}
	scope.names[name] = true
}

func (r *Resolver) resolveStmt(n Node, scope *resolverScope) {
	switch n := n.(type) {
	case *VarDecl:
		if n.Init != nil {
			r.resolveExpr(n.Init, scope)
		}
		r.declare(scope, n.Name, n.Loc)
	case *FuncDecl:
		inner := newResolverScope(scope)
		for _, param := range n.Params {
			r.declare(inner, param.Name, n.Loc)
		}
		for _, stmt := range n.Body.Stmts {
			r.resolveStmt(stmt, inner)
		}
	case *Block:
		inner := newResolverScope(scope)
		for _, stmt := range n.Stmts {
			r.resolveStmt(stmt, inner)
		}
	case *IfStmt:
		r.resolveExpr(n.Cond, scope)
		r.resolveStmt(n.Then, scope)
		if n.Else != nil {
			r.resolveStmt(n.Else, scope)
		}
	case *WhileStmt:
		r.resolveExpr(n.Cond, scope)
		r.resolveStmt(n.Body, scope)
	case *ForStmt:
		inner := newResolverScope(scope)
		if n.Init != nil {
			r.resolveStmt(n.Init, inner)
		}
		if n.Cond != nil {
			r.resolveExpr(n.Cond, inner)
		}
		if n.Step != nil {
			r.resolveStmt(n.Step, inner)
		}
		for _, stmt := range n.Body.Stmts {
			r.resolveStmt(stmt, inner)
		}
	case *ReturnStmt:
		if n.Value != nil {
			r.resolveExpr(n.Value, scope)
		}
	case *ExprStmt:
		r.resolveExpr(n.X, scope)
	case *BreakStmt, *ContinueStmt, *ImportStmt, *BadNode:
		// nothing to resolve
	}
}

func (r *Resolver) resolveExpr(e Expr, scope *resolverScope) {
	switch e := e.(type) {
	case *Ident:
		if !scope.resolves(e.Name) {
			r.diags.Errorf(StageResolve, e.Loc, "undefined identifier %q", e.Name)
		}
	case *AssignExpr:
		r.resolveExpr(e.Target, scope)
		r.resolveExpr(e.Value, scope)
	case *BinaryExpr:
		r.resolveExpr(e.Left, scope)
		r.resolveExpr(e.Right, scope)
	case *UnaryExpr:
		r.resolveExpr(e.X, scope)
	case *IndexExpr:
		r.resolveExpr(e.X, scope)
		r.resolveExpr(e.Index, scope)
	case *CallExpr:
		for _, a := range e.Args {
			r.resolveExpr(a, scope)
		}
		r.checkCallArity(e)
	case *IntLit, *FloatLit, *StringLit, *CharLit, *BoolLit, *BadExpr:
		// literals resolve trivially
	}
}

func (r *Resolver) checkCallArity(call *CallExpr) {
	if _, ok := r.builtins.Lookup(call.Callee); ok {
		// built-ins validate their own arity at call time (requireArgs);
		// the resolver doesn't duplicate variadic-friendly builtins' rules.
		return
	}
	sig, ok := r.funcs[call.Callee]
	if !ok {
		r.diags.Errorf(StageResolve, call.Loc, "call to undefined function %q", call.Callee)
		return
	}
	if len(call.Args) != sig.paramCount {
		r.diags.Errorf(StageResolve, call.Loc, "function %q expects %d argument(s), got %d",
			call.Callee, sig.paramCount, len(call.Args))
	}
}
