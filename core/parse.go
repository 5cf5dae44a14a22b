package core


// Parser is the recursive-descent, Pratt-style parser (component F).
// It never aborts: on a missing expected token it records a diagnostic
// and synthesizes a placeholder node (spec §7's recovery policy).
type Parser struct {
	toks  []Token
	pos   int
	diags *Diagnostics
}

func NewParser(toks []Token, diags *Diagnostics) *Parser {
	return &Parser{toks: toks, pos: 0, diags: diags}
}

// ParseProgram parses the whole token stream into a flat list of
// top-level statements/declarations.
func ParseProgram(toks []Token, diags *Diagnostics) []Node {
	p := NewParser(toks, diags)
	var nodes []Node
	for !p.atEOF() {
		nodes = append(nodes, p.parseStatement())
	}
	return nodes
}

func (p *Parser) skipNewlines() {
	for p.toks[p.pos].Kind == TokNewline {
		p.pos++
	}
}

// cur returns the current token, skipping over newlines first — newlines
// are "tolerated but transparent" everywhere the parser looks (spec §4.3).
func (p *Parser) cur() Token {
	p.skipNewlines()
	return p.toks[p.pos]
}

func (p *Parser) atEOF() bool {
	return p.cur().Kind == TokEOF
}

func (p *Parser) advance() Token {
	tok := p.cur()
	if tok.Kind != TokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches kind; otherwise it
// records a diagnostic and returns a zero-value token without consuming,
// so the caller can keep going deterministically.
func (p *Parser) expect(kind TokenKind, what string) Token {
	if p.check(kind) {
		return p.advance()
	}
	p.diags.Errorf(StageParse, p.cur().Loc, "expected %s, got %q", what, p.cur().String())
	return Token{Kind: kind, Loc: p.cur().Loc}
}

// peekAhead returns the token n non-newline tokens ahead of the
// current position, used by the type-prefixed-declaration lookahead.
func (p *Parser) peekAhead(n int) Token {
	p.skipNewlines()
	idx := p.pos
	count := 0
	for idx < len(p.toks) {
		if p.toks[idx].Kind == TokNewline {
			idx++
			continue
		}
		if count == n {
			return p.toks[idx]
		}
		count++
		idx++
	}
	return Token{Kind: TokEOF}
}

func (p *Parser) optionalSemicolon() {
	p.match(TokSemicolon)
}

// --- statements ---

func (p *Parser) parseStatement() Node {
	tok := p.cur()

	switch {
	case tok.Kind == TokLet:
		return p.parseLetDecl()
	case tok.IsTypeName() && p.peekAhead(1).Kind == TokIdentifier:
		return p.parseTypePrefixedDecl()
	case tok.Kind == TokFunc:
		return p.parseFuncDecl()
	case tok.Kind == TokIf:
		return p.parseIf()
	case tok.Kind == TokWhile:
		return p.parseWhile()
	case tok.Kind == TokFor:
		return p.parseFor()
	case tok.Kind == TokReturn:
		return p.parseReturn()
	case tok.Kind == TokBreak:
		p.advance()
		p.optionalSemicolon()
		return &BreakStmt{Loc: tok.Loc}
	case tok.Kind == TokContinue:
		p.advance()
		p.optionalSemicolon()
		return &ContinueStmt{Loc: tok.Loc}
	case tok.Kind == TokImport:
		return p.parseImport()
	case tok.Kind == TokLBrace:
		return p.parseBlock()
	default:
		expr := p.parseExpr(precLowest)
		p.optionalSemicolon()
		return &ExprStmt{X: expr, Loc: tok.Loc}
	}
}

func (p *Parser) parseBlock() *Block {
	loc := p.expect(TokLBrace, "'{'").Loc
	var stmts []Node
	for !p.check(TokRBrace) && !p.atEOF() {
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(TokRBrace, "'}'")
	return &Block{Stmts: stmts, Loc: loc}
}

func (p *Parser) parseType() TypeRef {
	tok := p.cur()
	name, width, ok := SplitTypeLexeme(tok.Lexeme)
	if !ok {
		p.diags.Errorf(StageParse, tok.Loc, "expected type name, got %q", tok.String())
		p.advance()
		return TypeRef{Name: "Void", Loc: tok.Loc}
	}
	p.advance()
	isArray := false
	if p.check(TokLBracket) && p.peekAhead(1).Kind == TokRBracket {
		p.advance()
		p.advance()
		isArray = true
	}
	return TypeRef{Name: name, BitWidth: width, IsArray: isArray, Loc: tok.Loc}
}

// parseLetDecl handles `Let name : Type = initializer?`.
func (p *Parser) parseLetDecl() Node {
	loc := p.advance().Loc // 'Let'
	name := p.expect(TokIdentifier, "identifier").Lexeme
	p.expect(TokColon, "':'")
	typ := p.parseType()

	var init Expr
	if p.match(TokAssign) {
		init = p.parseExpr(precLowest)
	}
	p.optionalSemicolon()
	return &VarDecl{Name: name, Type: typ, Init: init, Loc: loc}
}

// parseTypePrefixedDecl handles `Type name = initializer?`.
func (p *Parser) parseTypePrefixedDecl() Node {
	loc := p.cur().Loc
	typ := p.parseType()
	name := p.expect(TokIdentifier, "identifier").Lexeme

	var init Expr
	if p.match(TokAssign) {
		init = p.parseExpr(precLowest)
	}
	p.optionalSemicolon()
	return &VarDecl{Name: name, Type: typ, Init: init, Loc: loc}
}

func (p *Parser) parseFuncDecl() Node {
	loc := p.advance().Loc // 'func'

	var retType *TypeRef
	if p.cur().IsTypeName() {
		t := p.parseType()
		retType = &t
	}

	name := p.expect(TokIdentifier, "function name").Lexeme

	p.expect(TokLParen, "'('")
	var params []Param
	for !p.check(TokRParen) && !p.atEOF() {
		pname := p.expect(TokIdentifier, "parameter name").Lexeme
		p.expect(TokColon, "':'")
		ptype := p.parseType()
		params = append(params, Param{Name: pname, Type: ptype})
		if !p.match(TokComma) {
			break
		}
	}
	p.expect(TokRParen, "')'")

	body := p.parseBlock()
	return &FuncDecl{Name: name, ReturnType: retType, Params: params, Body: body, Loc: loc}
}

func (p *Parser) parseIf() Node {
	loc := p.advance().Loc // 'if'
	p.expect(TokLParen, "'('")
	cond := p.parseExpr(precLowest)
	p.expect(TokRParen, "')'")
	then := p.parseBlock()

	var elseNode Node
	if p.match(TokElse) {
		if p.check(TokIf) {
			elseNode = p.parseIf()
		} else {
			elseNode = p.parseBlock()
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseNode, Loc: loc}
}

func (p *Parser) parseWhile() Node {
	loc := p.advance().Loc // 'while'
	p.expect(TokLParen, "'('")
	cond := p.parseExpr(precLowest)
	p.expect(TokRParen, "')'")
	body := p.parseBlock()
	return &WhileStmt{Cond: cond, Body: body, Loc: loc}
}

func (p *Parser) parseFor() Node {
	loc := p.advance().Loc // 'for'
	p.expect(TokLParen, "'('")

	var init Node
	if !p.check(TokSemicolon) {
		init = p.parseForClause()
	}
	p.expect(TokSemicolon, "';'")

	var cond Expr
	if !p.check(TokSemicolon) {
		cond = p.parseExpr(precLowest)
	}
	p.expect(TokSemicolon, "';'")

	var step Node
	if !p.check(TokRParen) {
		stepLoc := p.cur().Loc
		step = &ExprStmt{X: p.parseExpr(precLowest), Loc: stepLoc}
	}
	p.expect(TokRParen, "')'")

	body := p.parseBlock()
	return &ForStmt{Init: init, Cond: cond, Step: step, Body: body, Loc: loc}
}

// parseForClause parses the init clause of a for loop, which may be a
// declaration or a bare expression, without consuming the clause's
// terminating semicolon.
func (p *Parser) parseForClause() Node {
	tok := p.cur()
	switch {
	case tok.Kind == TokLet:
		loc := p.advance().Loc
		name := p.expect(TokIdentifier, "identifier").Lexeme
		p.expect(TokColon, "':'")
		typ := p.parseType()
		var init Expr
		if p.match(TokAssign) {
			init = p.parseExpr(precLowest)
		}
		return &VarDecl{Name: name, Type: typ, Init: init, Loc: loc}
	case tok.IsTypeName() && p.peekAhead(1).Kind == TokIdentifier:
		loc := tok.Loc
		typ := p.parseType()
		name := p.expect(TokIdentifier, "identifier").Lexeme
		var init Expr
		if p.match(TokAssign) {
			init = p.parseExpr(precLowest)
		}
		return &VarDecl{Name: name, Type: typ, Init: init, Loc: loc}
	default:
		loc := tok.Loc
		return &ExprStmt{X: p.parseExpr(precLowest), Loc: loc}
	}
}

func (p *Parser) parseReturn() Node {
	loc := p.advance().Loc // 'return'
	var val Expr
	if !p.check(TokSemicolon) && !p.check(TokRBrace) && !p.atEOF() {
		val = p.parseExpr(precLowest)
	}
	p.optionalSemicolon()
	return &ReturnStmt{Value: val, Loc: loc}
}

func (p *Parser) parseImport() Node {
	loc := p.advance().Loc // 'Import'
	p.expect(TokLess, "'<'")
	var path []string
	path = append(path, p.expect(TokIdentifier, "identifier").Lexeme)
	for p.match(TokDot) {
		path = append(path, p.expect(TokIdentifier, "identifier").Lexeme)
	}
	p.expect(TokGreater, "'>'")
	p.optionalSemicolon()
	return &ImportStmt{Path: path, Loc: loc}
}

// --- expressions: precedence climbing ---

const (
	precLowest     = 0
	precAssign     = 1
	precOr         = 2
	precAnd        = 3
	precEquality   = 4
	precComparison = 5
	precAdditive   = 6
	precMultiplicative = 7
	precUnary      = 8
	precPostfix    = 9
)

func binaryPrec(k TokenKind) (int, string, bool) {
	switch k {
	case TokOrOr:
		return precOr, "||", true
	case TokAndAnd:
		return precAnd, "&&", true
	case TokEqual:
		return precEquality, "==", true
	case TokNotEqual:
		return precEquality, "!=", true
	case TokLess:
		return precComparison, "<", true
	case TokLessEqual:
		return precComparison, "<=", true
	case TokGreater:
		return precComparison, ">", true
	case TokGreaterEqual:
		return precComparison, ">=", true
	case TokPlus:
		return precAdditive, "+", true
	case TokMinus:
		return precAdditive, "-", true
	case TokStar:
		return precMultiplicative, "*", true
	case TokSlash:
		return precMultiplicative, "/", true
	case TokPercent:
		return precMultiplicative, "%", true
	default:
		return 0, "", false
	}
}

// parseExpr implements precedence climbing over the ladder in spec §4.3:
// assignment (right-assoc) sits below logical-or, which sits below
// logical-and, equality, comparison, additive, multiplicative, unary,
// postfix, primary.
func (p *Parser) parseExpr(minPrec int) Expr {
	left := p.parseUnary()

	for {
		tok := p.cur()
		if tok.Kind == TokAssign {
			if minPrec > precAssign {
				break
			}
			p.advance()
			right := p.parseExpr(precAssign) // right-associative
			left = &AssignExpr{Target: left, Value: right, Loc: tok.Loc}
			continue
		}

		prec, op, ok := binaryPrec(tok.Kind)
		if !ok || prec < minPrec || prec == precLowest {
			break
		}
		p.advance()
		right := p.parseExpr(prec + 1)
		left = &BinaryExpr{Op: op, Left: left, Right: right, Loc: tok.Loc}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	tok := p.cur()
	if tok.Kind == TokMinus || tok.Kind == TokBang {
		p.advance()
		op := "-"
		if tok.Kind == TokBang {
			op = "!"
		}
		operand := p.parseUnary()
		return &UnaryExpr{Op: op, X: operand, Loc: tok.Loc}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		if p.check(TokLBracket) {
			loc := p.advance().Loc
			idx := p.parseExpr(precLowest)
			p.expect(TokRBracket, "']'")
			expr = &IndexExpr{X: expr, Index: idx, Loc: loc}
			continue
		}
		break
	}
	return expr
}

// isFormattedPrintName reports whether name is the formatted-print
// built-in's name, the only callee for which colon-mode call syntax
// applies (spec §4.3's "Call syntax").
func isFormattedPrintName(name string) bool {
	return name == "printf"
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Kind {
	case TokInt:
		p.advance()
		return &IntLit{Value: tok.IntVal, Loc: tok.Loc}
	case TokFloat:
		p.advance()
		return &FloatLit{Value: tok.FltVal, Loc: tok.Loc}
	case TokString:
		p.advance()
		return &StringLit{Value: tok.StrVal, Loc: tok.Loc}
	case TokChar:
		p.advance()
		return &CharLit{Value: tok.ChrVal, Loc: tok.Loc}
	case TokTrue:
		p.advance()
		return &BoolLit{Value: true, Loc: tok.Loc}
	case TokFalse:
		p.advance()
		return &BoolLit{Value: false, Loc: tok.Loc}
	case TokLParen:
		p.advance()
		inner := p.parseExpr(precLowest)
		p.expect(TokRParen, "')'")
		return inner
	case TokIdentifier:
		p.advance()
		if p.check(TokLParen) {
			return p.parseCall(tok)
		}
		return &Ident{Name: tok.Lexeme, Loc: tok.Loc}
	default:
		p.diags.Errorf(StageParse, tok.Loc, "unexpected token %q in expression", tok.String())
		p.advance()
		return &BadExpr{Loc: tok.Loc}
	}
}

// BadExpr is the expression-flavored placeholder node.
type BadExpr struct{ Loc Location }

func (n *BadExpr) Pos() Location   { return n.Loc }
func (n *BadExpr) String() string { return "<bad>" }

// parseCall implements the one context-sensitive construct in the
// grammar: if the callee is the formatted-print built-in and the token
// right after the first argument is a colon, every argument from there
// on is comma-separated after the colon (spec §4.3).
func (p *Parser) parseCall(nameTok Token) Expr {
	loc := p.advance().Loc // '('
	var args []Expr
	colonMode := false

	if !p.check(TokRParen) {
		first := p.parseExpr(precLowest)
		args = append(args, first)

		if isFormattedPrintName(nameTok.Lexeme) && p.check(TokColon) {
			colonMode = true
			p.advance() // ':'
			if !p.check(TokRParen) {
				args = append(args, p.parseExpr(precLowest))
				for p.match(TokComma) {
					args = append(args, p.parseExpr(precLowest))
				}
			}
		} else {
			for p.match(TokComma) {
				args = append(args, p.parseExpr(precLowest))
			}
		}
	}

	p.expect(TokRParen, "')'")
	return &CallExpr{Callee: nameTok.Lexeme, Args: args, ColonMode: colonMode, Loc: loc}
}
