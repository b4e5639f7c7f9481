// Package parser implements the recursive-descent parser: it consumes
// the token stream from internal/lexer and builds the compile tree
// consumed by internal/codegen. Productions panic on the first syntax
// error and Parse recovers it into an error return, rather than
// threading error values through every recursive production.
package parser

import (
	"fmt"
	"io"
	"strconv"

	"github.com/tinscript/tin/internal/lexer"
)

// builtinTypes are the type keywords recognized for declarations
// regardless of any registered native class.
var builtinTypes = map[string]bool{
	"int": true, "float": true, "bool": true, "string": true,
	"object": true, "hashtable": true, "vec3": true,
}

// parseError unwinds out of deeply nested productions on the first
// syntax error; a malformed compile tree cannot be safely code-generated,
// so there is no recovery at statement boundaries.
type parseError struct{ err error }

// Parser turns a token stream into a compile tree.
type Parser struct {
	lx        *lexer.Lexer
	filename  string
	tok       lexer.Token
	ahead     *lexer.Token
	started   bool
	atExprPos bool // hint fed to lexer.Next for unary vs. binop disambiguation
}

// New creates a parser reading r as tin source named filename.
func New(r io.Reader, filename string) *Parser {
	return &Parser{lx: lexer.New(r, filename), filename: filename, atExprPos: true}
}

// SetTypeChecker installs the registered-type predicate on the underlying
// lexer. Must be called before Parse.
func (p *Parser) SetTypeChecker(isType func(string) bool) {
	p.lx.SetTypeChecker(isType)
}

func (p *Parser) advance() {
	if p.ahead != nil {
		p.tok = *p.ahead
		p.ahead = nil
		return
	}
	p.tok = p.lx.Next(p.atExprPos)
}

// peek returns the token after the current one without consuming it.
func (p *Parser) peek() lexer.Token {
	if p.ahead == nil {
		t := p.lx.Next(false)
		p.ahead = &t
	}
	return *p.ahead
}

func (p *Parser) fail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	panic(parseError{fmt.Errorf("%s:%d: %s", p.filename, p.tok.Line, msg)})
}

func (p *Parser) expect(kind lexer.Kind, text string) lexer.Token {
	if p.tok.Kind != kind || (text != "" && p.tok.Text != text) {
		p.fail("expected %q, got %q", text, p.tok.Text)
	}
	t := p.tok
	// these tokens precede an expression (or a statement), so a +/-
	// right after them is a unary prefix, not a binary operator
	exprStart := kind == lexer.ParenOpen || kind == lexer.Comma ||
		kind == lexer.SquareOpen || kind == lexer.BraceOpen || kind == lexer.Semicolon
	p.advanceExpr(exprStart)
	return t
}

// advanceExpr advances the current token, telling the lexer whether the
// position just past it starts a new expression (so it can classify a
// following +/- as unary or binary).
func (p *Parser) advanceExpr(exprStart bool) {
	p.atExprPos = exprStart
	p.advance()
}

// Parse parses the whole input into a top-level NBlock, stopping at the
// first syntax error.
func (p *Parser) Parse() (tree *Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe.err
				return
			}
			panic(r)
		}
	}()

	if !p.started {
		p.started = true
		p.advance()
	}
	root := newNode(NBlock, p.tok.Line)
	for p.tok.Kind != lexer.EOF {
		root.List = append(root.List, p.statement())
	}
	return root, nil
}

func (p *Parser) statement() *Node {
	switch {
	case p.tok.Kind == lexer.BraceOpen:
		return p.block()
	case p.isKeyword("if"):
		return p.ifStmt()
	case p.isKeyword("while"):
		return p.whileStmt()
	case p.isKeyword("for"):
		return p.forStmt()
	case p.isKeyword("break"):
		n := newNode(NBreak, p.tok.Line)
		p.advanceExpr(true)
		p.expect(lexer.Semicolon, ";")
		return n
	case p.isKeyword("continue"):
		n := newNode(NContinue, p.tok.Line)
		p.advanceExpr(true)
		p.expect(lexer.Semicolon, ";")
		return n
	case p.isKeyword("return"):
		return p.returnStmt()
	case p.isKeyword("destroy"):
		return p.destroyStmt()
	case p.isKeyword("schedule"):
		return p.scheduleStmt()
	case p.isTypeStart():
		return p.declOrFuncDecl()
	default:
		n := newNode(NExprStmt, p.tok.Line)
		n.Left = p.expr()
		p.expect(lexer.Semicolon, ";")
		return n
	}
}

func (p *Parser) isKeyword(kw string) bool {
	return p.tok.Kind == lexer.Keyword && p.tok.Text == kw
}

func (p *Parser) isTypeStart() bool {
	if p.tok.Kind == lexer.RegisteredType {
		return true
	}
	return p.tok.Kind == lexer.Ident && builtinTypes[p.tok.Text]
}

func (p *Parser) block() *Node {
	n := newNode(NBlock, p.tok.Line)
	p.expect(lexer.BraceOpen, "{")
	for p.tok.Kind != lexer.BraceClose {
		if p.tok.Kind == lexer.EOF {
			p.fail("unterminated block")
		}
		n.List = append(n.List, p.statement())
	}
	p.expect(lexer.BraceClose, "}")
	return n
}

func (p *Parser) ifStmt() *Node {
	n := newNode(NIf, p.tok.Line)
	p.advanceExpr(false)
	p.expect(lexer.ParenOpen, "(")
	n.Cond = p.expr()
	p.expect(lexer.ParenClose, ")")
	n.Then = p.statement()
	if p.isKeyword("else") {
		p.advanceExpr(false)
		n.Else = p.statement()
	}
	return n
}

func (p *Parser) whileStmt() *Node {
	n := newNode(NWhile, p.tok.Line)
	p.advanceExpr(false)
	p.expect(lexer.ParenOpen, "(")
	n.Cond = p.expr()
	p.expect(lexer.ParenClose, ")")
	n.Body = p.statement()
	return n
}

func (p *Parser) forStmt() *Node {
	n := newNode(NFor, p.tok.Line)
	p.advanceExpr(false)
	p.expect(lexer.ParenOpen, "(")
	if p.tok.Kind != lexer.Semicolon {
		if p.isTypeStart() {
			n.Left = p.varDecl()
		} else {
			init := newNode(NExprStmt, p.tok.Line)
			init.Left = p.expr()
			n.Left = init
			p.expect(lexer.Semicolon, ";")
		}
	} else {
		p.expect(lexer.Semicolon, ";")
	}
	if p.tok.Kind != lexer.Semicolon {
		n.Cond = p.expr()
	}
	p.expect(lexer.Semicolon, ";")
	if p.tok.Kind != lexer.ParenClose {
		post := newNode(NExprStmt, p.tok.Line)
		post.Left = p.expr()
		n.Right = post
	}
	p.expect(lexer.ParenClose, ")")
	n.Body = p.statement()
	return n
}

func (p *Parser) returnStmt() *Node {
	n := newNode(NReturn, p.tok.Line)
	p.advanceExpr(true)
	if p.tok.Kind != lexer.Semicolon {
		n.Left = p.expr()
	}
	p.expect(lexer.Semicolon, ";")
	return n
}

func (p *Parser) destroyStmt() *Node {
	n := newNode(NDestroyObject, p.tok.Line)
	p.advanceExpr(true)
	n.Left = p.expr()
	p.expect(lexer.Semicolon, ";")
	return n
}

// scheduleStmt parses schedule(target, delayMs, funcName [, args...]);
// The delay is a compile-time integer literal and the function name a
// compile-time identifier, so only the target and argument expressions
// are evaluated at runtime.
func (p *Parser) scheduleStmt() *Node {
	n := newNode(NSchedule, p.tok.Line)
	p.advanceExpr(false)
	p.expect(lexer.ParenOpen, "(")
	n.Target = p.expr()
	p.expect(lexer.Comma, ",")
	if p.tok.Kind != lexer.Integer {
		p.fail("schedule delay must be an integer literal")
	}
	delay, err := strconv.ParseInt(p.tok.Text, 10, 32)
	if err != nil {
		p.fail("invalid schedule delay %q", p.tok.Text)
	}
	n.DelaySrc = int32(delay)
	p.advanceExpr(false)
	p.expect(lexer.Comma, ",")
	if p.tok.Kind == lexer.Namespace {
		p.advanceExpr(false)
	}
	if p.tok.Kind != lexer.Ident {
		p.fail("schedule function name must be an identifier")
	}
	n.Text = p.tok.Text
	p.advanceExpr(false)
	for p.tok.Kind == lexer.Comma {
		p.advanceExpr(true)
		n.List = append(n.List, p.expr())
	}
	p.expect(lexer.ParenClose, ")")
	p.expect(lexer.Semicolon, ";")
	return n
}

// declOrFuncDecl parses either a variable declaration or a function
// declaration (free or namespaced method), both of which start with a
// type name. "int self.x;" declares a member on the receiver instead of
// a local.
func (p *Parser) declOrFuncDecl() *Node {
	typeName := p.tok.Text
	line := p.tok.Line
	p.advanceExpr(false)

	if p.isKeyword("self") {
		p.advanceExpr(false)
		p.expect(lexer.Period, ".")
		if p.tok.Kind != lexer.Ident {
			p.fail("expected member name after 'self.'")
		}
		name := p.tok.Text
		p.advanceExpr(false)
		n := p.varDeclTail(typeName, name, line)
		n.Kind = NSelfVarDecl
		return n
	}

	namespace := ""
	if p.tok.Kind == lexer.Ident && p.peek().Kind == lexer.Namespace {
		namespace = p.tok.Text
		p.advanceExpr(false)
		p.advanceExpr(false) // consume "::"
	}

	if p.tok.Kind != lexer.Ident {
		p.fail("expected identifier after type %q", typeName)
	}
	name := p.tok.Text
	p.advanceExpr(false)

	if p.tok.Kind == lexer.ParenOpen {
		return p.funcDecl(typeName, namespace, name, line)
	}
	return p.varDeclTail(typeName, name, line)
}

func (p *Parser) varDecl() *Node {
	if !p.isTypeStart() {
		p.fail("expected type name")
	}
	typeName := p.tok.Text
	line := p.tok.Line
	p.advanceExpr(false)
	if p.tok.Kind != lexer.Ident {
		p.fail("expected identifier after type %q", typeName)
	}
	name := p.tok.Text
	p.advanceExpr(false)
	return p.varDeclTail(typeName, name, line)
}

// varDeclTail parses the optional bracket suffix, the optional "= init"
// initializer and the closing semicolon of a declaration. An empty "[]"
// marks a hashtable declaration; a bracketed key list ("int h[k1, k2];")
// declares a typed entry inside the hashtable named by the identifier.
func (p *Parser) varDeclTail(typeName, name string, line int) *Node {
	n := newNode(NVarDecl, line)
	n.TypeName = typeName
	n.Text = name
	if p.tok.Kind == lexer.SquareOpen {
		p.advanceExpr(true)
		if p.tok.Kind == lexer.SquareClose {
			n.Op = "array" // hashtable declaration
			p.advanceExpr(false)
		} else {
			n.Kind = NArrayVarDecl
			for {
				n.List = append(n.List, p.expr())
				if p.tok.Kind == lexer.Comma {
					p.advanceExpr(true)
					continue
				}
				break
			}
			p.expect(lexer.SquareClose, "]")
		}
	}
	if p.tok.Kind == lexer.AssignOp && p.tok.Text == "=" {
		p.advanceExpr(true)
		n.Right = p.expr()
	}
	p.expect(lexer.Semicolon, ";")
	return n
}

func (p *Parser) funcDecl(typeName, namespace, name string, line int) *Node {
	n := newNode(NFuncDecl, line)
	n.TypeName = typeName
	n.Namespace = namespace
	n.Text = name
	p.expect(lexer.ParenOpen, "(")
	for p.tok.Kind != lexer.ParenClose {
		if !p.isTypeStart() {
			p.fail("expected parameter type")
		}
		pt := p.tok.Text
		pl := p.tok.Line
		p.advanceExpr(false)
		if p.tok.Kind != lexer.Ident {
			p.fail("expected parameter name")
		}
		pn := p.tok.Text
		p.advanceExpr(false)
		param := newNode(NParamDecl, pl)
		param.TypeName = pt
		param.Text = pn
		n.Params = append(n.Params, param)
		if p.tok.Kind == lexer.Comma {
			p.advanceExpr(false)
		}
	}
	p.expect(lexer.ParenClose, ")")
	n.Body = p.block()
	return n
}

// --- expressions ---------------------------------------------------

// precedence gives the binding strength of a binary operator spelling;
// higher binds tighter. The two boolean operators share one level, so
// chains like "a || b && c" group left to right.
var precedence = map[string]int{
	"||": 1, "&&": 1,
	"|":  2,
	"^":  3,
	"&":  4,
	"==": 5, "!=": 5,
	"<": 6, "<=": 6, ">": 6, ">=": 6,
	"<<": 7, ">>": 7,
	"+": 8, "-": 8,
	"*": 9, "/": 9, "%": 9,
}

// expr parses a full expression: assignment has the lowest precedence
// and is right-associative.
func (p *Parser) expr() *Node {
	left := p.binary(1)
	if p.tok.Kind == lexer.AssignOp {
		op := p.tok.Text
		line := p.tok.Line
		p.advanceExpr(true)
		right := p.expr()
		if op == "=" {
			n := newNode(NAssign, line)
			n.Left, n.Right = left, right
			return n
		}
		n := newNode(NCompoundAssign, line)
		n.Op = op
		n.Left, n.Right = left, right
		return n
	}
	return left
}

// binary implements precedence climbing over left-associative binary
// operators.
func (p *Parser) binary(minPrec int) *Node {
	left := p.unary()
	for p.tok.Kind == lexer.BinOp {
		prec, ok := precedence[p.tok.Text]
		if !ok || prec < minPrec {
			break
		}
		op := p.tok.Text
		line := p.tok.Line
		p.advanceExpr(true)
		right := p.binary(prec + 1)
		n := newNode(NBinOp, line)
		n.Op = op
		n.Left, n.Right = left, right
		left = n
	}
	return left
}

func (p *Parser) unary() *Node {
	if p.tok.Kind == lexer.Unary {
		op := p.tok.Text
		line := p.tok.Line
		p.advanceExpr(true)
		n := newNode(NUnaryOp, line)
		n.Op = op
		n.Left = p.unary()
		return n
	}
	return p.postfix(p.primary())
}

func (p *Parser) postfix(n *Node) *Node {
	for {
		switch p.tok.Kind {
		case lexer.Period:
			line := p.tok.Line
			p.advanceExpr(false)
			if p.tok.Kind != lexer.Ident {
				p.fail("expected member name after '.'")
			}
			name := p.tok.Text
			p.advanceExpr(false)
			if p.tok.Kind == lexer.ParenOpen {
				n = p.callArgs(n, name, line, false)
				continue
			}
			m := newNode(NMember, line)
			m.Left = n
			m.Text = name
			n = m
		case lexer.Namespace:
			line := p.tok.Line
			p.advanceExpr(false)
			if p.tok.Kind != lexer.Ident {
				p.fail("expected method name after '::'")
			}
			name := p.tok.Text
			p.advanceExpr(false)
			n = p.callArgs(n, name, line, true)
		case lexer.SquareOpen:
			p.advanceExpr(true)
			idx := newNode(NArrayIndex, p.tok.Line)
			idx.Left = n
			for {
				idx.List = append(idx.List, p.expr())
				if p.tok.Kind == lexer.Comma {
					p.advanceExpr(true)
					continue
				}
				break
			}
			p.expect(lexer.SquareClose, "]")
			n = idx
		default:
			return n
		}
	}
}

// callArgs parses the "(args)" of a call to name against receiver recv;
// nsQualified marks a "::"-qualified call versus a "."-qualified one.
func (p *Parser) callArgs(recv *Node, name string, line int, nsQualified bool) *Node {
	kind := NMethodCall
	if nsQualified {
		kind = NNSMethodCall
	}
	if recv == nil {
		kind = NCall
	}
	n := newNode(kind, line)
	n.Left = recv
	n.Text = name
	p.expect(lexer.ParenOpen, "(")
	for p.tok.Kind != lexer.ParenClose {
		n.List = append(n.List, p.expr())
		if p.tok.Kind == lexer.Comma {
			p.advanceExpr(true)
		}
	}
	p.expect(lexer.ParenClose, ")")
	return n
}

func (p *Parser) primary() *Node {
	line := p.tok.Line
	switch p.tok.Kind {
	case lexer.Integer:
		v, err := strconv.ParseInt(p.tok.Text, 0, 32)
		if err != nil {
			p.fail("invalid integer literal %q", p.tok.Text)
		}
		n := newNode(NLiteralInt, line)
		n.IntVal = int32(v)
		p.advanceExpr(false)
		return n
	case lexer.Float:
		v, err := strconv.ParseFloat(p.tok.Text, 32)
		if err != nil {
			p.fail("invalid float literal %q", p.tok.Text)
		}
		n := newNode(NLiteralFloat, line)
		n.FloatVal = float32(v)
		p.advanceExpr(false)
		return n
	case lexer.String:
		n := newNode(NLiteralString, line)
		n.Text = p.tok.Text
		p.advanceExpr(false)
		return n
	case lexer.Bool:
		n := newNode(NLiteralBool, line)
		n.BoolVal = p.tok.Text == "true"
		p.advanceExpr(false)
		return n
	case lexer.ParenOpen:
		p.advanceExpr(true)
		n := p.expr()
		p.expect(lexer.ParenClose, ")")
		return n
	case lexer.Keyword:
		switch p.tok.Text {
		case "self":
			n := newNode(NSelf, line)
			p.advanceExpr(false)
			return n
		case "create":
			return p.createExpr()
		}
		p.fail("unexpected keyword %q in expression", p.tok.Text)
	case lexer.Ident:
		name := p.tok.Text
		p.advanceExpr(false)
		if p.tok.Kind == lexer.ParenOpen {
			return p.callArgs(nil, name, line, false)
		}
		n := newNode(NIdent, line)
		n.Text = name
		return n
	case lexer.RegisteredType:
		// a bare registered-class name used as a namespace-qualified
		// call target, e.g. Weapon::Reload(...).
		name := p.tok.Text
		p.advanceExpr(false)
		n := newNode(NIdent, line)
		n.Text = name
		return n
	}
	p.fail("unexpected token %q", p.tok.Text)
	return nil
}

// createExpr parses "create ClassName()" with an optional string-literal
// object name argument.
func (p *Parser) createExpr() *Node {
	line := p.tok.Line
	p.advanceExpr(false)
	if p.tok.Kind != lexer.Ident && p.tok.Kind != lexer.RegisteredType {
		p.fail("expected class name after 'create'")
	}
	class := p.tok.Text
	p.advanceExpr(false)
	n := newNode(NCreateObject, line)
	n.Text = class
	p.expect(lexer.ParenOpen, "(")
	for p.tok.Kind != lexer.ParenClose {
		n.List = append(n.List, p.expr())
		if p.tok.Kind == lexer.Comma {
			p.advanceExpr(true)
		}
	}
	p.expect(lexer.ParenClose, ")")
	return n
}
