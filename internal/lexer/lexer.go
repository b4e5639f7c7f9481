// Package lexer turns tin source text into a stream of typed tokens.
// It wraps text/scanner.Scanner with a custom identifier predicate and
// error sink, extended with hand-rolled multi-character operator
// assembly and quote-delimited string literals, neither of which
// text/scanner supports out of the box.
package lexer

import (
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

// Kind is a lexical token kind.
type Kind uint8

const (
	String Kind = iota
	BinOp
	AssignOp
	Unary
	Ident
	Keyword
	RegisteredType
	Float
	Integer
	Bool
	Namespace // "::"
	ParenOpen
	ParenClose
	Comma
	Semicolon
	Period
	BraceOpen
	BraceClose
	SquareOpen
	SquareClose
	EOF
	Error
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case BinOp:
		return "binop"
	case AssignOp:
		return "assop"
	case Unary:
		return "unary"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case RegisteredType:
		return "registered-type"
	case Float:
		return "float"
	case Integer:
		return "integer"
	case Bool:
		return "bool"
	case Namespace:
		return "namespace"
	case ParenOpen:
		return "("
	case ParenClose:
		return ")"
	case Comma:
		return ","
	case Semicolon:
		return ";"
	case Period:
		return "."
	case BraceOpen:
		return "{"
	case BraceClose:
		return "}"
	case SquareOpen:
		return "["
	case SquareClose:
		return "]"
	case EOF:
		return "eof"
	default:
		return "error"
	}
}

// Token is a single lexical token.
type Token struct {
	Kind Kind
	Text string
	Line int
}

var keywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "break": true,
	"continue": true, "return": true, "schedule": true, "create": true,
	"destroy": true, "self": true,
}

// twoCharOps must be checked before single-character spellings so that
// "<=" never lexes as "<" followed by "=".
var twoCharOps = map[string]bool{
	"&&": true, "||": true, "==": true, "!=": true, "<=": true, ">=": true,
	"<<": true, ">>": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true,
}

var threeCharOps = map[string]bool{
	"<<=": true, ">>=": true,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"<<=": true, ">>=": true, "&=": true, "|=": true, "^=": true,
}

// ambiguousUnary are spellings that are unary when the caller signals an
// expression start and binary otherwise.
var ambiguousUnary = map[string]bool{"+": true, "-": true}

// pureUnary are spellings that are never binary.
var pureUnary = map[string]bool{"!": true, "~": true}

// Lexer produces a token stream from a byte buffer.
type Lexer struct {
	s        scanner.Scanner
	filename string
	isType   func(string) bool
	errs     []error
}

// New creates a lexer reading from r, reporting filename in positions.
func New(r io.Reader, filename string) *Lexer {
	lx := &Lexer{filename: filename}
	lx.s.Init(r)
	lx.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanComments | scanner.SkipComments
	lx.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || (i == 0 && isAlpha(ch)) || (i > 0 && (isAlpha(ch) || isDigit(ch)))
	}
	lx.s.Filename = filename
	lx.s.Error = func(s *scanner.Scanner, msg string) {
		lx.errs = append(lx.errs, fmt.Errorf("%s: %s", s.Position, msg))
	}
	return lx
}

func isAlpha(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// SetTypeChecker installs the predicate used to classify identifiers that
// name a registered type. The predicate is owned by the calling context;
// a nil predicate classifies nothing as a type.
func (lx *Lexer) SetTypeChecker(isType func(string) bool) { lx.isType = isType }

// Errs returns the lexical errors accumulated so far.
func (lx *Lexer) Errs() []error { return lx.errs }

func (lx *Lexer) errorf(line int, format string, args ...interface{}) Token {
	msg := fmt.Sprintf(format, args...)
	lx.errs = append(lx.errs, fmt.Errorf("%s:%d: %s", lx.filename, line, msg))
	return Token{Kind: Error, Text: msg, Line: line}
}

// Next returns the next token. exprStart must be true when the parser is
// at a position where a unary prefix operator is grammatically valid
// (start of a primary expression); this resolves the +/- ambiguity.
func (lx *Lexer) Next(exprStart bool) Token {
	tok := lx.s.Scan()
	line := lx.s.Position.Line
	if line == 0 {
		line = lx.s.Line
	}
	text := lx.s.TokenText()

	switch tok {
	case scanner.EOF:
		return Token{Kind: EOF, Line: line}
	case scanner.Ident:
		if text == "true" || text == "false" {
			return Token{Kind: Bool, Text: text, Line: line}
		}
		if keywords[text] {
			return Token{Kind: Keyword, Text: text, Line: line}
		}
		if lx.isType != nil && lx.isType(text) {
			return Token{Kind: RegisteredType, Text: text, Line: line}
		}
		return Token{Kind: Ident, Text: text, Line: line}
	case scanner.Int:
		return lx.scanNumber(text, line, false)
	case scanner.Float:
		return lx.scanNumber(text, line, true)
	case '"', '\'', '`':
		// string literal delimiters are not part of any scanner.Mode class,
		// so Scan returns the opening delimiter as a bare rune.
		return lx.scanString(tok, line)
	}

	switch text {
	case "(":
		return Token{Kind: ParenOpen, Text: text, Line: line}
	case ")":
		return Token{Kind: ParenClose, Text: text, Line: line}
	case ",":
		return Token{Kind: Comma, Text: text, Line: line}
	case ";":
		return Token{Kind: Semicolon, Text: text, Line: line}
	case "{":
		return Token{Kind: BraceOpen, Text: text, Line: line}
	case "}":
		return Token{Kind: BraceClose, Text: text, Line: line}
	case "[":
		return Token{Kind: SquareOpen, Text: text, Line: line}
	case "]":
		return Token{Kind: SquareClose, Text: text, Line: line}
	case ".":
		return Token{Kind: Period, Text: text, Line: line}
	case ":":
		if lx.s.Peek() == ':' {
			lx.s.Next()
			return Token{Kind: Namespace, Text: "::", Line: line}
		}
		return lx.errorf(line, "unexpected character ':'")
	}

	return lx.scanOperator(text, line, exprStart)
}

// scanOperator assembles the longest operator spelling starting at the
// single rune already consumed in text. A leading '=' is not consumed as
// assignment when followed by '=': the two-character extension to "=="
// happens first.
func (lx *Lexer) scanOperator(text string, line int, exprStart bool) Token {
	if n := lx.s.Peek(); n != scanner.EOF {
		two := text + string(n)
		if twoCharOps[two] {
			lx.s.Next()
			if lx.s.Peek() == '=' && threeCharOps[two+"="] {
				lx.s.Next()
				text = two + "="
			} else {
				text = two
			}
		}
	}

	if assignOps[text] {
		return Token{Kind: AssignOp, Text: text, Line: line}
	}
	if pureUnary[text] {
		return Token{Kind: Unary, Text: text, Line: line}
	}
	if ambiguousUnary[text] {
		if exprStart {
			return Token{Kind: Unary, Text: text, Line: line}
		}
		return Token{Kind: BinOp, Text: text, Line: line}
	}
	switch text {
	case "&&", "||", "==", "!=", "<=", ">=", "<<", ">>",
		"<", ">", "*", "/", "%", "&", "^", "|":
		return Token{Kind: BinOp, Text: text, Line: line}
	}
	return lx.errorf(line, "unexpected character %q", text)
}

// scanNumber extends an already-recognized int/float token, consuming an
// optional trailing 'f'.
func (lx *Lexer) scanNumber(text string, line int, isFloat bool) Token {
	if lx.s.Peek() == 'f' {
		lx.s.Next()
		isFloat = true
	}
	if isFloat {
		return Token{Kind: Float, Text: text, Line: line}
	}
	return Token{Kind: Integer, Text: text, Line: line}
}

// scanString reads a string literal delimited by delim (one of " ' `),
// with no escape semantics; the literal ends at the next occurrence of
// the same delimiter. The opening delimiter has already been consumed by
// Scan; line is the line it was found on.
func (lx *Lexer) scanString(delim rune, line int) Token {
	var b strings.Builder
	for {
		r := lx.s.Next()
		if r == scanner.EOF {
			return lx.errorf(line, "unterminated string literal")
		}
		if r == delim {
			break
		}
		b.WriteRune(r)
	}
	return Token{Kind: String, Text: b.String(), Line: line}
}
