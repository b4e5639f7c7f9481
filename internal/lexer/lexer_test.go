package lexer

import (
	"strings"
	"testing"
)

// scan tokenizes src the way the parser drives the lexer: the position
// after an operator or an opening delimiter starts a new expression.
func scan(src string) []Token {
	lx := New(strings.NewReader(src), "test.tin")
	var out []Token
	exprStart := true
	for {
		tok := lx.Next(exprStart)
		out = append(out, tok)
		if tok.Kind == EOF || tok.Kind == Error {
			return out
		}
		switch tok.Kind {
		case BinOp, AssignOp, Unary, ParenOpen, Comma, Semicolon, SquareOpen, BraceOpen:
			exprStart = true
		default:
			exprStart = false
		}
	}
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func assertKinds(t *testing.T, src string, want ...Kind) {
	t.Helper()
	got := kinds(scan(src))
	want = append(want, EOF)
	if len(got) != len(want) {
		t.Fatalf("%q: got %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%q: token %d = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestIdentifiersAndKeywords(t *testing.T) {
	assertKinds(t, "if x foo_1 while return", Keyword, Ident, Ident, Keyword, Keyword)
}

func TestBoolLiterals(t *testing.T) {
	assertKinds(t, "true false trueish", Bool, Bool, Ident)
}

func TestNumericLiterals(t *testing.T) {
	toks := scan("42 3.5 10f")
	if toks[0].Kind != Integer || toks[0].Text != "42" {
		t.Fatalf("integer literal: %+v", toks[0])
	}
	if toks[1].Kind != Float || toks[1].Text != "3.5" {
		t.Fatalf("float literal: %+v", toks[1])
	}
	// a trailing f is consumed and marks the literal as float
	if toks[2].Kind != Float || toks[2].Text != "10" {
		t.Fatalf("trailing-f literal: %+v", toks[2])
	}
}

func TestStringDelimiters(t *testing.T) {
	for _, src := range []string{`"hi"`, `'hi'`, "`hi`"} {
		toks := scan(src)
		if toks[0].Kind != String || toks[0].Text != "hi" {
			t.Fatalf("%q: %+v", src, toks[0])
		}
	}
	// no escape semantics: a backslash is an ordinary character
	toks := scan(`"a\n"`)
	if toks[0].Text != `a\n` {
		t.Fatalf("escape was interpreted: %q", toks[0].Text)
	}
}

func TestUnterminatedString(t *testing.T) {
	toks := scan(`"never closed`)
	if toks[0].Kind != Error {
		t.Fatalf("expected an error token, got %+v", toks[0])
	}
}

func TestTwoCharOperatorsBeforeOneChar(t *testing.T) {
	assertKinds(t, "a <= b", Ident, BinOp, Ident)
	assertKinds(t, "a << b", Ident, BinOp, Ident)
	assertKinds(t, "a <<= b", Ident, AssignOp, Ident)
	assertKinds(t, "a == b", Ident, BinOp, Ident)
	assertKinds(t, "a = b", Ident, AssignOp, Ident)
	assertKinds(t, "a != b", Ident, BinOp, Ident)
	assertKinds(t, "a && b || c", Ident, BinOp, Ident, BinOp, Ident)
}

// "+"/"-" are unary at expression starts and binary elsewhere.
func TestUnaryBinaryAmbiguity(t *testing.T) {
	toks := scan("a - -b")
	want := []Kind{Ident, BinOp, Unary, Ident, EOF}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d = %v, want %v (all: %v)", i, toks[i].Kind, k, kinds(toks))
		}
	}
	assertKinds(t, "!a ~b", Unary, Ident, Unary, Ident)
}

func TestNamespaceSeparator(t *testing.T) {
	assertKinds(t, "Base::Update", Ident, Namespace, Ident)
}

func TestPunctuation(t *testing.T) {
	assertKinds(t, "(a, b); {x[1].y}",
		ParenOpen, Ident, Comma, Ident, ParenClose, Semicolon,
		BraceOpen, Ident, SquareOpen, Integer, SquareClose, Period, Ident, BraceClose)
}

func TestCommentsSkipped(t *testing.T) {
	assertKinds(t, "a // to end of line\nb /* block */ c", Ident, Ident, Ident)
}

func TestRegisteredTypePredicate(t *testing.T) {
	lx := New(strings.NewReader("CBase x"), "test.tin")
	lx.SetTypeChecker(func(name string) bool { return name == "CBase" })
	if tok := lx.Next(true); tok.Kind != RegisteredType {
		t.Fatalf("CBase classified as %v", tok.Kind)
	}
	if tok := lx.Next(false); tok.Kind != Ident {
		t.Fatalf("x classified as %v", tok.Kind)
	}
}

func TestLexErrorReportsLine(t *testing.T) {
	lx := New(strings.NewReader("a;\n@"), "test.tin")
	for {
		tok := lx.Next(true)
		if tok.Kind == Error {
			if tok.Line != 2 {
				t.Fatalf("error line = %d, want 2", tok.Line)
			}
			if len(lx.Errs()) == 0 {
				t.Fatal("error not recorded in Errs")
			}
			return
		}
		if tok.Kind == EOF {
			t.Fatal("'@' was not reported as a lexical error")
		}
	}
}

func TestLineNumbers(t *testing.T) {
	toks := scan("a\nb\n\nc")
	if toks[0].Line != 1 || toks[1].Line != 2 || toks[2].Line != 4 {
		t.Fatalf("lines = %d,%d,%d; want 1,2,4", toks[0].Line, toks[1].Line, toks[2].Line)
	}
}
