package parser

import (
	"testing"

	"github.com/picojs/picojs/lit"
)

// lex tokenizes source completely and returns the token types.
func lex(t *testing.T, source string) []tokenType {
	t.Helper()
	ctx := newContext(lit.NewStore(), []byte(source), DefaultLimits())

	var types []tokenType
	for {
		ctx.nextToken()
		types = append(types, ctx.token.typ)
		if ctx.token.typ == tokEOS {
			return types
		}
	}
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		source string
		want   []tokenType
	}{
		{"var x = 1;", []tokenType{tokKeywVar, tokLiteral, tokAssign, tokLiteral, tokSemicolon, tokEOS}},
		{"a === b", []tokenType{tokLiteral, tokStrictEqual, tokLiteral, tokEOS}},
		{"a !== b", []tokenType{tokLiteral, tokStrictNotEqual, tokLiteral, tokEOS}},
		{"x >>>= 1", []tokenType{tokLiteral, tokAssignUnsRightShift, tokLiteral, tokEOS}},
		{"x >>> 1", []tokenType{tokLiteral, tokUnsRightShift, tokLiteral, tokEOS}},
		{"x >> 1", []tokenType{tokLiteral, tokRightShift, tokLiteral, tokEOS}},
		{"a++ + ++b", []tokenType{tokLiteral, tokIncrease, tokAdd, tokIncrease, tokLiteral, tokEOS}},
		{"a&&b||c", []tokenType{tokLiteral, tokLogicalAnd, tokLiteral, tokLogicalOr, tokLiteral, tokEOS}},
		{"obj.prop[0]", []tokenType{tokLiteral, tokDot, tokLiteral, tokLeftSquare, tokLiteral, tokRightSquare, tokEOS}},
		{"typeof new f()", []tokenType{tokKeywTypeof, tokKeywNew, tokLiteral, tokLeftParen, tokRightParen, tokEOS}},
		{"'str' \"other\"", []tokenType{tokLiteral, tokLiteral, tokEOS}},
		{"// comment\nx", []tokenType{tokLiteral, tokEOS}},
		{"/* block\ncomment */ x", []tokenType{tokLiteral, tokEOS}},
		{"try{}catch(e){}finally{}", []tokenType{
			tokKeywTry, tokLeftBrace, tokRightBrace, tokKeywCatch, tokLeftParen,
			tokLiteral, tokRightParen, tokLeftBrace, tokRightBrace, tokKeywFinally,
			tokLeftBrace, tokRightBrace, tokEOS}},
	}
	for _, tt := range tests {
		got := lex(t, tt.source)
		if len(got) != len(tt.want) {
			t.Errorf("%q: token count %d, want %d (%v)", tt.source, len(got), len(tt.want), got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%q: token %d = %d, want %d", tt.source, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLexerPositions(t *testing.T) {
	ctx := newContext(lit.NewStore(), []byte("ab\n  cd"), DefaultLimits())

	ctx.nextToken()
	if ctx.token.line != 1 || ctx.token.column != 1 {
		t.Errorf("first token at %d:%d, want 1:1", ctx.token.line, ctx.token.column)
	}
	if ctx.token.wasNewline {
		t.Error("first token should not see a newline")
	}

	ctx.nextToken()
	if ctx.token.line != 2 || ctx.token.column != 3 {
		t.Errorf("second token at %d:%d, want 2:3", ctx.token.line, ctx.token.column)
	}
	if !ctx.token.wasNewline {
		t.Error("second token must record the crossed newline")
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1e3", 1000},
		{"2E-2", 0.02},
		{"0x1f", 31},
		{"0XFF", 255},
		{"017", 15}, // legacy octal
	}
	for _, tt := range tests {
		ctx := newContext(lit.NewStore(), []byte(tt.source), DefaultLimits())
		ctx.nextToken()
		if ctx.token.typ != tokLiteral || ctx.token.lit.kind != literalNumber {
			t.Errorf("%q: not a number token", tt.source)
			continue
		}
		ctx.constructNumberObject()
		if got := ctx.litObject.literal.number; got != tt.want {
			t.Errorf("%q: value %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`"plain"`, "plain"},
		{`"tab\there"`, "tab\there"},
		{`"new\nline"`, "new\nline"},
		{`"quote\""`, `quote"`},
		{`'single\''`, "single'"},
		{`"hex\x41"`, "hexA"},
		{`"uni\u0041"`, "uniA"},
		{`"pair\ud83d\ude00"`, "pair\U0001F600"},
		{`"oct\101"`, "octA"},
		{"\"cont\\\ninued\"", "continued"},
	}
	for _, tt := range tests {
		ctx := newContext(lit.NewStore(), []byte(tt.source), DefaultLimits())
		ctx.nextToken()
		if ctx.token.typ != tokLiteral || ctx.token.lit.kind != literalString {
			t.Errorf("%q: not a string token", tt.source)
			continue
		}
		got := string(ctx.literalBytes(ctx.token.lit))
		if got != tt.want {
			t.Errorf("%q: decoded %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestLexerEscapedIdentifierIsNotKeyword(t *testing.T) {
	// An identifier written with escapes never matches a keyword.
	ctx := newContext(lit.NewStore(), []byte(`\u0076ar`), DefaultLimits())
	ctx.nextToken()
	if ctx.token.typ != tokLiteral || ctx.token.lit.kind != literalIdent {
		t.Fatalf("escaped identifier lexed as %d", ctx.token.typ)
	}
	if got := string(ctx.literalBytes(ctx.token.lit)); got != "var" {
		t.Errorf("decoded identifier %q, want var", got)
	}
}

func TestScanUntilNesting(t *testing.T) {
	// The terminator inside nested brackets and conditionals is
	// ignored.
	source := "f(a, (b ? c : d)[e]) ; done"
	ctx := newContext(lit.NewStore(), []byte(source), DefaultLimits())

	r := ctx.scanUntil(tokSemicolon, tokSemicolon)
	if ctx.token.typ != tokSemicolon {
		t.Fatalf("scanUntil stopped at token %d", ctx.token.typ)
	}
	scanned := string(ctx.source[r.start:r.end])
	if scanned != "f(a, (b ? c : d)[e])" {
		t.Errorf("scanned range %q", scanned)
	}
}

func TestScanUntilUnexpectedEnd(t *testing.T) {
	ctx := newContext(lit.NewStore(), []byte("a + b"), DefaultLimits())
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a raised error")
		}
		if err, ok := r.(*Error); !ok || err.Kind != ErrUnexpectedEnd {
			t.Errorf("recovered %v, want %s", r, ErrUnexpectedEnd)
		}
	}()
	ctx.scanUntil(tokSemicolon, tokSemicolon)
}
