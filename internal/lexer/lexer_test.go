package lexer

import (
	"testing"

	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/token"
)

func kinds(t *testing.T, input string) []token.Type {
	t.Helper()
	toks, err := Scan(input)
	if err != nil {
		t.Fatalf("Scan(%q): %v", input, err)
	}
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func assertKinds(t *testing.T, input string, want ...token.Type) {
	t.Helper()
	got := kinds(t, input)
	want = append(want, token.EOF)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q) = %v, want %v", input, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Scan(%q)[%d] = %s, want %s", input, i, got[i], want[i])
		}
	}
}

func TestOperatorsAndPunctuation(t *testing.T) {
	assertKinds(t, "+ - * / ^",
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.CARET)
	assertKinds(t, "< <= > >= == != = =>",
		token.LT, token.LE, token.GT, token.GE, token.EQ, token.NEQ,
		token.ASSIGN, token.ARROW)
	assertKinds(t, "( ) [ ] { } . , :",
		token.LPAREN, token.RPAREN, token.LBRACKET, token.RBRACKET,
		token.LBRACE, token.RBRACE, token.DOT, token.COMMA, token.COLON)
}

func TestKeywordsVersusIdentifiers(t *testing.T) {
	assertKinds(t, "if then else where otherwise and or not in as true false",
		token.IF, token.THEN, token.ELSE, token.WHERE, token.OTHERWISE,
		token.AND, token.OR, token.NOT, token.IN, token.AS, token.TRUE, token.FALSE)
	assertKinds(t, "iffy whereabouts intake _as", token.IDENT, token.IDENT, token.IDENT, token.IDENT)
}

func TestNumberScanning(t *testing.T) {
	assertKinds(t, "42 0xFF 0b10 0o7 1_000", token.INT, token.INT, token.INT, token.INT, token.INT)
	assertKinds(t, "3.14 1e9 2.5e-3", token.FLOAT, token.FLOAT, token.FLOAT)
	// A dot not followed by a digit is field access, not a float.
	assertKinds(t, "1.x", token.INT, token.DOT, token.IDENT)
}

func TestStringFamilies(t *testing.T) {
	assertKinds(t, `"s" 's'`, token.STRING, token.STRING)
	assertKinds(t, `b"s" b's'`, token.BYTES, token.BYTES)
	assertKinds(t, `f"a {x} b"`, token.FORMATSTR)
	// b and f without a following quote are ordinary identifiers.
	assertKinds(t, "b f", token.IDENT, token.IDENT)
}

func TestTokenPositionsAreByteOffsets(t *testing.T) {
	toks, err := Scan("ab + cd")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Start != 0 || toks[0].End != 2 {
		t.Errorf("first token span = %d..%d", toks[0].Start, toks[0].End)
	}
	if toks[2].Start != 5 || toks[2].End != 7 {
		t.Errorf("third token span = %d..%d", toks[2].Start, toks[2].End)
	}
}

func TestStringLiteralCapturesRawInner(t *testing.T) {
	toks, err := Scan(`"a\"b"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Literal != `a\"b` {
		t.Errorf("raw inner = %q", toks[0].Literal)
	}
}

func TestFormatStringBraceTracking(t *testing.T) {
	// Quotes and braces inside an embedded expression do not end the token.
	toks, err := Scan(`f"x {m["}"]} y"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Type != token.FORMATSTR {
		t.Fatalf("token = %s", toks[0].Type)
	}
	if toks[0].Literal != `x {m["}"]} y` {
		t.Errorf("inner = %q", toks[0].Literal)
	}
}

func TestBacktickSuffix(t *testing.T) {
	toks, err := Scan("42`kg`")
	if err != nil {
		t.Fatal(err)
	}
	if toks[1].Type != token.BACKTICK || toks[1].Literal != "kg" {
		t.Errorf("suffix token = %s %q", toks[1].Type, toks[1].Literal)
	}
}

func TestCommentSkipping(t *testing.T) {
	assertKinds(t, "1 // trailing\n+ 2", token.INT, token.PLUS, token.INT)
}

func TestLexErrors(t *testing.T) {
	cases := []struct {
		input string
		code  diagnostics.Code
	}{
		{"@", diagnostics.ErrP001UnexpectedToken},
		{`"open`, diagnostics.ErrP001UnexpectedToken},
		{`b"é"`, diagnostics.ErrP005InvalidBytesLiteral},
		{`f"}"`, diagnostics.ErrP006UnpairedBrace},
		{"`open", diagnostics.ErrP001UnexpectedToken},
	}
	for _, tc := range cases {
		_, err := Scan(tc.input)
		if err == nil {
			t.Errorf("Scan(%q) should fail", tc.input)
			continue
		}
		if err.Code != tc.code {
			t.Errorf("Scan(%q) code = %s, want %s", tc.input, err.Code, tc.code)
		}
	}
}
