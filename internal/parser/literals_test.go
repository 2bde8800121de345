package parser

import (
	"bytes"
	"testing"

	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/diagnostics"
)

func parseInt(t *testing.T, source string) *ast.IntLit {
	t.Helper()
	p := mustParse(t, source)
	lit, ok := p.Expr.(*ast.IntLit)
	if !ok {
		t.Fatalf("%q parsed to %T, want IntLit", source, p.Expr)
	}
	return lit
}

func TestIntegerLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   int64
	}{
		{"0", 0},
		{"42", 42},
		{"1_000_000", 1000000},
		{"0xFF", 255},
		{"0xDEAD_BEEF", 0xDEADBEEF},
		{"0b1010", 10},
		{"0b1111_0000", 240},
		{"0o755", 0o755},
		{"9223372036854775807", 9223372036854775807},
	}
	for _, tc := range tests {
		if got := parseInt(t, tc.source).Value; got != tc.want {
			t.Errorf("%q = %d, want %d", tc.source, got, tc.want)
		}
	}
}

func TestIntegerOverflow(t *testing.T) {
	_, err := Parse("9223372036854775808")
	if err == nil || err.Code != diagnostics.ErrP002InvalidInteger {
		t.Fatalf("i64::MAX+1 should fail with P002, got %v", err)
	}
	// The minimum cannot be written as a literal: the minus is a separate
	// unary operator and the operand overflows first.
	if _, err := Parse("-9223372036854775808"); err == nil {
		t.Error("-(i64::MIN) literal should fail to parse")
	}
}

func TestFloatLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"3.14", 3.14},
		{"0.5", 0.5},
		{"1e9", 1e9},
		{"2.5e-3", 2.5e-3},
		{"1_000.5", 1000.5},
	}
	for _, tc := range tests {
		p := mustParse(t, tc.source)
		lit, ok := p.Expr.(*ast.FloatLit)
		if !ok {
			t.Fatalf("%q parsed to %T, want FloatLit", tc.source, p.Expr)
		}
		if lit.Value != tc.want {
			t.Errorf("%q = %g, want %g", tc.source, lit.Value, tc.want)
		}
	}
}

func TestNumericSuffix(t *testing.T) {
	lit := parseInt(t, "42`kg`")
	if lit.Value != 42 {
		t.Errorf("value = %d", lit.Value)
	}
	if id, ok := lit.Suffix.(*ast.Ident); !ok || id.Name != "kg" {
		t.Errorf("suffix = %#v", lit.Suffix)
	}

	// The suffix is an arbitrary expression.
	lit = parseInt(t, "10`m / s`")
	if _, ok := lit.Suffix.(*ast.Binary); !ok {
		t.Errorf("suffix = %#v", lit.Suffix)
	}
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`"a\nb\tc"`, "a\nb\tc"},
		{`"quote: \" and \\"`, `quote: " and \`},
		{`"\x41\x42"`, "AB"},
		{`"é"`, "é"},
		{`"\U0001F980"`, "🦀"},
		{`"nul\0end"`, "nul\x00end"},
		{"\"line \\\ncontinued\"", "line continued"},
		{`"日本語"`, "日本語"},
	}
	for _, tc := range tests {
		p := mustParse(t, tc.source)
		lit, ok := p.Expr.(*ast.StrLit)
		if !ok {
			t.Fatalf("%q parsed to %T", tc.source, p.Expr)
		}
		if lit.Value != tc.want {
			t.Errorf("%q = %q, want %q", tc.source, lit.Value, tc.want)
		}
	}
}

func TestInvalidStringEscape(t *testing.T) {
	_, err := Parse(`"bad \q escape"`)
	if err == nil || err.Code != diagnostics.ErrP004InvalidStringEscape {
		t.Fatalf("expected P004, got %v", err)
	}
}

func TestBytesLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{`b"abc"`, []byte("abc")},
		{`b'abc'`, []byte("abc")},
		{`b"\x00\xff\x7f"`, []byte{0x00, 0xFF, 0x7F}},
		{`b"tab\there"`, []byte("tab\there")},
	}
	for _, tc := range tests {
		p := mustParse(t, tc.source)
		lit, ok := p.Expr.(*ast.BytesLit)
		if !ok {
			t.Fatalf("%q parsed to %T", tc.source, p.Expr)
		}
		if !bytes.Equal(lit.Value, tc.want) {
			t.Errorf("%q = %v, want %v", tc.source, lit.Value, tc.want)
		}
	}
}

func TestBytesLiteralRejectsNonASCII(t *testing.T) {
	_, err := Parse(`b"héllo"`)
	if err == nil || err.Code != diagnostics.ErrP005InvalidBytesLiteral {
		t.Fatalf("expected P005, got %v", err)
	}
}

func TestFormatStrings(t *testing.T) {
	p := mustParse(t, `f"x = {x} and y = {y}!"`)
	fs, ok := p.Expr.(*ast.FormatStr)
	if !ok {
		t.Fatalf("parsed to %T", p.Expr)
	}
	if len(fs.Exprs) != 2 || len(fs.Texts) != 3 {
		t.Fatalf("texts=%d exprs=%d", len(fs.Texts), len(fs.Exprs))
	}
	if fs.Texts[0] != "x = " || fs.Texts[1] != " and y = " || fs.Texts[2] != "!" {
		t.Errorf("texts = %q", fs.Texts)
	}

	// Literal braces and nested strings inside embedded expressions.
	p = mustParse(t, `f"{{literal}} {m["}"]}"`)
	fs = p.Expr.(*ast.FormatStr)
	if fs.Texts[0] != "{literal} " {
		t.Errorf("texts[0] = %q", fs.Texts[0])
	}
	if len(fs.Exprs) != 1 {
		t.Fatalf("exprs = %d", len(fs.Exprs))
	}
	if _, ok := fs.Exprs[0].(*ast.Index); !ok {
		t.Errorf("embedded expr = %T", fs.Exprs[0])
	}
}

func TestFormatStringEmbeddedSpans(t *testing.T) {
	source := `f"value: {foo + 1}"`
	p := mustParse(t, source)
	fs := p.Expr.(*ast.FormatStr)
	bin := fs.Exprs[0].(*ast.Binary)
	left := p.SpanOf(bin.Left)
	if got := source[left.Start:left.End]; got != "foo" {
		t.Errorf("embedded span covers %q", got)
	}
}

func TestUnpairedBrace(t *testing.T) {
	_, err := Parse(`f"oops }"`)
	if err == nil || err.Code != diagnostics.ErrP006UnpairedBrace {
		t.Fatalf("expected P006, got %v", err)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{"plain", "with \"quotes\"", "tabs\tand\nnewlines", "back\\slash", "nul\x00"}
	for _, s := range inputs {
		escaped := escapeString(s)
		back, err := unescapeString(escaped, false)
		if err != nil {
			t.Fatalf("unescape(escape(%q)): %v", s, err)
		}
		if back != s {
			t.Errorf("round trip of %q produced %q", s, back)
		}
	}
}
