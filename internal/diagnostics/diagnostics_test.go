package diagnostics

import (
	"strings"
	"testing"

	"github.com/melbi-lang/melbi/internal/token"
)

func TestDiagnosticError(t *testing.T) {
	d := New(ErrE001TypeMismatch, "1 + true", token.Span{Start: 4, End: 8}, "type mismatch")
	msg := d.Error()
	if !strings.Contains(msg, "E001") || !strings.Contains(msg, "type mismatch") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestRenderCaretExcerpt(t *testing.T) {
	source := "x + nope"
	d := New(ErrE002UnboundVariable, source, token.Span{Start: 4, End: 8},
		"undefined variable 'nope'").WithHelp("define it in a where clause")

	var sb strings.Builder
	Render(&sb, d, false)
	out := sb.String()

	if !strings.Contains(out, "x + nope") {
		t.Errorf("excerpt missing source line:\n%s", out)
	}
	if !strings.Contains(out, "^^^^") {
		t.Errorf("excerpt missing caret run:\n%s", out)
	}
	if !strings.Contains(out, "help: define it in a where clause") {
		t.Errorf("help line missing:\n%s", out)
	}
	if !strings.Contains(out, "error[E002]") {
		t.Errorf("severity/code header missing:\n%s", out)
	}
}

func TestRenderMultilineSource(t *testing.T) {
	source := "a where {\n  b = nope\n}"
	start := strings.Index(source, "nope")
	d := New(ErrE002UnboundVariable, source, token.Span{Start: start, End: start + 4}, "undefined")

	var sb strings.Builder
	Render(&sb, d, false)
	out := sb.String()
	if !strings.Contains(out, "2 |") {
		t.Errorf("line number missing:\n%s", out)
	}
	if !strings.Contains(out, "b = nope") {
		t.Errorf("wrong excerpt line:\n%s", out)
	}
}

func TestRelatedLocations(t *testing.T) {
	d := New(ErrE001TypeMismatch, "a b", token.Span{Start: 0, End: 1}, "conflict").
		WithRelated(token.Span{Start: 2, End: 3}, "other type introduced here")
	var sb strings.Builder
	Render(&sb, d, false)
	if !strings.Contains(sb.String(), "other type introduced here") {
		t.Error("related note missing")
	}
}
