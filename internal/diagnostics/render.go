package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Render writes a human-readable presentation of the diagnostic: severity,
// code, message, a caret-annotated source excerpt, and the help string.
func Render(w io.Writer, d *Diagnostic, colorize bool) {
	head := color.New(color.Bold)
	var sev *color.Color
	switch d.Severity {
	case SeverityError:
		sev = color.New(color.FgRed, color.Bold)
	case SeverityWarning:
		sev = color.New(color.FgYellow, color.Bold)
	default:
		sev = color.New(color.FgCyan, color.Bold)
	}
	dim := color.New(color.Faint)
	if !colorize {
		for _, c := range []*color.Color{head, sev, dim} {
			c.DisableColor()
		}
	}

	fmt.Fprintf(w, "%s: %s\n", sev.Sprintf("%s[%s]", d.Severity, d.Code), head.Sprint(d.Message))
	renderExcerpt(w, d.Source, d.Span.Start, d.Span.End, dim)
	for _, rel := range d.Related {
		fmt.Fprintf(w, "%s %s\n", dim.Sprint("note:"), rel.Message)
		renderExcerpt(w, d.Source, rel.Span.Start, rel.Span.End, dim)
	}
	if d.Help != "" {
		fmt.Fprintf(w, "%s %s\n", dim.Sprint("help:"), d.Help)
	}
}

func renderExcerpt(w io.Writer, source string, start, end int, dim *color.Color) {
	if source == "" || start > len(source) {
		return
	}
	if end > len(source) {
		end = len(source)
	}
	if end < start {
		end = start
	}

	line, col := lineColumn(source, start)
	lineStart := strings.LastIndexByte(source[:start], '\n') + 1
	lineEnd := strings.IndexByte(source[lineStart:], '\n')
	if lineEnd < 0 {
		lineEnd = len(source)
	} else {
		lineEnd += lineStart
	}

	prefix := fmt.Sprintf("%4d | ", line)
	fmt.Fprintf(w, "%s%s\n", dim.Sprint(prefix), source[lineStart:lineEnd])

	caretLen := end - start
	if start+caretLen > lineEnd {
		caretLen = lineEnd - start
	}
	if caretLen < 1 {
		caretLen = 1
	}
	fmt.Fprintf(w, "%s%s%s\n",
		dim.Sprint(strings.Repeat(" ", len(prefix))),
		strings.Repeat(" ", col-1),
		strings.Repeat("^", caretLen))
}

func lineColumn(source string, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
