package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/lexer"
	"github.com/melbi-lang/melbi/internal/token"
)

func (p *Parser) parsePrimary() (ast.Expr, *Error) {
	t := p.cur()
	switch t.Type {
	case token.INT:
		return p.parseInteger()
	case token.FLOAT:
		return p.parseFloat()
	case token.TRUE, token.FALSE:
		p.next()
		return p.record(&ast.BoolLit{Value: t.Type == token.TRUE}, p.tokSpan(t)), nil
	case token.STRING:
		return p.parseString()
	case token.BYTES:
		return p.parseBytesLit()
	case token.FORMATSTR:
		return p.parseFormatString()
	case token.IDENT:
		p.next()
		return p.record(&ast.Ident{Name: t.Literal}, p.tokSpan(t)), nil
	case token.LBRACKET:
		return p.parseArray()
	case token.LBRACE:
		return p.parseBraced()
	case token.EOF, token.RPAREN, token.RBRACKET, token.RBRACE:
		return nil, p.errorAt(t, diagnostics.ErrP008MissingExpression, "expected an expression")
	}
	return nil, p.errorAt(t, diagnostics.ErrP001UnexpectedToken,
		fmt.Sprintf("unexpected token '%s'", t.Type))
}

func (p *Parser) parseInteger() (ast.Expr, *Error) {
	t := p.next()
	digits := strings.ReplaceAll(t.Literal, "_", "")
	var (
		value int64
		err   error
	)
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		value, err = strconv.ParseInt(digits[2:], 16, 64)
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		value, err = strconv.ParseInt(digits[2:], 2, 64)
	case strings.HasPrefix(digits, "0o") || strings.HasPrefix(digits, "0O"):
		value, err = strconv.ParseInt(digits[2:], 8, 64)
	default:
		value, err = strconv.ParseInt(digits, 10, 64)
	}
	if err != nil {
		return nil, p.errorAt(t, diagnostics.ErrP002InvalidInteger,
			fmt.Sprintf("invalid integer literal '%s'", t.Literal))
	}

	suffix, serr := p.parseSuffix()
	if serr != nil {
		return nil, serr
	}
	span := p.tokSpan(t)
	if suffix != nil {
		span = combine(span, p.spanOf(suffix))
	}
	return p.record(&ast.IntLit{Value: value, Suffix: suffix}, span), nil
}

func (p *Parser) parseFloat() (ast.Expr, *Error) {
	t := p.next()
	value, err := strconv.ParseFloat(strings.ReplaceAll(t.Literal, "_", ""), 64)
	if err != nil {
		return nil, p.errorAt(t, diagnostics.ErrP003InvalidFloat,
			fmt.Sprintf("invalid float literal '%s'", t.Literal))
	}
	suffix, serr := p.parseSuffix()
	if serr != nil {
		return nil, serr
	}
	span := p.tokSpan(t)
	if suffix != nil {
		span = combine(span, p.spanOf(suffix))
	}
	return p.record(&ast.FloatLit{Value: value, Suffix: suffix}, span), nil
}

// parseSuffix parses the optional backtick unit suffix after a numeric
// literal (`42`kg``). The suffix is an arbitrary expression.
func (p *Parser) parseSuffix() (ast.Expr, *Error) {
	if p.cur().Type != token.BACKTICK {
		return nil, nil
	}
	t := p.next()
	// The suffix text is re-parsed in place; its spans are shifted to point
	// back into the enclosing source.
	return p.subParse(t.Literal, t.Start+1)
}

func (p *Parser) parseString() (ast.Expr, *Error) {
	t := p.next()
	value, err := unescapeString(t.Literal, false)
	if err != nil {
		return nil, p.errorAt(t, diagnostics.ErrP004InvalidStringEscape,
			fmt.Sprintf("invalid string literal: %s", err))
	}
	return p.record(&ast.StrLit{Value: value}, p.tokSpan(t)), nil
}

func (p *Parser) parseBytesLit() (ast.Expr, *Error) {
	t := p.next()
	value, err := unescapeBytes(t.Literal)
	if err != nil {
		return nil, p.errorAt(t, diagnostics.ErrP005InvalidBytesLiteral,
			fmt.Sprintf("invalid bytes literal: %s", err))
	}
	return p.record(&ast.BytesLit{Value: value}, p.tokSpan(t)), nil
}

// parseFormatString splits the raw f-string into text fragments and
// embedded expressions. For N expressions there are always N+1 fragments.
func (p *Parser) parseFormatString() (ast.Expr, *Error) {
	t := p.next()
	raw := t.Literal
	base := t.Start + 2 // skip f and opening quote

	var texts []string
	var exprs []ast.Expr
	var frag strings.Builder

	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			frag.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			frag.WriteByte('}')
			i += 2
		case c == '{':
			end, ok := findBraceEnd(raw, i+1)
			if !ok {
				return nil, p.errorAt(t, diagnostics.ErrP006UnpairedBrace,
					"unpaired '{' in format string; use '{{' for a literal brace")
			}
			inner := raw[i+1 : end]
			text, err := unescapeString(frag.String(), true)
			if err != nil {
				return nil, p.errorAt(t, diagnostics.ErrP004InvalidStringEscape,
					fmt.Sprintf("invalid format string: %s", err))
			}
			texts = append(texts, text)
			frag.Reset()

			expr, perr := p.subParse(inner, base+i+1)
			if perr != nil {
				return nil, perr
			}
			exprs = append(exprs, expr)
			i = end + 1
		case c == '}':
			return nil, p.errorAt(t, diagnostics.ErrP006UnpairedBrace,
				"unpaired '}' in format string; use '}}' for a literal brace")
		case c == '\\':
			if i+1 < len(raw) {
				frag.WriteByte(c)
				frag.WriteByte(raw[i+1])
				i += 2
			} else {
				i++
			}
		default:
			frag.WriteByte(c)
			i++
		}
	}
	text, err := unescapeString(frag.String(), true)
	if err != nil {
		return nil, p.errorAt(t, diagnostics.ErrP004InvalidStringEscape,
			fmt.Sprintf("invalid format string: %s", err))
	}
	texts = append(texts, text)

	node := &ast.FormatStr{Texts: texts, Exprs: exprs}
	return p.record(node, p.tokSpan(t)), nil
}

// findBraceEnd locates the '}' matching the '{' that precedes raw[start],
// skipping nested braces and string literals.
func findBraceEnd(raw string, start int) (int, bool) {
	depth := 0
	i := start
	for i < len(raw) {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, true
			}
			depth--
		case '"', '\'':
			q := raw[i]
			i++
			for i < len(raw) {
				if raw[i] == '\\' {
					i++
				} else if raw[i] == q {
					break
				}
				i++
			}
		}
		i++
	}
	return 0, false
}

// subParse parses an embedded source fragment (format string expression or
// numeric unit suffix). The fragment's spans are shifted by offset so they
// index into the enclosing source, and its span table is merged into ours.
func (p *Parser) subParse(src string, offset int) (ast.Expr, *Error) {
	toks, lexErr := lexer.Scan(src)
	if lexErr != nil {
		return nil, &Error{
			Code: lexErr.Code,
			Span: token.Span{Start: lexErr.Span.Start + offset, End: lexErr.Span.End + offset},
			Msg:  lexErr.Msg,
		}
	}
	sub := &Parser{
		source:   p.source,
		tokens:   toks,
		spans:    p.spans,
		maxDepth: p.maxDepth - p.depth,
		offset:   p.offset + offset,
	}
	expr, err := sub.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if sub.cur().Type != token.EOF {
		return nil, sub.errorAt(sub.cur(), diagnostics.ErrP001UnexpectedToken,
			fmt.Sprintf("unexpected token '%s' after embedded expression", sub.cur().Type))
	}
	return expr, nil
}

func (p *Parser) parseArray() (ast.Expr, *Error) {
	open := p.next() // [
	var elems []ast.Expr
	for p.cur().Type != token.RBRACKET {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	close, err := p.expect(token.RBRACKET)
	if err != nil {
		return nil, err
	}
	node := &ast.ArrayLit{Elems: elems}
	return p.record(node, combine(p.tokSpan(open), p.tokSpan(close))), nil
}

// parseBraced parses `{...}` as either a record literal (`name = value`) or
// a map literal (`key: value`). An empty `{}` is an empty map.
func (p *Parser) parseBraced() (ast.Expr, *Error) {
	open := p.next() // {

	if p.cur().Type == token.RBRACE {
		close := p.next()
		return p.record(&ast.MapLit{}, combine(p.tokSpan(open), p.tokSpan(close))), nil
	}

	isRecord := p.cur().Type == token.IDENT && p.peek().Type == token.ASSIGN

	if isRecord {
		var fields []ast.Binding
		for p.cur().Type != token.RBRACE {
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.ASSIGN); err != nil {
				return nil, err
			}
			value, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.Binding{Name: name.Literal, Value: value})
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		close, err := p.expect(token.RBRACE)
		if err != nil {
			return nil, err
		}
		node := &ast.RecordLit{Fields: fields}
		return p.record(node, combine(p.tokSpan(open), p.tokSpan(close))), nil
	}

	var entries []ast.Entry
	for p.cur().Type != token.RBRACE {
		key, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		value, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.Entry{Key: key, Value: value})
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	close, err := p.expect(token.RBRACE)
	if err != nil {
		return nil, err
	}
	node := &ast.MapLit{Entries: entries}
	return p.record(node, combine(p.tokSpan(open), p.tokSpan(close))), nil
}
