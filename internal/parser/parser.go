// Package parser implements the Melbi expression parser.
//
// The parser is a precedence-climbing parser over the token stream. It
// produces an ast.Parsed whose span table maps every node to the byte range
// of the source text it came from. A nesting-depth counter bounds recursion
// on adversarial inputs.
package parser

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/config"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/lexer"
	"github.com/melbi-lang/melbi/internal/token"
)

// Error is a parse error: a span, an error code, and a human message.
type Error struct {
	Code diagnostics.Code
	Span token.Span
	Msg  string
	Help string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Operator precedence, lowest to highest. Prefix operators bind their
// operand at their own level; left-associative infix operators parse the
// right side one level tighter, right-associative ones at the same level.
const (
	precLowest = iota
	precLambda
	precWhere
	precOtherwise
	precIf
	precOr
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precNeg
	precPower
	precPostfix
)

// Parser consumes a token slice produced by the lexer.
type Parser struct {
	source   string
	tokens   []token.Token
	pos      int
	spans    map[ast.Expr]token.Span
	depth    int
	maxDepth int
	offset   int // added to all spans (for sub-parses of f-string fragments)
}

// Parse parses source with the default maximum nesting depth.
func Parse(source string) (*ast.Parsed, *Error) {
	return ParseWithMaxDepth(source, config.DefaultMaxParseDepth)
}

// ParseWithMaxDepth parses source with a custom nesting-depth limit.
func ParseWithMaxDepth(source string, maxDepth int) (*ast.Parsed, *Error) {
	toks, lexErr := lexer.Scan(source)
	if lexErr != nil {
		return nil, &Error{Code: lexErr.Code, Span: lexErr.Span, Msg: lexErr.Msg}
	}
	p := &Parser{
		source:   source,
		tokens:   toks,
		spans:    make(map[ast.Expr]token.Span),
		maxDepth: maxDepth,
	}
	expr, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if p.cur().Type != token.EOF {
		return nil, p.errorAt(p.cur(), diagnostics.ErrP001UnexpectedToken,
			fmt.Sprintf("unexpected token '%s' after expression", p.cur().Type))
	}
	return &ast.Parsed{Source: source, Expr: expr, Spans: p.spans}, nil
}

func (p *Parser) cur() token.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token.Token{Type: token.EOF, Start: len(p.source), End: len(p.source)}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return token.Token{Type: token.EOF, Start: len(p.source), End: len(p.source)}
}

func (p *Parser) next() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(t token.Type) (token.Token, *Error) {
	if p.cur().Type != t {
		return token.Token{}, p.errorAt(p.cur(), diagnostics.ErrP001UnexpectedToken,
			fmt.Sprintf("expected '%s', found '%s'", t, p.cur().Type))
	}
	return p.next(), nil
}

func (p *Parser) errorAt(t token.Token, code diagnostics.Code, msg string) *Error {
	return &Error{
		Code: code,
		Span: token.Span{Start: t.Start + p.offset, End: t.End + p.offset},
		Msg:  msg,
	}
}

// record registers the span of a freshly built node and returns the node.
// Spans handed in are already absolute (offset applied at token level).
func (p *Parser) record(e ast.Expr, span token.Span) ast.Expr {
	p.spans[e] = span
	return e
}

// tokSpan converts a token's range into an absolute source span.
func (p *Parser) tokSpan(t token.Token) token.Span {
	return token.Span{Start: t.Start + p.offset, End: t.End + p.offset}
}

func (p *Parser) spanOf(e ast.Expr) token.Span {
	return p.spans[e]
}

// combine combines two already-offset spans.
func combine(a, b token.Span) token.Span { return a.Combine(b) }

func (p *Parser) parseExpr(minPrec int) (ast.Expr, *Error) {
	if p.depth >= p.maxDepth {
		return nil, p.errorAt(p.cur(), diagnostics.ErrP007DepthExceeded,
			fmt.Sprintf("expression nesting depth exceeds maximum of %d levels", p.maxDepth))
	}
	p.depth++
	defer func() { p.depth-- }()

	left, err := p.parsePrefix(minPrec)
	if err != nil {
		return nil, err
	}

	for {
		t := p.cur()
		switch t.Type {
		case token.LPAREN, token.LBRACKET, token.DOT, token.AS:
			if precPostfix < minPrec {
				return left, nil
			}
			left, err = p.parsePostfix(left)

		case token.CARET:
			if precPower < minPrec {
				return left, nil
			}
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(precPower) // right-assoc
			if err == nil {
				left = p.binary(ast.Pow, left, right)
			}

		case token.STAR, token.SLASH:
			if precMultiplicative < minPrec {
				return left, nil
			}
			op := ast.Mul
			if t.Type == token.SLASH {
				op = ast.Div
			}
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(precMultiplicative + 1)
			if err == nil {
				left = p.binary(op, left, right)
			}

		case token.PLUS, token.MINUS:
			if precAdditive < minPrec {
				return left, nil
			}
			op := ast.Add
			if t.Type == token.MINUS {
				op = ast.Sub
			}
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(precAdditive + 1)
			if err == nil {
				left = p.binary(op, left, right)
			}

		case token.LT, token.GT, token.LE, token.GE, token.EQ, token.NEQ, token.IN:
			if precCompare < minPrec {
				return left, nil
			}
			left, err = p.parseComparison(left, cmpOpFor(t.Type))

		case token.NOT:
			// `not in` is the only infix use of `not`.
			if p.peek().Type != token.IN || precCompare < minPrec {
				return left, nil
			}
			p.next() // not
			left, err = p.parseComparison(left, ast.NotIn)

		case token.AND:
			if precAnd < minPrec {
				return left, nil
			}
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(precAnd + 1)
			if err == nil {
				left = p.binary(ast.And, left, right)
			}

		case token.OR:
			if precOr < minPrec {
				return left, nil
			}
			p.next()
			var right ast.Expr
			right, err = p.parseExpr(precOr + 1)
			if err == nil {
				left = p.binary(ast.Or, left, right)
			}

		case token.OTHERWISE:
			if precOtherwise < minPrec {
				return left, nil
			}
			p.next()
			var fallback ast.Expr
			fallback, err = p.parseExpr(precOtherwise) // right-assoc
			if err == nil {
				node := &ast.Otherwise{Primary: left, Fallback: fallback}
				left = p.record(node, combine(p.spanOf(left), p.spanOf(fallback)))
			}

		case token.WHERE:
			if precWhere < minPrec {
				return left, nil
			}
			left, err = p.parseWhere(left)

		default:
			return left, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func cmpOpFor(t token.Type) ast.CmpOp {
	switch t {
	case token.LT:
		return ast.Lt
	case token.GT:
		return ast.Gt
	case token.LE:
		return ast.Le
	case token.GE:
		return ast.Ge
	case token.EQ:
		return ast.Eq
	case token.NEQ:
		return ast.Neq
	case token.IN:
		return ast.In
	}
	return ast.NotIn
}

func (p *Parser) binary(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	node := &ast.Binary{Op: op, Left: left, Right: right}
	return p.record(node, combine(p.spanOf(left), p.spanOf(right)))
}

func (p *Parser) parseComparison(left ast.Expr, op ast.CmpOp) (ast.Expr, *Error) {
	p.next() // operator token (for `not in`, the `in`)
	right, err := p.parseExpr(precCompare + 1)
	if err != nil {
		return nil, err
	}
	node := &ast.Comparison{Op: op, Left: left, Right: right}
	return p.record(node, combine(p.spanOf(left), p.spanOf(right))), nil
}

func (p *Parser) parsePrefix(minPrec int) (ast.Expr, *Error) {
	t := p.cur()
	switch t.Type {
	case token.MINUS:
		p.next()
		operand, err := p.parseExpr(precNeg)
		if err != nil {
			return nil, err
		}
		node := &ast.Unary{Op: ast.Neg, Expr: operand}
		return p.record(node, combine(p.tokSpan(t), p.spanOf(operand))), nil

	case token.NOT:
		p.next()
		operand, err := p.parseExpr(precNot)
		if err != nil {
			return nil, err
		}
		node := &ast.Unary{Op: ast.Not, Expr: operand}
		return p.record(node, combine(p.tokSpan(t), p.spanOf(operand))), nil

	case token.IF:
		return p.parseIf()

	case token.LPAREN:
		if p.isLambdaStart() {
			return p.parseLambda()
		}
		p.next()
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	}

	return p.parsePrimary()
}

// isLambdaStart reports whether the current '(' opens a lambda parameter
// list, i.e. the matching ')' is immediately followed by '=>'.
func (p *Parser) isLambdaStart() bool {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				return i+1 < len(p.tokens) && p.tokens[i+1].Type == token.ARROW
			}
		case token.EOF:
			return false
		}
	}
	return false
}

func (p *Parser) parseLambda() (ast.Expr, *Error) {
	open := p.next() // (
	var params []string
	for p.cur().Type != token.RPAREN {
		id, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, id.Literal)
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ARROW); err != nil {
		return nil, err
	}
	body, err := p.parseExpr(precLambda)
	if err != nil {
		return nil, err
	}
	node := &ast.Lambda{Params: params, Body: body}
	return p.record(node, combine(p.tokSpan(open), p.spanOf(body))), nil
}

func (p *Parser) parseIf() (ast.Expr, *Error) {
	ifTok := p.next() // if
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return nil, err
	}
	then, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ELSE); err != nil {
		return nil, err
	}
	els, err := p.parseExpr(precIf)
	if err != nil {
		return nil, err
	}
	node := &ast.If{Cond: cond, Then: then, Else: els}
	return p.record(node, combine(p.tokSpan(ifTok), p.spanOf(els))), nil
}

func (p *Parser) parsePostfix(left ast.Expr) (ast.Expr, *Error) {
	switch p.cur().Type {
	case token.LPAREN:
		p.next()
		var args []ast.Expr
		for p.cur().Type != token.RPAREN {
			arg, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		close, err := p.expect(token.RPAREN)
		if err != nil {
			return nil, err
		}
		node := &ast.Call{Callable: left, Args: args}
		return p.record(node, combine(p.spanOf(left), p.tokSpan(close))), nil

	case token.LBRACKET:
		p.next()
		index, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		close, err := p.expect(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		node := &ast.Index{Value: left, Index: index}
		return p.record(node, combine(p.spanOf(left), p.tokSpan(close))), nil

	case token.DOT:
		p.next()
		field, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		node := &ast.Field{Value: left, Name: field.Literal}
		return p.record(node, combine(p.spanOf(left), p.tokSpan(field))), nil

	case token.AS:
		p.next()
		ty, end, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		node := &ast.Cast{Target: ty, Expr: left}
		return p.record(node, combine(p.spanOf(left), end)), nil
	}
	return left, nil
}

func (p *Parser) parseWhere(left ast.Expr) (ast.Expr, *Error) {
	p.next() // where
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var bindings []ast.Binding
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
		bindings = append(bindings, ast.Binding{Name: name.Literal, Value: value})
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
	node := &ast.Where{Expr: left, Bindings: bindings}
	return p.record(node, combine(p.spanOf(left), p.tokSpan(close))), nil
}
