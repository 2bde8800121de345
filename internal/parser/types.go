package parser

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/token"
)

// parseTypeExpr parses a surface type expression after `as`:
//
//	Path                      Int
//	Parametrized              Array[Int], Map[Str, Int]
//	Record                    Record[x: Int, y: Float]
//
// It returns the type expression and the span of its last token.
func (p *Parser) parseTypeExpr() (ast.TypeExpr, token.Span, *Error) {
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, token.Span{}, err
	}
	end := p.tokSpan(name)

	if p.cur().Type != token.LBRACKET {
		return &ast.TypePath{Name: name.Literal}, end, nil
	}
	p.next() // [

	if name.Literal == "Record" {
		var fields []ast.TypeField
		for p.cur().Type != token.RBRACKET {
			fieldName, err := p.expect(token.IDENT)
			if err != nil {
				return nil, token.Span{}, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, token.Span{}, err
			}
			fieldType, _, err := p.parseTypeExpr()
			if err != nil {
				return nil, token.Span{}, err
			}
			fields = append(fields, ast.TypeField{Name: fieldName.Literal, Type: fieldType})
			if p.cur().Type == token.COMMA {
				p.next()
				continue
			}
			break
		}
		close, err := p.expect(token.RBRACKET)
		if err != nil {
			return nil, token.Span{}, err
		}
		if len(fields) == 0 {
			return nil, token.Span{}, p.errorAt(close, diagnostics.ErrP001UnexpectedToken,
				"record type must have at least one field")
		}
		return &ast.TypeRecord{Fields: fields}, p.tokSpan(close), nil
	}

	var params []ast.TypeExpr
	for p.cur().Type != token.RBRACKET {
		param, _, err := p.parseTypeExpr()
		if err != nil {
			return nil, token.Span{}, err
		}
		params = append(params, param)
		if p.cur().Type == token.COMMA {
			p.next()
			continue
		}
		break
	}
	close, err := p.expect(token.RBRACKET)
	if err != nil {
		return nil, token.Span{}, err
	}
	if len(params) == 0 {
		return nil, token.Span{}, p.errorAt(close, diagnostics.ErrP001UnexpectedToken,
			fmt.Sprintf("type '%s[]' must have at least one parameter", name.Literal))
	}
	return &ast.TypeParametrized{Path: name.Literal, Params: params}, p.tokSpan(close), nil
}
