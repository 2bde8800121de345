// Package ast defines the parsed abstract syntax tree of Melbi expressions.
//
// Every node is identified by its pointer; source spans live in a side table
// on Parsed rather than on the nodes themselves.
package ast

import "github.com/melbi-lang/melbi/internal/token"

// Expr is implemented by all expression nodes.
type Expr interface {
	exprNode()
}

// BinaryOp is an arithmetic or boolean binary operator.
type BinaryOp uint8

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Pow
	And
	Or
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Pow:
		return "^"
	case And:
		return "and"
	case Or:
		return "or"
	}
	return "?"
}

// IsBool reports whether the operator is `and` or `or`.
func (op BinaryOp) IsBool() bool { return op == And || op == Or }

// UnaryOp is a prefix operator.
type UnaryOp uint8

const (
	Neg UnaryOp = iota
	Not
)

func (op UnaryOp) String() string {
	if op == Neg {
		return "-"
	}
	return "not"
}

// CmpOp is a comparison or membership operator.
type CmpOp uint8

const (
	Lt CmpOp = iota
	Gt
	Eq
	Neq
	Le
	Ge
	In
	NotIn
)

func (op CmpOp) String() string {
	switch op {
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Eq:
		return "=="
	case Neq:
		return "!="
	case Le:
		return "<="
	case Ge:
		return ">="
	case In:
		return "in"
	case NotIn:
		return "not in"
	}
	return "?"
}

// IsOrdered reports whether the operator requires an Ord instance.
func (op CmpOp) IsOrdered() bool {
	return op == Lt || op == Gt || op == Le || op == Ge
}

// Binding is a `name = value` pair in a where clause or record literal.
type Binding struct {
	Name  string
	Value Expr
}

// Entry is a `key: value` pair in a map literal.
type Entry struct {
	Key   Expr
	Value Expr
}

// Parsed is the result of parsing: the root expression, the source it came
// from, and the span table keyed by node identity.
type Parsed struct {
	Source string
	Expr   Expr
	Spans  map[Expr]token.Span
}

// SpanOf returns the span recorded for a node, or the zero span.
func (p *Parsed) SpanOf(e Expr) token.Span {
	return p.Spans[e]
}
