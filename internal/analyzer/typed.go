package analyzer

import (
	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/token"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// Expr is a typed AST node: the parsed form annotated with its resolved
// type and source span.
type Expr struct {
	Type  *types.Type
	Span  token.Span
	Inner Inner
}

// Inner is the shape of a typed node.
type Inner interface {
	typedNode()
}

// Constant is a literal folded to a runtime value during analysis.
type Constant struct {
	Value value.Value
}

// IdentExpr is a resolved variable reference.
type IdentExpr struct {
	Name string
}

// BinaryExpr is arithmetic or boolean.
type BinaryExpr struct {
	Op    ast.BinaryOp
	Left  *Expr
	Right *Expr
}

// UnaryExpr is negation or logical not.
type UnaryExpr struct {
	Op      ast.UnaryOp
	Operand *Expr
}

// ComparisonExpr is a comparison or membership test.
type ComparisonExpr struct {
	Op    ast.CmpOp
	Left  *Expr
	Right *Expr
}

// IfExpr is a conditional.
type IfExpr struct {
	Cond *Expr
	Then *Expr
	Else *Expr
}

// LambdaExpr is an anonymous function.
type LambdaExpr struct {
	Params []string
	Body   *Expr
}

// CallExpr applies a callable.
type CallExpr struct {
	Callable *Expr
	Args     []*Expr
}

// IndexExpr is container indexing.
type IndexExpr struct {
	Value *Expr
	Index *Expr
}

// FieldExpr is record field projection by name; the compiler looks up the
// canonical field position in the record type.
type FieldExpr struct {
	Value *Expr
	Name  string
}

// CastExpr converts to the node's type.
type CastExpr struct {
	Expr *Expr
}

// TypedBinding is a named sub-expression (where binding or record field).
type TypedBinding struct {
	Name  string
	Value *Expr
}

// TypedEntry is a map literal entry.
type TypedEntry struct {
	Key   *Expr
	Value *Expr
}

// RecordExpr is a record literal with fields in canonical type order.
type RecordExpr struct {
	Fields []TypedBinding
}

// MapExpr is a map literal in source order.
type MapExpr struct {
	Entries []TypedEntry
}

// ArrayExpr is an array literal.
type ArrayExpr struct {
	Elems []*Expr
}

// FormatStrExpr interleaves len(Exprs)+1 texts with len(Exprs) expressions.
type FormatStrExpr struct {
	Texts []string
	Exprs []*Expr
}

// WhereExpr is a scope-introducing binding group.
type WhereExpr struct {
	Expr     *Expr
	Bindings []TypedBinding
}

// OtherwiseExpr is the error-handling fallback form.
type OtherwiseExpr struct {
	Primary  *Expr
	Fallback *Expr
}

func (*Constant) typedNode()       {}
func (*IdentExpr) typedNode()      {}
func (*BinaryExpr) typedNode()     {}
func (*UnaryExpr) typedNode()      {}
func (*ComparisonExpr) typedNode() {}
func (*IfExpr) typedNode()         {}
func (*LambdaExpr) typedNode()     {}
func (*CallExpr) typedNode()       {}
func (*IndexExpr) typedNode()      {}
func (*FieldExpr) typedNode()      {}
func (*CastExpr) typedNode()       {}
func (*RecordExpr) typedNode()     {}
func (*MapExpr) typedNode()        {}
func (*ArrayExpr) typedNode()      {}
func (*FormatStrExpr) typedNode()  {}
func (*WhereExpr) typedNode()      {}
func (*OtherwiseExpr) typedNode()  {}
