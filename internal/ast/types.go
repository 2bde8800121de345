package ast

// TypeExpr is a surface type expression as written in a cast.
type TypeExpr interface {
	typeExprNode()
}

// TypePath is a bare type name like `Int`.
type TypePath struct {
	Name string
}

// TypeParametrized is an applied type like `Array[Int]` or `Map[Str, Int]`.
type TypeParametrized struct {
	Path   string
	Params []TypeExpr
}

// TypeField is a field inside a record type expression.
type TypeField struct {
	Name string
	Type TypeExpr
}

// TypeRecord is `Record[name: Type, ...]`.
type TypeRecord struct {
	Fields []TypeField
}

func (*TypePath) typeExprNode()         {}
func (*TypeParametrized) typeExprNode() {}
func (*TypeRecord) typeExprNode()       {}
