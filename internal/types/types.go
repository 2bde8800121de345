// Package types implements Melbi's structural type system: hash-consed type
// terms, the interner (Manager), unification, type-class constraint
// resolution, and the persistence encoding.
//
// Two type terms are equal iff they are the same pointer. All constructors go
// through a Manager, which guarantees that canonicalization.
package types

import (
	"fmt"
	"strings"
)

// Kind discriminates the closed set of type term shapes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStr
	KindBytes
	KindArray
	KindMap
	KindRecord
	KindFunction
	KindSymbol
	KindTypeVar
)

// Field is a named record field in canonical (name-sorted) position.
type Field struct {
	Name string
	Type *Type
}

// Type is an immutable, interned type term. Never construct one directly;
// use the Manager so that pointer equality is semantic equality.
type Type struct {
	kind   Kind
	elem   *Type   // Array element; Map key
	value  *Type   // Map value; Function return
	fields []Field // Record fields, sorted by name
	params []*Type // Function parameters
	parts  []string // Symbol parts, sorted and deduplicated
	id     uint16  // TypeVar id
}

func (t *Type) Kind() Kind { return t.kind }

// Elem returns the element type of an Array.
func (t *Type) Elem() *Type { return t.elem }

// Key returns the key type of a Map.
func (t *Type) Key() *Type { return t.elem }

// Value returns the value type of a Map.
func (t *Type) Value() *Type { return t.value }

// Fields returns the canonical field sequence of a Record.
func (t *Type) Fields() []Field { return t.fields }

// Params returns the parameter types of a Function.
func (t *Type) Params() []*Type { return t.params }

// Ret returns the return type of a Function.
func (t *Type) Ret() *Type { return t.value }

// Parts returns the sorted parts of a Symbol.
func (t *Type) Parts() []string { return t.parts }

// VarID returns the id of a TypeVar.
func (t *Type) VarID() uint16 { return t.id }

// FieldIndex returns the canonical position of a record field, or -1.
func (t *Type) FieldIndex(name string) int {
	lo, hi := 0, len(t.fields)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.fields[mid].Name < name {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(t.fields) && t.fields[lo].Name == name {
		return lo
	}
	return -1
}

// IsScalar reports whether t is one of the five scalar types.
func (t *Type) IsScalar() bool {
	return t.kind >= KindInt && t.kind <= KindBytes
}

// IsNumeric reports whether t is Int or Float.
func (t *Type) IsNumeric() bool {
	return t.kind == KindInt || t.kind == KindFloat
}

// IsOrdered reports whether values of t have a total order.
func (t *Type) IsOrdered() bool {
	switch t.kind {
	case KindInt, KindFloat, KindStr, KindBytes, KindBool:
		return true
	}
	return false
}

// IsHashable reports whether values of t can be used as map keys.
// Type variables are treated as hashable; the constraint resolver re-checks
// them once they resolve.
func (t *Type) IsHashable() bool {
	switch t.kind {
	case KindInt, KindFloat, KindBool, KindStr, KindBytes, KindSymbol, KindTypeVar:
		return true
	case KindArray:
		return t.elem.IsHashable()
	case KindMap:
		return t.elem.IsHashable() && t.value.IsHashable()
	case KindRecord:
		for _, f := range t.fields {
			if !f.Type.IsHashable() {
				return false
			}
		}
		return true
	}
	return false
}

// HasTypeVar reports whether any TypeVar occurs in t.
func (t *Type) HasTypeVar() bool {
	switch t.kind {
	case KindTypeVar:
		return true
	case KindArray:
		return t.elem.HasTypeVar()
	case KindMap:
		return t.elem.HasTypeVar() || t.value.HasTypeVar()
	case KindRecord:
		for _, f := range t.fields {
			if f.Type.HasTypeVar() {
				return true
			}
		}
	case KindFunction:
		for _, p := range t.params {
			if p.HasTypeVar() {
				return true
			}
		}
		return t.value.HasTypeVar()
	}
	return false
}

// String renders the type in surface syntax:
//
//	Int, Array[Int], Map[Str, Int], Record[age: Int, name: Str],
//	(Int, Str) => Bool, Symbol[a|b|c]
func (t *Type) String() string {
	switch t.kind {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindStr:
		return "Str"
	case KindBytes:
		return "Bytes"
	case KindArray:
		return "Array[" + t.elem.String() + "]"
	case KindMap:
		return "Map[" + t.elem.String() + ", " + t.value.String() + "]"
	case KindRecord:
		var sb strings.Builder
		sb.WriteString("Record[")
		for i, f := range t.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(f.Type.String())
		}
		sb.WriteString("]")
		return sb.String()
	case KindFunction:
		var sb strings.Builder
		sb.WriteString("(")
		for i, p := range t.params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString(") => ")
		sb.WriteString(t.value.String())
		return sb.String()
	case KindSymbol:
		return "Symbol[" + strings.Join(t.parts, "|") + "]"
	case KindTypeVar:
		return fmt.Sprintf("t%d", t.id)
	}
	return "<invalid>"
}
