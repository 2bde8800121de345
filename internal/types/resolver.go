package types

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/token"
)

// TypeClass identifies one of the built-in type classes tracked during
// inference.
type TypeClass uint8

const (
	Indexable TypeClass = iota
	Numeric
	Hashable
	Ord
)

func (c TypeClass) Name() string {
	switch c {
	case Indexable:
		return "Indexable"
	case Numeric:
		return "Numeric"
	case Hashable:
		return "Hashable"
	case Ord:
		return "Ord"
	}
	return "Unknown"
}

// Description explains what the class requires, for error messages.
func (c TypeClass) Description() string {
	switch c {
	case Indexable:
		return "a container that supports indexing (Array, Map, or Bytes)"
	case Numeric:
		return "a numeric type"
	case Hashable:
		return "a type usable as a map key"
	case Ord:
		return "a totally ordered type"
	}
	return ""
}

// Instances lists the types the class is implemented for.
func (c TypeClass) Instances() string {
	switch c {
	case Indexable:
		return "Array[E], Map[K, V], Bytes"
	case Numeric:
		return "Int, Float"
	case Hashable:
		return "scalars, symbols, and containers of hashable types"
	case Ord:
		return "Int, Float, Str, Bytes, Bool"
	}
	return ""
}

// ConstraintError reports a type that fails a type-class constraint.
type ConstraintError struct {
	Type  *Type
	Class TypeClass
	At    token.Span
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("type '%s' does not implement %s (%s is implemented for: %s)",
		e.Type, e.Class.Name(), e.Class.Name(), e.Class.Instances())
}

// Constraint is a deferred type-class predicate recorded during inference.
type Constraint interface {
	At() token.Span
	mentions(u *Unification, id uint16) bool
}

// IndexableConstraint enforces container[index] : result.
type IndexableConstraint struct {
	Container, Index, Result *Type
	Span                     token.Span
}

func (c *IndexableConstraint) At() token.Span { return c.Span }

// NumericConstraint enforces that left, right, and result unify to the same
// numeric scalar.
type NumericConstraint struct {
	Left, Right, Result *Type
	Span                token.Span
}

func (c *NumericConstraint) At() token.Span { return c.Span }

// HashableConstraint enforces that a type is hashable.
type HashableConstraint struct {
	Type *Type
	Span token.Span
}

func (c *HashableConstraint) At() token.Span { return c.Span }

// OrdConstraint enforces that a type is totally ordered.
type OrdConstraint struct {
	Type *Type
	Span token.Span
}

func (c *OrdConstraint) At() token.Span { return c.Span }

// Resolver accumulates type-class constraints during inference and resolves
// them all once the main pass is done.
type Resolver struct {
	constraints []Constraint
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// AddIndexable records container[index] => result.
func (r *Resolver) AddIndexable(container, index, result *Type, at token.Span) {
	r.constraints = append(r.constraints, &IndexableConstraint{container, index, result, at})
}

// AddNumeric records left op right => result.
func (r *Resolver) AddNumeric(left, right, result *Type, at token.Span) {
	r.constraints = append(r.constraints, &NumericConstraint{left, right, result, at})
}

// AddHashable records that t must be hashable.
func (r *Resolver) AddHashable(t *Type, at token.Span) {
	r.constraints = append(r.constraints, &HashableConstraint{t, at})
}

// AddOrd records that t must be ordered.
func (r *Resolver) AddOrd(t *Type, at token.Span) {
	r.constraints = append(r.constraints, &OrdConstraint{t, at})
}

// Constraints returns the accumulated constraints.
func (r *Resolver) Constraints() []Constraint { return r.constraints }

// Clear drops all constraints.
func (r *Resolver) Clear() { r.constraints = nil }

// ResolveAll resolves every accumulated constraint against the unification
// context and returns all failures.
func (r *Resolver) ResolveAll(u *Unification) []*ConstraintError {
	var errs []*ConstraintError
	for _, c := range r.constraints {
		if err := resolveOne(c, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func resolveOne(c Constraint, u *Unification) *ConstraintError {
	switch c := c.(type) {
	case *IndexableConstraint:
		return resolveIndexable(c, u)
	case *NumericConstraint:
		return resolveNumeric(c, u)
	case *HashableConstraint:
		resolved := u.Resolve(c.Type)
		if resolved.Kind() == KindTypeVar {
			return nil // still polymorphic; checked at instantiation
		}
		if !u.ResolveDeep(resolved).IsHashable() {
			return &ConstraintError{Type: u.ResolveDeep(resolved), Class: Hashable, At: c.Span}
		}
		return nil
	case *OrdConstraint:
		resolved := u.Resolve(c.Type)
		if resolved.Kind() == KindTypeVar {
			return nil
		}
		if !resolved.IsOrdered() {
			return &ConstraintError{Type: resolved, Class: Ord, At: c.Span}
		}
		return nil
	}
	return nil
}

// resolveIndexable dispatches on the resolved container:
//
//	Array[E] -> index=Int, result=E
//	Map[K,V] -> index=K,   result=V
//	Bytes    -> index=Int, result=Int
func resolveIndexable(c *IndexableConstraint, u *Unification) *ConstraintError {
	container := u.Resolve(c.Container)
	fail := func() *ConstraintError {
		return &ConstraintError{Type: u.ResolveDeep(container), Class: Indexable, At: c.Span}
	}

	switch container.Kind() {
	case KindArray:
		if _, err := u.Unify(c.Index, u.mgr.Int()); err != nil {
			return fail()
		}
		if _, err := u.Unify(c.Result, container.Elem()); err != nil {
			return fail()
		}
	case KindMap:
		if _, err := u.Unify(c.Index, container.Key()); err != nil {
			return fail()
		}
		if _, err := u.Unify(c.Result, container.Value()); err != nil {
			return fail()
		}
	case KindBytes:
		if _, err := u.Unify(c.Index, u.mgr.Int()); err != nil {
			return fail()
		}
		if _, err := u.Unify(c.Result, u.mgr.Int()); err != nil {
			return fail()
		}
	case KindTypeVar:
		// Still unresolved; acceptable in polymorphic positions.
	default:
		return fail()
	}
	return nil
}

func resolveNumeric(c *NumericConstraint, u *Unification) *ConstraintError {
	fail := func(t *Type) *ConstraintError {
		return &ConstraintError{Type: u.ResolveDeep(t), Class: Numeric, At: c.Span}
	}
	operand, err := u.Unify(c.Left, c.Right)
	if err != nil {
		return fail(c.Left)
	}
	final, err := u.Unify(c.Result, operand)
	if err != nil {
		return fail(operand)
	}
	final = u.Resolve(final)
	if final.Kind() == KindTypeVar || final.IsNumeric() {
		return nil
	}
	return fail(final)
}

// CopyWithSubst copies every constraint that mentions a substituted variable,
// applying the substitution. Used after alpha conversion so that constraints
// on a polymorphic callable's variables carry over to the fresh instance.
func (r *Resolver) CopyWithSubst(subst map[uint16]*Type, u *Unification) {
	if len(subst) == 0 {
		return
	}
	mentioned := func(c Constraint) bool {
		for id := range subst {
			if c.mentions(u, id) {
				return true
			}
		}
		return false
	}
	var copied []Constraint
	for _, c := range r.constraints {
		if !mentioned(c) {
			continue
		}
		switch c := c.(type) {
		case *IndexableConstraint:
			copied = append(copied, &IndexableConstraint{
				Container: u.Substitute(c.Container, subst),
				Index:     u.Substitute(c.Index, subst),
				Result:    u.Substitute(c.Result, subst),
				Span:      c.Span,
			})
		case *NumericConstraint:
			copied = append(copied, &NumericConstraint{
				Left:   u.Substitute(c.Left, subst),
				Right:  u.Substitute(c.Right, subst),
				Result: u.Substitute(c.Result, subst),
				Span:   c.Span,
			})
		case *HashableConstraint:
			copied = append(copied, &HashableConstraint{Type: u.Substitute(c.Type, subst), Span: c.Span})
		case *OrdConstraint:
			copied = append(copied, &OrdConstraint{Type: u.Substitute(c.Type, subst), Span: c.Span})
		}
	}
	r.constraints = append(r.constraints, copied...)
}

func typeMentions(u *Unification, t *Type, id uint16) bool {
	switch t.kind {
	case KindTypeVar:
		return t.id == id
	case KindArray:
		return typeMentions(u, t.elem, id)
	case KindMap:
		return typeMentions(u, t.elem, id) || typeMentions(u, t.value, id)
	case KindRecord:
		for _, f := range t.fields {
			if typeMentions(u, f.Type, id) {
				return true
			}
		}
	case KindFunction:
		for _, p := range t.params {
			if typeMentions(u, p, id) {
				return true
			}
		}
		return typeMentions(u, t.value, id)
	}
	return false
}

func (c *IndexableConstraint) mentions(u *Unification, id uint16) bool {
	return typeMentions(u, c.Container, id) || typeMentions(u, c.Index, id) || typeMentions(u, c.Result, id)
}

func (c *NumericConstraint) mentions(u *Unification, id uint16) bool {
	return typeMentions(u, c.Left, id) || typeMentions(u, c.Right, id) || typeMentions(u, c.Result, id)
}

func (c *HashableConstraint) mentions(u *Unification, id uint16) bool {
	return typeMentions(u, c.Type, id)
}

func (c *OrdConstraint) mentions(u *Unification, id uint16) bool {
	return typeMentions(u, c.Type, id)
}
