package types

import "fmt"

// MismatchError reports two terms that cannot be made equal.
type MismatchError struct {
	Expected *Type
	Found    *Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, found %s", e.Expected, e.Found)
}

// OccursError reports a variable binding that would create an infinite type.
type OccursError struct {
	Var *Type
	In  *Type
}

func (e *OccursError) Error() string {
	return fmt.Sprintf("occurs check failed: %s occurs in %s", e.Var, e.In)
}

// FieldCountError reports records with different arities.
type FieldCountError struct {
	Expected int
	Found    int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("record field count mismatch: expected %d fields, found %d", e.Expected, e.Found)
}

// FieldNameError reports records whose canonical field names diverge.
type FieldNameError struct {
	Expected string
	Found    string
}

func (e *FieldNameError) Error() string {
	return fmt.Sprintf("record field name mismatch: expected '%s', found '%s'", e.Expected, e.Found)
}

// ParamCountError reports function types with different arities.
type ParamCountError struct {
	Expected int
	Found    int
}

func (e *ParamCountError) Error() string {
	return fmt.Sprintf("function parameter count mismatch: expected %d, found %d", e.Expected, e.Found)
}

// Unification solves equality constraints over interned terms. The
// substitution maps TypeVar ids to terms; bindings are only ever added,
// never changed.
type Unification struct {
	mgr   *Manager
	subst map[uint16]*Type
}

// NewUnification creates an empty unification context over mgr.
func NewUnification(mgr *Manager) *Unification {
	return &Unification{mgr: mgr, subst: make(map[uint16]*Type)}
}

// Manager returns the type manager this context builds terms with.
func (u *Unification) Manager() *Manager { return u.mgr }

// Resolve follows substitutions from t until it reaches a non-variable term
// or an unbound variable. Only the head is resolved.
func (u *Unification) Resolve(t *Type) *Type {
	for t.kind == KindTypeVar {
		bound, ok := u.subst[t.id]
		if !ok {
			return t
		}
		t = bound
	}
	return t
}

// ResolveDeep resolves t and all of its components.
func (u *Unification) ResolveDeep(t *Type) *Type {
	t = u.Resolve(t)
	switch t.kind {
	case KindArray:
		return u.mgr.Array(u.ResolveDeep(t.elem))
	case KindMap:
		m, err := u.mgr.Map(u.ResolveDeep(t.elem), u.ResolveDeep(t.value))
		if err != nil {
			// The key was hashable when the map was built; a substitution
			// cannot make it less so because Hashable constraints are checked
			// separately. Keep the original term if it somehow does.
			return t
		}
		return m
	case KindRecord:
		fields := make([]Field, len(t.fields))
		for i, f := range t.fields {
			fields[i] = Field{Name: f.Name, Type: u.ResolveDeep(f.Type)}
		}
		r, err := u.mgr.Record(fields)
		if err != nil {
			return t
		}
		return r
	case KindFunction:
		params := make([]*Type, len(t.params))
		for i, p := range t.params {
			params[i] = u.ResolveDeep(p)
		}
		return u.mgr.Function(params, u.ResolveDeep(t.value))
	}
	return t
}

func (u *Unification) occurs(id uint16, t *Type) bool {
	t = u.Resolve(t)
	switch t.kind {
	case KindTypeVar:
		return t.id == id
	case KindArray:
		return u.occurs(id, t.elem)
	case KindMap:
		return u.occurs(id, t.elem) || u.occurs(id, t.value)
	case KindRecord:
		for _, f := range t.fields {
			if u.occurs(id, f.Type) {
				return true
			}
		}
	case KindFunction:
		for _, p := range t.params {
			if u.occurs(id, p) {
				return true
			}
		}
		return u.occurs(id, t.value)
	}
	return false
}

// Unify makes a and b equal, binding variables as needed, and returns the
// resolved common term.
func (u *Unification) Unify(a, b *Type) (*Type, error) {
	a = u.Resolve(a)
	b = u.Resolve(b)

	if a == b {
		return a, nil
	}

	if a.kind == KindTypeVar {
		if u.occurs(a.id, b) {
			return nil, &OccursError{Var: a, In: u.ResolveDeep(b)}
		}
		u.subst[a.id] = b
		return b, nil
	}
	if b.kind == KindTypeVar {
		if u.occurs(b.id, a) {
			return nil, &OccursError{Var: b, In: u.ResolveDeep(a)}
		}
		u.subst[b.id] = a
		return a, nil
	}

	if a.kind != b.kind {
		return nil, &MismatchError{Expected: a, Found: b}
	}

	switch a.kind {
	case KindArray:
		elem, err := u.Unify(a.elem, b.elem)
		if err != nil {
			return nil, err
		}
		return u.mgr.Array(elem), nil

	case KindMap:
		key, err := u.Unify(a.elem, b.elem)
		if err != nil {
			return nil, err
		}
		value, err := u.Unify(a.value, b.value)
		if err != nil {
			return nil, err
		}
		return u.mgr.Map(key, value)

	case KindRecord:
		if len(a.fields) != len(b.fields) {
			return nil, &FieldCountError{Expected: len(a.fields), Found: len(b.fields)}
		}
		fields := make([]Field, len(a.fields))
		for i := range a.fields {
			if a.fields[i].Name != b.fields[i].Name {
				return nil, &FieldNameError{Expected: a.fields[i].Name, Found: b.fields[i].Name}
			}
			ft, err := u.Unify(a.fields[i].Type, b.fields[i].Type)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: a.fields[i].Name, Type: ft}
		}
		return u.mgr.Record(fields)

	case KindFunction:
		if len(a.params) != len(b.params) {
			return nil, &ParamCountError{Expected: len(a.params), Found: len(b.params)}
		}
		params := make([]*Type, len(a.params))
		for i := range a.params {
			p, err := u.Unify(a.params[i], b.params[i])
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		ret, err := u.Unify(a.value, b.value)
		if err != nil {
			return nil, err
		}
		return u.mgr.Function(params, ret), nil

	case KindSymbol:
		// Interned symbols with equal part sets are the same pointer, so
		// reaching here means the sets differ.
		return nil, &MismatchError{Expected: a, Found: b}
	}

	// Distinct scalar singletons.
	return nil, &MismatchError{Expected: a, Found: b}
}

// Substitute replaces variables in t according to subst, without touching
// the context's own bindings.
func (u *Unification) Substitute(t *Type, subst map[uint16]*Type) *Type {
	switch t.kind {
	case KindTypeVar:
		if r, ok := subst[t.id]; ok {
			return r
		}
		return t
	case KindArray:
		return u.mgr.Array(u.Substitute(t.elem, subst))
	case KindMap:
		m, err := u.mgr.Map(u.Substitute(t.elem, subst), u.Substitute(t.value, subst))
		if err != nil {
			return t
		}
		return m
	case KindRecord:
		fields := make([]Field, len(t.fields))
		for i, f := range t.fields {
			fields[i] = Field{Name: f.Name, Type: u.Substitute(f.Type, subst)}
		}
		r, err := u.mgr.Record(fields)
		if err != nil {
			return t
		}
		return r
	case KindFunction:
		params := make([]*Type, len(t.params))
		for i, p := range t.params {
			params[i] = u.Substitute(p, subst)
		}
		return u.mgr.Function(params, u.Substitute(t.value, subst))
	}
	return t
}

// AlphaConvert instantiates every type variable occurring in t with a fresh
// one and returns the instantiated term together with the mapping from old
// ids to fresh terms. Used when unifying a polymorphic callable against a
// call site.
func (u *Unification) AlphaConvert(t *Type) (*Type, map[uint16]*Type) {
	subst := make(map[uint16]*Type)
	u.collectVars(t, subst)
	if len(subst) == 0 {
		return t, subst
	}
	return u.Substitute(t, subst), subst
}

func (u *Unification) collectVars(t *Type, subst map[uint16]*Type) {
	switch t.kind {
	case KindTypeVar:
		if _, ok := subst[t.id]; !ok {
			subst[t.id] = u.mgr.FreshTypeVar()
		}
	case KindArray:
		u.collectVars(t.elem, subst)
	case KindMap:
		u.collectVars(t.elem, subst)
		u.collectVars(t.value, subst)
	case KindRecord:
		for _, f := range t.fields {
			u.collectVars(f.Type, subst)
		}
	case KindFunction:
		for _, p := range t.params {
			u.collectVars(p, subst)
		}
		u.collectVars(t.value, subst)
	}
}
