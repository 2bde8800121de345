package types

import (
	"fmt"
	"sort"

	"github.com/melbi-lang/melbi/internal/arena"
)

// DuplicateFieldError is returned when a record is built with two fields of
// the same name.
type DuplicateFieldError struct {
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate record field '%s'", e.Name)
}

// KeyNotHashableError is returned when a map type is built with an
// unhashable key type.
type KeyNotHashableError struct {
	Key *Type
}

func (e *KeyNotHashableError) Error() string {
	return fmt.Sprintf("map key type %s is not hashable", e.Key)
}

// EmptySymbolError is returned when a symbol type is built with no parts.
type EmptySymbolError struct{}

func (e *EmptySymbolError) Error() string {
	return "symbol type must have at least one part"
}

// Manager interns type terms so that structural equality is pointer
// equality. It is populated single-threaded; once an engine's setup phase is
// done it may be read concurrently.
type Manager struct {
	arena *arena.Arena

	interned map[string]*Type // canonical shape encoding -> term
	strings  map[string]string

	intTy, floatTy, boolTy, strTy, bytesTy *Type

	nextVar uint16
}

// NewManager creates a type manager backed by the given arena. The scalar
// singletons are created eagerly.
func NewManager(a *arena.Arena) *Manager {
	m := &Manager{
		arena:    a,
		interned: make(map[string]*Type),
		strings:  make(map[string]string),
	}
	m.intTy = m.internScalar(KindInt)
	m.floatTy = m.internScalar(KindFloat)
	m.boolTy = m.internScalar(KindBool)
	m.strTy = m.internScalar(KindStr)
	m.bytesTy = m.internScalar(KindBytes)
	return m
}

func (m *Manager) internScalar(k Kind) *Type {
	t := &Type{kind: k}
	m.interned[string(encodeType(t))] = t
	return t
}

// Int returns the canonical Int type.
func (m *Manager) Int() *Type { return m.intTy }

// Float returns the canonical Float type.
func (m *Manager) Float() *Type { return m.floatTy }

// Bool returns the canonical Bool type.
func (m *Manager) Bool() *Type { return m.boolTy }

// Str returns the canonical Str type.
func (m *Manager) Str() *Type { return m.strTy }

// Bytes returns the canonical Bytes type.
func (m *Manager) Bytes() *Type { return m.bytesTy }

// Scalar returns the canonical scalar type for k.
func (m *Manager) Scalar(k Kind) (*Type, error) {
	switch k {
	case KindInt:
		return m.intTy, nil
	case KindFloat:
		return m.floatTy, nil
	case KindBool:
		return m.boolTy, nil
	case KindStr:
		return m.strTy, nil
	case KindBytes:
		return m.bytesTy, nil
	}
	return nil, fmt.Errorf("not a scalar kind: %d", k)
}

// intern canonicalizes a fully built candidate term. The candidate's
// components must already be canonical pointers.
func (m *Manager) intern(candidate *Type) *Type {
	key := string(encodeType(candidate))
	if t, ok := m.interned[key]; ok {
		return t
	}
	m.interned[key] = candidate
	return candidate
}

// InternString copies s into the manager's arena at most once and returns
// the canonical copy.
func (m *Manager) InternString(s string) string {
	if v, ok := m.strings[s]; ok {
		return v
	}
	v := m.arena.String(s)
	m.strings[v] = v
	return v
}

// Array interns Array[elem].
func (m *Manager) Array(elem *Type) *Type {
	return m.intern(&Type{kind: KindArray, elem: elem})
}

// Map interns Map[key, value]. The key type must be hashable.
func (m *Manager) Map(key, value *Type) (*Type, error) {
	if !key.IsHashable() {
		return nil, &KeyNotHashableError{Key: key}
	}
	return m.intern(&Type{kind: KindMap, elem: key, value: value}), nil
}

// Record interns a record type. Fields are copied, their names interned, and
// sorted by name; duplicate names are rejected.
func (m *Manager) Record(fields []Field) (*Type, error) {
	sorted := make([]Field, len(fields))
	for i, f := range fields {
		sorted[i] = Field{Name: m.InternString(f.Name), Type: f.Type}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, &DuplicateFieldError{Name: sorted[i].Name}
		}
	}
	return m.intern(&Type{kind: KindRecord, fields: sorted}), nil
}

// Function interns a function type. Empty parameter lists are allowed.
func (m *Manager) Function(params []*Type, ret *Type) *Type {
	ps := make([]*Type, len(params))
	copy(ps, params)
	return m.intern(&Type{kind: KindFunction, params: ps, value: ret})
}

// Symbol interns a symbol type. Parts are interned, sorted, and
// deduplicated; an empty part set is rejected.
func (m *Manager) Symbol(parts []string) (*Type, error) {
	if len(parts) == 0 {
		return nil, &EmptySymbolError{}
	}
	sorted := make([]string, len(parts))
	for i, p := range parts {
		sorted[i] = m.InternString(p)
	}
	sort.Strings(sorted)
	dedup := sorted[:1]
	for _, p := range sorted[1:] {
		if p != dedup[len(dedup)-1] {
			dedup = append(dedup, p)
		}
	}
	return m.intern(&Type{kind: KindSymbol, parts: dedup}), nil
}

// TypeVar interns the inference variable with the given id.
func (m *Manager) TypeVar(id uint16) *Type {
	return m.intern(&Type{kind: KindTypeVar, id: id})
}

// FreshTypeVar returns a type variable with a previously unused id.
func (m *Manager) FreshTypeVar() *Type {
	id := m.nextVar
	m.nextVar++
	return m.TypeVar(id)
}
