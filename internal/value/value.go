package value

import (
	"fmt"
	"sort"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/types"
)

// Value pairs a raw word with its interned type. The type pointer is always
// canonical; the raw word conforms to the layout for that type.
type Value struct {
	Type *types.Type
	Raw  Raw
}

// TypeMismatchError reports a payload whose type pointer does not match the
// requested layout.
type TypeMismatchError struct {
	Expected string
	Found    *types.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Type mismatch: expected %s, got %s", e.Expected, e.Found)
}

// Int builds an integer value. Cannot fail.
func Int(tm *types.Manager, v int64) Value {
	return Value{Type: tm.Int(), Raw: RawInt(v)}
}

// Float builds a float value. Cannot fail.
func Float(tm *types.Manager, v float64) Value {
	return Value{Type: tm.Float(), Raw: RawFloat(v)}
}

// Bool builds a boolean value. Cannot fail.
func Bool(tm *types.Manager, v bool) Value {
	return Value{Type: tm.Bool(), Raw: RawBool(v)}
}

// Str copies s into the arena and builds a string value of the given type.
func Str(a *arena.Arena, ty *types.Type, s string) (Value, error) {
	if ty.Kind() != types.KindStr {
		return Value{}, &TypeMismatchError{Expected: "Str", Found: ty}
	}
	return Value{Type: ty, Raw: RawStr(a.String(s))}, nil
}

// Bytes copies b into the arena and builds a bytes value of the given type.
func Bytes(a *arena.Arena, ty *types.Type, b []byte) (Value, error) {
	if ty.Kind() != types.KindBytes {
		return Value{}, &TypeMismatchError{Expected: "Bytes", Found: ty}
	}
	return Value{Type: ty, Raw: RawBytes(a.Bytes(b))}, nil
}

// Array builds an array value, validating that every element's type is
// pointer-equal to the array's element type.
func Array(a *arena.Arena, ty *types.Type, elems []Value) (Value, error) {
	if ty.Kind() != types.KindArray {
		return Value{}, &TypeMismatchError{Expected: "Array", Found: ty}
	}
	raws := make([]Raw, len(elems))
	for i, e := range elems {
		if e.Type != ty.Elem() {
			return Value{}, &TypeMismatchError{Expected: ty.Elem().String(), Found: e.Type}
		}
		raws[i] = e.Raw
	}
	return Value{Type: ty, Raw: RawSeq(&Seq{Elems: raws})}, nil
}

// FieldValue names a record field payload for construction.
type FieldValue struct {
	Name  string
	Value Value
}

// Record builds a record value. The supplied fields may be in any order;
// they are matched by name against the type's canonical order, and both the
// field count and every name must correspond.
func Record(a *arena.Arena, ty *types.Type, fields []FieldValue) (Value, error) {
	if ty.Kind() != types.KindRecord {
		return Value{}, &TypeMismatchError{Expected: "Record", Found: ty}
	}
	tf := ty.Fields()
	if len(fields) != len(tf) {
		return Value{}, fmt.Errorf("Type mismatch: record has %d fields, got %d", len(tf), len(fields))
	}
	raws := make([]Raw, len(tf))
	seen := make([]bool, len(tf))
	for _, f := range fields {
		idx := ty.FieldIndex(f.Name)
		if idx < 0 {
			return Value{}, fmt.Errorf("Type mismatch: record type has no field '%s'", f.Name)
		}
		if seen[idx] {
			return Value{}, fmt.Errorf("Type mismatch: duplicate field '%s'", f.Name)
		}
		if f.Value.Type != tf[idx].Type {
			return Value{}, &TypeMismatchError{Expected: tf[idx].Type.String(), Found: f.Value.Type}
		}
		raws[idx] = f.Value.Raw
		seen[idx] = true
	}
	return Value{Type: ty, Raw: RawSeq(&Seq{Elems: raws})}, nil
}

// Map builds a map value from parallel key/value slices, validating types
// and sorting entries by key. A later duplicate key overwrites an earlier
// one.
func Map(a *arena.Arena, ty *types.Type, keys, vals []Value) (Value, error) {
	if ty.Kind() != types.KindMap {
		return Value{}, &TypeMismatchError{Expected: "Map", Found: ty}
	}
	if len(keys) != len(vals) {
		return Value{}, fmt.Errorf("Type mismatch: %d keys but %d values", len(keys), len(vals))
	}
	rawKeys := make([]Raw, len(keys))
	rawVals := make([]Raw, len(vals))
	for i := range keys {
		if keys[i].Type != ty.Key() {
			return Value{}, &TypeMismatchError{Expected: ty.Key().String(), Found: keys[i].Type}
		}
		if vals[i].Type != ty.Value() {
			return Value{}, &TypeMismatchError{Expected: ty.Value().String(), Found: vals[i].Type}
		}
		rawKeys[i] = keys[i].Raw
		rawVals[i] = vals[i].Raw
	}
	dict := NewDict(rawKeys, rawVals)
	return Value{Type: ty, Raw: RawDict(dict)}, nil
}

// NewDict sorts parallel key/value runs into a Dict. Later duplicates win.
func NewDict(keys, vals []Raw) *Dict {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if c := Compare(keys[idx[a]], keys[idx[b]]); c != 0 {
			return c < 0
		}
		return idx[a] < idx[b]
	})
	d := &Dict{}
	for n, i := range idx {
		if n > 0 && Compare(keys[i], d.Keys[len(d.Keys)-1]) == 0 {
			d.Vals[len(d.Vals)-1] = vals[i]
			continue
		}
		d.Keys = append(d.Keys, keys[i])
		d.Vals = append(d.Vals, vals[i])
	}
	return d
}

// Func builds a function value from a native function object.
func Func(f Function) Value {
	return Value{Type: f.Type(), Raw: RawFunc(f)}
}

// AsInt extracts an integer payload.
func (v Value) AsInt() (int64, error) {
	if v.Type.Kind() != types.KindInt {
		return 0, &TypeMismatchError{Expected: "Int", Found: v.Type}
	}
	return v.Raw.Int(), nil
}

// AsFloat extracts a float payload.
func (v Value) AsFloat() (float64, error) {
	if v.Type.Kind() != types.KindFloat {
		return 0, &TypeMismatchError{Expected: "Float", Found: v.Type}
	}
	return v.Raw.Float(), nil
}

// AsBool extracts a boolean payload.
func (v Value) AsBool() (bool, error) {
	if v.Type.Kind() != types.KindBool {
		return false, &TypeMismatchError{Expected: "Bool", Found: v.Type}
	}
	return v.Raw.Bool(), nil
}

// AsStr extracts a string payload.
func (v Value) AsStr() (string, error) {
	if v.Type.Kind() != types.KindStr {
		return "", &TypeMismatchError{Expected: "Str", Found: v.Type}
	}
	return v.Raw.Str(), nil
}

// AsBytes extracts a bytes payload.
func (v Value) AsBytes() ([]byte, error) {
	if v.Type.Kind() != types.KindBytes {
		return nil, &TypeMismatchError{Expected: "Bytes", Found: v.Type}
	}
	return v.Raw.Bytes(), nil
}

// AsArray extracts the elements of an array value.
func (v Value) AsArray() ([]Value, error) {
	if v.Type.Kind() != types.KindArray {
		return nil, &TypeMismatchError{Expected: "Array", Found: v.Type}
	}
	seq := v.Raw.Seq()
	out := make([]Value, len(seq.Elems))
	for i, r := range seq.Elems {
		out[i] = Value{Type: v.Type.Elem(), Raw: r}
	}
	return out, nil
}

// AsRecord extracts a record's fields in canonical order.
func (v Value) AsRecord() ([]FieldValue, error) {
	if v.Type.Kind() != types.KindRecord {
		return nil, &TypeMismatchError{Expected: "Record", Found: v.Type}
	}
	seq := v.Raw.Seq()
	tf := v.Type.Fields()
	out := make([]FieldValue, len(tf))
	for i, f := range tf {
		out[i] = FieldValue{Name: f.Name, Value: Value{Type: f.Type, Raw: seq.Elems[i]}}
	}
	return out, nil
}

// AsMap extracts a map's entries in key-sorted order.
func (v Value) AsMap() (keys, vals []Value, err error) {
	if v.Type.Kind() != types.KindMap {
		return nil, nil, &TypeMismatchError{Expected: "Map", Found: v.Type}
	}
	dict := v.Raw.Dict()
	keys = make([]Value, len(dict.Keys))
	vals = make([]Value, len(dict.Vals))
	for i := range dict.Keys {
		keys[i] = Value{Type: v.Type.Key(), Raw: dict.Keys[i]}
		vals[i] = Value{Type: v.Type.Value(), Raw: dict.Vals[i]}
	}
	return keys, vals, nil
}

// AsFunc extracts a function object.
func (v Value) AsFunc() (Function, error) {
	if v.Type.Kind() != types.KindFunction {
		return nil, &TypeMismatchError{Expected: "Function", Found: v.Type}
	}
	return v.Raw.Func(), nil
}

// Equal reports structural equality. Values of different types are never
// equal.
func Equal(a, b Value) bool {
	return a.Type == b.Type && RawEqual(a.Raw, b.Raw)
}
