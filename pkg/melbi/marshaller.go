package melbi

import (
	"fmt"
	"reflect"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// The marshaller bridges Go values and functions into the Melbi value
// model. Supported Go kinds:
//
//	int, int64        Int
//	float64           Float
//	bool              Bool
//	string            Str
//	[]byte            Bytes
//	[]T               Array[T]
//	map[K]V           Map[K, V]
//	struct            Record (exported fields, Go names)
//	func(...) T       native Function
//	func(...) (T, error)
var errType = reflect.TypeOf((*error)(nil)).Elem()

// InferType maps a Go type onto an interned Melbi type.
func InferType(tm *types.Manager, t reflect.Type) (*types.Type, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		return tm.Int(), nil
	case reflect.Float64:
		return tm.Float(), nil
	case reflect.Bool:
		return tm.Bool(), nil
	case reflect.String:
		return tm.Str(), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return tm.Bytes(), nil
		}
		elem, err := InferType(tm, t.Elem())
		if err != nil {
			return nil, err
		}
		return tm.Array(elem), nil
	case reflect.Map:
		key, err := InferType(tm, t.Key())
		if err != nil {
			return nil, err
		}
		val, err := InferType(tm, t.Elem())
		if err != nil {
			return nil, err
		}
		return tm.Map(key, val)
	case reflect.Struct:
		fields := make([]types.Field, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			ft, err := InferType(tm, f.Type)
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: f.Name, Type: ft})
		}
		return tm.Record(fields)
	case reflect.Func:
		if t.IsVariadic() {
			return nil, fmt.Errorf("variadic functions cannot be bound")
		}
		params := make([]*types.Type, t.NumIn())
		for i := 0; i < t.NumIn(); i++ {
			p, err := InferType(tm, t.In(i))
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		switch t.NumOut() {
		case 1:
		case 2:
			if t.Out(1) != errType {
				return nil, fmt.Errorf("second return value must be error")
			}
		default:
			return nil, fmt.Errorf("bound functions must return one value (plus optional error)")
		}
		ret, err := InferType(tm, t.Out(0))
		if err != nil {
			return nil, err
		}
		return tm.Function(params, ret), nil
	}
	return nil, fmt.Errorf("unsupported Go type %s", t)
}

// ToValue converts a Go value into a Melbi value, allocating payloads in
// the arena.
func ToValue(tm *types.Manager, a *arena.Arena, v any) (value.Value, error) {
	rv := reflect.ValueOf(v)
	ty, err := InferType(tm, rv.Type())
	if err != nil {
		return value.Value{}, err
	}
	return toValueTyped(tm, a, rv, ty)
}

func toValueTyped(tm *types.Manager, a *arena.Arena, rv reflect.Value, ty *types.Type) (value.Value, error) {
	switch ty.Kind() {
	case types.KindInt:
		return value.Int(tm, rv.Int()), nil
	case types.KindFloat:
		return value.Float(tm, rv.Float()), nil
	case types.KindBool:
		return value.Bool(tm, rv.Bool()), nil
	case types.KindStr:
		return value.Str(a, ty, rv.String())
	case types.KindBytes:
		return value.Bytes(a, ty, rv.Bytes())
	case types.KindArray:
		elems := make([]value.Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := toValueTyped(tm, a, rv.Index(i), ty.Elem())
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = e
		}
		return value.Array(a, ty, elems)
	case types.KindMap:
		keys := make([]value.Value, 0, rv.Len())
		vals := make([]value.Value, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := toValueTyped(tm, a, iter.Key(), ty.Key())
			if err != nil {
				return value.Value{}, err
			}
			v, err := toValueTyped(tm, a, iter.Value(), ty.Value())
			if err != nil {
				return value.Value{}, err
			}
			keys = append(keys, k)
			vals = append(vals, v)
		}
		return value.Map(a, ty, keys, vals)
	case types.KindRecord:
		fields := make([]value.FieldValue, 0, len(ty.Fields()))
		for _, f := range ty.Fields() {
			fv := rv.FieldByName(f.Name)
			v, err := toValueTyped(tm, a, fv, f.Type)
			if err != nil {
				return value.Value{}, err
			}
			fields = append(fields, value.FieldValue{Name: f.Name, Value: v})
		}
		return value.Record(a, ty, fields)
	case types.KindFunction:
		f, err := newGoFuncValue(tm, rv)
		if err != nil {
			return value.Value{}, err
		}
		return value.Func(f), nil
	}
	return value.Value{}, fmt.Errorf("unsupported value type %s", ty)
}

// FromValue converts a Melbi value back into the given Go type.
func FromValue(v value.Value, t reflect.Type) (any, error) {
	out := reflect.New(t).Elem()
	if err := fromValueInto(v, out); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func fromValueInto(v value.Value, out reflect.Value) error {
	switch v.Type.Kind() {
	case types.KindInt:
		out.SetInt(v.Raw.Int())
	case types.KindFloat:
		out.SetFloat(v.Raw.Float())
	case types.KindBool:
		out.SetBool(v.Raw.Bool())
	case types.KindStr:
		out.SetString(v.Raw.Str())
	case types.KindBytes:
		out.SetBytes(append([]byte(nil), v.Raw.Bytes()...))
	case types.KindArray:
		elems, err := v.AsArray()
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(out.Type(), len(elems), len(elems))
		for i, e := range elems {
			if err := fromValueInto(e, slice.Index(i)); err != nil {
				return err
			}
		}
		out.Set(slice)
	case types.KindMap:
		keys, vals, err := v.AsMap()
		if err != nil {
			return err
		}
		mp := reflect.MakeMapWithSize(out.Type(), len(keys))
		for i := range keys {
			k := reflect.New(out.Type().Key()).Elem()
			if err := fromValueInto(keys[i], k); err != nil {
				return err
			}
			mv := reflect.New(out.Type().Elem()).Elem()
			if err := fromValueInto(vals[i], mv); err != nil {
				return err
			}
			mp.SetMapIndex(k, mv)
		}
		out.Set(mp)
	case types.KindRecord:
		fields, err := v.AsRecord()
		if err != nil {
			return err
		}
		for _, f := range fields {
			target := out.FieldByName(f.Name)
			if !target.IsValid() {
				return fmt.Errorf("struct %s has no field %s", out.Type(), f.Name)
			}
			if err := fromValueInto(f.Value, target); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cannot convert %s back to Go", v.Type)
	}
	return nil
}

// goFunc adapts a Go function into a native Melbi function object,
// fulfilling the value construction contract at the host boundary.
type goFunc struct {
	name string
	ty   *types.Type
	fn   reflect.Value
}

func newGoFunc(tm *types.Manager, name string, fn any) (*goFunc, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("BindFunc: %s is not a function", name)
	}
	f, err := newGoFuncValue(tm, rv)
	if err != nil {
		return nil, fmt.Errorf("BindFunc %s: %w", name, err)
	}
	f.name = name
	return f, nil
}

func newGoFuncValue(tm *types.Manager, rv reflect.Value) (*goFunc, error) {
	ty, err := InferType(tm, rv.Type())
	if err != nil {
		return nil, err
	}
	return &goFunc{ty: ty, fn: rv}, nil
}

// Type implements value.Function.
func (f *goFunc) Type() *types.Type { return f.ty }

// CallUnchecked implements value.Function. Arguments arrive with types
// pointer-equal to the function type's parameters.
func (f *goFunc) CallUnchecked(a *arena.Arena, tm *types.Manager, args []value.Value) (value.Value, error) {
	goArgs := make([]reflect.Value, len(args))
	for i, arg := range args {
		converted, err := FromValue(arg, f.fn.Type().In(i))
		if err != nil {
			return value.Value{}, fmt.Errorf("%s: argument %d: %w", f.name, i+1, err)
		}
		goArgs[i] = reflect.ValueOf(converted)
	}
	results := f.fn.Call(goArgs)
	if len(results) == 2 && !results[1].IsNil() {
		return value.Value{}, results[1].Interface().(error)
	}
	return toValueTyped(tm, a, results[0], f.ty.Ret())
}
