package value

import (
	"testing"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/types"
)

func setup() (*arena.Arena, *types.Manager) {
	a := arena.New()
	return a, types.NewManager(a)
}

func TestPrimitiveConstructors(t *testing.T) {
	_, tm := setup()
	if got, _ := Int(tm, 42).AsInt(); got != 42 {
		t.Errorf("Int = %d", got)
	}
	if got, _ := Float(tm, 1.5).AsFloat(); got != 1.5 {
		t.Errorf("Float = %g", got)
	}
	if got, _ := Bool(tm, true).AsBool(); !got {
		t.Error("Bool = false")
	}
}

func TestAccessorsRejectWrongType(t *testing.T) {
	_, tm := setup()
	v := Int(tm, 1)
	if _, err := v.AsFloat(); err == nil {
		t.Error("AsFloat on Int should fail")
	}
	if _, err := v.AsStr(); err == nil {
		t.Error("AsStr on Int should fail")
	}
	if _, err := v.AsArray(); err == nil {
		t.Error("AsArray on Int should fail")
	}
}

func TestStrAndBytesCopyIntoArena(t *testing.T) {
	a, tm := setup()
	src := []byte("hello")
	v, err := Bytes(a, tm.Bytes(), src)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 'X' // mutating the input must not affect the value
	got, _ := v.AsBytes()
	if string(got) != "hello" {
		t.Errorf("bytes = %q", got)
	}
}

func TestArrayValidatesElementTypes(t *testing.T) {
	a, tm := setup()
	arrTy := tm.Array(tm.Int())
	if _, err := Array(a, arrTy, []Value{Int(tm, 1), Float(tm, 2.0)}); err == nil {
		t.Error("mixed element types should be rejected")
	}
	v, err := Array(a, arrTy, []Value{Int(tm, 1), Int(tm, 2)})
	if err != nil {
		t.Fatal(err)
	}
	elems, _ := v.AsArray()
	if len(elems) != 2 {
		t.Errorf("len = %d", len(elems))
	}
}

func TestRecordValidatesFields(t *testing.T) {
	a, tm := setup()
	rec, _ := tm.Record([]types.Field{{Name: "x", Type: tm.Int()}, {Name: "y", Type: tm.Str()}})

	// Any field order is accepted; storage follows the canonical order.
	y, _ := Str(a, tm.Str(), "s")
	v, err := Record(a, rec, []FieldValue{
		{Name: "y", Value: y},
		{Name: "x", Value: Int(tm, 1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	fields, _ := v.AsRecord()
	if fields[0].Name != "x" || fields[1].Name != "y" {
		t.Errorf("canonical order violated: %+v", fields)
	}

	if _, err := Record(a, rec, []FieldValue{{Name: "x", Value: Int(tm, 1)}}); err == nil {
		t.Error("missing field should be rejected")
	}
	if _, err := Record(a, rec, []FieldValue{
		{Name: "x", Value: Int(tm, 1)},
		{Name: "z", Value: Int(tm, 2)},
	}); err == nil {
		t.Error("unknown field should be rejected")
	}
	if _, err := Record(a, rec, []FieldValue{
		{Name: "x", Value: Int(tm, 1)},
		{Name: "y", Value: Int(tm, 2)},
	}); err == nil {
		t.Error("wrong field type should be rejected")
	}
}

func TestMapKeepsKeysSorted(t *testing.T) {
	a, tm := setup()
	mpTy, _ := tm.Map(tm.Int(), tm.Int())
	v, err := Map(a, mpTy,
		[]Value{Int(tm, 3), Int(tm, 1), Int(tm, 2)},
		[]Value{Int(tm, 30), Int(tm, 10), Int(tm, 20)})
	if err != nil {
		t.Fatal(err)
	}
	keys, vals, _ := v.AsMap()
	for i, want := range []int64{1, 2, 3} {
		if got, _ := keys[i].AsInt(); got != want {
			t.Errorf("key %d = %d, want %d", i, got, want)
		}
	}
	if got, _ := vals[0].AsInt(); got != 10 {
		t.Errorf("vals[0] = %d", got)
	}
}

func TestMapDuplicateKeysLastWins(t *testing.T) {
	a, tm := setup()
	mpTy, _ := tm.Map(tm.Int(), tm.Int())
	v, err := Map(a, mpTy,
		[]Value{Int(tm, 1), Int(tm, 1)},
		[]Value{Int(tm, 10), Int(tm, 20)})
	if err != nil {
		t.Fatal(err)
	}
	keys, vals, _ := v.AsMap()
	if len(keys) != 1 {
		t.Fatalf("len = %d", len(keys))
	}
	if got, _ := vals[0].AsInt(); got != 20 {
		t.Errorf("value = %d, want the later entry", got)
	}
}

func TestEquality(t *testing.T) {
	a, tm := setup()
	if !Equal(Int(tm, 1), Int(tm, 1)) {
		t.Error("1 != 1")
	}
	if Equal(Int(tm, 1), Float(tm, 1.0)) {
		t.Error("values of different types compared equal")
	}
	arrTy := tm.Array(tm.Int())
	a1, _ := Array(a, arrTy, []Value{Int(tm, 1), Int(tm, 2)})
	a2, _ := Array(a, arrTy, []Value{Int(tm, 1), Int(tm, 2)})
	a3, _ := Array(a, arrTy, []Value{Int(tm, 1), Int(tm, 3)})
	if !Equal(a1, a2) || Equal(a1, a3) {
		t.Error("structural array equality broken")
	}
}

func TestDisplayForms(t *testing.T) {
	a, tm := setup()
	s, _ := Str(a, tm.Str(), "hi")
	bs, _ := Bytes(a, tm.Bytes(), []byte{0x41, 0xFF})
	arrTy := tm.Array(tm.Int())
	arr, _ := Array(a, arrTy, []Value{Int(tm, 1), Int(tm, 2)})

	tests := []struct {
		v    Value
		want string
	}{
		{Int(tm, -5), "-5"},
		{Float(tm, 1.5), "1.5"},
		{Bool(tm, true), "true"},
		{s, "hi"},
		{bs, `b"A\xff"`},
		{arr, "[1, 2]"},
	}
	for _, tc := range tests {
		if got := Display(tc.v); got != tc.want {
			t.Errorf("Display = %q, want %q", got, tc.want)
		}
	}
}
