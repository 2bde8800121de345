package types

import (
	"bytes"
	"testing"
)

func TestSerializeScalarTags(t *testing.T) {
	tm := newManager()
	tests := []struct {
		ty   *Type
		want []byte
	}{
		{tm.Int(), []byte{0x01}},
		{tm.Float(), []byte{0x02}},
		{tm.Bool(), []byte{0x03}},
		{tm.Str(), []byte{0x04}},
		{tm.Bytes(), []byte{0x05}},
		{tm.Array(tm.Int()), []byte{0x06, 0x01}},
		{tm.TypeVar(0x0102), []byte{0x00, 0x01, 0x02}},
	}
	for _, tc := range tests {
		if got := tm.Serialize(tc.ty); !bytes.Equal(got, tc.want) {
			t.Errorf("Serialize(%s) = %x, want %x", tc.ty, got, tc.want)
		}
	}
}

func TestRoundTripIsPointerIdentical(t *testing.T) {
	tm := newManager()
	mp, _ := tm.Map(tm.Str(), tm.Array(tm.Int()))
	rec, _ := tm.Record([]Field{{"name", tm.Str()}, {"age", tm.Int()}})
	sym, _ := tm.Symbol([]string{"red", "green", "blue"})
	fn := tm.Function([]*Type{tm.Int(), rec}, mp)

	for _, ty := range []*Type{tm.Int(), tm.Bytes(), mp, rec, sym, fn, tm.TypeVar(7)} {
		data := tm.Serialize(ty)
		back, err := tm.Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize(%s): %v", ty, err)
		}
		if back != ty {
			t.Errorf("round trip of %s produced a different pointer", ty)
		}
	}
}

func TestRoundTripIntoFreshManager(t *testing.T) {
	tm1 := newManager()
	rec, _ := tm1.Record([]Field{{"b", tm1.Int()}, {"a", tm1.Str()}})
	data := tm1.Serialize(rec)

	tm2 := newManager()
	back, err := tm2.Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.String() != rec.String() {
		t.Errorf("cross-manager round trip: got %s, want %s", back, rec)
	}
}

func TestDeserializeErrors(t *testing.T) {
	tm := newManager()
	cases := [][]byte{
		{},                 // empty
		{0xFF},             // unknown tag
		{0x06},             // array missing element
		{0x00, 0x01},       // truncated type var
		{0x01, 0x01},       // trailing bytes
	}
	for _, data := range cases {
		if _, err := tm.Deserialize(data); err == nil {
			t.Errorf("Deserialize(%x) should fail", data)
		}
	}
}
