// Package value implements the Melbi runtime value model: an untyped word
// (Raw) paired with an interned type pointer (Value).
//
// A Raw carries an inline 64-bit payload for scalars and a reference to a
// heap payload for everything else. The VM operates on Raws alone; the type
// pointer is only consulted at the host boundary.
package value

import (
	"bytes"
	"math"
	"strings"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/types"
)

// Raw is the untyped runtime word. Its interpretation is determined by the
// accompanying interned type:
//
//	Int, Float, Bool   inline in Bits
//	Str                Ref holds string
//	Bytes              Ref holds []byte
//	Array, Record      Ref holds *Seq
//	Map                Ref holds *Dict
//	Function           Ref holds Function
//	Option             Ref holds *Raw (some) or nil (none)
type Raw struct {
	Bits uint64
	Ref  any
}

// Seq is the payload shared by arrays and records: a length-prefixed run of
// elements. For records, positions follow the type's canonical field order.
type Seq struct {
	Elems []Raw
}

// Dict is a map payload with entries kept sorted by key for deterministic
// iteration and equality.
type Dict struct {
	Keys []Raw
	Vals []Raw
}

// Lookup binary-searches for key and returns its value.
func (d *Dict) Lookup(key Raw) (Raw, bool) {
	lo, hi := 0, len(d.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if Compare(d.Keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(d.Keys) && Compare(d.Keys[lo], key) == 0 {
		return d.Vals[lo], true
	}
	return Raw{}, false
}

// Function is implemented by native (host-provided) function objects.
type Function interface {
	// Type returns the interned function type.
	Type() *types.Type

	// CallUnchecked invokes the function. The caller promises that args
	// match the function type's parameters exactly.
	CallUnchecked(a *arena.Arena, tm *types.Manager, args []Value) (Value, error)
}

// RawInt builds an inline integer word.
func RawInt(v int64) Raw { return Raw{Bits: uint64(v)} }

// RawFloat builds an inline float word.
func RawFloat(v float64) Raw { return Raw{Bits: math.Float64bits(v)} }

// RawBool builds an inline boolean word.
func RawBool(v bool) Raw {
	if v {
		return Raw{Bits: 1}
	}
	return Raw{}
}

// RawStr wraps an arena-owned string.
func RawStr(s string) Raw { return Raw{Ref: s} }

// RawBytes wraps an arena-owned byte slice.
func RawBytes(b []byte) Raw { return Raw{Ref: b} }

// RawSeq wraps an array or record payload.
func RawSeq(s *Seq) Raw { return Raw{Ref: s} }

// RawDict wraps a map payload.
func RawDict(d *Dict) Raw { return Raw{Ref: d} }

// RawFunc wraps a function object.
func RawFunc(f Function) Raw { return Raw{Ref: f} }

// RawNone is the absent option.
func RawNone() Raw { return Raw{} }

// RawSome boxes a present option payload.
func RawSome(inner Raw) Raw { return Raw{Ref: &inner} }

// Int reads the word as an integer.
func (r Raw) Int() int64 { return int64(r.Bits) }

// Float reads the word as a float.
func (r Raw) Float() float64 { return math.Float64frombits(r.Bits) }

// Bool reads the word as a boolean.
func (r Raw) Bool() bool { return r.Bits != 0 }

// Str reads the word as a string payload.
func (r Raw) Str() string { s, _ := r.Ref.(string); return s }

// Bytes reads the word as a bytes payload.
func (r Raw) Bytes() []byte { b, _ := r.Ref.([]byte); return b }

// Seq reads the word as an array/record payload.
func (r Raw) Seq() *Seq { s, _ := r.Ref.(*Seq); return s }

// Dict reads the word as a map payload.
func (r Raw) Dict() *Dict { d, _ := r.Ref.(*Dict); return d }

// Func reads the word as a function object.
func (r Raw) Func() Function { f, _ := r.Ref.(Function); return f }

func kindRank(r Raw) int {
	switch r.Ref.(type) {
	case nil:
		return 0
	case string:
		return 1
	case []byte:
		return 2
	case *Seq:
		return 3
	case *Dict:
		return 4
	default:
		return 5
	}
}

// Compare imposes a deterministic total order on raw words of the same
// Melbi type. Inline words order by their signed payload, so integer keys
// sort naturally; float keys get a consistent (if not numeric) order from
// their bit patterns. Used for map key sorting, lookup, and equality.
func Compare(a, b Raw) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		ai, bi := int64(a.Bits), int64(b.Bits)
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case 1:
		return strings.Compare(a.Str(), b.Str())
	case 2:
		return bytes.Compare(a.Bytes(), b.Bytes())
	case 3:
		as, bs := a.Seq(), b.Seq()
		n := len(as.Elems)
		if len(bs.Elems) < n {
			n = len(bs.Elems)
		}
		for i := 0; i < n; i++ {
			if c := Compare(as.Elems[i], bs.Elems[i]); c != 0 {
				return c
			}
		}
		return len(as.Elems) - len(bs.Elems)
	case 4:
		am, bm := a.Dict(), b.Dict()
		n := len(am.Keys)
		if len(bm.Keys) < n {
			n = len(bm.Keys)
		}
		for i := 0; i < n; i++ {
			if c := Compare(am.Keys[i], bm.Keys[i]); c != 0 {
				return c
			}
			if c := Compare(am.Vals[i], bm.Vals[i]); c != 0 {
				return c
			}
		}
		return len(am.Keys) - len(bm.Keys)
	}
	// Functions have no meaningful order; identity only.
	if a.Ref == b.Ref {
		return 0
	}
	return 1
}

// RawEqual reports structural equality of two words of the same type.
func RawEqual(a, b Raw) bool { return Compare(a, b) == 0 }
