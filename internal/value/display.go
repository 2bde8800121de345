package value

import (
	"strconv"
	"strings"

	"github.com/melbi-lang/melbi/internal/types"
)

// Display renders a value the way format strings do: scalars bare,
// containers in literal syntax.
func Display(v Value) string {
	var sb strings.Builder
	writeValue(&sb, v.Type, v.Raw, false)
	return sb.String()
}

// String implements fmt.Stringer using Display.
func (v Value) String() string { return Display(v) }

func writeValue(sb *strings.Builder, ty *types.Type, r Raw, quoted bool) {
	switch ty.Kind() {
	case types.KindInt:
		sb.WriteString(strconv.FormatInt(r.Int(), 10))
	case types.KindFloat:
		sb.WriteString(strconv.FormatFloat(r.Float(), 'g', -1, 64))
	case types.KindBool:
		if r.Bool() {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case types.KindStr:
		if quoted {
			sb.WriteString(strconv.Quote(r.Str()))
		} else {
			sb.WriteString(r.Str())
		}
	case types.KindBytes:
		sb.WriteString("b\"")
		for _, b := range r.Bytes() {
			if b >= 0x20 && b < 0x7F && b != '"' && b != '\\' {
				sb.WriteByte(b)
			} else {
				sb.WriteString("\\x")
				const hex = "0123456789abcdef"
				sb.WriteByte(hex[b>>4])
				sb.WriteByte(hex[b&0xF])
			}
		}
		sb.WriteString("\"")
	case types.KindArray:
		sb.WriteString("[")
		for i, e := range r.Seq().Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, ty.Elem(), e, true)
		}
		sb.WriteString("]")
	case types.KindRecord:
		sb.WriteString("{")
		for i, f := range ty.Fields() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(" = ")
			writeValue(sb, f.Type, r.Seq().Elems[i], true)
		}
		sb.WriteString("}")
	case types.KindMap:
		sb.WriteString("{")
		d := r.Dict()
		for i := range d.Keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, ty.Key(), d.Keys[i], true)
			sb.WriteString(": ")
			writeValue(sb, ty.Value(), d.Vals[i], true)
		}
		sb.WriteString("}")
	case types.KindFunction:
		sb.WriteString("<function ")
		sb.WriteString(ty.String())
		sb.WriteString(">")
	default:
		sb.WriteString("<")
		sb.WriteString(ty.String())
		sb.WriteString(">")
	}
}
