package vm

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/melbi-lang/melbi/internal/config"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// Integer arithmetic uses wrapping two's-complement semantics. Division and
// modulo by zero fail; the MinInt64 / -1 case wraps instead of trapping.

func (m *Machine) intBinOp(op byte) *ExecutionError {
	b := m.pop().Int()
	a := m.pop().Int()
	var r int64
	switch op {
	case '+':
		r = a + b
	case '-':
		r = a - b
	case '*':
		r = a * b
	case '/':
		if b == 0 {
			return execErrorf(diagnostics.ErrR001DivisionByZero, "division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			r = math.MinInt64
		} else {
			r = a / b
		}
	case '%':
		if b == 0 {
			return execErrorf(diagnostics.ErrR001DivisionByZero, "modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			r = 0
		} else {
			r = a % b
		}
	case '^':
		if b < 0 {
			return execErrorf(diagnostics.ErrR002NegativeExponent,
				"integer power with negative exponent %d", b)
		}
		r = intPow(a, b)
	}
	m.push(value.RawInt(r))
	return nil
}

// intPow is wrapping exponentiation by squaring.
func intPow(base int64, exp int64) int64 {
	var r int64 = 1
	for exp > 0 {
		if exp&1 == 1 {
			r *= base
		}
		base *= base
		exp >>= 1
	}
	return r
}

func (m *Machine) floatBinOp(op byte) {
	b := m.pop().Float()
	a := m.pop().Float()
	var r float64
	switch op {
	case '+':
		r = a + b
	case '-':
		r = a - b
	case '*':
		r = a * b
	case '/':
		r = a / b
	case '%':
		r = math.Mod(a, b)
	case '^':
		r = math.Pow(a, b)
	}
	m.push(value.RawFloat(r))
}

func orderCmp(c int, op byte) bool {
	switch op {
	case CmpLt:
		return c < 0
	case CmpGt:
		return c > 0
	case CmpEq:
		return c == 0
	case CmpNe:
		return c != 0
	case CmpLe:
		return c <= 0
	default:
		return c >= 0
	}
}

func intCmp(a, b int64, op byte) bool {
	switch {
	case a < b:
		return orderCmp(-1, op)
	case a > b:
		return orderCmp(1, op)
	}
	return orderCmp(0, op)
}

func floatCmp(a, b float64, op byte) bool {
	switch op {
	case CmpLt:
		return a < b
	case CmpGt:
		return a > b
	case CmpEq:
		return a == b
	case CmpNe:
		return a != b
	case CmpLe:
		return a <= b
	default:
		return a >= b
	}
}

func compareStrings(a, b string) int { return strings.Compare(a, b) }
func compareBytes(a, b []byte) int   { return bytes.Compare(a, b) }

func (m *Machine) arrayGet(idx int64) *ExecutionError {
	seq := m.pop().Seq()
	if idx < 0 || idx >= int64(len(seq.Elems)) {
		return execErrorf(diagnostics.ErrR003IndexOutOfRange,
			"index %d out of range for array of length %d", idx, len(seq.Elems))
	}
	m.push(seq.Elems[idx])
	return nil
}

func (m *Machine) bytesGet(idx int64) *ExecutionError {
	bs := m.pop().Bytes()
	if idx < 0 || idx >= int64(len(bs)) {
		return execErrorf(diagnostics.ErrR003IndexOutOfRange,
			"index %d out of range for bytes of length %d", idx, len(bs))
	}
	m.push(value.RawInt(int64(bs[idx])))
	return nil
}

// contains implements membership over arrays and bytes. The needle is on
// top, the container below it.
func (m *Machine) contains() *ExecutionError {
	needle := m.pop()
	container := m.pop()
	if bs, ok := container.Ref.([]byte); ok {
		want := needle.Int()
		for _, b := range bs {
			if int64(b) == want {
				m.push(value.RawBool(true))
				return nil
			}
		}
		m.push(value.RawBool(false))
		return nil
	}
	for _, e := range container.Seq().Elems {
		if value.RawEqual(e, needle) {
			m.push(value.RawBool(true))
			return nil
		}
	}
	m.push(value.RawBool(false))
	return nil
}

func (m *Machine) bytesToStr(bs []byte) *ExecutionError {
	if !utf8.Valid(bs) {
		return execErrorf(diagnostics.ErrR005InvalidUtf8, "bytes are not valid UTF-8")
	}
	m.push(value.RawStr(m.arena.String(string(bs))))
	return nil
}

// cast converts the top of stack to the target type. The source type is
// implied: the analyzer only admits the four-entry cast table.
func (m *Machine) cast(target *types.Type) *ExecutionError {
	switch target.Kind() {
	case types.KindFloat: // Int -> Float
		m.push(value.RawFloat(float64(m.pop().Int())))
	case types.KindInt: // Float -> Int
		m.push(value.RawInt(floatToInt(m.pop().Float())))
	case types.KindBytes: // Str -> Bytes
		m.push(value.RawBytes(m.arena.Bytes([]byte(m.pop().Str()))))
	case types.KindStr: // Bytes -> Str
		return m.bytesToStr(m.pop().Bytes())
	default:
		return execErrorf(diagnostics.ErrR006InvalidCast, "invalid cast target %s", target)
	}
	return nil
}

// floatToInt truncates toward zero with NaN -> 0, +Inf -> MaxInt64,
// -Inf -> MinInt64, and saturation on finite overflow.
func floatToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1), f >= math.MaxInt64:
		return math.MaxInt64
	case math.IsInf(f, -1), f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func (m *Machine) format(spec FormatSpec) {
	n := len(spec.ArgTypes)
	args := m.stack[len(m.stack)-n:]
	var sb strings.Builder
	sb.WriteString(spec.Texts[0])
	for i := 0; i < n; i++ {
		sb.WriteString(value.Display(value.Value{Type: spec.ArgTypes[i], Raw: args[i]}))
		sb.WriteString(spec.Texts[i+1])
	}
	m.stack = m.stack[:len(m.stack)-n]
	m.push(value.RawStr(m.arena.String(sb.String())))
}

// call invokes a native function object. Arguments were pushed first, then
// the callable.
func (m *Machine) call(argc int) *ExecutionError {
	fn := m.pop().Func()
	if fn == nil {
		return execErrorf(diagnostics.ErrR009NativeFunction, "called value is not a function")
	}
	maxDepth := m.opts.MaxRecursionDepth
	if maxDepth == 0 {
		maxDepth = config.DefaultMaxRecursionDepth
	}
	if m.callDepth >= maxDepth {
		return execErrorf(diagnostics.ErrR007DepthExceeded,
			"recursion depth limit of %d exceeded", maxDepth)
	}

	params := fn.Type().Params()
	args := make([]value.Value, argc)
	base := len(m.stack) - argc
	for i := 0; i < argc; i++ {
		args[i] = value.Value{Type: params[i], Raw: m.stack[base+i]}
	}
	m.stack = m.stack[:base]

	m.callDepth++
	result, err := fn.CallUnchecked(m.arena, m.tm, args)
	m.callDepth--
	if err != nil {
		if ee, ok := err.(*ExecutionError); ok {
			return ee
		}
		return execErrorf(diagnostics.ErrR009NativeFunction, "%s", err)
	}
	m.push(result.Raw)
	return nil
}
