package vm

import (
	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// ExecOptions are the host-supplied execution limits.
type ExecOptions struct {
	// MaxRecursionDepth bounds nested native-function calls. 0 means the
	// default from config.
	MaxRecursionDepth int

	// MaxInstructions caps the number of executed instructions. 0 means
	// unlimited.
	MaxInstructions int64
}

type otherwiseFrame struct {
	fallback int // instruction index to resume at
	depth    int // operand stack depth to restore
}

// Machine executes bytecode against an arena and a locals environment.
type Machine struct {
	code   *Code
	arena  *arena.Arena
	tm     *types.Manager
	opts   ExecOptions
	stack  []value.Raw
	locals []value.Raw
	frames []otherwiseFrame

	executed  int64
	callDepth int
}

// Run executes code with the given argument words bound to the leading
// local slots.
func Run(code *Code, args []value.Raw, a *arena.Arena, tm *types.Manager, opts ExecOptions) (value.Raw, error) {
	m := &Machine{
		code:   code,
		arena:  a,
		tm:     tm,
		opts:   opts,
		stack:  make([]value.Raw, 0, code.MaxStackSize),
		locals: make([]value.Raw, code.NumLocals),
	}
	copy(m.locals, args)
	return m.run()
}

func (m *Machine) push(r value.Raw) { m.stack = append(m.stack, r) }

func (m *Machine) pop() value.Raw {
	r := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return r
}

func (m *Machine) top() value.Raw { return m.stack[len(m.stack)-1] }

// recoverable reports whether an execution error may be absorbed by an
// otherwise handler. Limit errors always terminate so that hosts can rely
// on instruction counting for cancellation.
func recoverable(err *ExecutionError) bool {
	switch err.Code {
	case diagnostics.ErrR007DepthExceeded, diagnostics.ErrR008InstructionLimit:
		return false
	}
	return true
}

func (m *Machine) run() (value.Raw, error) {
	ip := 0
	wide := -1
	ins := m.code.Instructions

	for ip >= 0 && ip < len(ins) {
		if m.opts.MaxInstructions > 0 {
			m.executed++
			if m.executed > m.opts.MaxInstructions {
				return value.Raw{}, execErrorf(diagnostics.ErrR008InstructionLimit,
					"instruction limit of %d exceeded", m.opts.MaxInstructions)
			}
		}

		in := ins[ip]
		ip++

		// WideArg widens the next instruction's operand to 16 bits.
		if in.Op == OP_WIDE_ARG {
			wide = int(in.Arg) << 8
			continue
		}
		operand := int(in.Arg)
		if wide >= 0 {
			operand |= wide
			wide = -1
		}

		var err *ExecutionError
		switch in.Op {
		case OP_HALT:
			return value.Raw{}, execErrorf(diagnostics.ErrR011InvalidInstruction,
				"executed Halt at instruction %d", ip-1)

		case OP_NOP:
			// nothing

		case OP_CONST_LOAD:
			m.push(m.code.Constants[operand])
		case OP_CONST_INT:
			m.push(value.RawInt(int64(int8(in.Arg))))
		case OP_CONST_UINT:
			m.push(value.RawInt(int64(operand)))
		case OP_CONST_TRUE:
			m.push(value.RawBool(true))
		case OP_CONST_FALSE:
			m.push(value.RawBool(false))

		case OP_DUP:
			m.push(m.top())
		case OP_POP:
			m.pop()
		case OP_SWAP:
			n := len(m.stack)
			m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]

		case OP_LOAD_LOCAL:
			m.push(m.locals[operand])
		case OP_STORE_LOCAL:
			m.locals[operand] = m.pop()

		case OP_INT_BINOP:
			err = m.intBinOp(in.Arg)
		case OP_NEG_INT:
			m.push(value.RawInt(-m.pop().Int()))
		case OP_INT_CMP:
			b, a := m.pop().Int(), m.pop().Int()
			m.push(value.RawBool(intCmp(a, b, in.Arg)))

		case OP_FLOAT_BINOP:
			m.floatBinOp(in.Arg)
		case OP_NEG_FLOAT:
			m.push(value.RawFloat(-m.pop().Float()))
		case OP_FLOAT_CMP:
			b, a := m.pop().Float(), m.pop().Float()
			m.push(value.RawBool(floatCmp(a, b, in.Arg)))

		case OP_AND:
			b, a := m.pop().Bool(), m.pop().Bool()
			m.push(value.RawBool(a && b))
		case OP_OR:
			b, a := m.pop().Bool(), m.pop().Bool()
			m.push(value.RawBool(a || b))
		case OP_NOT:
			m.push(value.RawBool(!m.pop().Bool()))

		case OP_JUMP:
			ip += int(int8(in.Arg))
		case OP_JUMP_IF_FALSE:
			if !m.pop().Bool() {
				ip += int(int8(in.Arg))
			}
		case OP_JUMP_IF_TRUE:
			if m.pop().Bool() {
				ip += int(int8(in.Arg))
			}
		case OP_JUMP_IF_FALSE_NO_POP:
			if !m.top().Bool() {
				ip += int(int8(in.Arg))
			}
		case OP_JUMP_IF_TRUE_NO_POP:
			if m.top().Bool() {
				ip += int(int8(in.Arg))
			}

		case OP_RETURN:
			return m.pop(), nil

		case OP_CALL:
			err = m.call(operand)

		case OP_PUSH_OTHERWISE:
			m.frames = append(m.frames, otherwiseFrame{
				fallback: ip + int(int8(in.Arg)),
				depth:    len(m.stack),
			})
		case OP_POP_OTHERWISE:
			m.frames = m.frames[:len(m.frames)-1]
		case OP_POP_OTHERWISE_AND_JUMP:
			m.frames = m.frames[:len(m.frames)-1]
			ip += int(int8(in.Arg))

		case OP_MAKE_ARRAY, OP_MAKE_RECORD:
			elems := make([]value.Raw, operand)
			copy(elems, m.stack[len(m.stack)-operand:])
			m.stack = m.stack[:len(m.stack)-operand]
			m.push(value.RawSeq(&value.Seq{Elems: elems}))

		case OP_MAKE_MAP:
			n := operand
			keys := make([]value.Raw, n)
			vals := make([]value.Raw, n)
			base := len(m.stack) - 2*n
			for i := 0; i < n; i++ {
				keys[i] = m.stack[base+2*i]
				vals[i] = m.stack[base+2*i+1]
			}
			m.stack = m.stack[:base]
			m.push(value.RawDict(value.NewDict(keys, vals)))

		case OP_ARRAY_LEN:
			m.push(value.RawInt(int64(len(m.pop().Seq().Elems))))
		case OP_ARRAY_GET:
			err = m.arrayGet(m.pop().Int())
		case OP_ARRAY_GET_CONST:
			err = m.arrayGet(int64(operand))
		case OP_ARRAY_CONTAINS:
			err = m.contains()

		case OP_MAP_LEN:
			m.push(value.RawInt(int64(len(m.pop().Dict().Keys))))
		case OP_MAP_GET:
			key := m.pop()
			dict := m.pop().Dict()
			v, ok := dict.Lookup(key)
			if !ok {
				err = execErrorf(diagnostics.ErrR004KeyNotFound, "key not found in map")
			} else {
				m.push(v)
			}
		case OP_MAP_HAS:
			key := m.pop()
			dict := m.pop().Dict()
			_, ok := dict.Lookup(key)
			m.push(value.RawBool(ok))

		case OP_RECORD_GET:
			m.push(m.pop().Seq().Elems[operand])

		case OP_STRING_CMP:
			b, a := m.pop().Str(), m.pop().Str()
			m.push(value.RawBool(orderCmp(compareStrings(a, b), in.Arg)))
		case OP_BYTES_CMP:
			b, a := m.pop().Bytes(), m.pop().Bytes()
			m.push(value.RawBool(orderCmp(compareBytes(a, b), in.Arg)))

		case OP_BYTES_GET:
			err = m.bytesGet(m.pop().Int())
		case OP_BYTES_GET_CONST:
			err = m.bytesGet(int64(operand))

		case OP_STR_TO_BYTES:
			m.push(value.RawBytes(m.arena.Bytes([]byte(m.pop().Str()))))
		case OP_BYTES_TO_STR:
			err = m.bytesToStr(m.pop().Bytes())

		case OP_EQ:
			b, a := m.pop(), m.pop()
			m.push(value.RawBool(value.RawEqual(a, b)))
		case OP_NOT_EQ:
			b, a := m.pop(), m.pop()
			m.push(value.RawBool(!value.RawEqual(a, b)))

		case OP_CAST:
			err = m.cast(m.code.Types[operand])

		case OP_STRING_FORMAT:
			m.format(m.code.Formats[operand])

		default:
			return value.Raw{}, execErrorf(diagnostics.ErrR011InvalidInstruction,
				"invalid opcode 0x%02X at instruction %d", byte(in.Op), ip-1)
		}

		if err != nil {
			if len(m.frames) > 0 && recoverable(err) {
				frame := m.frames[len(m.frames)-1]
				m.frames = m.frames[:len(m.frames)-1]
				m.stack = m.stack[:frame.depth]
				ip = frame.fallback
				continue
			}
			return value.Raw{}, err
		}
	}
	return value.Raw{}, execErrorf(diagnostics.ErrR011InvalidInstruction,
		"instruction stream ended without Return")
}
