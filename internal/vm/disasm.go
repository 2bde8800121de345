package vm

import (
	"fmt"
	"strings"

	"github.com/melbi-lang/melbi/internal/value"
)

// Disassemble renders the code object as a human-readable listing: the
// header (locals, stack, pools) followed by one line per instruction.
func Disassemble(code *Code) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "locals=%d max_stack=%d constants=%d\n",
		code.NumLocals, code.MaxStackSize, len(code.Constants))
	for i, c := range code.Constants {
		fmt.Fprintf(&sb, "  const %-3d %s\n", i, rawSummary(c))
	}
	for i, t := range code.Types {
		fmt.Fprintf(&sb, "  type  %-3d %s\n", i, t)
	}
	for i, in := range code.Instructions {
		fmt.Fprintf(&sb, "%04d  %s\n", i, FormatInstruction(in))
	}
	return sb.String()
}

// FormatInstruction renders a single instruction with its operand in the
// most readable form for that opcode.
func FormatInstruction(in Instruction) string {
	name := OpcodeNames[in.Op]
	if name == "" {
		return fmt.Sprintf("Unknown(0x%02X, %d)", byte(in.Op), in.Arg)
	}
	switch in.Op {
	case OP_HALT, OP_CONST_TRUE, OP_CONST_FALSE, OP_DUP, OP_POP, OP_SWAP,
		OP_NEG_INT, OP_NEG_FLOAT, OP_AND, OP_OR, OP_NOT, OP_RETURN,
		OP_POP_OTHERWISE, OP_ARRAY_LEN, OP_ARRAY_GET, OP_ARRAY_CONTAINS,
		OP_MAP_LEN, OP_MAP_GET, OP_MAP_HAS, OP_BYTES_GET, OP_STR_TO_BYTES,
		OP_BYTES_TO_STR, OP_EQ, OP_NOT_EQ, OP_NOP:
		return name

	case OP_INT_BINOP, OP_FLOAT_BINOP:
		return fmt.Sprintf("%s(%c)", name, in.Arg)

	case OP_INT_CMP, OP_FLOAT_CMP, OP_STRING_CMP, OP_BYTES_CMP:
		return fmt.Sprintf("%s(%s)", name, cmpName(in.Arg))

	case OP_CONST_INT:
		return fmt.Sprintf("%s(%d)", name, int8(in.Arg))

	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE,
		OP_JUMP_IF_FALSE_NO_POP, OP_JUMP_IF_TRUE_NO_POP,
		OP_PUSH_OTHERWISE, OP_POP_OTHERWISE_AND_JUMP:
		return fmt.Sprintf("%s(%+d)", name, int8(in.Arg))
	}
	return fmt.Sprintf("%s(%d)", name, in.Arg)
}

func cmpName(op byte) string {
	switch op {
	case CmpLt:
		return "<"
	case CmpGt:
		return ">"
	case CmpEq:
		return "=="
	case CmpNe:
		return "!="
	case CmpLe:
		return "<="
	case CmpGe:
		return ">="
	}
	return fmt.Sprintf("0x%02X", op)
}

func rawSummary(r value.Raw) string {
	switch ref := r.Ref.(type) {
	case nil:
		return fmt.Sprintf("word(%d)", int64(r.Bits))
	case string:
		return fmt.Sprintf("str(%q)", ref)
	case []byte:
		return fmt.Sprintf("bytes(%d bytes)", len(ref))
	case *value.Seq:
		return fmt.Sprintf("seq(%d elems)", len(ref.Elems))
	case *value.Dict:
		return fmt.Sprintf("map(%d entries)", len(ref.Keys))
	default:
		return "object"
	}
}
