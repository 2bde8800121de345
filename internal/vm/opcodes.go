// Package vm implements the Melbi bytecode compiler and stack virtual
// machine.
//
// Every instruction is exactly 2 bytes: an 8-bit opcode and an 8-bit
// operand (0 when unused). Opcode 0x00 is Halt so zero-filled memory is
// inert. A WideArg prefix widens the next instruction's operand to 16 bits.
// Jump offsets are signed 8-bit, relative to the next instruction, counted
// in instructions.
package vm

// Opcode is the first byte of an instruction.
type Opcode byte

const (
	// Special
	OP_HALT Opcode = 0x00

	// Stack & constants (0x01 - 0x0F)
	OP_CONST_LOAD  Opcode = 0x01 // push constant pool[operand]
	OP_CONST_INT   Opcode = 0x02 // push small signed int (operand is int8)
	OP_CONST_UINT  Opcode = 0x03 // push unsigned byte
	OP_CONST_TRUE  Opcode = 0x04
	OP_CONST_FALSE Opcode = 0x05
	OP_WIDE_ARG    Opcode = 0x06 // high byte for the next instruction's operand
	OP_DUP         Opcode = 0x07
	OP_POP         Opcode = 0x09
	OP_SWAP        Opcode = 0x0A
	OP_LOAD_LOCAL  Opcode = 0x0B
	OP_STORE_LOCAL Opcode = 0x0C

	// Integer arithmetic (0x10 - 0x1F); operand encodes the operation as an
	// ASCII character: + - * / % ^
	OP_INT_BINOP Opcode = 0x10
	OP_NEG_INT   Opcode = 0x11
	// Integer comparison; operand is one of < > = ! l g
	OP_INT_CMP Opcode = 0x14

	// Float arithmetic (0x20 - 0x2F); same operand encoding
	OP_FLOAT_BINOP Opcode = 0x20
	OP_NEG_FLOAT   Opcode = 0x21
	OP_FLOAT_CMP   Opcode = 0x22

	// Logical (0x30 - 0x37)
	OP_AND Opcode = 0x30
	OP_OR  Opcode = 0x31
	OP_NOT Opcode = 0x32

	// Control flow (0x38 - 0x4F); offsets are signed 8-bit instruction counts
	OP_JUMP                   Opcode = 0x38
	OP_JUMP_IF_FALSE          Opcode = 0x39
	OP_JUMP_IF_TRUE           Opcode = 0x3A
	OP_JUMP_IF_FALSE_NO_POP   Opcode = 0x3B
	OP_JUMP_IF_TRUE_NO_POP    Opcode = 0x3C
	OP_RETURN                 Opcode = 0x3E
	OP_CALL                   Opcode = 0x3F // operand = argument count
	OP_PUSH_OTHERWISE         Opcode = 0x42 // operand = offset to fallback code
	OP_POP_OTHERWISE          Opcode = 0x43
	OP_POP_OTHERWISE_AND_JUMP Opcode = 0x44 // operand = offset past fallback

	// Arrays (0x60 - 0x6F)
	OP_MAKE_ARRAY      Opcode = 0x60 // operand = element count
	OP_ARRAY_LEN       Opcode = 0x61
	OP_ARRAY_GET       Opcode = 0x62
	OP_ARRAY_GET_CONST Opcode = 0x63 // operand = constant index
	OP_ARRAY_CONTAINS  Opcode = 0x67 // membership test for arrays and bytes

	// Maps (0x70 - 0x7F)
	OP_MAKE_MAP Opcode = 0x70 // operand = pair count
	OP_MAP_LEN  Opcode = 0x71
	OP_MAP_GET  Opcode = 0x72
	OP_MAP_HAS  Opcode = 0x73

	// Records (0x80 - 0x8F)
	OP_MAKE_RECORD Opcode = 0x80 // operand = field count
	OP_RECORD_GET  Opcode = 0x81 // operand = canonical field index

	// Strings (0x90 - 0x9F)
	OP_STRING_FORMAT Opcode = 0x98 // operand = format spec index
	OP_STRING_CMP    Opcode = 0x99 // operand as in OP_INT_CMP

	// Bytes (0xA0 - 0xAF)
	OP_BYTES_GET       Opcode = 0xA2
	OP_BYTES_GET_CONST Opcode = 0xA3
	OP_STR_TO_BYTES    Opcode = 0xA5
	OP_BYTES_TO_STR    Opcode = 0xA6
	OP_BYTES_CMP       Opcode = 0xA7

	// Types & structural equality (0xB0 - 0xBF)
	OP_CAST   Opcode = 0xB0 // operand = type pool index
	OP_EQ     Opcode = 0xB5 // structural equality for containers
	OP_NOT_EQ Opcode = 0xB6

	// Meta
	OP_NOP Opcode = 0xD0
)

// OpcodeNames maps opcodes to their display names.
var OpcodeNames = map[Opcode]string{
	OP_HALT:                   "Halt",
	OP_CONST_LOAD:             "ConstLoad",
	OP_CONST_INT:              "ConstInt",
	OP_CONST_UINT:             "ConstUInt",
	OP_CONST_TRUE:             "ConstTrue",
	OP_CONST_FALSE:            "ConstFalse",
	OP_WIDE_ARG:               "WideArg",
	OP_DUP:                    "Dup",
	OP_POP:                    "Pop",
	OP_SWAP:                   "Swap",
	OP_LOAD_LOCAL:             "LoadLocal",
	OP_STORE_LOCAL:            "StoreLocal",
	OP_INT_BINOP:              "IntBinOp",
	OP_NEG_INT:                "NegInt",
	OP_INT_CMP:                "IntCmpOp",
	OP_FLOAT_BINOP:            "FloatBinOp",
	OP_NEG_FLOAT:              "NegFloat",
	OP_FLOAT_CMP:              "FloatCmpOp",
	OP_AND:                    "And",
	OP_OR:                     "Or",
	OP_NOT:                    "Not",
	OP_JUMP:                   "Jump",
	OP_JUMP_IF_FALSE:          "JumpIfFalse",
	OP_JUMP_IF_TRUE:           "JumpIfTrue",
	OP_JUMP_IF_FALSE_NO_POP:   "JumpIfFalseNoPop",
	OP_JUMP_IF_TRUE_NO_POP:    "JumpIfTrueNoPop",
	OP_RETURN:                 "Return",
	OP_CALL:                   "Call",
	OP_PUSH_OTHERWISE:         "PushOtherwise",
	OP_POP_OTHERWISE:          "PopOtherwise",
	OP_POP_OTHERWISE_AND_JUMP: "PopOtherwiseAndJump",
	OP_MAKE_ARRAY:             "MakeArray",
	OP_ARRAY_LEN:              "ArrayLen",
	OP_ARRAY_GET:              "ArrayGet",
	OP_ARRAY_GET_CONST:        "ArrayGetConst",
	OP_ARRAY_CONTAINS:         "ArrayContains",
	OP_MAKE_MAP:               "MakeMap",
	OP_MAP_LEN:                "MapLen",
	OP_MAP_GET:                "MapGet",
	OP_MAP_HAS:                "MapHas",
	OP_MAKE_RECORD:            "MakeRecord",
	OP_RECORD_GET:             "RecordGet",
	OP_STRING_FORMAT:          "StringFormat",
	OP_STRING_CMP:             "StringCmpOp",
	OP_BYTES_GET:              "BytesGet",
	OP_BYTES_GET_CONST:        "BytesGetConst",
	OP_STR_TO_BYTES:           "StringToBytes",
	OP_BYTES_TO_STR:           "BytesToString",
	OP_BYTES_CMP:              "BytesCmpOp",
	OP_CAST:                   "Cast",
	OP_EQ:                     "Eq",
	OP_NOT_EQ:                 "NotEq",
	OP_NOP:                    "Nop",
}

// Comparison operand encoding shared by the *CmpOp instructions.
const (
	CmpLt byte = '<'
	CmpGt byte = '>'
	CmpEq byte = '='
	CmpNe byte = '!'
	CmpLe byte = 'l'
	CmpGe byte = 'g'
)

// Instruction is a fixed-width 16-bit instruction.
type Instruction struct {
	Op  Opcode
	Arg byte
}

// Bytes returns the 2-byte encoding.
func (i Instruction) Bytes() [2]byte { return [2]byte{byte(i.Op), i.Arg} }

// DecodeInstruction rebuilds an instruction from its encoding.
func DecodeInstruction(b [2]byte) Instruction {
	return Instruction{Op: Opcode(b[0]), Arg: b[1]}
}
