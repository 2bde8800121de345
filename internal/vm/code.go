package vm

import (
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// FormatSpec is the static shape of one format string: N+1 text fragments
// around N embedded expressions, plus the type of each expression so the VM
// can render untyped words.
type FormatSpec struct {
	Texts    []string
	ArgTypes []*types.Type
}

// Code is the compiled form of an expression.
type Code struct {
	// Constants is the deduplicated constant pool. The type of each entry
	// is implied by the instructions that load it.
	Constants []value.Raw

	// Types holds cast target types referenced by OP_CAST operands.
	Types []*types.Type

	// Formats holds format string descriptors referenced by
	// OP_STRING_FORMAT operands.
	Formats []FormatSpec

	// Instructions is the fixed-width instruction stream.
	Instructions []Instruction

	// NumLocals is the number of local slots to reserve, including
	// parameter slots at the front.
	NumLocals int

	// MaxStackSize is the exact maximum operand stack depth observed
	// during compilation.
	MaxStackSize int
}
