package vm

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/token"
)

// CompileError is a failure during bytecode lowering (for example a jump
// out of 8-bit range, or a form the compiler does not lower yet).
type CompileError struct {
	Code diagnostics.Code
	Span token.Span
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// ExecutionError is a runtime failure. Errors occurring under an
// `otherwise` handler are recovered by the VM, except the depth and
// instruction limit errors (R007, R008), which always surface.
type ExecutionError struct {
	Code diagnostics.Code
	Msg  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func execErrorf(code diagnostics.Code, format string, args ...any) *ExecutionError {
	return &ExecutionError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
