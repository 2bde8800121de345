// Package diagnostics defines the error taxonomy shared by every compiler
// pass and the renderer that presents diagnostics to users.
package diagnostics

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/token"
)

// Severity classifies a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return "unknown"
}

// Code is a stable short identifier such as "E001".
type Code string

// Parse error codes.
const (
	ErrP001UnexpectedToken     Code = "P001"
	ErrP002InvalidInteger      Code = "P002"
	ErrP003InvalidFloat        Code = "P003"
	ErrP004InvalidStringEscape Code = "P004"
	ErrP005InvalidBytesLiteral Code = "P005"
	ErrP006UnpairedBrace       Code = "P006"
	ErrP007DepthExceeded       Code = "P007"
	ErrP008MissingExpression   Code = "P008"
)

// Type error codes.
const (
	ErrE001TypeMismatch          Code = "E001"
	ErrE002UnboundVariable       Code = "E002"
	ErrE003OccursCheck           Code = "E003"
	ErrE004ConstraintViolation   Code = "E004"
	ErrE005FieldCountMismatch    Code = "E005"
	ErrE006FieldNameMismatch     Code = "E006"
	ErrE007ParamCountMismatch    Code = "E007"
	ErrE008NotIndexable          Code = "E008"
	ErrE009UnknownField          Code = "E009"
	ErrE010CannotInferRecordType Code = "E010"
	ErrE011NotARecord            Code = "E011"
	ErrE012InvalidTypeExpression Code = "E012"
	ErrE013InvalidCast           Code = "E013"
	ErrE014DuplicateParameter    Code = "E014"
	ErrE015DuplicateBinding      Code = "E015"
	ErrE016NotFormattable        Code = "E016"
	ErrE017UnsupportedFeature    Code = "E017"
	ErrE018DuplicateMapKey       Code = "E018"
)

// API error codes.
const (
	ErrA001ArgumentCount Code = "A001"
	ErrA002ArgumentType  Code = "A002"
)

// Execution error codes.
const (
	ErrR001DivisionByZero     Code = "R001"
	ErrR002NegativeExponent   Code = "R002"
	ErrR003IndexOutOfRange    Code = "R003"
	ErrR004KeyNotFound        Code = "R004"
	ErrR005InvalidUtf8        Code = "R005"
	ErrR006InvalidCast        Code = "R006"
	ErrR007DepthExceeded      Code = "R007"
	ErrR008InstructionLimit   Code = "R008"
	ErrR009NativeFunction     Code = "R009"
	ErrR010StackOverflow      Code = "R010"
	ErrR011InvalidInstruction Code = "R011"
)

// Related points at an additional location that explains a diagnostic, for
// example where a conflicting type was introduced.
type Related struct {
	Span    token.Span
	Message string
}

// Diagnostic is a user-facing message tied to a source span.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Help     string
	Source   string
	Span     token.Span
	Related  []Related
}

// Error implements the error interface so diagnostics can travel through
// ordinary error returns.
func (d *Diagnostic) Error() string {
	if d.Span.Len() > 0 || d.Span.Start > 0 {
		return fmt.Sprintf("%s[%s]: %s (at byte %d..%d)", d.Severity, d.Code, d.Message, d.Span.Start, d.Span.End)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
}

// New creates an error-severity diagnostic.
func New(code Code, source string, span token.Span, message string) *Diagnostic {
	return &Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  message,
		Source:   source,
		Span:     span,
	}
}

// WithHelp attaches a help string and returns the diagnostic.
func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

// WithRelated attaches a related location and returns the diagnostic.
func (d *Diagnostic) WithRelated(span token.Span, message string) *Diagnostic {
	d.Related = append(d.Related, Related{Span: span, Message: message})
	return d
}

// Sink receives diagnostics as they are produced. The engine calls the sink
// for every diagnostic before returning the error to the caller.
type Sink func(d *Diagnostic)

// Discard is a sink that drops everything.
func Discard(*Diagnostic) {}
