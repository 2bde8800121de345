// Package melbi is the embedding API: hosts construct an Engine, bind
// globals, compile expressions against typed parameter lists, and execute
// them repeatedly with different arguments.
package melbi

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/melbi-lang/melbi/internal/analyzer"
	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/config"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/parser"
	"github.com/melbi-lang/melbi/internal/token"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
	"github.com/melbi-lang/melbi/internal/vm"
)

// EngineOptions configure a new engine.
type EngineOptions struct {
	// MaxParseDepth bounds expression nesting (0 = default).
	MaxParseDepth int

	// DefaultExecution is used by Run when no per-call options are given.
	DefaultExecution ExecutionOptions
}

// ExecutionOptions bound a single evaluation.
type ExecutionOptions struct {
	// MaxRecursionDepth bounds nested calls (0 = default).
	MaxRecursionDepth int

	// MaxInstructions caps executed instructions (0 = unlimited).
	MaxInstructions int64
}

// Param is a named, typed expression parameter.
type Param struct {
	Name string
	Type *types.Type
}

// CompileOptions configure one compilation.
type CompileOptions struct {
	// MaxParseDepth overrides the engine's parse depth limit (0 = engine).
	MaxParseDepth int
}

// Engine owns the type interner and the global environment. An engine and
// its arena are confined to the goroutine that created them.
type Engine struct {
	id      string
	arena   *arena.Arena
	tm      *types.Manager
	opts    EngineOptions
	sink    diagnostics.Sink
	globals []vm.Global
}

// New creates an engine backed by the given arena. The sink receives every
// diagnostic the engine produces; pass diagnostics.Discard to ignore them.
func New(a *arena.Arena, opts EngineOptions, sink diagnostics.Sink) *Engine {
	if sink == nil {
		sink = diagnostics.Discard
	}
	return &Engine{
		id:    uuid.NewString(),
		arena: a,
		tm:    types.NewManager(a),
		opts:  opts,
		sink:  sink,
	}
}

// ID returns the engine's unique identity, attached to diagnostics so
// hosts running many engines can attribute output.
func (e *Engine) ID() string { return e.id }

// TypeManager returns the engine's type interner.
func (e *Engine) TypeManager() *types.Manager { return e.tm }

// Bind adds a value to the global environment. Globals are locked in at
// compile time; rebinding after compilation does not affect already
// compiled expressions.
func (e *Engine) Bind(name string, v value.Value) {
	for i := range e.globals {
		if e.globals[i].Name == name {
			e.globals[i].Value = v
			return
		}
	}
	e.globals = append(e.globals, vm.Global{Name: name, Value: v})
}

// BindFunc binds a Go function as a native Melbi function, deriving its
// Melbi type from the Go signature via reflection.
func (e *Engine) BindFunc(name string, fn any) error {
	f, err := newGoFunc(e.tm, name, fn)
	if err != nil {
		return err
	}
	e.Bind(name, value.Func(f))
	return nil
}

func (e *Engine) emit(d *diagnostics.Diagnostic) *diagnostics.Diagnostic {
	d.Related = append(d.Related, diagnostics.Related{
		Message: "engine " + e.id,
	})
	e.sink(d)
	return d
}

// CompiledExpression is a type-checked, compiled expression ready for
// repeated execution.
type CompiledExpression struct {
	engine  *Engine
	source  string
	params  []Param
	retType *types.Type
	code    *vm.Code
}

// Compile parses, analyzes, and lowers source against the given parameter
// list and the engine's globals.
func (e *Engine) Compile(opts CompileOptions, source string, params []Param) (*CompiledExpression, error) {
	maxDepth := opts.MaxParseDepth
	if maxDepth == 0 {
		maxDepth = e.opts.MaxParseDepth
	}
	if maxDepth == 0 {
		maxDepth = config.DefaultMaxParseDepth
	}

	parsed, perr := parser.ParseWithMaxDepth(source, maxDepth)
	if perr != nil {
		d := diagnostics.New(perr.Code, source, perr.Span, perr.Msg)
		if perr.Help != "" {
			d.WithHelp(perr.Help)
		}
		return nil, e.emit(d)
	}

	globalScope := make([]analyzer.Entry[*types.Type], len(e.globals))
	for i, g := range e.globals {
		globalScope[i] = analyzer.Entry[*types.Type]{Name: g.Name, Value: g.Value.Type}
	}
	paramScope := make([]analyzer.Entry[*types.Type], len(params))
	for i, p := range params {
		paramScope[i] = analyzer.Entry[*types.Type]{Name: p.Name, Value: p.Type}
	}

	typed, aerr := analyzer.Analyze(e.tm, e.arena, parsed, globalScope, paramScope)
	if aerr != nil {
		return nil, e.emit(aerr)
	}

	vmParams := make([]vm.Param, len(params))
	for i, p := range params {
		vmParams[i] = vm.Param{Name: p.Name, Type: p.Type}
	}
	code, cerr := vm.Compile(typed, vmParams, e.globals)
	if cerr != nil {
		ce := cerr.(*vm.CompileError)
		return nil, e.emit(diagnostics.New(ce.Code, source, ce.Span, ce.Msg))
	}

	return &CompiledExpression{
		engine:  e,
		source:  source,
		params:  append([]Param(nil), params...),
		retType: typed.Type,
		code:    code,
	}, nil
}

// Params returns the expression's parameter list.
func (c *CompiledExpression) Params() []Param { return c.params }

// ReturnType returns the expression's result type.
func (c *CompiledExpression) ReturnType() *types.Type { return c.retType }

// Code returns the compiled bytecode (for inspection and disassembly).
func (c *CompiledExpression) Code() *vm.Code { return c.code }

// Run validates the arguments against the parameter list and executes.
// Argument types must be pointer-equal to the parameter types.
func (c *CompiledExpression) Run(valueArena *arena.Arena, args []value.Value, opts *ExecutionOptions) (value.Value, error) {
	if len(args) != len(c.params) {
		return value.Value{}, c.engine.emit(diagnostics.New(
			diagnostics.ErrA001ArgumentCount, c.source, c.spanAll(),
			fmt.Sprintf("argument count mismatch: expected %d, got %d", len(c.params), len(args))))
	}
	for i, a := range args {
		if a.Type != c.params[i].Type {
			return value.Value{}, c.engine.emit(diagnostics.New(
				diagnostics.ErrA002ArgumentType, c.source, c.spanAll(),
				fmt.Sprintf("type mismatch for parameter '%s': expected %s, got %s",
					c.params[i].Name, c.params[i].Type, a.Type)))
		}
	}
	return c.RunUnchecked(valueArena, args, opts)
}

// RunUnchecked executes without argument validation; the caller promises
// that args match the parameter types exactly.
func (c *CompiledExpression) RunUnchecked(valueArena *arena.Arena, args []value.Value, opts *ExecutionOptions) (value.Value, error) {
	eo := c.engine.opts.DefaultExecution
	if opts != nil {
		eo = *opts
	}
	raws := make([]value.Raw, len(args))
	for i, a := range args {
		raws[i] = a.Raw
	}
	raw, err := vm.Run(c.code, raws, valueArena, c.engine.tm, vm.ExecOptions{
		MaxRecursionDepth: eo.MaxRecursionDepth,
		MaxInstructions:   eo.MaxInstructions,
	})
	if err != nil {
		if ee, ok := err.(*vm.ExecutionError); ok {
			c.engine.emit(diagnostics.New(ee.Code, c.source, c.spanAll(), ee.Msg))
		}
		return value.Value{}, err
	}
	return value.Value{Type: c.retType, Raw: raw}, nil
}

func (c *CompiledExpression) spanAll() token.Span {
	return token.Span{Start: 0, End: len(c.source)}
}
