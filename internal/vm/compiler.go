package vm

import (
	"fmt"

	"github.com/melbi-lang/melbi/internal/analyzer"
	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// Param is a compiled expression parameter; parameters occupy the first
// local slots in declaration order.
type Param struct {
	Name string
	Type *types.Type
}

// Global is a host-supplied binding baked into the constant pool at
// compile time.
type Global struct {
	Name  string
	Value value.Value
}

// Compiler lowers a typed AST to bytecode with exact operand stack
// accounting.
type Compiler struct {
	constants   []value.Raw
	constantMap map[string]int
	globalMap   map[string]int

	typePool []*types.Type
	typeMap  map[*types.Type]int

	formats []FormatSpec

	instructions []Instruction

	// Scope stack for where bindings: each scope maps a name to its local
	// slot. A fresh slot is always allocated, even when shadowing, so the
	// outer slot is re-exposed on scope pop.
	scopes    []map[string]int
	numLocals int

	globals map[string]value.Value

	currentDepth int
	maxDepth     int
}

// Compile lowers the typed expression. Parameter slots are reserved first;
// global references are emitted as constant loads of the bound value.
func Compile(root *analyzer.Expr, params []Param, globals []Global) (*Code, error) {
	c := &Compiler{
		constantMap: make(map[string]int),
		globalMap:   make(map[string]int),
		typeMap:     make(map[*types.Type]int),
		scopes:      []map[string]int{make(map[string]int)},
		globals:     make(map[string]value.Value),
	}
	for _, g := range globals {
		c.globals[g.Name] = g.Value
	}
	for _, p := range params {
		c.scopes[0][p.Name] = c.numLocals
		c.numLocals++
	}

	if err := c.compile(root); err != nil {
		return nil, err
	}
	c.emit(OP_RETURN, 0)

	return &Code{
		Constants:    c.constants,
		Types:        c.typePool,
		Formats:      c.formats,
		Instructions: c.instructions,
		NumLocals:    c.numLocals,
		MaxStackSize: c.maxDepth,
	}, nil
}

// === Stack accounting ===

func (c *Compiler) push() {
	c.currentDepth++
	if c.currentDepth > c.maxDepth {
		c.maxDepth = c.currentDepth
	}
}

func (c *Compiler) pop()       { c.currentDepth-- }
func (c *Compiler) popN(n int) { c.currentDepth -= n }

// === Emission ===

func (c *Compiler) emit(op Opcode, arg byte) {
	c.instructions = append(c.instructions, Instruction{Op: op, Arg: arg})
}

// emitWide emits op with a 16-bit operand, prefixing WideArg when the
// operand does not fit in a byte.
func (c *Compiler) emitWide(op Opcode, operand int, span *analyzer.Expr) error {
	if operand < 0 || operand > 0xFFFF {
		return c.errorAt(span, diagnostics.ErrE017UnsupportedFeature,
			fmt.Sprintf("operand %d exceeds the 16-bit instruction limit", operand))
	}
	if operand > 0xFF {
		c.emit(OP_WIDE_ARG, byte(operand>>8))
	}
	c.emit(op, byte(operand))
	return nil
}

func (c *Compiler) errorAt(e *analyzer.Expr, code diagnostics.Code, msg string) *CompileError {
	ce := &CompileError{Code: code, Msg: msg}
	if e != nil {
		ce.Span = e.Span
	}
	return ce
}

// === Locals ===

func (c *Compiler) lookupLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (c *Compiler) allocateLocal(name string) int {
	slot := c.numLocals
	c.scopes[len(c.scopes)-1][name] = slot
	c.numLocals++
	return slot
}

func (c *Compiler) pushScope() { c.scopes = append(c.scopes, make(map[string]int)) }
func (c *Compiler) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

// === Constant pool ===

func constKey(r value.Raw) (string, bool) {
	switch ref := r.Ref.(type) {
	case nil:
		return fmt.Sprintf("w%d", r.Bits), true
	case string:
		return "s" + ref, true
	case []byte:
		return "b" + string(ref), true
	}
	return "", false
}

func (c *Compiler) addConstant(r value.Raw) int {
	if key, ok := constKey(r); ok {
		if idx, hit := c.constantMap[key]; hit {
			return idx
		}
		idx := len(c.constants)
		c.constants = append(c.constants, r)
		c.constantMap[key] = idx
		return idx
	}
	idx := len(c.constants)
	c.constants = append(c.constants, r)
	return idx
}

func (c *Compiler) addType(t *types.Type) int {
	if idx, ok := c.typeMap[t]; ok {
		return idx
	}
	idx := len(c.typePool)
	c.typePool = append(c.typePool, t)
	c.typeMap[t] = idx
	return idx
}

// === Jump patching ===

// jumpPlaceholder reserves two instruction slots and returns the index of
// the first. patchJump later rewrites the first slot; the second stays Nop.
func (c *Compiler) jumpPlaceholder() int {
	idx := len(c.instructions)
	c.emit(OP_NOP, 0)
	c.emit(OP_NOP, 0)
	return idx
}

func (c *Compiler) label() int { return len(c.instructions) }

func (c *Compiler) patchJump(placeholder, target int, op Opcode, at *analyzer.Expr) error {
	// The VM increments ip after the fetch, so the offset is relative to
	// the following instruction.
	offset := target - placeholder - 1
	if offset < -128 || offset > 127 {
		return c.errorAt(at, diagnostics.ErrE017UnsupportedFeature,
			fmt.Sprintf("jump offset %d out of signed 8-bit range", offset))
	}
	c.instructions[placeholder] = Instruction{Op: op, Arg: byte(int8(offset))}
	return nil
}

// === Lowering ===

func (c *Compiler) compile(e *analyzer.Expr) error {
	switch inner := e.Inner.(type) {
	case *analyzer.Constant:
		return c.compileConstant(e, inner.Value)

	case *analyzer.IdentExpr:
		return c.compileIdent(e, inner.Name)

	case *analyzer.BinaryExpr:
		return c.compileBinary(e, inner)

	case *analyzer.UnaryExpr:
		return c.compileUnary(e, inner)

	case *analyzer.ComparisonExpr:
		return c.compileComparison(e, inner)

	case *analyzer.IfExpr:
		return c.compileIf(e, inner)

	case *analyzer.WhereExpr:
		return c.compileWhere(inner)

	case *analyzer.ArrayExpr:
		for _, el := range inner.Elems {
			if err := c.compile(el); err != nil {
				return err
			}
		}
		c.popN(len(inner.Elems))
		if err := c.emitWide(OP_MAKE_ARRAY, len(inner.Elems), e); err != nil {
			return err
		}
		c.push()
		return nil

	case *analyzer.MapExpr:
		for _, entry := range inner.Entries {
			if err := c.compile(entry.Key); err != nil {
				return err
			}
			if err := c.compile(entry.Value); err != nil {
				return err
			}
		}
		c.popN(len(inner.Entries) * 2)
		if err := c.emitWide(OP_MAKE_MAP, len(inner.Entries), e); err != nil {
			return err
		}
		c.push()
		return nil

	case *analyzer.RecordExpr:
		// Fields arrive in canonical type order from the analyzer.
		for _, f := range inner.Fields {
			if err := c.compile(f.Value); err != nil {
				return err
			}
		}
		c.popN(len(inner.Fields))
		if err := c.emitWide(OP_MAKE_RECORD, len(inner.Fields), e); err != nil {
			return err
		}
		c.push()
		return nil

	case *analyzer.FieldExpr:
		return c.compileField(e, inner)

	case *analyzer.IndexExpr:
		return c.compileIndex(e, inner)

	case *analyzer.OtherwiseExpr:
		return c.compileOtherwise(e, inner)

	case *analyzer.CallExpr:
		for _, a := range inner.Args {
			if err := c.compile(a); err != nil {
				return err
			}
		}
		if err := c.compile(inner.Callable); err != nil {
			return err
		}
		c.popN(len(inner.Args) + 1)
		if err := c.emitWide(OP_CALL, len(inner.Args), e); err != nil {
			return err
		}
		c.push()
		return nil

	case *analyzer.CastExpr:
		if err := c.compile(inner.Expr); err != nil {
			return err
		}
		c.pop()
		if err := c.emitWide(OP_CAST, c.addType(e.Type), e); err != nil {
			return err
		}
		c.push()
		return nil

	case *analyzer.FormatStrExpr:
		return c.compileFormatStr(e, inner)

	case *analyzer.LambdaExpr:
		// Closures are not lowered yet; lambdas only appear as immediately
		// analyzed values, never as compiled results.
		return c.errorAt(e, diagnostics.ErrE017UnsupportedFeature,
			"lambda expressions cannot be compiled to bytecode yet")
	}
	return c.errorAt(e, diagnostics.ErrE017UnsupportedFeature, "unsupported expression form")
}

func (c *Compiler) compileConstant(e *analyzer.Expr, v value.Value) error {
	switch v.Type.Kind() {
	case types.KindInt:
		i := v.Raw.Int()
		switch {
		case i >= -128 && i <= 127:
			c.emit(OP_CONST_INT, byte(int8(i)))
		case i >= 0 && i <= 255:
			c.emit(OP_CONST_UINT, byte(i))
		default:
			if err := c.emitWide(OP_CONST_LOAD, c.addConstant(v.Raw), e); err != nil {
				return err
			}
		}
	case types.KindBool:
		if v.Raw.Bool() {
			c.emit(OP_CONST_TRUE, 0)
		} else {
			c.emit(OP_CONST_FALSE, 0)
		}
	default:
		if err := c.emitWide(OP_CONST_LOAD, c.addConstant(v.Raw), e); err != nil {
			return err
		}
	}
	c.push()
	return nil
}

func (c *Compiler) compileIdent(e *analyzer.Expr, name string) error {
	if slot, ok := c.lookupLocal(name); ok {
		if err := c.emitWide(OP_LOAD_LOCAL, slot, e); err != nil {
			return err
		}
		c.push()
		return nil
	}
	// Globals are locked in at compile time; load the bound value from the
	// constant pool.
	if g, ok := c.globals[name]; ok {
		idx, hit := c.globalMap[name]
		if !hit {
			idx = c.addConstant(g.Raw)
			c.globalMap[name] = idx
		}
		if err := c.emitWide(OP_CONST_LOAD, idx, e); err != nil {
			return err
		}
		c.push()
		return nil
	}
	return c.errorAt(e, diagnostics.ErrE002UnboundVariable,
		fmt.Sprintf("undefined variable '%s' (missed by the analyzer)", name))
}

func (c *Compiler) compileBinary(e *analyzer.Expr, b *analyzer.BinaryExpr) error {
	if b.Op == ast.And || b.Op == ast.Or {
		// Short-circuit: the right operand is skipped when the left decides.
		if err := c.compile(b.Left); err != nil {
			return err
		}
		jumpOp := OP_JUMP_IF_FALSE_NO_POP
		if b.Op == ast.Or {
			jumpOp = OP_JUMP_IF_TRUE_NO_POP
		}
		skip := c.jumpPlaceholder()
		c.emit(OP_POP, 0)
		c.pop()
		if err := c.compile(b.Right); err != nil {
			return err
		}
		return c.patchJump(skip, c.label(), jumpOp, e)
	}

	if err := c.compile(b.Left); err != nil {
		return err
	}
	if err := c.compile(b.Right); err != nil {
		return err
	}
	c.popN(2)

	var opByte byte
	switch b.Op {
	case ast.Add:
		opByte = '+'
	case ast.Sub:
		opByte = '-'
	case ast.Mul:
		opByte = '*'
	case ast.Div:
		opByte = '/'
	case ast.Pow:
		opByte = '^'
	}

	// The analyzer resolved the result type; it selects the instruction
	// family so the VM never dispatches on types.
	switch e.Type.Kind() {
	case types.KindInt:
		c.emit(OP_INT_BINOP, opByte)
	case types.KindFloat:
		c.emit(OP_FLOAT_BINOP, opByte)
	default:
		return c.errorAt(e, diagnostics.ErrE001TypeMismatch,
			fmt.Sprintf("arithmetic on non-numeric type %s", e.Type))
	}
	c.push()
	return nil
}

func (c *Compiler) compileUnary(e *analyzer.Expr, u *analyzer.UnaryExpr) error {
	if err := c.compile(u.Operand); err != nil {
		return err
	}
	c.pop()
	switch u.Op {
	case ast.Neg:
		switch u.Operand.Type.Kind() {
		case types.KindInt:
			c.emit(OP_NEG_INT, 0)
		case types.KindFloat:
			c.emit(OP_NEG_FLOAT, 0)
		default:
			return c.errorAt(e, diagnostics.ErrE001TypeMismatch,
				fmt.Sprintf("negation of non-numeric type %s", u.Operand.Type))
		}
	default:
		c.emit(OP_NOT, 0)
	}
	c.push()
	return nil
}

func cmpOperand(op ast.CmpOp) byte {
	switch op {
	case ast.Lt:
		return CmpLt
	case ast.Gt:
		return CmpGt
	case ast.Eq:
		return CmpEq
	case ast.Neq:
		return CmpNe
	case ast.Le:
		return CmpLe
	default:
		return CmpGe
	}
}

func (c *Compiler) compileComparison(e *analyzer.Expr, cmp *analyzer.ComparisonExpr) error {
	if cmp.Op == ast.In || cmp.Op == ast.NotIn {
		return c.compileMembership(e, cmp)
	}

	if err := c.compile(cmp.Left); err != nil {
		return err
	}
	if err := c.compile(cmp.Right); err != nil {
		return err
	}
	c.popN(2)

	operand := cmpOperand(cmp.Op)
	switch cmp.Left.Type.Kind() {
	case types.KindInt, types.KindBool:
		c.emit(OP_INT_CMP, operand)
	case types.KindFloat:
		c.emit(OP_FLOAT_CMP, operand)
	case types.KindStr:
		c.emit(OP_STRING_CMP, operand)
	case types.KindBytes:
		c.emit(OP_BYTES_CMP, operand)
	default:
		// Structural equality over containers.
		if cmp.Op == ast.Eq {
			c.emit(OP_EQ, 0)
		} else if cmp.Op == ast.Neq {
			c.emit(OP_NOT_EQ, 0)
		} else {
			return c.errorAt(e, diagnostics.ErrE001TypeMismatch,
				fmt.Sprintf("ordered comparison on type %s", cmp.Left.Type))
		}
	}
	c.push()
	return nil
}

func (c *Compiler) compileMembership(e *analyzer.Expr, cmp *analyzer.ComparisonExpr) error {
	// Container first, then the needle.
	if err := c.compile(cmp.Right); err != nil {
		return err
	}
	if err := c.compile(cmp.Left); err != nil {
		return err
	}
	c.popN(2)
	switch cmp.Right.Type.Kind() {
	case types.KindMap:
		c.emit(OP_MAP_HAS, 0)
	case types.KindArray, types.KindBytes:
		c.emit(OP_ARRAY_CONTAINS, 0)
	default:
		return c.errorAt(e, diagnostics.ErrE008NotIndexable,
			fmt.Sprintf("membership test on non-container type %s", cmp.Right.Type))
	}
	c.push()
	if cmp.Op == ast.NotIn {
		c.pop()
		c.emit(OP_NOT, 0)
		c.push()
	}
	return nil
}

func (c *Compiler) compileIf(e *analyzer.Expr, f *analyzer.IfExpr) error {
	if err := c.compile(f.Cond); err != nil {
		return err
	}
	c.pop() // condition consumed by JumpIfFalse

	elseJump := c.jumpPlaceholder()

	// Only one branch runs at a time, so both arms start from the same
	// depth and the maximum reflects simultaneous residency, not the sum.
	depthBefore := c.currentDepth

	if err := c.compile(f.Then); err != nil {
		return err
	}
	endJump := c.jumpPlaceholder()

	if err := c.patchJump(elseJump, c.label(), OP_JUMP_IF_FALSE, e); err != nil {
		return err
	}
	c.currentDepth = depthBefore

	if err := c.compile(f.Else); err != nil {
		return err
	}
	if err := c.patchJump(endJump, c.label(), OP_JUMP, e); err != nil {
		return err
	}
	c.currentDepth = depthBefore + 1
	return nil
}

func (c *Compiler) compileWhere(w *analyzer.WhereExpr) error {
	c.pushScope()
	for _, b := range w.Bindings {
		if err := c.compile(b.Value); err != nil {
			return err
		}
		c.pop()
		slot := c.allocateLocal(b.Name)
		if err := c.emitWide(OP_STORE_LOCAL, slot, b.Value); err != nil {
			return err
		}
	}
	if err := c.compile(w.Expr); err != nil {
		return err
	}
	c.popScope()
	return nil
}

func (c *Compiler) compileField(e *analyzer.Expr, f *analyzer.FieldExpr) error {
	if err := c.compile(f.Value); err != nil {
		return err
	}
	idx := f.Value.Type.FieldIndex(f.Name)
	if idx < 0 {
		return c.errorAt(e, diagnostics.ErrE009UnknownField,
			fmt.Sprintf("field '%s' missing from %s (missed by the analyzer)", f.Name, f.Value.Type))
	}
	c.pop()
	if err := c.emitWide(OP_RECORD_GET, idx, e); err != nil {
		return err
	}
	c.push()
	return nil
}

func (c *Compiler) compileIndex(e *analyzer.Expr, ix *analyzer.IndexExpr) error {
	if err := c.compile(ix.Value); err != nil {
		return err
	}

	// Constant non-negative indexes on arrays and bytes get the immediate
	// form.
	if k, ok := ix.Index.Inner.(*analyzer.Constant); ok && k.Value.Type.Kind() == types.KindInt {
		if i := k.Value.Raw.Int(); i >= 0 && i <= 255 {
			switch ix.Value.Type.Kind() {
			case types.KindArray:
				c.pop()
				c.emit(OP_ARRAY_GET_CONST, byte(i))
				c.push()
				return nil
			case types.KindBytes:
				c.pop()
				c.emit(OP_BYTES_GET_CONST, byte(i))
				c.push()
				return nil
			}
		}
	}

	if err := c.compile(ix.Index); err != nil {
		return err
	}
	c.popN(2)
	switch ix.Value.Type.Kind() {
	case types.KindArray:
		c.emit(OP_ARRAY_GET, 0)
	case types.KindMap:
		c.emit(OP_MAP_GET, 0)
	case types.KindBytes:
		c.emit(OP_BYTES_GET, 0)
	default:
		return c.errorAt(e, diagnostics.ErrE008NotIndexable,
			fmt.Sprintf("indexing non-indexable type %s", ix.Value.Type))
	}
	c.push()
	return nil
}

func (c *Compiler) compileOtherwise(e *analyzer.Expr, o *analyzer.OtherwiseExpr) error {
	pushIdx := len(c.instructions)
	c.emit(OP_PUSH_OTHERWISE, 0) // patched below

	if err := c.compile(o.Primary); err != nil {
		return err
	}

	popJumpIdx := len(c.instructions)
	c.emit(OP_POP_OTHERWISE_AND_JUMP, 0) // patched below

	fallbackIdx := len(c.instructions)
	c.emit(OP_POP_OTHERWISE, 0)

	// On failure the handler is consumed by the unwinder, which resumes
	// right after the PopOtherwise landing pad; the primary result is gone
	// from the stack at that point.
	c.pop()
	if err := c.compile(o.Fallback); err != nil {
		return err
	}
	doneIdx := len(c.instructions)

	pushDelta := fallbackIdx - pushIdx
	if pushDelta < -128 || pushDelta > 127 {
		return c.errorAt(e, diagnostics.ErrE017UnsupportedFeature,
			fmt.Sprintf("otherwise fallback offset %d out of signed 8-bit range", pushDelta))
	}
	c.instructions[pushIdx] = Instruction{Op: OP_PUSH_OTHERWISE, Arg: byte(int8(pushDelta))}

	popDelta := doneIdx - popJumpIdx - 1
	if popDelta < -128 || popDelta > 127 {
		return c.errorAt(e, diagnostics.ErrE017UnsupportedFeature,
			fmt.Sprintf("otherwise done offset %d out of signed 8-bit range", popDelta))
	}
	c.instructions[popJumpIdx] = Instruction{Op: OP_POP_OTHERWISE_AND_JUMP, Arg: byte(int8(popDelta))}
	return nil
}

func (c *Compiler) compileFormatStr(e *analyzer.Expr, f *analyzer.FormatStrExpr) error {
	argTypes := make([]*types.Type, len(f.Exprs))
	for i, sub := range f.Exprs {
		if err := c.compile(sub); err != nil {
			return err
		}
		argTypes[i] = sub.Type
	}
	specIdx := len(c.formats)
	c.formats = append(c.formats, FormatSpec{Texts: f.Texts, ArgTypes: argTypes})
	c.popN(len(f.Exprs))
	if err := c.emitWide(OP_STRING_FORMAT, specIdx, e); err != nil {
		return err
	}
	c.push()
	return nil
}
