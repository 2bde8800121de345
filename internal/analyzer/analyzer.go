// Package analyzer implements Hindley–Milner-style type inference for
// parsed Melbi expressions: scope-stack name resolution, unification,
// type-class constraint accumulation, and span-annotated diagnostics.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/ast"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/token"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

// Analyzer turns a parsed AST into a typed AST, rejecting ill-typed
// programs with precise spans. Analysis stops at the first type error to
// keep diagnostics focused.
type Analyzer struct {
	tm       *types.Manager
	arena    *arena.Arena
	unify    *types.Unification
	resolver *types.Resolver
	scopes   *ScopeStack[*types.Type]
	parsed   *ast.Parsed
	current  token.Span
}

// Analyze runs inference over parsed. The globals frame is pushed first,
// then the params frame, so parameters shadow globals.
func Analyze(tm *types.Manager, a *arena.Arena, parsed *ast.Parsed,
	globals, params []Entry[*types.Type]) (*Expr, *diagnostics.Diagnostic) {

	an := &Analyzer{
		tm:       tm,
		arena:    a,
		unify:    types.NewUnification(tm),
		resolver: types.NewResolver(),
		scopes:   NewScopeStack[*types.Type](),
		parsed:   parsed,
	}
	an.scopes.PushComplete(globals)
	an.scopes.PushComplete(params)

	root, err := an.analyze(parsed.Expr)
	if err != nil {
		return nil, err
	}

	// Resolve all accumulated type-class constraints.
	if errs := an.resolver.ResolveAll(an.unify); len(errs) > 0 {
		ce := errs[0]
		return nil, diagnostics.New(diagnostics.ErrE004ConstraintViolation, parsed.Source, ce.At,
			fmt.Sprintf("type '%s' does not implement %s", ce.Type, ce.Class.Name())).
			WithHelp(fmt.Sprintf("%s requires %s; it is implemented for: %s",
				ce.Class.Name(), ce.Class.Description(), ce.Class.Instances()))
	}

	// Substitute resolved types throughout and reject residual variables.
	if err := an.finalize(root); err != nil {
		return nil, err
	}
	return root, nil
}

func (an *Analyzer) errorf(code diagnostics.Code, format string, args ...any) *diagnostics.Diagnostic {
	return diagnostics.New(code, an.parsed.Source, an.current, fmt.Sprintf(format, args...))
}

func (an *Analyzer) alloc(ty *types.Type, inner Inner) *Expr {
	return &Expr{Type: ty, Span: an.current, Inner: inner}
}

func (an *Analyzer) analyze(e ast.Expr) (*Expr, *diagnostics.Diagnostic) {
	old := an.current
	an.current = an.parsed.SpanOf(e)
	defer func() { an.current = old }()

	switch e := e.(type) {
	case *ast.IntLit:
		// The unit suffix is carried for expression shape only; no unit
		// checking happens yet.
		return an.alloc(an.tm.Int(), &Constant{Value: value.Int(an.tm, e.Value)}), nil

	case *ast.FloatLit:
		return an.alloc(an.tm.Float(), &Constant{Value: value.Float(an.tm, e.Value)}), nil

	case *ast.BoolLit:
		return an.alloc(an.tm.Bool(), &Constant{Value: value.Bool(an.tm, e.Value)}), nil

	case *ast.StrLit:
		v, _ := value.Str(an.arena, an.tm.Str(), e.Value)
		return an.alloc(an.tm.Str(), &Constant{Value: v}), nil

	case *ast.BytesLit:
		v, _ := value.Bytes(an.arena, an.tm.Bytes(), e.Value)
		return an.alloc(an.tm.Bytes(), &Constant{Value: v}), nil

	case *ast.Ident:
		ty, ok := an.scopes.Lookup(e.Name)
		if !ok {
			return nil, an.errorf(diagnostics.ErrE002UnboundVariable, "undefined variable '%s'", e.Name)
		}
		return an.alloc(ty, &IdentExpr{Name: e.Name}), nil

	case *ast.Binary:
		return an.analyzeBinary(e)

	case *ast.Unary:
		return an.analyzeUnary(e)

	case *ast.Comparison:
		return an.analyzeComparison(e)

	case *ast.If:
		return an.analyzeIf(e)

	case *ast.Lambda:
		return an.analyzeLambda(e)

	case *ast.Call:
		return an.analyzeCall(e)

	case *ast.Index:
		return an.analyzeIndex(e)

	case *ast.Field:
		return an.analyzeField(e)

	case *ast.Cast:
		return an.analyzeCast(e)

	case *ast.RecordLit:
		return an.analyzeRecord(e)

	case *ast.MapLit:
		return an.analyzeMap(e)

	case *ast.ArrayLit:
		return an.analyzeArray(e)

	case *ast.FormatStr:
		return an.analyzeFormatStr(e)

	case *ast.Where:
		return an.analyzeWhere(e)

	case *ast.Otherwise:
		return an.analyzeOtherwise(e)
	}
	return nil, an.errorf(diagnostics.ErrE017UnsupportedFeature, "unsupported expression form")
}

// unifyOrMismatch wraps a unification failure in a span-carrying diagnostic.
func (an *Analyzer) unifyOrMismatch(a, b *types.Type, context string) (*types.Type, *diagnostics.Diagnostic) {
	t, err := an.unify.Unify(a, b)
	if err == nil {
		return t, nil
	}
	switch err := err.(type) {
	case *types.OccursError:
		return nil, an.errorf(diagnostics.ErrE003OccursCheck, "%s: %s", context, err)
	case *types.FieldCountError:
		return nil, an.errorf(diagnostics.ErrE005FieldCountMismatch, "%s: %s", context, err)
	case *types.FieldNameError:
		return nil, an.errorf(diagnostics.ErrE006FieldNameMismatch, "%s: %s", context, err)
	case *types.ParamCountError:
		return nil, an.errorf(diagnostics.ErrE007ParamCountMismatch, "%s: %s", context, err)
	default:
		return nil, an.errorf(diagnostics.ErrE001TypeMismatch, "%s: %s", context, err)
	}
}

func (an *Analyzer) analyzeBinary(e *ast.Binary) (*Expr, *diagnostics.Diagnostic) {
	left, err := an.analyze(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := an.analyze(e.Right)
	if err != nil {
		return nil, err
	}

	if e.Op.IsBool() {
		if _, err := an.unifyOrMismatch(left.Type, an.tm.Bool(), "left operand of '"+e.Op.String()+"' must be Bool"); err != nil {
			return nil, err
		}
		if _, err := an.unifyOrMismatch(right.Type, an.tm.Bool(), "right operand of '"+e.Op.String()+"' must be Bool"); err != nil {
			return nil, err
		}
		return an.alloc(an.tm.Bool(), &BinaryExpr{Op: e.Op, Left: left, Right: right}), nil
	}

	result := an.tm.FreshTypeVar()
	an.resolver.AddNumeric(left.Type, right.Type, result, an.current)
	// The result shares the operands' type. A failure here is reported by
	// the Numeric constraint when constraints are resolved.
	an.unify.Unify(result, left.Type)
	an.unify.Unify(result, right.Type)
	return an.alloc(result, &BinaryExpr{Op: e.Op, Left: left, Right: right}), nil
}

func (an *Analyzer) analyzeUnary(e *ast.Unary) (*Expr, *diagnostics.Diagnostic) {
	operand, err := an.analyze(e.Expr)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.Neg:
		an.resolver.AddNumeric(operand.Type, operand.Type, operand.Type, an.current)
		return an.alloc(operand.Type, &UnaryExpr{Op: e.Op, Operand: operand}), nil
	default: // not
		if _, err := an.unifyOrMismatch(operand.Type, an.tm.Bool(), "operand of 'not' must be Bool"); err != nil {
			return nil, err
		}
		return an.alloc(an.tm.Bool(), &UnaryExpr{Op: e.Op, Operand: operand}), nil
	}
}

func (an *Analyzer) analyzeComparison(e *ast.Comparison) (*Expr, *diagnostics.Diagnostic) {
	left, err := an.analyze(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := an.analyze(e.Right)
	if err != nil {
		return nil, err
	}

	switch {
	case e.Op.IsOrdered():
		an.resolver.AddOrd(left.Type, an.current)
		if _, err := an.unifyOrMismatch(left.Type, right.Type, "comparison operands must have the same type"); err != nil {
			return nil, err
		}
	case e.Op == ast.Eq || e.Op == ast.Neq:
		an.resolver.AddHashable(left.Type, an.current)
		if _, err := an.unifyOrMismatch(left.Type, right.Type, "equality operands must have the same type"); err != nil {
			return nil, err
		}
	default: // in / not in
		if err := an.analyzeMembership(left, right); err != nil {
			return nil, err
		}
	}
	return an.alloc(an.tm.Bool(), &ComparisonExpr{Op: e.Op, Left: left, Right: right}), nil
}

// analyzeMembership constrains `needle in container`. The needle sits on
// the key side for maps and on the element side for arrays and bytes.
func (an *Analyzer) analyzeMembership(needle, container *Expr) *diagnostics.Diagnostic {
	ct := an.unify.Resolve(container.Type)
	switch ct.Kind() {
	case types.KindMap:
		an.resolver.AddIndexable(container.Type, needle.Type, an.tm.FreshTypeVar(), an.current)
	case types.KindArray, types.KindBytes:
		an.resolver.AddIndexable(container.Type, an.tm.FreshTypeVar(), needle.Type, an.current)
	case types.KindTypeVar:
		an.resolver.AddIndexable(container.Type, an.tm.FreshTypeVar(), an.tm.FreshTypeVar(), an.current)
	default:
		return an.errorf(diagnostics.ErrE008NotIndexable,
			"right side of 'in' is not a container: %s", ct)
	}
	return nil
}

func (an *Analyzer) analyzeIf(e *ast.If) (*Expr, *diagnostics.Diagnostic) {
	cond, err := an.analyze(e.Cond)
	if err != nil {
		return nil, err
	}
	then, err := an.analyze(e.Then)
	if err != nil {
		return nil, err
	}
	els, err := an.analyze(e.Else)
	if err != nil {
		return nil, err
	}
	if _, err := an.unifyOrMismatch(cond.Type, an.tm.Bool(), "if condition must be Bool"); err != nil {
		return nil, err
	}
	result, err2 := an.unifyOrMismatch(then.Type, els.Type, "if branches have incompatible types")
	if err2 != nil {
		return nil, err2
	}
	return an.alloc(result, &IfExpr{Cond: cond, Then: then, Else: els}), nil
}

func (an *Analyzer) analyzeLambda(e *ast.Lambda) (*Expr, *diagnostics.Diagnostic) {
	if err := an.scopes.PushIncomplete(e.Params); err != nil {
		name := ""
		if d, ok := err.(*DuplicateError); ok {
			name = d.Name
		}
		return nil, an.errorf(diagnostics.ErrE014DuplicateParameter, "duplicate parameter name '%s'", name)
	}
	paramTypes := make([]*types.Type, len(e.Params))
	for i, p := range e.Params {
		paramTypes[i] = an.tm.FreshTypeVar()
		if err := an.scopes.BindInCurrent(p, paramTypes[i]); err != nil {
			an.scopes.PopIncomplete()
			return nil, an.errorf(diagnostics.ErrE014DuplicateParameter, "%s", err)
		}
	}
	body, err := an.analyze(e.Body)
	an.scopes.PopIncomplete()
	if err != nil {
		return nil, err
	}
	ty := an.tm.Function(paramTypes, body.Type)
	return an.alloc(ty, &LambdaExpr{Params: e.Params, Body: body}), nil
}

func (an *Analyzer) analyzeCall(e *ast.Call) (*Expr, *diagnostics.Diagnostic) {
	callable, err := an.analyze(e.Callable)
	if err != nil {
		return nil, err
	}
	args := make([]*Expr, len(e.Args))
	argTypes := make([]*types.Type, len(e.Args))
	for i, a := range e.Args {
		args[i], err = an.analyze(a)
		if err != nil {
			return nil, err
		}
		argTypes[i] = args[i].Type
	}

	f := an.unify.Resolve(callable.Type)
	switch f.Kind() {
	case types.KindFunction:
		// Instantiate the callable's type with fresh variables and carry its
		// constraints over to the fresh instance.
		inst, subst := an.unify.AlphaConvert(f)
		an.resolver.CopyWithSubst(subst, an.unify)

		if len(inst.Params()) != len(args) {
			return nil, an.errorf(diagnostics.ErrE007ParamCountMismatch,
				"function expects %d arguments, got %d", len(inst.Params()), len(args))
		}
		for i := range args {
			if _, err := an.unifyOrMismatch(inst.Params()[i], argTypes[i],
				fmt.Sprintf("argument %d does not match parameter type", i+1)); err != nil {
				return nil, err
			}
		}
		result := an.unify.Resolve(inst.Ret())
		return an.alloc(result, &CallExpr{Callable: callable, Args: args}), nil

	case types.KindTypeVar:
		result := an.tm.FreshTypeVar()
		g := an.tm.Function(argTypes, result)
		if _, err := an.unifyOrMismatch(f, g, "called value must be a function"); err != nil {
			return nil, err
		}
		return an.alloc(result, &CallExpr{Callable: callable, Args: args}), nil
	}
	return nil, an.errorf(diagnostics.ErrE001TypeMismatch, "called expression is not a function (it is %s)", f)
}

func (an *Analyzer) analyzeIndex(e *ast.Index) (*Expr, *diagnostics.Diagnostic) {
	val, err := an.analyze(e.Value)
	if err != nil {
		return nil, err
	}
	idx, err := an.analyze(e.Index)
	if err != nil {
		return nil, err
	}
	result := an.tm.FreshTypeVar()
	an.resolver.AddIndexable(val.Type, idx.Type, result, an.current)
	return an.alloc(result, &IndexExpr{Value: val, Index: idx}), nil
}

func (an *Analyzer) analyzeField(e *ast.Field) (*Expr, *diagnostics.Diagnostic) {
	val, err := an.analyze(e.Value)
	if err != nil {
		return nil, err
	}
	vt := an.unify.Resolve(val.Type)
	switch vt.Kind() {
	case types.KindRecord:
		idx := vt.FieldIndex(e.Name)
		if idx < 0 {
			available := make([]string, len(vt.Fields()))
			for i, f := range vt.Fields() {
				available[i] = f.Name
			}
			return nil, an.errorf(diagnostics.ErrE009UnknownField,
				"record has no field '%s'", e.Name).
				WithHelp("available fields: " + strings.Join(available, ", "))
		}
		return an.alloc(vt.Fields()[idx].Type, &FieldExpr{Value: val, Name: e.Name}), nil
	case types.KindTypeVar:
		// No row polymorphism: a record whose shape is still unknown cannot
		// be projected.
		return nil, an.errorf(diagnostics.ErrE010CannotInferRecordType,
			"cannot infer the record type providing field '%s'", e.Name)
	}
	return nil, an.errorf(diagnostics.ErrE011NotARecord,
		"cannot access field '%s' on non-record type %s", e.Name, vt)
}

func (an *Analyzer) analyzeCast(e *ast.Cast) (*Expr, *diagnostics.Diagnostic) {
	inner, err := an.analyze(e.Expr)
	if err != nil {
		return nil, err
	}
	target, terr := an.typeExprToType(e.Target)
	if terr != nil {
		return nil, terr
	}
	source := an.unify.Resolve(inner.Type)
	if source.Kind() == types.KindTypeVar {
		return nil, an.errorf(diagnostics.ErrE013InvalidCast,
			"cannot cast a value whose type is not yet known; annotate the source type")
	}
	if !castValid(source, target) {
		return nil, an.errorf(diagnostics.ErrE013InvalidCast,
			"cannot cast from %s to %s", source, target).
			WithHelp("valid casts: Int as Float, Float as Int, Str as Bytes, Bytes as Str")
	}
	return an.alloc(target, &CastExpr{Expr: inner}), nil
}

// castValid is the surface cast table. Identity casts are rejected.
func castValid(from, to *types.Type) bool {
	switch {
	case from.Kind() == types.KindInt && to.Kind() == types.KindFloat:
		return true
	case from.Kind() == types.KindFloat && to.Kind() == types.KindInt:
		return true
	case from.Kind() == types.KindStr && to.Kind() == types.KindBytes:
		return true
	case from.Kind() == types.KindBytes && to.Kind() == types.KindStr:
		return true
	}
	return false
}

func (an *Analyzer) typeExprToType(te ast.TypeExpr) (*types.Type, *diagnostics.Diagnostic) {
	switch te := te.(type) {
	case *ast.TypePath:
		switch te.Name {
		case "Int":
			return an.tm.Int(), nil
		case "Float":
			return an.tm.Float(), nil
		case "Bool":
			return an.tm.Bool(), nil
		case "Str":
			return an.tm.Str(), nil
		case "Bytes":
			return an.tm.Bytes(), nil
		}
		return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "unknown type '%s'", te.Name)

	case *ast.TypeParametrized:
		switch te.Path {
		case "Array":
			if len(te.Params) != 1 {
				return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "Array takes exactly one type parameter")
			}
			elem, err := an.typeExprToType(te.Params[0])
			if err != nil {
				return nil, err
			}
			return an.tm.Array(elem), nil
		case "Map":
			if len(te.Params) != 2 {
				return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "Map takes exactly two type parameters")
			}
			key, err := an.typeExprToType(te.Params[0])
			if err != nil {
				return nil, err
			}
			val, err := an.typeExprToType(te.Params[1])
			if err != nil {
				return nil, err
			}
			m, merr := an.tm.Map(key, val)
			if merr != nil {
				return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "%s", merr)
			}
			return m, nil
		}
		return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "unknown parametrized type '%s'", te.Path)

	case *ast.TypeRecord:
		fields := make([]types.Field, len(te.Fields))
		for i, f := range te.Fields {
			ft, err := an.typeExprToType(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = types.Field{Name: f.Name, Type: ft}
		}
		r, rerr := an.tm.Record(fields)
		if rerr != nil {
			return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "%s", rerr)
		}
		return r, nil
	}
	return nil, an.errorf(diagnostics.ErrE012InvalidTypeExpression, "invalid type expression")
}

func (an *Analyzer) analyzeRecord(e *ast.RecordLit) (*Expr, *diagnostics.Diagnostic) {
	analyzed := make([]TypedBinding, len(e.Fields))
	fieldTypes := make([]types.Field, len(e.Fields))
	for i, f := range e.Fields {
		v, err := an.analyze(f.Value)
		if err != nil {
			return nil, err
		}
		analyzed[i] = TypedBinding{Name: f.Name, Value: v}
		fieldTypes[i] = types.Field{Name: f.Name, Type: v.Type}
	}
	ty, rerr := an.tm.Record(fieldTypes)
	if rerr != nil {
		return nil, an.errorf(diagnostics.ErrE015DuplicateBinding, "%s", rerr)
	}
	// Reorder the typed fields to the record type's canonical order so the
	// compiler can emit them positionally.
	canonical := make([]TypedBinding, len(analyzed))
	for i, f := range ty.Fields() {
		for _, b := range analyzed {
			if b.Name == f.Name {
				canonical[i] = b
				break
			}
		}
	}
	return an.alloc(ty, &RecordExpr{Fields: canonical}), nil
}

func (an *Analyzer) analyzeMap(e *ast.MapLit) (*Expr, *diagnostics.Diagnostic) {
	entries := make([]TypedEntry, len(e.Entries))
	for i, entry := range e.Entries {
		k, err := an.analyze(entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := an.analyze(entry.Value)
		if err != nil {
			return nil, err
		}
		entries[i] = TypedEntry{Key: k, Value: v}
	}

	// Duplicate constant keys are an analysis-time error.
	for i := range entries {
		ki, ok := entries[i].Key.Inner.(*Constant)
		if !ok {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if kj, ok := entries[j].Key.Inner.(*Constant); ok &&
				value.RawEqual(ki.Value.Raw, kj.Value.Raw) {
				return nil, an.errorf(diagnostics.ErrE018DuplicateMapKey,
					"duplicate map key %s", value.Display(ki.Value))
			}
		}
	}

	keyTy := an.tm.FreshTypeVar()
	for _, entry := range entries {
		t, err := an.unifyOrMismatch(entry.Key.Type, keyTy, "map keys must have the same type")
		if err != nil {
			return nil, err
		}
		keyTy = t
	}
	an.resolver.AddHashable(keyTy, an.current)

	valTy := an.tm.FreshTypeVar()
	for _, entry := range entries {
		t, err := an.unifyOrMismatch(entry.Value.Type, valTy, "map values must have the same type")
		if err != nil {
			return nil, err
		}
		valTy = t
	}

	ty, merr := an.tm.Map(keyTy, valTy)
	if merr != nil {
		return nil, an.errorf(diagnostics.ErrE004ConstraintViolation, "%s", merr)
	}
	return an.alloc(ty, &MapExpr{Entries: entries}), nil
}

func (an *Analyzer) analyzeArray(e *ast.ArrayLit) (*Expr, *diagnostics.Diagnostic) {
	elems := make([]*Expr, len(e.Elems))
	elemTy := an.tm.FreshTypeVar()
	for i, el := range e.Elems {
		v, err := an.analyze(el)
		if err != nil {
			return nil, err
		}
		elems[i] = v
		t, uerr := an.unifyOrMismatch(v.Type, elemTy, "array elements must have the same type")
		if uerr != nil {
			return nil, uerr
		}
		elemTy = t
	}
	return an.alloc(an.tm.Array(elemTy), &ArrayExpr{Elems: elems}), nil
}

func (an *Analyzer) analyzeFormatStr(e *ast.FormatStr) (*Expr, *diagnostics.Diagnostic) {
	exprs := make([]*Expr, len(e.Exprs))
	for i, sub := range e.Exprs {
		v, err := an.analyze(sub)
		if err != nil {
			return nil, err
		}
		if an.unify.Resolve(v.Type).Kind() == types.KindFunction {
			return nil, an.errorf(diagnostics.ErrE016NotFormattable,
				"cannot format a function value in a format string")
		}
		exprs[i] = v
	}
	return an.alloc(an.tm.Str(), &FormatStrExpr{Texts: e.Texts, Exprs: exprs}), nil
}

func (an *Analyzer) analyzeWhere(e *ast.Where) (*Expr, *diagnostics.Diagnostic) {
	names := make([]string, len(e.Bindings))
	for i, b := range e.Bindings {
		names[i] = b.Name
	}
	if err := an.scopes.PushIncomplete(names); err != nil {
		name := ""
		if d, ok := err.(*DuplicateError); ok {
			name = d.Name
		}
		return nil, an.errorf(diagnostics.ErrE015DuplicateBinding, "duplicate binding name '%s'", name)
	}

	bindings := make([]TypedBinding, len(e.Bindings))
	for i, b := range e.Bindings {
		v, err := an.analyze(b.Value)
		if err != nil {
			an.scopes.PopIncomplete()
			return nil, err
		}
		if berr := an.scopes.BindInCurrent(b.Name, v.Type); berr != nil {
			an.scopes.PopIncomplete()
			return nil, an.errorf(diagnostics.ErrE015DuplicateBinding, "%s", berr)
		}
		bindings[i] = TypedBinding{Name: b.Name, Value: v}
	}

	body, err := an.analyze(e.Expr)
	an.scopes.PopIncomplete()
	if err != nil {
		return nil, err
	}
	return an.alloc(body.Type, &WhereExpr{Expr: body, Bindings: bindings}), nil
}

func (an *Analyzer) analyzeOtherwise(e *ast.Otherwise) (*Expr, *diagnostics.Diagnostic) {
	primary, err := an.analyze(e.Primary)
	if err != nil {
		return nil, err
	}
	fallback, err := an.analyze(e.Fallback)
	if err != nil {
		return nil, err
	}
	result, uerr := an.unifyOrMismatch(primary.Type, fallback.Type,
		"primary and fallback branches must have compatible types")
	if uerr != nil {
		return nil, uerr
	}
	return an.alloc(result, &OtherwiseExpr{Primary: primary, Fallback: fallback}), nil
}

// finalize substitutes fully resolved types into every node, then rejects
// residual inference variables in the program's resulting type. A
// polymorphic callable's own type keeps its variables; only the top-level
// result must be concrete.
func (an *Analyzer) finalize(root *Expr) *diagnostics.Diagnostic {
	if err := an.walkFinalize(root); err != nil {
		return err
	}
	if root.Type.HasTypeVar() {
		return diagnostics.New(diagnostics.ErrE004ConstraintViolation, an.parsed.Source, root.Span,
			"expression type could not be fully inferred").
			WithHelp("add an annotation or use the value in a context that pins its type")
	}
	return nil
}

func (an *Analyzer) walkFinalize(e *Expr) *diagnostics.Diagnostic {
	e.Type = an.unify.ResolveDeep(e.Type)
	switch inner := e.Inner.(type) {
	case *BinaryExpr:
		if err := an.walkFinalize(inner.Left); err != nil {
			return err
		}
		return an.walkFinalize(inner.Right)
	case *UnaryExpr:
		return an.walkFinalize(inner.Operand)
	case *ComparisonExpr:
		if err := an.walkFinalize(inner.Left); err != nil {
			return err
		}
		return an.walkFinalize(inner.Right)
	case *IfExpr:
		if err := an.walkFinalize(inner.Cond); err != nil {
			return err
		}
		if err := an.walkFinalize(inner.Then); err != nil {
			return err
		}
		return an.walkFinalize(inner.Else)
	case *LambdaExpr:
		return an.walkFinalize(inner.Body)
	case *CallExpr:
		if err := an.walkFinalize(inner.Callable); err != nil {
			return err
		}
		for _, a := range inner.Args {
			if err := an.walkFinalize(a); err != nil {
				return err
			}
		}
	case *IndexExpr:
		if err := an.walkFinalize(inner.Value); err != nil {
			return err
		}
		return an.walkFinalize(inner.Index)
	case *FieldExpr:
		return an.walkFinalize(inner.Value)
	case *CastExpr:
		return an.walkFinalize(inner.Expr)
	case *RecordExpr:
		for _, f := range inner.Fields {
			if err := an.walkFinalize(f.Value); err != nil {
				return err
			}
		}
	case *MapExpr:
		for _, en := range inner.Entries {
			if err := an.walkFinalize(en.Key); err != nil {
				return err
			}
			if err := an.walkFinalize(en.Value); err != nil {
				return err
			}
		}
	case *ArrayExpr:
		for _, el := range inner.Elems {
			if err := an.walkFinalize(el); err != nil {
				return err
			}
		}
	case *FormatStrExpr:
		for _, sub := range inner.Exprs {
			if err := an.walkFinalize(sub); err != nil {
				return err
			}
		}
	case *WhereExpr:
		for _, b := range inner.Bindings {
			if err := an.walkFinalize(b.Value); err != nil {
				return err
			}
		}
		return an.walkFinalize(inner.Expr)
	case *OtherwiseExpr:
		if err := an.walkFinalize(inner.Primary); err != nil {
			return err
		}
		return an.walkFinalize(inner.Fallback)
	}
	return nil
}
