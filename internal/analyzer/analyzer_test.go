package analyzer

import (
	"testing"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/parser"
	"github.com/melbi-lang/melbi/internal/types"
)

func analyzeSource(t *testing.T, tm *types.Manager, source string, params []Entry[*types.Type]) (*Expr, *diagnostics.Diagnostic) {
	t.Helper()
	parsed, perr := parser.Parse(source)
	if perr != nil {
		t.Fatalf("Parse(%q): %v", source, perr)
	}
	return Analyze(tm, arena.New(), parsed, nil, params)
}

func mustType(t *testing.T, tm *types.Manager, source string, params []Entry[*types.Type], want string) {
	t.Helper()
	typed, err := analyzeSource(t, tm, source, params)
	if err != nil {
		t.Fatalf("analyze(%q): %v", source, err)
	}
	if got := typed.Type.String(); got != want {
		t.Errorf("type of %q = %s, want %s", source, got, want)
	}
}

func mustFail(t *testing.T, tm *types.Manager, source string, params []Entry[*types.Type], code diagnostics.Code) {
	t.Helper()
	_, err := analyzeSource(t, tm, source, params)
	if err == nil {
		t.Fatalf("analyze(%q) should fail with %s", source, code)
	}
	if err.Code != code {
		t.Errorf("analyze(%q) code = %s, want %s (%s)", source, err.Code, code, err.Message)
	}
}

func TestLiteralTypes(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "42", nil, "Int")
	mustType(t, tm, "3.14", nil, "Float")
	mustType(t, tm, "true", nil, "Bool")
	mustType(t, tm, `"s"`, nil, "Str")
	mustType(t, tm, `b"s"`, nil, "Bytes")
}

func TestArithmeticInference(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "1 + 2 * 3", nil, "Int")
	mustType(t, tm, "1.5 + 2.5", nil, "Float")
	mustType(t, tm, "-5", nil, "Int")
	mustType(t, tm, "2 ^ 10", nil, "Int")
	mustFail(t, tm, "1 + 2.0", nil, diagnostics.ErrE004ConstraintViolation)
	mustFail(t, tm, `1 + "s"`, nil, diagnostics.ErrE004ConstraintViolation)
	mustFail(t, tm, "-true", nil, diagnostics.ErrE004ConstraintViolation)
}

func TestBooleanForms(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "true and false or true", nil, "Bool")
	mustType(t, tm, "not true", nil, "Bool")
	mustFail(t, tm, "1 and true", nil, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, "not 1", nil, diagnostics.ErrE001TypeMismatch)
}

func TestComparisons(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "1 < 2", nil, "Bool")
	mustType(t, tm, `"a" <= "b"`, nil, "Bool")
	mustType(t, tm, "1 == 2", nil, "Bool")
	mustFail(t, tm, `1 < "s"`, nil, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, "[1] < [2]", nil, diagnostics.ErrE004ConstraintViolation)
}

func TestIfInference(t *testing.T) {
	tm := types.NewManager(arena.New())
	intParams := []Entry[*types.Type]{{"a", tm.Int()}, {"b", tm.Int()}}
	mustType(t, tm, "if a < b then a else b", intParams, "Int")
	mustFail(t, tm, "if a then a else b", intParams, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, `if a < b then a else "s"`, intParams, diagnostics.ErrE001TypeMismatch)
}

func TestUnboundVariable(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustFail(t, tm, "nope", nil, diagnostics.ErrE002UnboundVariable)
}

func TestWhereScoping(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "x + y * 2 where { x = 3, y = 4 }", nil, "Int")
	// Sequential visibility: later bindings see earlier ones.
	mustType(t, tm, "b where { a = 1, b = a + 1 }", nil, "Int")
	// But not the other way around.
	mustFail(t, tm, "b where { b = a + 1, a = 1 }", nil, diagnostics.ErrE002UnboundVariable)
	mustFail(t, tm, "x where { x = 1, x = 2 }", nil, diagnostics.ErrE015DuplicateBinding)
}

func TestLambdaAndCall(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustFail(t, tm, "(a, a) => a", nil, diagnostics.ErrE014DuplicateParameter)

	inc := tm.Function([]*types.Type{tm.Int()}, tm.Int())
	params := []Entry[*types.Type]{{"inc", inc}}
	mustType(t, tm, "inc(41)", params, "Int")
	mustFail(t, tm, "inc(41, 1)", params, diagnostics.ErrE007ParamCountMismatch)
	mustFail(t, tm, `inc("s")`, params, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, "x(1)", []Entry[*types.Type]{{"x", tm.Int()}}, diagnostics.ErrE001TypeMismatch)
}

func TestPolymorphicCallSites(t *testing.T) {
	tm := types.NewManager(arena.New())
	// id : (t) => t used at two different types in one expression.
	v := tm.FreshTypeVar()
	id := tm.Function([]*types.Type{v}, v)
	params := []Entry[*types.Type]{{"id", id}}
	mustType(t, tm, `id(1) + 1`, params, "Int")
	mustType(t, tm, `f"{id(1)} {id("s")}"`, params, "Str")
}

func TestIndexing(t *testing.T) {
	tm := types.NewManager(arena.New())
	mp, _ := tm.Map(tm.Str(), tm.Int())
	params := []Entry[*types.Type]{
		{"arr", tm.Array(tm.Int())},
		{"m", mp},
		{"bs", tm.Bytes()},
	}
	mustType(t, tm, "arr[0]", params, "Int")
	mustType(t, tm, `m["k"]`, params, "Int")
	mustType(t, tm, "bs[1]", params, "Int")
	mustFail(t, tm, `arr["s"]`, params, diagnostics.ErrE004ConstraintViolation)
	mustFail(t, tm, "true[0]", params, diagnostics.ErrE004ConstraintViolation)
}

func TestFieldAccess(t *testing.T) {
	tm := types.NewManager(arena.New())
	rec, _ := tm.Record([]types.Field{{Name: "x", Type: tm.Int()}, {Name: "y", Type: tm.Int()}})
	params := []Entry[*types.Type]{{"p", rec}}
	mustType(t, tm, "p.x + p.y", params, "Int")
	mustFail(t, tm, "p.z", params, diagnostics.ErrE009UnknownField)
	mustFail(t, tm, "1 .x", params, diagnostics.ErrE011NotARecord)
	mustFail(t, tm, "(r) => r.x", nil, diagnostics.ErrE010CannotInferRecordType)
}

func TestCasts(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "1 as Float", nil, "Float")
	mustType(t, tm, "1.5 as Int", nil, "Int")
	mustType(t, tm, `"s" as Bytes`, nil, "Bytes")
	mustType(t, tm, `b"s" as Str`, nil, "Str")
	mustType(t, tm, `("s" as Bytes) as Str`, nil, "Str")
	mustFail(t, tm, "1 as Int", nil, diagnostics.ErrE013InvalidCast) // identity
	mustFail(t, tm, "true as Int", nil, diagnostics.ErrE013InvalidCast)
	mustFail(t, tm, `1 as Str`, nil, diagnostics.ErrE013InvalidCast)
	mustFail(t, tm, "1 as Nope", nil, diagnostics.ErrE012InvalidTypeExpression)
}

func TestContainersInference(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "[1, 2, 3]", nil, "Array[Int]")
	mustType(t, tm, `{"a": 1, "b": 2}`, nil, "Map[Str, Int]")
	mustType(t, tm, "{ x = 1, y = 2.0 }", nil, "Record[x: Int, y: Float]")
	mustFail(t, tm, `[1, "s"]`, nil, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, `{"a": 1, 2: 3}`, nil, diagnostics.ErrE001TypeMismatch)
	mustFail(t, tm, `{ x = 1, x = 2 }`, nil, diagnostics.ErrE015DuplicateBinding)
	mustFail(t, tm, `{"a": 1, "a": 2}`, nil, diagnostics.ErrE018DuplicateMapKey)
}

func TestRecordFieldOrderInsensitive(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, "{ b = 2, a = 1 }", nil, "Record[a: Int, b: Int]")
}

func TestMembership(t *testing.T) {
	tm := types.NewManager(arena.New())
	mp, _ := tm.Map(tm.Str(), tm.Int())
	params := []Entry[*types.Type]{{"m", mp}, {"arr", tm.Array(tm.Int())}}
	mustType(t, tm, `"k" in m`, params, "Bool")
	mustType(t, tm, "1 not in arr", params, "Bool")
	mustFail(t, tm, "1 in 2", params, diagnostics.ErrE008NotIndexable)
}

func TestFormatStrings(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustType(t, tm, `f"x = {1 + 2}"`, nil, "Str")
	inc := tm.Function([]*types.Type{tm.Int()}, tm.Int())
	mustFail(t, tm, `f"{inc}"`, []Entry[*types.Type]{{"inc", inc}}, diagnostics.ErrE016NotFormattable)
}

func TestOtherwiseInference(t *testing.T) {
	tm := types.NewManager(arena.New())
	params := []Entry[*types.Type]{{"arr", tm.Array(tm.Int())}}
	mustType(t, tm, "arr[10] otherwise -1", params, "Int")
	mustFail(t, tm, `arr[10] otherwise "s"`, params, diagnostics.ErrE004ConstraintViolation)
}

func TestResidualTypeVariablesRejected(t *testing.T) {
	tm := types.NewManager(arena.New())
	mustFail(t, tm, "[]", nil, diagnostics.ErrE004ConstraintViolation)
}
