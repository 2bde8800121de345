package melbi

import (
	"strings"
	"testing"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/value"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(arena.New(), EngineOptions{}, diagnostics.Discard)
}

func TestCompileAndRun(t *testing.T) {
	e := newTestEngine(t)
	tm := e.TypeManager()
	expr, err := e.Compile(CompileOptions{}, "x + y",
		[]Param{{"x", tm.Int()}, {"y", tm.Int()}})
	if err != nil {
		t.Fatal(err)
	}
	if got := expr.ReturnType(); got != tm.Int() {
		t.Errorf("ReturnType = %s", got)
	}
	if len(expr.Params()) != 2 || expr.Params()[0].Name != "x" {
		t.Errorf("Params = %+v", expr.Params())
	}

	v, err := expr.Run(arena.New(), []value.Value{
		value.Int(tm, 10), value.Int(tm, 32),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsInt(); got != 42 {
		t.Errorf("= %d, want 42", got)
	}

	// The same compiled expression runs repeatedly against fresh arenas.
	v, err = expr.Run(arena.New(), []value.Value{
		value.Int(tm, 1), value.Int(tm, 2),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsInt(); got != 3 {
		t.Errorf("second run = %d, want 3", got)
	}
}

func TestRunValidatesArguments(t *testing.T) {
	e := newTestEngine(t)
	tm := e.TypeManager()
	expr, err := e.Compile(CompileOptions{}, "x + 1", []Param{{"x", tm.Int()}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = expr.Run(arena.New(), nil, nil)
	d, ok := err.(*diagnostics.Diagnostic)
	if !ok || d.Code != diagnostics.ErrA001ArgumentCount {
		t.Errorf("missing args error = %v", err)
	}

	_, err = expr.Run(arena.New(), []value.Value{value.Float(tm, 1.0)}, nil)
	d, ok = err.(*diagnostics.Diagnostic)
	if !ok || d.Code != diagnostics.ErrA002ArgumentType {
		t.Errorf("wrong type error = %v", err)
	}
}

func TestCompileErrorsReachTheSink(t *testing.T) {
	var seen []*diagnostics.Diagnostic
	e := New(arena.New(), EngineOptions{}, func(d *diagnostics.Diagnostic) {
		seen = append(seen, d)
	})
	_, err := e.Compile(CompileOptions{}, "nope", nil)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if len(seen) != 1 || seen[0].Code != diagnostics.ErrE002UnboundVariable {
		t.Fatalf("sink saw %+v", seen)
	}
	// The diagnostic carries the engine identity for attribution.
	found := false
	for _, r := range seen[0].Related {
		if strings.Contains(r.Message, e.ID()) {
			found = true
		}
	}
	if !found {
		t.Error("diagnostic does not name the engine")
	}
}

func TestBindGlobals(t *testing.T) {
	e := newTestEngine(t)
	tm := e.TypeManager()
	e.Bind("answer", value.Int(tm, 42))

	expr, err := e.Compile(CompileOptions{}, "answer / 2", nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := expr.Run(arena.New(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsInt(); got != 21 {
		t.Errorf("= %d, want 21", got)
	}
}

func TestBindFunc(t *testing.T) {
	e := newTestEngine(t)
	tm := e.TypeManager()
	if err := e.BindFunc("double", func(x int64) int64 { return x * 2 }); err != nil {
		t.Fatal(err)
	}
	if err := e.BindFunc("concat", func(a, b string) string { return a + b }); err != nil {
		t.Fatal(err)
	}

	expr, err := e.Compile(CompileOptions{}, "double(x) + 1", []Param{{"x", tm.Int()}})
	if err != nil {
		t.Fatal(err)
	}
	v, err := expr.Run(arena.New(), []value.Value{value.Int(tm, 20)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsInt(); got != 41 {
		t.Errorf("= %d, want 41", got)
	}

	expr, err = e.Compile(CompileOptions{}, `concat("a", "b")`, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err = expr.Run(arena.New(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsStr(); got != "ab" {
		t.Errorf("= %q, want ab", got)
	}
}

func TestBindFuncErrors(t *testing.T) {
	e := newTestEngine(t)
	if err := e.BindFunc("notAFunc", 42); err == nil {
		t.Error("binding a non-function should fail")
	}
	if err := e.BindFunc("variadic", func(xs ...int64) int64 { return 0 }); err == nil {
		t.Error("binding a variadic function should fail")
	}
}

func TestBoundFunctionFailureIsRecoverable(t *testing.T) {
	e := newTestEngine(t)
	if err := e.BindFunc("boom", func(x int64) (int64, error) {
		return 0, errTest
	}); err != nil {
		t.Fatal(err)
	}
	expr, err := e.Compile(CompileOptions{}, "boom(1) otherwise -1", nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := expr.Run(arena.New(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsInt(); got != -1 {
		t.Errorf("= %d, want -1", got)
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "native failure" }

func TestExecutionOptionsPlumbing(t *testing.T) {
	e := New(arena.New(), EngineOptions{
		DefaultExecution: ExecutionOptions{MaxInstructions: 1},
	}, diagnostics.Discard)
	expr, err := e.Compile(CompileOptions{}, "1 + 2 + 3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := expr.Run(arena.New(), nil, nil); err == nil {
		t.Error("default instruction limit was not applied")
	}
	// Per-run options override the default.
	if _, err := expr.Run(arena.New(), nil, &ExecutionOptions{}); err != nil {
		t.Errorf("override failed: %v", err)
	}
}

func TestParseDepthOption(t *testing.T) {
	e := New(arena.New(), EngineOptions{MaxParseDepth: 5}, diagnostics.Discard)
	_, err := e.Compile(CompileOptions{}, "((((((((1))))))))", nil)
	d, ok := err.(*diagnostics.Diagnostic)
	if !ok || d.Code != diagnostics.ErrP007DepthExceeded {
		t.Fatalf("expected P007, got %v", err)
	}
}

func TestCastTargetIsInterned(t *testing.T) {
	e := newTestEngine(t)
	tm := e.TypeManager()
	expr, err := e.Compile(CompileOptions{}, "1 as Float", nil)
	if err != nil {
		t.Fatal(err)
	}
	if expr.ReturnType() != tm.Float() {
		t.Error("cast target is not the interned Float")
	}
}
