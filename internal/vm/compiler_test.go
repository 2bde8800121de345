package vm

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/melbi-lang/melbi/internal/analyzer"
	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/parser"
	"github.com/melbi-lang/melbi/internal/types"
	"github.com/melbi-lang/melbi/internal/value"
)

func compileSrc(t *testing.T, tm *types.Manager, source string, params []Param) (*Code, *types.Type) {
	t.Helper()
	parsed, perr := parser.Parse(source)
	if perr != nil {
		t.Fatalf("Parse(%q): %v", source, perr)
	}
	entries := make([]analyzer.Entry[*types.Type], len(params))
	for i, p := range params {
		entries[i] = analyzer.Entry[*types.Type]{Name: p.Name, Value: p.Type}
	}
	typed, aerr := analyzer.Analyze(tm, arena.New(), parsed, nil, entries)
	if aerr != nil {
		t.Fatalf("Analyze(%q): %v", source, aerr)
	}
	code, cerr := Compile(typed, params, nil)
	if cerr != nil {
		t.Fatalf("Compile(%q): %v", source, cerr)
	}
	return code, typed.Type
}

func ops(code *Code) []Opcode {
	out := make([]Opcode, len(code.Instructions))
	for i, in := range code.Instructions {
		out[i] = in.Op
	}
	return out
}

func TestSimpleArithmeticLowering(t *testing.T) {
	tm := types.NewManager(arena.New())
	code, _ := compileSrc(t, tm, "1 + 2", nil)
	want := []Opcode{OP_CONST_INT, OP_CONST_INT, OP_INT_BINOP, OP_RETURN}
	got := ops(code)
	if len(got) != len(want) {
		t.Fatalf("instructions = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("instruction %d = %s, want %s", i, OpcodeNames[got[i]], OpcodeNames[want[i]])
		}
	}
	if code.MaxStackSize != 2 {
		t.Errorf("MaxStackSize = %d, want 2", code.MaxStackSize)
	}
	if code.Instructions[2].Arg != '+' {
		t.Errorf("IntBinOp operand = %c", code.Instructions[2].Arg)
	}
}

func TestImmediateEncodings(t *testing.T) {
	tm := types.NewManager(arena.New())

	code, _ := compileSrc(t, tm, "-100", nil)
	if code.Instructions[0].Op != OP_CONST_INT {
		t.Errorf("small negative should use ConstInt, got %s", OpcodeNames[code.Instructions[0].Op])
	}

	code, _ = compileSrc(t, tm, "200", nil)
	if code.Instructions[0].Op != OP_CONST_UINT || code.Instructions[0].Arg != 200 {
		t.Errorf("200 should use ConstUInt, got %s(%d)",
			OpcodeNames[code.Instructions[0].Op], code.Instructions[0].Arg)
	}

	code, _ = compileSrc(t, tm, "1000", nil)
	if code.Instructions[0].Op != OP_CONST_LOAD {
		t.Errorf("1000 should use the pool, got %s", OpcodeNames[code.Instructions[0].Op])
	}
	if len(code.Constants) != 1 || code.Constants[0].Int() != 1000 {
		t.Errorf("constants = %v", code.Constants)
	}

	code, _ = compileSrc(t, tm, "true", nil)
	if code.Instructions[0].Op != OP_CONST_TRUE {
		t.Error("true should use ConstTrue")
	}
}

func TestConstantPoolDeduplication(t *testing.T) {
	tm := types.NewManager(arena.New())
	code, _ := compileSrc(t, tm, "1000 + 1000 + 1000", nil)
	if len(code.Constants) != 1 {
		t.Errorf("repeated integer pooled %d times", len(code.Constants))
	}
	code, _ = compileSrc(t, tm, `f"{1} {"s"} {"s"}"`, nil)
	count := 0
	for _, c := range code.Constants {
		if s, ok := c.Ref.(string); ok && s == "s" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("repeated string pooled %d times", count)
	}
}

func TestWhereAllocatesFreshSlots(t *testing.T) {
	tm := types.NewManager(arena.New())
	code, _ := compileSrc(t, tm, "[ x, x where { x = 10 }, x ] where { x = 1 }", nil)
	if code.NumLocals != 2 {
		t.Errorf("NumLocals = %d, want 2 (outer and shadowing slot)", code.NumLocals)
	}
}

func TestParamsOccupyLeadingSlots(t *testing.T) {
	tm := types.NewManager(arena.New())
	params := []Param{{"a", tm.Int()}, {"b", tm.Int()}}
	code, _ := compileSrc(t, tm, "b + a", params)
	if code.NumLocals != 2 {
		t.Errorf("NumLocals = %d", code.NumLocals)
	}
	// b is slot 1, a is slot 0.
	if code.Instructions[0].Op != OP_LOAD_LOCAL || code.Instructions[0].Arg != 1 {
		t.Errorf("first load = %s(%d)", OpcodeNames[code.Instructions[0].Op], code.Instructions[0].Arg)
	}
	if code.Instructions[1].Arg != 0 {
		t.Errorf("second load slot = %d", code.Instructions[1].Arg)
	}
}

func TestIfBranchDepthAccounting(t *testing.T) {
	tm := types.NewManager(arena.New())
	// Both arms leave one value; the max must not sum across arms.
	code, _ := compileSrc(t, tm, "if true then 1 + 2 else 3 + 4", nil)
	if code.MaxStackSize != 2 {
		t.Errorf("MaxStackSize = %d, want 2", code.MaxStackSize)
	}
}

func TestConstantIndexOptimization(t *testing.T) {
	tm := types.NewManager(arena.New())
	params := []Param{{"arr", tm.Array(tm.Int())}}
	code, _ := compileSrc(t, tm, "arr[3]", params)
	found := false
	for _, in := range code.Instructions {
		if in.Op == OP_ARRAY_GET_CONST && in.Arg == 3 {
			found = true
		}
		if in.Op == OP_ARRAY_GET {
			t.Error("dynamic ArrayGet emitted for a constant index")
		}
	}
	if !found {
		t.Error("ArrayGetConst not emitted")
	}

	code, _ = compileSrc(t, tm, "arr[1 + 2]", params)
	foundDyn := false
	for _, in := range code.Instructions {
		if in.Op == OP_ARRAY_GET {
			foundDyn = true
		}
	}
	if !foundDyn {
		t.Error("computed index should use dynamic ArrayGet")
	}
}

func TestLambdaIsRejected(t *testing.T) {
	tm := types.NewManager(arena.New())
	parsed, _ := parser.Parse("(x) => x + 1")
	typed, aerr := analyzer.Analyze(tm, arena.New(), parsed, nil, nil)
	if aerr != nil {
		t.Fatalf("analyze: %v", aerr)
	}
	_, cerr := Compile(typed, nil, nil)
	ce, ok := cerr.(*CompileError)
	if !ok || ce.Code != diagnostics.ErrE017UnsupportedFeature {
		t.Fatalf("expected E017, got %v", cerr)
	}
}

func TestGlobalsAreBakedIntoThePool(t *testing.T) {
	a := arena.New()
	tm := types.NewManager(a)
	answer := value.Int(tm, 42)

	parsed, _ := parser.Parse("answer + 0")
	typed, aerr := analyzer.Analyze(tm, a, parsed,
		[]analyzer.Entry[*types.Type]{{Name: "answer", Value: tm.Int()}}, nil)
	if aerr != nil {
		t.Fatalf("analyze: %v", aerr)
	}
	code, cerr := Compile(typed, nil, []Global{{Name: "answer", Value: answer}})
	if cerr != nil {
		t.Fatal(cerr)
	}
	if len(code.Constants) != 1 || code.Constants[0].Int() != 42 {
		t.Errorf("constants = %v", code.Constants)
	}
}

func TestDisassemblySnapshot(t *testing.T) {
	tm := types.NewManager(arena.New())
	code, _ := compileSrc(t, tm, "if x < 10 then x + 1 else x - 1 where { y = 2 }",
		[]Param{{"x", tm.Int()}})
	snaps.MatchSnapshot(t, Disassemble(code))
}
