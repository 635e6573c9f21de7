package compiler

import (
	"testing"

	"strand/internal/bytecode"
	"strand/internal/value"
	"strand/internal/vm"
)

func compile(t *testing.T, src string) *bytecode.Code {
	t.Helper()
	c := NewCompiler(vm.NewStandardRegistry())
	code, err := c.Compile(src, "test")
	if err != nil {
		t.Fatalf("compile(%q): %v", src, err)
	}
	return code
}

func opsOf(code *bytecode.Code) []bytecode.Op {
	out := make([]bytecode.Op, len(code.Instrs))
	for i, in := range code.Instrs {
		out[i] = in.Op
	}
	return out
}

func assertOps(t *testing.T, code *bytecode.Code, want ...bytecode.Op) {
	t.Helper()
	got := opsOf(code)
	if len(got) != len(want) {
		t.Fatalf("op count = %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i, op := range want {
		if got[i] != op {
			t.Fatalf("op[%d] = %v, want %v (full: %v)", i, got[i], op, got)
		}
	}
}

func TestCompileNumberLiteral(t *testing.T) {
	code := compile(t, "3.5")
	assertOps(t, code, bytecode.OpPushImmediate, bytecode.OpReturn)
	if got := code.Instrs[0].Imm.AsReal(); got != 3.5 {
		t.Errorf("pushed %v, want 3.5", got)
	}
}

func TestCompileNegativeAndSign(t *testing.T) {
	code := compile(t, "-2 +3")
	assertOps(t, code, bytecode.OpPushImmediate, bytecode.OpPushImmediate, bytecode.OpReturn)
	if code.Instrs[0].Imm.AsReal() != -2 || code.Instrs[1].Imm.AsReal() != 3 {
		t.Fatalf("unexpected immediates: %v %v", code.Instrs[0].Imm.AsReal(), code.Instrs[1].Imm.AsReal())
	}
}

func TestCompileMetricSuffix(t *testing.T) {
	code := compile(t, "2k")
	if got := code.Instrs[0].Imm.AsReal(); got != 2000 {
		t.Errorf("2k = %v, want 2000", got)
	}
}

func TestCompilePi(t *testing.T) {
	code := compile(t, "pi")
	got := code.Instrs[0].Imm.AsReal()
	if got < 3.14159 || got > 3.14160 {
		t.Errorf("pi = %v", got)
	}
}

func TestCompileBuiltinCall(t *testing.T) {
	code := compile(t, "1 2 +")
	assertOps(t, code, bytecode.OpPushImmediate, bytecode.OpPushImmediate, bytecode.OpCallImmediate, bytecode.OpReturn)
	p, ok := code.Instrs[2].Imm.Ref().(*vm.Primitive)
	if !ok || p.Name != "+" {
		t.Fatalf("expected + primitive, got %#v", code.Instrs[2].Imm.Ref())
	}
}

func TestCompileTopLevelAssignBindsWorkspace(t *testing.T) {
	code := compile(t, "5 =x x")
	assertOps(t, code,
		bytecode.OpPushImmediate,
		bytecode.OpBindWorkspace,
		bytecode.OpCallWorkspace,
		bytecode.OpReturn,
	)
	if code.Instrs[1].Name != "x" || code.Instrs[2].Name != "x" {
		t.Fatalf("expected workspace name x, got %v / %v", code.Instrs[1].Name, code.Instrs[2].Name)
	}
}

func TestCompileMultiAssignOrder(t *testing.T) {
	// `1 2 =(a b)` binds stack-order left to right: a=1, b=2. The
	// rightmost name pops the value nearest the top of the stack.
	code := compile(t, "1 2 =(a b) a b")
	assertOps(t, code,
		bytecode.OpPushImmediate,
		bytecode.OpPushImmediate,
		bytecode.OpBindWorkspace,
		bytecode.OpBindWorkspace,
		bytecode.OpCallWorkspace,
		bytecode.OpCallWorkspace,
		bytecode.OpReturn,
	)
	if code.Instrs[2].Name != "b" || code.Instrs[3].Name != "a" {
		t.Fatalf("expected bind order b,a got %v,%v", code.Instrs[2].Name, code.Instrs[3].Name)
	}
}

func TestCompileLambdaParamsAreLocals(t *testing.T) {
	code := compile(t, "\\a b [ a b + ]")
	assertOps(t, code, bytecode.OpPushFun, bytecode.OpReturn)
	def := code.Instrs[0].Def
	if def.NumLocals != 2 {
		t.Fatalf("NumLocals = %d, want 2", def.NumLocals)
	}
	assertOps(t, def.Body,
		bytecode.OpPushLocal,
		bytecode.OpPushLocal,
		bytecode.OpCallImmediate,
		bytecode.OpReturn,
	)
	if def.Body.Instrs[0].Index != 0 || def.Body.Instrs[1].Index != 1 {
		t.Fatalf("unexpected local indices: %v", def.Body.Instrs)
	}
}

func TestCompileLambdaClosesOverImmediateParent(t *testing.T) {
	code := compile(t, "\\x [ \\y [ x y + ] ]")
	outerDef := code.Instrs[0].Def
	pushInner := outerDef.Body.Instrs[0]
	if pushInner.Op != bytecode.OpPushFun {
		t.Fatalf("expected nested OpPushFun, got %v", pushInner.Op)
	}
	innerBody := pushInner.Def.Body
	if innerBody.Instrs[0].Op != bytecode.OpPushFunVar || innerBody.Instrs[0].Index != 0 {
		t.Fatalf("expected funvar capture of outer local 0, got %v", innerBody.Instrs[0])
	}
}

func TestCompileArrayLiteralHasNoTrailingReturn(t *testing.T) {
	code := compile(t, "[1 2 3]")
	assertOps(t, code, bytecode.OpNewVList, bytecode.OpReturn)
	block := code.Instrs[0].Block
	for _, in := range block.Instrs {
		if in.Op == bytecode.OpReturn {
			t.Fatalf("array literal body must not contain its own Return: %v", block.Instrs)
		}
	}
}

func TestCompileZArrayLiteral(t *testing.T) {
	code := compile(t, "#[1 2]")
	assertOps(t, code, bytecode.OpNewZList, bytecode.OpReturn)
}

func TestCompileFormLiteralWithColonKeys(t *testing.T) {
	code := compile(t, "{ :freq 440 :amp 0.5 }")
	assertOps(t, code, bytecode.OpNewForm, bytecode.OpReturn)
	block := code.Instrs[0].Block
	if block.Instrs[0].Imm.Kind() != value.KindSymbol {
		t.Fatalf("expected symbol immediate for form key, got %v", block.Instrs[0].Imm.Kind())
	}
}

func TestCompileInheritWithoutColon(t *testing.T) {
	code := compile(t, "{ x y }")
	assertOps(t, code, bytecode.OpInherit, bytecode.OpReturn)
}

func TestCompileDotAndComma(t *testing.T) {
	code := compile(t, "x .freq 9 ,amp")
	ops := opsOf(code)
	foundDot, foundComma := false, false
	for i, op := range ops {
		if op == bytecode.OpDot && code.Instrs[i].Name == "freq" {
			foundDot = true
		}
		if op == bytecode.OpComma && code.Instrs[i].Name == "amp" {
			foundComma = true
		}
	}
	if !foundDot || !foundComma {
		t.Fatalf("expected dot/comma ops with names, got %v", code.Instrs)
	}
}

func TestCompileEachOpMasks(t *testing.T) {
	cases := []struct {
		src  string
		mask uint64
	}{
		{"@", 1},
		{"@@", 3},
		{"@@@", 7},
		{"@3", 4},
		{"@101", 5},
	}
	for _, tc := range cases {
		code := compile(t, tc.src+" +")
		if code.Instrs[0].Op != bytecode.OpEach {
			t.Fatalf("%q: expected Each op first, got %v", tc.src, code.Instrs[0].Op)
		}
		if code.Instrs[0].Mask != tc.mask {
			t.Errorf("%q: mask = %b, want %b", tc.src, code.Instrs[0].Mask, tc.mask)
		}
	}
}

func TestCompileQuoteAndBackquote(t *testing.T) {
	code := compile(t, "'foo")
	if code.Instrs[0].Op != bytecode.OpPushImmediate || code.Instrs[0].Imm.Kind() != value.KindSymbol {
		t.Fatalf("expected symbol push, got %v", code.Instrs[0])
	}

	code2 := compile(t, "\\x [ `x ]")
	body := code2.Instrs[0].Def.Body
	if body.Instrs[0].Op != bytecode.OpPushLocal {
		t.Fatalf("backquote on own param should push the local, got %v", body.Instrs[0])
	}
}

func TestCompileString(t *testing.T) {
	code := compile(t, `"hello\\nworld"`)
	s, ok := code.Instrs[0].Imm.Ref().(*value.String)
	if !ok {
		t.Fatalf("expected string immediate, got %#v", code.Instrs[0].Imm.Ref())
	}
	if s.Text != "hello\nworld" {
		t.Errorf("string = %q", s.Text)
	}
}

func TestCompileParensDoesNotEmitReturn(t *testing.T) {
	code := compile(t, "(1 2 +)")
	assertOps(t, code, bytecode.OpParens, bytecode.OpReturn)
	block := code.Instrs[0].Block
	for _, in := range block.Instrs {
		if in.Op == bytecode.OpReturn {
			t.Fatalf("parens body must not contain its own Return")
		}
	}
}

func TestCompileUnterminatedArrayIsSyntaxError(t *testing.T) {
	c := NewCompiler(vm.NewStandardRegistry())
	if _, err := c.Compile("[1 2", "test"); err == nil {
		t.Fatal("expected a syntax error for an unterminated array literal")
	}
}

func TestCompileColonOutsideFormIsSyntaxError(t *testing.T) {
	c := NewCompiler(vm.NewStandardRegistry())
	if _, err := c.Compile(":x", "test"); err == nil {
		t.Fatal("expected a syntax error for ':' outside a form literal")
	}
}
