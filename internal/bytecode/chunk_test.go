package bytecode

import (
	"testing"

	"strand/internal/value"
)

func TestPushImmediateRecordsDebugInfo(t *testing.T) {
	c := NewCode()
	c.PushImmediate(value.Real(1), DebugInfo{Line: 3, Column: 5, File: "a.strand"})

	if len(c.Instrs) != 1 || c.Instrs[0].Op != OpPushImmediate {
		t.Fatalf("Instrs = %v", c.Instrs)
	}
	if c.Instrs[0].Imm.AsReal() != 1 {
		t.Fatalf("Imm = %v", c.Instrs[0].Imm.AsReal())
	}
	d := c.DebugAt(0)
	if d.Line != 3 || d.Column != 5 || d.File != "a.strand" {
		t.Fatalf("DebugAt(0) = %+v", d)
	}
}

func TestDebugAtOutOfRangeReturnsZeroValue(t *testing.T) {
	c := NewCode()
	c.PushImmediate(value.Real(1), DebugInfo{})
	if got := c.DebugAt(5); got != (DebugInfo{}) {
		t.Fatalf("DebugAt(5) = %+v, want zero value", got)
	}
	if got := c.DebugAt(-1); got != (DebugInfo{}) {
		t.Fatalf("DebugAt(-1) = %+v, want zero value", got)
	}
}

func TestEmitHelpersSetOpAndOperands(t *testing.T) {
	c := NewCode()
	c.PushLocal(2, DebugInfo{})
	c.PushFunVar(1, DebugInfo{})
	c.PushWorkspace("x", DebugInfo{})
	c.CallLocal(0, DebugInfo{})
	c.Dot("freq", DebugInfo{})
	c.Comma("amp", DebugInfo{})
	c.BindLocal(3, DebugInfo{})
	c.BindLocalFromList([]int{0, 1}, DebugInfo{})
	c.BindWorkspace("y", DebugInfo{})
	c.BindWorkspaceFromList([]string{"a", "b"}, DebugInfo{})
	c.Each(5, DebugInfo{})
	c.Return(DebugInfo{})

	want := []Op{
		OpPushLocal, OpPushFunVar, OpPushWorkspace, OpCallLocal,
		OpDot, OpComma, OpBindLocal, OpBindLocalFromList,
		OpBindWorkspace, OpBindWorkspaceFromList, OpEach, OpReturn,
	}
	if len(c.Instrs) != len(want) {
		t.Fatalf("Instrs len = %d, want %d", len(c.Instrs), len(want))
	}
	for i, op := range want {
		if c.Instrs[i].Op != op {
			t.Errorf("Instrs[%d].Op = %v, want %v", i, c.Instrs[i].Op, op)
		}
	}
	if c.Instrs[2].Name != "x" {
		t.Errorf("PushWorkspace name = %q", c.Instrs[2].Name)
	}
	if len(c.Instrs[7].Indices) != 2 {
		t.Errorf("BindLocalFromList indices = %v", c.Instrs[7].Indices)
	}
	if len(c.Instrs[9].Names) != 2 {
		t.Errorf("BindWorkspaceFromList names = %v", c.Instrs[9].Names)
	}
	if c.Instrs[10].Mask != 5 {
		t.Errorf("Each mask = %d", c.Instrs[10].Mask)
	}
}

func TestNestedBlockOpsCarryBlock(t *testing.T) {
	inner := NewCode()
	inner.PushImmediate(value.Real(1), DebugInfo{})

	c := NewCode()
	c.Parens(inner, DebugInfo{})
	c.NewVList(inner, DebugInfo{})
	c.NewForm(inner, DebugInfo{})
	c.Inherit(inner, DebugInfo{})

	for i, op := range []Op{OpParens, OpNewVList, OpNewForm, OpInherit} {
		if c.Instrs[i].Op != op {
			t.Errorf("Instrs[%d].Op = %v, want %v", i, c.Instrs[i].Op, op)
		}
		if c.Instrs[i].Block != inner {
			t.Errorf("Instrs[%d].Block not wired to inner code", i)
		}
	}
}

func TestOpStringKnownAndUnknown(t *testing.T) {
	if OpPushImmediate.String() != "PushImmediate" {
		t.Errorf("OpPushImmediate.String() = %q", OpPushImmediate.String())
	}
	if OpReturn.String() != "Return" {
		t.Errorf("OpReturn.String() = %q", OpReturn.String())
	}
	if Op(200).String() != "Unknown" {
		t.Errorf("unknown op String() = %q", Op(200).String())
	}
}
