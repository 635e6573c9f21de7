package cursor

import (
	"testing"

	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

type stubCtx struct{}

func (stubCtx) SampleRate() float64 { return 44100 }
func (stubCtx) BlockSize() int      { return 4 }
func (stubCtx) Rand() float64       { return 0.5 }
func (stubCtx) Apply(fn value.V, args []value.V) (value.V, error) {
	return value.Nil, nil
}

func testCtx() vlist.Ctx { return stubCtx{} }

// zListOf builds a finite Z list over the given floats, split into
// blocks of blockSize, mirroring how a real generator would hand out
// its samples a segment at a time.
func zListOf(vals []float64, blockSize int) *vlist.List {
	pos := 0
	return vlist.NewFuncList(varray.KindZ, blockSize, true, func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		if pos >= len(vals) {
			out.End()
			return nil
		}
		arr := varray.NewZ(blockSize)
		for i := 0; i < blockSize && pos < len(vals); i++ {
			arr.AddZ(vals[pos])
			pos++
		}
		out.Fulfill(arr)
		return nil
	})
}

func vListOf(vals []value.V, blockSize int) *vlist.List {
	pos := 0
	return vlist.NewFuncList(varray.KindV, blockSize, true, func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		if pos >= len(vals) {
			out.End()
			return nil
		}
		arr := varray.NewV(blockSize)
		for i := 0; i < blockSize && pos < len(vals); i++ {
			arr.AddV(vals[pos])
			pos++
		}
		out.Fulfill(arr)
		return nil
	})
}

func TestVInConstantNeverExhausts(t *testing.T) {
	c := NewVIn(value.Real(7))
	if !c.IsConstant() {
		t.Fatal("expected a scalar V to build a constant cursor")
	}
	for i := 0; i < 3; i++ {
		v, exhausted, err := c.One(testCtx())
		if err != nil || exhausted {
			t.Fatalf("One() = %v, %v, %v", v, exhausted, err)
		}
		if v.AsReal() != 7 {
			t.Fatalf("One() = %v, want 7", v.AsReal())
		}
	}
}

func TestVInListOneAdvances(t *testing.T) {
	vals := []value.V{value.Real(1), value.Real(2), value.Real(3)}
	l := vListOf(vals, 2)
	c := NewVIn(value.FromRef(value.KindList, l))

	for i, want := range vals {
		v, exhausted, err := c.One(testCtx())
		if err != nil {
			t.Fatalf("One(%d): %v", i, err)
		}
		if exhausted {
			t.Fatalf("One(%d): unexpectedly exhausted", i)
		}
		if v.AsReal() != want.AsReal() {
			t.Fatalf("One(%d) = %v, want %v", i, v.AsReal(), want.AsReal())
		}
	}
	_, exhausted, err := c.One(testCtx())
	if err != nil {
		t.Fatalf("final One: %v", err)
	}
	if !exhausted {
		t.Fatal("expected exhaustion after consuming every element")
	}
}

func TestVInFillAcrossSegments(t *testing.T) {
	vals := []value.V{value.Real(1), value.Real(2), value.Real(3), value.Real(4), value.Real(5)}
	l := vListOf(vals, 2)
	c := NewVIn(value.FromRef(value.KindList, l))

	out := make([]value.V, 5)
	n, err := c.Fill(testCtx(), 5, out)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if n != 5 {
		t.Fatalf("written = %d, want 5", n)
	}
	for i, v := range out {
		if v.AsReal() != float64(i+1) {
			t.Errorf("out[%d] = %v, want %v", i, v.AsReal(), i+1)
		}
	}
}

func TestZInConstantFill(t *testing.T) {
	c := NewZInConst(2.5)
	out := make([]float64, 4)
	n, err := c.Fill(testCtx(), 4, out)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if n != 4 {
		t.Fatalf("written = %d, want 4", n)
	}
	for _, v := range out {
		if v != 2.5 {
			t.Errorf("out = %v, want all 2.5", out)
		}
	}
}

func TestZInListHop(t *testing.T) {
	l := zListOf([]float64{1, 2, 3, 4, 5}, 2)
	c := NewZIn(value.FromRef(value.KindList, l))

	if err := c.Hop(testCtx(), 2); err != nil {
		t.Fatalf("Hop: %v", err)
	}
	v, exhausted, err := c.One(testCtx())
	if err != nil || exhausted {
		t.Fatalf("One after Hop: %v, %v, %v", v, exhausted, err)
	}
	if v != 3 {
		t.Fatalf("One after Hop(2) = %v, want 3", v)
	}
}

func TestZInMixAccumulates(t *testing.T) {
	l := zListOf([]float64{1, 2, 3}, 4)
	c := NewZIn(value.FromRef(value.KindList, l))

	out := []float64{10, 20, 30}
	n, err := c.Mix(testCtx(), 3, out)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}
	want := []float64{11, 22, 33}
	for i, v := range out {
		if v != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestZInMixConstant(t *testing.T) {
	c := NewZInConst(1)
	out := []float64{5, 5}
	n, err := c.Mix(testCtx(), 2, out)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if n != 2 || out[0] != 6 || out[1] != 6 {
		t.Fatalf("out = %v, n = %d", out, n)
	}
}

func TestBothInOverZList(t *testing.T) {
	l := zListOf([]float64{1, 2}, 4)
	b := NewBothIn(value.FromRef(value.KindList, l))

	v, _, err := b.OneV(testCtx())
	if err != nil {
		t.Fatalf("OneV: %v", err)
	}
	if !v.IsReal() || v.AsReal() != 1 {
		t.Fatalf("OneV = %v", v)
	}
	z, _, err := b.OneZ(testCtx())
	if err != nil {
		t.Fatalf("OneZ: %v", err)
	}
	if z != 2 {
		t.Fatalf("OneZ = %v, want 2", z)
	}
}

func TestBothInOverScalar(t *testing.T) {
	b := NewBothIn(value.Real(9))
	z, exhausted, err := b.OneZ(testCtx())
	if err != nil || exhausted {
		t.Fatalf("OneZ = %v, %v, %v", z, exhausted, err)
	}
	if z != 9 {
		t.Fatalf("OneZ = %v, want 9", z)
	}
	v, _, err := b.OneV(testCtx())
	if err != nil {
		t.Fatalf("OneV: %v", err)
	}
	if v.AsReal() != 9 {
		t.Fatalf("OneV = %v, want 9", v.AsReal())
	}
}

func TestVInLinkSplicesRemainingList(t *testing.T) {
	l := vListOf([]value.V{value.Real(1), value.Real(2)}, 4)
	c := NewVIn(value.FromRef(value.KindList, l))
	c.One(testCtx())

	output := vlist.Terminal(varray.KindV)
	spliced := c.Link(output)
	if spliced != l {
		t.Fatal("Link over a list cursor should splice in the underlying list")
	}
}

func TestVInLinkOnConstantReturnsOutputUnchanged(t *testing.T) {
	c := NewVIn(value.Real(1))
	output := vlist.Terminal(varray.KindV)
	if got := c.Link(output); got != output {
		t.Fatal("Link on a constant cursor must return output unchanged")
	}
}
