package broadcast

import (
	"testing"

	"strand/internal/cursor"
	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/vlist"
)

func TestContiguousLowOnesAcceptsRuns(t *testing.T) {
	cases := []uint64{0, 1, 0b11, 0b111}
	for _, m := range cases {
		if !contiguousLowOnes(m) {
			t.Errorf("contiguousLowOnes(%b) = false, want true", m)
		}
	}
}

func TestContiguousLowOnesRejectsGaps(t *testing.T) {
	cases := []uint64{0b10, 0b101, 0b1010}
	for _, m := range cases {
		if contiguousLowOnes(m) {
			t.Errorf("contiguousLowOnes(%b) = true, want false (has a gap)", m)
		}
	}
}

func TestBitSet(t *testing.T) {
	m := uint64(0b101)
	if !bitSet(m, 0) || bitSet(m, 1) || !bitSet(m, 2) {
		t.Fatalf("bitSet(%b, *) wrong", m)
	}
}

func addApplier() Applier {
	return ApplierFunc(func(ctx vlist.Ctx, args []value.V) (value.V, error) {
		return value.Real(args[0].AsReal() + args[1].AsReal()), nil
	})
}

func TestEachMapNoAnnotatedLevelsErrors(t *testing.T) {
	_, err := EachMap(addApplier(), []EachArg{
		{Value: value.Real(1), Mask: 0},
		{Value: value.Real(2), Mask: 0},
	}, 4)
	if !errors.Is(err, errors.InternalError) {
		t.Fatalf("expected InternalError, got %v", err)
	}
}

func TestEachMapGapInLevelsErrors(t *testing.T) {
	l := vListOf([]value.V{value.Real(1), value.Real(2)}, 4)
	_, err := EachMap(addApplier(), []EachArg{
		{Value: value.FromRef(value.KindList, l), Mask: 0b10},
		{Value: value.Real(1), Mask: 0},
	}, 4)
	if !errors.Is(err, errors.Syntax) {
		t.Fatalf("expected Syntax error for a gapped mask, got %v", err)
	}
}

func TestEachMapSingleLevelZipsLists(t *testing.T) {
	a := vListOf([]value.V{value.Real(1), value.Real(2), value.Real(3)}, 4)
	b := vListOf([]value.V{value.Real(10), value.Real(20), value.Real(30)}, 4)
	result, err := EachMap(addApplier(), []EachArg{
		{Value: value.FromRef(value.KindList, a), Mask: 1},
		{Value: value.FromRef(value.KindList, b), Mask: 1},
	}, 4)
	if err != nil {
		t.Fatalf("EachMap: %v", err)
	}
	list := result.Ref().(*vlist.List)
	out := make([]float64, 3)
	n, err := list.FillFloats(testCtx(), 3, out)
	if err != nil {
		t.Fatalf("FillFloats: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	want := []float64{11, 22, 33}
	for i, v := range out {
		if v != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestEachMapBroadcastsUnmaskedScalar(t *testing.T) {
	a := vListOf([]value.V{value.Real(1), value.Real(2)}, 4)
	result, err := EachMap(addApplier(), []EachArg{
		{Value: value.FromRef(value.KindList, a), Mask: 1},
		{Value: value.Real(100), Mask: 0},
	}, 4)
	if err != nil {
		t.Fatalf("EachMap: %v", err)
	}
	list := result.Ref().(*vlist.List)
	out := make([]float64, 2)
	n, err := list.FillFloats(testCtx(), 2, out)
	if err != nil {
		t.Fatalf("FillFloats: %v", err)
	}
	if n != 2 || out[0] != 101 || out[1] != 102 {
		t.Fatalf("out = %v, n = %d, want [101 102]", out, n)
	}
}

func TestEachMapTwoLevelsNestsLists(t *testing.T) {
	// Mask bits 0 and 1 set on the list argument only: each element of its
	// outer list is itself a V-list, so the recursion descends one
	// level before applying app, producing a list of lists.
	inner1 := vListOf([]value.V{value.Real(1), value.Real(2)}, 4)
	inner2 := vListOf([]value.V{value.Real(3), value.Real(4)}, 4)
	outer := vListOf([]value.V{
		value.FromRef(value.KindList, inner1),
		value.FromRef(value.KindList, inner2),
	}, 4)
	result, err := EachMap(addApplier(), []EachArg{
		{Value: value.FromRef(value.KindList, outer), Mask: 0b11},
		{Value: value.Real(100), Mask: 0},
	}, 4)
	if err != nil {
		t.Fatalf("EachMap: %v", err)
	}
	top := result.Ref().(*vlist.List)
	topCursor := cursor.NewVIn(value.FromRef(value.KindList, top))
	firstV, exhausted, err := topCursor.One(testCtx())
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if exhausted {
		t.Fatal("expected a first outer element")
	}
	first := firstV.Ref().(*vlist.List)
	out := make([]float64, 2)
	fn, err := first.FillFloats(testCtx(), 2, out)
	if err != nil {
		t.Fatalf("FillFloats: %v", err)
	}
	if fn != 2 || out[0] != 101 || out[1] != 102 {
		t.Fatalf("inner list = %v, n = %d, want [101 102]", out, fn)
	}
}
