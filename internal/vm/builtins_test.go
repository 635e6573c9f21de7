package vm

import (
	"testing"

	"strand/internal/concurrency"
	"strand/internal/errors"
	"strand/internal/value"
)

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("nope"); ok {
		t.Fatal("expected Lookup to report false for an unregistered name")
	}
}

func TestStandardRegistryHasArithmetic(t *testing.T) {
	r := NewStandardRegistry()
	for _, name := range []string{"+", "-", "*", "/", "%", "==", "!=", ">", "<", ">=", "<=", "neg", "dup", "drop", "swap", "try"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("missing standard primitive %q", name)
		}
	}
}

func callPrim(t *testing.T, p *Primitive, th *Thread, args ...value.V) []value.V {
	t.Helper()
	out, err := p.Fn(th, args)
	if err != nil {
		t.Fatalf("%s: %v", p.Name, err)
	}
	return out
}

func TestAddPrimitive(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup("+")
	out := callPrim(t, p, testThread(), value.Real(2), value.Real(3))
	if len(out) != 1 || out[0].AsReal() != 5 {
		t.Fatalf("+ = %v, want [5]", out)
	}
}

func TestBinaryOpRejectsNonReal(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup("+")
	_, err := p.Fn(testThread(), []value.V{value.FromRef(value.KindString, &value.String{Text: "x"}), value.Real(1)})
	if !errors.Is(err, errors.WrongType) {
		t.Fatalf("expected WrongType, got %v", err)
	}
}

func TestComparisonPrimitiveReturnsBoolAsReal(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup(">")
	out := callPrim(t, p, testThread(), value.Real(5), value.Real(3))
	if out[0].AsReal() != 1 {
		t.Fatalf("5 > 3 = %v, want 1", out[0].AsReal())
	}
}

func TestNegPrimitive(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup("neg")
	out := callPrim(t, p, testThread(), value.Real(5))
	if out[0].AsReal() != -5 {
		t.Fatalf("neg(5) = %v, want -5", out[0].AsReal())
	}
}

func TestDupDropSwap(t *testing.T) {
	r := NewStandardRegistry()
	dupP, _ := r.Lookup("dup")
	out := callPrim(t, dupP, testThread(), value.Real(9))
	if len(out) != 2 || out[0].AsReal() != 9 || out[1].AsReal() != 9 {
		t.Fatalf("dup = %v", out)
	}

	dropP, _ := r.Lookup("drop")
	out = callPrim(t, dropP, testThread(), value.Real(9))
	if len(out) != 0 {
		t.Fatalf("drop = %v, want none", out)
	}

	swapP, _ := r.Lookup("swap")
	out = callPrim(t, swapP, testThread(), value.Real(1), value.Real(2))
	if out[0].AsReal() != 2 || out[1].AsReal() != 1 {
		t.Fatalf("swap = %v, want [2 1]", out)
	}
}

func TestTryCatchesError(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup("try")
	th := testThread()
	badFn := value.FromRef(value.KindString, &value.String{Text: "not callable"})
	out := callPrim(t, p, th, badFn)
	if len(out) != 1 {
		t.Fatalf("try = %v, want one value", out)
	}
	s, ok := out[0].Ref().(*value.String)
	if !ok || s.Text == "" {
		t.Fatalf("try must push the error message as a string, got %v", out[0])
	}
}

func TestTryPassesThroughSuccess(t *testing.T) {
	r := NewStandardRegistry()
	p, _ := r.Lookup("try")
	th := testThread()
	plus, _ := r.Lookup("+")
	th.Push(value.Real(2))
	th.Push(value.Real(3))
	fn := value.FromRef(value.KindPrimitive, plus)
	out := callPrim(t, p, th, fn)
	if out[0].AsReal() != 5 {
		t.Fatalf("try(+) = %v, want 5", out[0].AsReal())
	}
}

func TestGoPrimitiveSpawnsChildThread(t *testing.T) {
	r := NewStandardRegistry()
	spawner := concurrency.NewSpawner()
	RegisterConcurrency(r, spawner)
	goP, _ := r.Lookup("go")

	ws := NewWorkspace()
	th := NewThread(ws, Rate{SampleRate: 44100, BlockSize: 4}, 1)

	var ran bool
	fn := &Primitive{Name: "mark", Takes: 0, Leaves: 1, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			ran = true
			return []value.V{value.Real(1)}, nil
		}}
	out := callPrim(t, goP, th, value.FromRef(value.KindPrimitive, fn))
	if len(out) != 0 {
		t.Fatalf("go primitive must leave nothing on the stack, got %v", out)
	}
	if err := spawner.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran {
		t.Fatal("expected the spawned function to have run")
	}
}
