package vm

import (
	"testing"

	"strand/internal/form"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

func TestEventOutChannelsBareScalarFillsChannelZeroOnly(t *testing.T) {
	cursors, err := EventOutChannels(testCtx(), value.Real(7), 2)
	if err != nil {
		t.Fatalf("eventOutChannels: %v", err)
	}
	if len(cursors) != 2 {
		t.Fatalf("len = %d, want 2", len(cursors))
	}
	v, ex, err := cursors[0].One(testCtx())
	if err != nil || ex || v != 7 {
		t.Fatalf("channel 0 = %v, %v, %v, want 7", v, ex, err)
	}
	v, ex, err = cursors[1].One(testCtx())
	if err != nil || ex || v != 0 {
		t.Fatalf("channel 1 = %v, %v, %v, want silent 0", v, ex, err)
	}
}

func TestEventOutChannelsFormReadsOutSlot(t *testing.T) {
	l := constZList([]float64{1, 2}, 2)
	tbl := form.NewTable([]string{"out"}, []value.V{value.FromRef(value.KindList, l)})
	f := form.Single(tbl)
	cursors, err := EventOutChannels(testCtx(), value.FromRef(value.KindForm, f), 1)
	if err != nil {
		t.Fatalf("eventOutChannels: %v", err)
	}
	v, _, err := cursors[0].One(testCtx())
	if err != nil || v != 1 {
		t.Fatalf("channel 0 first sample = %v, %v, want 1", v, err)
	}
}

func TestEventOutChannelsVListOfPerChannelStreams(t *testing.T) {
	chan0 := constZList([]float64{10}, 1)
	chan1 := constZList([]float64{20}, 1)
	vl := vlist.NewFuncList(varray.KindV, 2, true, func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		arr := varray.NewV(2)
		arr.AddV(value.FromRef(value.KindList, chan0))
		arr.AddV(value.FromRef(value.KindList, chan1))
		out.Fulfill(arr)
		return nil
	})
	cursors, err := EventOutChannels(testCtx(), value.FromRef(value.KindList, vl), 2)
	if err != nil {
		t.Fatalf("eventOutChannels: %v", err)
	}
	v0, _, _ := cursors[0].One(testCtx())
	v1, _, _ := cursors[1].One(testCtx())
	if v0 != 10 || v1 != 20 {
		t.Fatalf("channels = %v, %v, want 10, 20", v0, v1)
	}
}

func TestEventOutChannelsVListShorterThanChannelsPadsSilence(t *testing.T) {
	chan0 := constZList([]float64{10}, 1)
	vl := vlist.NewFuncList(varray.KindV, 2, true, func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		arr := varray.NewV(1)
		arr.AddV(value.FromRef(value.KindList, chan0))
		out.Fulfill(arr)
		return nil
	})
	cursors, err := EventOutChannels(testCtx(), value.FromRef(value.KindList, vl), 2)
	if err != nil {
		t.Fatalf("eventOutChannels: %v", err)
	}
	v1, ex, err := cursors[1].One(testCtx())
	if err != nil || ex || v1 != 0 {
		t.Fatalf("channel 1 = %v, %v, %v, want silent 0 (no template for this channel)", v1, ex, err)
	}
}

func TestOlaProduceSpawnsAndMixesOneVoice(t *testing.T) {
	tempo := value.Real(1) // 1 beat/sample, constant
	events := vListOf([]value.V{value.FromRef(value.KindList, constZList([]float64{1, 2, 3}, 2))}, 4)
	hops := constZList([]float64{100}, 4) // next event arrives far in the future
	o := NewOla(value.FromRef(value.KindList, events), value.FromRef(value.KindList, hops), tempo, 1)

	out := [][]float64{make([]float64, 4)}
	n, err := o.Produce(testCtx(), out, 4)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4 (more events may still arrive, so the block is not shrunk)", n)
	}
	want := []float64{1, 2, 3, 0}
	for i, v := range out[0] {
		if v != want[i] {
			t.Errorf("out[0][%d] = %v, want %v", i, v, want[i])
		}
	}
	if o.Done() {
		t.Fatal("Ola must not report Done while a future event is still scheduled")
	}
}

func TestOlaProduceShrinksBlockWhenExhausted(t *testing.T) {
	tempo := value.Real(1)
	tmpl0 := value.FromRef(value.KindList, constZList([]float64{10, 20}, 2))
	tmpl1 := value.FromRef(value.KindList, constZList([]float64{30, 40}, 2))
	events := vListOf([]value.V{tmpl0, tmpl1}, 4)
	// A single hop of 0: the first event spawns immediately, then the
	// arrival search re-fires at the same sample because the beat
	// threshold never advanced; the second iteration consumes (and
	// discards) the second event template before discovering hops is
	// exhausted, which ends the spawner without ever voicing tmpl1.
	hops := constZList([]float64{0}, 4)
	o := NewOla(value.FromRef(value.KindList, events), value.FromRef(value.KindList, hops), tempo, 1)

	out := [][]float64{make([]float64, 8)}
	n, err := o.Produce(testCtx(), out, 8)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2 (shrunk to the single spawned voice's length)", n)
	}
	if out[0][0] != 10 || out[0][1] != 20 {
		t.Fatalf("out[0][:2] = %v, want [10 20]", out[0][:2])
	}
	if !o.Done() {
		t.Fatal("expected Done once the event source is exhausted and every voice has finished")
	}
}

func TestOlaProduceMixesOverlappingVoicesAtOffset(t *testing.T) {
	tempo := value.Real(0.5) // 1 beat per 2 samples
	tmpl := value.FromRef(value.KindList, constZList([]float64{1, 1, 1, 1}, 4))
	events := vListOf([]value.V{tmpl, tmpl}, 4)
	hops := constZList([]float64{1, 1000}, 4) // second voice arrives 1 beat (2 samples) later
	o := NewOla(value.FromRef(value.KindList, events), value.FromRef(value.KindList, hops), tempo, 1)

	out := [][]float64{make([]float64, 6)}
	n, err := o.Produce(testCtx(), out, 6)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if n != 6 {
		t.Fatalf("n = %d, want 6", n)
	}
	// Voice 1 spawns at sample 0 contributing 1 to samples 0-3; voice 2
	// spawns at sample 2 (beat 1 reached) contributing 1 to samples 2-5.
	want := []float64{1, 1, 2, 2, 1, 1}
	for i, v := range out[0] {
		if v != want[i] {
			t.Errorf("out[0][%d] = %v, want %v (overlap-add of the two voices)", i, v, want[i])
		}
	}
}
