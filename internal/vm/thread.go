// Package vm implements the interpreter: Thread (the operand stack,
// locals, workspace, RNG, and rate state a running program owns),
// opcode execution, primitive dispatch with broadcast/each-op
// integration, and the ola polyphonic spawner.
package vm

import (
	"math/rand"

	"strand/internal/errors"
	"strand/internal/value"
)

// Rate bundles the sample-rate-derived constants a thread carries.
type Rate struct {
	SampleRate float64
	BlockSize  int
}

// frame is one call's locals and funvar (closure capture) slots.
type frame struct {
	locals  []value.V
	funVars []value.V
}

// Thread is the interpreter's unit of execution. Each `go` spawn
// constructs a new Thread sharing the Workspace reference captured at
// spawn time but owning its own stack, frames, and RNG stream.
//
// Compile-time scope chain and parse state belong to the compiler's
// interactive REPL loop, not to a running thread's signal graph, so
// they are not modelled here; see internal/repl for the REPL's own
// incremental-compile state.
type Thread struct {
	stack  []value.V
	frames []*frame
	rate   Rate
	rng    *rand.Rand
	ws     *Workspace
}

// NewThread builds a thread bound to ws, running at the given rate.
// seed makes the RNG stream reproducible across runs with the same
// seed.
func NewThread(ws *Workspace, rate Rate, seed int64) *Thread {
	return &Thread{
		rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
		ws:   ws,
	}
}

func (t *Thread) SampleRate() float64 { return t.rate.SampleRate }
func (t *Thread) BlockSize() int      { return t.rate.BlockSize }
func (t *Thread) Rand() float64       { return t.rng.Float64() }

// Seed draws a fresh int64 from this thread's RNG stream, used to seed
// a spawned child thread's own independent stream: each `go` spawn
// gets its own workspace-sharing thread, not a shared RNG.
func (t *Thread) Seed() int64 { return t.rng.Int63() }

// Workspace returns the binding environment this thread reads
// PushWorkspace/CallWorkspace through.
func (t *Thread) Workspace() *Workspace { return t.ws }

// Apply implements vlist.Ctx's callback hook: invoke fn (a Fun or
// Primitive value) with args and return its single result, the path
// broadcast/each-op and ola use to call back into user code from
// inside a pull.
func (t *Thread) Apply(fn value.V, args []value.V) (value.V, error) {
	return t.apply(fn, args)
}

// Push/Pop implement the bare operand stack.
func (t *Thread) Push(v value.V) { t.stack = append(t.stack, v) }

func (t *Thread) Pop() (value.V, error) {
	if len(t.stack) == 0 {
		return value.Nil, errors.New(errors.StackUnderflow, "pop from empty stack")
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v, nil
}

// PopN pops n values in push order (oldest first), failing the whole
// operation before any side effect if fewer than n are present.
func (t *Thread) PopN(n int) ([]value.V, error) {
	if len(t.stack) < n {
		return nil, errors.New(errors.StackUnderflow, "need more operands")
	}
	start := len(t.stack) - n
	out := append([]value.V(nil), t.stack[start:]...)
	t.stack = t.stack[:start]
	return out, nil
}

// StackHeight reports the current operand count, used to bracket a
// nested block so NewVList/NewForm see exactly what the block pushed.
func (t *Thread) StackHeight() int { return len(t.stack) }

// StackSince returns (and removes) every value pushed since mark.
func (t *Thread) StackSince(mark int) []value.V {
	out := append([]value.V(nil), t.stack[mark:]...)
	t.stack = t.stack[:mark]
	return out
}
