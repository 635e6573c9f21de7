package vlist

import "strand/internal/varray"

// Generator is a stateful node that fills the next segment of its
// output list on demand. Concrete leaves (oscillators, readers,
// broadcast wrappers, the ola spawner) embed Base and implement Pull.
type Generator interface {
	// Pull must call exactly one of out.Fulfill, out.FulfillLink, or
	// out.End.
	Pull(ctx Ctx, out *List) error
	ElementKind() varray.Kind
	BlockSize() int
	Finite() bool
	Done() bool
	SetDone()
	// SetOutput updates the generator's weak back-pointer to the list
	// it is currently fulfilling.
	SetOutput(l *List)
	Output() *List
}

// Base is the embeddable generator state: element kind, block size,
// done/finite flags, and the weak output back-pointer. Concrete
// generators embed Base and add their own inputs/local state.
type Base struct {
	EK     varray.Kind
	Blk    int
	IsFin  bool
	isDone bool
	out    *List
}

func NewBase(kind varray.Kind, blockSize int, finite bool) Base {
	return Base{EK: kind, Blk: blockSize, IsFin: finite}
}

func (b *Base) ElementKind() varray.Kind { return b.EK }
func (b *Base) BlockSize() int           { return b.Blk }
func (b *Base) Finite() bool             { return b.IsFin }
func (b *Base) Done() bool               { return b.isDone }
func (b *Base) SetDone()                 { b.isDone = true }
func (b *Base) SetOutput(l *List)        { b.out = l }
func (b *Base) Output() *List            { return b.out }

// FuncGen adapts a plain pull function into a Generator, for the many
// leaves (broadcast wrappers, simple one-input signal generators)
// whose state fits in a closure rather than a named struct type.
type FuncGen struct {
	Base
	PullFn func(ctx Ctx, out *List, b *Base) error
}

func (g *FuncGen) Pull(ctx Ctx, out *List) error { return g.PullFn(ctx, out, &g.Base) }

// NewFuncList builds a list whose generator is the given pull closure.
func NewFuncList(kind varray.Kind, blockSize int, finite bool, pull func(ctx Ctx, out *List, b *Base) error) *List {
	g := &FuncGen{Base: NewBase(kind, blockSize, finite), PullFn: pull}
	return FromGenerator(g)
}
