// Package vlist implements the dual-typed lazy list and its
// pull-scheduled generators: the spine every signal and stream in the
// engine is built from.
package vlist

import (
	"sync"

	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/varray"
)

// Ctx is the thread context a pull needs: sample rate, block size, an
// RNG, and a way to invoke a user function for generators that must
// call back into the interpreter (each-op, custom combinators). The
// concrete type lives in internal/vm as *vm.Thread; this interface
// exists so vlist need not import vm (vm imports vlist instead,
// avoiding a cycle).
type Ctx interface {
	SampleRate() float64
	BlockSize() int
	Rand() float64 // next uniform [0,1) draw from the thread's RNG stream
	Apply(fn value.V, args []value.V) (value.V, error)
}

// List is the lazy list spine: a head segment plus either an
// unevaluated generator or an already-produced successor.
type List struct {
	mu          sync.Mutex
	elementKind varray.Kind
	array       *varray.Array
	next        *List
	gen         Generator
	finite      bool
}

// Terminal returns the canonical empty list of the given kind: an
// already-forced list whose array is the shared empty sentinel.
func Terminal(kind varray.Kind) *List {
	if kind == varray.KindV {
		return &List{elementKind: varray.KindV, array: varray.EmptyV, finite: true}
	}
	return &List{elementKind: varray.KindZ, array: varray.EmptyZ, finite: true}
}

// FromArray packs a single already-materialized array into a finite,
// already-produced list.
func FromArray(arr *varray.Array, finite bool) *List {
	return &List{elementKind: arr.Kind(), array: arr, next: Terminal(arr.Kind()), finite: finite}
}

// FromArraySpliced packs arr as a produced segment whose successor is
// an already-known list, rather than the terminal sentinel — used by
// form chasing to build the "skip n" view of a list without forcing
// or copying anything beyond the segment n fell inside.
func FromArraySpliced(arr *varray.Array, next *List) *List {
	return &List{elementKind: arr.Kind(), array: arr, next: next, finite: next == nil || next.finite}
}

// FromGenerator wraps a not-yet-pulled generator in its head list: the
// generator is set, array/next stay absent, until the first Force.
// The generator's weak output back-pointer is wired up immediately so
// it is valid even before that first Force.
func FromGenerator(gen Generator) *List {
	l := &List{elementKind: gen.ElementKind(), gen: gen, finite: gen.Finite()}
	gen.SetOutput(l)
	return l
}

func (l *List) ElementKind() varray.Kind { return l.elementKind }
func (l *List) Finite() bool             { return l.finite }

// Array returns the produced segment, or nil if this list has not yet
// been forced.
func (l *List) Array() *varray.Array {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.array
}

// Next returns the successor list, valid once this list has been
// forced (nil for the terminal list).
func (l *List) Next() *List {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// IsTerminal reports whether this list is the end of a stream: forced
// and with no successor. The size of its array is not checked; End
// installs an empty one.
func (l *List) IsTerminal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.array != nil && l.next == nil
}

// Forced reports whether this list has already transitioned out of
// the unevaluated state (produce-once: a list is forced at most once).
func (l *List) Forced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == nil
}

// Force runs this list's pending generator exactly once (idempotent:
// a list already forced is a no-op), caching the produced array and
// successor for every observer.
func (l *List) Force(ctx Ctx) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == nil {
		return nil
	}
	return l.gen.Pull(ctx, l)
}

// Fulfill installs arr as this list's produced segment and creates a
// fresh successor list carrying the same generator. Must be called by
// a Generator's Pull implementation, and only once per pull
// (produce-once).
func (l *List) Fulfill(arr *varray.Array) *List {
	g := l.gen
	next := &List{elementKind: l.elementKind, gen: g, finite: l.finite}
	l.array = arr
	l.next = next
	l.gen = nil
	if g != nil {
		g.SetOutput(next)
	}
	return next
}

// FulfillLink is Fulfill with an explicit, already-known successor —
// the identity-element optimisation that splices an input's own tail
// directly in as this list's next, bypassing further pulls on the
// wrapping generator entirely.
func (l *List) FulfillLink(arr *varray.Array, next *List) {
	g := l.gen
	l.array = arr
	l.next = next
	l.gen = nil
	if g != nil {
		g.SetOutput(nil)
	}
}

// End installs the empty sentinel and detaches the generator. Once
// done is latched this way, any later force must keep seeing the
// empty sentinel.
func (l *List) End() {
	g := l.gen
	if l.elementKind == varray.KindV {
		l.array = varray.EmptyV
	} else {
		l.array = varray.EmptyZ
	}
	l.next = nil
	l.gen = nil
	if g != nil {
		g.SetDone()
		g.SetOutput(nil)
	}
}

// Length forces the list to its end and counts elements; callers must
// already know the list is finite.
func (l *List) Length(ctx Ctx) (int64, error) {
	if !l.finite {
		return 0, errors.New(errors.IndefiniteOperation, "length of a list not known to be finite")
	}
	var total int64
	cur := l
	for {
		if err := cur.Force(ctx); err != nil {
			return 0, err
		}
		arr := cur.Array()
		if arr == nil || arr.Size() == 0 && cur.Next() == nil {
			break
		}
		total += int64(arr.Size())
		nxt := cur.Next()
		if nxt == nil {
			break
		}
		cur = nxt
	}
	return total, nil
}

// Pack reifies a finite list into one contiguous array, refusing (and
// returning ok=false) if doing so would need more than limit elements
// in memory. The result is not memoized: every call walks the list
// again and returns a newly built list.
func (l *List) Pack(ctx Ctx, limit int) (*List, bool, error) {
	if !l.finite {
		return nil, false, errors.New(errors.IndefiniteOperation, "pack of a list not known to be finite")
	}
	if l.elementKind == varray.KindV {
		out := varray.NewV(0)
		cur := l
		for {
			if err := cur.Force(ctx); err != nil {
				return nil, false, err
			}
			arr := cur.Array()
			for i := 0; i < arr.Size(); i++ {
				if out.Size() >= limit {
					return nil, false, nil
				}
				_ = out.AddV(arr.AtV(i))
			}
			nxt := cur.Next()
			if nxt == nil {
				break
			}
			cur = nxt
		}
		return FromArray(out, true), true, nil
	}
	out := varray.NewZ(0)
	cur := l
	for {
		if err := cur.Force(ctx); err != nil {
			return nil, false, err
		}
		arr := cur.Array()
		for i := 0; i < arr.Size(); i++ {
			if out.Size() >= limit {
				return nil, false, nil
			}
			_ = out.AddZ(arr.AtZ(i))
		}
		nxt := cur.Next()
		if nxt == nil {
			break
		}
		cur = nxt
	}
	return FromArray(out, true), true, nil
}

// FillFloats destructively evaluates up to n floats into out, forcing
// as many segments as needed, and returns the count actually written.
func (l *List) FillFloats(ctx Ctx, n int, out []float64) (int, error) {
	cur := l
	offset := 0
	written := 0
	for written < n {
		if err := cur.Force(ctx); err != nil {
			return written, err
		}
		arr := cur.Array()
		if arr == nil {
			break
		}
		if arr.Size() == 0 {
			if cur.Next() == nil {
				break
			}
			cur = cur.Next()
			offset = 0
			continue
		}
		for offset < arr.Size() && written < n {
			out[written] = arr.AtZ(offset)
			written++
			offset++
		}
		if offset >= arr.Size() {
			nxt := cur.Next()
			if nxt == nil {
				break
			}
			cur = nxt
			offset = 0
		}
	}
	return written, nil
}

// Release walks the tail chain in a loop, unlinking as it goes, rather
// than relying on recursive GC tracing, so dropping a long linear tail
// cannot overflow the stack. Go's GC will actually reclaim List values
// once unreferenced, but callers that explicitly want to release a
// long chain early (e.g. dropping a workspace) call this to avoid
// leaving a deep chain of finalizer-eligible objects alive
// simultaneously.
func (l *List) Release() {
	cur := l
	for cur != nil {
		nxt := cur.next
		cur.next = nil
		cur.gen = nil
		cur.array = nil
		cur = nxt
	}
}
