// Package varray implements the contiguous homogeneous array segment:
// the unit a generator fulfils a list's head with.
package varray

import (
	"strand/internal/errors"
	"strand/internal/value"
)

// Kind distinguishes a boxed-value segment from a float segment. A
// segment never mixes the two.
type Kind uint8

const (
	KindV Kind = iota
	KindZ
)

// Array is the produce-once buffer a generator writes during one pull
// and consumers read thereafter without further mutation.
type Array struct {
	kind Kind
	vs   []value.V
	zs   []float64
}

// EmptyV / EmptyZ are the shared terminal sentinels every exhausted
// list installs, avoiding an allocation on every list's tail.
var (
	EmptyV = &Array{kind: KindV}
	EmptyZ = &Array{kind: KindZ}
)

// NewV allocates a boxed-value segment with the given capacity.
func NewV(capacity int) *Array {
	return &Array{kind: KindV, vs: make([]value.V, 0, capacity)}
}

// NewZ allocates a float segment with the given capacity.
func NewZ(capacity int) *Array {
	return &Array{kind: KindZ, zs: make([]float64, 0, capacity)}
}

func (a *Array) Kind() Kind { return a.kind }
func (a *Array) Size() int {
	if a.kind == KindV {
		return len(a.vs)
	}
	return len(a.zs)
}
func (a *Array) Cap() int {
	if a.kind == KindV {
		return cap(a.vs)
	}
	return cap(a.zs)
}

// Vs exposes the boxed backing slice; callers must not mutate it once
// the array has been handed to a consumer (produce-once discipline).
func (a *Array) Vs() []value.V { return a.vs }

// Zs exposes the float backing slice.
func (a *Array) Zs() []float64 { return a.zs }

// AddV appends a boxed value. Called only on a V-kind array; a Z array
// rejects it rather than silently wrapping the float.
func (a *Array) AddV(v value.V) error {
	if a.kind != KindV {
		return errors.New(errors.WrongType, "AddV on a Z array")
	}
	a.vs = append(a.vs, v)
	return nil
}

// AddZ appends a float. Called only on a Z-kind array; a V array
// rejects it.
func (a *Array) AddZ(z float64) error {
	if a.kind != KindZ {
		return errors.New(errors.WrongType, "AddZ on a V array")
	}
	a.zs = append(a.zs, z)
	return nil
}

// PutV writes at index i, which must already be < Size().
func (a *Array) PutV(i int, v value.V) error {
	if a.kind != KindV {
		return errors.New(errors.WrongType, "PutV on a Z array")
	}
	if i < 0 || i >= len(a.vs) {
		return errors.New(errors.OutOfRange, "PutV index out of range")
	}
	a.vs[i] = v
	return nil
}

// PutZ writes at index i, which must already be < Size().
func (a *Array) PutZ(i int, z float64) error {
	if a.kind != KindZ {
		return errors.New(errors.WrongType, "PutZ on a V array")
	}
	if i < 0 || i >= len(a.zs) {
		return errors.New(errors.OutOfRange, "PutZ index out of range")
	}
	a.zs[i] = z
	return nil
}

// Truncate shrinks the exposed size to n, used to trim a partially
// filled block down to the number of elements a generator actually
// wrote on a pull that ran short of a full block.
func (a *Array) Truncate(n int) {
	if a.kind == KindV {
		if n < len(a.vs) {
			a.vs = a.vs[:n]
		}
		return
	}
	if n < len(a.zs) {
		a.zs = a.zs[:n]
	}
}

// AtV returns the boxed value at i, coercing from a float element if
// this is a Z array (value cursors accept float lists too).
func (a *Array) AtV(i int) value.V {
	if a.kind == KindV {
		return a.vs[i]
	}
	return value.Real(a.zs[i])
}

// AtZ returns the float at i, coercing a boxed real down; callers are
// expected to have already verified (or not cared) that a non-real V
// does not appear in a coerced context.
func (a *Array) AtZ(i int) float64 {
	if a.kind == KindZ {
		return a.zs[i]
	}
	v := a.vs[i]
	if v.IsReal() {
		return v.AsReal()
	}
	return 0
}
