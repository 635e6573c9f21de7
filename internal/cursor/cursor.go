// Package cursor implements the forward-only input cursors: VIn (wants
// boxed values), ZIn (wants floats), and BothIn (the polymorphic
// flavour that converts between the two element-wise).
package cursor

import (
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// VIn is a cursor over a boxed-value stream, or an infinite
// stride-0 constant when built from a scalar.
type VIn struct {
	list       *vlist.List
	offset     int
	constant   value.V
	isConstant bool
	done       bool
}

// NewVIn builds a cursor from any V: a list value is iterated
// element-wise, anything else becomes an infinite constant stream.
func NewVIn(v value.V) *VIn {
	if v.IsList() {
		return &VIn{list: v.Ref().(*vlist.List)}
	}
	return &VIn{constant: v, isConstant: true}
}

func (c *VIn) IsConstant() bool { return c.isConstant }
func (c *VIn) Exhausted() bool  { return c.done }

// advanceSegment steps past an exhausted current segment to the next
// one, forcing as needed. Returns true once the list truly ends.
func (c *VIn) advanceSegment(ctx vlist.Ctx) (bool, error) {
	for {
		if c.list.Array() == nil {
			if err := c.list.Force(ctx); err != nil {
				return false, err
			}
			continue
		}
		if c.offset < c.list.Array().Size() {
			return false, nil
		}
		if c.list.IsTerminal() {
			c.done = true
			return true, nil
		}
		c.list = c.list.Next()
		c.offset = 0
	}
}

// Take returns a contiguous run of up to n boxed values from the
// current position without advancing, the stride (0 for a constant),
// and whether the cursor is exhausted. Constant cursors return an
// empty slice with stride 0; callers broadcast c.constant themselves.
func (c *VIn) Take(ctx vlist.Ctx, n int) (vs []value.V, stride int, exhausted bool, err error) {
	if c.isConstant {
		return nil, 0, false, nil
	}
	if c.done {
		return nil, 1, true, nil
	}
	ended, err := c.advanceSegment(ctx)
	if err != nil {
		return nil, 1, false, err
	}
	if ended {
		return nil, 1, true, nil
	}
	arr := c.list.Array()
	avail := arr.Size() - c.offset
	take := n
	if take > avail {
		take = avail
	}
	return arr.Vs()[c.offset : c.offset+take], 1, false, nil
}

// Advance steps the cursor forward by n elements already consumed by
// the caller; a constant cursor ignores it (infinite stride 0).
func (c *VIn) Advance(n int) {
	if c.isConstant || n <= 0 {
		return
	}
	c.offset += n
}

// One reads a single element and advances past it.
func (c *VIn) One(ctx vlist.Ctx) (value.V, bool, error) {
	if c.isConstant {
		return c.constant, false, nil
	}
	vs, _, exhausted, err := c.Take(ctx, 1)
	if err != nil || exhausted {
		return value.Nil, exhausted, err
	}
	c.Advance(1)
	return vs[0], false, nil
}

// Peek reads the head element without advancing.
func (c *VIn) Peek(ctx vlist.Ctx) (value.V, bool, error) {
	if c.isConstant {
		return c.constant, false, nil
	}
	vs, _, exhausted, err := c.Take(ctx, 1)
	if err != nil || exhausted {
		return value.Nil, exhausted, err
	}
	return vs[0], false, nil
}

// Hop advances n elements without materialising them, forcing and
// discarding segments as needed.
func (c *VIn) Hop(ctx vlist.Ctx, n int) error {
	if c.isConstant {
		return nil
	}
	remaining := n
	for remaining > 0 {
		vs, _, exhausted, err := c.Take(ctx, remaining)
		if err != nil {
			return err
		}
		if exhausted {
			return nil
		}
		c.Advance(len(vs))
		remaining -= len(vs)
	}
	return nil
}

// Fill bulk-materialises up to n elements into out, returning the
// count written (fewer than n on exhaustion).
func (c *VIn) Fill(ctx vlist.Ctx, n int, out []value.V) (int, error) {
	if c.isConstant {
		for i := 0; i < n; i++ {
			out[i] = c.constant
		}
		return n, nil
	}
	written := 0
	for written < n {
		vs, _, exhausted, err := c.Take(ctx, n-written)
		if err != nil {
			return written, err
		}
		if exhausted {
			break
		}
		copy(out[written:], vs)
		c.Advance(len(vs))
		written += len(vs)
	}
	return written, nil
}

// Link returns the list this cursor is positioned in, for splicing
// into output as its tail (the identity-element optimisation, a+0
// etc.) without an O(N) copy of the remainder. The returned list
// starts at the cursor's current segment, including any elements of
// that segment already consumed; Link copies nothing into output. A
// constant cursor returns output unchanged.
func (c *VIn) Link(output *vlist.List) *vlist.List {
	if c.isConstant || c.list == nil {
		return output
	}
	return c.list
}

// ZIn is the float-stream analogue of VIn; it also accepts a
// boxed-value list, coercing each element to its float payload on the
// fly.
type ZIn struct {
	list       *vlist.List
	offset     int
	constant   float64
	isConstant bool
	done       bool
}

func NewZIn(v value.V) *ZIn {
	if v.IsList() {
		return &ZIn{list: v.Ref().(*vlist.List)}
	}
	return &ZIn{constant: v.AsReal(), isConstant: true}
}

func NewZInConst(f float64) *ZIn { return &ZIn{constant: f, isConstant: true} }

func (c *ZIn) IsConstant() bool { return c.isConstant }
func (c *ZIn) Exhausted() bool  { return c.done }

func (c *ZIn) advanceSegment(ctx vlist.Ctx) (bool, error) {
	for {
		if c.list.Array() == nil {
			if err := c.list.Force(ctx); err != nil {
				return false, err
			}
			continue
		}
		if c.offset < c.list.Array().Size() {
			return false, nil
		}
		if c.list.IsTerminal() {
			c.done = true
			return true, nil
		}
		c.list = c.list.Next()
		c.offset = 0
	}
}

// Take mirrors VIn.Take but over floats (element kind Z or coerced V).
func (c *ZIn) Take(ctx vlist.Ctx, n int) (zs []float64, stride int, exhausted bool, err error) {
	if c.isConstant {
		return nil, 0, false, nil
	}
	if c.done {
		return nil, 1, true, nil
	}
	ended, err := c.advanceSegment(ctx)
	if err != nil {
		return nil, 1, false, err
	}
	if ended {
		return nil, 1, true, nil
	}
	arr := c.list.Array()
	avail := arr.Size() - c.offset
	take := n
	if take > avail {
		take = avail
	}
	if arr.Kind() == varray.KindZ {
		return arr.Zs()[c.offset : c.offset+take], 1, false, nil
	}
	out := make([]float64, take)
	for i := 0; i < take; i++ {
		out[i] = arr.AtZ(c.offset + i)
	}
	return out, 1, false, nil
}

func (c *ZIn) Advance(n int) {
	if c.isConstant || n <= 0 {
		return
	}
	c.offset += n
}

func (c *ZIn) One(ctx vlist.Ctx) (float64, bool, error) {
	if c.isConstant {
		return c.constant, false, nil
	}
	zs, _, exhausted, err := c.Take(ctx, 1)
	if err != nil || exhausted {
		return 0, exhausted, err
	}
	c.Advance(1)
	return zs[0], false, nil
}

func (c *ZIn) Peek(ctx vlist.Ctx) (float64, bool, error) {
	if c.isConstant {
		return c.constant, false, nil
	}
	zs, _, exhausted, err := c.Take(ctx, 1)
	if err != nil || exhausted {
		return 0, exhausted, err
	}
	return zs[0], false, nil
}

func (c *ZIn) Hop(ctx vlist.Ctx, n int) error {
	if c.isConstant {
		return nil
	}
	remaining := n
	for remaining > 0 {
		zs, _, exhausted, err := c.Take(ctx, remaining)
		if err != nil {
			return err
		}
		if exhausted {
			return nil
		}
		c.Advance(len(zs))
		remaining -= len(zs)
	}
	return nil
}

// Fill bulk-materialises up to n floats into out.
func (c *ZIn) Fill(ctx vlist.Ctx, n int, out []float64) (int, error) {
	if c.isConstant {
		for i := 0; i < n; i++ {
			out[i] = c.constant
		}
		return n, nil
	}
	written := 0
	for written < n {
		zs, _, exhausted, err := c.Take(ctx, n-written)
		if err != nil {
			return written, err
		}
		if exhausted {
			break
		}
		copy(out[written:], zs)
		c.Advance(len(zs))
		written += len(zs)
	}
	return written, nil
}

// Mix bulk-adds up to n floats into the accumulator out, used by ola
// to sum active voices into an output channel without an intermediate
// buffer per voice.
func (c *ZIn) Mix(ctx vlist.Ctx, n int, out []float64) (int, error) {
	if c.isConstant {
		for i := 0; i < n; i++ {
			out[i] += c.constant
		}
		return n, nil
	}
	written := 0
	for written < n {
		zs, _, exhausted, err := c.Take(ctx, n-written)
		if err != nil {
			return written, err
		}
		if exhausted {
			break
		}
		for i, z := range zs {
			out[written+i] += z
		}
		c.Advance(len(zs))
		written += len(zs)
	}
	return written, nil
}

func (c *ZIn) Link(output *vlist.List) *vlist.List {
	if c.isConstant || c.list == nil {
		return output
	}
	return c.list
}

// BothIn is the polymorphic cursor flavour: it wraps whichever of
// VIn/ZIn fits the source value and converts on demand, used by
// primitives whose element-kind isn't known until they see their
// argument (e.g. a generic "each" combinator body).
type BothIn struct {
	v *VIn
	z *ZIn
}

func NewBothIn(val value.V) *BothIn {
	if val.IsList() {
		l := val.Ref().(*vlist.List)
		if l.ElementKind() == varray.KindZ {
			return &BothIn{z: NewZIn(val)}
		}
		return &BothIn{v: NewVIn(val)}
	}
	return &BothIn{v: NewVIn(val), z: NewZInConst(val.AsReal())}
}

func (b *BothIn) OneV(ctx vlist.Ctx) (value.V, bool, error) {
	if b.v != nil {
		return b.v.One(ctx)
	}
	z, exhausted, err := b.z.One(ctx)
	return value.Real(z), exhausted, err
}

func (b *BothIn) OneZ(ctx vlist.Ctx) (float64, bool, error) {
	if b.z != nil {
		return b.z.One(ctx)
	}
	v, exhausted, err := b.v.One(ctx)
	if v.IsReal() {
		return v.AsReal(), exhausted, err
	}
	return 0, exhausted, err
}
