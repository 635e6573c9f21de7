// Package broadcast implements multichannel expansion (MCX) and the
// each-operator: turning a primitive or function call over list-valued
// arguments into a synchronized per-tuple mapping over those lists.
package broadcast

import (
	"strand/internal/cursor"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// Applier is anything that can be invoked with a fixed tuple of
// arguments and produce one result — a primitive or a user Fun. Kept
// as an interface (rather than importing internal/vm) so broadcast
// does not depend on the interpreter package; vm adapts its own
// primitive/Fun call path to this shape.
type Applier interface {
	Apply(ctx vlist.Ctx, args []value.V) (value.V, error)
}

// ApplierFunc is the func-literal adapter for Applier.
type ApplierFunc func(ctx vlist.Ctx, args []value.V) (value.V, error)

func (f ApplierFunc) Apply(ctx vlist.Ctx, args []value.V) (value.V, error) { return f(ctx, args) }

// ArgMask is a primitive's per-argument auto-map annotation: 'a' as-is,
// 'z' auto-map over boxed-value lists only (not float signals), 'k'
// auto-map over any list including signals.
type ArgMask byte

const (
	AsIs         ArgMask = 'a'
	MapValueOnly ArgMask = 'z'
	MapAny       ArgMask = 'k'
)

func shouldMap(m ArgMask, v value.V) bool {
	if !v.IsList() {
		return false
	}
	switch m {
	case MapAny:
		return true
	case MapValueOnly:
		return v.Ref().(*vlist.List).ElementKind() == varray.KindV
	default:
		return false
	}
}

// WrapMCX wraps app so that, when any masked argument is an
// auto-mappable list, invocation instead builds an auto-map generator
// iterating synchronised cursors over every mapped argument and
// applying app per tuple. Unmasked or non-list arguments pass straight
// through as per-tuple constants.
func WrapMCX(app Applier, masks []ArgMask, blockSize int) Applier {
	return ApplierFunc(func(ctx vlist.Ctx, args []value.V) (value.V, error) {
		mapped := make([]bool, len(args))
		anyMapped := false
		for i, a := range args {
			m := AsIs
			if i < len(masks) {
				m = masks[i]
			}
			if shouldMap(m, a) {
				mapped[i] = true
				anyMapped = true
			}
		}
		if !anyMapped {
			return app.Apply(ctx, args)
		}
		return mcxList(app, args, mapped, blockSize), nil
	})
}

// mcxList builds the resulting list: each of its elements is app
// applied to the tuple formed by stepping every mapped argument's
// cursor once and repeating every unmapped argument as-is. With no
// mapped args WrapMCX never builds a list at all, so a purely scalar
// call is equivalent to calling app directly.
func mcxList(app Applier, args []value.V, mapped []bool, blockSize int) *vlist.List {
	cursors := make([]*cursor.BothIn, len(args))
	finite := false
	outKind := varray.KindZ
	for i, a := range args {
		if mapped[i] {
			cursors[i] = cursor.NewBothIn(a)
			l := a.Ref().(*vlist.List)
			if l.Finite() {
				finite = true
			}
			if l.ElementKind() == varray.KindV {
				outKind = varray.KindV
			}
		}
	}
	pull := func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		if b.Done() {
			out.End()
			return nil
		}
		var arr *varray.Array
		if outKind == varray.KindV {
			arr = varray.NewV(blockSize)
		} else {
			arr = varray.NewZ(blockSize)
		}
		tuple := make([]value.V, len(args))
		filled := 0
		for filled < blockSize {
			exhausted := false
			for i, a := range args {
				if !mapped[i] {
					tuple[i] = a
					continue
				}
				v, ex, err := cursors[i].OneV(ctx)
				if err != nil {
					return err
				}
				if ex {
					exhausted = true
					break
				}
				tuple[i] = v
			}
			if exhausted {
				break
			}
			r, err := app.Apply(ctx, tuple)
			if err != nil {
				return err
			}
			if outKind == varray.KindV {
				_ = arr.AddV(r)
			} else {
				_ = arr.AddZ(r.AsReal())
			}
			filled++
		}
		if filled == 0 {
			out.End()
			return nil
		}
		if filled < blockSize {
			b.SetDone()
		}
		out.Fulfill(arr)
		return nil
	}
	return vlist.NewFuncList(outKind, blockSize, finite, pull)
}
