package broadcast

import (
	"math/bits"

	"strand/internal/cursor"
	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// EachArg pairs an argument value with its each-operator bitmask (0
// if the argument carries no `@` annotation at all).
type EachArg struct {
	Value value.V
	Mask  uint64
}

func bitSet(mask uint64, level int) bool { return mask&(uint64(1)<<uint(level)) != 0 }

// contiguousLowOnes reports whether m's set bits form an unbroken run
// starting at bit 0. A gap would mean an empty level of iteration,
// which each-mapping can't represent.
func contiguousLowOnes(m uint64) bool {
	n := bits.Len64(m)
	if n == 0 {
		return true
	}
	want := (uint64(1) << uint(n)) - 1
	return m == want
}

// EachMap implements the each-operator: it groups the combined mask
// across every annotated argument, computes the iteration depth
// (popcount of the mask's contiguous low-ones run), and instantiates
// the recursive EachMapper generator.
func EachMap(app Applier, args []EachArg, rowBlock int) (value.V, error) {
	var combined uint64
	for _, a := range args {
		combined |= a.Mask
	}
	if combined == 0 {
		return value.Nil, errors.New(errors.InternalError, "EachMap called with no annotated levels")
	}
	if !contiguousLowOnes(combined) {
		return value.Nil, errors.New(errors.Syntax, "there are empty levels of iteration")
	}
	levels := bits.Len64(combined)
	top := buildLevel(app, args, levels-1, rowBlock)
	return value.FromRef(value.KindList, top), nil
}

// buildLevel produces the list at the given nesting level (spec
// §4.6): at each position, an argument whose mask bit for this level
// is set and whose value is currently a list descends one sub-cursor
// step; everything else broadcasts its current value unchanged. At
// level 0, rather than recursing further, app is applied directly to
// the (just-descended) tuple.
func buildLevel(app Applier, args []EachArg, level int, rowBlock int) *vlist.List {
	cursors := make([]*cursor.VIn, len(args))
	finite := false
	for i, a := range args {
		if bitSet(a.Mask, level) && a.Value.IsList() {
			cursors[i] = cursor.NewVIn(a.Value)
			if l, ok := a.Value.Ref().(*vlist.List); ok && l.Finite() {
				finite = true
			}
		}
	}

	pull := func(ctx vlist.Ctx, out *vlist.List, b *vlist.Base) error {
		if b.Done() {
			out.End()
			return nil
		}
		arr := varray.NewV(rowBlock)
		filled := 0
		for filled < rowBlock {
			row := make([]value.V, len(args))
			exhausted := false
			for i, a := range args {
				if cursors[i] != nil {
					v, ex, err := cursors[i].One(ctx)
					if err != nil {
						return err
					}
					if ex {
						exhausted = true
						break
					}
					row[i] = v
					continue
				}
				row[i] = a.Value
			}
			if exhausted {
				break
			}
			var result value.V
			var err error
			if level == 0 {
				result, err = app.Apply(ctx, row)
			} else {
				next := make([]EachArg, len(args))
				for i := range args {
					next[i] = EachArg{Mask: args[i].Mask, Value: row[i]}
				}
				sub := buildLevel(app, next, level-1, rowBlock)
				result = value.FromRef(value.KindList, sub)
			}
			if err != nil {
				return err
			}
			_ = arr.AddV(result)
			filled++
		}
		if filled == 0 {
			out.End()
			return nil
		}
		if filled < rowBlock {
			b.SetDone()
		}
		out.Fulfill(arr)
		return nil
	}
	return vlist.NewFuncList(varray.KindV, rowBlock, finite, pull)
}
