package vm

import (
	"strand/internal/broadcast"
	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/vlist"
)

// Primitive is a built-in operation with declared stack effect and
// auto-map behaviour.
type Primitive struct {
	Name   string
	Takes  int
	Leaves int
	NoEach bool                // exempt from each-op construction; called directly instead
	Masks  []broadcast.ArgMask // per-argument MCX annotation; defaults to AsIs
	Fn     func(t *Thread, args []value.V) ([]value.V, error)
}

// broadcastable reports whether this primitive can ever be wrapped by
// MCX or the each-operator: both require exactly one result per
// invocation.
func (p *Primitive) broadcastable() bool { return p.Leaves == 1 && !p.NoEach }

func (p *Primitive) scalarApply(ctx vlist.Ctx, args []value.V) (value.V, error) {
	th, ok := ctx.(*Thread)
	if !ok {
		return value.Nil, errors.New(errors.InternalError, "broadcast context is not a thread")
	}
	out, err := p.Fn(th, args)
	if err != nil {
		return value.Nil, err
	}
	if len(out) != 1 {
		return value.Nil, errors.Newf(errors.InternalError, "primitive %s did not leave exactly one value", p.Name)
	}
	return out[0], nil
}

// Dispatch implements the primitive invocation rule: pop the declared
// arity before any side effect, then either call directly (the
// primitive is exempt, or not broadcastable), or detect EachOp-tagged
// arguments and build an EachMapper, falling back to a plain (but
// still MCX-wrapped) call otherwise.
func Dispatch(t *Thread, p *Primitive) error {
	args, err := t.PopN(p.Takes)
	if err != nil {
		return err
	}
	if !p.broadcastable() {
		out, err := p.Fn(t, args)
		if err != nil {
			return err
		}
		for _, v := range out {
			t.Push(v)
		}
		return nil
	}

	app := broadcast.WrapMCX(broadcast.ApplierFunc(p.scalarApply), p.Masks, t.BlockSize())

	if eargs, any := eachArgsOf(args); any {
		result, err := broadcast.EachMap(app, eargs, t.BlockSize())
		if err != nil {
			return err
		}
		t.Push(result)
		return nil
	}

	result, err := app.Apply(t, args)
	if err != nil {
		return err
	}
	t.Push(result)
	return nil
}

func eachArgsOf(args []value.V) ([]broadcast.EachArg, bool) {
	out := make([]broadcast.EachArg, len(args))
	any := false
	for i, a := range args {
		if a.Kind() == value.KindEachOp {
			eo, ok := a.Ref().(*value.EachOp)
			if ok {
				out[i] = broadcast.EachArg{Value: eo.Value, Mask: eo.Mask}
				any = true
				continue
			}
		}
		out[i] = broadcast.EachArg{Value: a, Mask: 0}
	}
	return out, any
}
