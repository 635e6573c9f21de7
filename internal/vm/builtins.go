package vm

import (
	"strand/internal/broadcast"
	"strand/internal/concurrency"
	"strand/internal/errors"
	"strand/internal/value"
)

// Registry is a name->Primitive table, built once at process start and
// shared read-only afterward: the built-in namespace the compiler
// looks a bareword up against when resolving it to an immediate
// primitive value.
type Registry struct {
	byName map[string]*Primitive
}

func NewRegistry() *Registry { return &Registry{byName: map[string]*Primitive{}} }

func (r *Registry) Register(p *Primitive) { r.byName[p.Name] = p }

func (r *Registry) Lookup(name string) (*Primitive, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func binaryMask() []broadcast.ArgMask {
	return []broadcast.ArgMask{broadcast.MapValueOnly, broadcast.MapValueOnly}
}

func binaryOp(name string, op value.Op) *Primitive {
	return &Primitive{
		Name:   name,
		Takes:  2,
		Leaves: 1,
		Masks:  binaryMask(),
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			a, b := args[0], args[1]
			if !a.IsReal() || !b.IsReal() {
				return nil, errors.Newf(errors.WrongType, "%s requires two reals", name)
			}
			return []value.V{value.Real(value.BinaryReal(op, a.AsReal(), b.AsReal()))}, nil
		},
	}
}

func unaryOp(name string, op value.Op) *Primitive {
	return &Primitive{
		Name:   name,
		Takes:  1,
		Leaves: 1,
		Masks:  []broadcast.ArgMask{broadcast.MapValueOnly},
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			a := args[0]
			if !a.IsReal() {
				return nil, errors.Newf(errors.WrongType, "%s requires a real", name)
			}
			return []value.V{value.Real(value.UnaryReal(op, a.AsReal()))}, nil
		},
	}
}

// stack combinators are always NoEach: duplicating/dropping/swapping
// operands has nothing to do with broadcasting.

func dup() *Primitive {
	return &Primitive{Name: "dup", Takes: 1, Leaves: 2, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			return []value.V{args[0], args[0]}, nil
		}}
}

func drop() *Primitive {
	return &Primitive{Name: "drop", Takes: 1, Leaves: 0, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) { return nil, nil }}
}

func swap() *Primitive {
	return &Primitive{Name: "swap", Takes: 2, Leaves: 2, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			return []value.V{args[1], args[0]}, nil
		}}
}

// try runs its function argument and, on failure, pushes the error's
// message as a string instead of propagating.
func try() *Primitive {
	return &Primitive{Name: "try", Takes: 1, Leaves: 1, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			if err := t.invoke(args[0]); err != nil {
				se, ok := err.(*errors.Error)
				msg := err.Error()
				if ok {
					msg = se.Message
				}
				return []value.V{value.FromRef(value.KindString, &value.String{Text: msg})}, nil
			}
			result, err := t.Pop()
			if err != nil {
				return nil, err
			}
			return []value.V{result}, nil
		}}
}

// goPrimitive spawns a new thread bound to a forked view of the
// caller's workspace, running the popped function argument on its own
// goroutine via spawner. The spawned thread gets its own RNG stream,
// seeded from the caller's so a run is still reproducible given the
// top-level seed, but independent so two spawned threads don't
// serialize on a shared generator.
func goPrimitive(spawner *concurrency.Spawner) *Primitive {
	return &Primitive{Name: "go", Takes: 1, Leaves: 0, NoEach: true,
		Fn: func(t *Thread, args []value.V) ([]value.V, error) {
			fn := args[0]
			child := NewThread(t.Workspace().Fork(), Rate{SampleRate: t.SampleRate(), BlockSize: t.BlockSize()}, t.Seed())
			spawner.Go(func() error {
				_, err := child.apply(fn, nil)
				return err
			})
			return nil, nil
		}}
}

// NewStandardRegistry builds the built-in primitive set: arithmetic,
// comparisons, stack combinators and try. `go` is not included;
// RegisterConcurrency adds it.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	r.Register(binaryOp("+", value.OpAdd))
	r.Register(binaryOp("-", value.OpSub))
	r.Register(binaryOp("*", value.OpMul))
	r.Register(binaryOp("/", value.OpDiv))
	r.Register(binaryOp("%", value.OpMod))
	r.Register(binaryOp("==", value.OpEq))
	r.Register(binaryOp("!=", value.OpNe))
	r.Register(binaryOp(">", value.OpGt))
	r.Register(binaryOp("<", value.OpLt))
	r.Register(binaryOp(">=", value.OpGe))
	r.Register(binaryOp("<=", value.OpLe))
	r.Register(unaryOp("neg", value.OpNeg))
	r.Register(dup())
	r.Register(drop())
	r.Register(swap())
	r.Register(try())
	return r
}

// RegisterConcurrency adds the `go` primitive to r, backed by spawner.
// Split from NewStandardRegistry because the spawner is a session-scoped
// resource (one per REPL/render session), not a process-wide constant
// like the arithmetic primitives.
func RegisterConcurrency(r *Registry, spawner *concurrency.Spawner) {
	r.Register(goPrimitive(spawner))
}
