package vm

import (
	"strand/internal/bytecode"
	"strand/internal/cursor"
	"strand/internal/errors"
	"strand/internal/form"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// returnSignal unwinds exec back to the callFun that pushed the
// current frame, without itself being a user-visible error (spec
// §4.8's Return opcode ends the current function call, including from
// inside a nested Parens/NewVList/NewForm/Inherit block).
type returnSignal struct{}

func (returnSignal) Error() string { return "return" }

// Run executes a top-level code block (no enclosing function, no
// locals of its own) against the thread's shared operand stack — the
// REPL's per-line entry point.
func (t *Thread) Run(code *bytecode.Code) error {
	fr := &frame{locals: nil, funVars: nil}
	err := t.exec(fr, code)
	if _, ok := err.(returnSignal); ok {
		return nil
	}
	return err
}

// exec runs one instruction sequence against fr's locals/funvars,
// recursing into exec for every nested block opcode so that a Return
// anywhere inside unwinds all the way back to the owning callFun.
func (t *Thread) exec(fr *frame, code *bytecode.Code) error {
	for _, in := range code.Instrs {
		if err := t.step(fr, in); err != nil {
			return err
		}
	}
	return nil
}

func (t *Thread) step(fr *frame, in bytecode.Instr) error {
	switch in.Op {
	case bytecode.OpPushImmediate:
		t.Push(in.Imm)

	case bytecode.OpPushLocal:
		v, err := localAt(fr.locals, in.Index)
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.OpPushFunVar:
		v, err := localAt(fr.funVars, in.Index)
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.OpPushWorkspace:
		v, err := t.ws.Get(in.Name)
		if err != nil {
			return err
		}
		t.Push(v)

	case bytecode.OpPushFun:
		t.Push(value.FromRef(value.KindFun, NewFun(in.Def, fr.locals)))

	case bytecode.OpCallImmediate:
		return t.invoke(in.Imm)

	case bytecode.OpCallLocal:
		v, err := localAt(fr.locals, in.Index)
		if err != nil {
			return err
		}
		return t.invoke(v)

	case bytecode.OpCallFunVar:
		v, err := localAt(fr.funVars, in.Index)
		if err != nil {
			return err
		}
		return t.invoke(v)

	case bytecode.OpCallWorkspace:
		v, err := t.ws.Get(in.Name)
		if err != nil {
			return err
		}
		return t.invoke(v)

	case bytecode.OpDot:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		f, ok := v.Ref().(*form.Form)
		if v.Kind() != value.KindForm || !ok {
			return errors.New(errors.WrongType, "dot operand must be a form")
		}
		got, err := f.Get(in.Name)
		if err != nil {
			return err
		}
		t.Push(got)

	case bytecode.OpComma:
		val, err := t.Pop()
		if err != nil {
			return err
		}
		fv, err := t.Pop()
		if err != nil {
			return err
		}
		f, ok := fv.Ref().(*form.Form)
		if fv.Kind() != value.KindForm || !ok {
			return errors.New(errors.WrongType, "comma operand must be a form")
		}
		t.Push(value.FromRef(value.KindForm, commaBind(f, in.Name, val)))

	case bytecode.OpBindLocal:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		if in.Index < 0 || in.Index >= len(fr.locals) {
			return errors.New(errors.OutOfRange, "local index out of range")
		}
		fr.locals[in.Index] = v

	case bytecode.OpBindLocalFromList:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		vs, err := unpackN(t, v, len(in.Indices))
		if err != nil {
			return err
		}
		for j, idx := range in.Indices {
			if idx < 0 || idx >= len(fr.locals) {
				return errors.New(errors.OutOfRange, "local index out of range")
			}
			fr.locals[idx] = vs[j]
		}

	case bytecode.OpBindWorkspace:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		t.ws.Bind(in.Name, v)

	case bytecode.OpBindWorkspaceFromList:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		vs, err := unpackN(t, v, len(in.Names))
		if err != nil {
			return err
		}
		for j, name := range in.Names {
			t.ws.Bind(name, vs[j])
		}

	case bytecode.OpParens:
		return t.exec(fr, in.Block)

	case bytecode.OpNewVList:
		base := t.StackHeight()
		if err := t.exec(fr, in.Block); err != nil {
			return err
		}
		items := t.StackSince(base)
		arr := varray.NewV(len(items))
		for _, v := range items {
			_ = arr.AddV(v)
		}
		t.Push(value.FromRef(value.KindList, vlist.FromArray(arr, true)))

	case bytecode.OpNewZList:
		base := t.StackHeight()
		if err := t.exec(fr, in.Block); err != nil {
			return err
		}
		items := t.StackSince(base)
		arr := varray.NewZ(len(items))
		for _, v := range items {
			if !v.IsReal() {
				return errors.New(errors.WrongType, "z-list element must be a real")
			}
			_ = arr.AddZ(v.AsReal())
		}
		t.Push(value.FromRef(value.KindList, vlist.FromArray(arr, true)))

	case bytecode.OpNewForm:
		base := t.StackHeight()
		if err := t.exec(fr, in.Block); err != nil {
			return err
		}
		items := t.StackSince(base)
		if len(items)%2 != 0 {
			return errors.New(errors.Syntax, "form literal needs key/value pairs")
		}
		keys := make([]string, 0, len(items)/2)
		vals := make([]value.V, 0, len(items)/2)
		for i := 0; i < len(items); i += 2 {
			k := items[i]
			sym, ok := k.Ref().(*value.Symbol)
			if k.Kind() != value.KindSymbol || !ok {
				return errors.New(errors.WrongType, "form key must be a symbol")
			}
			keys = append(keys, sym.Name)
			vals = append(vals, items[i+1])
		}
		t.Push(value.FromRef(value.KindForm, form.Single(form.NewTable(keys, vals))))

	case bytecode.OpInherit:
		base := t.StackHeight()
		if err := t.exec(fr, in.Block); err != nil {
			return err
		}
		items := t.StackSince(base)
		parents := make([]*form.Form, len(items))
		for i, v := range items {
			f, ok := v.Ref().(*form.Form)
			if v.Kind() != value.KindForm || !ok {
				return errors.New(errors.WrongType, "inherit operand must be a form")
			}
			parents[i] = f
		}
		merged, err := form.Inherit(parents)
		if err != nil {
			return err
		}
		t.Push(value.FromRef(value.KindForm, merged))

	case bytecode.OpEach:
		v, err := t.Pop()
		if err != nil {
			return err
		}
		t.Push(value.FromRef(value.KindEachOp, &value.EachOp{Value: v, Mask: in.Mask}))

	case bytecode.OpReturn:
		return returnSignal{}

	default:
		return errors.Newf(errors.InternalError, "unknown opcode %v", in.Op)
	}
	return nil
}

func localAt(slots []value.V, i int) (value.V, error) {
	if i < 0 || i >= len(slots) {
		return value.Nil, errors.New(errors.OutOfRange, "slot index out of range")
	}
	return slots[i], nil
}

// invoke dispatches a callable value already resolved from an
// immediate, a local, a funvar, or the workspace; primitives and funs
// each pop their own argument count directly off the operand stack.
func (t *Thread) invoke(fn value.V) error {
	switch fn.Kind() {
	case value.KindPrimitive:
		p, ok := fn.Ref().(*Primitive)
		if !ok {
			return errors.New(errors.InternalError, "malformed primitive value")
		}
		return Dispatch(t, p)
	case value.KindFun:
		f, ok := fn.Ref().(*Fun)
		if !ok {
			return errors.New(errors.InternalError, "malformed fun value")
		}
		return t.callFun(f)
	default:
		return errors.New(errors.WrongType, "value is not callable")
	}
}

func (t *Thread) callFun(f *Fun) error {
	n := len(f.Def.Params)
	args, err := t.PopN(n)
	if err != nil {
		return err
	}
	fr := &frame{locals: make([]value.V, f.Def.NumLocals), funVars: f.FunVars}
	copy(fr.locals, args)
	t.frames = append(t.frames, fr)
	err = t.exec(fr, f.Def.Body)
	t.frames = t.frames[:len(t.frames)-1]
	if _, ok := err.(returnSignal); ok {
		return nil
	}
	return err
}

// apply is the vlist.Ctx callback path: push args, invoke fn, and
// require the call to have left exactly one result (broadcast/each-op
// and ola always apply a per-position function expecting a single
// value back).
func (t *Thread) apply(fn value.V, args []value.V) (value.V, error) {
	for _, a := range args {
		t.Push(a)
	}
	before := t.StackHeight() - len(args)
	if err := t.invoke(fn); err != nil {
		return value.Nil, err
	}
	got := t.StackSince(before)
	if len(got) != 1 {
		return value.Nil, errors.New(errors.InternalError, "callback did not leave exactly one value")
	}
	return got[0], nil
}

// commaBind implements the `,` opcode: bind key to v in f's head
// table, copy-on-write — the same copy-on-bind discipline the
// workspace itself follows.
func commaBind(f *form.Form, key string, v value.V) *form.Form {
	tables := f.Tables()
	if len(tables) == 0 {
		return form.Single(form.NewTable([]string{key}, []value.V{v}))
	}
	newHead := tables[0].With(key, v)
	out := form.Empty
	for i := len(tables) - 1; i >= 1; i-- {
		out = out.Prepend(tables[i])
	}
	return out.Prepend(newHead)
}

// unpackN reads exactly n elements off a list value, used by the
// destructuring bind opcodes BindLocalFromList/BindWorkspaceFromList.
func unpackN(ctx vlist.Ctx, v value.V, n int) ([]value.V, error) {
	if !v.IsList() {
		return nil, errors.New(errors.WrongType, "expected a list to unpack")
	}
	c := cursor.NewVIn(v)
	out := make([]value.V, n)
	for i := 0; i < n; i++ {
		e, exhausted, err := c.One(ctx)
		if err != nil {
			return nil, err
		}
		if exhausted {
			return nil, errors.New(errors.OutOfRange, "list exhausted while unpacking")
		}
		out[i] = e
	}
	return out, nil
}
