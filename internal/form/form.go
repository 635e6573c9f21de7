// Package form implements prototype-style records: Table (an ordered
// symbol->value mapping), TableMap (a shared key-set schema), Form (a
// linearized chain of Tables), and chase (advancing every lazy slot of
// a form in lockstep with sample time).
package form

import (
	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/varray"
	"strand/internal/vlist"
)

// TableMap interns an ordered key set so many Tables built against the
// same schema (e.g. every event emitted by one `ola` template) share
// one slot-index mapping instead of re-hashing per instance.
type TableMap struct {
	Keys  []string
	index map[string]int
}

func NewTableMap(keys []string) *TableMap {
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		idx[k] = i
	}
	return &TableMap{Keys: keys, index: idx}
}

func (tm *TableMap) IndexOf(key string) (int, bool) {
	i, ok := tm.index[key]
	return i, ok
}

// Table is a key-ordered mapping with unique symbol keys, sharing a
// TableMap with any sibling table of the same shape.
type Table struct {
	Map    *TableMap
	Values []value.V
}

// NewTable builds a table from parallel key/value slices, interning a
// fresh TableMap (callers constructing many tables of one shape should
// build the TableMap once and call NewTableWithMap instead).
func NewTable(keys []string, vals []value.V) *Table {
	return &Table{Map: NewTableMap(keys), Values: append([]value.V(nil), vals...)}
}

func NewTableWithMap(tm *TableMap, vals []value.V) *Table {
	return &Table{Map: tm, Values: append([]value.V(nil), vals...)}
}

// Get looks up key, reporting NotFound if absent.
func (t *Table) Get(key string) (value.V, error) {
	if i, ok := t.Map.IndexOf(key); ok {
		return t.Values[i], nil
	}
	return value.Nil, errors.New(errors.NotFound, "no such key: "+key)
}

// With returns a new table with key bound to v, sharing the TableMap
// when key already exists (copy-on-bind).
func (t *Table) With(key string, v value.V) *Table {
	if i, ok := t.Map.IndexOf(key); ok {
		vals := append([]value.V(nil), t.Values...)
		vals[i] = v
		return &Table{Map: t.Map, Values: vals}
	}
	keys := append(append([]string(nil), t.Map.Keys...), key)
	vals := append(append([]value.V(nil), t.Values...), v)
	return NewTable(keys, vals)
}

// Form is an immutable singly-linked chain of Tables modelling
// prototype inheritance: {Empty, Cons(Table, Form)} so dispatch is
// O(depth) without virtual calls.
type Form struct {
	head *Table
	tail *Form // nil means Empty
}

// Empty is the canonical empty form.
var Empty = &Form{}

// Single wraps one table as a one-link form.
func Single(t *Table) *Form { return &Form{head: t, tail: Empty} }

func (f *Form) IsEmpty() bool { return f.head == nil }

// Get walks the chain head-to-tail.
func (f *Form) Get(key string) (value.V, error) {
	for cur := f; cur != nil && !cur.IsEmpty(); cur = cur.tail {
		if v, err := cur.head.Get(key); err == nil {
			return v, nil
		}
	}
	return value.Nil, errors.New(errors.NotFound, "no such key: "+key)
}

// Tables returns the chain as a slice, head first.
func (f *Form) Tables() []*Table {
	var out []*Table
	for cur := f; cur != nil && !cur.IsEmpty(); cur = cur.tail {
		out = append(out, cur.head)
	}
	return out
}

// Prepend conses a new head table in front of the chain (a form used
// as a parent plus one overriding table).
func (f *Form) Prepend(t *Table) *Form { return &Form{head: t, tail: f} }

// Inherit builds a new form from several parents using a monotonic,
// C3-like linearization rule: repeatedly take the first element of
// some parent's remaining list that does not occur in any other
// parent's tail, failing with InconsistentInheritance if no such
// element exists.
func Inherit(parents []*Form) (*Form, error) {
	seqs := make([][]*Table, 0, len(parents))
	for _, p := range parents {
		if !p.IsEmpty() {
			seqs = append(seqs, p.Tables())
		}
	}
	var result []*Table
	for len(seqs) > 0 {
		candidate, ok := pickHead(seqs)
		if !ok {
			return nil, errors.New(errors.InconsistentInheritance, "cannot linearize inheritance chain")
		}
		result = append(result, candidate)
		seqs = removeFromAll(seqs, candidate)
	}
	out := Empty
	for i := len(result) - 1; i >= 0; i-- {
		out = out.Prepend(result[i])
	}
	return out, nil
}

func pickHead(seqs [][]*Table) (*Table, bool) {
	for _, s := range seqs {
		if len(s) == 0 {
			continue
		}
		head := s[0]
		if !occursInAnyTail(seqs, head) {
			return head, true
		}
	}
	return nil, false
}

func occursInAnyTail(seqs [][]*Table, t *Table) bool {
	for _, s := range seqs {
		for i := 1; i < len(s); i++ {
			if s[i] == t {
				return true
			}
		}
	}
	return false
}

func removeFromAll(seqs [][]*Table, t *Table) [][]*Table {
	out := make([][]*Table, 0, len(seqs))
	for _, s := range seqs {
		if len(s) > 0 && s[0] == t {
			s = s[1:]
		}
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Chase advances every lazy-list slot of a form by n elements without
// materialising a result: scalars pass through unchanged, lists skip
// their first n elements, and nested forms recurse.
func Chase(ctx vlist.Ctx, v value.V, n int) (value.V, error) {
	if n <= 0 {
		return v, nil
	}
	switch v.Kind() {
	case value.KindList:
		l := v.Ref().(*vlist.List)
		rest, err := skipList(ctx, l, n)
		if err != nil {
			return value.Nil, err
		}
		return value.FromRef(value.KindList, rest), nil
	case value.KindForm:
		f := v.Ref().(*Form)
		tables := f.Tables()
		newTables := make([]*Table, len(tables))
		for i, t := range tables {
			nt, err := chaseTable(ctx, t, n)
			if err != nil {
				return value.Nil, err
			}
			newTables[i] = nt
		}
		out := Empty
		for i := len(newTables) - 1; i >= 0; i-- {
			out = out.Prepend(newTables[i])
		}
		return value.FromRef(value.KindForm, out), nil
	default:
		return v, nil
	}
}

func chaseTable(ctx vlist.Ctx, t *Table, n int) (*Table, error) {
	vals := make([]value.V, len(t.Values))
	for i, v := range t.Values {
		cv, err := Chase(ctx, v, n)
		if err != nil {
			return nil, err
		}
		vals[i] = cv
	}
	return NewTableWithMap(t.Map, vals), nil
}

func skipList(ctx vlist.Ctx, l *vlist.List, n int) (*vlist.List, error) {
	remaining := n
	cur := l
	for remaining > 0 {
		if err := cur.Force(ctx); err != nil {
			return nil, err
		}
		arr := cur.Array()
		if arr == nil {
			break
		}
		if arr.Size() > remaining {
			// Mid-segment skip: pack the tail of this segment plus
			// everything after it into a fresh list. Since arrays are
			// produce-once and shared, we build a view by slicing a
			// freshly packed array for the remainder of this segment
			// and relink the rest of the chain behind it.
			return sliceThenLink(arr, remaining, cur), nil
		}
		remaining -= arr.Size()
		nxt := cur.Next()
		if nxt == nil {
			return cur, nil
		}
		cur = nxt
	}
	return cur, nil
}

// sliceThenLink builds the view of arr starting at offset, followed
// by rest's own successor chain.
func sliceThenLink(arr *varray.Array, offset int, rest *vlist.List) *vlist.List {
	if arr.Kind() == varray.KindV {
		out := varray.NewV(arr.Size() - offset)
		for i := offset; i < arr.Size(); i++ {
			_ = out.AddV(arr.AtV(i))
		}
		return vlist.FromArraySpliced(out, rest.Next())
	}
	out := varray.NewZ(arr.Size() - offset)
	for i := offset; i < arr.Size(); i++ {
		_ = out.AddZ(arr.AtZ(i))
	}
	return vlist.FromArraySpliced(out, rest.Next())
}
