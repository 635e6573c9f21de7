// Package value implements V, the tagged value that flows through every
// stack, cursor, and array in the engine.
//
// A V is either an IEEE double or a reference to one of the heap
// variants (List, Form, Table, Fun, Primitive, Ref, ZRef, Plug, ZPlug,
// String, Symbol, EachOp, TableMap, Code, FunDef), held as a plain
// (real, kind, ref) struct with a Kind discriminator rather than a
// packed tagged pointer, since Go's GC cannot trace a pointer address
// encoded into an integer. Heap variants rely on Go's own garbage
// collector for lifetime management; nothing here tracks ownership by
// hand.
package value

import (
	"math"
	"reflect"
)

// Kind identifies what a V actually holds.
type Kind uint8

const (
	KindReal Kind = iota
	KindList
	KindForm
	KindTable
	KindTableMap
	KindFun
	KindPrimitive
	KindRef
	KindZRef
	KindPlug
	KindZPlug
	KindString
	KindSymbol
	KindEachOp
	KindCode
	KindFunDef
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindList:
		return "list"
	case KindForm:
		return "form"
	case KindTable:
		return "table"
	case KindTableMap:
		return "tablemap"
	case KindFun:
		return "fun"
	case KindPrimitive:
		return "primitive"
	case KindRef:
		return "ref"
	case KindZRef:
		return "zref"
	case KindPlug:
		return "plug"
	case KindZPlug:
		return "zplug"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindEachOp:
		return "eachop"
	case KindCode:
		return "code"
	case KindFunDef:
		return "fundef"
	default:
		return "unknown"
	}
}

// Ref is a mutable one-slot cell.
type Ref struct {
	mu  mu
	Val V
}

// ZRef is a mutable float cell.
type ZRef struct {
	mu  mu
	Val float64
}

// V is the tagged value itself: either a real number, or a pointer to a
// heap object together with the Kind discriminator. The heap pointer
// is kept as a genuine Go pointer (boxed in an interface) rather than
// packed into a tagged integer, since Go's GC can't see through an
// integer-encoded address.
type V struct {
	real float64
	kind Kind
	ref  interface{}
}

// Real constructs a scalar V.
func Real(f float64) V { return V{real: f, kind: KindReal} }

// FromRef constructs a heap-referencing V of the given kind.
func FromRef(k Kind, obj interface{}) V { return V{kind: k, ref: obj} }

// Nil is the canonical empty/absent value (nil workspace lookups use
// the NotFound error instead, but internal plumbing uses this as a
// zero value).
var Nil = V{kind: KindReal, real: math.NaN()}

func (v V) Kind() Kind      { return v.kind }
func (v V) IsReal() bool    { return v.kind == KindReal }
func (v V) IsList() bool    { return v.kind == KindList }
func (v V) Ref() interface{} { return v.ref }

// AsReal returns the scalar payload; callers must check IsReal first.
func (v V) AsReal() float64 { return v.real }

// IsFinite reports whether a scalar is a finite double, or delegates to
// the Finite() method list-likes expose.
func (v V) IsFinite() bool {
	if v.kind == KindReal {
		return !math.IsInf(v.real, 0) && !math.IsNaN(v.real)
	}
	if f, ok := v.ref.(interface{ Finite() bool }); ok {
		return f.Finite()
	}
	return true
}

// Equal implements structural equality for reals and identity
// equality for every other kind, lists included (structural list
// equality may not terminate on an infinite list and is left to
// callers that explicitly want it).
func (v V) Equal(other V) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindReal {
		return v.real == other.real || (math.IsNaN(v.real) && math.IsNaN(other.real))
	}
	return v.ref == other.ref
}

// Hash mirrors Equal: reals hash by bit pattern, everything else by
// pointer identity (symbols and strings included).
func (v V) Hash() int64 {
	if v.kind == KindReal {
		return int64(math.Float64bits(v.real))
	}
	rv := reflect.ValueOf(v.ref)
	if rv.Kind() == reflect.Ptr {
		return int64(rv.Pointer())
	}
	return int64(v.kind)
}
