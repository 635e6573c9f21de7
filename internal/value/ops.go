package value

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Op identifies a scalar operator. Both internal/vm (dispatching V
// values, which may be broadcast-wrapped) and internal/vlist
// (generators filling raw float64 arrays) share this vocabulary so a
// primitive's identity-element rewrite rules (the linking optimisation
// below) can be declared once.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEq
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
)

// IsIdentityRHS reports whether applying op with the given constant
// right-hand side is a no-op on its left argument (a+0, a*1, a-0) —
// the linking optimisation that lets a generator skip the operator
// entirely and wire its input straight through.
func IsIdentityRHS(op Op, rhs float64) bool {
	switch op {
	case OpAdd, OpSub:
		return rhs == 0
	case OpMul:
		return rhs == 1
	default:
		return false
	}
}

// IsIdentityLHS reports the symmetric case (0+a, 1*a).
func IsIdentityLHS(op Op, lhs float64) bool {
	switch op {
	case OpAdd:
		return lhs == 0
	case OpMul:
		return lhs == 1
	default:
		return false
	}
}

// Number is any type the generic scalar kernels below can run over;
// both block-filling loops (float64) and boxed-scalar evaluation
// (float64 again, wrapped as V outside this package) use it, named
// per golang.org/x/exp/constraints rather than hand-rolling a local
// union interface.
type Number interface {
	constraints.Float | constraints.Integer
}

// ApplyNumeric runs op over two scalars of any Number type, used by
// the broadcast engine's scalar fast path and by generators computing
// directly into float64 arrays.
func ApplyNumeric[T Number](op Op, a, b T) T {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		return T(math.Mod(float64(a), float64(b)))
	default:
		return a
	}
}

// Compare runs a comparison operator, returning 1/0 the way the
// language represents booleans (no separate bool kind in V).
func Compare[T Number](op Op, a, b T) float64 {
	var r bool
	switch op {
	case OpEq:
		r = a == b
	case OpNe:
		r = a != b
	case OpGt:
		r = a > b
	case OpLt:
		r = a < b
	case OpGe:
		r = a >= b
	case OpLe:
		r = a <= b
	}
	if r {
		return 1
	}
	return 0
}

// BinaryReal applies op to two reals, used by V.BinaryOp for the
// scalar/scalar case before broadcast ever gets involved.
func BinaryReal(op Op, a, b float64) float64 {
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGe, OpLe:
		return Compare(op, a, b)
	default:
		return ApplyNumeric(op, a, b)
	}
}

// UnaryReal applies a unary operator to a real.
func UnaryReal(op Op, a float64) float64 {
	switch op {
	case OpNeg:
		return -a
	default:
		return a
	}
}
