package vm

import (
	"strand/internal/bytecode"
	"strand/internal/value"
)

// Fun is a closure: a compiled function definition plus the funvar
// slots it captured at the point PushFun ran. PushFunVar/CallFunVar
// opcodes address into this captured vector.
type Fun struct {
	Def     *bytecode.FunDef
	FunVars []value.V
}

func NewFun(def *bytecode.FunDef, funVars []value.V) *Fun {
	return &Fun{Def: def, FunVars: append([]value.V(nil), funVars...)}
}
