package vm

import (
	"testing"

	"strand/internal/bytecode"
	"strand/internal/value"
)

func TestNewFunCopiesFunVars(t *testing.T) {
	captured := []value.V{value.Real(1), value.Real(2)}
	def := &bytecode.FunDef{}
	f := NewFun(def, captured)
	captured[0] = value.Real(99)
	if f.FunVars[0].AsReal() != 1 {
		t.Fatal("NewFun must copy the captured slice, not alias the caller's backing array")
	}
}
