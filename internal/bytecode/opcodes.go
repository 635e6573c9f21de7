// Package bytecode defines the opcode set the interpreter (internal/vm)
// executes and the Code container a compiled expression is built into.
// Instructions live in a []Instr slice rather than a flat append-only
// byte stream, since an opcode's operands are themselves values, symbol
// names, and nested code blocks rather than fixed-width integers a byte
// stream can encode directly.
package bytecode

type Op byte

const (
	OpPushImmediate Op = iota
	OpPushLocal
	OpPushFunVar
	OpPushWorkspace
	OpPushFun
	OpCallImmediate
	OpCallLocal
	OpCallFunVar
	OpCallWorkspace
	OpDot
	OpComma
	OpBindLocal
	OpBindLocalFromList
	OpBindWorkspace
	OpBindWorkspaceFromList
	OpParens
	OpNewVList
	OpNewZList
	OpNewForm
	OpInherit
	OpEach
	OpReturn
)

func (o Op) String() string {
	switch o {
	case OpPushImmediate:
		return "PushImmediate"
	case OpPushLocal:
		return "PushLocal"
	case OpPushFunVar:
		return "PushFunVar"
	case OpPushWorkspace:
		return "PushWorkspace"
	case OpPushFun:
		return "PushFun"
	case OpCallImmediate:
		return "CallImmediate"
	case OpCallLocal:
		return "CallLocal"
	case OpCallFunVar:
		return "CallFunVar"
	case OpCallWorkspace:
		return "CallWorkspace"
	case OpDot:
		return "Dot"
	case OpComma:
		return "Comma"
	case OpBindLocal:
		return "BindLocal"
	case OpBindLocalFromList:
		return "BindLocalFromList"
	case OpBindWorkspace:
		return "BindWorkspace"
	case OpBindWorkspaceFromList:
		return "BindWorkspaceFromList"
	case OpParens:
		return "Parens"
	case OpNewVList:
		return "NewVList"
	case OpNewZList:
		return "NewZList"
	case OpNewForm:
		return "NewForm"
	case OpInherit:
		return "Inherit"
	case OpEach:
		return "Each"
	case OpReturn:
		return "Return"
	default:
		return "Unknown"
	}
}
