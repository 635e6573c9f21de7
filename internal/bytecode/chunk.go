package bytecode

import "strand/internal/value"

// DebugInfo stores source location for each instruction so errors and
// a future REPL backtrace can report file:line:column.
type DebugInfo struct {
	Line   int
	Column int
	File   string
}

// Instr is one compiled opcode plus whichever of its operand fields
// the opcode actually uses: PushLocal[i], PushWorkspace[name],
// Each[mask], and so on.
type Instr struct {
	Op      Op
	Imm     value.V  // PushImmediate
	Index   int      // PushLocal/PushFunVar/CallLocal/CallFunVar/BindLocal index
	Indices []int    // BindLocalFromList
	Name    string   // PushWorkspace/CallWorkspace/Dot/Comma/BindWorkspace key
	Names   []string // BindWorkspaceFromList keys
	Block   *Code    // Parens/NewVList/NewZList/NewForm/Inherit nested block
	Def     *FunDef  // PushFun
	Mask    uint64   // Each
}

// FunDef is a compiled function literal: its parameter-binding opcodes
// (typically a BindLocal run) plus its body.
type FunDef struct {
	NumLocals int
	Params    []string
	Body      *Code
}

// Code is a linear, already-compiled instruction sequence: a user
// expression compiles down to one ordered run of opcodes.
type Code struct {
	Instrs []Instr
	Debug  []DebugInfo
}

func NewCode() *Code {
	return &Code{}
}

func (c *Code) emit(in Instr, d DebugInfo) {
	c.Instrs = append(c.Instrs, in)
	c.Debug = append(c.Debug, d)
}

func (c *Code) PushImmediate(v value.V, d DebugInfo) {
	c.emit(Instr{Op: OpPushImmediate, Imm: v}, d)
}

func (c *Code) PushLocal(i int, d DebugInfo) { c.emit(Instr{Op: OpPushLocal, Index: i}, d) }
func (c *Code) PushFunVar(i int, d DebugInfo) { c.emit(Instr{Op: OpPushFunVar, Index: i}, d) }
func (c *Code) PushWorkspace(name string, d DebugInfo) {
	c.emit(Instr{Op: OpPushWorkspace, Name: name}, d)
}
func (c *Code) PushFun(def *FunDef, d DebugInfo) { c.emit(Instr{Op: OpPushFun, Def: def}, d) }

func (c *Code) CallImmediate(v value.V, d DebugInfo) {
	c.emit(Instr{Op: OpCallImmediate, Imm: v}, d)
}
func (c *Code) CallLocal(i int, d DebugInfo)  { c.emit(Instr{Op: OpCallLocal, Index: i}, d) }
func (c *Code) CallFunVar(i int, d DebugInfo) { c.emit(Instr{Op: OpCallFunVar, Index: i}, d) }
func (c *Code) CallWorkspace(name string, d DebugInfo) {
	c.emit(Instr{Op: OpCallWorkspace, Name: name}, d)
}

func (c *Code) Dot(key string, d DebugInfo)   { c.emit(Instr{Op: OpDot, Name: key}, d) }
func (c *Code) Comma(key string, d DebugInfo) { c.emit(Instr{Op: OpComma, Name: key}, d) }

func (c *Code) BindLocal(i int, d DebugInfo) { c.emit(Instr{Op: OpBindLocal, Index: i}, d) }
func (c *Code) BindLocalFromList(idx []int, d DebugInfo) {
	c.emit(Instr{Op: OpBindLocalFromList, Indices: idx}, d)
}
func (c *Code) BindWorkspace(name string, d DebugInfo) {
	c.emit(Instr{Op: OpBindWorkspace, Name: name}, d)
}
func (c *Code) BindWorkspaceFromList(names []string, d DebugInfo) {
	c.emit(Instr{Op: OpBindWorkspaceFromList, Names: names}, d)
}

func (c *Code) Parens(block *Code, d DebugInfo)   { c.emit(Instr{Op: OpParens, Block: block}, d) }
func (c *Code) NewVList(block *Code, d DebugInfo) { c.emit(Instr{Op: OpNewVList, Block: block}, d) }
func (c *Code) NewZList(block *Code, d DebugInfo) { c.emit(Instr{Op: OpNewZList, Block: block}, d) }
func (c *Code) NewForm(block *Code, d DebugInfo)  { c.emit(Instr{Op: OpNewForm, Block: block}, d) }
func (c *Code) Inherit(block *Code, d DebugInfo)  { c.emit(Instr{Op: OpInherit, Block: block}, d) }
func (c *Code) Each(mask uint64, d DebugInfo)     { c.emit(Instr{Op: OpEach, Mask: mask}, d) }
func (c *Code) Return(d DebugInfo)                { c.emit(Instr{Op: OpReturn}, d) }

func (c *Code) DebugAt(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}
