package compiler

import (
	"strconv"
	"strings"

	"strand/internal/bytecode"
	"strand/internal/errors"
	"strand/internal/symbols"
	"strand/internal/value"
	"strand/internal/vm"
)

// nonNameChars are the bytes that terminate a bareword token.
const nonNameChars = ";()[]{}.`,:\"\n"

func endOfWord(c byte) bool {
	if c == 0 || isSpace(c) {
		return true
	}
	return strings.IndexByte(nonNameChars, c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Compiler turns source text into bytecode.Code, one compilation unit
// at a time. A single Compiler is reused across a REPL session so
// lambda scopes compiled on one line don't leak into the next, while
// builtins stay constant.
type Compiler struct {
	src      *source
	file     string
	registry *vm.Registry
	cur      *scope
	sawColon *bool
}

// NewCompiler builds a compiler resolving barewords against registry
// before falling back to a workspace reference (PushWorkspace/
// CallWorkspace, resolved lazily at runtime, so a name bound by an
// earlier REPL line compiles even though this Compiler never sees the
// workspace's live contents).
func NewCompiler(registry *vm.Registry) *Compiler {
	return &Compiler{registry: registry, cur: newTopScope()}
}

// Compile parses text (one REPL line, one file) to a top-level Code
// ending in Return so Thread.Run's unwind path is uniform with a
// function call's.
func (c *Compiler) Compile(text, file string) (*bytecode.Code, error) {
	c.src = newSource(text)
	c.file = file
	c.cur = newTopScope()

	code := bytecode.NewCode()
	for {
		ok, err := c.parseElem(code)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	code.Return(c.debug())
	return code, nil
}

func (c *Compiler) debug() bytecode.DebugInfo {
	line, col := c.src.pos2line()
	return bytecode.DebugInfo{Line: line, Column: col, File: c.file}
}

func (c *Compiler) syntaxErr(msg string) error {
	line, col := c.src.pos2line()
	return errors.At(errors.Syntax, msg, c.file, line, col)
}

// skipSpace consumes whitespace and `;`-to-end-of-line comments.
func (c *Compiler) skipSpace() {
	for {
		ch := c.src.getc()
		if ch == ';' {
			for {
				ch = c.src.getc()
				if ch == 0 || ch == '\n' {
					break
				}
			}
			if ch == 0 {
				c.src.unget()
				return
			}
			continue
		}
		if ch == 0 {
			c.src.unget()
			return
		}
		if !isSpace(ch) {
			c.src.unget()
			return
		}
	}
}

// compileBlock parses elements until it sees endByte (consuming it),
// returning them as their own Code. emitReturn is true only for a
// lambda body, since Return there ends the current function call;
// every other nested block (array/zarray/parens/form/inherit literal)
// must not carry its own Return, since the interpreter recurses
// directly into a nested block's instruction list and a Return inside
// would unwind the *enclosing* call, not just this literal.
func (c *Compiler) compileBlock(endByte byte, emitReturn bool) (*bytecode.Code, error) {
	code := bytecode.NewCode()
	for {
		c.skipSpace()
		ch := c.src.c()
		if ch == endByte {
			c.src.getc()
			break
		}
		if ch == 0 {
			return nil, c.syntaxErr("unexpected end of input, expected '" + string(endByte) + "'")
		}
		ok, err := c.parseElem(code)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, c.syntaxErr("unexpected end of input, expected '" + string(endByte) + "'")
		}
	}
	if emitReturn {
		code.Return(c.debug())
	}
	return code, nil
}

// parseElem recognizes and emits exactly one top-level construct.
func (c *Compiler) parseElem(code *bytecode.Code) (bool, error) {
	c.skipSpace()
	ch := c.src.c()
	switch {
	case ch == 0:
		return false, nil
	case ch == ']' || ch == ')' || ch == '}':
		return false, c.syntaxErr("unexpected '" + string(ch) + "'")
	case ch == '@':
		return true, c.parseEachOp(code)
	case ch == '(':
		return true, c.parseParens(code)
	case ch == '[':
		return true, c.parseArray(code)
	case ch == '{':
		return true, c.parseNewForm(code)
	case ch == '\\':
		return true, c.parseLambda(code)
	case ch == '"':
		return true, c.parseStringLit(code)
	case ch == '\'':
		return true, c.parseQuote(code)
	case ch == '`':
		return true, c.parseBackquote(code)
	case ch == ',':
		return true, c.parseComma(code)
	case ch == ':':
		return true, c.parseColon(code)
	case ch == '#':
		if c.src.d() != '[' {
			return false, c.syntaxErr("expected '[' after '#'")
		}
		return true, c.parseZArray(code)
	case ch == '0' && c.src.d() == 'x':
		if ok, err := c.parseHexNumber(code); ok || err != nil {
			return ok, err
		}
		return true, c.parseWord(code)
	case isDigit(ch) || ch == '+' || ch == '-':
		if ok, err := c.parseNumberTok(code); ok || err != nil {
			return ok, err
		}
		return true, c.parseWord(code)
	case ch == 'p' && c.src.d() == 'i':
		if ok, err := c.parseNumberTok(code); ok || err != nil {
			return ok, err
		}
		return true, c.parseWord(code)
	case ch == '.':
		if ok, err := c.parseNumberTok(code); ok || err != nil {
			return ok, err
		}
		return true, c.parseDot(code)
	default:
		return true, c.parseWord(code)
	}
}

// parseSymbolTok reads one bareword token (a primitive/word name, a
// quote/backquote target, a form key).
func (c *Compiler) parseSymbolTok() (string, bool) {
	c.skipSpace()
	start := c.src.mark()
	ch := c.src.getc()
	for !endOfWord(ch) {
		ch = c.src.getc()
	}
	c.src.unget()
	if c.src.mark() == start {
		return "", false
	}
	return c.src.text[start:c.src.mark()], true
}

func (c *Compiler) parseQuote(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '\''
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected symbol after quote")
	}
	code.PushImmediate(value.FromRef(value.KindSymbol, symbols.Intern(name)), d)
	return nil
}

func (c *Compiler) parseBackquote(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '`'
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected symbol after backquote")
	}
	c.emitPush(code, name, d)
	return nil
}

func (c *Compiler) parseDot(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '.'
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected symbol after '.'")
	}
	code.Dot(name, d)
	return nil
}

func (c *Compiler) parseComma(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // ','
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected symbol after ','")
	}
	code.Comma(name, d)
	return nil
}

// parseColon is form-literal sugar: `:name` pushes the symbol `name`,
// exactly like quote, but also marks the enclosing `{...}` as a
// key/value form literal rather than an inherit list.
func (c *Compiler) parseColon(code *bytecode.Code) error {
	if c.sawColon == nil {
		return c.syntaxErr("':' is only valid inside a '{...}' form literal")
	}
	d := c.debug()
	c.src.getc() // ':'
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected symbol after ':'")
	}
	*c.sawColon = true
	code.PushImmediate(value.FromRef(value.KindSymbol, symbols.Intern(name)), d)
	return nil
}

func (c *Compiler) parseEachOp(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '@'
	var mask uint64
	ch := c.src.getc()
	switch {
	case ch == '@':
		level := 0
		mask = 1
		for ch == '@' {
			mask |= uint64(1) << uint(level+1)
			level++
			ch = c.src.getc()
		}
	case ch >= '2' && ch <= '9':
		mask = uint64(1) << uint(ch-'1')
		ch = c.src.getc()
	case ch == '0' || ch == '1':
		level := 0
		for ch == '0' || ch == '1' {
			if ch == '1' {
				mask |= uint64(1) << uint(level)
			}
			level++
			ch = c.src.getc()
		}
	default:
		mask = 1
	}
	if isDigit(ch) {
		return c.syntaxErr("unexpected extra digit after '@'")
	}
	c.src.unget()
	code.Each(mask, d)
	return nil
}

func (c *Compiler) parseParens(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '('
	block, err := c.compileBlock(')', false)
	if err != nil {
		return err
	}
	code.Parens(block, d)
	return nil
}

func (c *Compiler) parseArray(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '['
	block, err := c.compileBlock(']', false)
	if err != nil {
		return err
	}
	code.NewVList(block, d)
	return nil
}

func (c *Compiler) parseZArray(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '#'
	c.src.getc() // '['
	block, err := c.compileBlock(']', false)
	if err != nil {
		return err
	}
	code.NewZList(block, d)
	return nil
}

func (c *Compiler) parseNewForm(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '{'
	saved := c.sawColon
	var local bool
	c.sawColon = &local
	block, err := c.compileBlock('}', false)
	c.sawColon = saved
	if err != nil {
		return err
	}
	if local {
		code.NewForm(block, d)
	} else {
		code.Inherit(block, d)
	}
	return nil
}

// parseLambda compiles `\name1 name2 ... [ body ]` into an opPushFun.
// Stack-effect annotations and doc strings on parameters are not
// supported: nothing downstream reads them back out, so they'd be dead
// weight carried only for surface fidelity.
func (c *Compiler) parseLambda(code *bytecode.Code) error {
	d := c.debug()
	c.src.getc() // '\\'

	child := c.cur.child()
	prev := c.cur
	c.cur = child

	var params []string
	for {
		c.skipSpace()
		ch := c.src.c()
		if ch == '[' || ch == 0 {
			break
		}
		name, ok := c.parseSymbolTok()
		if !ok {
			break
		}
		child.declareLocal(name)
		params = append(params, name)
	}

	c.skipSpace()
	if c.src.getc() != '[' {
		c.cur = prev
		return c.syntaxErr("expected '[' after lambda argument list")
	}
	body, err := c.compileBlock(']', true)
	c.cur = prev
	if err != nil {
		return err
	}

	def := &bytecode.FunDef{NumLocals: len(child.locals), Params: params, Body: body}
	code.PushFun(def, d)
	return nil
}

func (c *Compiler) parseStringLit(code *bytecode.Code) error {
	d := c.debug()
	s, err := c.readQuotedString()
	if err != nil {
		return err
	}
	code.PushImmediate(value.FromRef(value.KindString, &value.String{Text: s}), d)
	return nil
}

func (c *Compiler) readQuotedString() (string, error) {
	c.src.getc() // opening '"'
	var sb strings.Builder
	ch := c.src.getc()
	for {
		switch {
		case ch == 0:
			return "", c.syntaxErr("end of input in string literal")
		case ch == '\\' && c.src.c() == '\\':
			c.src.getc()
			ch = c.src.getc()
			switch ch {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 'f':
				sb.WriteByte('\f')
			case 'v':
				sb.WriteByte('\v')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(ch)
			}
			ch = c.src.getc()
		case ch == '"':
			if c.src.c() == '"' {
				ch = c.src.getc()
				sb.WriteByte('"')
			} else {
				return sb.String(), nil
			}
		default:
			sb.WriteByte(ch)
			ch = c.src.getc()
		}
	}
}

// parseHexNumber recognizes 0x-prefixed integer literals.
func (c *Compiler) parseHexNumber(code *bytecode.Code) (bool, error) {
	d := c.debug()
	start := c.src.mark()
	c.src.getc() // '0'
	c.src.getc() // 'x'
	var z int64
	ch := c.src.getc()
	any := false
	for isHexDigit(ch) {
		any = true
		z = z*16 + int64(hexVal(ch))
		ch = c.src.getc()
	}
	if !any || !endOfWord(ch) {
		c.src.rewind(start)
		return false, nil
	}
	c.src.unget()
	code.PushImmediate(value.Real(float64(z)), d)
	return true, nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case isDigit(c):
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

// parseNumberTok recognizes a float literal: integers, decimals,
// exponents, `pi`, and the metric-unit suffixes M/k/h/c/m/u.
func (c *Compiler) parseNumberTok(code *bytecode.Code) (bool, error) {
	d := c.debug()
	start := c.src.mark()
	a, ok := c.parseFloat()
	if !ok {
		c.src.rewind(start)
		return false, nil
	}
	if c.src.c() == '/' {
		c.src.getc()
		b, ok2 := c.parseFloat()
		if ok2 && endOfWord(c.src.c()) {
			code.PushImmediate(value.Real(a/b), d)
			return true, nil
		}
		c.src.rewind(start)
		return false, nil
	}
	if !endOfWord(c.src.c()) {
		c.src.rewind(start)
		return false, nil
	}
	code.PushImmediate(value.Real(a), d)
	return true, nil
}

const (
	mPi    = 3.14159265358979323846
	mMega  = 1e6
	mKilo  = 1e3
	mHecto = 1e2
	mCenti = 1e-2
	mMilli = 1e-3
	mMicro = 1e-6
)

func (c *Compiler) parseFloat() (float64, bool) {
	start := c.src.mark()

	if c.src.c() == 'p' && c.src.d() == 'i' {
		c.src.getc()
		c.src.getc()
		return mPi, true
	}

	var tok strings.Builder
	ch := c.src.getc()

	if ch == '+' || ch == '-' {
		tok.WriteByte(ch)
		ch = c.src.getc()
	}

	digits := 0
	sawDot := false
	for {
		if isDigit(ch) {
			digits++
		} else if ch == '.' {
			if sawDot {
				break
			}
			sawDot = true
		} else {
			break
		}
		tok.WriteByte(ch)
		ch = c.src.getc()
	}
	if digits == 0 {
		c.src.rewind(start)
		return 0, false
	}

	if ch == 'e' || ch == 'E' {
		tok.WriteByte(ch)
		ch = c.src.getc()
		if ch == '+' || ch == '-' {
			tok.WriteByte(ch)
			ch = c.src.getc()
		}
		for isDigit(ch) {
			tok.WriteByte(ch)
			ch = c.src.getc()
		}
	}

	mult := 1.0
	switch {
	case ch == 'p' && c.src.c() == 'i':
		c.src.getc()
		mult = mPi
	case ch == 'M':
		mult = mMega
	case ch == 'k':
		mult = mKilo
	case ch == 'h':
		mult = mHecto
	case ch == 'c':
		mult = mCenti
	case ch == 'm':
		mult = mMilli
	case ch == 'u':
		mult = mMicro
	default:
		c.src.unget()
	}

	x, err := strconv.ParseFloat(tok.String(), 64)
	if err != nil {
		c.src.rewind(start)
		return 0, false
	}
	return x * mult, true
}

// parseWord handles the `=` assignment forms and plain bareword
// call/lookup.
func (c *Compiler) parseWord(code *bytecode.Code) error {
	d := c.debug()
	name, ok := c.parseSymbolTok()
	if !ok {
		return c.syntaxErr("expected a word")
	}

	if name == "=" {
		return c.parseAssign(code, d)
	}
	if len(name) > 1 && name[0] == '=' {
		if _, isPrim := c.registry.Lookup(name); !isPrim {
			c.emitBind(code, name[1:], d)
			return nil
		}
	}

	return c.emitCall(code, name, d)
}

func (c *Compiler) parseAssign(code *bytecode.Code, d bytecode.DebugInfo) error {
	c.skipSpace()
	switch c.src.c() {
	case '(':
		c.src.getc()
		var names []string
		for {
			n, ok := c.parseSymbolTok()
			if !ok {
				break
			}
			names = append(names, n)
		}
		if len(names) == 0 {
			return c.syntaxErr("expected a name after '=('")
		}
		c.skipSpace()
		if c.src.getc() != ')' {
			return c.syntaxErr("expected ')' after '=(' name list")
		}
		for i := len(names) - 1; i >= 0; i-- {
			c.emitBind(code, names[i], d)
		}
		return nil
	case '[':
		c.src.getc()
		var names []string
		for {
			n, ok := c.parseSymbolTok()
			if !ok {
				break
			}
			names = append(names, n)
		}
		if len(names) == 0 {
			return c.syntaxErr("expected a name after '=['")
		}
		c.skipSpace()
		if c.src.getc() != ']' {
			return c.syntaxErr("expected ']' after '=[' name list")
		}
		return c.emitBindFromList(code, names, d)
	default:
		name, ok := c.parseSymbolTok()
		if !ok {
			return c.syntaxErr("expected a name after '='")
		}
		c.emitBind(code, name, d)
		return nil
	}
}

func (c *Compiler) emitBind(code *bytecode.Code, name string, d bytecode.DebugInfo) {
	if c.cur.isTop() {
		code.BindWorkspace(name, d)
		return
	}
	idx := c.cur.declareLocal(name)
	code.BindLocal(idx, d)
}

func (c *Compiler) emitBindFromList(code *bytecode.Code, names []string, d bytecode.DebugInfo) error {
	if c.cur.isTop() {
		code.BindWorkspaceFromList(names, d)
		return nil
	}
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = c.cur.declareLocal(n)
	}
	code.BindLocalFromList(idx, d)
	return nil
}

// emitPush pushes (doesn't call) whatever name currently resolves to —
// backquote's semantics.
func (c *Compiler) emitPush(code *bytecode.Code, name string, d bytecode.DebugInfo) {
	switch kind, idx := c.cur.resolve(name); kind {
	case resolveLocal:
		code.PushLocal(idx, d)
	case resolveFunVar:
		code.PushFunVar(idx, d)
	default:
		if p, ok := c.registry.Lookup(name); ok {
			code.PushImmediate(value.FromRef(value.KindPrimitive, p), d)
		} else {
			code.PushWorkspace(name, d)
		}
	}
}

// emitCall invokes whatever name resolves to.
func (c *Compiler) emitCall(code *bytecode.Code, name string, d bytecode.DebugInfo) error {
	switch kind, idx := c.cur.resolve(name); kind {
	case resolveLocal:
		code.CallLocal(idx, d)
	case resolveFunVar:
		code.CallFunVar(idx, d)
	default:
		if p, ok := c.registry.Lookup(name); ok {
			code.CallImmediate(value.FromRef(value.KindPrimitive, p), d)
		} else {
			code.CallWorkspace(name, d)
		}
	}
	return nil
}
