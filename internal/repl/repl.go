// Package repl implements the interactive prompt loop: compile one
// line against the session's growing workspace, run it, print whatever
// is left on the stack. One Workspace/Registry persists across lines so
// a binding made on one line is visible on the next; only the operand
// stack resets between lines.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"strand/internal/compiler"
	"strand/internal/concurrency"
	"strand/internal/errors"
	"strand/internal/value"
	"strand/internal/vm"
)

const (
	colorPrompt = "\x1b[36m"
	colorError  = "\x1b[31m"
	colorValue  = "\x1b[32m"
	colorReset  = "\x1b[0m"
)

// REPL owns the session-long state a line-by-line prompt needs: the
// workspace bindings accumulate, but the stack is reset to empty
// before each line.
type REPL struct {
	registry *vm.Registry
	ws       *vm.Workspace
	rate     vm.Rate
	compiler *compiler.Compiler
	color    bool
	out      io.Writer
}

// New builds a REPL at the given rate, with color enabled only when
// out is a real terminal (mattn/go-isatty).
func New(out *os.File, rate vm.Rate) *REPL {
	registry := vm.NewStandardRegistry()
	vm.RegisterConcurrency(registry, concurrency.NewSpawner())
	ws := vm.NewWorkspace()
	return &REPL{
		registry: registry,
		ws:       ws,
		rate:     rate,
		compiler: compiler.NewCompiler(registry),
		color:    isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		out:      out,
	}
}

func (r *REPL) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + colorReset
}

// Run drives the prompt loop until EOF or an explicit "exit" line.
func (r *REPL) Run(in io.Reader) {
	fmt.Fprintln(r.out, r.paint(colorPrompt, "strand — type 'exit' to quit"))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, r.paint(colorPrompt, "> "))
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}
		r.evalPrint(line)
	}
}

func (r *REPL) evalPrint(line string) {
	code, err := r.compiler.Compile(line, "<repl>")
	if err != nil {
		r.printErr(err)
		return
	}

	th := vm.NewThread(r.ws, r.rate, 1)
	if err := th.Run(code); err != nil {
		r.printErr(err)
		return
	}

	for th.StackHeight() > 0 {
		v, err := th.Pop()
		if err != nil {
			break
		}
		fmt.Fprintln(r.out, r.paint(colorValue, formatValue(v)))
	}
}

func (r *REPL) printErr(err error) {
	if se, ok := err.(*errors.Error); ok {
		fmt.Fprintln(r.out, r.paint(colorError, se.Error()))
		return
	}
	fmt.Fprintln(r.out, r.paint(colorError, err.Error()))
}

// formatValue renders a top-level result for the prompt. Lists aren't
// force-printed in full: pulling an unbounded generator just to print
// it would defeat the point of laziness, so only scalars and a short
// type tag are shown.
func formatValue(v value.V) string {
	if v.IsReal() {
		return fmt.Sprintf("%v", v.AsReal())
	}
	switch v.Kind() {
	case value.KindString:
		if s, ok := v.Ref().(*value.String); ok {
			return s.Text
		}
	case value.KindSymbol:
		if s, ok := v.Ref().(*value.Symbol); ok {
			return "'" + s.Name
		}
	}
	return fmt.Sprintf("<%s>", v.Kind())
}
