// Package errors implements the engine's error kinds: a single
// concrete error type carrying a kind, message, and source location,
// with a multi-section Error() report and New<Kind>Error-style
// constructors.
package errors

import (
	"fmt"
	"strings"
)

// Kind identifies what went wrong.
type Kind string

const (
	StackUnderflow          Kind = "StackUnderflow"
	OutOfRange              Kind = "OutOfRange"
	WrongType               Kind = "WrongType"
	NotFound                Kind = "NotFound"
	Syntax                  Kind = "Syntax"
	IndefiniteOperation     Kind = "IndefiniteOperation"
	InconsistentInheritance Kind = "InconsistentInheritance"
	Failed                  Kind = "Failed"
	UserQuit                Kind = "UserQuit"
	InternalError           Kind = "InternalError"
)

// Location pins an error to a source position, when one is known (the
// compiler attaches these; runtime errors raised deep in a pull often
// leave it zero).
type Location struct {
	File   string
	Line   int
	Column int
}

// Frame is one call-stack entry captured at the time an error was
// raised, as it unwinds through the interpreter loop.
type Frame struct {
	Function string
	Location Location
}

// Error is the engine's single concrete error type.
type Error struct {
	Kind      Kind
	Message   string
	Location  Location
	CallStack []Frame
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Kind, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))
	}
	if len(e.CallStack) > 0 {
		sb.WriteString("\ncall stack:\n")
		for _, f := range e.CallStack {
			sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n", f.Function, f.Location.File, f.Location.Line, f.Location.Column))
		}
	}
	return sb.String()
}

// New constructs a located-less error of the given kind, the common
// case for errors raised deep inside a generator's pull.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// At attaches a source location to an existing error kind.
func At(kind Kind, message string, file string, line, col int) *Error {
	return &Error{Kind: kind, Message: message, Location: Location{File: file, Line: line, Column: col}}
}

// WithFrame appends a call-stack frame, used by the interpreter loop
// as an error unwinds toward the nearest try or the REPL top level.
func (e *Error) WithFrame(f Frame) *Error {
	e.CallStack = append(e.CallStack, f)
	return e
}

// Is reports whether err is a *Error of the given kind, the shape
// try/protect primitives match on.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
