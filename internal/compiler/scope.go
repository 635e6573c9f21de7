package compiler

// scope tracks one lexical compile-time binding level: the top scope
// (no parent) binds names into the workspace; a lambda's scope binds
// its parameters and any `=name` assignments as locals.
//
// A lambda body may additionally read names bound in the *immediately*
// enclosing scope's locals — resolved as funvars — matching the single
// capture level internal/vm.Fun actually implements (see DESIGN.md's
// "Fun closure capture" entry): FunVars is a copy of the defining
// frame's locals taken when PushFun runs, so a funvar index is always an index into the
// parent's own locals, not a transitively flattened ancestor chain.
// A name bound only further out than the immediate parent does not
// resolve here; like any other out-of-scope name it falls through to
// the builtin registry and then to a workspace reference.
type scope struct {
	parent *scope
	locals []string
}

func newTopScope() *scope {
	return &scope{}
}

func (s *scope) isTop() bool { return s.parent == nil }

func (s *scope) child() *scope {
	return &scope{parent: s}
}

// declareLocal adds name as a new local slot (lambda parameter, or a
// `=name` bind inside a lambda body) and returns its index.
func (s *scope) declareLocal(name string) int {
	for i, n := range s.locals {
		if n == name {
			return i
		}
	}
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

// resolveKind names what resolve found.
type resolveKind int

const (
	resolveNone resolveKind = iota
	resolveLocal
	resolveFunVar
)

// resolve looks a bareword up against this scope's locals, then the
// immediately enclosing scope's locals (as a funvar). Anything else
// (builtin, workspace) is the caller's fallback.
func (s *scope) resolve(name string) (resolveKind, int) {
	for i, n := range s.locals {
		if n == name {
			return resolveLocal, i
		}
	}
	if s.parent != nil {
		for i, n := range s.parent.locals {
			if n == name {
				return resolveFunVar, i
			}
		}
	}
	return resolveNone, 0
}
