// Package symbols implements the process-wide symbol table: identifier
// bytes intern to a single immutable handle so symbols compare and
// hash by identity rather than content.
package symbols

import (
	"sync"

	"strand/internal/value"
)

var (
	mu      sync.Mutex
	table   = map[string]*value.Symbol{}
)

// Intern returns the unique Symbol for name, allocating it on first
// use. Every later call with the same bytes returns the identical
// pointer.
func Intern(name string) *value.Symbol {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := table[name]; ok {
		return s
	}
	s := &value.Symbol{Name: name}
	table[name] = s
	return s
}

// Lookup returns the interned symbol for name without allocating.
func Lookup(name string) (*value.Symbol, bool) {
	mu.Lock()
	defer mu.Unlock()
	s, ok := table[name]
	return s, ok
}
