package vm

import (
	"sync"

	"strand/internal/form"
	"strand/internal/value"
)

// Workspace is the top-level persistent binding environment: a
// copy-on-bind mapping whose top-level bindings stay visible to any
// thread that captured the workspace at spawn time. A snapshot is an
// immutable *form.Table; binding a new name replaces the snapshot
// atomically so concurrent readers never observe a partially updated
// table.
type Workspace struct {
	mu       sync.Mutex
	snapshot *form.Table
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{snapshot: form.NewTable(nil, nil)}
}

// Snapshot returns the current binding table. Safe to retain across a
// `go` spawn: later binds on the workspace never mutate it, they
// install a new table.
func (w *Workspace) Snapshot() *form.Table {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

// Bind installs name->v, replacing the workspace's table with a copy
// carrying the new/updated slot.
func (w *Workspace) Bind(name string, v value.V) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshot = w.snapshot.With(name, v)
}

// Get reads name from the workspace's current snapshot.
func (w *Workspace) Get(name string) (value.V, error) {
	return w.Snapshot().Get(name)
}

// Fork captures the workspace reference for a spawned thread; since
// binds replace rather than mutate the snapshot, the forked thread
// simply shares the *Workspace pointer and reads whatever snapshot is
// current at the moment it looks a name up.
func (w *Workspace) Fork() *Workspace { return w }
