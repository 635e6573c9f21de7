package value

// Get reads the ref cell under lock and returns a deep-equal-comparable
// snapshot.
func (r *Ref) Get() V {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Val
}

// Set installs a new value into the cell.
func (r *Ref) Set(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Val = v
}

func (z *ZRef) Get() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.Val
}

func (z *ZRef) Set(f float64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.Val = f
}

// PlugCursor is the minimal surface a Plug/ZPlug swaps in and out. The
// concrete VIn/ZIn cursors in internal/cursor satisfy it; kept as an
// interface here so internal/value does not need to import
// internal/cursor (which imports internal/value for V).
type PlugCursor interface {
	// Exhausted reports whether the wired-in cursor has reached its end.
	Exhausted() bool
}

// Plug holds a hot-swappable VIn-flavoured input, Zplug a ZIn-flavoured
// one. Both carry a monotonically increasing change count so a
// generator mid-block can tell whether the wiring moved under it. One
// mutex guards both the wire swap and the counter bump, rather than a
// finer double-buffered scheme: a generator only needs a mid-block
// read to see one consistent wiring or the other, not wait-free access.
type Plug struct {
	mu          mu
	cursor      PlugCursor
	changeCount uint64
}

func NewPlug(c PlugCursor) *Plug { return &Plug{cursor: c} }

// Rewire swaps in a new cursor and bumps the change count.
func (p *Plug) Rewire(c PlugCursor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = c
	p.changeCount++
}

// Snapshot returns the currently wired cursor and the change count
// observed alongside it, for a generator to compare against what it
// last saw.
func (p *Plug) Snapshot() (PlugCursor, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, p.changeCount
}

type ZPlug struct {
	mu          mu
	cursor      PlugCursor
	changeCount uint64
}

func NewZPlug(c PlugCursor) *ZPlug { return &ZPlug{cursor: c} }

func (p *ZPlug) Rewire(c PlugCursor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = c
	p.changeCount++
}

func (p *ZPlug) Snapshot() (PlugCursor, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, p.changeCount
}

// EachOp tags a value with the bitmask selecting which nesting levels
// broadcast should iterate.
type EachOp struct {
	Value V
	Mask  uint64
}

// Symbol is an interned, identity-compared name. The interning table
// lives in internal/symbols; Symbol itself is just the heap cell
// identity compares against.
type Symbol struct {
	Name string
}

// String is a heap-boxed string value distinct from Symbol. String.Hash
// hashes the text by content; V.Equal and V.Hash still compare and hash
// a string value by pointer identity.
type String struct {
	Text string
	hash int64
	have bool
}

func (s *String) Hash() int64 {
	if !s.have {
		var h int64 = 1469598103934665603
		for i := 0; i < len(s.Text); i++ {
			h ^= int64(s.Text[i])
			h *= 1099511628211
		}
		s.hash = h
		s.have = true
	}
	return s.hash
}
