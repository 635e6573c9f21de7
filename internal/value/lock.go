package value

import "sync"

// mu is the per-object lock guarding the single-slot swap of a
// Ref/ZRef/Plug/ZPlug (vlist.List guards its own transition from "has
// generator" to "has array and next" with a mutex of its own). It is held only for
// the duration of one pull or one mutation, never across a blocking
// call, so a plain mutex is enough without a real busy-wait spin: Go's
// runtime already parks goroutines cheaply on an uncontended
// sync.Mutex.
type mu struct {
	sync.Mutex
}
