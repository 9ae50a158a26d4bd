// Package gls implements goroutine local storage. Coroutine backends use it
// to find the coroutine bound to the calling goroutine, which lets Yield be
// called without a handle.
package gls

import "sync"

// goroutine local storage; the map contains one entry for each goroutine that
// is currently running the body of a coroutine.
//
// TODO: shard the map by goroutine id if the global RWMutex ever shows up in
// profiles of programs running thousands of coroutines in parallel.
var (
	gmutex sync.RWMutex
	gstate map[G]any
)

// G is a reference to a goroutine, and provides a way
// to load, store and clear a goroutine local value.
type G uint64

// Current returns a reference to the calling goroutine.
func Current() G {
	return G(getg())
}

// Load loads the goroutine local value, nil if none was stored.
func (g G) Load() any {
	gmutex.RLock()
	v := gstate[g]
	gmutex.RUnlock()
	return v
}

// Store stores the goroutine local value.
func (g G) Store(v any) {
	gmutex.Lock()
	if gstate == nil {
		gstate = make(map[G]any)
	}
	gstate[g] = v
	gmutex.Unlock()
}

// Clear clears the goroutine local value.
func (g G) Clear() {
	gmutex.Lock()
	delete(gstate, g)
	gmutex.Unlock()
}

// Len returns the number of goroutines holding a local value.
func Len() int {
	gmutex.RLock()
	n := len(gstate)
	gmutex.RUnlock()
	return n
}
