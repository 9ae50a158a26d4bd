// Package arena stores backend owned records in slots addressed by an index
// and a generation counter. A slot is reused after deletion with a bumped
// generation, so stale references never resolve to a newer record.
package arena

import "sync"

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Arena is a concurrency safe slot allocator. The zero value is ready to use.
type Arena[T any] struct {
	mutex sync.Mutex
	slots []slot[T]
	free  []uint32
	count int
}

// Put stores v and returns the index and generation identifying it.
// Generations start at 1 so that (0, 0) never names a live slot.
func (a *Arena[T]) Put(v T) (index, gen uint32) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[index]
	s.gen++
	if s.gen == 0 {
		s.gen = 1 // generation zero never names a live slot
	}
	s.used = true
	s.val = v
	a.count++
	return index, s.gen
}

// Get returns the value stored at index if gen still matches.
func (a *Arena[T]) Get(index, gen uint32) (v T, ok bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if int(index) >= len(a.slots) {
		return v, false
	}
	if s := a.slots[index]; s.used && s.gen == gen {
		return s.val, true
	}
	return v, false
}

// Delete releases the slot, returning the value it held. It reports false
// and leaves the arena untouched when the reference is stale.
func (a *Arena[T]) Delete(index, gen uint32) (v T, ok bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if int(index) >= len(a.slots) {
		return v, false
	}
	s := &a.slots[index]
	if !s.used || s.gen != gen {
		return v, false
	}
	v = s.val
	var zero T
	s.val, s.used = zero, false
	a.free = append(a.free, index)
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.count
}

// Each calls f for every live value in index order. f must not call back
// into the arena.
func (a *Arena[T]) Each(f func(index, gen uint32, v T)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for i, s := range a.slots {
		if s.used {
			f(uint32(i), s.gen, s.val)
		}
	}
}
