package coro

import (
	"cmp"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/stealthrocket/coro/internal/arena"
)

// coroutine is the backend independent part of a coroutine record.
type coroutine struct {
	handle Handle
	name   string
	fn     Func
	data   any
	state  atomic.Int32
	yields atomic.Int64

	// Set by the body's goroutine before it hands the turn back for the last
	// time, read by the driver after that.
	perr   *PanicError
	goexit bool
}

func (c *coroutine) record() *coroutine { return c }

func (c *coroutine) State() State { return State(c.state.Load()) }

func (c *coroutine) setState(s State) { c.state.Store(int32(s)) }

func (c *coroutine) violation(op, reason string) *ContractError {
	return &ContractError{Op: op, Handle: c.handle, Name: c.name, Reason: reason}
}

// checkRun verifies that c can be resumed.
func (c *coroutine) checkRun() {
	switch c.State() {
	case Running:
		panic(c.violation("Run", "coroutine is already running"))
	case Finished:
		panic(c.violation("Run", "coroutine has finished"))
	}
}

type entry interface {
	record() *coroutine
}

// table holds the records of a backend and the bookkeeping shared by all
// backends.
type table[T entry] struct {
	options
	slots arena.Arena[T]

	created   atomic.Int64
	destroyed atomic.Int64
	live      atomic.Int64
	workers   atomic.Int64
}

func (t *table[T]) reserve(fn Func, name string) error {
	if fn == nil {
		return fmt.Errorf("creating coroutine %q: %w", name, ErrNilFunc)
	}
	for {
		n := t.live.Load()
		if t.limit > 0 && n >= t.limit {
			return fmt.Errorf("creating coroutine %q: %w (limit %d)", name, ErrExhausted, t.limit)
		}
		if t.live.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

func (t *table[T]) insert(v T) Handle {
	c := v.record()
	c.handle = makeHandle(t.slots.Put(v))
	t.created.Add(1)
	t.logger.Debug("coroutine created", "coroutine", c.name, "handle", c.handle)
	return c.handle
}

func (t *table[T]) lookup(op string, h Handle) T {
	v, ok := t.slots.Get(h.index(), h.gen())
	if !ok {
		panic(&ContractError{Op: op, Handle: h, Reason: "unknown or destroyed handle"})
	}
	return v
}

func (t *table[T]) remove(h Handle) {
	v, ok := t.slots.Delete(h.index(), h.gen())
	if !ok {
		panic(&ContractError{Op: "Destroy", Handle: h, Reason: "unknown or destroyed handle"})
	}
	t.destroyed.Add(1)
	t.live.Add(-1)
	c := v.record()
	t.logger.Debug("coroutine destroyed", "coroutine", c.name, "handle", h, "yields", c.yields.Load())
}

func (t *table[T]) finished(c *coroutine) {
	if c.perr != nil {
		t.logger.Error("coroutine panicked", "coroutine", c.name, "handle", c.handle, "panic", c.perr.Value)
		return
	}
	t.logger.Debug("coroutine finished", "coroutine", c.name, "handle", c.handle, "yields", c.yields.Load())
}

// Inspect returns a description of every live coroutine, ordered by handle.
func (t *table[T]) Inspect() []Info {
	var infos []Info
	t.slots.Each(func(index, gen uint32, v T) {
		c := v.record()
		infos = append(infos, Info{
			Handle: makeHandle(index, gen),
			Name:   c.name,
			State:  c.State(),
			Yields: c.yields.Load(),
		})
	})
	slices.SortFunc(infos, func(a, b Info) int { return cmp.Compare(a.Handle, b.Handle) })
	return infos
}

// Stats returns the resource counters of the backend.
func (t *table[T]) Stats() Stats {
	return Stats{
		Created:   t.created.Load(),
		Destroyed: t.destroyed.Load(),
		Live:      t.live.Load(),
		Workers:   t.workers.Load(),
	}
}
