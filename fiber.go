package coro

import (
	"iter"

	"github.com/stealthrocket/coro/internal/gls"
)

// Fiber implements Interface on top of the coroutines built into the Go
// runtime, which iter.Pull exposes. Switching between the driver and the
// coroutine does not go through the scheduler, so it is cheaper than the
// channel handoff of ThreadPair, with the same semantics.
//
// A runtime.Goexit in a coroutine body propagates to the goroutine calling
// Run, as it does with ThreadPair.
type Fiber struct {
	table[*fiberCoroutine]
}

type fiberCoroutine struct {
	coroutine
	next    func() (struct{}, bool)
	stop    func()
	suspend func(struct{}) bool
}

var (
	_ Interface = (*Fiber)(nil)
	_ Inspector = (*Fiber)(nil)
)

// NewFiber returns a backend running coroutines as Go runtime coroutines.
func NewFiber(opts ...Option) *Fiber {
	return &Fiber{table: table[*fiberCoroutine]{options: makeOptions(opts)}}
}

// Create allocates a runtime coroutine that runs fn on the first call to Run.
func (f *Fiber) Create(fn Func, name string, data any) (Handle, error) {
	if err := f.reserve(fn, name); err != nil {
		return NoHandle, err
	}
	c := &fiberCoroutine{
		coroutine: coroutine{name: name, fn: fn, data: data},
	}
	c.next, c.stop = iter.Pull(func(yield func(struct{}) bool) {
		c.suspend = yield
		f.body(c)
	})
	f.workers.Add(1)
	return f.insert(c), nil
}

func (f *Fiber) body(c *fiberCoroutine) {
	g := gls.Current()
	g.Store(c)

	defer func() {
		if v := recover(); v != nil {
			c.perr = newPanicError(c.name, v)
		}
		g.Clear()
		c.setState(Finished)
		f.workers.Add(-1)
		f.finished(&c.coroutine)
	}()

	c.fn(c.data)
}

// Run switches to the coroutine until it yields or returns.
func (f *Fiber) Run(h Handle) bool {
	c := f.lookup("Run", h)
	c.checkRun()
	c.setState(Running)

	if _, ok := c.next(); ok {
		return true
	}
	if c.perr != nil {
		panic(c.perr)
	}
	return false
}

// Yield switches back to the driver of the coroutine running on the calling
// goroutine.
func (f *Fiber) Yield() {
	current("Yield").yield()
}

func (c *fiberCoroutine) yield() {
	c.yields.Add(1)
	c.setState(Suspended)
	if !c.suspend(struct{}{}) {
		// stop is only called on coroutines that are not suspended.
		panic(c.violation("Yield", "coroutine was stopped while suspended"))
	}
	c.setState(Running)
}

// Destroy releases the runtime coroutine and the handle.
func (f *Fiber) Destroy(h Handle) {
	c := f.lookup("Destroy", h)
	switch c.State() {
	case Created:
		c.stop()
		f.workers.Add(-1)
	case Finished:
		// The runtime coroutine is gone already.
	default:
		panic(c.violation("Destroy", "coroutine has not finished"))
	}
	f.remove(h)
}
