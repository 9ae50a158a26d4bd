package coro

import (
	"fmt"

	"github.com/stealthrocket/coro/internal/gls"
)

// Func is the entry point of a coroutine. The data value given to Create is
// passed through unmodified.
type Func func(data any)

// Handle identifies a coroutine created by an Interface implementation. The
// zero value is NoHandle and never refers to a live coroutine.
//
// A handle is valid from the Create call that returned it until Destroy
// consumes it. Handles are never reused: a destroyed handle does not alias a
// coroutine created later.
type Handle uint64

// NoHandle is the null handle returned when Create fails.
const NoHandle Handle = 0

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

func (h Handle) index() uint32 { return uint32(h) }

func (h Handle) gen() uint32 { return uint32(h >> 32) }

// Valid reports whether h may refer to a coroutine. It does not tell whether
// the coroutine still exists.
func (h Handle) Valid() bool { return h.gen() != 0 }

func (h Handle) String() string {
	if !h.Valid() {
		return "coro(nil)"
	}
	return fmt.Sprintf("coro(%d.%d)", h.index(), h.gen())
}

// State is the lifecycle state of a coroutine.
type State int32

const (
	// Created coroutines have not run any code yet.
	Created State = iota
	// Running coroutines own the execution turn; their driver is blocked in
	// Run.
	Running
	// Suspended coroutines are blocked in Yield, waiting for the next Run.
	Suspended
	// Finished coroutines returned from their main function. Destroy is the
	// only operation allowed on them.
	Finished
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Interface is the coroutine capability table. Code driving coroutines only
// ever goes through an Interface, which allows swapping the backend without
// changing the callers.
//
// Coroutines are used like this:
//
//	h, err := i.Create(fn, "name", data)
//	if err != nil {
//		return err
//	}
//	for i.Run(h) {
//		// do other stuff, for example render a frame
//	}
//	i.Destroy(h)
//
// The coroutine body calls Yield whenever it wants to give control back to
// its driver. The driver and the body never execute at the same time.
type Interface interface {
	// Create allocates a coroutine that will run fn(data). The function does
	// not start executing until the first call to Run. The name is only used
	// for diagnostics.
	Create(fn Func, name string, data any) (Handle, error)

	// Destroy releases the resources of a coroutine. The coroutine must have
	// finished (Run returned false) or never have been run.
	Destroy(h Handle)

	// Run resumes the coroutine until it yields, returning true, or until its
	// main function returns, returning false. A panic in the coroutine body
	// is raised again from Run as a *PanicError.
	Run(h Handle) bool

	// Yield suspends the coroutine running on the calling goroutine and gives
	// control back to its driver. It returns when the driver calls Run again.
	Yield()
}

// Info describes a live coroutine, for debugging and inspection tools.
type Info struct {
	Handle Handle
	Name   string
	State  State
	Yields int64
}

// Stats counts backend resources. Live and Workers drop back to zero once
// every coroutine has been destroyed.
type Stats struct {
	// Created is the number of successful Create calls.
	Created int64
	// Destroyed is the number of Destroy calls.
	Destroyed int64
	// Live is the number of handles not destroyed yet.
	Live int64
	// Workers is the number of goroutines powering coroutines that have not
	// exited yet.
	Workers int64
}

// Inspector is implemented by backends able to report on their coroutines.
type Inspector interface {
	Inspect() []Info
	Stats() Stats
}

// yielder is stored in goroutine local storage by backends for the goroutine
// executing a coroutine body.
type yielder interface {
	yield()
}

// Yield suspends the coroutine running on the calling goroutine, whichever
// backend created it.
//
// The function panics when called on a stack where no coroutine is running.
func Yield() {
	current("Yield").yield()
}

// InCoroutine reports whether the calling goroutine is executing a coroutine
// body.
func InCoroutine() bool {
	_, ok := gls.Current().Load().(yielder)
	return ok
}

func current(op string) yielder {
	y, ok := gls.Current().Load().(yielder)
	if !ok {
		panic(&ContractError{Op: op, Reason: "not called from a coroutine stack"})
	}
	return y
}
