package coro

import (
	"fmt"
	"runtime"

	"github.com/stealthrocket/coro/internal/gls"
)

// turn is the token exchanged between a driver and its coroutine. Whoever
// receives the token addressed to it owns the execution turn until it sends
// the other token back.
type turn uint8

const (
	driverTurn turn = iota + 1
	coroutineTurn
)

func (t turn) String() string {
	switch t {
	case driverTurn:
		return "driver"
	case coroutineTurn:
		return "coroutine"
	default:
		return fmt.Sprintf("turn(%d)", uint8(t))
	}
}

func expectTurn(got, want turn) {
	if got != want {
		panic(fmt.Sprintf("coro: %s received the %s turn", want, got))
	}
}

// ThreadPair implements Interface by pairing every coroutine with a
// dedicated goroutine. The driver and the coroutine goroutine hand a turn
// token back and forth over an unbuffered channel, so at any time one of
// them runs and the other is blocked: coroutine semantics without coroutine
// primitives.
//
// The coroutine goroutine keeps its stack while blocked, which is what
// preserves local state across calls to Yield.
type ThreadPair struct {
	table[*threadPairCoroutine]
}

type threadPairCoroutine struct {
	coroutine
	// next is the rendezvous channel. It is closed by the coroutine goroutine
	// when the main function returns, or by Destroy if the coroutine never
	// ran.
	next chan turn
	// exited is closed when the coroutine goroutine is gone.
	exited chan struct{}
}

var (
	_ Interface = (*ThreadPair)(nil)
	_ Inspector = (*ThreadPair)(nil)
)

// NewThreadPair returns a backend running each coroutine on its own
// goroutine.
func NewThreadPair(opts ...Option) *ThreadPair {
	return &ThreadPair{table: table[*threadPairCoroutine]{options: makeOptions(opts)}}
}

// Create spawns the goroutine of a new coroutine. The goroutine blocks
// before running fn until the first call to Run.
func (p *ThreadPair) Create(fn Func, name string, data any) (Handle, error) {
	if err := p.reserve(fn, name); err != nil {
		return NoHandle, err
	}
	c := &threadPairCoroutine{
		coroutine: coroutine{name: name, fn: fn, data: data},
		next:      make(chan turn),
		exited:    make(chan struct{}),
	}
	h := p.insert(c)
	p.workers.Add(1)
	go p.work(c)
	return h, nil
}

func (p *ThreadPair) work(c *threadPairCoroutine) {
	defer func() {
		p.workers.Add(-1)
		close(c.exited)
	}()

	t, ok := <-c.next
	if !ok {
		return // destroyed before the first run
	}
	expectTurn(t, coroutineTurn)

	g := gls.Current()
	g.Store(c)

	returned := false
	defer func() {
		if v := recover(); v != nil {
			c.perr = newPanicError(c.name, v)
		} else if !returned {
			c.goexit = true
		}
		g.Clear()
		c.setState(Finished)
		p.finished(&c.coroutine)
		close(c.next)
	}()

	c.fn(c.data)
	returned = true
}

// Run hands the turn to the coroutine and blocks until it comes back.
func (p *ThreadPair) Run(h Handle) bool {
	c := p.lookup("Run", h)
	c.checkRun()
	c.setState(Running)

	c.next <- coroutineTurn
	t, ok := <-c.next
	if ok {
		expectTurn(t, driverTurn)
		return true
	}

	switch {
	case c.perr != nil:
		panic(c.perr)
	case c.goexit:
		runtime.Goexit()
	}
	return false
}

// Yield hands the turn back to the driver of the coroutine running on the
// calling goroutine.
func (p *ThreadPair) Yield() {
	current("Yield").yield()
}

func (c *threadPairCoroutine) yield() {
	c.yields.Add(1)
	c.setState(Suspended)
	c.next <- driverTurn
	expectTurn(<-c.next, coroutineTurn)
	c.setState(Running)
}

// Destroy waits for the coroutine goroutine to exit and releases the handle.
func (p *ThreadPair) Destroy(h Handle) {
	c := p.lookup("Destroy", h)
	switch c.State() {
	case Created:
		close(c.next)
	case Finished:
	default:
		panic(c.violation("Destroy", "coroutine has not finished"))
	}
	<-c.exited
	p.remove(h)
}
