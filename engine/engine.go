// Package engine runs test scripts inside the main loop of an interactive
// application. Each test runs as a coroutine that the host advances by one
// step per frame, so a script can wait for frames to be rendered between its
// actions without ever blocking the host loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/coro"
)

// ErrHostExited is returned by RunAll when the goroutine running a host loop
// exits without Run returning, which happens when a test calls
// runtime.Goexit.
var ErrHostExited = errors.New("host loop exited")

// Func is the body of a test.
type Func func(*Context)

type test struct {
	name string
	fn   Func
}

// Engine queues tests and runs them one at a time, one step per call to
// Frame. An Engine must be driven by a single goroutine.
type Engine struct {
	coro   coro.Interface
	logger *slog.Logger
	budget int
	hook   func(frame int64)

	frame    int64
	queue    []test
	current  *Context
	handle   coro.Handle
	stopping bool
	exited   bool
	results  []Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine and of its test contexts.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithFrameBudget limits the number of frames a test may run for. Past the
// budget the test is asked to stop and is reported as failed. Zero means no
// limit.
func WithFrameBudget(frames int) Option {
	return func(e *Engine) { e.budget = frames }
}

// WithFrameHook sets a function called at the start of every frame, before
// the current test is resumed. It stands for the work the host does every
// frame, rendering for example.
func WithFrameHook(hook func(frame int64)) Option {
	return func(e *Engine) { e.hook = hook }
}

// New returns an engine running tests as coroutines created with c.
func New(c coro.Interface, options ...Option) *Engine {
	e := &Engine{
		coro:   c,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Register queues a test. Tests run in registration order.
func (e *Engine) Register(name string, fn Func) {
	if e.stopping {
		e.results = append(e.results, Result{Name: name, Status: Aborted})
		return
	}
	e.queue = append(e.queue, test{name: name, fn: fn})
}

// Pending returns the number of tests waiting to start.
func (e *Engine) Pending() int { return len(e.queue) }

// Current returns the name of the running test, or the empty string.
func (e *Engine) Current() string {
	if e.current == nil {
		return ""
	}
	return e.current.name
}

// Results returns the results of the completed tests, in completion order.
func (e *Engine) Results() []Result { return e.results }

// Frames returns the number of calls to Frame.
func (e *Engine) Frames() int64 { return e.frame }

// Stop asks the running test to stop and aborts the queued ones. The
// running test keeps being resumed by Frame until it returns.
func (e *Engine) Stop() {
	if e.stopping {
		return
	}
	e.stopping = true
	if e.current != nil {
		e.current.stopped = true
	}
	for _, t := range e.queue {
		e.results = append(e.results, Result{Name: t.name, Status: Aborted})
	}
	e.queue = nil
	e.logger.Info("engine stopping")
}

// Frame advances the engine by one frame: it starts the next test if none
// is running, then resumes the running test until it yields or returns.
// Frame returns false once there is nothing left to run.
func (e *Engine) Frame() bool {
	e.frame++
	if e.hook != nil {
		e.hook(e.frame)
	}
	for e.current == nil {
		if len(e.queue) == 0 {
			return false
		}
		e.start()
	}
	e.step()
	return e.current != nil || len(e.queue) > 0
}

func (e *Engine) start() {
	t := e.queue[0]
	e.queue = e.queue[1:]

	c := &Context{
		engine: e,
		name:   t.name,
		logger: e.logger.With("test", t.name),
	}
	h, err := e.coro.Create(func(data any) {
		t.fn(data.(*Context))
	}, t.name, c)
	if err != nil {
		e.logger.Error("cannot start test", "test", t.name, "error", err)
		e.results = append(e.results, Result{
			Name:   t.name,
			Status: Failed,
			Errors: []string{err.Error()},
		})
		return
	}
	c.logger.Debug("test started", "frame", e.frame)
	e.current, e.handle = c, h
}

func (e *Engine) step() {
	c := e.current
	c.frames++
	if e.budget > 0 && c.frames > e.budget && !c.timeout {
		c.timeout = true
		c.stopped = true
		c.errors = append(c.errors, fmt.Sprintf("frame budget of %d frames exceeded", e.budget))
	}

	if e.run() {
		return
	}
	e.coro.Destroy(e.handle)
	e.current, e.handle = nil, coro.NoHandle

	r := Result{Name: c.name, Frames: c.frames, Errors: c.errors}
	switch {
	case len(c.errors) > 0:
		r.Status = Failed
	case e.stopping:
		r.Status = Aborted
	default:
		r.Status = Passed
	}
	e.results = append(e.results, r)
	c.logger.Info("test finished", "status", r.Status, "frames", r.Frames)
}

// run resumes the current test, turning a panic into a test failure.
//
// A test calling runtime.Goexit finishes its coroutine and the backend
// re-raises the Goexit on the calling goroutine, which cannot be stopped.
// The test is recorded as failed and the queued tests as aborted before the
// host goroutine unwinds.
func (e *Engine) run() (yielded bool) {
	returned := false
	defer func() {
		if returned {
			return
		}
		v := recover()
		if v == nil {
			e.goexit()
			return
		}
		perr, ok := v.(*coro.PanicError)
		if !ok {
			panic(v)
		}
		e.current.errors = append(e.current.errors, "panic: "+perr.Error())
		e.current.logger.Error("test panicked", "panic", perr.Value, "stack", string(perr.Stack))
		yielded = false
	}()
	yielded = e.coro.Run(e.handle)
	returned = true
	return yielded
}

func (e *Engine) goexit() {
	c := e.current
	c.errors = append(c.errors, "test called runtime.Goexit")
	e.coro.Destroy(e.handle)
	e.current, e.handle = nil, coro.NoHandle
	e.results = append(e.results, Result{
		Name:   c.name,
		Status: Failed,
		Frames: c.frames,
		Errors: c.errors,
	})
	c.logger.Error("test called runtime.Goexit", "frames", c.frames)
	e.Stop()
}

// Run calls Frame until all tests have completed or ctx is canceled. On
// cancellation the engine is stopped and the running test is driven until
// it returns; Run then returns the context error.
//
// If the calling goroutine exits while in Run, RunAll reports the engine
// with ErrHostExited.
func (e *Engine) Run(ctx context.Context) error {
	returned := false
	defer func() { e.exited = !returned }()
	err := e.loop(ctx)
	returned = true
	return err
}

func (e *Engine) loop(ctx context.Context) error {
	for e.Frame() {
		if ctx.Err() != nil {
			e.Stop()
			for e.Frame() {
			}
			return ctx.Err()
		}
	}
	return nil
}

// RunAll runs several engines concurrently, each in its own host loop. The
// engines share nothing, so their tests progress independently. The first
// error cancels the other loops. Host loops whose goroutine exited are
// reported with ErrHostExited.
func RunAll(ctx context.Context, engines ...*Engine) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, e := range engines {
		group.Go(func() error { return e.Run(ctx) })
	}
	err := group.Wait()
	for i, e := range engines {
		if e.exited {
			err = errors.Join(err, fmt.Errorf("host %d: %w", i, ErrHostExited))
		}
	}
	return err
}
