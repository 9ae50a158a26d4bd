package engine

import (
	"fmt"
	"log/slog"
)

// Context is given to test functions. Its methods must only be called from
// the test function, which runs as a coroutine; state is shared with the
// engine without locks since the two never run at the same time.
type Context struct {
	engine  *Engine
	name    string
	logger  *slog.Logger
	frames  int
	errors  []string
	stopped bool
	timeout bool
}

// Name returns the name the test was registered with.
func (c *Context) Name() string { return c.name }

// Logger returns a logger annotated with the test name.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Frame returns the number of frames the test has been running for. It is 1
// until the first call to Yield.
func (c *Context) Frame() int { return c.frames }

// Yield suspends the test until the next host frame.
func (c *Context) Yield() {
	c.engine.coro.Yield()
}

// YieldFrames suspends the test for n host frames.
func (c *Context) YieldFrames(n int) {
	for i := 0; i < n; i++ {
		c.Yield()
	}
}

// YieldUntil yields until cond returns true or the test is asked to stop.
// It reports whether cond was satisfied.
func (c *Context) YieldUntil(cond func() bool) bool {
	for !cond() {
		if c.stopped {
			return false
		}
		c.Yield()
	}
	return true
}

// Errorf records a failure. The test keeps running.
func (c *Context) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.errors = append(c.errors, msg)
	c.logger.Warn("test error", "error", msg, "frame", c.frames)
}

// Check records a failure if cond is false, and returns cond.
func (c *Context) Check(cond bool, format string, args ...any) bool {
	if !cond {
		c.Errorf(format, args...)
	}
	return cond
}

// Failed reports whether the test has recorded a failure.
func (c *Context) Failed() bool { return len(c.errors) > 0 }

// Stopped reports whether the engine asked the test to stop, because of a
// call to Engine.Stop or because the frame budget is exhausted. Tests
// should return promptly once it is true.
func (c *Context) Stopped() bool { return c.stopped }
