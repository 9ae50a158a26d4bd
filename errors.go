package coro

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrNilFunc is returned by Create when the main function is nil.
	ErrNilFunc = errors.New("coro: nil main function")

	// ErrExhausted is returned by Create when the backend cannot allocate
	// another coroutine.
	ErrExhausted = errors.New("coro: too many live coroutines")
)

// ContractError is the panic value raised when a coroutine operation is
// used in a way that breaks the lifecycle contract, for example destroying a
// suspended coroutine or yielding outside of a coroutine body. These are
// programming errors; there is nothing to recover.
type ContractError struct {
	Op     string
	Handle Handle
	Name   string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Handle == NoHandle {
		return fmt.Sprintf("coro.%s: %s", e.Op, e.Reason)
	}
	if e.Name == "" {
		return fmt.Sprintf("coro.%s(%s): %s", e.Op, e.Handle, e.Reason)
	}
	return fmt.Sprintf("coro.%s(%s %q): %s", e.Op, e.Handle, e.Name, e.Reason)
}

// PanicError carries a panic raised by a coroutine body to the goroutine
// that called Run.
type PanicError struct {
	// Name of the coroutine that panicked.
	Name string
	// Value passed to panic.
	Value any
	// Stack of the coroutine at the time of the panic.
	Stack []byte
}

func newPanicError(name string, v any) *PanicError {
	return &PanicError{
		Name:  name,
		Value: v,
		Stack: debug.Stack(),
	}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("%v", p.Value)
}

// ErrorWithStack returns the panic message followed by the coroutine stack.
func (p *PanicError) ErrorWithStack() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}
