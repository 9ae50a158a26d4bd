//go:build !corofiber

package coro

// DefaultBackend is the name of the backend returned by Default.
const DefaultBackend = "threadpair"

// Default returns a ready to use implementation of Interface. Unless the
// program is built with the corofiber tag, it is a ThreadPair.
func Default(opts ...Option) Interface {
	return NewThreadPair(opts...)
}
