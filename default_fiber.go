//go:build corofiber

package coro

// DefaultBackend is the name of the backend returned by Default.
const DefaultBackend = "fiber"

// Default returns a ready to use implementation of Interface. Programs built
// with the corofiber tag get a Fiber.
func Default(opts ...Option) Interface {
	return NewFiber(opts...)
}
