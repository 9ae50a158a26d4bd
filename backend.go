package coro

import (
	"fmt"
	"sort"
)

var backends = map[string]func(...Option) Interface{
	"threadpair": func(opts ...Option) Interface { return NewThreadPair(opts...) },
	"fiber":      func(opts ...Option) Interface { return NewFiber(opts...) },
}

// Backends returns the names accepted by New.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the backend registered under name. The empty name selects
// the default backend.
func New(name string, opts ...Option) (Interface, error) {
	if name == "" {
		return Default(opts...), nil
	}
	newBackend, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("coro: unknown backend %q (known backends: %v)", name, Backends())
	}
	return newBackend(opts...), nil
}
