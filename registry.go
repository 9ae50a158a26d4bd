package coro

import "sync"

var (
	registryMutex sync.Mutex
	registry      Interface
)

// Register installs the process wide coroutine implementation returned by
// Registered. It must be called at most once, before any coroutine is
// created through Registered.
//
// Components that create coroutines should accept an Interface explicitly
// instead; the registry exists for code that has no way to receive one.
func Register(i Interface) {
	if i == nil {
		panic("coro.Register: nil interface")
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if registry != nil {
		panic("coro.Register: an interface is already registered")
	}
	registry = i
}

// Registered returns the process wide coroutine implementation. When none
// was registered, the one returned by Default is installed and returned.
func Registered() Interface {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if registry == nil {
		registry = Default()
	}
	return registry
}
