package coro

// Drive runs the coroutine h until it finishes and destroys it, calling
// frame each time the coroutine yields. This is the driver loop most callers
// need:
//
//	for i.Run(h) {
//		frame()
//	}
//	i.Destroy(h)
//
// If frame returns false, Drive stops and returns false, leaving the
// coroutine suspended and owned by the caller. If the coroutine panics, it
// is destroyed and the panic propagates.
func Drive(i Interface, h Handle, frame func() bool) bool {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(*PanicError); ok {
				i.Destroy(h)
			}
			panic(v)
		}
	}()

	for i.Run(h) {
		if frame != nil && !frame() {
			return false
		}
	}
	i.Destroy(h)
	return true
}

// Go creates a coroutine with i and drives it to completion with Drive.
func Go(i Interface, fn Func, name string, data any, frame func() bool) (bool, error) {
	h, err := i.Create(fn, name, data)
	if err != nil {
		return false, err
	}
	return Drive(i, h, frame), nil
}
