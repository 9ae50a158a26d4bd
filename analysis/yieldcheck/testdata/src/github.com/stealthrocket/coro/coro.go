package coro

type Func func(data any)

type Handle uint64

type Interface interface {
	Create(fn Func, name string, data any) (Handle, error)
	Destroy(h Handle)
	Run(h Handle) bool
	Yield()
}

func Yield() {}

func Default() Interface { return nil }
