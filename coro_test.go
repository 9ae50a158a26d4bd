package coro

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/coro/internal/gls"
)

type backend interface {
	Interface
	Inspector
}

var testBackends = []struct {
	name string
	new  func(...Option) backend
}{
	{"threadpair", func(opts ...Option) backend { return NewThreadPair(opts...) }},
	{"fiber", func(opts ...Option) backend { return NewFiber(opts...) }},
}

func forEachBackend(t *testing.T, test func(*testing.T, backend)) {
	for _, b := range testBackends {
		t.Run(b.name, func(t *testing.T) { test(t, b.new()) })
	}
}

func catch(f func()) (v any) {
	defer func() { v = recover() }()
	f()
	return nil
}

func expectViolation(t *testing.T, op string, f func()) {
	t.Helper()
	v := catch(f)
	err, ok := v.(*ContractError)
	if !ok {
		t.Fatalf("%s: expected a *ContractError panic, got %T (%v)", op, v, v)
	}
	if err.Op != op {
		t.Errorf("wrong operation in contract error: want=%s got=%s (%v)", op, err.Op, err)
	}
}

func expectReleased(t *testing.T, b backend) {
	t.Helper()
	s := b.Stats()
	if s.Live != 0 || s.Workers != 0 {
		t.Errorf("resources leaked: %+v", s)
	}
	if s.Created != s.Destroyed {
		t.Errorf("created and destroyed counts differ: %+v", s)
	}
	if infos := b.Inspect(); len(infos) != 0 {
		t.Errorf("coroutines still listed: %+v", infos)
	}
}

func TestYieldCount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		for _, n := range []int{0, 1, 2, 10, 100} {
			h, err := b.Create(func(any) {
				for i := 0; i < n; i++ {
					Yield()
				}
			}, fmt.Sprintf("yield-%d", n), nil)
			if err != nil {
				t.Fatal(err)
			}

			trues := 0
			for b.Run(h) {
				trues++
			}
			if trues != n {
				t.Errorf("Run returned true %d times for %d yields", trues, n)
			}
			expectViolation(t, "Run", func() { b.Run(h) })
			b.Destroy(h)
		}
		expectReleased(t, b)
	})
}

func TestStrictAlternation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		var active atomic.Int32
		enter := func(who string) {
			if n := active.Add(1); n != 1 {
				t.Errorf("%s running while %d other side(s) are running", who, n-1)
			}
		}
		leave := func() { active.Add(-1) }

		work := func(who string) {
			enter(who)
			for i := 0; i < 100; i++ {
				_ = rand.Int()
			}
			leave()
		}

		h, err := b.Create(func(any) {
			for i := 0; i < 50; i++ {
				work("coroutine")
				Yield()
			}
			work("coroutine")
		}, "alternation", nil)
		if err != nil {
			t.Fatal(err)
		}

		for b.Run(h) {
			work("driver")
		}
		b.Destroy(h)
	})
}

func TestInterleaving(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		var trace []string

		h, err := b.Create(func(any) {
			trace = append(trace, "body:start")
			for i := 0; i < 2; i++ {
				trace = append(trace, fmt.Sprintf("body:yield %d", i))
				b.Yield()
			}
			trace = append(trace, "body:return")
		}, "trace", nil)
		if err != nil {
			t.Fatal(err)
		}

		trace = append(trace, "driver:created")
		for b.Run(h) {
			trace = append(trace, "driver:frame")
		}
		trace = append(trace, "driver:finished")
		b.Destroy(h)

		want := []string{
			"driver:created",
			"body:start",
			"body:yield 0",
			"driver:frame",
			"body:yield 1",
			"driver:frame",
			"body:return",
			"driver:finished",
		}
		if diff := cmp.Diff(want, trace); diff != "" {
			t.Errorf("unexpected interleaving (-want +got):\n%s", diff)
		}
	})
}

func TestDataThreading(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		type payload struct{ frames int }
		data := &payload{}

		var seen any
		h, err := b.Create(func(v any) {
			seen = v
			p := v.(*payload)
			for p.frames < 3 {
				Yield()
			}
		}, "data", data)
		if err != nil {
			t.Fatal(err)
		}

		for b.Run(h) {
			data.frames++
		}
		b.Destroy(h)

		if seen != any(data) {
			t.Errorf("coroutine received a different value: want=%p got=%v", data, seen)
		}
		if data.frames != 3 {
			t.Errorf("wrong frame count: want=3 got=%d", data.frames)
		}
	})
}

func TestCreateDoesNotRun(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		called := false
		h, err := b.Create(func(any) { called = true }, "lazy", nil)
		if err != nil {
			t.Fatal(err)
		}
		if called {
			t.Fatal("Create ran the main function")
		}
		if infos := b.Inspect(); len(infos) != 1 || infos[0].State != Created {
			t.Fatalf("unexpected inspection: %+v", infos)
		}

		b.Destroy(h)
		if called {
			t.Error("Destroy ran the main function")
		}
		expectReleased(t, b)
	})
}

func TestCreateErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		h, err := b.Create(nil, "nil", nil)
		if !errors.Is(err, ErrNilFunc) {
			t.Errorf("expected ErrNilFunc, got %v", err)
		}
		if h != NoHandle {
			t.Errorf("expected no handle, got %s", h)
		}
		expectReleased(t, b)
	})
}

func TestLimit(t *testing.T) {
	for _, tb := range testBackends {
		t.Run(tb.name, func(t *testing.T) {
			b := tb.new(WithLimit(2))

			var handles []Handle
			for i := 0; i < 2; i++ {
				h, err := b.Create(func(any) {}, fmt.Sprint(i), nil)
				if err != nil {
					t.Fatal(err)
				}
				handles = append(handles, h)
			}

			h, err := b.Create(func(any) {}, "extra", nil)
			if !errors.Is(err, ErrExhausted) {
				t.Fatalf("expected ErrExhausted, got %v", err)
			}
			if h.Valid() {
				t.Errorf("expected no handle, got %s", h)
			}

			b.Destroy(handles[0])
			h, err = b.Create(func(any) {}, "again", nil)
			if err != nil {
				t.Fatalf("Create failed after releasing a slot: %v", err)
			}
			handles = append(handles[1:], h)

			for _, h := range handles {
				if b.Run(h) {
					t.Errorf("%s did not finish", h)
				}
				b.Destroy(h)
			}
			expectReleased(t, b)
		})
	}
}

func TestContractViolations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		expectViolation(t, "Yield", func() { b.Yield() })
		expectViolation(t, "Yield", func() { Yield() })
		expectViolation(t, "Run", func() { b.Run(NoHandle) })

		h, err := b.Create(func(any) { Yield() }, "suspended", nil)
		if err != nil {
			t.Fatal(err)
		}
		if !b.Run(h) {
			t.Fatal("coroutine finished early")
		}
		expectViolation(t, "Destroy", func() { b.Destroy(h) })

		if b.Run(h) {
			t.Fatal("coroutine did not finish")
		}
		b.Destroy(h)
		expectViolation(t, "Run", func() { b.Run(h) })
		expectViolation(t, "Destroy", func() { b.Destroy(h) })

		var reentrant Handle
		var inner any
		reentrant, err = b.Create(func(v any) {
			inner = catch(func() { b.Run(*v.(*Handle)) })
		}, "reentrant", &reentrant)
		if err != nil {
			t.Fatal(err)
		}
		b.Run(reentrant)
		b.Destroy(reentrant)
		if e, ok := inner.(*ContractError); !ok || e.Op != "Run" {
			t.Errorf("expected a Run contract violation from inside the coroutine, got %v", inner)
		}
		expectReleased(t, b)
	})
}

func TestStaleHandle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		h1, _ := b.Create(func(any) {}, "first", nil)
		b.Destroy(h1)
		h2, _ := b.Create(func(any) {}, "second", nil)
		defer b.Destroy(h2)

		if h1 == h2 {
			t.Fatalf("handle %s was reused", h1)
		}
		expectViolation(t, "Run", func() { b.Run(h1) })
	})
}

func TestPanicPropagation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		errBoom := errors.New("boom")
		h, err := b.Create(func(any) {
			Yield()
			panic(errBoom)
		}, "panicky", nil)
		if err != nil {
			t.Fatal(err)
		}
		if !b.Run(h) {
			t.Fatal("coroutine finished early")
		}

		v := catch(func() { b.Run(h) })
		perr, ok := v.(*PanicError)
		if !ok {
			t.Fatalf("expected a *PanicError, got %T (%v)", v, v)
		}
		if !errors.Is(perr, errBoom) {
			t.Errorf("panic does not unwrap to the original error: %v", perr)
		}
		if perr.Name != "panicky" {
			t.Errorf("wrong coroutine name: %q", perr.Name)
		}
		if len(perr.Stack) == 0 {
			t.Error("missing stack")
		}

		b.Destroy(h)
		expectReleased(t, b)
		if n := gls.Len(); n != 0 {
			t.Errorf("goroutine local storage not cleared: %d entries", n)
		}
	})
}

func TestGoexitPropagation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		h, err := b.Create(func(any) {
			Yield()
			runtime.Goexit()
		}, "goexit", nil)
		if err != nil {
			t.Fatal(err)
		}

		reached := make(chan bool, 1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			b.Run(h)
			b.Run(h)
			reached <- true
		}()
		<-done

		select {
		case <-reached:
			t.Error("driver kept running after the coroutine called runtime.Goexit")
		default:
		}
		b.Destroy(h)
		expectReleased(t, b)
	})
}

func TestNested(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		var trace []string

		h, err := b.Create(func(any) {
			inner, err := b.Create(func(any) {
				trace = append(trace, "inner 1")
				Yield()
				trace = append(trace, "inner 2")
			}, "inner", nil)
			if err != nil {
				panic(err)
			}
			for b.Run(inner) {
				trace = append(trace, "outer")
				Yield()
			}
			b.Destroy(inner)
		}, "outer", nil)
		if err != nil {
			t.Fatal(err)
		}

		for b.Run(h) {
			trace = append(trace, "main")
		}
		b.Destroy(h)

		want := []string{"inner 1", "outer", "main", "inner 2"}
		if diff := cmp.Diff(want, trace); diff != "" {
			t.Errorf("unexpected trace (-want +got):\n%s", diff)
		}
		expectReleased(t, b)
	})
}

func TestIndependence(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		const coroutines = 8
		const yields = 200

		var group errgroup.Group
		for i := 0; i < coroutines; i++ {
			group.Go(func() error {
				count := 0
				h, err := b.Create(func(v any) {
					n := v.(*int)
					for j := 0; j < yields; j++ {
						*n++
						Yield()
					}
				}, fmt.Sprintf("driver-%d", i), &count)
				if err != nil {
					return err
				}
				runs := 0
				for b.Run(h) {
					runs++
					if runs != count {
						return fmt.Errorf("coroutine %d: %d runs but %d steps", i, runs, count)
					}
				}
				b.Destroy(h)
				if count != yields {
					return fmt.Errorf("coroutine %d: %d steps", i, count)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			t.Fatal(err)
		}
		expectReleased(t, b)
	})
}

func TestInspect(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		names := []string{"a", "b", "c"}
		handles := make([]Handle, len(names))
		for i, name := range names {
			h, err := b.Create(func(any) { Yield() }, name, nil)
			if err != nil {
				t.Fatal(err)
			}
			handles[i] = h
		}
		b.Run(handles[1])
		b.Run(handles[2])
		b.Run(handles[2])

		want := []Info{
			{Handle: handles[0], Name: "a", State: Created},
			{Handle: handles[1], Name: "b", State: Suspended, Yields: 1},
			{Handle: handles[2], Name: "c", State: Finished, Yields: 1},
		}
		if diff := cmp.Diff(want, b.Inspect()); diff != "" {
			t.Errorf("unexpected inspection (-want +got):\n%s", diff)
		}

		b.Run(handles[1])
		for _, h := range handles {
			b.Destroy(h)
		}
		expectReleased(t, b)
	})
}

func TestDrive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		frames := 0
		finished, err := Go(b, func(any) {
			for i := 0; i < 5; i++ {
				Yield()
			}
		}, "drive", nil, func() bool {
			frames++
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if !finished || frames != 5 {
			t.Errorf("unexpected result: finished=%v frames=%d", finished, frames)
		}

		stop := false
		h, _ := b.Create(func(any) {
			for !stop {
				Yield()
			}
		}, "endless", nil)
		if Drive(b, h, func() bool { return false }) {
			t.Error("Drive reported an endless coroutine as finished")
		}
		if s := b.Inspect(); len(s) != 1 || s[0].State != Suspended {
			t.Errorf("unexpected inspection after stopping: %+v", s)
		}
		stop = true
		if b.Run(h) {
			t.Error("coroutine kept running after being told to stop")
		}
		b.Destroy(h)

		h, _ = b.Create(func(any) { panic("oops") }, "panics", nil)
		if _, ok := catch(func() { Drive(b, h, nil) }).(*PanicError); !ok {
			t.Error("Drive did not propagate the panic")
		}
		expectReleased(t, b)
	})
}

func TestBackendsByName(t *testing.T) {
	for _, name := range Backends() {
		if _, err := New(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := New("ucontext"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
	if i, err := New(""); err != nil || i == nil {
		t.Errorf("default backend: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	registryMutex.Lock()
	saved := registry
	registry = nil
	registryMutex.Unlock()
	defer func() {
		registryMutex.Lock()
		registry = saved
		registryMutex.Unlock()
	}()

	tp := NewThreadPair()
	Register(tp)
	if Registered() != Interface(tp) {
		t.Error("Registered did not return the registered interface")
	}
	if v := catch(func() { Register(NewFiber()) }); v == nil {
		t.Error("registering twice did not panic")
	}

	registryMutex.Lock()
	registry = nil
	registryMutex.Unlock()
	if Registered() == nil {
		t.Error("Registered did not fall back to the default backend")
	}
}

func TestHandleString(t *testing.T) {
	for _, test := range []struct {
		handle Handle
		want   string
	}{
		{NoHandle, "coro(nil)"},
		{makeHandle(0, 1), "coro(0.1)"},
		{makeHandle(7, 3), "coro(7.3)"},
	} {
		if got := test.handle.String(); got != test.want {
			t.Errorf("wrong string: want=%s got=%s", test.want, got)
		}
	}
}
