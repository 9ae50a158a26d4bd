// Package coro provides cooperative coroutines for code that has to run
// incrementally inside somebody else's loop, typically test scripts
// advancing one frame at a time inside the main loop of an interactive
// application.
//
// A coroutine is created with Interface.Create, resumed with Interface.Run
// until it yields or returns, and released with Interface.Destroy once it
// has finished. The body calls Yield to give control back to its driver; no
// handle is needed since the coroutine is found from the calling goroutine.
// The driver and the body never run at the same time, so data shared
// between them needs no locking.
//
// Two backends implement Interface. ThreadPair pairs each coroutine with a
// goroutine and alternates between the two with a turn token exchanged over
// a channel. Fiber uses the coroutines of the Go runtime. Default picks one
// at compile time: ThreadPair, or Fiber with the corofiber build tag.
//
// Breaking the lifecycle contract (destroying a suspended coroutine,
// running a finished one, yielding outside of a coroutine) panics with a
// *ContractError. A panic in a coroutine body is raised again from Run as a
// *PanicError.
package coro
