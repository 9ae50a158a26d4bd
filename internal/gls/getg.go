package gls

import (
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// getg returns the id of the calling goroutine, read from the header line
// of its stack trace ("goroutine 42 [running]:").
//
// The runtime does not export goroutine ids; the header format has been
// stable since Go 1.0.
func getg() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	if len(b) < len(goroutinePrefix) {
		panic("gls: malformed goroutine header")
	}
	b = b[len(goroutinePrefix):]
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		panic("gls: malformed goroutine header: " + err.Error())
	}
	return id
}
