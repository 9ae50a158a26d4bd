// coroframe simulates the main loop of an interactive application driving
// scripted tests, one coroutine step per frame.
//
// Usage:
//
//	coroframe run scenario.yaml               # Run the tests of a scenario
//	coroframe run --hosts 4 scenario.yaml     # Run 4 independent host loops
//	coroframe run --backend fiber --dump      # Built-in demo on the fiber backend
//	coroframe backends                        # List coroutine backends
package main

import (
	"os"

	"github.com/stealthrocket/coro/cmd/coroframe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
