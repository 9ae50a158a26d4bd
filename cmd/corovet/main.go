// Command corovet reports coroutine yields that can never be legal.
//
// USAGE:
//
//	corovet [FLAGS] [PACKAGES]
//
// It can also run as a vet tool: go vet -vettool=$(which corovet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/stealthrocket/coro/analysis/yieldcheck"
)

func main() { singlechecker.Main(yieldcheck.Analyzer) }
