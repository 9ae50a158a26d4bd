// Package yieldcheck defines an Analyzer reporting coroutine yields placed
// in functions that never run as coroutine bodies.
//
// Yielding is only legal from the body of a coroutine. The functions where
// a program starts (main, init) and the functions the testing package calls
// (TestXxx, BenchmarkXxx, FuzzXxx) always run on a driver goroutine, so a
// call to Yield directly inside them is certain to panic. Calls nested in
// function literals are not reported since the literal may well be a
// coroutine body.
package yieldcheck

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

const (
	coroPackage   = "github.com/stealthrocket/coro"
	enginePackage = "github.com/stealthrocket/coro/engine"
)

const doc = `report coroutine yields outside of coroutine bodies

The yieldcheck analyzer reports calls to coro.Yield, coro.Interface.Yield and
the engine.Context yield methods made directly in main, init, or in test,
benchmark and fuzz functions. These functions never run as coroutines, so
the calls always panic.`

var Analyzer = &analysis.Analyzer{
	Name:     "yieldcheck",
	Doc:      doc,
	URL:      "https://pkg.go.dev/github.com/stealthrocket/coro/analysis/yieldcheck",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		decl := n.(*ast.FuncDecl)
		if decl.Body == nil {
			return
		}
		kind := driverKind(pass, decl)
		if kind == "" {
			return
		}
		ast.Inspect(decl.Body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.FuncLit:
				return false
			case *ast.CallExpr:
				if name := yieldName(pass.TypesInfo, n); name != "" {
					pass.Reportf(n.Pos(), "%s called in %s %s, which never runs as a coroutine", name, kind, decl.Name.Name)
				}
			}
			return true
		})
	})
	return nil, nil
}

// driverKind describes decl if it is a function that always runs on a
// driver goroutine, and returns the empty string otherwise.
func driverKind(pass *analysis.Pass, decl *ast.FuncDecl) string {
	if decl.Recv != nil {
		return ""
	}
	name := decl.Name.Name
	switch {
	case name == "init":
		return "package initializer"
	case name == "main" && pass.Pkg.Name() == "main":
		return "program entry point"
	}

	fn, ok := pass.TypesInfo.Defs[decl.Name].(*types.Func)
	if !ok {
		return ""
	}
	sig := fn.Type().(*types.Signature)
	if sig.Params().Len() != 1 || sig.Results().Len() != 0 {
		return ""
	}
	for _, prefix := range []struct{ name, param, kind string }{
		{"Test", "T", "test function"},
		{"Benchmark", "B", "benchmark function"},
		{"Fuzz", "F", "fuzz target"},
	} {
		if isTestName(name, prefix.name) && isTestingPointer(sig.Params().At(0).Type(), prefix.param) {
			return prefix.kind
		}
	}
	return ""
}

// isTestName applies the rule of the go tool: the prefix must not be
// followed by a lower case letter.
func isTestName(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	rest := name[len(prefix):]
	return rest == "" || !('a' <= rest[0] && rest[0] <= 'z')
}

func isTestingPointer(t types.Type, name string) bool {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	named, ok := ptr.Elem().(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "testing" && obj.Name() == name
}

// yieldName returns a printable name for the callee of call if it yields a
// coroutine.
func yieldName(info *types.Info, call *ast.CallExpr) string {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return ""
	}
	switch fn.Pkg().Path() {
	case coroPackage:
		if fn.Name() == "Yield" {
			return qualifiedName(fn)
		}
	case enginePackage:
		switch fn.Name() {
		case "Yield", "YieldFrames", "YieldUntil":
			if recvName(fn) == "Context" {
				return qualifiedName(fn)
			}
		}
	}
	return ""
}

func recvName(fn *types.Func) string {
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return ""
	}
	t := recv.Type()
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

func qualifiedName(fn *types.Func) string {
	if recv := recvName(fn); recv != "" {
		return fn.Pkg().Name() + "." + recv + "." + fn.Name()
	}
	return fn.Pkg().Name() + "." + fn.Name()
}
