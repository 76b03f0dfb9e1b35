// Package driver ties the pipeline together: parse source, wrap it
// with the seven predefined primitive bindings, run the free-variable
// pass once over the whole tree, compile to an LLVM module whose entry
// point is `fix_program_main`, and hand the rendered IR to pkg/jit for
// execution. Grounded on the original top-level `runNative`/
// `compileToC` split in main.go, collapsed into one package since this
// compiler has only one backend (LLVM IR, not a C-or-interpret choice).
package driver

import (
	"fmt"
	"os"

	"github.com/llir/llvm/ir/types"

	"fixlang/pkg/ast"
	"fixlang/pkg/codegen"
	"fixlang/pkg/irgen"
	"fixlang/pkg/jit"
	"fixlang/pkg/layout"
	"fixlang/pkg/parser"
	"fixlang/pkg/primitives"
)

// primitiveBindings names every predefined operator and its
// constructor, in binding order. Order does not matter for scoping
// (each is a fresh outer `let`, and none references another), but a
// fixed order keeps generated IR deterministic across runs.
var primitiveBindings = []struct {
	name string
	ctor func() *ast.Expr
}{
	{"add", primitives.Add},
	{"eq", primitives.Eq},
	{"fix", primitives.Fix},
	{"newArray", primitives.NewArray},
	{"readArray", primitives.ReadArray},
	{"writeArray", primitives.WriteArray},
	{"writeArray!", primitives.WriteArrayUnique},
}

// wrapWithPrimitives builds `let add = <...> in let eq = <...> in ...
// in body`, innermost binding last so the user's program sees every
// primitive name in scope.
func wrapWithPrimitives(body *ast.Expr) *ast.Expr {
	result := body
	for i := len(primitiveBindings) - 1; i >= 0; i-- {
		b := primitiveBindings[i]
		result = ast.Let(b.name, b.ctor(), result)
	}
	return result
}

// Compile parses source, wraps it with the primitive bindings, and
// renders an LLVM module defining `fix_program_main() -> i64`. It does
// not invoke clang — callers that only need the IR text (the CLI's
// `-o` flag) can stop here.
func Compile(source string, sanitize bool) (string, error) {
	irText, _, err := CompileWithTrace(source, sanitize, nil)
	return irText, err
}

// CompileWithTrace is Compile plus an optional stage callback (-v),
// invoked after each of the four pipeline stages: parse, free-var
// pass, IR generation, module rendering. It also
// returns the retain/release counters irgen.Context accumulated while
// compiling, for the CLI's verbose summary.
func CompileWithTrace(source string, sanitize bool, trace func(stage string)) (string, irgen.Stats, error) {
	emit := trace
	if emit == nil {
		emit = func(string) {}
	}

	userExpr, err := parser.Parse(source)
	if err != nil {
		return "", irgen.Stats{}, fmt.Errorf("driver: %w", err)
	}
	emit("parse")

	program := wrapWithPrimitives(userExpr)
	ast.CalculateFreeVars(program)
	emit("free-vars")

	c := irgen.New("fixlang_program", sanitize)
	fn := c.Module().NewFunc("fix_program_main", types.I64)
	entry := fn.NewBlock("entry")
	c.Block = entry

	resultObj := codegen.GenerateExpr(c, program)
	payload := c.LoadField(resultObj, layout.IntObjType(), 1)
	c.Release(resultObj)
	c.Block.NewRet(payload)
	emit("irgen")

	irText := c.Module().String()
	emit("render")

	return irText, c.Stats(), nil
}

// RunSource compiles and JIT-executes an expression given as source
// text at the default optimization level, returning the program's
// int64 result.
func RunSource(source string, sanitize bool) (int64, error) {
	result, _, err := RunSourceWithTrace(source, sanitize, jit.OptDefault, nil)
	return result, err
}

// RunSourceWithTrace is RunSource plus an explicit backend optimization
// level and the same stage callback CompileWithTrace accepts, extended
// with a "clang" stage once the compiled module is handed off for
// linking and execution.
func RunSourceWithTrace(source string, sanitize bool, opt jit.OptLevel, trace func(stage string)) (int64, irgen.Stats, error) {
	irText, stats, err := CompileWithTrace(source, sanitize, trace)
	if err != nil {
		return 0, stats, err
	}
	compiled, err := jit.Get().Compile(irText, sanitize, opt)
	if err != nil {
		return 0, stats, fmt.Errorf("driver: %w", err)
	}
	defer compiled.Close()
	if trace != nil {
		trace("clang")
	}

	result := compiled.Run()
	if !result.Success {
		return 0, stats, fmt.Errorf("driver: execution failed: %s", result.Error)
	}
	return result.IntValue, stats, nil
}

// RunFile reads a source file and runs it exactly as RunSource would.
func RunFile(path string, sanitize bool) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("driver: %w", err)
	}
	return RunSource(string(data), sanitize)
}
