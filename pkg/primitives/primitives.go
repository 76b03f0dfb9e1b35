// Package primitives builds the seven built-in operators the driver
// binds around every program: add, eq, fix and the four array
// operations. Each is an ast.Expr a program can
// apply just like a user-written lambda; their IR is hand-built rather
// than parsed, using the exact same closure-building and ownership
// rules pkg/codegen applies to ordinary lambdas.
package primitives

import (
	"strconv"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"fixlang/pkg/ast"
	"fixlang/pkg/irgen"
	"fixlang/pkg/layout"
)

// readConsuming looks up name and applies Rule R1: retain if another
// read follows later on this path, otherwise hand over the scope's own
// reference to the caller. Literal generators that read a value out of
// a captured or argument slot use this the same way generateVar does.
func readConsuming(c *irgen.Context, name string) value.Value {
	entry := c.Scope.Get(name)
	if entry.UsedLater() > 0 {
		c.Retain(entry.Value)
	}
	return entry.Value
}

// intPayload reads name's Int object, releases the box, and returns
// the raw i64 payload — the literal has consumed the boxed operand and
// only needs its scalar value.
func intPayload(c *irgen.Context, name string) value.Value {
	obj := readConsuming(c, name)
	ot := layout.IntObjType()
	payload := c.LoadField(obj, ot, 1)
	c.Release(obj)
	return payload
}

func boxInt(c *irgen.Context, label string, v value.Value) value.Value {
	ot := layout.IntObjType()
	obj := c.AllocateSharedObj(ot, label)
	c.SetField(obj, ot, 1, v)
	return obj
}

func boxBool(c *irgen.Context, label string, v value.Value) value.Value {
	ot := layout.BoolObjType()
	obj := c.AllocateSharedObj(ot, label)
	c.SetField(obj, ot, 1, v)
	return obj
}

// curried builds a curried lambda chain `\p1 -> \p2 -> ... -> body`
// where body is a literal whose Generator is gen, and whose declared
// free variables are exactly the curried parameter names (so the
// innermost lambda's free-variable set captures every outer parameter,
// same as any other closure body would).
func curried(name string, params []string, gen ast.Generator) *ast.Expr {
	lit := ast.Lit(ast.NewLiteral(gen, params, name))
	body := lit
	for i := len(params) - 1; i >= 0; i-- {
		body = ast.Lam(ast.Var(params[i]), body)
	}
	return body
}

// Add is `\x -> \y -> x + y` over boxed 64-bit integers.
func Add() *ast.Expr {
	return curried("add", []string{"x", "y"}, func(c *irgen.Context) value.Value {
		x := intPayload(c, "x")
		y := intPayload(c, "y")
		sum := c.Block.NewAdd(x, y)
		return boxInt(c, "add", sum)
	})
}

// Eq is `\x -> \y -> x == y` over boxed 64-bit integers, producing a
// boxed boolean.
func Eq() *ast.Expr {
	return curried("eq", []string{"x", "y"}, func(c *irgen.Context) value.Value {
		x := intPayload(c, "x")
		y := intPayload(c, "y")
		cmp := c.Block.NewICmp(enum.IPredEQ, x, y)
		widened := c.Block.NewZExt(cmp, types.I8)
		return boxBool(c, "eq", widened)
	})
}

// Fix is `\h -> \x -> (h %SELF%) x` — the self-reference
// trick. Calling fix(h) returns a closure g with g's own object passed
// as h's first argument on every call, so h can recurse through g
// without g ever holding a captured reference to itself (which the
// reference-counting scheme could never collect, since the source
// language has no way to break a cycle once formed).
func Fix() *ast.Expr {
	h := ast.Var("h")
	x := ast.Var("x")
	body := ast.App(ast.App(ast.Var("h"), ast.SelfVar()), ast.Var("x"))
	return ast.Lam(h, ast.Lam(x, body))
}

// NewArray is `\size -> \init -> newArray(size, init)`: an
// opaque-to-the-core array object of length size, every slot
// initialized to init. Both operands are passed as whole boxed
// objects — ownership transfers into the runtime call exactly like an
// ordinary application (Rule R2/R3), since array internals are the
// runtime's concern, not the compiler's.
func NewArray() *ast.Expr {
	return curried("newArray", []string{"size", "init"}, func(c *irgen.Context) value.Value {
		size := readConsuming(c, "size")
		init := readConsuming(c, "init")
		return c.CallRuntime(irgen.RuntimeArrayNew, size, init)
	})
}

// ReadArray is `\arr -> \idx -> readArray(arr, idx)`.
func ReadArray() *ast.Expr {
	return curried("readArray", []string{"arr", "idx"}, func(c *irgen.Context) value.Value {
		arr := readConsuming(c, "arr")
		idx := readConsuming(c, "idx")
		return c.CallRuntime(irgen.RuntimeArrayRead, arr, idx)
	})
}

// WriteArray is `\arr -> \idx -> \val -> writeArray(arr, idx, val)`:
// the persistent update. The runtime always copies arr into a fresh
// array, even when arr is uniquely owned, unlike WriteArrayUnique.
func WriteArray() *ast.Expr {
	return curried("writeArray", []string{"arr", "idx", "val"}, func(c *irgen.Context) value.Value {
		arr := readConsuming(c, "arr")
		idx := readConsuming(c, "idx")
		val := readConsuming(c, "val")
		return c.CallRuntime(irgen.RuntimeArrayWrite, arr, idx, val)
	})
}

// WriteArrayUnique is `\arr -> \idx -> \val -> writeArray!(arr, idx, val)`:
// the runtime mutates arr in place when its refcount is exactly 1, and
// otherwise falls back to copying it as WriteArray does.
func WriteArrayUnique() *ast.Expr {
	return curried("writeArray!", []string{"arr", "idx", "val"}, func(c *irgen.Context) value.Value {
		arr := readConsuming(c, "arr")
		idx := readConsuming(c, "idx")
		val := readConsuming(c, "val")
		return c.CallRuntime(irgen.RuntimeArrayWriteUnique, arr, idx, val)
	})
}

// IntLit builds a boxed integer constant.
func IntLit(n int64) *ast.Expr {
	name := strconv.FormatInt(n, 10)
	return ast.Lit(ast.NewLiteral(func(c *irgen.Context) value.Value {
		return boxInt(c, name, constant.NewInt(types.I64, n))
	}, nil, name))
}

// BoolLit builds a boxed boolean constant.
func BoolLit(b bool) *ast.Expr {
	var iv int64
	name := "false"
	if b {
		iv, name = 1, "true"
	}
	return ast.Lit(ast.NewLiteral(func(c *irgen.Context) value.Value {
		return boxBool(c, name, constant.NewInt(types.I8, iv))
	}, nil, name))
}
