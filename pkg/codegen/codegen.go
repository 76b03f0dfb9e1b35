// Package codegen implements the expression compiler: the seven
// retain/release placement rules (Rules R1-R7) that let
// a lazily-evaluated, closure-heavy calculus run on deterministic
// reference counting with no tracing collector.
package codegen

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"fixlang/pkg/ast"
	"fixlang/pkg/irgen"
	"fixlang/pkg/layout"
)

// GenerateExpr is the top-level dispatcher. e must already have gone
// through ast.CalculateFreeVars. The result is always cast to the
// generic object-pointer type before returning, so callers never have
// to special-case a variant's underlying representation.
func GenerateExpr(c *irgen.Context, e *ast.Expr) value.Value {
	var result value.Value
	switch e.Tag {
	case ast.TVar:
		result = generateVar(c, e)
	case ast.TLit:
		result = generateLiteral(c, e)
	case ast.TApp:
		result = generateApp(c, e)
	case ast.TLam:
		result = generateLam(c, e)
	case ast.TLet:
		result = generateLet(c, e)
	case ast.TIf:
		result = generateIf(c, e)
	default:
		panic("codegen: unknown expression tag")
	}
	return c.PointerCast(result, c.GenericPtrType())
}

// getRetainedIfUsedLater implements the recurring "look a name up, and
// retain its value if it will still be needed after this use" step
// (Rule R1, and Rule R5's capture re-read at closure-build time).
func getRetainedIfUsedLater(c *irgen.Context, name string) value.Value {
	entry := c.Scope.Get(name)
	if entry.UsedLater() > 0 {
		c.Retain(entry.Value)
	}
	return entry.Value
}

// generateVar is Rule R1: a variable use retains its value when it
// will be read again later along this path, and otherwise transfers
// ownership of the scope's reference to the use site.
func generateVar(c *irgen.Context, e *ast.Expr) value.Value {
	return getRetainedIfUsedLater(c, e.Name)
}

func generateLiteral(c *irgen.Context, e *ast.Expr) value.Value {
	return e.Lit.Generator(c)
}

// generateApp is Rules R2/R3: the argument's free variables are
// protected (used_later bumped) while the function value is emitted,
// then the argument is emitted, then application transfers ownership
// of both operands into the callee with no release at the call site.
func generateApp(c *irgen.Context, e *ast.Expr) value.Value {
	c.Scope.IncrementUsedLater(e.Arg.FreeVars)
	funVal := GenerateExpr(c, e.Func)
	c.Scope.DecrementUsedLater(e.Arg.FreeVars)
	argVal := GenerateExpr(c, e.Arg)
	return c.Apply(funVal, argVal)
}

func sortedCaptures(freeVars map[string]struct{}, exclude ...string) []string {
	excl := make(map[string]struct{}, len(exclude))
	for _, n := range exclude {
		excl[n] = struct{}{}
	}
	names := make([]string, 0, len(freeVars))
	for n := range freeVars {
		if _, ok := excl[n]; ok {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// generateLam is Rule R5: build the closure's function body in a
// forked context, capture each free variable (other than the
// parameter and the reserved self name) as a sub-object field, then
// allocate and populate the closure object in the enclosing context.
func generateLam(c *irgen.Context, e *ast.Expr) value.Value {
	captured := sortedCaptures(e.Body.FreeVars, e.Param.Name, ast.SelfName)
	objType := layout.LamObjType(len(captured))

	genericPtr := c.GenericPtrType()
	fn := c.Module().NewFunc(fmt.Sprintf("lambda.%d", len(c.Module().Funcs)), genericPtr,
		ir.NewParam("arg", genericPtr),
		ir.NewParam("self", genericPtr))
	entry := fn.NewBlock("entry")
	body := c.Fork(entry)

	argParam := fn.Params[0]
	selfParam := fn.Params[1]
	body.Scope.Push(e.Param.Name, argParam)
	body.Scope.Push(ast.SelfName, selfParam)
	for i, name := range captured {
		sub := body.LoadField(selfParam, objType, int64(i+2))
		body.Scope.Push(name, sub)
	}

	for _, name := range captured {
		body.Retain(body.Scope.Get(name).Value)
	}

	if _, usesSelf := e.Body.FreeVars[ast.SelfName]; !usesSelf {
		body.Release(selfParam)
	}
	if _, usesArg := e.Body.FreeVars[e.Param.Name]; !usesArg {
		body.Release(argParam)
	}

	bodyVal := GenerateExpr(body, e.Body)
	body.Block.NewRet(body.PointerCast(bodyVal, genericPtr))

	name := e.ToString()
	obj := c.AllocateSharedObj(objType, name)
	c.SetField(obj, objType, 1, c.PointerCast(fn, c.LamFuncPtrType()))
	for i, capName := range captured {
		val := getRetainedIfUsedLater(c, capName)
		c.SetField(obj, objType, int64(i+2), val)
	}
	return obj
}

// generateLet is Rules R2/R4: the body's free variables (other than the
// name being bound, whose reads in the body refer to the new binding)
// are protected while the bound value is emitted, since let is
// non-recursive and the bound expression sees only outer bindings; the
// binding is released immediately if the body never reads it.
func generateLet(c *irgen.Context, e *ast.Expr) value.Value {
	name := e.Param.Name
	usedInBody := sortedCaptures(e.In.FreeVars, name)
	usedSet := make(map[string]struct{}, len(usedInBody))
	for _, n := range usedInBody {
		usedSet[n] = struct{}{}
	}

	c.Scope.IncrementUsedLater(usedSet)
	boundVal := GenerateExpr(c, e.Bound)
	c.Scope.DecrementUsedLater(usedSet)

	c.Scope.Push(name, boundVal)
	if _, used := e.In.FreeVars[name]; !used {
		c.Release(boundVal)
	}
	result := GenerateExpr(c, e.In)
	c.Scope.Pop(name)
	return result
}

// generateIf is Rule R6: the condition is emitted with both branches'
// free variables protected, the boolean payload is loaded and the
// condition object released, then each branch releases whichever of
// the other branch's exclusive free variables are dead on this path
// before generating its own code; results are joined with a phi.
func generateIf(c *irgen.Context, e *ast.Expr) value.Value {
	usedThenOrElse := unionSets(e.Then.FreeVars, e.Else.FreeVars)
	c.Scope.IncrementUsedLater(usedThenOrElse)
	condObj := GenerateExpr(c, e.Cond)
	c.Scope.DecrementUsedLater(usedThenOrElse)

	boolObjType := layout.BoolObjType()
	payload := c.LoadField(condObj, boolObjType, 1)
	c.Release(condObj)
	condBit := c.Block.NewICmp(enum.IPredNE, payload, constant.NewInt(types.I8, 0))

	parentFn := c.Block.Parent
	thenBB := parentFn.NewBlock("if.then")
	elseBB := parentFn.NewBlock("if.else")
	contBB := parentFn.NewBlock("if.cont")
	c.Block.NewCondBr(condBit, thenBB, elseBB)

	c.Block = thenBB
	releaseDeadOnBranch(c, e.Else.FreeVars, e.Then.FreeVars)
	thenVal := GenerateExpr(c, e.Then)
	thenEndBB := c.Block
	thenEndBB.NewBr(contBB)

	c.Block = elseBB
	releaseDeadOnBranch(c, e.Then.FreeVars, e.Else.FreeVars)
	elseVal := GenerateExpr(c, e.Else)
	elseEndBB := c.Block
	elseEndBB.NewBr(contBB)

	c.Block = contBB
	phi := contBB.NewPhi(
		ir.NewIncoming(thenVal, thenEndBB),
		ir.NewIncoming(elseVal, elseEndBB),
	)
	return phi
}

// releaseDeadOnBranch releases, on the branch about to be generated,
// every name free in the other branch but not this one whose
// used_later has already dropped to zero — it will never be read
// again on this path, so its reference must be dropped here rather
// than leaked.
func releaseDeadOnBranch(c *irgen.Context, otherFreeVars, thisFreeVars map[string]struct{}) {
	for name := range otherFreeVars {
		if _, inThis := thisFreeVars[name]; inThis {
			continue
		}
		entry := c.Scope.Get(name)
		if entry.UsedLater() == 0 {
			c.Release(entry.Value)
		}
	}
}

func unionSets(a, b map[string]struct{}) map[string]struct{} {
	m := make(map[string]struct{}, len(a)+len(b))
	for n := range a {
		m[n] = struct{}{}
	}
	for n := range b {
		m[n] = struct{}{}
	}
	return m
}
