package codegen

import (
	"regexp"
	"strings"
	"testing"

	"fixlang/pkg/ast"
	"fixlang/pkg/irgen"
	"fixlang/pkg/primitives"
)

var dtorDefRe = regexp.MustCompile(`define void @"?(dtor\.[A-Za-z0-9]+)"?`)

func compileTopLevel(t *testing.T, e *ast.Expr) string {
	t.Helper()
	ast.CalculateFreeVars(e)
	c := irgen.New("test", false)
	genericPtr := c.GenericPtrType()
	fn := c.Module().NewFunc("test_entry", genericPtr)
	entry := fn.NewBlock("entry")
	c.Block = entry
	result := GenerateExpr(c, e)
	entry.NewRet(result)
	return c.Module().String()
}

// TestApplyEmitsTailCall checks that every application compiles to a
// `tail call`, never a plain `call`, so recursion through fix runs in
// constant stack space.
func TestApplyEmitsTailCall(t *testing.T) {
	e := ast.App(ast.Lam(ast.Var("x"), ast.Var("x")), intLiteral(1))
	ir := compileTopLevel(t, e)
	if !strings.Contains(ir, "tail call") {
		t.Fatalf("expected a tail call in generated IR, got:\n%s", ir)
	}
}

// TestStructurallyIdenticalClosuresShareOneDestructor checks destructor
// uniqueness: two closures with the same capture arity and field kinds
// are the same ObjectType, so they must be backed by exactly one
// memoized destructor function, not one per allocation site. Both
// closures here capture exactly one sub-object (y, z respectively), so
// they share the same one-capture lambda ObjectType ("cls"). The int
// literals and the zero-capture identity lambdas have shapes of their
// own, each with its own single destructor.
func TestStructurallyIdenticalClosuresShareOneDestructor(t *testing.T) {
	program := ast.Let("y", intLiteral(1),
		ast.Let("z", intLiteral(2),
			ast.Let("_discard",
				ast.App(
					ast.Lam(ast.Var("_f"), ast.Var("_f")),
					ast.Lam(ast.Var("x"), ast.Var("y")),
				),
				ast.App(
					ast.Lam(ast.Var("_g"), ast.Var("_g")),
					ast.Lam(ast.Var("x"), ast.Var("z")),
				),
			),
		),
	)
	ir := compileTopLevel(t, program)

	matches := dtorDefRe.FindAllStringSubmatch(ir, -1)
	distinct := make(map[string]struct{})
	oneCapture := 0
	for _, m := range matches {
		distinct[m[1]] = struct{}{}
		if m[1] == "dtor.cls" {
			oneCapture++
		}
	}
	if oneCapture != 1 || len(matches) != len(distinct) {
		t.Fatalf("expected exactly one memoized destructor definition for the shared one-capture closure shape and none defined twice, got %d for that shape (%d definitions, %d distinct shapes) in:\n%s", oneCapture, len(matches), len(distinct), ir)
	}
}

// TestLetReleasesUnusedBindingImmediately is a hand-checked reference
// case for Rule R4: a let whose body never reads the bound name
// releases it right after binding.
func TestLetReleasesUnusedBindingImmediately(t *testing.T) {
	e := ast.Let("unused", intLiteral(7), intLiteral(1))
	ir := compileTopLevel(t, e)
	if !strings.Contains(ir, "call void @release_obj") {
		t.Fatalf("expected a release call for the dead binding, got:\n%s", ir)
	}
}

func intLiteral(n int64) *ast.Expr {
	return primitives.IntLit(n)
}
