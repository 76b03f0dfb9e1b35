package ast

import "testing"

func hasVars(t *testing.T, e *Expr, want ...string) {
	t.Helper()
	if len(e.FreeVars) != len(want) {
		t.Fatalf("got %d free vars %v, want %v", len(e.FreeVars), e.FreeVars, want)
	}
	for _, w := range want {
		if _, ok := e.FreeVars[w]; !ok {
			t.Fatalf("expected %q among free vars, got %v", w, e.FreeVars)
		}
	}
}

func TestFreeVarsVar(t *testing.T) {
	e := CalculateFreeVars(Var("x"))
	hasVars(t, e, "x")
}

func TestFreeVarsApp(t *testing.T) {
	e := CalculateFreeVars(App(Var("f"), Var("x")))
	hasVars(t, e, "f", "x")
}

func TestFreeVarsLamDropsParam(t *testing.T) {
	body := App(Var("x"), Var("y"))
	e := CalculateFreeVars(Lam(Var("x"), body))
	hasVars(t, e, "y")
}

func TestFreeVarsLamDropsSelfName(t *testing.T) {
	body := App(SelfVar(), Var("y"))
	e := CalculateFreeVars(Lam(Var("x"), body))
	hasVars(t, e, "y")
}

func TestFreeVarsLetBoundNotShadowedByOwnName(t *testing.T) {
	// let x = x in x   -- the inner "x" in the bound expr refers to an
	// outer binding, not the one being introduced, so it stays free.
	e := CalculateFreeVars(Let("x", Var("x"), Var("x")))
	hasVars(t, e, "x")
}

func TestFreeVarsLetUnion(t *testing.T) {
	// let x = y in (x z)  ->  free vars {y, z}
	e := CalculateFreeVars(Let("x", Var("y"), App(Var("x"), Var("z"))))
	hasVars(t, e, "y", "z")
}

func TestFreeVarsIfUnion(t *testing.T) {
	e := CalculateFreeVars(If(Var("c"), Var("t"), Var("e")))
	hasVars(t, e, "c", "t", "e")
}

func TestFreeVarsIdempotent(t *testing.T) {
	e := Var("x")
	CalculateFreeVars(e)
	e.FreeVars["sentinel"] = struct{}{}
	CalculateFreeVars(e) // must not recompute and wipe the sentinel
	if _, ok := e.FreeVars["sentinel"]; !ok {
		t.Fatal("expected second CalculateFreeVars call to be a no-op")
	}
}

func TestFreeVarsLitUsesDeclaredFreeVars(t *testing.T) {
	lit := NewLiteral(nil, []string{"add_impl_helper"}, "add")
	e := CalculateFreeVars(Lit(lit))
	hasVars(t, e, "add_impl_helper")
}

func TestToStringRendersShape(t *testing.T) {
	e := Let("x", Var("y"), If(Var("x"), Var("a"), Var("b")))
	got := e.ToString()
	want := "let x = y in (if x then a else (b))"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
