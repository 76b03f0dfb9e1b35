package parser

import (
	"testing"

	"fixlang/pkg/ast"
)

func mustParse(t *testing.T, src string) *ast.Expr {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", src, err)
	}
	return e
}

func TestParseIntLiteral(t *testing.T) {
	e := mustParse(t, "5")
	if e.Tag != ast.TLit || e.Lit.Name != "5" {
		t.Fatalf("expected literal 5, got %#v", e)
	}
}

func TestParseNegativeIntLiteral(t *testing.T) {
	e := mustParse(t, "-5")
	if e.Tag != ast.TLit || e.Lit.Name != "-5" {
		t.Fatalf("expected literal -5, got %#v", e)
	}
}

func TestParseLetIn(t *testing.T) {
	e := mustParse(t, "let x = 5 in x")
	if e.Tag != ast.TLet || e.Param.Name != "x" {
		t.Fatalf("expected let x = ... in ..., got %#v", e)
	}
	if e.In.Tag != ast.TVar || e.In.Name != "x" {
		t.Fatal("expected body to reference x")
	}
}

func TestParseLetSemicolonSugar(t *testing.T) {
	e := mustParse(t, "let x = 5; x")
	if e.Tag != ast.TLet || e.Param.Name != "x" {
		t.Fatalf("expected let x = ...; ... desugared to Let, got %#v", e)
	}
}

func TestParseNestedLet(t *testing.T) {
	e := mustParse(t, "let n = -5 in let p = 5 in n")
	if e.Tag != ast.TLet || e.Param.Name != "n" {
		t.Fatal("expected outer let to bind n")
	}
	if e.In.Tag != ast.TLet || e.In.Param.Name != "p" {
		t.Fatal("expected inner let to bind p")
	}
}

func TestParseLambdaAndApp(t *testing.T) {
	e := mustParse(t, `let f = \x -> x in f 3`)
	if e.Tag != ast.TLet {
		t.Fatal("expected outer let")
	}
	if e.Bound.Tag != ast.TLam || e.Bound.Param.Name != "x" {
		t.Fatalf("expected lambda bound to f, got %#v", e.Bound)
	}
	if e.In.Tag != ast.TApp {
		t.Fatal("expected application in body")
	}
}

func TestParseCurriedApplicationIsLeftAssociative(t *testing.T) {
	e := mustParse(t, "add 3 5")
	if e.Tag != ast.TApp {
		t.Fatal("expected an application")
	}
	// "add 3 5" == (add 3) 5
	if e.Func.Tag != ast.TApp || e.Func.Func.Name != "add" {
		t.Fatalf("expected left-associative ((add 3) 5), got %#v", e)
	}
	if e.Arg.Lit == nil || e.Arg.Lit.Name != "5" {
		t.Fatal("expected outer argument to be 5")
	}
}

func TestParseIfThenElse(t *testing.T) {
	e := mustParse(t, "if eq x 0 then 0 else 1")
	if e.Tag != ast.TIf {
		t.Fatalf("expected if expression, got %#v", e)
	}
}

func TestParseBooleans(t *testing.T) {
	tr := mustParse(t, "true")
	if tr.Lit.Name != "true" {
		t.Fatal("expected literal true")
	}
	fa := mustParse(t, "false")
	if fa.Lit.Name != "false" {
		t.Fatal("expected literal false")
	}
}

func TestParseParenthesizedExpr(t *testing.T) {
	e := mustParse(t, "add (f -3) (f 12)")
	if e.Tag != ast.TApp {
		t.Fatalf("expected application, got %#v", e)
	}
}

func TestParseFibonacciProgramShape(t *testing.T) {
	src := `
		let arr = newArray 31 0;
		let arr = writeArray! arr 0 0;
		let arr = writeArray! arr 1 1;
		let loop = fix \f -> \arr -> \n ->
			if eq n 31 then
				arr
			else
				let x = readArray arr (add n (-1));
				let y = readArray arr (add n (-2));
				let arr = writeArray! arr n (add x y);
				f arr (add n 1);
		let fib = loop arr 2;
		readArray fib 30
	`
	e := mustParse(t, src)
	if e.Tag != ast.TLet {
		t.Fatal("expected the program to start with a let binding")
	}
}
