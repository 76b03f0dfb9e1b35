// Package parser turns surface-syntax source text into the compiler's
// AST, using a participle grammar (the let/if/lambda/app
// surface form) rather than a hand-rolled recursive-descent scanner.
package parser

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"

	"fixlang/pkg/ast"
	"fixlang/pkg/primitives"
)

var fixParser = buildParser()

func buildParser() *participle.Parser[Expr] {
	p, err := participle.Build[Expr](
		participle.Lexer(fixLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(3),
	)
	if err != nil {
		panic(fmt.Errorf("parser: failed to build grammar: %w", err))
	}
	return p
}

// Parse parses source into a single top-level ast.Expr.
func Parse(source string) (*ast.Expr, error) {
	tree, err := fixParser.ParseString("", source)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return toAST(tree), nil
}

func toAST(e *Expr) *ast.Expr {
	switch {
	case e.Let != nil:
		return ast.Let(e.Let.Name, toAST(e.Let.Bound), toAST(e.Let.Rest))
	case e.If != nil:
		return ast.If(toAST(e.If.Cond), toAST(e.If.Then), toAST(e.If.Else))
	case e.Lambda != nil:
		return ast.Lam(ast.Var(e.Lambda.Param), toAST(e.Lambda.Body))
	case e.App != nil:
		return foldApp(e.App.Atoms)
	default:
		panic("parser: empty expression node")
	}
}

func foldApp(atoms []*Atom) *ast.Expr {
	result := atomToAST(atoms[0])
	for _, a := range atoms[1:] {
		result = ast.App(result, atomToAST(a))
	}
	return result
}

func atomToAST(a *Atom) *ast.Expr {
	switch {
	case a.Int != "":
		n, err := strconv.ParseInt(a.Int, 10, 64)
		if err != nil {
			panic(fmt.Sprintf("parser: malformed integer literal %q: %v", a.Int, err))
		}
		return primitives.IntLit(n)
	case a.Ident != "":
		switch a.Ident {
		case "true":
			return primitives.BoolLit(true)
		case "false":
			return primitives.BoolLit(false)
		default:
			return ast.Var(a.Ident)
		}
	case a.Paren != nil:
		return toAST(a.Paren)
	default:
		panic("parser: empty atom node")
	}
}
