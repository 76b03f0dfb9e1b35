// Package ast is the surface-language abstract syntax: variables,
// literals, application, lambda, non-recursive let and if/then/else.
// An expression is one tagged struct, not an interface per variant,
// mirroring how a single Value with a Tag discriminant represents
// every value shape.
package ast

import (
	"fmt"

	"github.com/llir/llvm/ir/value"

	"fixlang/pkg/irgen"
)

// Tag discriminates the shape of an Expr.
type Tag int

const (
	TVar Tag = iota
	TLit
	TApp
	TLam
	TLet
	TIf
)

// SelfName is the reserved identifier bound to a lambda's own closure
// object inside its body, used by fix to build self-reference without
// an object cycle. It can never be produced by the parser, so a
// source program can't accidentally shadow it.
const SelfName = "%SELF%"

// Generator emits the IR for a literal's value into gc's current block
// and returns the generic object pointer result. Literals close over
// their free variables the same way a Lam body does; the name is used
// as the allocation's debug label under sanitizer mode.
type Generator func(gc *irgen.Context) value.Value

// Expr is a node of the surface AST. Exactly one of the tag-specific
// field groups is meaningful, selected by Tag.
type Expr struct {
	Tag Tag

	// TVar
	Name string

	// TLit
	Lit *Literal

	// TApp
	Func *Expr
	Arg  *Expr

	// TLam
	Param *Expr // always TVar
	Body  *Expr

	// TLet
	Bound *Expr
	In    *Expr

	// TIf
	Cond *Expr
	Then *Expr
	Else *Expr

	// FreeVars is computed by CalculateFreeVars and nil until that pass
	// has visited this node.
	FreeVars map[string]struct{}
	computed bool
}

// Var builds a variable reference.
func Var(name string) *Expr {
	if name == SelfName {
		panic("ast: " + SelfName + " is reserved and cannot be referenced directly")
	}
	return &Expr{Tag: TVar, Name: name}
}

// selfVar builds the one legal reference to SelfName; the fix primitive
// reaches it through SelfVar.
func selfVar() *Expr { return &Expr{Tag: TVar, Name: SelfName} }

// SelfVar is the exported form of selfVar, for packages (pkg/primitives)
// that build closures needing a self-reference outside of Lam's own
// parser-driven construction path.
func SelfVar() *Expr { return selfVar() }

// Lit builds a literal expression from a Literal value.
func Lit(l *Literal) *Expr {
	return &Expr{Tag: TLit, Lit: l}
}

// Lam builds a lambda `\param -> body`. param must be a TVar node (the
// parameter name); it is never itself free-variable-analyzed as a
// standalone subtree.
func Lam(param *Expr, body *Expr) *Expr {
	if param.Tag != TVar {
		panic("ast: lambda parameter must be a variable node")
	}
	return &Expr{Tag: TLam, Param: param, Body: body}
}

// Let builds `let name = bound in body`.
func Let(name string, bound *Expr, body *Expr) *Expr {
	return &Expr{Tag: TLet, Param: Var(name), Bound: bound, In: body}
}

// App builds the application `fn arg`.
func App(fn *Expr, arg *Expr) *Expr {
	return &Expr{Tag: TApp, Func: fn, Arg: arg}
}

// If builds `if cond then thenExpr else elseExpr`.
func If(cond, thenExpr, elseExpr *Expr) *Expr {
	return &Expr{Tag: TIf, Cond: cond, Then: thenExpr, Else: elseExpr}
}

// ToString renders e back to surface syntax, for error messages and
// verbose-mode tracing.
func (e *Expr) ToString() string {
	switch e.Tag {
	case TVar:
		return e.Name
	case TLit:
		return e.Lit.Name
	case TApp:
		return fmt.Sprintf("(%s) (%s)", e.Func.ToString(), e.Arg.ToString())
	case TLam:
		return fmt.Sprintf("\\%s -> (%s)", e.Param.Name, e.Body.ToString())
	case TLet:
		return fmt.Sprintf("let %s = %s in (%s)", e.Param.Name, e.Bound.ToString(), e.In.ToString())
	case TIf:
		return fmt.Sprintf("if %s then %s else (%s)", e.Cond.ToString(), e.Then.ToString(), e.Else.ToString())
	default:
		panic("ast: unknown tag in ToString")
	}
}
