package ast

// Literal is a leaf value whose IR is built by an arbitrary Generator
// rather than parsed structurally. Integer and boolean constants use
// it, and so do the primitive operators in pkg/primitives other than
// fix: each is a curried Lam chain whose innermost body is a literal
// declaring every curried parameter in FreeVars (e.g. add's literal
// declares x and y, so its inner closure captures x).
type Literal struct {
	Generator Generator
	FreeVars  []string
	Name      string
}

// NewLiteral is the Literal constructor.
func NewLiteral(generator Generator, freeVars []string, name string) *Literal {
	return &Literal{Generator: generator, FreeVars: freeVars, Name: name}
}
