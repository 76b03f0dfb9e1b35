package ast

// CalculateFreeVars annotates e and every subexpression with its free
// variable set. It is idempotent: a node whose FreeVars
// has already been computed is returned unchanged rather than
// recomputed, so running the pass twice over a shared subtree (e.g. a
// literal's generator closing over a previously-analyzed helper) is
// cheap and safe.
func CalculateFreeVars(e *Expr) *Expr {
	if e.computed {
		return e
	}

	switch e.Tag {
	case TVar:
		e.FreeVars = set(e.Name)

	case TLit:
		e.FreeVars = set(e.Lit.FreeVars...)

	case TApp:
		CalculateFreeVars(e.Func)
		CalculateFreeVars(e.Arg)
		e.FreeVars = union(e.Func.FreeVars, e.Arg.FreeVars)

	case TLam:
		CalculateFreeVars(e.Body)
		fv := copySet(e.Body.FreeVars)
		delete(fv, e.Param.Name)
		delete(fv, SelfName)
		e.FreeVars = fv

	case TLet:
		// Non-recursive let: the bound name is not in scope inside its
		// own binding, so the bound expression's free variables are
		// never shadowed by it — only the body's are.
		CalculateFreeVars(e.Bound)
		CalculateFreeVars(e.In)
		fv := copySet(e.In.FreeVars)
		delete(fv, e.Param.Name)
		for n := range e.Bound.FreeVars {
			fv[n] = struct{}{}
		}
		e.FreeVars = fv

	case TIf:
		CalculateFreeVars(e.Cond)
		CalculateFreeVars(e.Then)
		CalculateFreeVars(e.Else)
		fv := copySet(e.Cond.FreeVars)
		for n := range e.Then.FreeVars {
			fv[n] = struct{}{}
		}
		for n := range e.Else.FreeVars {
			fv[n] = struct{}{}
		}
		e.FreeVars = fv

	default:
		panic("ast: unknown tag in CalculateFreeVars")
	}

	e.computed = true
	return e
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func copySet(s map[string]struct{}) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for n := range s {
		m[n] = struct{}{}
	}
	return m
}

func union(a, b map[string]struct{}) map[string]struct{} {
	m := copySet(a)
	for n := range b {
		m[n] = struct{}{}
	}
	return m
}
