package expr

import "fmt"

// Ref is a reference from an expression to a resource.
type Ref struct {
	Type string
	Name string
	// Index is set for TYPE.NAME[N] references.
	Index *int
	// Attr is the first attribute accessed, if any.
	Attr string
}

// Resource returns the resource-level address (TYPE.NAME).
func (r Ref) Resource() string {
	return r.Type + "." + r.Name
}

func (r Ref) String() string {
	if r.Index != nil {
		return fmt.Sprintf("%s.%s[%d]", r.Type, r.Name, *r.Index)
	}
	return r.Resource()
}

// Walk calls fn for every traversal in e.
func Walk(e Expr, fn func(*Traversal)) {
	switch t := e.(type) {
	case *Traversal:
		fn(t)
	case *Call:
		for _, a := range t.Args {
			Walk(a, fn)
		}
	}
}

// References returns the resource references made by the expressions.
func References(exprs ...Expr) []Ref {
	var out []Ref
	for _, e := range exprs {
		Walk(e, func(t *Traversal) {
			if t.Root == "var" || t.Root == "count" || len(t.Steps) == 0 || t.Steps[0].Kind != StepAttr {
				return
			}
			ref := Ref{Type: t.Root, Name: t.Steps[0].Name}
			rest := t.Steps[1:]
			if len(rest) > 0 && rest[0].Kind == StepIndex {
				idx := rest[0].Index
				ref.Index = &idx
				rest = rest[1:]
			} else if len(rest) > 0 && rest[0].Kind == StepSplat {
				rest = rest[1:]
			}
			if len(rest) > 0 && rest[0].Kind == StepAttr {
				ref.Attr = rest[0].Name
			}
			out = append(out, ref)
		})
	}
	return out
}

// Variables returns the names of input variables read by the expressions.
func Variables(exprs ...Expr) []string {
	var out []string
	for _, e := range exprs {
		Walk(e, func(t *Traversal) {
			if t.Root == "var" && len(t.Steps) > 0 && t.Steps[0].Kind == StepAttr {
				out = append(out, t.Steps[0].Name)
			}
		})
	}
	return out
}

// UsesCount reports whether any expression reads count.index.
func UsesCount(exprs ...Expr) bool {
	found := false
	for _, e := range exprs {
		Walk(e, func(t *Traversal) {
			if t.Root == "count" {
				found = true
			}
		})
	}
	return found
}
