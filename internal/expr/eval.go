package expr

import (
	"errors"
	"fmt"
)

// Scope resolves the names an expression can refer to.
type Scope interface {
	// Variable returns the value of an input variable.
	Variable(name string) (any, error)
	// CountIndex returns count.index for the instance being evaluated.
	CountIndex() (int, error)
	// Resource returns the object for an uncounted resource, or a list of
	// objects for a counted one. Attributes not yet known are Unknown.
	Resource(typ, name string) (any, error)
}

// ErrNoCount is returned by scopes evaluating outside a counted resource.
var ErrNoCount = errors.New("count.index is only valid inside a resource with count")

// Eval evaluates an expression against a scope.
func Eval(e Expr, s Scope) (any, error) {
	switch t := e.(type) {
	case *Literal:
		return t.Value, nil
	case *Call:
		args := make([]any, len(t.Args))
		for i, a := range t.Args {
			v, err := Eval(a, s)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return call(t.Name, args)
	case *Traversal:
		return evalTraversal(t, s)
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

func evalTraversal(t *Traversal, s Scope) (any, error) {
	if len(t.Steps) == 0 || t.Steps[0].Kind != StepAttr {
		return nil, fmt.Errorf("%s: incomplete reference", t)
	}
	first, rest := t.Steps[0].Name, t.Steps[1:]

	var root any
	var err error
	switch t.Root {
	case "var":
		root, err = s.Variable(first)
	case "count":
		if first != "index" {
			return nil, fmt.Errorf("%s: only count.index is supported", t)
		}
		var idx int
		idx, err = s.CountIndex()
		root = float64(idx)
	default:
		root, err = s.Resource(t.Root, first)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}

	v, err := applySteps(root, rest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	return v, nil
}

func applySteps(v any, steps []Step) (any, error) {
	for i, step := range steps {
		if IsUnknown(v) {
			return UnknownValue, nil
		}
		switch step.Kind {
		case StepAttr:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cannot access attribute %q on %s", step.Name, TypeName(v))
			}
			next, ok := m[step.Name]
			if !ok {
				return nil, fmt.Errorf("unsupported attribute %q", step.Name)
			}
			v = next
		case StepIndex:
			l, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("cannot index %s", TypeName(v))
			}
			if step.Index >= len(l) {
				return nil, fmt.Errorf("index %d out of range for list of length %d", step.Index, len(l))
			}
			v = l[step.Index]
		case StepSplat:
			var l []any
			switch tv := v.(type) {
			case []any:
				l = tv
			case nil:
				l = nil
			default:
				l = []any{tv}
			}
			out := make([]any, 0, len(l))
			for _, e := range l {
				ev, err := applySteps(e, steps[i+1:])
				if err != nil {
					return nil, err
				}
				out = append(out, ev)
			}
			return out, nil
		}
	}
	return v, nil
}
