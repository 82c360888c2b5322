package config

import (
	"errors"
	"fmt"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/expr"
)

var validVariableTypes = map[string]bool{
	TypeString: true,
	TypeNumber: true,
	TypeBool:   true,
	TypeList:   true,
	TypeMap:    true,
	TypeAny:    true,
}

var validBackends = map[string]bool{
	"local": true,
	"s3":    true,
	"etcd":  true,
}

// Validate performs the checks that need no provider: declaration types,
// expression syntax, and that every reference points at something declared.
// All problems are returned together.
func (s *Stack) Validate() error {
	var errs []error

	if s.Backend != nil {
		if !validBackends[s.BackendType()] {
			errs = append(errs, fmt.Errorf("%s: unknown backend type %q", s.Backend.Pos, s.Backend.Type))
		}
		exprs, err := expr.ValueExprs(s.Backend.Config)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: backend: %w", s.Backend.Pos, err))
		} else if len(exprs) > 0 {
			errs = append(errs, fmt.Errorf("%s: backend configuration cannot contain expressions", s.Backend.Pos))
		}
	}

	for _, name := range expr.SortedKeys(s.Variables) {
		v := s.Variables[name]
		if !addrs.ValidName(name) {
			errs = append(errs, fmt.Errorf("%s: invalid variable name %q", v.Pos, name))
		}
		if !validVariableTypes[v.Type] {
			errs = append(errs, fmt.Errorf("%s: variable %q has unknown type %q", v.Pos, name, v.Type))
		}
	}

	for _, name := range expr.SortedKeys(s.Providers) {
		p := s.Providers[name]
		errs = append(errs, s.checkExprs(p.Pos, "provider "+name, p.Config, false, false)...)
	}

	for _, r := range s.Resources {
		where := r.Addr().String()
		for _, dep := range r.DependsOn {
			if s.Resource(dep) == nil {
				errs = append(errs, fmt.Errorf("%s: %s: depends_on references undeclared resource %s", r.Pos, where, dep))
			}
			if dep == r.Addr() {
				errs = append(errs, fmt.Errorf("%s: %s depends on itself", r.Pos, where))
			}
		}
		errs = append(errs, s.checkCount(r)...)
		errs = append(errs, s.checkExprs(r.Pos, where, r.Properties, true, r.Count != nil)...)
	}

	for _, name := range expr.SortedKeys(s.Outputs) {
		o := s.Outputs[name]
		if !addrs.ValidName(name) {
			errs = append(errs, fmt.Errorf("%s: invalid output name %q", o.Pos, name))
		}
		errs = append(errs, s.checkExprs(o.Pos, "output "+name, o.Value, true, false)...)
	}

	return errors.Join(errs...)
}

// checkCount requires count to be a non-negative whole number or an
// expression over variables only.
func (s *Stack) checkCount(r *Resource) []error {
	if r.Count == nil {
		return nil
	}
	where := r.Addr().String()
	switch c := r.Count.(type) {
	case float64:
		n, err := expr.AsInt(c)
		if err != nil || n < 0 {
			return []error{fmt.Errorf("%s: %s: count must be a non-negative whole number", r.Pos, where)}
		}
		return nil
	case string:
		exprs, err := expr.ValueExprs(c)
		if err != nil {
			return []error{fmt.Errorf("%s: %s: count: %w", r.Pos, where, err)}
		}
		if len(expr.References(exprs...)) > 0 {
			return []error{fmt.Errorf("%s: %s: count may only reference variables, it must be known before apply", r.Pos, where)}
		}
		if expr.UsesCount(exprs...) {
			return []error{fmt.Errorf("%s: %s: count cannot reference count.index", r.Pos, where)}
		}
		return s.checkVariables(r.Pos, where, exprs)
	default:
		return []error{fmt.Errorf("%s: %s: count must be a number or an expression, got %s", r.Pos, where, expr.TypeName(c))}
	}
}

func (s *Stack) checkExprs(pos Pos, where string, v any, allowResources, allowCount bool) []error {
	exprs, err := expr.ValueExprs(v)
	if err != nil {
		return []error{fmt.Errorf("%s: %s: %w", pos, where, err)}
	}

	errs := s.checkVariables(pos, where, exprs)
	if !allowCount && expr.UsesCount(exprs...) {
		errs = append(errs, fmt.Errorf("%s: %s: count.index is only valid inside a resource with count", pos, where))
	}
	for _, ref := range expr.References(exprs...) {
		if !allowResources {
			errs = append(errs, fmt.Errorf("%s: %s: cannot reference resource %s", pos, where, ref))
			continue
		}
		target := s.Resource(addrs.Resource{Type: ref.Type, Name: ref.Name})
		if target == nil {
			errs = append(errs, fmt.Errorf("%s: %s: reference to undeclared resource %s", pos, where, ref.Resource()))
			continue
		}
		if ref.Index != nil && target.Count == nil {
			errs = append(errs, fmt.Errorf("%s: %s: %s has no count and cannot be indexed", pos, where, ref.Resource()))
		}
	}
	return errs
}

func (s *Stack) checkVariables(pos Pos, where string, exprs []expr.Expr) []error {
	var errs []error
	seen := map[string]bool{}
	for _, name := range expr.Variables(exprs...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := s.Variables[name]; !ok {
			errs = append(errs, fmt.Errorf("%s: %s: reference to undeclared variable %q", pos, where, name))
		}
	}
	return errs
}
