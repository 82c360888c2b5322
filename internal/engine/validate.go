package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/graph"
)

// Validate checks the stack against the registered providers without
// contacting them: provider and resource types exist, literal properties
// match the schemas, referenced attributes exist, count evaluates, and the
// resource graph has no cycles. All problems are reported together.
func (e *Engine) Validate(_ context.Context) error {
	var errs []error
	if err := e.stack.Validate(); err != nil {
		errs = append(errs, err)
	}
	if e.version != "" {
		if err := config.CheckRequiredVersion(e.stack, e.version); err != nil {
			errs = append(errs, err)
		}
	}

	for _, r := range e.stack.Resources {
		res, err := e.registry.Resource(r.ProviderName(), r.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", r.Pos, r.Addr(), err))
			continue
		}
		if err := res.Schema.Validate(r.Properties); err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", r.Pos, r.Addr(), err))
		}
		if res.ValidateConfig != nil {
			if err := res.ValidateConfig(r.Properties); err != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", r.Pos, r.Addr(), err))
			}
		}
		if _, err := e.count(r); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, e.checkReferencedAttributes(r)...)
	}

	for _, name := range expr.SortedKeys(e.stack.Providers) {
		if _, err := e.registry.New(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.stack.Providers[name].Pos, err))
		}
	}

	if len(errs) == 0 {
		if cycle := e.resourceGraph().Cycle(); cycle != nil {
			errs = append(errs, &graph.CycleError{Path: cycle})
		}
	}
	return errors.Join(errs...)
}

// checkReferencedAttributes requires TYPE.NAME.attr references to name an
// attribute of the target's schema.
func (e *Engine) checkReferencedAttributes(r *config.Resource) []error {
	exprs, err := expr.ValueExprs(r.Properties)
	if err != nil {
		return nil
	}
	var errs []error
	for _, ref := range expr.References(exprs...) {
		if ref.Attr == "" {
			continue
		}
		target := e.stack.Resource(addrs.Resource{Type: ref.Type, Name: ref.Name})
		if target == nil {
			continue
		}
		schema, err := e.registry.Schema(target.ProviderName(), target.Type)
		if err != nil {
			continue
		}
		if schema.Attribute(ref.Attr) == nil {
			errs = append(errs, fmt.Errorf("%s: %s: %s has no attribute %q", r.Pos, r.Addr(), ref.Resource(), ref.Attr))
		}
	}
	return errs
}

// resourceGraph connects resources (not instances) by their references and
// depends_on. It is used for cycle detection before counts are known.
func (e *Engine) resourceGraph() *graph.Graph {
	g := graph.New()
	for _, r := range e.stack.Resources {
		g.Add(r.Addr().String())
	}
	for _, r := range e.stack.Resources {
		from := r.Addr().String()
		exprs, err := expr.ValueExprs(r.Properties)
		if err == nil {
			for _, ref := range expr.References(exprs...) {
				if g.Has(ref.Resource()) {
					g.Connect(from, ref.Resource())
				}
			}
		}
		for _, d := range r.DependsOn {
			if g.Has(d.String()) {
				g.Connect(from, d.String())
			}
		}
	}
	return g
}
