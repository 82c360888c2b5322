package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/graph"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/state"
)

const phasePlan = "plan"

// PlanOptions select what Plan computes.
type PlanOptions struct {
	// Destroy plans the deletion of every recorded instance.
	Destroy bool
	// SkipRefresh plans against the stored state without reading the
	// providers first.
	SkipRefresh bool
	// Targets limits the plan to these addresses and what they need.
	Targets []string
}

// Plan validates the stack, refreshes the state in memory and computes the
// changes needed to converge. Nothing is written.
func (e *Engine) Plan(ctx context.Context, opts PlanOptions) (*plan.Plan, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	var p *plan.Plan
	err := e.withLock(ctx, "plan", func() error {
		st, err := e.states.Read(ctx)
		if err != nil {
			return err
		}
		lineage, serial := lineageOf(st), st.Serial
		if !opts.SkipRefresh {
			if err := e.refresh(ctx, st); err != nil {
				return err
			}
		}
		p, err = e.buildPlan(st, opts)
		if err != nil {
			return err
		}
		p.Lineage, p.Serial, p.Prior = lineage, serial, st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// lineageOf returns the lineage a plan records for st: none when no state
// has been written yet.
func lineageOf(st *state.State) string {
	if st.Serial == 0 {
		return ""
	}
	return st.Lineage
}

func (e *Engine) buildPlan(st *state.State, opts PlanOptions) (*plan.Plan, error) {
	start := time.Now()
	observability.LogPhaseStart(e.observer, phasePlan)

	p := plan.New("", 0)
	p.ConvergeVersion = e.version
	p.Destroy = opts.Destroy
	p.Targets = opts.Targets
	p.StackFiles = e.stack.Files
	p.Variables = e.vars

	var changes []*plan.Change
	var err error
	if opts.Destroy {
		changes, err = e.planDestroy(st)
	} else {
		changes, err = e.planConverge(st)
	}
	if err == nil && len(opts.Targets) > 0 {
		changes, err = filterTargets(changes, opts.Targets, opts.Destroy)
	}
	if err != nil {
		observability.LogPhaseFailed(e.observer, phasePlan, err)
		return nil, err
	}

	for _, c := range changes {
		p.Add(c)
	}
	observability.LogPhaseComplete(e.observer, phasePlan, time.Since(start))
	e.observer.Printf("%s", p.SummaryLine())
	return p, nil
}

// planConverge plans every desired instance in dependency order, so
// references resolve to the planned values of their targets, then plans the
// deletion of recorded instances that are no longer desired.
func (e *Engine) planConverge(st *state.State) ([]*plan.Change, error) {
	x, err := e.expand()
	if err != nil {
		return nil, err
	}
	order, err := x.graph().TopoOrder()
	if err != nil {
		return nil, err
	}

	values := make(map[string]map[string]any, len(order))
	sc := &scope{
		vars:   e.vars,
		index:  addrs.NoIndex,
		stack:  e.stack,
		counts: x.counts,
		object: func(address string) (map[string]any, bool) {
			v, ok := values[address]
			return v, ok
		},
	}

	var changes []*plan.Change
	var errs []error
	for _, address := range order {
		inst := x.byAddr[address]
		c, obj, err := e.planInstance(inst, st.Get(address), sc.forInstance(inst.addr.Index))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", address, err))
			continue
		}
		values[address] = obj
		changes = append(changes, c)
	}

	for _, si := range st.Resources {
		if x.byAddr[si.Address] != nil {
			continue
		}
		if err := e.checkPreventDestroy(si.Addr()); err != nil {
			errs = append(errs, err)
			continue
		}
		changes = append(changes, e.deleteChange(st, si))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}

func (e *Engine) planDestroy(st *state.State) ([]*plan.Change, error) {
	var changes []*plan.Change
	var errs []error
	for _, si := range st.Resources {
		if err := e.checkPreventDestroy(si.Addr()); err != nil {
			errs = append(errs, err)
			continue
		}
		changes = append(changes, e.deleteChange(st, si))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}

func (e *Engine) checkPreventDestroy(addr addrs.Instance) error {
	if r := e.stack.Resource(addr.Resource); r != nil && r.Lifecycle.PreventDestroy {
		return fmt.Errorf("%s: %s has lifecycle.prevent_destroy set and cannot be destroyed", r.Pos, addr)
	}
	return nil
}

// planInstance computes the change for one desired instance and the value
// other instances see when they reference it.
func (e *Engine) planInstance(inst *instance, prior *state.Instance, sc *scope) (*plan.Change, map[string]any, error) {
	r := inst.res
	impl, err := e.lookup(r.ProviderName(), r.Type)
	if err != nil {
		return nil, nil, err
	}

	v, err := expr.EvalValue(r.Properties, sc)
	if err != nil {
		return nil, nil, err
	}
	desired := impl.Schema.ApplyDefaults(asMap(v))
	if err := impl.Schema.Validate(desired); err != nil {
		return nil, nil, err
	}
	if impl.ValidateConfig != nil {
		if err := impl.ValidateConfig(desired); err != nil {
			return nil, nil, err
		}
	}

	in := plan.DiffInput{
		Schema:        impl.Schema,
		Desired:       desired,
		IgnoreChanges: r.Lifecycle.IgnoreChanges,
		Immutable:     impl.Update == nil,
	}
	if prior != nil {
		in.Prior = prior.Attributes
		if in.Prior == nil {
			in.Prior = map[string]any{}
		}
		in.Tainted = prior.Tainted
	}
	d := plan.Diff(in)
	if d.Action == plan.Replace {
		if err := e.checkPreventDestroy(inst.addr); err != nil {
			return nil, nil, err
		}
	}

	known, _ := plan.Known(desired)
	c := &plan.Change{
		Address:             inst.addr.String(),
		Type:                r.Type,
		Name:                r.Name,
		Provider:            r.ProviderName(),
		Action:              d.Action,
		After:               known,
		Unknown:             d.Unknown,
		Changed:             d.Changed,
		ReplaceReasons:      d.ReplaceReasons,
		Sensitive:           impl.Schema.SensitiveNames(),
		Dependencies:        inst.deps,
		CreateBeforeDestroy: r.Lifecycle.CreateBeforeDestroy,
	}
	if inst.addr.Index != addrs.NoIndex {
		idx := inst.addr.Index
		c.Index = &idx
	}
	if prior != nil {
		c.Before = prior.Attributes
	}
	return c, plannedObject(impl.Schema, d, prior, desired), nil
}

// plannedObject is the value of an instance after the planned action, with
// Unknown where the value is only known after apply.
func plannedObject(schema *provider.Schema, d plan.DiffResult, prior *state.Instance, desired map[string]any) map[string]any {
	obj := map[string]any{}
	switch d.Action {
	case plan.NoOp:
		obj = objectOf(prior)
	case plan.Update:
		obj = objectOf(prior)
		for _, k := range d.Changed {
			obj[k] = desired[k]
		}
	default:
		for k, v := range desired {
			obj[k] = v
		}
		for name, a := range schema.Attributes {
			if _, set := desired[name]; !set && a.Computed {
				obj[name] = expr.UnknownValue
			}
		}
		if _, set := obj["id"]; !set {
			obj["id"] = expr.UnknownValue
		}
	}
	for name := range schema.Attributes {
		if _, ok := obj[name]; !ok {
			obj[name] = nil
		}
	}
	return obj
}

func (e *Engine) deleteChange(st *state.State, si *state.Instance) *plan.Change {
	c := &plan.Change{
		Address:      si.Address,
		Type:         si.Type,
		Name:         si.Name,
		Index:        si.Index,
		Provider:     si.Provider,
		Action:       plan.Delete,
		Before:       si.Attributes,
		Sensitive:    si.SensitiveAttributes,
		Dependencies: recordedDependencies(st, si),
	}
	if impl, err := e.lookup(si.Provider, si.Type); err == nil {
		c.Sensitive = impl.Schema.SensitiveNames()
	}
	return c
}

// lookup returns a resource implementation from an unconfigured provider,
// for schema inspection only.
func (e *Engine) lookup(providerName, typ string) (*provider.Resource, error) {
	p, err := e.registry.New(providerName)
	if err != nil {
		return nil, err
	}
	impl, ok := p.Resources()[typ]
	if !ok {
		return nil, fmt.Errorf("provider %q does not support resource type %q", providerName, typ)
	}
	return impl, nil
}

// filterTargets keeps the changes selected by -target.
func filterTargets(changes []*plan.Change, targets []string, destroy bool) ([]*plan.Change, error) {
	g := graph.New()
	for _, c := range changes {
		g.Add(c.Address)
	}
	for _, c := range changes {
		for _, d := range c.Dependencies {
			if g.Has(d) {
				g.Connect(c.Address, d)
			}
		}
	}
	keep, err := plan.Targets(g, targets, destroy)
	if err != nil {
		return nil, err
	}
	var out []*plan.Change
	for _, c := range changes {
		if keep.Has(c.Address) {
			out = append(out, c)
		}
	}
	return out, nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}
