package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/graph"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/state"
	"github.com/imamik/converge/internal/util/retry"
)

const phaseApply = "apply"

type opKind int

const (
	opApply opKind = iota
	opDelete
)

// op is one node of the execution graph.
type op struct {
	kind   opKind
	change *plan.Change
	// prior is the recorded instance a delete removes.
	prior *state.Instance
}

func applyNode(address string) string  { return address }
func deleteNode(address string) string { return address + " (destroy)" }

// Apply executes a plan. The plan must have been computed against the
// currently stored state. State is written after every successful
// operation, so a failed apply leaves a state describing exactly what
// exists; operations depending on a failed one are skipped and the errors
// are returned joined.
func (e *Engine) Apply(ctx context.Context, p *plan.Plan) error {
	return e.withLock(ctx, "apply", func() error {
		stored, err := e.states.Read(ctx)
		if err != nil {
			return err
		}
		if err := p.CheckFresh(lineageOf(stored), stored.Serial); err != nil {
			return err
		}
		working := stored
		if p.Prior != nil {
			working = p.Prior.DeepCopy()
			working.Serial = stored.Serial
			if stored.Serial > 0 {
				working.Lineage = stored.Lineage
			}
		}
		return e.apply(ctx, p, working)
	})
}

type applier struct {
	e   *Engine
	p   *plan.Plan
	x   *expansion
	ops map[string]*op

	mu    sync.Mutex
	st    *state.State
	done  int
	total int
}

func (e *Engine) apply(ctx context.Context, p *plan.Plan, st *state.State) error {
	x, err := e.expand()
	if err != nil {
		return err
	}
	a := &applier{e: e, p: p, x: x, st: st}
	g, err := a.buildGraph()
	if err != nil {
		return err
	}
	a.total = g.Len()

	start := time.Now()
	observability.LogPhaseStart(e.observer, phaseApply)
	walkErr := g.Walk(ctx, graph.Walker{
		Parallelism: e.settings.Parallelism,
		Visit:       a.visit,
		Skip:        a.skip,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if walkErr == nil {
		if p.Destroy {
			st.Outputs = map[string]*state.OutputValue{}
		} else if outputs, err := e.outputs(x, st); err != nil {
			walkErr = err
		} else {
			st.Outputs = outputs
		}
	}
	if err := e.states.Write(context.WithoutCancel(ctx), st); err != nil {
		walkErr = errors.Join(walkErr, fmt.Errorf("failed to persist state: %w", err))
	}
	e.metrics.SetStateResources(len(st.Resources))

	if walkErr != nil {
		observability.LogPhaseFailed(e.observer, phaseApply, walkErr)
		return walkErr
	}
	observability.LogPhaseComplete(e.observer, phaseApply, time.Since(start))
	return nil
}

// buildGraph turns the plan into operation nodes. Creates and updates wait
// for the creates and updates of their dependencies. A delete waits for the
// deletes of everything depending on it. A replace deletes before creating
// unless create_before_destroy is set, in which case the old instance is
// deleted last, after its dependents were updated.
func (a *applier) buildGraph() (*graph.Graph, error) {
	propagateCreateBeforeDestroy(a.p)

	g := graph.New()
	a.ops = make(map[string]*op)
	dependents := make(map[string][]string)
	for _, c := range a.p.Changes {
		for _, d := range c.Dependencies {
			dependents[d] = append(dependents[d], c.Address)
		}
		switch c.Action {
		case plan.Create, plan.Update:
			a.addOp(g, applyNode(c.Address), &op{kind: opApply, change: c})
		case plan.Delete:
			a.addOp(g, deleteNode(c.Address), &op{kind: opDelete, change: c, prior: a.priorOf(c.Address)})
		case plan.Replace:
			a.addOp(g, applyNode(c.Address), &op{kind: opApply, change: c})
			a.addOp(g, deleteNode(c.Address), &op{kind: opDelete, change: c, prior: a.priorOf(c.Address)})
		}
	}

	for _, c := range a.p.Changes {
		apply, del := applyNode(c.Address), deleteNode(c.Address)
		if g.Has(apply) {
			for _, d := range c.Dependencies {
				if g.Has(applyNode(d)) {
					g.Connect(apply, applyNode(d))
				}
			}
		}
		if g.Has(apply) && g.Has(del) {
			if c.CreateBeforeDestroy {
				g.Connect(del, apply)
			} else {
				g.Connect(apply, del)
			}
		}
		if g.Has(del) {
			for _, y := range dependents[c.Address] {
				if g.Has(deleteNode(y)) {
					g.Connect(del, deleteNode(y))
				}
				if c.CreateBeforeDestroy && g.Has(applyNode(y)) {
					g.Connect(del, applyNode(y))
				}
			}
		}
	}

	if cycle := g.Cycle(); cycle != nil {
		return nil, fmt.Errorf("cannot order changes: %w", &graph.CycleError{Path: cycle})
	}
	return g, nil
}

func (a *applier) addOp(g *graph.Graph, id string, o *op) {
	g.Add(id)
	a.ops[id] = o
}

func (a *applier) priorOf(address string) *state.Instance {
	inst := a.st.Get(address)
	if inst == nil {
		return nil
	}
	c := *inst
	return &c
}

// propagateCreateBeforeDestroy extends create_before_destroy to the replaced
// dependencies of a create_before_destroy replacement; the opposite orders
// cannot both hold.
func propagateCreateBeforeDestroy(p *plan.Plan) {
	for changed := true; changed; {
		changed = false
		for _, c := range p.Changes {
			if c.Action != plan.Replace || !c.CreateBeforeDestroy {
				continue
			}
			for _, d := range c.Dependencies {
				dc := p.Change(d)
				if dc != nil && dc.Action == plan.Replace && !dc.CreateBeforeDestroy {
					dc.CreateBeforeDestroy = true
					changed = true
				}
			}
		}
	}
}

func (a *applier) visit(ctx context.Context, id string) error {
	o := a.ops[id]
	var err error
	if o.kind == opDelete {
		err = a.delete(ctx, o)
	} else {
		err = a.applyInstance(ctx, o)
	}

	a.mu.Lock()
	a.done++
	a.e.observer.Progress(phaseApply, a.done, a.total)
	a.mu.Unlock()
	return err
}

func (a *applier) skip(id, cause string) {
	o := a.ops[id]
	causeAddr := ""
	if c, ok := a.ops[cause]; ok {
		causeAddr = c.change.Address
	}
	observability.LogResourceSkipped(a.e.observer, phaseApply, o.change.Address, string(o.action()), causeAddr)
}

func (o *op) action() plan.Action {
	switch {
	case o.kind == opDelete:
		return plan.Delete
	case o.change.Action == plan.Update:
		return plan.Update
	default:
		return plan.Create
	}
}

// evaluate re-evaluates the properties of an instance against the live
// state, resolving values that were unknown at plan time.
func (a *applier) evaluate(c *plan.Change, schema *provider.Schema) (map[string]any, error) {
	addr := c.Addr()
	r := a.e.stack.Resource(addr.Resource)
	if r == nil {
		return nil, fmt.Errorf("%s is no longer declared in configuration", addr.Resource)
	}

	a.mu.Lock()
	v, err := expr.EvalValue(r.Properties, a.e.stateScope(a.x, a.st).forInstance(addr.Index))
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	props := asMap(v)
	if expr.ContainsUnknown(props) {
		return nil, errors.New("configuration still refers to values that are not known")
	}
	desired := schema.ApplyDefaults(props)
	if err := schema.Validate(desired); err != nil {
		return nil, err
	}
	return desired, nil
}

func (a *applier) applyInstance(ctx context.Context, o *op) error {
	c := o.change
	action := o.action()
	startEvent, doneEvent := observability.EventResourceCreating, observability.EventResourceCreated
	if action == plan.Update {
		startEvent, doneEvent = observability.EventResourceUpdating, observability.EventResourceUpdated
	}
	observability.LogResourceStarted(a.e.observer, phaseApply, startEvent, c.Address, string(action))
	start := time.Now()

	res, tainted, err := a.doApply(ctx, o)
	if res != nil && (err == nil || tainted) {
		if rerr := a.record(ctx, c, res, tainted); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	if err != nil {
		observability.LogResourceFailed(a.e.observer, phaseApply, c.Address, string(action), err, time.Since(start))
		return fmt.Errorf("%s: %s: %w", c.Address, action, err)
	}
	observability.LogResourceDone(a.e.observer, phaseApply, doneEvent, c.Address, string(action), res.ID, time.Since(start))
	return nil
}

// doApply performs the provider call of a create or update. tainted is set
// when a create failed after the resource came into existence.
func (a *applier) doApply(ctx context.Context, o *op) (*provider.Result, bool, error) {
	c := o.change
	impl, err := a.e.resource(ctx, c.Provider, c.Type)
	if err != nil {
		return nil, false, err
	}
	desired, err := a.evaluate(c, impl.Schema)
	if err != nil {
		return nil, false, err
	}
	timeouts := a.e.settings.Timeouts

	if o.action() == plan.Update {
		a.mu.Lock()
		cur := a.st.Get(c.Address)
		var current *state.Instance
		if cur != nil {
			cp := *cur
			current = &cp
		}
		a.mu.Unlock()
		if current == nil {
			return nil, false, errors.New("instance is not in state")
		}
		r := a.e.stack.Resource(c.Addr().Resource)
		desired = keepIgnored(desired, current.Attributes, r.Lifecycle.IgnoreChanges)
		patch, err := mergePatch(impl.Schema, current.Attributes, desired)
		if err != nil {
			return nil, false, err
		}
		var res *provider.Result
		err = a.e.call(ctx, phaseApply, "update", c.Type, c.Address, timeouts.Update, func(ctx context.Context) error {
			var err error
			res, err = impl.Update(ctx, &provider.UpdateRequest{
				Stack:   a.e.stackName,
				Address: c.Address,
				ID:      current.ID,
				Prior:   current.Attributes,
				Desired: desired,
				Patch:   patch,
			})
			return err
		})
		if err != nil {
			return nil, false, err
		}
		return withDefaults(res, current.ID, desired), false, nil
	}

	var res *provider.Result
	err = a.e.call(ctx, phaseApply, "create", c.Type, c.Address, timeouts.Create, func(ctx context.Context) error {
		r, err := impl.Create(ctx, &provider.CreateRequest{
			Stack:      a.e.stackName,
			Address:    c.Address,
			Properties: desired,
		})
		if r != nil {
			res = r
		}
		if err != nil && r != nil && r.ID != "" {
			// The object exists; retrying would create a second one.
			return retry.Fatal(err)
		}
		return err
	})
	if err != nil {
		if res != nil && res.ID != "" {
			return withDefaults(res, res.ID, desired), true, err
		}
		return nil, false, err
	}
	return withDefaults(res, "", desired), false, nil
}

// record stores the result of a create or update and persists the state.
func (a *applier) record(ctx context.Context, c *plan.Change, res *provider.Result, tainted bool) error {
	inst := state.NewInstance(c.Addr(), c.Provider)
	inst.ID = res.ID
	inst.Attributes = res.Attributes
	inst.SensitiveAttributes = c.Sensitive
	inst.Dependencies = resourceDependencies(c.Dependencies)
	inst.Tainted = tainted

	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.Set(inst)
	return a.persist(ctx)
}

func (a *applier) delete(ctx context.Context, o *op) error {
	c := o.change
	observability.LogResourceStarted(a.e.observer, phaseApply, observability.EventResourceDeleting, c.Address, string(plan.Delete))
	start := time.Now()
	if o.prior == nil {
		observability.LogResourceDone(a.e.observer, phaseApply, observability.EventResourceDeleted, c.Address, string(plan.Delete), "", 0)
		return nil
	}

	err := a.deleteInstance(ctx, o.prior)
	if err == nil {
		a.mu.Lock()
		if cur := a.st.Get(c.Address); cur != nil && cur.ID == o.prior.ID {
			a.st.Remove(c.Address)
		}
		err = a.persist(ctx)
		a.mu.Unlock()
	}
	if err != nil {
		observability.LogResourceFailed(a.e.observer, phaseApply, c.Address, string(plan.Delete), err, time.Since(start))
		return fmt.Errorf("%s: delete: %w", c.Address, err)
	}
	observability.LogResourceDone(a.e.observer, phaseApply, observability.EventResourceDeleted, c.Address, string(plan.Delete), o.prior.ID, time.Since(start))
	return nil
}

func (a *applier) deleteInstance(ctx context.Context, prior *state.Instance) error {
	impl, err := a.e.resource(ctx, prior.Provider, prior.Type)
	if err != nil {
		return err
	}
	err = a.e.call(ctx, phaseApply, "delete", prior.Type, prior.Address, a.e.settings.Timeouts.Delete, func(ctx context.Context) error {
		return impl.Delete(ctx, &provider.DeleteRequest{
			Stack:      a.e.stackName,
			Address:    prior.Address,
			ID:         prior.ID,
			Attributes: prior.Attributes,
		})
	})
	if errors.Is(err, provider.ErrNotFound) {
		return nil
	}
	return err
}

// persist writes the working state. The caller holds a.mu. Completed
// operations are recorded even when ctx was cancelled.
func (a *applier) persist(ctx context.Context) error {
	if err := a.e.states.Write(context.WithoutCancel(ctx), a.st); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	a.e.metrics.SetStateResources(len(a.st.Resources))
	return nil
}

// withDefaults fills in what a provider result left out.
func withDefaults(res *provider.Result, id string, desired map[string]any) *provider.Result {
	out := &provider.Result{ID: id}
	if res != nil {
		if res.ID != "" {
			out.ID = res.ID
		}
		out.Attributes = res.Attributes
	}
	if out.Attributes == nil {
		out.Attributes = make(map[string]any, len(desired)+1)
		for k, v := range desired {
			out.Attributes[k] = v
		}
		out.Attributes["id"] = out.ID
	}
	return out
}

// keepIgnored replaces attributes listed in ignore_changes with their
// recorded values.
func keepIgnored(desired, prior map[string]any, ignore []string) map[string]any {
	if len(ignore) == 0 {
		return desired
	}
	out := make(map[string]any, len(desired))
	for k, v := range desired {
		out[k] = v
	}
	for _, name := range ignore {
		if v, ok := prior[name]; ok {
			out[name] = v
		} else {
			delete(out, name)
		}
	}
	return out
}

// mergePatch returns the JSON merge patch turning the configurable part of
// prior into desired.
func mergePatch(schema *provider.Schema, prior, desired map[string]any) ([]byte, error) {
	from := map[string]any{}
	for k, v := range prior {
		if a := schema.Attribute(k); a != nil && a.Configurable() {
			from[k] = v
		}
	}
	to := map[string]any{}
	for k, v := range desired {
		if a := schema.Attribute(k); a != nil && a.Configurable() {
			to[k] = v
		}
	}
	original, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	modified, err := json.Marshal(to)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, fmt.Errorf("failed to compute patch: %w", err)
	}
	return patch, nil
}

// Graph returns the dependency graph of the desired instances, or for a
// destroy the deletion order of the recorded instances.
func (e *Engine) Graph(ctx context.Context, destroy bool) (*graph.Graph, error) {
	if !destroy {
		x, err := e.expand()
		if err != nil {
			return nil, err
		}
		return x.graph(), nil
	}
	st, err := e.states.Read(ctx)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, si := range st.Resources {
		g.Add(deleteNode(si.Address))
	}
	for _, si := range st.Resources {
		for _, d := range recordedDependencies(st, si) {
			g.Connect(deleteNode(d), deleteNode(si.Address))
		}
	}
	return g, nil
}
