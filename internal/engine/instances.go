package engine

import (
	"fmt"
	"sort"
	"strconv"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/graph"
	"github.com/imamik/converge/internal/state"
)

// instance is one desired resource instance.
type instance struct {
	addr addrs.Instance
	res  *config.Resource
	// deps are the instance addresses this instance depends on.
	deps []string
}

// expansion is the stack with count evaluated.
type expansion struct {
	// counts holds the count of counted resources and addrs.NoIndex for
	// the others.
	counts    map[addrs.Resource]int
	instances []*instance
	byAddr    map[string]*instance
}

// expand evaluates every count and computes instance dependencies from
// references and depends_on.
func (e *Engine) expand() (*expansion, error) {
	x := &expansion{
		counts: make(map[addrs.Resource]int, len(e.stack.Resources)),
		byAddr: make(map[string]*instance),
	}
	for _, r := range e.stack.Resources {
		n, err := e.count(r)
		if err != nil {
			return nil, err
		}
		x.counts[r.Addr()] = n
	}

	for _, r := range e.stack.Resources {
		deps, err := x.dependencies(r)
		if err != nil {
			return nil, err
		}
		for _, addr := range x.resourceInstances(r.Addr()) {
			inst := &instance{addr: addr, res: r, deps: deps}
			x.instances = append(x.instances, inst)
			x.byAddr[addr.String()] = inst
		}
	}
	sort.Slice(x.instances, func(i, j int) bool { return x.instances[i].addr.Less(x.instances[j].addr) })
	return x, nil
}

// count returns the evaluated count of r, or addrs.NoIndex when r has none.
func (e *Engine) count(r *config.Resource) (int, error) {
	if r.Count == nil {
		return addrs.NoIndex, nil
	}
	v, err := expr.EvalValue(r.Count, varScope(e.vars))
	if err != nil {
		return 0, fmt.Errorf("%s: %s: count: %w", r.Pos, r.Addr(), err)
	}
	if expr.IsUnknown(v) {
		return 0, fmt.Errorf("%s: %s: count must be known before apply", r.Pos, r.Addr())
	}
	if s, ok := v.(string); ok {
		v, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %s: count: %w", r.Pos, r.Addr(), err)
		}
	}
	n, err := expr.AsInt(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %s: count must be a non-negative whole number, got %v", r.Pos, r.Addr(), v)
	}
	return n, nil
}

// resourceInstances returns the desired instances of a resource.
func (x *expansion) resourceInstances(res addrs.Resource) []addrs.Instance {
	n, ok := x.counts[res]
	if !ok {
		return nil
	}
	if n == addrs.NoIndex {
		return []addrs.Instance{res.Instance(addrs.NoIndex)}
	}
	out := make([]addrs.Instance, n)
	for i := range n {
		out[i] = res.Instance(i)
	}
	return out
}

func (x *expansion) dependencies(r *config.Resource) ([]string, error) {
	exprs, err := expr.ValueExprs(r.Properties)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", r.Pos, r.Addr(), err)
	}
	deps := sets.New[string]()
	for _, ref := range expr.References(exprs...) {
		target := addrs.Resource{Type: ref.Type, Name: ref.Name}
		if ref.Index != nil && x.counts[target] != addrs.NoIndex {
			if *ref.Index < x.counts[target] {
				deps.Insert(target.Instance(*ref.Index).String())
			}
			continue
		}
		for _, a := range x.resourceInstances(target) {
			deps.Insert(a.String())
		}
	}
	for _, d := range r.DependsOn {
		for _, a := range x.resourceInstances(d) {
			deps.Insert(a.String())
		}
	}
	return sets.List(deps), nil
}

// graph returns the dependency graph of the desired instances.
func (x *expansion) graph() *graph.Graph {
	g := graph.New()
	for _, inst := range x.instances {
		g.Add(inst.addr.String())
	}
	for _, inst := range x.instances {
		for _, d := range inst.deps {
			g.Connect(inst.addr.String(), d)
		}
	}
	return g
}

// recordedDependencies expands the resource addresses stored with a state
// instance to the instance addresses present in st.
func recordedDependencies(st *state.State, inst *state.Instance) []string {
	deps := sets.New[string]()
	for _, d := range inst.Dependencies {
		res, err := addrs.ParseResource(d)
		if err != nil {
			continue
		}
		for _, other := range st.Instances(res) {
			deps.Insert(other.Address)
		}
	}
	return sets.List(deps)
}

// resourceDependencies reduces instance addresses to sorted resource
// addresses for recording in state.
func resourceDependencies(deps []string) []string {
	out := sets.New[string]()
	for _, d := range deps {
		if a, err := addrs.ParseInstance(d); err == nil {
			out.Insert(a.Resource.String())
		}
	}
	return sets.List(out)
}
