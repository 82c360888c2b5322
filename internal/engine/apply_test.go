package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/provider/providertest"
	"github.com/imamik/converge/internal/state"
)

func TestApply_PartialFailureSkipsDependents(t *testing.T) {
	f := newFixture()
	f.provider.Fail(providertest.OpCreate, "test_thing.sub[0]", errors.New("quota exceeded"))

	_, err := f.converge(layeredStack, PlanOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_thing.sub[0]: create: quota exceeded")

	assert.NotContains(t, f.addressesFor(providertest.OpCreate), "test_thing.vm")
	assert.Len(t, f.provider.CallsFor(providertest.OpCreate), 3, "a plain failure is not retried")

	st := f.state()
	assert.Equal(t, []string{"test_thing.net", "test_thing.sub[1]"}, st.Addresses())
	assert.Empty(t, st.Outputs)

	skipped := f.recorder.OfType(observability.EventResourceSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "test_thing.vm", skipped[0].Resource)
	assert.Equal(t, "skipped: dependency test_thing.sub[0] failed", skipped[0].Message)
}

func TestApply_TaintsPartiallyCreatedInstance(t *testing.T) {
	f := newFixture()
	f.provider.FailAfterCreate("test_thing.net", errors.New("boot failed"))

	_, err := f.converge(layeredStack, PlanOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot failed")

	st := f.state()
	require.Equal(t, []string{"test_thing.net"}, st.Addresses())
	assert.True(t, st.Get("test_thing.net").Tainted)

	e, err := f.engine(layeredStack)
	require.NoError(t, err)
	p, err := e.Plan(context.Background(), PlanOptions{})
	require.NoError(t, err)
	c := p.Change("test_thing.net")
	assert.Equal(t, plan.Replace, c.Action)
	assert.Equal(t, []string{plan.TaintedReason}, c.ReplaceReasons)

	require.NoError(t, e.Apply(context.Background(), p))
	assert.False(t, f.state().Get("test_thing.net").Tainted)
	assert.Equal(t, 4, f.provider.Objects())
}

func TestApply_RetriesThrottledCalls(t *testing.T) {
	f := newFixture()
	f.provider.Throttle(providertest.OpCreate, "test_thing.net", 2)

	_, err := f.converge(layeredStack, PlanOptions{})
	require.NoError(t, err)

	netCreates := 0
	for _, a := range f.addressesFor(providertest.OpCreate) {
		if a == "test_thing.net" {
			netCreates++
		}
	}
	assert.Equal(t, 3, netCreates)
	assert.Len(t, f.recorder.OfType(observability.EventResourceRetry), 2)
}

func TestApply_GivesUpOnPersistentThrottling(t *testing.T) {
	f := newFixture()
	f.settings.Retry.MaxAttempts = 2
	f.provider.Throttle(providertest.OpCreate, "test_thing.net", 5)

	_, err := f.converge(layeredStack, PlanOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation failed after 2 attempts")
	assert.Len(t, f.provider.CallsFor(providertest.OpCreate), 2)
}

func TestApply_RefusesStalePlan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e, err := f.engine(layeredStack)
	require.NoError(t, err)

	first, err := e.Plan(ctx, PlanOptions{})
	require.NoError(t, err)
	second, err := e.Plan(ctx, PlanOptions{})
	require.NoError(t, err)
	require.NoError(t, e.Apply(ctx, second))

	err = e.Apply(ctx, first)
	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrStale)
}

func TestApply_SavedPlanRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e, err := f.engine(layeredStack)
	require.NoError(t, err)

	p, err := e.Plan(ctx, PlanOptions{})
	require.NoError(t, err)
	data, err := plan.Encode(p)
	require.NoError(t, err)
	loaded, err := plan.Decode(data)
	require.NoError(t, err)

	require.NoError(t, e.Apply(ctx, loaded))
	assert.Len(t, f.state().Resources, 4)
}

func TestApply_BoundedParallelism(t *testing.T) {
	f := newFixture()
	f.settings.Parallelism = 3
	f.provider.Latency = 20 * time.Millisecond

	src := `
resources:
  - type: test_thing
    name: many
    count: 8
    properties:
      name: many-${count.index}
`
	_, err := f.converge(src, PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, f.provider.Objects())
	assert.LessOrEqual(t, f.provider.PeakConcurrency(), 3)
	assert.Greater(t, f.provider.PeakConcurrency(), 1)
}

func TestApply_CancelledContextKeepsCompletedWork(t *testing.T) {
	f := newFixture()
	f.settings.Parallelism = 1
	f.provider.Latency = 30 * time.Millisecond

	e, err := f.engine(layeredStack)
	require.NoError(t, err)
	p, err := e.Plan(context.Background(), PlanOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()
	err = e.Apply(ctx, p)
	require.Error(t, err)

	st := f.state()
	assert.Equal(t, f.provider.Objects(), len(st.Resources), "state records every object that was created")
}

func TestPlan_RefreshDropsVanishedInstances(t *testing.T) {
	f := newFixture()
	_, err := f.converge(layeredStack, PlanOptions{})
	require.NoError(t, err)
	f.provider.Remove(f.state().Get("test_thing.net").ID)

	e, err := f.engine(layeredStack)
	require.NoError(t, err)
	p, err := e.Plan(context.Background(), PlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, plan.Create, p.Change("test_thing.net").Action)
	assert.Equal(t, plan.Update, p.Change("test_thing.sub[0]").Action)
	drifted := f.recorder.OfType(observability.EventResourceDrifted)
	require.Len(t, drifted, 1)
	assert.Equal(t, "test_thing.net", drifted[0].Resource)

	p, err = e.Plan(context.Background(), PlanOptions{SkipRefresh: true})
	require.NoError(t, err)
	assert.False(t, p.HasChanges(), "without refresh the stored state still has the instance")
}

func TestPlan_PreventDestroy(t *testing.T) {
	f := newFixture()
	src := `
resources:
  - type: test_thing
    name: keep
    lifecycle:
      prevent_destroy: true
    properties:
      name: keep
      zone: z1
`
	_, err := f.converge(src, PlanOptions{})
	require.NoError(t, err)

	e, err := f.engine(src)
	require.NoError(t, err)
	_, err = e.Plan(context.Background(), PlanOptions{Destroy: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prevent_destroy")

	e, err = f.engine(strings.Replace(src, "zone: z1", "zone: z2", 1))
	require.NoError(t, err)
	_, err = e.Plan(context.Background(), PlanOptions{})
	require.Error(t, err, "replacement destroys the instance too")
}

func TestPlan_Targets(t *testing.T) {
	f := newFixture()
	e, err := f.engine(layeredStack)
	require.NoError(t, err)

	p, err := e.Plan(context.Background(), PlanOptions{Targets: []string{"test_thing.sub[1]"}})
	require.NoError(t, err)
	var got []string
	for _, c := range p.Changes {
		got = append(got, c.Address)
	}
	assert.Equal(t, []string{"test_thing.net", "test_thing.sub[1]"}, got)

	_, err = e.Plan(context.Background(), PlanOptions{Targets: []string{"test_thing.nope"}})
	require.Error(t, err)
}

func TestPlan_UpdateIgnoresListedAttributes(t *testing.T) {
	f := newFixture()
	src := `
variables:
  env:
    type: string
    default: dev
resources:
  - type: test_thing
    name: a
    lifecycle:
      ignore_changes: [tags]
    properties:
      name: a
      tags:
        env: ${var.env}
`
	_, err := f.converge(src, PlanOptions{})
	require.NoError(t, err)

	p, err := f.converge(src, PlanOptions{}, "env=prod")
	require.NoError(t, err)
	assert.False(t, p.HasChanges())
}

func TestRefresh_PersistsDrift(t *testing.T) {
	f := newFixture()
	_, err := f.converge(layeredStack, PlanOptions{})
	require.NoError(t, err)
	before := f.state()
	net := before.Get("test_thing.net")
	f.provider.Set(net.ID, "size", 7.0)

	e, err := f.engine(layeredStack)
	require.NoError(t, err)
	require.NoError(t, e.Refresh(context.Background()))

	after := f.state()
	assert.Equal(t, 7.0, after.Get("test_thing.net").Attributes["size"])
	assert.Equal(t, before.Serial+1, after.Serial)
	assert.Equal(t, net.ID, after.Outputs["net_id"].Value)
}

func TestRefresh_ReadTimeout(t *testing.T) {
	f := newFixture()
	_, err := f.converge(layeredStack, PlanOptions{})
	require.NoError(t, err)

	f.provider.ResetCalls()
	f.settings.Timeouts.Read = 20 * time.Millisecond
	f.provider.Latency = 500 * time.Millisecond

	e, err := f.engine(layeredStack)
	require.NoError(t, err)
	err = e.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read timed out after 20ms")
	assert.Len(t, f.provider.CallsFor(providertest.OpRead), 4, "timeouts are not retried")
}

func TestValidate(t *testing.T) {
	f := newFixture()
	src := `
required_version: ">= 9.0.0"
resources:
  - type: test_thing
    name: a
    properties:
      name: a
      bogus: 1
  - type: test_thing
    name: b
    properties:
      name: ${test_thing.a.nope}
  - type: other_thing
    name: c
    properties: {}
`
	e, err := f.engine(src)
	require.NoError(t, err)
	err = e.Validate(context.Background())
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "required_version")
	assert.Contains(t, msg, `unsupported argument "bogus"`)
	assert.Contains(t, msg, `test_thing.a has no attribute "nope"`)
	assert.Contains(t, msg, `unknown provider "other"`)
}

func TestValidate_Cycle(t *testing.T) {
	f := newFixture()
	src := `
resources:
  - type: test_thing
    name: a
    properties:
      name: ${test_thing.b.id}
  - type: test_thing
    name: b
    depends_on: [test_thing.a]
    properties:
      name: b
`
	e, err := f.engine(src)
	require.NoError(t, err)
	err = e.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestGraph(t *testing.T) {
	f := newFixture()
	e, err := f.engine(layeredStack)
	require.NoError(t, err)

	g, err := e.Graph(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_thing.sub[0]", "test_thing.sub[1]"}, g.Dependencies("test_thing.vm"))

	require.NoError(t, e.Apply(context.Background(), mustPlan(t, e)))
	g, err = e.Graph(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_thing.sub[0] (destroy)", "test_thing.sub[1] (destroy)"}, g.Dependencies("test_thing.net (destroy)"))
}

func mustPlan(t *testing.T, e *Engine) *plan.Plan {
	t.Helper()
	p, err := e.Plan(context.Background(), PlanOptions{})
	require.NoError(t, err)
	return p
}

func change(address string, action plan.Action, deps ...string) *plan.Change {
	a, err := addrs.ParseInstance(address)
	if err != nil {
		panic(err)
	}
	return &plan.Change{Address: address, Type: a.Type, Name: a.Name, Provider: "test", Action: action, Dependencies: deps}
}

func stateWith(addresses ...string) *state.State {
	st := state.New()
	for i, address := range addresses {
		a, _ := addrs.ParseInstance(address)
		inst := state.NewInstance(a, "test")
		inst.ID = fmt.Sprintf("id-%d", i)
		st.Set(inst)
	}
	return st
}

func TestBuildGraph_ReplaceOrdering(t *testing.T) {
	p := plan.New("", 0)
	p.Add(change("test_thing.x", plan.Replace))
	p.Add(change("test_thing.y", plan.Replace, "test_thing.x"))
	a := &applier{p: p, st: stateWith("test_thing.x", "test_thing.y")}

	g, err := a.buildGraph()
	require.NoError(t, err)
	order, err := g.TopoOrder()
	require.NoError(t, err)
	pos := func(id string) int { return indexOf(order, id) }

	assert.Less(t, pos("test_thing.y (destroy)"), pos("test_thing.x (destroy)"))
	assert.Less(t, pos("test_thing.x (destroy)"), pos("test_thing.x"))
	assert.Less(t, pos("test_thing.x"), pos("test_thing.y"))
	assert.Less(t, pos("test_thing.y (destroy)"), pos("test_thing.y"))
}

func TestBuildGraph_CreateBeforeDestroy(t *testing.T) {
	p := plan.New("", 0)
	x := change("test_thing.x", plan.Replace)
	x.CreateBeforeDestroy = true
	p.Add(x)
	p.Add(change("test_thing.y", plan.Update, "test_thing.x"))
	a := &applier{p: p, st: stateWith("test_thing.x", "test_thing.y")}

	g, err := a.buildGraph()
	require.NoError(t, err)
	assert.Equal(t, []string{"test_thing.x", "test_thing.y"}, g.Dependencies("test_thing.x (destroy)"))
	assert.Equal(t, []string{"test_thing.x"}, g.Dependencies("test_thing.y"))
}

func TestBuildGraph_PropagatesCreateBeforeDestroy(t *testing.T) {
	p := plan.New("", 0)
	p.Add(change("test_thing.x", plan.Replace))
	y := change("test_thing.y", plan.Replace, "test_thing.x")
	y.CreateBeforeDestroy = true
	p.Add(y)
	a := &applier{p: p, st: stateWith("test_thing.x", "test_thing.y")}

	_, err := a.buildGraph()
	require.NoError(t, err)
	assert.True(t, p.Change("test_thing.x").CreateBeforeDestroy)
}

func TestMergePatch(t *testing.T) {
	patch, err := mergePatch(providertest.ThingSchema(),
		map[string]any{"name": "a", "size": 1.0, "tags": map[string]any{"k": "v"}, "id": "x"},
		map[string]any{"name": "a", "size": 2.0},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"size": 2, "tags": null}`, string(patch))
}

func TestKeepIgnored(t *testing.T) {
	got := keepIgnored(
		map[string]any{"name": "a", "tags": map[string]any{"env": "prod"}, "items": []any{"x"}},
		map[string]any{"tags": map[string]any{"env": "dev"}},
		[]string{"tags", "items"},
	)
	assert.Equal(t, map[string]any{"name": "a", "tags": map[string]any{"env": "dev"}}, got)
}
