package engine

import (
	"context"
	"time"

	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/provider/providertest"
	"github.com/imamik/converge/internal/state"
)

// layeredStack is net <- sub[0..1] <- vm.
const layeredStack = `
variables:
  size:
    type: number
    default: 1
  zone:
    type: string
    default: z1
providers:
  test:
    endpoint: mem://${var.zone}
resources:
  - type: test_thing
    name: net
    properties:
      name: net
      zone: ${var.zone}
  - type: test_thing
    name: sub
    count: 2
    properties:
      name: sub-${count.index}
      ref: ${test_thing.net.id}
      size: ${var.size}
  - type: test_thing
    name: vm
    properties:
      name: vm
      ref: ${test_thing.sub[0].arn}
      items: ${test_thing.sub[*].id}
outputs:
  net_id:
    value: ${test_thing.net.id}
`

type fixture struct {
	provider *providertest.Provider
	backend  *state.MemoryBackend
	states   *state.Manager
	recorder *observability.Recorder
	metrics  *observability.Metrics
	settings *config.Settings
}

func newFixture() *fixture {
	settings := config.DefaultSettings()
	settings.Parallelism = 4
	settings.Retry.InitialDelay = time.Millisecond
	settings.Retry.MaxDelay = 2 * time.Millisecond

	backend := state.NewMemoryBackend()
	return &fixture{
		provider: providertest.New(),
		backend:  backend,
		states:   state.NewManager(backend),
		recorder: observability.NewRecorder(),
		metrics:  observability.NewMetrics(),
		settings: settings,
	}
}

// engine builds an engine for src with -var style assignments.
func (f *fixture) engine(src string, vars ...string) (*Engine, error) {
	stack, err := config.Parse("stack.yaml", []byte(src))
	if err != nil {
		return nil, err
	}
	resolved, err := config.ResolveVariables(stack, config.VarInputs{Flags: vars})
	if err != nil {
		return nil, err
	}
	return New(stack, resolved, provider.NewRegistry(f.provider.Factory()), f.states,
		WithSettings(f.settings),
		WithObserver(f.recorder),
		WithMetrics(f.metrics),
		WithStackName("test"),
		WithVersion("0.1.0"),
	), nil
}

// converge plans and applies src.
func (f *fixture) converge(src string, opts PlanOptions, vars ...string) (*plan.Plan, error) {
	ctx := context.Background()
	e, err := f.engine(src, vars...)
	if err != nil {
		return nil, err
	}
	p, err := e.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p, e.Apply(ctx, p)
}

func (f *fixture) state() *state.State {
	st, err := state.NewManager(f.backend).Read(context.Background())
	if err != nil {
		panic(err)
	}
	return st
}

// addressesFor returns the addresses of op calls, in call order.
func (f *fixture) addressesFor(op string) []string {
	var out []string
	for _, c := range f.provider.CallsFor(op) {
		out = append(out, c.Address)
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
