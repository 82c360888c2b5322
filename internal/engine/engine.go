// Package engine reconciles a stack with its recorded state. It refreshes
// recorded instances through their providers, plans create, update, replace
// and delete actions, and applies a plan by walking the dependency graph in
// parallel while persisting state after every completed operation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/state"
)

// Engine runs operations for one stack against one state.
type Engine struct {
	stack     *config.Stack
	vars      map[string]any
	registry  *provider.Registry
	states    *state.Manager
	settings  *config.Settings
	observer  observability.Observer
	metrics   *observability.Metrics
	stackName string
	version   string

	mu        sync.Mutex
	providers map[string]provider.Provider
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettings overrides the default engine settings.
func WithSettings(s *config.Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithObserver sets where engine events go.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithMetrics records provider operations into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithVersion sets the running converge version, checked against the
// stack's required_version.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// WithStackName sets the stack name passed to providers for labeling.
func WithStackName(name string) Option {
	return func(e *Engine) { e.stackName = name }
}

// New creates an engine. vars are the resolved input variables.
func New(stack *config.Stack, vars map[string]any, registry *provider.Registry, states *state.Manager, opts ...Option) *Engine {
	e := &Engine{
		stack:     stack,
		vars:      vars,
		registry:  registry,
		states:    states,
		settings:  config.DefaultSettings(),
		observer:  observability.NewRecorder(),
		stackName: "default",
		providers: make(map[string]provider.Provider),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.vars == nil {
		e.vars = map[string]any{}
	}
	return e
}

// Stack returns the configuration the engine was built with.
func (e *Engine) Stack() *config.Stack { return e.stack }

// Variables returns the resolved input variables.
func (e *Engine) Variables() map[string]any { return e.vars }

// withLock runs fn while holding the state lock.
func (e *Engine) withLock(ctx context.Context, operation string, fn func() error) (err error) {
	unlock, err := e.states.Lock(ctx, operation)
	if err != nil {
		return fmt.Errorf("failed to lock state: %w", err)
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release state lock: %w", uerr))
		}
	}()
	return fn()
}

// provider returns the named provider, configuring it on first use with the
// stack's provider block.
func (e *Engine) provider(ctx context.Context, name string) (provider.Provider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.providers[name]; ok {
		return p, nil
	}
	p, err := e.registry.New(name)
	if err != nil {
		return nil, err
	}

	cfg := map[string]any{}
	if block, ok := e.stack.Providers[name]; ok && block.Config != nil {
		v, err := expr.EvalValue(block.Config, varScope(e.vars))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		cfg = v.(map[string]any)
	}
	if err := p.Configure(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to configure provider %s: %w", name, err)
	}
	e.providers[name] = p
	return p, nil
}

// resource returns the implementation of a resource type.
func (e *Engine) resource(ctx context.Context, providerName, typ string) (*provider.Resource, error) {
	p, err := e.provider(ctx, providerName)
	if err != nil {
		return nil, err
	}
	res, ok := p.Resources()[typ]
	if !ok {
		return nil, fmt.Errorf("provider %q does not support resource type %q", providerName, typ)
	}
	return res, nil
}
