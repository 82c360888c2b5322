// Package provider defines the contract between the engine and the plugins
// that manage concrete resource types.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by Read (and may be returned by Delete) when the
// remote object no longer exists.
var ErrNotFound = errors.New("resource not found")

// Provider manages a family of resource types.
type Provider interface {
	// Name returns the provider name, the prefix of its resource types.
	Name() string
	// Configure is called once with the evaluated provider block before any
	// resource operation.
	Configure(ctx context.Context, config map[string]any) error
	// Resources returns the managed resource types keyed by type name.
	Resources() map[string]*Resource
}

// Resource implements the lifecycle of one resource type.
type Resource struct {
	Schema *Schema

	Create func(ctx context.Context, req *CreateRequest) (*Result, error)
	Read   func(ctx context.Context, req *ReadRequest) (*Result, error)
	// Update may be nil when every attribute is force_new or computed.
	Update func(ctx context.Context, req *UpdateRequest) (*Result, error)
	Delete func(ctx context.Context, req *DeleteRequest) error

	// ValidateConfig checks constraints spanning several attributes. It sees
	// values that may still be unknown or unevaluated and must skip those.
	ValidateConfig func(props map[string]any) error
}

// CreateRequest carries the evaluated properties of a new instance.
type CreateRequest struct {
	Stack      string
	Address    string
	Properties map[string]any
}

// ReadRequest refreshes an existing instance.
type ReadRequest struct {
	Stack      string
	Address    string
	ID         string
	Attributes map[string]any
}

// UpdateRequest changes an existing instance in place. Patch is a JSON merge
// patch from Prior to Desired restricted to configurable attributes.
type UpdateRequest struct {
	Stack   string
	Address string
	ID      string
	Prior   map[string]any
	Desired map[string]any
	Patch   []byte
}

// DeleteRequest removes an instance.
type DeleteRequest struct {
	Stack      string
	Address    string
	ID         string
	Attributes map[string]any
}

// Result is the remote view of an instance after an operation.
type Result struct {
	ID         string
	Attributes map[string]any
}

// Factory constructs an unconfigured provider.
type Factory func() Provider

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry from the given factories.
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register adds a factory, keyed by the name of the provider it builds.
func (r *Registry) Register(f Factory) {
	r.factories[f().Name()] = f
}

// New builds the named provider.
func (r *Registry) New(name string) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, r.Names())
	}
	return f(), nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resource returns a resource type of an unconfigured provider. It is used
// by validation, which runs before Configure.
func (r *Registry) Resource(providerName, typ string) (*Resource, error) {
	p, err := r.New(providerName)
	if err != nil {
		return nil, err
	}
	res, ok := p.Resources()[typ]
	if !ok {
		return nil, fmt.Errorf("provider %q does not support resource type %q", providerName, typ)
	}
	return res, nil
}

// Schema returns the schema of a resource type.
func (r *Registry) Schema(providerName, typ string) (*Schema, error) {
	res, err := r.Resource(providerName, typ)
	if err != nil {
		return nil, err
	}
	return res.Schema, nil
}
