// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/imamik/converge/internal/provider"
)

// Operation names used in the call log and for failure injection.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ThingType is the default resource type of a provider built with New.
const ThingType = "test_thing"

// Call is one recorded provider call.
type Call struct {
	Op      string
	Address string
	ID      string
}

// ThingSchema is the schema of test_thing.
func ThingSchema() *provider.Schema {
	return &provider.Schema{Attributes: map[string]*provider.Attribute{
		"name":   {Type: provider.TypeString, Required: true},
		"size":   {Type: provider.TypeNumber, Optional: true, Default: float64(1)},
		"zone":   {Type: provider.TypeString, Optional: true, ForceNew: true},
		"tags":   {Type: provider.TypeMap, Optional: true},
		"items":  {Type: provider.TypeList, Optional: true},
		"secret": {Type: provider.TypeString, Optional: true, Sensitive: true},
		"ref":    {Type: provider.TypeString, Optional: true},
		"id":     {Type: provider.TypeString, Computed: true},
		"arn":    {Type: provider.TypeString, Computed: true},
	}}
}

// Provider is an in-memory provider. It is safe for concurrent use.
type Provider struct {
	name    string
	schemas map[string]*provider.Schema

	// Latency is added to every call.
	Latency time.Duration

	mu         sync.Mutex
	objects    map[string]map[string]any
	seq        int
	calls      []Call
	failures   map[string]error
	partial    map[string]error
	throttles  map[string]int
	configured map[string]any
	inflight   int
	peak       int
}

// New returns a provider named "test" serving test_thing.
func New() *Provider {
	return NewNamed("test", map[string]*provider.Schema{ThingType: ThingSchema()})
}

// NewNamed returns a provider with custom resource schemas.
func NewNamed(name string, schemas map[string]*provider.Schema) *Provider {
	return &Provider{
		name:      name,
		schemas:   schemas,
		objects:   make(map[string]map[string]any),
		failures:  make(map[string]error),
		partial:   make(map[string]error),
		throttles: make(map[string]int),
	}
}

// Factory returns a provider.Factory that always yields p.
func (p *Provider) Factory() provider.Factory {
	return func() provider.Provider { return p }
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.name }

// Configure implements provider.Provider.
func (p *Provider) Configure(_ context.Context, config map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured = config
	return nil
}

// Configured returns the config passed to Configure.
func (p *Provider) Configured() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configured
}

// Resources implements provider.Provider.
func (p *Provider) Resources() map[string]*provider.Resource {
	out := make(map[string]*provider.Resource, len(p.schemas))
	for typ, schema := range p.schemas {
		out[typ] = &provider.Resource{
			Schema: schema,
			Create: func(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
				return p.create(ctx, typ, req)
			},
			Read:   p.read,
			Update: p.update,
			Delete: p.delete,
		}
	}
	return out
}

// Fail makes every op call on address return err.
func (p *Provider) Fail(op, address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+" "+address] = err
}

// FailAfterCreate makes create on address succeed remotely but return err,
// leaving an object behind.
func (p *Provider) FailAfterCreate(address string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partial[address] = err
}

// Throttle makes the next n op calls on address return a throttled error.
func (p *Provider) Throttle(op, address string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.throttles[op+" "+address] = n
}

// Calls returns a copy of the call log.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsFor returns the call log entries with the given op.
func (p *Provider) CallsFor(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// PeakConcurrency returns the highest number of simultaneous calls seen.
func (p *Provider) PeakConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

// Object returns a copy of the stored object with the given ID.
func (p *Provider) Object(id string) (map[string]any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[id]
	if !ok {
		return nil, false
	}
	return copyMap(obj), true
}

// Objects returns the number of stored objects.
func (p *Provider) Objects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// Remove deletes an object out of band, simulating drift.
func (p *Provider) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, id)
}

// Set changes an attribute out of band, simulating drift.
func (p *Provider) Set(id, key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if obj, ok := p.objects[id]; ok {
		obj[key] = value
	}
}

func (p *Provider) begin(ctx context.Context, op, address, id string) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: op, Address: address, ID: id})
	p.inflight++
	if p.inflight > p.peak {
		p.peak = p.inflight
	}
	key := op + " " + address
	var err error
	if n := p.throttles[key]; n > 0 {
		p.throttles[key] = n - 1
		err = provider.Throttled(fmt.Errorf("%s %s: rate limit exceeded", op, address))
	} else if f, ok := p.failures[key]; ok {
		err = f
	}
	p.mu.Unlock()

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *Provider) end() {
	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()
}

func (p *Provider) create(ctx context.Context, typ string, req *provider.CreateRequest) (*provider.Result, error) {
	defer p.end()
	if err := p.begin(ctx, OpCreate, req.Address, ""); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("%s-%d", typ, p.seq)
	obj := copyMap(req.Properties)
	obj["id"] = id
	obj["arn"] = "arn:test:" + id
	p.objects[id] = obj

	res := &provider.Result{ID: id, Attributes: copyMap(obj)}
	if err, ok := p.partial[req.Address]; ok {
		delete(p.partial, req.Address)
		return res, err
	}
	return res, nil
}

func (p *Provider) read(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	defer p.end()
	if err := p.begin(ctx, OpRead, req.Address, req.ID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[req.ID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &provider.Result{ID: req.ID, Attributes: copyMap(obj)}, nil
}

func (p *Provider) update(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	defer p.end()
	if err := p.begin(ctx, OpUpdate, req.Address, req.ID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[req.ID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	current, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(current, req.Patch)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	updated := map[string]any{}
	if err := json.Unmarshal(merged, &updated); err != nil {
		return nil, err
	}
	p.objects[req.ID] = updated
	return &provider.Result{ID: req.ID, Attributes: copyMap(updated)}, nil
}

func (p *Provider) delete(ctx context.Context, req *provider.DeleteRequest) error {
	defer p.end()
	if err := p.begin(ctx, OpDelete, req.Address, req.ID); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[req.ID]; !ok {
		return provider.ErrNotFound
	}
	delete(p.objects, req.ID)
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
