package hcloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
)

// Name is the provider name and resource type prefix.
const Name = "hcloud"

const (
	defaultLockRetries = 5
	defaultLockDelay   = time.Second
)

// Provider manages Hetzner Cloud resources.
type Provider struct {
	client *hcloud.Client

	clientOpts  []hcloud.ClientOption
	lockRetries int
	lockDelay   time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithClientOptions appends options used when the hcloud client is built
// in Configure.
func WithClientOptions(opts ...hcloud.ClientOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// WithLockRetry sets how often a delete is retried while the resource is
// locked by a running action.
func WithLockRetry(retries int, initialDelay time.Duration) Option {
	return func(p *Provider) {
		p.lockRetries = retries
		p.lockDelay = initialDelay
	}
}

// New returns an unconfigured provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		lockRetries: defaultLockRetries,
		lockDelay:   defaultLockDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory returns a provider.Factory building providers with opts.
func Factory(opts ...Option) provider.Factory {
	return func() provider.Provider { return New(opts...) }
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return Name }

// Configure builds the API client from the provider block. token is
// required; endpoint overrides the API URL.
func (p *Provider) Configure(_ context.Context, config map[string]any) error {
	token, _ := config["token"].(string)
	if token == "" {
		return errors.New("hcloud: token is required")
	}
	opts := []hcloud.ClientOption{
		hcloud.WithToken(token),
		hcloud.WithApplication("converge", ""),
	}
	if endpoint, _ := config["endpoint"].(string); endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(endpoint))
	}
	opts = append(opts, p.clientOpts...)
	p.client = hcloud.NewClient(opts...)
	return nil
}

// Resources implements provider.Provider.
func (p *Provider) Resources() map[string]*provider.Resource {
	return map[string]*provider.Resource{
		"hcloud_network":         p.networkResource(),
		"hcloud_network_subnet":  p.subnetResource(),
		"hcloud_ssh_key":         p.sshKeyResource(),
		"hcloud_placement_group": p.placementGroupResource(),
	}
}

func (p *Provider) ready() error {
	if p.client == nil {
		return errors.New("hcloud: provider is not configured")
	}
	return nil
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hcloud id %q", id)
	}
	return n, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
