package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/imamik/converge/internal/provider"
)

// Name is the provider name and resource type prefix.
const Name = "aws"

const (
	defaultWaitTimeout     = 30 * time.Minute
	defaultDependencyTries = 10
	defaultDependencyDelay = 2 * time.Second
)

// Provider manages AWS resources.
type Provider struct {
	ec2    EC2API
	eks    EKSAPI
	region string

	waitTimeout     time.Duration
	dependencyTries int
	dependencyDelay time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithClients injects API clients; Configure then only records the region.
func WithClients(ec2Client EC2API, eksClient EKSAPI) Option {
	return func(p *Provider) {
		p.ec2 = ec2Client
		p.eks = eksClient
	}
}

// WithWaitTimeout bounds how long create and delete wait for a resource to
// settle.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.waitTimeout = d
	}
}

// WithDependencyRetry sets how deletes blocked by DependencyViolation are
// retried. AWS reports those while dependents are still being torn down.
func WithDependencyRetry(retries int, initialDelay time.Duration) Option {
	return func(p *Provider) {
		p.dependencyTries = retries
		p.dependencyDelay = initialDelay
	}
}

// New returns an unconfigured provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		waitTimeout:     defaultWaitTimeout,
		dependencyTries: defaultDependencyTries,
		dependencyDelay: defaultDependencyDelay,
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

// Configure loads the AWS configuration. Empty credentials fall back to the
// default chain (environment, shared config, instance role).
func (p *Provider) Configure(ctx context.Context, cfg map[string]any) error {
	p.region = stringAttr(cfg, "region")
	if p.ec2 != nil && p.eks != nil {
		return nil
	}
	if p.region == "" {
		return errors.New("aws: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(p.region)}
	if accessKey := stringAttr(cfg, "access_key"); accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, stringAttr(cfg, "secret_key"), "")))
	}
	if profile := stringAttr(cfg, "profile"); profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := stringAttr(cfg, "endpoint")
	p.ec2 = ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	p.eks = eks.NewFromConfig(awsCfg, func(o *eks.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return nil
}

// Resources implements provider.Provider.
func (p *Provider) Resources() map[string]*provider.Resource {
	return map[string]*provider.Resource{
		"aws_vpc":              p.vpcResource(),
		"aws_subnet":           p.subnetResource(),
		"aws_internet_gateway": p.internetGatewayResource(),
		"aws_route_table":      p.routeTableResource(),
		"aws_eks_cluster":      p.eksClusterResource(),
		"aws_eks_node_group":   p.eksNodeGroupResource(),
	}
}

func (p *Provider) ready() error {
	if p.ec2 == nil || p.eks == nil {
		return errors.New("aws: provider is not configured")
	}
	return nil
}
