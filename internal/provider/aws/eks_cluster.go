package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) eksClusterResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"name":                    {Type: provider.TypeString, Required: true, ForceNew: true},
			"role_arn":                {Type: provider.TypeString, Required: true, ForceNew: true},
			"version":                 {Type: provider.TypeString, Optional: true, Computed: true},
			"subnet_ids":              {Type: provider.TypeList, Required: true, ForceNew: true},
			"endpoint_public_access":  {Type: provider.TypeBool, Optional: true, Default: true},
			"endpoint_private_access": {Type: provider.TypeBool, Optional: true, Default: false},
			"tags":                    {Type: provider.TypeMap, Optional: true},
			"id":                      {Type: provider.TypeString, Computed: true},
			"arn":                     {Type: provider.TypeString, Computed: true},
			"endpoint":                {Type: provider.TypeString, Computed: true},
			"certificate_authority":   {Type: provider.TypeString, Computed: true, Sensitive: true},
			"status":                  {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createCluster,
		Read:   p.readCluster,
		Update: p.updateCluster,
		Delete: p.deleteCluster,
	}
}

func (p *Provider) waitClusterActive(ctx context.Context, name string) error {
	waiter := eks.NewClusterActiveWaiter(p.eks)
	if err := waiter.Wait(ctx, &eks.DescribeClusterInput{Name: aws.String(name)}, p.waitTimeout); err != nil {
		return fmt.Errorf("cluster %s did not become active: %w", name, err)
	}
	return nil
}

func (p *Provider) createCluster(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	name := stringAttr(req.Properties, "name")
	in := &eks.CreateClusterInput{
		Name:    aws.String(name),
		RoleArn: aws.String(stringAttr(req.Properties, "role_arn")),
		ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
			SubnetIds:             stringList(req.Properties, "subnet_ids"),
			EndpointPublicAccess:  aws.Bool(boolAttr(req.Properties, "endpoint_public_access", true)),
			EndpointPrivateAccess: aws.Bool(boolAttr(req.Properties, "endpoint_private_access", false)),
		},
		Tags: resourceTags(req.Stack, req.Address, req.Properties),
	}
	if v := stringAttr(req.Properties, "version"); v != "" {
		in.Version = aws.String(v)
	}
	if _, err := p.eks.CreateCluster(ctx, in); err != nil {
		return nil, classify("create", "eks cluster", err)
	}
	if err := p.waitClusterActive(ctx, name); err != nil {
		return &provider.Result{ID: name}, err
	}
	return p.readCluster(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: name, Attributes: req.Properties})
}

func (p *Provider) readCluster(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(req.ID)})
	if err != nil {
		return nil, classify("describe", "eks cluster", err)
	}
	c := out.Cluster
	if c == nil {
		return nil, provider.ErrNotFound
	}

	attrs := map[string]any{
		"id":       req.ID,
		"name":     aws.ToString(c.Name),
		"arn":      aws.ToString(c.Arn),
		"role_arn": aws.ToString(c.RoleArn),
		"version":  aws.ToString(c.Version),
		"endpoint": aws.ToString(c.Endpoint),
		"status":   string(c.Status),
		"tags":     userTags(c.Tags, req.Address),
	}
	if c.CertificateAuthority != nil {
		attrs["certificate_authority"] = aws.ToString(c.CertificateAuthority.Data)
	}
	if vpc := c.ResourcesVpcConfig; vpc != nil {
		var prior any
		if req.Attributes != nil {
			prior = req.Attributes["subnet_ids"]
		}
		attrs["subnet_ids"] = orderedLike(prior, vpc.SubnetIds)
		attrs["endpoint_public_access"] = vpc.EndpointPublicAccess
		attrs["endpoint_private_access"] = vpc.EndpointPrivateAccess
	}
	return &provider.Result{ID: req.ID, Attributes: attrs}, nil
}

func (p *Provider) updateCluster(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	name := aws.String(req.ID)

	if v := stringAttr(req.Desired, "version"); v != "" && changed(req.Prior, req.Desired, "version") {
		if _, err := p.eks.UpdateClusterVersion(ctx, &eks.UpdateClusterVersionInput{
			Name:    name,
			Version: aws.String(v),
		}); err != nil {
			return nil, classify("update", "eks cluster version", err)
		}
		if err := p.waitClusterActive(ctx, req.ID); err != nil {
			return nil, err
		}
	}

	if changed(req.Prior, req.Desired, "endpoint_public_access", "endpoint_private_access") {
		if _, err := p.eks.UpdateClusterConfig(ctx, &eks.UpdateClusterConfigInput{
			Name: name,
			ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
				EndpointPublicAccess:  aws.Bool(boolAttr(req.Desired, "endpoint_public_access", true)),
				EndpointPrivateAccess: aws.Bool(boolAttr(req.Desired, "endpoint_private_access", false)),
			},
		}); err != nil {
			return nil, classify("update", "eks cluster endpoint access", err)
		}
		if err := p.waitClusterActive(ctx, req.ID); err != nil {
			return nil, err
		}
	}

	if err := p.syncEKSTags(ctx, stringAttr(req.Prior, "arn"), req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readCluster(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: req.ID, Attributes: req.Desired})
}

func (p *Provider) deleteCluster(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	if _, err := p.eks.DeleteCluster(ctx, &eks.DeleteClusterInput{Name: aws.String(req.ID)}); err != nil {
		return classify("delete", "eks cluster", err)
	}
	waiter := eks.NewClusterDeletedWaiter(p.eks)
	if err := waiter.Wait(ctx, &eks.DescribeClusterInput{Name: aws.String(req.ID)}, p.waitTimeout); err != nil {
		return fmt.Errorf("cluster %s was not deleted: %w", req.ID, err)
	}
	return nil
}
