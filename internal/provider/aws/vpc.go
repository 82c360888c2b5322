package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) vpcResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"cidr_block":           {Type: provider.TypeString, Required: true, ForceNew: true},
			"enable_dns_support":   {Type: provider.TypeBool, Optional: true, Default: true},
			"enable_dns_hostnames": {Type: provider.TypeBool, Optional: true, Default: false},
			"tags":                 {Type: provider.TypeMap, Optional: true},
			"id":                   {Type: provider.TypeString, Computed: true},
			"arn":                  {Type: provider.TypeString, Computed: true},
			"owner_id":             {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createVpc,
		Read:   p.readVpc,
		Update: p.updateVpc,
		Delete: p.deleteVpc,
	}
}

func (p *Provider) createVpc(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.ec2.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(stringAttr(req.Properties, "cidr_block")),
		TagSpecifications: tagSpecs(types.ResourceTypeVpc, resourceTags(req.Stack, req.Address, req.Properties)),
	})
	if err != nil {
		return nil, classify("create", "vpc", err)
	}
	id := aws.ToString(out.Vpc.VpcId)
	partial := &provider.Result{ID: id}

	waiter := ec2.NewVpcAvailableWaiter(p.ec2)
	if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}}, p.waitTimeout); err != nil {
		return partial, fmt.Errorf("vpc %s did not become available: %w", id, err)
	}
	if err := p.setVpcDNS(ctx, id, req.Properties); err != nil {
		return partial, err
	}
	return p.readVpc(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: id})
}

// setVpcDNS applies the DNS attributes. EC2 accepts one attribute per call.
func (p *Provider) setVpcDNS(ctx context.Context, id string, props map[string]any) error {
	if _, err := p.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:            aws.String(id),
		EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(boolAttr(props, "enable_dns_support", true))},
	}); err != nil {
		return classify("modify", "vpc dns support", err)
	}
	if _, err := p.ec2.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
		VpcId:              aws.String(id),
		EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(boolAttr(props, "enable_dns_hostnames", false))},
	}); err != nil {
		return classify("modify", "vpc dns hostnames", err)
	}
	return nil
}

func (p *Provider) readVpc(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{req.ID}})
	if err != nil {
		return nil, classify("describe", "vpc", err)
	}
	if len(out.Vpcs) == 0 {
		return nil, provider.ErrNotFound
	}
	vpc := out.Vpcs[0]

	support, err := p.vpcAttribute(ctx, req.ID, types.VpcAttributeNameEnableDnsSupport)
	if err != nil {
		return nil, err
	}
	hostnames, err := p.vpcAttribute(ctx, req.ID, types.VpcAttributeNameEnableDnsHostnames)
	if err != nil {
		return nil, err
	}

	owner := aws.ToString(vpc.OwnerId)
	return &provider.Result{ID: req.ID, Attributes: map[string]any{
		"id":                   req.ID,
		"cidr_block":           aws.ToString(vpc.CidrBlock),
		"enable_dns_support":   support,
		"enable_dns_hostnames": hostnames,
		"tags":                 userTags(ec2TagMap(vpc.Tags), req.Address),
		"owner_id":             owner,
		"arn":                  fmt.Sprintf("arn:aws:ec2:%s:%s:vpc/%s", p.region, owner, req.ID),
	}}, nil
}

func (p *Provider) vpcAttribute(ctx context.Context, id string, name types.VpcAttributeName) (bool, error) {
	out, err := p.ec2.DescribeVpcAttribute(ctx, &ec2.DescribeVpcAttributeInput{
		VpcId:     aws.String(id),
		Attribute: name,
	})
	if err != nil {
		return false, classify("describe", "vpc attribute "+string(name), err)
	}
	switch name {
	case types.VpcAttributeNameEnableDnsSupport:
		if out.EnableDnsSupport != nil {
			return aws.ToBool(out.EnableDnsSupport.Value), nil
		}
	case types.VpcAttributeNameEnableDnsHostnames:
		if out.EnableDnsHostnames != nil {
			return aws.ToBool(out.EnableDnsHostnames.Value), nil
		}
	}
	return false, nil
}

func (p *Provider) updateVpc(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if changed(req.Prior, req.Desired, "enable_dns_support", "enable_dns_hostnames") {
		if err := p.setVpcDNS(ctx, req.ID, req.Desired); err != nil {
			return nil, err
		}
	}
	if err := p.syncEC2Tags(ctx, req.ID, req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readVpc(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: req.ID})
}

func (p *Provider) deleteVpc(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.retryDependency(ctx, func() error {
		_, err := p.ec2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(req.ID)})
		return classify("delete", "vpc", err)
	})
}
