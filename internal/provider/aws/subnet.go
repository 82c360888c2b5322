package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) subnetResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"vpc_id":                  {Type: provider.TypeString, Required: true, ForceNew: true},
			"cidr_block":              {Type: provider.TypeString, Required: true, ForceNew: true},
			"availability_zone":       {Type: provider.TypeString, Optional: true, Computed: true, ForceNew: true},
			"map_public_ip_on_launch": {Type: provider.TypeBool, Optional: true, Default: false},
			"tags":                    {Type: provider.TypeMap, Optional: true},
			"id":                      {Type: provider.TypeString, Computed: true},
			"arn":                     {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createSubnet,
		Read:   p.readSubnet,
		Update: p.updateSubnet,
		Delete: p.deleteSubnet,
	}
}

func (p *Provider) createSubnet(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	in := &ec2.CreateSubnetInput{
		VpcId:             aws.String(stringAttr(req.Properties, "vpc_id")),
		CidrBlock:         aws.String(stringAttr(req.Properties, "cidr_block")),
		TagSpecifications: tagSpecs(types.ResourceTypeSubnet, resourceTags(req.Stack, req.Address, req.Properties)),
	}
	if az := stringAttr(req.Properties, "availability_zone"); az != "" {
		in.AvailabilityZone = aws.String(az)
	}
	out, err := p.ec2.CreateSubnet(ctx, in)
	if err != nil {
		return nil, classify("create", "subnet", err)
	}
	id := aws.ToString(out.Subnet.SubnetId)
	partial := &provider.Result{ID: id}

	waiter := ec2.NewSubnetAvailableWaiter(p.ec2)
	if err := waiter.Wait(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{id}}, p.waitTimeout); err != nil {
		return partial, fmt.Errorf("subnet %s did not become available: %w", id, err)
	}
	if boolAttr(req.Properties, "map_public_ip_on_launch", false) {
		if err := p.setMapPublicIP(ctx, id, true); err != nil {
			return partial, err
		}
	}
	return p.readSubnet(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: id})
}

func (p *Provider) setMapPublicIP(ctx context.Context, id string, enabled bool) error {
	_, err := p.ec2.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(id),
		MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(enabled)},
	})
	return classify("modify", "subnet", err)
}

func (p *Provider) readSubnet(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{req.ID}})
	if err != nil {
		return nil, classify("describe", "subnet", err)
	}
	if len(out.Subnets) == 0 {
		return nil, provider.ErrNotFound
	}
	s := out.Subnets[0]
	return &provider.Result{ID: req.ID, Attributes: map[string]any{
		"id":                      req.ID,
		"vpc_id":                  aws.ToString(s.VpcId),
		"cidr_block":              aws.ToString(s.CidrBlock),
		"availability_zone":       aws.ToString(s.AvailabilityZone),
		"map_public_ip_on_launch": aws.ToBool(s.MapPublicIpOnLaunch),
		"arn":                     aws.ToString(s.SubnetArn),
		"tags":                    userTags(ec2TagMap(s.Tags), req.Address),
	}}, nil
}

func (p *Provider) updateSubnet(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if changed(req.Prior, req.Desired, "map_public_ip_on_launch") {
		if err := p.setMapPublicIP(ctx, req.ID, boolAttr(req.Desired, "map_public_ip_on_launch", false)); err != nil {
			return nil, err
		}
	}
	if err := p.syncEC2Tags(ctx, req.ID, req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readSubnet(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: req.ID})
}

func (p *Provider) deleteSubnet(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.retryDependency(ctx, func() error {
		_, err := p.ec2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(req.ID)})
		return classify("delete", "subnet", err)
	})
}
