package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) internetGatewayResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"vpc_id": {Type: provider.TypeString, Optional: true, ForceNew: true},
			"tags":   {Type: provider.TypeMap, Optional: true},
			"id":     {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createInternetGateway,
		Read:   p.readInternetGateway,
		Update: p.updateInternetGateway,
		Delete: p.deleteInternetGateway,
	}
}

func (p *Provider) createInternetGateway(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.ec2.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpecs(types.ResourceTypeInternetGateway, resourceTags(req.Stack, req.Address, req.Properties)),
	})
	if err != nil {
		return nil, classify("create", "internet gateway", err)
	}
	id := aws.ToString(out.InternetGateway.InternetGatewayId)

	if vpcID := stringAttr(req.Properties, "vpc_id"); vpcID != "" {
		if _, err := p.ec2.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(id),
			VpcId:             aws.String(vpcID),
		}); err != nil {
			return &provider.Result{ID: id}, classify("attach", "internet gateway", err)
		}
	}
	return p.readInternetGateway(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: id})
}

func (p *Provider) describeInternetGateway(ctx context.Context, id string) (*types.InternetGateway, error) {
	out, err := p.ec2.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{InternetGatewayIds: []string{id}})
	if err != nil {
		return nil, classify("describe", "internet gateway", err)
	}
	if len(out.InternetGateways) == 0 {
		return nil, provider.ErrNotFound
	}
	return &out.InternetGateways[0], nil
}

func (p *Provider) readInternetGateway(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	igw, err := p.describeInternetGateway(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	attrs := map[string]any{
		"id":   req.ID,
		"tags": userTags(ec2TagMap(igw.Tags), req.Address),
	}
	for _, a := range igw.Attachments {
		attrs["vpc_id"] = aws.ToString(a.VpcId)
	}
	return &provider.Result{ID: req.ID, Attributes: attrs}, nil
}

func (p *Provider) updateInternetGateway(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := p.syncEC2Tags(ctx, req.ID, req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readInternetGateway(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: req.ID})
}

func (p *Provider) deleteInternetGateway(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	igw, err := p.describeInternetGateway(ctx, req.ID)
	if err != nil {
		return err
	}
	for _, a := range igw.Attachments {
		err := p.retryDependency(ctx, func() error {
			_, err := p.ec2.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
				InternetGatewayId: aws.String(req.ID),
				VpcId:             a.VpcId,
			})
			return classify("detach", "internet gateway", err)
		})
		if err != nil {
			return err
		}
	}
	return p.retryDependency(ctx, func() error {
		_, err := p.ec2.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: aws.String(req.ID)})
		return classify("delete", "internet gateway", err)
	})
}
