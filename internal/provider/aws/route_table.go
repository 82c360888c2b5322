package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) routeTableResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"vpc_id":     {Type: provider.TypeString, Required: true, ForceNew: true},
			"routes":     {Type: provider.TypeList, Optional: true},
			"subnet_ids": {Type: provider.TypeList, Optional: true},
			"tags":       {Type: provider.TypeMap, Optional: true},
			"id":         {Type: provider.TypeString, Computed: true},
		}},
		Create:         p.createRouteTable,
		Read:           p.readRouteTable,
		Update:         p.updateRouteTable,
		Delete:         p.deleteRouteTable,
		ValidateConfig: validateRoutes,
	}
}

// validateRoutes requires every route to carry a destination.
func validateRoutes(props map[string]any) error {
	list, ok := props["routes"].([]any)
	if !ok {
		return nil
	}
	for i, r := range list {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if _, set := m["cidr_block"]; !set {
			return fmt.Errorf("routes[%d]: cidr_block is required", i)
		}
	}
	return nil
}

// route is one static route keyed by destination.
type route struct {
	cidr    string
	gateway string
}

func desiredRoutes(props map[string]any) map[string]route {
	out := map[string]route{}
	list, _ := props["routes"].([]any)
	for _, r := range list {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		rt := route{cidr: stringAttr(m, "cidr_block"), gateway: stringAttr(m, "gateway_id")}
		out[rt.cidr] = rt
	}
	return out
}

func (p *Provider) createRouteTable(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out, err := p.ec2.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(stringAttr(req.Properties, "vpc_id")),
		TagSpecifications: tagSpecs(types.ResourceTypeRouteTable, resourceTags(req.Stack, req.Address, req.Properties)),
	})
	if err != nil {
		return nil, classify("create", "route table", err)
	}
	id := aws.ToString(out.RouteTable.RouteTableId)
	partial := &provider.Result{ID: id}

	routes := desiredRoutes(req.Properties)
	for _, cidr := range sortedCIDRs(routes) {
		if err := p.createRoute(ctx, id, routes[cidr]); err != nil {
			return partial, err
		}
	}
	for _, subnet := range stringList(req.Properties, "subnet_ids") {
		if err := p.associate(ctx, id, subnet); err != nil {
			return partial, err
		}
	}
	return p.readRouteTable(ctx, &provider.ReadRequest{
		Stack:      req.Stack,
		Address:    req.Address,
		ID:         id,
		Attributes: req.Properties,
	})
}

func (p *Provider) createRoute(ctx context.Context, tableID string, r route) error {
	_, err := p.ec2.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(tableID),
		DestinationCidrBlock: aws.String(r.cidr),
		GatewayId:            aws.String(r.gateway),
	})
	return classify("create", "route "+r.cidr, err)
}

func (p *Provider) associate(ctx context.Context, tableID, subnetID string) error {
	_, err := p.ec2.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(tableID),
		SubnetId:     aws.String(subnetID),
	})
	return classify("associate", "route table with "+subnetID, err)
}

func (p *Provider) describeRouteTable(ctx context.Context, id string) (*types.RouteTable, error) {
	out, err := p.ec2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{RouteTableIds: []string{id}})
	if err != nil {
		return nil, classify("describe", "route table", err)
	}
	if len(out.RouteTables) == 0 {
		return nil, provider.ErrNotFound
	}
	return &out.RouteTables[0], nil
}

func (p *Provider) readRouteTable(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	rt, err := p.describeRouteTable(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	var routes []any
	for _, r := range rt.Routes {
		if r.Origin != types.RouteOriginCreateRoute {
			continue
		}
		routes = append(routes, map[string]any{
			"cidr_block": aws.ToString(r.DestinationCidrBlock),
			"gateway_id": aws.ToString(r.GatewayId),
		})
	}
	prior := req.Attributes
	sortRoutesLike(routes, prior["routes"])

	var subnets []string
	for _, a := range rt.Associations {
		if a.SubnetId != nil {
			subnets = append(subnets, aws.ToString(a.SubnetId))
		}
	}

	return &provider.Result{ID: req.ID, Attributes: map[string]any{
		"id":         req.ID,
		"vpc_id":     aws.ToString(rt.VpcId),
		"routes":     routes,
		"subnet_ids": orderedLike(prior["subnet_ids"], subnets),
		"tags":       userTags(ec2TagMap(rt.Tags), req.Address),
	}}, nil
}

func (p *Provider) updateRouteTable(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if changed(req.Prior, req.Desired, "routes") {
		if err := p.syncRoutes(ctx, req.ID, desiredRoutes(req.Prior), desiredRoutes(req.Desired)); err != nil {
			return nil, err
		}
	}
	if changed(req.Prior, req.Desired, "subnet_ids") {
		if err := p.syncAssociations(ctx, req.ID, stringList(req.Desired, "subnet_ids")); err != nil {
			return nil, err
		}
	}
	if err := p.syncEC2Tags(ctx, req.ID, req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readRouteTable(ctx, &provider.ReadRequest{
		Stack:      req.Stack,
		Address:    req.Address,
		ID:         req.ID,
		Attributes: req.Desired,
	})
}

func (p *Provider) syncRoutes(ctx context.Context, tableID string, prior, desired map[string]route) error {
	for _, cidr := range sortedCIDRs(prior) {
		if _, keep := desired[cidr]; keep {
			continue
		}
		if _, err := p.ec2.DeleteRoute(ctx, &ec2.DeleteRouteInput{
			RouteTableId:         aws.String(tableID),
			DestinationCidrBlock: aws.String(cidr),
		}); err != nil && !provider.IsNotFound(classify("delete", "route", err)) {
			return classify("delete", "route "+cidr, err)
		}
	}
	for _, cidr := range sortedCIDRs(desired) {
		want := desired[cidr]
		have, exists := prior[cidr]
		switch {
		case !exists:
			if err := p.createRoute(ctx, tableID, want); err != nil {
				return err
			}
		case have != want:
			if _, err := p.ec2.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
				RouteTableId:         aws.String(tableID),
				DestinationCidrBlock: aws.String(cidr),
				GatewayId:            aws.String(want.gateway),
			}); err != nil {
				return classify("replace", "route "+cidr, err)
			}
		}
	}
	return nil
}

func (p *Provider) syncAssociations(ctx context.Context, tableID string, desired []string) error {
	rt, err := p.describeRouteTable(ctx, tableID)
	if err != nil {
		return err
	}
	want := map[string]bool{}
	for _, s := range desired {
		want[s] = true
	}
	have := map[string]bool{}
	for _, a := range rt.Associations {
		if a.SubnetId == nil {
			continue
		}
		subnet := aws.ToString(a.SubnetId)
		have[subnet] = true
		if want[subnet] {
			continue
		}
		if _, err := p.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
			AssociationId: a.RouteTableAssociationId,
		}); err != nil {
			return classify("disassociate", "route table from "+subnet, err)
		}
	}
	for _, s := range desired {
		if have[s] {
			continue
		}
		if err := p.associate(ctx, tableID, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	rt, err := p.describeRouteTable(ctx, req.ID)
	if err != nil {
		return err
	}
	for _, a := range rt.Associations {
		if aws.ToBool(a.Main) {
			continue
		}
		if _, err := p.ec2.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
			AssociationId: a.RouteTableAssociationId,
		}); err != nil && !provider.IsNotFound(classify("disassociate", "route table", err)) {
			return classify("disassociate", "route table", err)
		}
	}
	return p.retryDependency(ctx, func() error {
		_, err := p.ec2.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(req.ID)})
		return classify("delete", "route table", err)
	})
}

func sortedCIDRs(routes map[string]route) []string {
	out := make([]string, 0, len(routes))
	for cidr := range routes {
		out = append(out, cidr)
	}
	sort.Strings(out)
	return out
}

// sortRoutesLike orders routes as they appear in prior, then by
// destination for routes prior does not know.
func sortRoutesLike(routes []any, prior any) {
	pos := map[string]int{}
	if list, ok := prior.([]any); ok {
		for i, r := range list {
			if m, ok := r.(map[string]any); ok {
				pos[stringAttr(m, "cidr_block")] = i
			}
		}
	}
	rank := func(r any) (int, string) {
		cidr := stringAttr(r.(map[string]any), "cidr_block")
		if i, ok := pos[cidr]; ok {
			return i, cidr
		}
		return len(pos), cidr
	}
	sort.SliceStable(routes, func(i, j int) bool {
		ri, ci := rank(routes[i])
		rj, cj := rank(routes[j])
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
}
