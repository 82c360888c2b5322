package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) networkResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"name":     {Type: provider.TypeString, Required: true},
			"ip_range": {Type: provider.TypeString, Required: true, ForceNew: true},
			"labels":   {Type: provider.TypeMap, Optional: true},
			"id":       {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createNetwork,
		Read:   p.readNetwork,
		Update: p.updateNetwork,
		Delete: p.deleteNetwork,
	}
}

func (p *Provider) createNetwork(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	ipRange := stringAttr(req.Properties, "ip_range")
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, fmt.Errorf("invalid network ip range %q: %w", ipRange, err)
	}
	network, _, err := p.client.Network.Create(ctx, hcloud.NetworkCreateOpts{
		Name:    stringAttr(req.Properties, "name"),
		IPRange: ipNet,
		Labels:  resourceLabels(req.Stack, req.Address, req.Properties),
	})
	if err != nil {
		return nil, classify("create", "network", err)
	}
	return networkResult(network), nil
}

func (p *Provider) readNetwork(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	network, err := p.getNetwork(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return networkResult(network), nil
}

func (p *Provider) updateNetwork(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	network, _, err := p.client.Network.Update(ctx, &hcloud.Network{ID: id}, hcloud.NetworkUpdateOpts{
		Name:   stringAttr(req.Desired, "name"),
		Labels: resourceLabels(req.Stack, req.Address, req.Desired),
	})
	if err != nil {
		return nil, classify("update", "network", err)
	}
	return networkResult(network), nil
}

func (p *Provider) deleteNetwork(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}
	return (&deleteOperation[*hcloud.Network]{
		ID:           id,
		ResourceType: "network",
		Get:          p.client.Network.GetByID,
		Delete:       p.client.Network.Delete,
	}).Execute(ctx, p)
}

// getNetwork fetches a network by ID, mapping absence to ErrNotFound.
func (p *Provider) getNetwork(ctx context.Context, rawID string) (*hcloud.Network, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	network, _, err := p.client.Network.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get", "network", err)
	}
	if network == nil {
		return nil, provider.ErrNotFound
	}
	return network, nil
}

func networkResult(n *hcloud.Network) *provider.Result {
	id := formatID(n.ID)
	attrs := map[string]any{
		"id":     id,
		"name":   n.Name,
		"labels": userLabels(n.Labels),
	}
	if n.IPRange != nil {
		attrs["ip_range"] = n.IPRange.String()
	}
	return &provider.Result{ID: id, Attributes: attrs}
}
