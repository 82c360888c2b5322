package hcloud

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/util/retry"
)

func (p *Provider) subnetResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"network_id":   {Type: provider.TypeString, Required: true, ForceNew: true},
			"type":         {Type: provider.TypeString, Optional: true, ForceNew: true, Default: string(hcloud.NetworkSubnetTypeCloud)},
			"network_zone": {Type: provider.TypeString, Required: true, ForceNew: true},
			"ip_range":     {Type: provider.TypeString, Required: true, ForceNew: true},
			"gateway":      {Type: provider.TypeString, Computed: true},
			"id":           {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createSubnet,
		Read:   p.readSubnet,
		Delete: p.deleteSubnet,
	}
}

func subnetID(networkID, ipRange string) string {
	return networkID + "-" + ipRange
}

func splitSubnetID(id string) (string, string, error) {
	networkID, ipRange, ok := strings.Cut(id, "-")
	if !ok || networkID == "" || ipRange == "" {
		return "", "", fmt.Errorf("invalid subnet id %q: expected <network id>-<ip range>", id)
	}
	return networkID, ipRange, nil
}

func (p *Provider) createSubnet(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	networkID := stringAttr(req.Properties, "network_id")
	network, err := p.getNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}

	ipRange := stringAttr(req.Properties, "ip_range")
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet ip range %q: %w", ipRange, err)
	}
	subnetType := stringAttr(req.Properties, "type")
	if subnetType == "" {
		subnetType = string(hcloud.NetworkSubnetTypeCloud)
	}

	action, _, err := p.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{
		Subnet: hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetType(subnetType),
			IPRange:     ipNet,
			NetworkZone: hcloud.NetworkZone(stringAttr(req.Properties, "network_zone")),
		},
	})
	if err != nil {
		return nil, classify("add", "subnet", err)
	}
	if err := waitForActions(ctx, p.client, action); err != nil {
		return nil, fmt.Errorf("failed to wait for subnet creation: %w", err)
	}

	return p.readSubnet(ctx, &provider.ReadRequest{
		Stack:   req.Stack,
		Address: req.Address,
		ID:      subnetID(networkID, ipNet.String()),
	})
}

func (p *Provider) readSubnet(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	networkID, ipRange, err := splitSubnetID(req.ID)
	if err != nil {
		return nil, err
	}
	network, err := p.getNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	subnet := findSubnet(network, ipRange)
	if subnet == nil {
		return nil, provider.ErrNotFound
	}
	attrs := map[string]any{
		"id":           req.ID,
		"network_id":   networkID,
		"type":         string(subnet.Type),
		"network_zone": string(subnet.NetworkZone),
		"ip_range":     subnet.IPRange.String(),
	}
	if subnet.Gateway != nil {
		attrs["gateway"] = subnet.Gateway.String()
	}
	return &provider.Result{ID: req.ID, Attributes: attrs}, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, req *provider.DeleteRequest) error {
	networkID, ipRange, err := splitSubnetID(req.ID)
	if err != nil {
		return err
	}
	err = retry.WithExponentialBackoff(ctx, func() error {
		network, err := p.getNetwork(ctx, networkID)
		if provider.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return retry.Fatal(err)
		}
		subnet := findSubnet(network, ipRange)
		if subnet == nil {
			return nil
		}
		action, _, err := p.client.Network.DeleteSubnet(ctx, network, hcloud.NetworkDeleteSubnetOpts{Subnet: *subnet})
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(classify("delete", "subnet", err))
		}
		return waitForActions(ctx, p.client, action)
	},
		retry.WithMaxRetries(p.lockRetries),
		retry.WithInitialDelay(p.lockDelay))
	return unwrapFatal(err)
}

func findSubnet(network *hcloud.Network, ipRange string) *hcloud.NetworkSubnet {
	for i := range network.Subnets {
		s := network.Subnets[i]
		if s.IPRange != nil && s.IPRange.String() == ipRange {
			return &s
		}
	}
	return nil
}
