package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) placementGroupResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"name":   {Type: provider.TypeString, Required: true},
			"type":   {Type: provider.TypeString, Optional: true, ForceNew: true, Default: string(hcloud.PlacementGroupTypeSpread)},
			"labels": {Type: provider.TypeMap, Optional: true},
			"id":     {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createPlacementGroup,
		Read:   p.readPlacementGroup,
		Update: p.updatePlacementGroup,
		Delete: p.deletePlacementGroup,
	}
}

func (p *Provider) createPlacementGroup(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	pgType := stringAttr(req.Properties, "type")
	if pgType == "" {
		pgType = string(hcloud.PlacementGroupTypeSpread)
	}
	res, _, err := p.client.PlacementGroup.Create(ctx, hcloud.PlacementGroupCreateOpts{
		Name:   stringAttr(req.Properties, "name"),
		Type:   hcloud.PlacementGroupType(pgType),
		Labels: resourceLabels(req.Stack, req.Address, req.Properties),
	})
	if err != nil {
		return nil, classify("create", "placement group", err)
	}
	if err := waitForActions(ctx, p.client, res.Action); err != nil {
		return placementGroupResult(res.PlacementGroup), fmt.Errorf("failed to wait for placement group creation: %w", err)
	}
	return placementGroupResult(res.PlacementGroup), nil
}

func (p *Provider) readPlacementGroup(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	pg, _, err := p.client.PlacementGroup.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get", "placement group", err)
	}
	if pg == nil {
		return nil, provider.ErrNotFound
	}
	return placementGroupResult(pg), nil
}

func (p *Provider) updatePlacementGroup(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	name := stringAttr(req.Desired, "name")
	pg, _, err := p.client.PlacementGroup.Update(ctx, &hcloud.PlacementGroup{ID: id}, hcloud.PlacementGroupUpdateOpts{
		Name:   name,
		Labels: resourceLabels(req.Stack, req.Address, req.Desired),
	})
	if err != nil {
		return nil, classify("update", "placement group", err)
	}
	return placementGroupResult(pg), nil
}

func (p *Provider) deletePlacementGroup(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}
	return (&deleteOperation[*hcloud.PlacementGroup]{
		ID:           id,
		ResourceType: "placement group",
		Get:          p.client.PlacementGroup.GetByID,
		Delete:       p.client.PlacementGroup.Delete,
	}).Execute(ctx, p)
}

func placementGroupResult(pg *hcloud.PlacementGroup) *provider.Result {
	id := formatID(pg.ID)
	return &provider.Result{ID: id, Attributes: map[string]any{
		"id":     id,
		"name":   pg.Name,
		"type":   string(pg.Type),
		"labels": userLabels(pg.Labels),
	}}
}
