package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) sshKeyResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"name":        {Type: provider.TypeString, Required: true},
			"public_key":  {Type: provider.TypeString, Required: true, ForceNew: true},
			"labels":      {Type: provider.TypeMap, Optional: true},
			"fingerprint": {Type: provider.TypeString, Computed: true},
			"id":          {Type: provider.TypeString, Computed: true},
		}},
		Create: p.createSSHKey,
		Read:   p.readSSHKey,
		Update: p.updateSSHKey,
		Delete: p.deleteSSHKey,
	}
}

func (p *Provider) createSSHKey(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	key, _, err := p.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      stringAttr(req.Properties, "name"),
		PublicKey: stringAttr(req.Properties, "public_key"),
		Labels:    resourceLabels(req.Stack, req.Address, req.Properties),
	})
	if err != nil {
		return nil, classify("create", "ssh key", err)
	}
	return sshKeyResult(key), nil
}

func (p *Provider) readSSHKey(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	key, _, err := p.client.SSHKey.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get", "ssh key", err)
	}
	if key == nil {
		return nil, provider.ErrNotFound
	}
	return sshKeyResult(key), nil
}

func (p *Provider) updateSSHKey(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	key, _, err := p.client.SSHKey.Update(ctx, &hcloud.SSHKey{ID: id}, hcloud.SSHKeyUpdateOpts{
		Name:   stringAttr(req.Desired, "name"),
		Labels: resourceLabels(req.Stack, req.Address, req.Desired),
	})
	if err != nil {
		return nil, classify("update", "ssh key", err)
	}
	return sshKeyResult(key), nil
}

func (p *Provider) deleteSSHKey(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}
	return (&deleteOperation[*hcloud.SSHKey]{
		ID:           id,
		ResourceType: "ssh key",
		Get:          p.client.SSHKey.GetByID,
		Delete:       p.client.SSHKey.Delete,
	}).Execute(ctx, p)
}

func sshKeyResult(k *hcloud.SSHKey) *provider.Result {
	id := formatID(k.ID)
	return &provider.Result{ID: id, Attributes: map[string]any{
		"id":          id,
		"name":        k.Name,
		"public_key":  k.PublicKey,
		"fingerprint": k.Fingerprint,
		"labels":      userLabels(k.Labels),
	}}
}
