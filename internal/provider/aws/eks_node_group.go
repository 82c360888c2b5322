package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/imamik/converge/internal/provider"
)

func (p *Provider) eksNodeGroupResource() *provider.Resource {
	return &provider.Resource{
		Schema: &provider.Schema{Attributes: map[string]*provider.Attribute{
			"cluster_name":    {Type: provider.TypeString, Required: true, ForceNew: true},
			"node_group_name": {Type: provider.TypeString, Required: true, ForceNew: true},
			"node_role_arn":   {Type: provider.TypeString, Required: true, ForceNew: true},
			"subnet_ids":      {Type: provider.TypeList, Required: true, ForceNew: true},
			"instance_types":  {Type: provider.TypeList, Optional: true, Computed: true, ForceNew: true},
			"min_size":        {Type: provider.TypeNumber, Required: true},
			"max_size":        {Type: provider.TypeNumber, Required: true},
			"desired_size":    {Type: provider.TypeNumber, Required: true},
			"version":         {Type: provider.TypeString, Optional: true, Computed: true},
			"labels":          {Type: provider.TypeMap, Optional: true},
			"tags":            {Type: provider.TypeMap, Optional: true},
			"id":              {Type: provider.TypeString, Computed: true},
			"arn":             {Type: provider.TypeString, Computed: true},
			"status":          {Type: provider.TypeString, Computed: true},
		}},
		Create:         p.createNodeGroup,
		Read:           p.readNodeGroup,
		Update:         p.updateNodeGroup,
		Delete:         p.deleteNodeGroup,
		ValidateConfig: validateScaling,
	}
}

// validateScaling requires min_size <= desired_size <= max_size for the
// sizes that are already known.
func validateScaling(props map[string]any) error {
	lo, hasMin := props["min_size"].(float64)
	want, hasDesired := props["desired_size"].(float64)
	hi, hasMax := props["max_size"].(float64)
	switch {
	case hasMin && lo < 0:
		return fmt.Errorf("min_size must not be negative, got %v", lo)
	case hasMin && hasMax && lo > hi:
		return fmt.Errorf("min_size (%v) must not exceed max_size (%v)", lo, hi)
	case hasMin && hasDesired && want < lo:
		return fmt.Errorf("desired_size (%v) must not be below min_size (%v)", want, lo)
	case hasMax && hasDesired && want > hi:
		return fmt.Errorf("desired_size (%v) must not exceed max_size (%v)", want, hi)
	}
	return nil
}

func nodeGroupID(cluster, name string) string {
	return cluster + ":" + name
}

func splitNodeGroupID(id string) (string, string, error) {
	cluster, name, ok := strings.Cut(id, ":")
	if !ok || cluster == "" || name == "" {
		return "", "", fmt.Errorf("invalid node group id %q: expected <cluster>:<node group>", id)
	}
	return cluster, name, nil
}

func scalingConfig(props map[string]any) *ekstypes.NodegroupScalingConfig {
	return &ekstypes.NodegroupScalingConfig{
		MinSize:     int32Attr(props, "min_size"),
		MaxSize:     int32Attr(props, "max_size"),
		DesiredSize: int32Attr(props, "desired_size"),
	}
}

func (p *Provider) waitNodeGroupActive(ctx context.Context, cluster, name string) error {
	waiter := eks.NewNodegroupActiveWaiter(p.eks)
	if err := waiter.Wait(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(name),
	}, p.waitTimeout); err != nil {
		return fmt.Errorf("node group %s did not become active: %w", nodeGroupID(cluster, name), err)
	}
	return nil
}

func (p *Provider) createNodeGroup(ctx context.Context, req *provider.CreateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := validateScaling(req.Properties); err != nil {
		return nil, err
	}
	cluster := stringAttr(req.Properties, "cluster_name")
	name := stringAttr(req.Properties, "node_group_name")
	in := &eks.CreateNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(name),
		NodeRole:      aws.String(stringAttr(req.Properties, "node_role_arn")),
		Subnets:       stringList(req.Properties, "subnet_ids"),
		ScalingConfig: scalingConfig(req.Properties),
		Labels:        stringMap(req.Properties, "labels"),
		Tags:          resourceTags(req.Stack, req.Address, req.Properties),
	}
	if instanceTypes := stringList(req.Properties, "instance_types"); len(instanceTypes) > 0 {
		in.InstanceTypes = instanceTypes
	}
	if v := stringAttr(req.Properties, "version"); v != "" {
		in.Version = aws.String(v)
	}
	if _, err := p.eks.CreateNodegroup(ctx, in); err != nil {
		return nil, classify("create", "eks node group", err)
	}
	id := nodeGroupID(cluster, name)
	if err := p.waitNodeGroupActive(ctx, cluster, name); err != nil {
		return &provider.Result{ID: id}, err
	}
	return p.readNodeGroup(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: id, Attributes: req.Properties})
}

func (p *Provider) readNodeGroup(ctx context.Context, req *provider.ReadRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	cluster, name, err := splitNodeGroupID(req.ID)
	if err != nil {
		return nil, err
	}
	out, err := p.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(name),
	})
	if err != nil {
		return nil, classify("describe", "eks node group", err)
	}
	ng := out.Nodegroup
	if ng == nil {
		return nil, provider.ErrNotFound
	}

	prior := req.Attributes
	attrs := map[string]any{
		"id":              req.ID,
		"cluster_name":    aws.ToString(ng.ClusterName),
		"node_group_name": aws.ToString(ng.NodegroupName),
		"node_role_arn":   aws.ToString(ng.NodeRole),
		"subnet_ids":      orderedLike(prior["subnet_ids"], ng.Subnets),
		"instance_types":  toAnyList(ng.InstanceTypes),
		"version":         aws.ToString(ng.Version),
		"labels":          toAnyMap(ng.Labels),
		"tags":            userTags(ng.Tags, req.Address),
		"arn":             aws.ToString(ng.NodegroupArn),
		"status":          string(ng.Status),
	}
	if sc := ng.ScalingConfig; sc != nil {
		attrs["min_size"] = float64(aws.ToInt32(sc.MinSize))
		attrs["max_size"] = float64(aws.ToInt32(sc.MaxSize))
		attrs["desired_size"] = float64(aws.ToInt32(sc.DesiredSize))
	}
	return &provider.Result{ID: req.ID, Attributes: attrs}, nil
}

func (p *Provider) updateNodeGroup(ctx context.Context, req *provider.UpdateRequest) (*provider.Result, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := validateScaling(req.Desired); err != nil {
		return nil, err
	}
	cluster, name, err := splitNodeGroupID(req.ID)
	if err != nil {
		return nil, err
	}

	if changed(req.Prior, req.Desired, "min_size", "max_size", "desired_size", "labels") {
		in := &eks.UpdateNodegroupConfigInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(name),
		}
		if changed(req.Prior, req.Desired, "min_size", "max_size", "desired_size") {
			in.ScalingConfig = scalingConfig(req.Desired)
		}
		if changed(req.Prior, req.Desired, "labels") {
			want := stringMap(req.Desired, "labels")
			in.Labels = &ekstypes.UpdateLabelsPayload{
				AddOrUpdateLabels: want,
				RemoveLabels:      removedTags(stringMap(req.Prior, "labels"), want),
			}
		}
		if _, err := p.eks.UpdateNodegroupConfig(ctx, in); err != nil {
			return nil, classify("update", "eks node group config", err)
		}
		if err := p.waitNodeGroupActive(ctx, cluster, name); err != nil {
			return nil, err
		}
	}

	if v := stringAttr(req.Desired, "version"); v != "" && changed(req.Prior, req.Desired, "version") {
		if _, err := p.eks.UpdateNodegroupVersion(ctx, &eks.UpdateNodegroupVersionInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(name),
			Version:       aws.String(v),
		}); err != nil {
			return nil, classify("update", "eks node group version", err)
		}
		if err := p.waitNodeGroupActive(ctx, cluster, name); err != nil {
			return nil, err
		}
	}

	if err := p.syncEKSTags(ctx, stringAttr(req.Prior, "arn"), req.Stack, req.Address, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return p.readNodeGroup(ctx, &provider.ReadRequest{Stack: req.Stack, Address: req.Address, ID: req.ID, Attributes: req.Desired})
}

func (p *Provider) deleteNodeGroup(ctx context.Context, req *provider.DeleteRequest) error {
	if err := p.ready(); err != nil {
		return err
	}
	cluster, name, err := splitNodeGroupID(req.ID)
	if err != nil {
		return err
	}
	if _, err := p.eks.DeleteNodegroup(ctx, &eks.DeleteNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(name),
	}); err != nil {
		return classify("delete", "eks node group", err)
	}
	waiter := eks.NewNodegroupDeletedWaiter(p.eks)
	if err := waiter.Wait(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(cluster),
		NodegroupName: aws.String(name),
	}, p.waitTimeout); err != nil {
		return fmt.Errorf("node group %s was not deleted: %w", req.ID, err)
	}
	return nil
}
