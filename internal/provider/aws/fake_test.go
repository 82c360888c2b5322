package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/smithy-go"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

// fakeEC2 keeps EC2 networking objects in memory.
type fakeEC2 struct {
	mu      sync.Mutex
	seq     int
	calls   []string
	vpcs    map[string]*types.Vpc
	dns     map[string][2]bool
	subnets map[string]*types.Subnet
	igws    map[string]*types.InternetGateway
	tables  map[string]*types.RouteTable

	// dependencyViolations makes the next n DeleteVpc calls fail.
	dependencyViolations int
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		vpcs:    map[string]*types.Vpc{},
		dns:     map[string][2]bool{},
		subnets: map[string]*types.Subnet{},
		igws:    map[string]*types.InternetGateway{},
		tables:  map[string]*types.RouteTable{},
	}
}

func (f *fakeEC2) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeEC2) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEC2) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func specTags(specs []types.TagSpecification) []types.Tag {
	var out []types.Tag
	for _, s := range specs {
		out = append(out, s.Tags...)
	}
	return out
}

func (f *fakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateVpc")
	id := f.nextID("vpc")
	vpc := &types.Vpc{
		VpcId:     aws.String(id),
		CidrBlock: in.CidrBlock,
		OwnerId:   aws.String("123456789012"),
		State:     types.VpcStateAvailable,
		Tags:      specTags(in.TagSpecifications),
	}
	f.vpcs[id] = vpc
	f.dns[id] = [2]bool{true, false}
	out := *vpc
	return &ec2.CreateVpcOutput{Vpc: &out}, nil
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range in.VpcIds {
		vpc, ok := f.vpcs[id]
		if !ok {
			return nil, apiError("InvalidVpcID.NotFound")
		}
		out.Vpcs = append(out.Vpcs, *vpc)
	}
	return out, nil
}

func (f *fakeEC2) DescribeVpcAttribute(_ context.Context, in *ec2.DescribeVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.VpcId)
	dns, ok := f.dns[id]
	if !ok {
		return nil, apiError("InvalidVpcID.NotFound")
	}
	out := &ec2.DescribeVpcAttributeOutput{VpcId: in.VpcId}
	switch in.Attribute {
	case types.VpcAttributeNameEnableDnsSupport:
		out.EnableDnsSupport = &types.AttributeBooleanValue{Value: aws.Bool(dns[0])}
	case types.VpcAttributeNameEnableDnsHostnames:
		out.EnableDnsHostnames = &types.AttributeBooleanValue{Value: aws.Bool(dns[1])}
	}
	return out, nil
}

func (f *fakeEC2) ModifyVpcAttribute(_ context.Context, in *ec2.ModifyVpcAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyVpcAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ModifyVpcAttribute")
	id := aws.ToString(in.VpcId)
	dns, ok := f.dns[id]
	if !ok {
		return nil, apiError("InvalidVpcID.NotFound")
	}
	if in.EnableDnsSupport != nil {
		dns[0] = aws.ToBool(in.EnableDnsSupport.Value)
	}
	if in.EnableDnsHostnames != nil {
		dns[1] = aws.ToBool(in.EnableDnsHostnames.Value)
	}
	f.dns[id] = dns
	return &ec2.ModifyVpcAttributeOutput{}, nil
}

func (f *fakeEC2) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteVpc")
	if f.dependencyViolations > 0 {
		f.dependencyViolations--
		return nil, apiError("DependencyViolation")
	}
	id := aws.ToString(in.VpcId)
	if _, ok := f.vpcs[id]; !ok {
		return nil, apiError("InvalidVpcID.NotFound")
	}
	delete(f.vpcs, id)
	delete(f.dns, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeEC2) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateSubnet")
	id := f.nextID("subnet")
	az := aws.ToString(in.AvailabilityZone)
	if az == "" {
		az = "eu-west-1a"
	}
	s := &types.Subnet{
		SubnetId:            aws.String(id),
		VpcId:               in.VpcId,
		CidrBlock:           in.CidrBlock,
		AvailabilityZone:    aws.String(az),
		MapPublicIpOnLaunch: aws.Bool(false),
		SubnetArn:           aws.String("arn:aws:ec2:eu-west-1:123456789012:subnet/" + id),
		State:               types.SubnetStateAvailable,
		Tags:                specTags(in.TagSpecifications),
	}
	f.subnets[id] = s
	out := *s
	return &ec2.CreateSubnetOutput{Subnet: &out}, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeSubnetsOutput{}
	for _, id := range in.SubnetIds {
		s, ok := f.subnets[id]
		if !ok {
			return nil, apiError("InvalidSubnetID.NotFound")
		}
		out.Subnets = append(out.Subnets, *s)
	}
	return out, nil
}

func (f *fakeEC2) ModifySubnetAttribute(_ context.Context, in *ec2.ModifySubnetAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySubnetAttributeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ModifySubnetAttribute")
	s, ok := f.subnets[aws.ToString(in.SubnetId)]
	if !ok {
		return nil, apiError("InvalidSubnetID.NotFound")
	}
	if in.MapPublicIpOnLaunch != nil {
		s.MapPublicIpOnLaunch = in.MapPublicIpOnLaunch.Value
	}
	return &ec2.ModifySubnetAttributeOutput{}, nil
}

func (f *fakeEC2) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteSubnet")
	id := aws.ToString(in.SubnetId)
	if _, ok := f.subnets[id]; !ok {
		return nil, apiError("InvalidSubnetID.NotFound")
	}
	delete(f.subnets, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeEC2) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateInternetGateway")
	id := f.nextID("igw")
	igw := &types.InternetGateway{InternetGatewayId: aws.String(id), Tags: specTags(in.TagSpecifications)}
	f.igws[id] = igw
	out := *igw
	return &ec2.CreateInternetGatewayOutput{InternetGateway: &out}, nil
}

func (f *fakeEC2) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AttachInternetGateway")
	igw, ok := f.igws[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	igw.Attachments = []types.InternetGatewayAttachment{{VpcId: in.VpcId, State: types.AttachmentStatusAttached}}
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, id := range in.InternetGatewayIds {
		igw, ok := f.igws[id]
		if !ok {
			return nil, apiError("InvalidInternetGatewayID.NotFound")
		}
		out.InternetGateways = append(out.InternetGateways, *igw)
	}
	return out, nil
}

func (f *fakeEC2) DetachInternetGateway(_ context.Context, in *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DetachInternetGateway")
	igw, ok := f.igws[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	igw.Attachments = nil
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DeleteInternetGateway(_ context.Context, in *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteInternetGateway")
	id := aws.ToString(in.InternetGatewayId)
	igw, ok := f.igws[id]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	if len(igw.Attachments) > 0 {
		return nil, apiError("DependencyViolation")
	}
	delete(f.igws, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeEC2) CreateRouteTable(_ context.Context, in *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateRouteTable")
	id := f.nextID("rtb")
	rt := &types.RouteTable{
		RouteTableId: aws.String(id),
		VpcId:        in.VpcId,
		Routes: []types.Route{{
			DestinationCidrBlock: aws.String("10.0.0.0/16"),
			GatewayId:            aws.String("local"),
			Origin:               types.RouteOriginCreateRouteTable,
		}},
		Tags: specTags(in.TagSpecifications),
	}
	f.tables[id] = rt
	out := *rt
	return &ec2.CreateRouteTableOutput{RouteTable: &out}, nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range in.RouteTableIds {
		rt, ok := f.tables[id]
		if !ok {
			return nil, apiError("InvalidRouteTableID.NotFound")
		}
		cp := *rt
		cp.Routes = append([]types.Route(nil), rt.Routes...)
		cp.Associations = append([]types.RouteTableAssociation(nil), rt.Associations...)
		out.RouteTables = append(out.RouteTables, cp)
	}
	return out, nil
}

func (f *fakeEC2) table(id *string) (*types.RouteTable, error) {
	rt, ok := f.tables[aws.ToString(id)]
	if !ok {
		return nil, apiError("InvalidRouteTableID.NotFound")
	}
	return rt, nil
}

func (f *fakeEC2) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateRoute " + aws.ToString(in.DestinationCidrBlock))
	rt, err := f.table(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	rt.Routes = append(rt.Routes, types.Route{
		DestinationCidrBlock: in.DestinationCidrBlock,
		GatewayId:            in.GatewayId,
		Origin:               types.RouteOriginCreateRoute,
	})
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (f *fakeEC2) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ReplaceRoute " + aws.ToString(in.DestinationCidrBlock))
	rt, err := f.table(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	for i := range rt.Routes {
		if aws.ToString(rt.Routes[i].DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			rt.Routes[i].GatewayId = in.GatewayId
		}
	}
	return &ec2.ReplaceRouteOutput{}, nil
}

func (f *fakeEC2) DeleteRoute(_ context.Context, in *ec2.DeleteRouteInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRoute " + aws.ToString(in.DestinationCidrBlock))
	rt, err := f.table(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	kept := rt.Routes[:0]
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) != aws.ToString(in.DestinationCidrBlock) {
			kept = append(kept, r)
		}
	}
	rt.Routes = kept
	return &ec2.DeleteRouteOutput{}, nil
}

func (f *fakeEC2) AssociateRouteTable(_ context.Context, in *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AssociateRouteTable " + aws.ToString(in.SubnetId))
	rt, err := f.table(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	assoc := f.nextID("rtbassoc")
	rt.Associations = append(rt.Associations, types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(assoc),
		RouteTableId:            in.RouteTableId,
		SubnetId:                in.SubnetId,
		Main:                    aws.Bool(false),
	})
	return &ec2.AssociateRouteTableOutput{AssociationId: aws.String(assoc)}, nil
}

func (f *fakeEC2) DisassociateRouteTable(_ context.Context, in *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DisassociateRouteTable")
	for _, rt := range f.tables {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) == aws.ToString(in.AssociationId) {
				rt.Associations = append(rt.Associations[:i], rt.Associations[i+1:]...)
				return &ec2.DisassociateRouteTableOutput{}, nil
			}
		}
	}
	return nil, apiError("InvalidAssociationID.NotFound")
}

func (f *fakeEC2) DeleteRouteTable(_ context.Context, in *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRouteTable")
	rt, err := f.table(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	if len(rt.Associations) > 0 {
		return nil, apiError("DependencyViolation")
	}
	delete(f.tables, aws.ToString(in.RouteTableId))
	return &ec2.DeleteRouteTableOutput{}, nil
}

func (f *fakeEC2) tagsOf(id string) *[]types.Tag {
	switch {
	case f.vpcs[id] != nil:
		return &f.vpcs[id].Tags
	case f.subnets[id] != nil:
		return &f.subnets[id].Tags
	case f.igws[id] != nil:
		return &f.igws[id].Tags
	case f.tables[id] != nil:
		return &f.tables[id].Tags
	}
	return nil
}

func (f *fakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTags")
	for _, id := range in.Resources {
		tags := f.tagsOf(id)
		if tags == nil {
			return nil, apiError("InvalidID")
		}
		m := ec2TagMap(*tags)
		for k, v := range ec2TagMap(in.Tags) {
			m[k] = v
		}
		*tags = ec2Tags(m)
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (f *fakeEC2) DeleteTags(_ context.Context, in *ec2.DeleteTagsInput, _ ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTags")
	for _, id := range in.Resources {
		tags := f.tagsOf(id)
		if tags == nil {
			return nil, apiError("InvalidID")
		}
		m := ec2TagMap(*tags)
		for _, t := range in.Tags {
			delete(m, aws.ToString(t.Key))
		}
		*tags = ec2Tags(m)
	}
	return &ec2.DeleteTagsOutput{}, nil
}

// fakeEKS keeps clusters and node groups in memory. Every object is ACTIVE
// as soon as it is created and gone as soon as it is deleted.
type fakeEKS struct {
	mu         sync.Mutex
	calls      []string
	clusters   map[string]*ekstypes.Cluster
	nodegroups map[string]*ekstypes.Nodegroup
}

func newFakeEKS() *fakeEKS {
	return &fakeEKS{
		clusters:   map[string]*ekstypes.Cluster{},
		nodegroups: map[string]*ekstypes.Nodegroup{},
	}
}

func (f *fakeEKS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func notFound(what string) error {
	return &ekstypes.ResourceNotFoundException{Message: aws.String(what + " not found")}
}

func (f *fakeEKS) CreateCluster(_ context.Context, in *eks.CreateClusterInput, _ ...func(*eks.Options)) (*eks.CreateClusterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "CreateCluster")
	name := aws.ToString(in.Name)
	version := aws.ToString(in.Version)
	if version == "" {
		version = "1.31"
	}
	c := &ekstypes.Cluster{
		Name:                 in.Name,
		Arn:                  aws.String("arn:aws:eks:eu-west-1:123456789012:cluster/" + name),
		RoleArn:              in.RoleArn,
		Version:              aws.String(version),
		Endpoint:             aws.String("https://" + name + ".eks.example"),
		Status:               ekstypes.ClusterStatusActive,
		CertificateAuthority: &ekstypes.Certificate{Data: aws.String("Q0EK")},
		ResourcesVpcConfig: &ekstypes.VpcConfigResponse{
			SubnetIds:             in.ResourcesVpcConfig.SubnetIds,
			EndpointPublicAccess:  aws.ToBool(in.ResourcesVpcConfig.EndpointPublicAccess),
			EndpointPrivateAccess: aws.ToBool(in.ResourcesVpcConfig.EndpointPrivateAccess),
		},
		Tags: in.Tags,
	}
	f.clusters[name] = c
	out := *c
	return &eks.CreateClusterOutput{Cluster: &out}, nil
}

func (f *fakeEKS) DescribeCluster(_ context.Context, in *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clusters[aws.ToString(in.Name)]
	if !ok {
		return nil, notFound("cluster")
	}
	out := *c
	return &eks.DescribeClusterOutput{Cluster: &out}, nil
}

func (f *fakeEKS) UpdateClusterVersion(_ context.Context, in *eks.UpdateClusterVersionInput, _ ...func(*eks.Options)) (*eks.UpdateClusterVersionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateClusterVersion "+aws.ToString(in.Version))
	c, ok := f.clusters[aws.ToString(in.Name)]
	if !ok {
		return nil, notFound("cluster")
	}
	c.Version = in.Version
	return &eks.UpdateClusterVersionOutput{}, nil
}

func (f *fakeEKS) UpdateClusterConfig(_ context.Context, in *eks.UpdateClusterConfigInput, _ ...func(*eks.Options)) (*eks.UpdateClusterConfigOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateClusterConfig")
	c, ok := f.clusters[aws.ToString(in.Name)]
	if !ok {
		return nil, notFound("cluster")
	}
	if vpc := in.ResourcesVpcConfig; vpc != nil {
		c.ResourcesVpcConfig.EndpointPublicAccess = aws.ToBool(vpc.EndpointPublicAccess)
		c.ResourcesVpcConfig.EndpointPrivateAccess = aws.ToBool(vpc.EndpointPrivateAccess)
	}
	return &eks.UpdateClusterConfigOutput{}, nil
}

func (f *fakeEKS) DeleteCluster(_ context.Context, in *eks.DeleteClusterInput, _ ...func(*eks.Options)) (*eks.DeleteClusterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DeleteCluster")
	name := aws.ToString(in.Name)
	if _, ok := f.clusters[name]; !ok {
		return nil, notFound("cluster")
	}
	delete(f.clusters, name)
	return &eks.DeleteClusterOutput{}, nil
}

func (f *fakeEKS) CreateNodegroup(_ context.Context, in *eks.CreateNodegroupInput, _ ...func(*eks.Options)) (*eks.CreateNodegroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "CreateNodegroup")
	cluster := aws.ToString(in.ClusterName)
	c, ok := f.clusters[cluster]
	if !ok {
		return nil, notFound("cluster")
	}
	instanceTypes := in.InstanceTypes
	if len(instanceTypes) == 0 {
		instanceTypes = []string{"t3.medium"}
	}
	version := aws.ToString(in.Version)
	if version == "" {
		version = aws.ToString(c.Version)
	}
	ng := &ekstypes.Nodegroup{
		ClusterName:   in.ClusterName,
		NodegroupName: in.NodegroupName,
		NodegroupArn:  aws.String("arn:aws:eks:eu-west-1:123456789012:nodegroup/" + cluster + "/" + aws.ToString(in.NodegroupName)),
		NodeRole:      in.NodeRole,
		Subnets:       in.Subnets,
		InstanceTypes: instanceTypes,
		ScalingConfig: in.ScalingConfig,
		Version:       aws.String(version),
		Labels:        in.Labels,
		Tags:          in.Tags,
		Status:        ekstypes.NodegroupStatusActive,
	}
	f.nodegroups[nodeGroupID(cluster, aws.ToString(in.NodegroupName))] = ng
	out := *ng
	return &eks.CreateNodegroupOutput{Nodegroup: &out}, nil
}

func (f *fakeEKS) DescribeNodegroup(_ context.Context, in *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ng, ok := f.nodegroups[nodeGroupID(aws.ToString(in.ClusterName), aws.ToString(in.NodegroupName))]
	if !ok {
		return nil, notFound("node group")
	}
	out := *ng
	return &eks.DescribeNodegroupOutput{Nodegroup: &out}, nil
}

func (f *fakeEKS) UpdateNodegroupConfig(_ context.Context, in *eks.UpdateNodegroupConfigInput, _ ...func(*eks.Options)) (*eks.UpdateNodegroupConfigOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateNodegroupConfig")
	ng, ok := f.nodegroups[nodeGroupID(aws.ToString(in.ClusterName), aws.ToString(in.NodegroupName))]
	if !ok {
		return nil, notFound("node group")
	}
	if in.ScalingConfig != nil {
		ng.ScalingConfig = in.ScalingConfig
	}
	if in.Labels != nil {
		labels := map[string]string{}
		for k, v := range ng.Labels {
			labels[k] = v
		}
		for k, v := range in.Labels.AddOrUpdateLabels {
			labels[k] = v
		}
		for _, k := range in.Labels.RemoveLabels {
			delete(labels, k)
		}
		ng.Labels = labels
	}
	return &eks.UpdateNodegroupConfigOutput{}, nil
}

func (f *fakeEKS) UpdateNodegroupVersion(_ context.Context, in *eks.UpdateNodegroupVersionInput, _ ...func(*eks.Options)) (*eks.UpdateNodegroupVersionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateNodegroupVersion "+aws.ToString(in.Version))
	ng, ok := f.nodegroups[nodeGroupID(aws.ToString(in.ClusterName), aws.ToString(in.NodegroupName))]
	if !ok {
		return nil, notFound("node group")
	}
	ng.Version = in.Version
	return &eks.UpdateNodegroupVersionOutput{}, nil
}

func (f *fakeEKS) DeleteNodegroup(_ context.Context, in *eks.DeleteNodegroupInput, _ ...func(*eks.Options)) (*eks.DeleteNodegroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DeleteNodegroup")
	id := nodeGroupID(aws.ToString(in.ClusterName), aws.ToString(in.NodegroupName))
	if _, ok := f.nodegroups[id]; !ok {
		return nil, notFound("node group")
	}
	delete(f.nodegroups, id)
	return &eks.DeleteNodegroupOutput{}, nil
}

func (f *fakeEKS) tagsOf(arn string) map[string]string {
	for _, c := range f.clusters {
		if aws.ToString(c.Arn) == arn {
			if c.Tags == nil {
				c.Tags = map[string]string{}
			}
			return c.Tags
		}
	}
	for _, ng := range f.nodegroups {
		if aws.ToString(ng.NodegroupArn) == arn {
			if ng.Tags == nil {
				ng.Tags = map[string]string{}
			}
			return ng.Tags
		}
	}
	return nil
}

func (f *fakeEKS) TagResource(_ context.Context, in *eks.TagResourceInput, _ ...func(*eks.Options)) (*eks.TagResourceOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "TagResource")
	tags := f.tagsOf(aws.ToString(in.ResourceArn))
	if tags == nil {
		return nil, notFound("resource")
	}
	for k, v := range in.Tags {
		tags[k] = v
	}
	return &eks.TagResourceOutput{}, nil
}

func (f *fakeEKS) UntagResource(_ context.Context, in *eks.UntagResourceInput, _ ...func(*eks.Options)) (*eks.UntagResourceOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UntagResource")
	tags := f.tagsOf(aws.ToString(in.ResourceArn))
	if tags == nil {
		return nil, notFound("resource")
	}
	for _, k := range in.TagKeys {
		delete(tags, k)
	}
	return &eks.UntagResourceOutput{}, nil
}

var (
	_ EC2API = (*fakeEC2)(nil)
	_ EKSAPI = (*fakeEKS)(nil)
)
