// Package aws implements the aws provider: VPC networking through EC2 and
// managed Kubernetes control planes and node groups through EKS.
//
// EC2 resources use their EC2 IDs. An EKS cluster uses its name and a node
// group uses "<cluster name>:<node group name>".
package aws
