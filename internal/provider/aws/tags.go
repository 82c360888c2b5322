package aws

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/imamik/converge/internal/util/labels"
)

// resourceTags merges the user's tags with the converge management tags.
// The Name tag defaults to the resource address.
func resourceTags(stack, address string, props map[string]any) map[string]string {
	return labels.NewLabelBuilder(stack).
		WithAddress(address).
		Merge(stringMap(props, "tags")).
		WithName(address).
		Build()
}

// userTags strips what resourceTags added.
func userTags(tags map[string]string, address string) map[string]any {
	out := labels.WithoutManaged(tags)
	if out[labels.NameTag] == address {
		delete(out, labels.NameTag)
	}
	return out
}

func ec2Tags(m map[string]string) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return out
}

func ec2TagMap(tags []types.Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func tagSpecs(rt types.ResourceType, m map[string]string) []types.TagSpecification {
	return []types.TagSpecification{{ResourceType: rt, Tags: ec2Tags(m)}}
}

// removedTags returns the keys set in prior but not in desired.
func removedTags(prior, desired map[string]string) []string {
	var out []string
	for k := range prior {
		if _, ok := desired[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// syncEC2Tags makes the tags of id match desired.
func (p *Provider) syncEC2Tags(ctx context.Context, id, stack, address string, prior, desired map[string]any) error {
	if !changed(prior, desired, "tags") {
		return nil
	}
	want := resourceTags(stack, address, desired)
	if gone := removedTags(resourceTags(stack, address, prior), want); len(gone) > 0 {
		del := make([]types.Tag, len(gone))
		for i, k := range gone {
			del[i] = types.Tag{Key: aws.String(k)}
		}
		if _, err := p.ec2.DeleteTags(ctx, &ec2.DeleteTagsInput{Resources: []string{id}, Tags: del}); err != nil {
			return classify("untag", id, err)
		}
	}
	_, err := p.ec2.CreateTags(ctx, &ec2.CreateTagsInput{Resources: []string{id}, Tags: ec2Tags(want)})
	return classify("tag", id, err)
}

// syncEKSTags makes the tags of the EKS resource arn match desired.
func (p *Provider) syncEKSTags(ctx context.Context, arn, stack, address string, prior, desired map[string]any) error {
	if !changed(prior, desired, "tags") {
		return nil
	}
	want := resourceTags(stack, address, desired)
	if gone := removedTags(resourceTags(stack, address, prior), want); len(gone) > 0 {
		if _, err := p.eks.UntagResource(ctx, &eks.UntagResourceInput{ResourceArn: aws.String(arn), TagKeys: gone}); err != nil {
			return classify("untag", arn, err)
		}
	}
	_, err := p.eks.TagResource(ctx, &eks.TagResourceInput{ResourceArn: aws.String(arn), Tags: want})
	return classify("tag", arn, err)
}
