package labels

import (
	"regexp"
	"strings"
)

// Standard label keys attached to provider resources.
const (
	// KeyStack identifies which stack a resource belongs to
	KeyStack = "converge.io/stack"

	// KeyAddress is the resource address inside the stack
	KeyAddress = "converge.io/address"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "converge.io/managed-by"

	// NameTag is the AWS console display name tag.
	NameTag = "Name"
)

// ManagedByConverge is the KeyManagedBy value for every resource created here.
const ManagedByConverge = "converge"

// maxValueLength is the hcloud label value limit.
const maxValueLength = 63

var invalidValueChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// LabelBuilder provides a fluent interface for building resource labels and tags.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the stack name pre-set.
func NewLabelBuilder(stack string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyStack:     stack,
			KeyManagedBy: ManagedByConverge,
		},
	}
}

// WithAddress records the resource address.
func (lb *LabelBuilder) WithAddress(address string) *LabelBuilder {
	lb.labels[KeyAddress] = address
	return lb
}

// WithName sets the Name tag if it is not already set by the user.
func (lb *LabelBuilder) WithName(name string) *LabelBuilder {
	if _, ok := lb.labels[NameTag]; !ok && name != "" {
		lb.labels[NameTag] = name
	}
	return lb
}

// Merge adds all labels from the provided map. User labels win over defaults.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// BuildSanitized returns a copy with every value made acceptable to label
// systems that restrict the character set (hcloud).
func (lb *LabelBuilder) BuildSanitized() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = SanitizeValue(v)
	}
	return result
}

// SanitizeValue replaces characters hcloud rejects in label values and trims
// the value to the maximum length. Values must start and end alphanumeric.
func SanitizeValue(v string) string {
	v = invalidValueChars.ReplaceAllString(v, "_")
	if len(v) > maxValueLength {
		v = v[:maxValueLength]
	}
	return strings.Trim(v, "._-")
}

// FromAny converts a decoded map (map[string]any) into string labels,
// skipping nil values.
func FromAny(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = strings.TrimSpace(toString(v))
	}
	return out
}

// WithoutManaged strips the keys this package sets, leaving only user labels.
func WithoutManaged(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case KeyStack, KeyAddress, KeyManagedBy:
			continue
		}
		out[k] = v
	}
	return out
}
