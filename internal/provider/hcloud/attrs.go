package hcloud

import (
	"github.com/imamik/converge/internal/util/labels"
)

func stringAttr(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// resourceLabels merges the user's labels with the converge management
// labels, sanitized to what the API accepts.
func resourceLabels(stack, address string, props map[string]any) map[string]string {
	user, _ := props["labels"].(map[string]any)
	return labels.NewLabelBuilder(stack).
		WithAddress(address).
		Merge(labels.FromAny(user)).
		BuildSanitized()
}

// userLabels is the inverse of resourceLabels, used when reporting
// attributes.
func userLabels(l map[string]string) map[string]any {
	return labels.WithoutManaged(l)
}
