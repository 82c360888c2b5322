package aws

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/imamik/converge/internal/plan"
	"github.com/imamik/converge/internal/util/labels"
)

func stringAttr(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func boolAttr(props map[string]any, key string, def bool) bool {
	if b, ok := props[key].(bool); ok {
		return b
	}
	return def
}

func int32Attr(props map[string]any, key string) *int32 {
	if f, ok := props[key].(float64); ok {
		return aws.Int32(int32(f))
	}
	return nil
}

func stringList(props map[string]any, key string) []string {
	list, _ := props[key].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(props map[string]any, key string) map[string]string {
	m, _ := props[key].(map[string]any)
	return labels.FromAny(m)
}

// changed reports whether any of keys differs between prior and desired.
func changed(prior, desired map[string]any, keys ...string) bool {
	for _, k := range keys {
		if !plan.Equal(prior[k], desired[k]) {
			return true
		}
	}
	return false
}

// orderedLike returns actual in the order of prior when both hold the same
// elements, so reads do not report a reordering as drift. Otherwise actual
// is returned sorted.
func orderedLike(prior any, actual []string) []any {
	want := map[string]bool{}
	for _, s := range actual {
		want[s] = true
	}
	if list, ok := prior.([]any); ok && len(list) == len(actual) {
		same := true
		for _, v := range list {
			s, ok := v.(string)
			if !ok || !want[s] {
				same = false
				break
			}
		}
		if same {
			return append([]any(nil), list...)
		}
	}
	sorted := append([]string(nil), actual...)
	sort.Strings(sorted)
	out := make([]any, len(sorted))
	for i, s := range sorted {
		out[i] = s
	}
	return out
}

func toAnyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
