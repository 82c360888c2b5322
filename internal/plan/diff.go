package plan

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/provider"
)

// TaintedReason is the replace reason recorded for tainted instances.
const TaintedReason = "tainted"

// DiffInput is what Diff compares for one instance.
type DiffInput struct {
	Schema *provider.Schema
	// Prior is nil when the instance does not exist yet.
	Prior map[string]any
	// Desired holds evaluated properties with schema defaults applied.
	Desired       map[string]any
	IgnoreChanges []string
	Tainted       bool
	// Immutable is set for resource types without in-place update: every
	// change forces replacement.
	Immutable bool
}

// DiffResult is the outcome of Diff.
type DiffResult struct {
	Action         Action
	Changed        []string
	ReplaceReasons []string
	Unknown        []string
}

// Diff decides the action for an instance present in configuration.
//
// Only configurable attributes are compared: keys set in configuration, and
// optional keys that are no longer set but still hold a value in state.
// Optional attributes that are also computed belong to the provider once
// removed from configuration. Empty lists and maps equal nil.
func Diff(in DiffInput) DiffResult {
	if in.Prior == nil {
		return DiffResult{Action: Create, Unknown: unknownAfterCreate(in.Schema, in.Desired)}
	}

	ignored := make(map[string]bool, len(in.IgnoreChanges))
	for _, name := range in.IgnoreChanges {
		ignored[name] = true
	}

	var res DiffResult
	for _, name := range compareKeys(in.Schema, in.Desired) {
		if ignored[name] {
			continue
		}
		attr := in.Schema.Attribute(name)
		desired, set := in.Desired[name]
		prior := in.Prior[name]

		changed := false
		switch {
		case !set || desired == nil:
			changed = !(attr != nil && attr.Computed) && !isEmpty(prior)
		case expr.ContainsUnknown(desired):
			changed = true
			res.Unknown = append(res.Unknown, name)
		default:
			changed = !Equal(desired, prior)
		}
		if !changed {
			continue
		}
		res.Changed = append(res.Changed, name)
		if in.Immutable || (attr != nil && attr.ForceNew) {
			res.ReplaceReasons = append(res.ReplaceReasons, name)
		}
	}

	switch {
	case in.Tainted:
		res.Action = Replace
		res.ReplaceReasons = append([]string{TaintedReason}, res.ReplaceReasons...)
		res.Unknown = unknownAfterCreate(in.Schema, in.Desired)
	case len(res.ReplaceReasons) > 0:
		res.Action = Replace
		res.Unknown = unknownAfterCreate(in.Schema, in.Desired)
	case len(res.Changed) > 0:
		res.Action = Update
	default:
		res.Action = NoOp
		res.Unknown = nil
	}
	return res
}

// Equal compares two attribute values, treating numbers of any Go type and
// empty collections alike.
func Equal(a, b any) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	return cmp.Equal(expr.Normalize(a), expr.Normalize(b), cmpopts.EquateEmpty())
}

// Known splits desired properties into the known part and the names of
// attributes that still contain Unknown values.
func Known(desired map[string]any) (map[string]any, []string) {
	known := make(map[string]any, len(desired))
	var unknown []string
	for _, k := range expr.SortedKeys(desired) {
		if expr.ContainsUnknown(desired[k]) {
			unknown = append(unknown, k)
			continue
		}
		known[k] = desired[k]
	}
	return known, unknown
}

func unknownAfterCreate(schema *provider.Schema, desired map[string]any) []string {
	_, unknown := Known(desired)
	if schema != nil {
		for name, a := range schema.Attributes {
			if _, set := desired[name]; !set && a.Computed {
				unknown = append(unknown, name)
			}
		}
	}
	sort.Strings(unknown)
	return unknown
}

func compareKeys(schema *provider.Schema, desired map[string]any) []string {
	seen := make(map[string]bool, len(desired))
	var keys []string
	for k := range desired {
		seen[k] = true
		keys = append(keys, k)
	}
	if schema != nil {
		for name, a := range schema.Attributes {
			if a.Configurable() && !seen[name] {
				keys = append(keys, name)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
