package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/provider/providertest"
)

func TestDiff_Create(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Desired: map[string]any{"name": "a", "ref": expr.UnknownValue},
	})
	assert.Equal(t, Create, res.Action)
	assert.Equal(t, []string{"arn", "id", "ref"}, res.Unknown)
}

func TestDiff_NoOp(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "size": 1.0, "id": "test_thing-1", "tags": map[string]any{}},
		Desired: map[string]any{"name": "a", "size": 1},
	})
	assert.Equal(t, NoOp, res.Action)
	assert.Empty(t, res.Changed)
	assert.Empty(t, res.Unknown)
}

func TestDiff_Update(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "size": 1.0, "tags": map[string]any{"env": "dev"}},
		Desired: map[string]any{"name": "a", "size": 1.0, "tags": map[string]any{"env": "prod"}},
	})
	assert.Equal(t, Update, res.Action)
	assert.Equal(t, []string{"tags"}, res.Changed)
	assert.Empty(t, res.ReplaceReasons)
}

func TestDiff_RemovedOptionalAttribute(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "items": []any{"x"}},
		Desired: map[string]any{"name": "a"},
	})
	assert.Equal(t, Update, res.Action)
	assert.Equal(t, []string{"items"}, res.Changed)
}

func TestDiff_ForceNewReplaces(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "zone": "eu-1", "id": "x"},
		Desired: map[string]any{"name": "a", "zone": "eu-2"},
	})
	assert.Equal(t, Replace, res.Action)
	assert.Equal(t, []string{"zone"}, res.ReplaceReasons)
	assert.Contains(t, res.Unknown, "id")
}

func TestDiff_UnknownForceNewReplaces(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "zone": "eu-1"},
		Desired: map[string]any{"name": "a", "zone": expr.UnknownValue},
	})
	assert.Equal(t, Replace, res.Action)
	assert.Equal(t, []string{"zone"}, res.ReplaceReasons)
	assert.Contains(t, res.Unknown, "zone")
}

func TestDiff_UnknownUpdates(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a", "ref": "old"},
		Desired: map[string]any{"name": "a", "ref": expr.UnknownValue},
	})
	assert.Equal(t, Update, res.Action)
	assert.Equal(t, []string{"ref"}, res.Unknown)
}

func TestDiff_IgnoreChanges(t *testing.T) {
	res := Diff(DiffInput{
		Schema:        providertest.ThingSchema(),
		Prior:         map[string]any{"name": "a", "tags": map[string]any{"env": "dev"}},
		Desired:       map[string]any{"name": "a", "tags": map[string]any{"env": "prod"}},
		IgnoreChanges: []string{"tags"},
	})
	assert.Equal(t, NoOp, res.Action)
}

func TestDiff_Tainted(t *testing.T) {
	res := Diff(DiffInput{
		Schema:  providertest.ThingSchema(),
		Prior:   map[string]any{"name": "a"},
		Desired: map[string]any{"name": "a"},
		Tainted: true,
	})
	assert.Equal(t, Replace, res.Action)
	assert.Equal(t, []string{TaintedReason}, res.ReplaceReasons)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, 1.0))
	assert.True(t, Equal(nil, []any{}))
	assert.True(t, Equal(map[string]any{}, nil))
	assert.True(t, Equal([]any{"a", 2}, []any{"a", 2.0}))
	assert.False(t, Equal([]any{"a"}, []any{"b"}))
	assert.False(t, Equal("", nil))
}

func TestKnown(t *testing.T) {
	known, unknown := Known(map[string]any{
		"a": "x",
		"b": []any{expr.UnknownValue},
		"c": expr.UnknownValue,
	})
	assert.Equal(t, map[string]any{"a": "x"}, known)
	assert.Equal(t, []string{"b", "c"}, unknown)
}

func TestDiff_ImmutableReplaces(t *testing.T) {
	res := Diff(DiffInput{
		Schema:    providertest.ThingSchema(),
		Prior:     map[string]any{"name": "a", "size": 1.0},
		Desired:   map[string]any{"name": "a", "size": 2.0},
		Immutable: true,
	})
	assert.Equal(t, Replace, res.Action)
	assert.Equal(t, []string{"size"}, res.ReplaceReasons)
}
