package providertest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/converge/internal/provider"
)

func TestProvider_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := New()
	res := p.Resources()[ThingType]

	created, err := res.Create(ctx, &provider.CreateRequest{Address: "test_thing.a", Properties: map[string]any{"name": "a", "size": float64(1)}})
	require.NoError(t, err)
	assert.Equal(t, "test_thing-1", created.ID)
	assert.Equal(t, "arn:test:test_thing-1", created.Attributes["arn"])

	updated, err := res.Update(ctx, &provider.UpdateRequest{
		Address: "test_thing.a",
		ID:      created.ID,
		Patch:   []byte(`{"size": 3, "tags": {"env": "prod"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), updated.Attributes["size"])
	assert.Equal(t, map[string]any{"env": "prod"}, updated.Attributes["tags"])
	assert.Equal(t, "a", updated.Attributes["name"])

	read, err := res.Read(ctx, &provider.ReadRequest{Address: "test_thing.a", ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, updated.Attributes, read.Attributes)

	require.NoError(t, res.Delete(ctx, &provider.DeleteRequest{Address: "test_thing.a", ID: created.ID}))
	_, err = res.Read(ctx, &provider.ReadRequest{Address: "test_thing.a", ID: created.ID})
	assert.ErrorIs(t, err, provider.ErrNotFound)

	ops := []string{}
	for _, c := range p.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{OpCreate, OpUpdate, OpRead, OpDelete, OpRead}, ops)
}

func TestProvider_Injection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := New()
	res := p.Resources()[ThingType]
	boom := errors.New("boom")

	p.Throttle(OpCreate, "test_thing.a", 2)
	for i := 0; i < 2; i++ {
		_, err := res.Create(ctx, &provider.CreateRequest{Address: "test_thing.a", Properties: map[string]any{"name": "a"}})
		assert.True(t, provider.IsThrottled(err))
	}
	_, err := res.Create(ctx, &provider.CreateRequest{Address: "test_thing.a", Properties: map[string]any{"name": "a"}})
	require.NoError(t, err)

	p.Fail(OpCreate, "test_thing.b", boom)
	_, err = res.Create(ctx, &provider.CreateRequest{Address: "test_thing.b", Properties: map[string]any{"name": "b"}})
	assert.ErrorIs(t, err, boom)

	p.FailAfterCreate("test_thing.c", boom)
	partial, err := res.Create(ctx, &provider.CreateRequest{Address: "test_thing.c", Properties: map[string]any{"name": "c"}})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, partial)
	_, exists := p.Object(partial.ID)
	assert.True(t, exists)
	assert.Equal(t, 2, p.Objects())
}

func TestProvider_Drift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := New()
	res := p.Resources()[ThingType]

	created, err := res.Create(ctx, &provider.CreateRequest{Address: "test_thing.a", Properties: map[string]any{"name": "a"}})
	require.NoError(t, err)

	p.Set(created.ID, "name", "changed")
	obj, _ := p.Object(created.ID)
	assert.Equal(t, "changed", obj["name"])

	p.Remove(created.ID)
	assert.Zero(t, p.Objects())
}
