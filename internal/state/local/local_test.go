package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/converge/internal/state"
)

func TestBackend_GetPut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	b := New(Config{}, dir)
	assert.Equal(t, filepath.Join(dir, DefaultPath), b.Path())

	data, err := b.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, b.Put(ctx, []byte("one")))
	require.NoError(t, b.Put(ctx, []byte("two")))

	data, err = b.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	backup, err := os.ReadFile(b.Path() + ".backup")
	require.NoError(t, err)
	assert.Equal(t, "one", string(backup))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must be cleaned up")
}

func TestBackend_Lock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := New(Config{Path: "nested/state.json"}, t.TempDir())

	unlock, err := b.Lock(ctx, state.NewLockInfo("apply", "0.1.0"))
	require.NoError(t, err)

	_, err = b.Lock(ctx, state.NewLockInfo("plan", "0.1.0"))
	require.ErrorIs(t, err, state.ErrLocked)
	var lockErr *state.LockError
	require.ErrorAs(t, err, &lockErr)
	require.NotNil(t, lockErr.Info)
	assert.Equal(t, "apply", lockErr.Info.Operation)

	require.NoError(t, unlock(ctx))

	unlock, err = b.Lock(ctx, state.NewLockInfo("plan", "0.1.0"))
	require.NoError(t, err)
	require.NoError(t, b.ForceUnlock())
	assert.Error(t, unlock(ctx), "lock file already removed")
}

func TestBackend_WithManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	m := state.NewManager(New(Config{}, dir), state.WithVersion("0.1.0"))

	s, err := m.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Write(ctx, s))
	require.NoError(t, m.Write(ctx, s))
	assert.Equal(t, uint64(2), s.Serial)

	other := state.NewManager(New(Config{}, dir))
	loaded, err := other.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Lineage, loaded.Lineage)
	assert.Equal(t, uint64(2), loaded.Serial)
	assert.Equal(t, "0.1.0", loaded.ConvergeVersion)
}
