package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerialAndLineage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b, WithVersion("1.2.3"))

	s, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.Serial)

	require.NoError(t, m.Write(ctx, s))
	require.NoError(t, m.Write(ctx, s))
	assert.Equal(t, uint64(2), s.Serial)
	assert.Equal(t, "1.2.3", s.ConvergeVersion)
	assert.Equal(t, 2, b.Writes())

	foreign := New()
	err = m.Write(ctx, foreign)
	assert.ErrorIs(t, err, ErrLineageMismatch)

	stale := s.DeepCopy()
	stale.Serial = 1
	err = m.Write(ctx, stale)
	assert.ErrorContains(t, err, "newer serial")
}

func TestManager_WriteWithoutRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()

	first := NewManager(b)
	s := New()
	require.NoError(t, first.Write(ctx, s))

	second := NewManager(b)
	err := second.Write(ctx, New())
	assert.ErrorIs(t, err, ErrLineageMismatch, "a fresh manager still checks the stored lineage")

	loaded, err := second.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Lineage, loaded.Lineage)
}

func TestManager_Lock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	m := NewManager(b)

	unlock, err := m.Lock(ctx, "apply")
	require.NoError(t, err)

	_, err = m.Lock(ctx, "plan")
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), `operation "apply"`)

	waiting := NewManager(b, WithLockTimeout(time.Second), WithLockRetryDelay(10*time.Millisecond))
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = unlock(ctx)
	}()
	unlock2, err := waiting.Lock(ctx, "plan")
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestManager_LockTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := NewManager(b).Lock(ctx, "apply")
	require.NoError(t, err)

	m := NewManager(b, WithLockTimeout(50*time.Millisecond), WithLockRetryDelay(10*time.Millisecond))
	_, err = m.Lock(ctx, "plan")
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "timed out")
}
