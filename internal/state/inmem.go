package state

import (
	"context"
	"sync"
)

// MemoryBackend keeps state in memory. It backs tests and dry runs.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	lock   *LockInfo
	writes int
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Get implements Backend.
func (b *MemoryBackend) Get(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, nil
	}
	return append([]byte(nil), b.data...), nil
}

// Put implements Backend.
func (b *MemoryBackend) Put(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.writes++
	return nil
}

// Lock implements Backend.
func (b *MemoryBackend) Lock(_ context.Context, info *LockInfo) (Unlocker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lock != nil {
		return nil, &LockError{Info: b.lock}
	}
	b.lock = info
	return func(context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.lock != nil && b.lock.ID == info.ID {
			b.lock = nil
		}
		return nil
	}, nil
}

// Writes returns the number of Put calls.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
