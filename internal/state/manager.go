package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/converge/internal/util/retry"
)

// Manager reads and writes State through a Backend, enforcing lineage and
// serial rules. It is safe for concurrent use.
type Manager struct {
	backend     Backend
	version     string
	lockTimeout time.Duration
	lockDelay   time.Duration

	mu      sync.Mutex
	loaded  bool
	lineage string
	serial  uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithVersion records the running converge version in written states.
func WithVersion(v string) ManagerOption {
	return func(m *Manager) { m.version = v }
}

// WithLockTimeout keeps retrying a held lock for up to d.
func WithLockTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.lockTimeout = d }
}

// WithLockRetryDelay sets the initial delay between lock attempts.
func WithLockRetryDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.lockDelay = d }
}

// NewManager wraps a backend.
func NewManager(b Backend, opts ...ManagerOption) *Manager {
	m := &Manager{backend: b, lockDelay: time.Second}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the stored state, or a new empty state if none exists.
func (m *Manager) Read(ctx context.Context) (*State, error) {
	data, err := m.backend.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	if data == nil {
		m.lineage, m.serial = "", 0
		return New(), nil
	}
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	m.lineage, m.serial = s.Lineage, s.Serial
	return s, nil
}

// Write persists s, incrementing its serial. Writing a state from another
// lineage, or one older than the stored serial, is refused.
func (m *Manager) Write(ctx context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		data, err := m.backend.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read state: %w", err)
		}
		if data != nil {
			stored, err := Decode(data)
			if err != nil {
				return err
			}
			m.lineage, m.serial = stored.Lineage, stored.Serial
		}
		m.loaded = true
	}

	if s.Lineage == "" {
		s.Lineage = uuid.NewString()
	}
	if m.lineage != "" && s.Lineage != m.lineage {
		return fmt.Errorf("%w: stored %s, writing %s", ErrLineageMismatch, m.lineage, s.Lineage)
	}
	if s.Serial < m.serial {
		return fmt.Errorf("refusing to write state serial %d over newer serial %d", s.Serial, m.serial)
	}

	next := *s
	next.Serial = m.serial + 1
	next.Version = FormatVersion
	if m.version != "" {
		next.ConvergeVersion = m.version
	}
	data, err := Encode(&next)
	if err != nil {
		return err
	}
	if err := m.backend.Put(ctx, data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	s.Serial, s.Version, s.ConvergeVersion = next.Serial, next.Version, next.ConvergeVersion
	m.lineage, m.serial = s.Lineage, s.Serial
	return nil
}

// Lock acquires the backend lock for operation, retrying while it is held
// by someone else for up to the configured lock timeout.
func (m *Manager) Lock(ctx context.Context, operation string) (Unlocker, error) {
	info := NewLockInfo(operation, m.version)
	if m.lockTimeout <= 0 {
		return m.backend.Lock(ctx, info)
	}

	ctx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	var unlock Unlocker
	var lastLockErr error
	err := retry.WithExponentialBackoff(ctx, retry.Classify(func() error {
		u, err := m.backend.Lock(ctx, info)
		if err != nil {
			if errors.Is(err, ErrLocked) {
				lastLockErr = err
			}
			return err
		}
		unlock = u
		return nil
	}, func(err error) bool {
		return errors.Is(err, ErrLocked)
	}),
		retry.WithMaxRetries(math.MaxInt32),
		retry.WithInitialDelay(m.lockDelay),
		retry.WithMaxDelay(10*m.lockDelay),
	)
	if err != nil {
		if lastLockErr != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("timed out after %s waiting for state lock: %w", m.lockTimeout, lastLockErr)
		}
		return nil, err
	}
	return unlock, nil
}
