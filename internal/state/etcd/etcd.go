// Package etcd stores state in etcd and locks it with an etcd mutex.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	platformetcd "github.com/imamik/converge/internal/platform/etcd"
	"github.com/imamik/converge/internal/state"
)

const (
	// DefaultPrefix is the key prefix used when none is configured.
	DefaultPrefix = "converge"
	// lockTTL is the session lease, in seconds, backing the lock.
	lockTTL = 60
)

// Config configures the etcd backend.
type Config struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Prefix      string        `mapstructure:"prefix"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	TryLock(ctx context.Context, prefix, infoKey string, holder []byte, ttlSeconds int) (func(context.Context) error, error)
}

// Backend keeps the state document at PREFIX/state and the lock under
// PREFIX/lock.
type Backend struct {
	store  store
	prefix string
}

// New connects to etcd and returns a backend.
func New(cfg Config) (*Backend, error) {
	client, err := platformetcd.NewClient(platformetcd.Options{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd backend: %w", err)
	}
	return newBackend(client, cfg.Prefix), nil
}

func newBackend(s store, prefix string) *Backend {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{store: s, prefix: prefix}
}

func (b *Backend) stateKey() string    { return b.prefix + "/state" }
func (b *Backend) lockPrefix() string  { return b.prefix + "/lock" }
func (b *Backend) lockInfoKey() string { return b.prefix + "/lock-info" }

// Get implements state.Backend.
func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	return b.store.Get(ctx, b.stateKey())
}

// Put implements state.Backend.
func (b *Backend) Put(ctx context.Context, data []byte) error {
	return b.store.Put(ctx, b.stateKey(), data)
}

// Lock implements state.Backend.
func (b *Backend) Lock(ctx context.Context, info *state.LockInfo) (state.Unlocker, error) {
	unlock, err := b.store.TryLock(ctx, b.lockPrefix(), b.lockInfoKey(), info.Marshal(), lockTTL)
	if errors.Is(err, platformetcd.ErrLocked) {
		held, _ := b.store.Get(ctx, b.lockInfoKey())
		return nil, &state.LockError{Info: state.ParseLockInfo(held), Err: err}
	}
	if err != nil {
		return nil, err
	}
	return state.Unlocker(unlock), nil
}
