// Package etcd wraps the etcd v3 client for storing state and taking the
// state lock.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// DefaultDialTimeout bounds connection setup.
const DefaultDialTimeout = 5 * time.Second

// ErrLocked is returned by TryLock when another session holds the mutex.
var ErrLocked = errors.New("etcd mutex is locked")

// kv is the subset of clientv3.KV used here. It is implemented by both the
// real client and test fakes.
type kv interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

// Options configures a Client.
type Options struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Client wraps an etcd client.
type Client struct {
	cli *clientv3.Client
	kv  kv
}

// NewClient connects to etcd.
func NewClient(opts Options) (*Client, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("etcd client was not configured with any endpoints")
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create etcd client: %w", err)
	}
	return &Client{cli: cli, kv: cli}, nil
}

// Close closes the client.
func (c *Client) Close() error {
	if c.cli == nil {
		return nil
	}
	return c.cli.Close()
}

// Get returns the value at key, or nil if the key does not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	return resp.Kvs[0].Value, nil
}

// Put stores data at key.
func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	if _, err := c.kv.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// TryLock acquires the mutex at prefix without waiting and stores holder at
// infoKey for as long as the lock is held. The returned function releases
// both. When the mutex is held, the error wraps ErrLocked.
func (c *Client) TryLock(ctx context.Context, prefix, infoKey string, holder []byte, ttlSeconds int) (func(context.Context) error, error) {
	if c.cli == nil {
		return nil, errors.New("etcd client is not connected")
	}
	session, err := concurrency.NewSession(c.cli, concurrency.WithTTL(ttlSeconds), concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, prefix)
	if err := mutex.TryLock(ctx); err != nil {
		_ = session.Close()
		if errors.Is(err, concurrency.ErrLocked) {
			return nil, fmt.Errorf("%s: %w", prefix, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", prefix, err)
	}

	if _, err := c.kv.Put(ctx, infoKey, string(holder), clientv3.WithLease(session.Lease())); err != nil {
		_ = mutex.Unlock(ctx)
		_ = session.Close()
		return nil, fmt.Errorf("failed to record lock holder: %w", err)
	}

	return func(ctx context.Context) error {
		err := mutex.Unlock(ctx)
		if closeErr := session.Close(); err == nil {
			err = closeErr
		}
		return err
	}, nil
}
