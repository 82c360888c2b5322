// Package s3 stores state as an object in an S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"

	platforms3 "github.com/imamik/converge/internal/platform/s3"
	"github.com/imamik/converge/internal/state"
)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "converge.state.json"

// Config configures the s3 backend.
type Config struct {
	Bucket       string `mapstructure:"bucket"`
	Key          string `mapstructure:"key"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	Profile      string `mapstructure:"profile"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type objectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	PutObjectIfAbsent(ctx context.Context, bucket, key string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Backend is a state.Backend storing the document at Key and the lock at
// Key + ".lock", created with a conditional write.
type Backend struct {
	store  objectStore
	bucket string
	key    string
}

// New creates an s3 backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 backend: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3 backend: region is required")
	}
	client, err := platforms3.NewClient(ctx, platforms3.Options{
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		Profile:      cfg.Profile,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 backend: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("s3 backend: bucket %q does not exist", cfg.Bucket)
	}
	return newBackend(client, cfg), nil
}

func newBackend(store objectStore, cfg Config) *Backend {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	return &Backend{store: store, bucket: cfg.Bucket, key: key}
}

func (b *Backend) lockKey() string { return b.key + ".lock" }

// Get implements state.Backend.
func (b *Backend) Get(ctx context.Context) ([]byte, error) {
	data, err := b.store.GetObject(ctx, b.bucket, b.key)
	if errors.Is(err, platforms3.ErrObjectNotFound) {
		return nil, nil
	}
	return data, err
}

// Put implements state.Backend.
func (b *Backend) Put(ctx context.Context, data []byte) error {
	return b.store.PutObject(ctx, b.bucket, b.key, data)
}

// Lock implements state.Backend.
func (b *Backend) Lock(ctx context.Context, info *state.LockInfo) (state.Unlocker, error) {
	err := b.store.PutObjectIfAbsent(ctx, b.bucket, b.lockKey(), info.Marshal())
	if errors.Is(err, platforms3.ErrObjectExists) {
		held, readErr := b.store.GetObject(ctx, b.bucket, b.lockKey())
		if readErr != nil {
			return nil, &state.LockError{Err: err}
		}
		return nil, &state.LockError{Info: state.ParseLockInfo(held), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}

	return func(ctx context.Context) error {
		held, err := b.store.GetObject(ctx, b.bucket, b.lockKey())
		if err != nil {
			return fmt.Errorf("failed to read state lock: %w", err)
		}
		if current := state.ParseLockInfo(held); current != nil && current.ID != info.ID {
			return fmt.Errorf("lock is now held by %s (id %s), not removing it", current.Who, current.ID)
		}
		return b.store.DeleteObject(ctx, b.bucket, b.lockKey())
	}, nil
}
