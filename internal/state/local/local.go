// Package local stores state in a file on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/imamik/converge/internal/state"
)

// DefaultPath is the state file used when none is configured.
const DefaultPath = "converge.state.json"

// Config configures the local backend.
type Config struct {
	Path string `mapstructure:"path"`
}

// Backend is a state.Backend writing to a local file. Writes are atomic
// (temp file + rename) and keep the previous version at Path + ".backup".
// The lock is a sibling file created with O_EXCL.
type Backend struct {
	path string
}

// New creates a local backend. Relative paths are resolved against dir.
func New(cfg Config, dir string) *Backend {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	return &Backend{path: path}
}

// Path returns the state file path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) backupPath() string { return b.path + ".backup" }

func (b *Backend) lockPath() string { return b.path + ".lock" }

// Get implements state.Backend.
func (b *Backend) Get(_ context.Context) ([]byte, error) {
	// #nosec G304
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put implements state.Backend.
func (b *Backend) Put(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// #nosec G304
	if prev, err := os.ReadFile(b.path); err == nil {
		if err := os.WriteFile(b.backupPath(), prev, 0o600); err != nil {
			return fmt.Errorf("failed to write state backup: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

// Lock implements state.Backend.
func (b *Backend) Lock(_ context.Context, info *state.LockInfo) (state.Unlocker, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	// #nosec G304
	f, err := os.OpenFile(b.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// #nosec G304
		held, _ := os.ReadFile(b.lockPath())
		return nil, &state.LockError{Info: state.ParseLockInfo(held), Err: fmt.Errorf("lock file %s exists", b.lockPath())}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := f.Write(info.Marshal()); err != nil {
		f.Close()
		os.Remove(b.lockPath())
		return nil, fmt.Errorf("failed to write lock info: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return func(context.Context) error {
		// #nosec G304
		held, err := os.ReadFile(b.lockPath())
		if err != nil {
			return fmt.Errorf("failed to read lock file: %w", err)
		}
		if current := state.ParseLockInfo(held); current != nil && current.ID != info.ID {
			return fmt.Errorf("lock is now held by %s (id %s), not removing it", current.Who, current.ID)
		}
		return os.Remove(b.lockPath())
	}, nil
}

// ForceUnlock removes the lock file regardless of holder.
func (b *Backend) ForceUnlock() error {
	err := os.Remove(b.lockPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
