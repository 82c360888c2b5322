package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLocked is wrapped by LockError.
	ErrLocked = errors.New("state is locked")
	// ErrLineageMismatch is returned when writing a state that belongs to a
	// different history than the stored one.
	ErrLineageMismatch = errors.New("state lineage mismatch")
)

// Backend stores the encoded state document and provides mutual exclusion.
type Backend interface {
	// Get returns the stored document, or nil if none exists yet.
	Get(ctx context.Context) ([]byte, error)
	// Put replaces the stored document.
	Put(ctx context.Context, data []byte) error
	// Lock acquires the state lock. It returns a LockError wrapping
	// ErrLocked if another holder has it.
	Lock(ctx context.Context, info *LockInfo) (Unlocker, error)
}

// Unlocker releases a lock.
type Unlocker func(ctx context.Context) error

// LockInfo describes a lock holder.
type LockInfo struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Who       string    `json:"who"`
	Version   string    `json:"version,omitempty"`
	Created   time.Time `json:"created"`
}

// NewLockInfo describes a lock taken by this process for operation.
func NewLockInfo(operation, version string) *LockInfo {
	who := "unknown"
	if u, err := user.Current(); err == nil {
		who = u.Username
	}
	if host, err := os.Hostname(); err == nil {
		who += "@" + host
	}
	return &LockInfo{
		ID:        uuid.NewString(),
		Operation: operation,
		Who:       who,
		Version:   version,
		Created:   time.Now().UTC(),
	}
}

// Marshal encodes the lock info as JSON.
func (l *LockInfo) Marshal() []byte {
	data, _ := json.Marshal(l)
	return data
}

// ParseLockInfo decodes lock info, tolerating garbage.
func ParseLockInfo(data []byte) *LockInfo {
	var l LockInfo
	if err := json.Unmarshal(data, &l); err != nil {
		return nil
	}
	return &l
}

// LockError reports a held lock.
type LockError struct {
	Info *LockInfo
	Err  error
}

func (e *LockError) Error() string {
	if e.Info == nil {
		return fmt.Sprintf("%s: %v", ErrLocked, e.Err)
	}
	return fmt.Sprintf("%s by %s (operation %q, id %s, since %s)",
		ErrLocked, e.Info.Who, e.Info.Operation, e.Info.ID, e.Info.Created.Format(time.RFC3339))
}

func (e *LockError) Unwrap() error { return ErrLocked }
