package hcloud

import (
	"context"
	"errors"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/util/retry"
)

// deleteOperation encapsulates deletion logic for any hcloud resource
// addressed by ID. It provides consistent retry and error handling across
// all resource types.
//
// Usage example:
//
//	return (&deleteOperation[*hcloud.SSHKey]{
//	    ID:           id,
//	    ResourceType: "ssh key",
//	    Get:          p.client.SSHKey.GetByID,
//	    Delete:       p.client.SSHKey.Delete,
//	}).Execute(ctx, p)
type deleteOperation[T any] struct {
	ID           int64
	ResourceType string

	// Get retrieves the resource by ID. A nil resource means it is gone.
	Get func(ctx context.Context, id int64) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete operation with retry logic.
// The operation is idempotent - it succeeds if the resource doesn't exist.
// Locked resources are retried with exponential backoff.
func (op *deleteOperation[T]) Execute(ctx context.Context, p *Provider) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.ID)
		if err != nil {
			return retry.Fatal(classify("get", op.ResourceType, err))
		}

		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		_, err = op.Delete(ctx, resource)
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(classify("delete", op.ResourceType, err))
		}
		return nil
	},
		retry.WithMaxRetries(p.lockRetries),
		retry.WithInitialDelay(p.lockDelay))
	return unwrapFatal(err)
}

// unwrapFatal strips the fatal marker used to stop the lock retry loop so
// the engine classifies the underlying error itself.
func unwrapFatal(err error) error {
	var fatal *retry.FatalError
	if errors.As(err, &fatal) {
		return fatal.Err
	}
	return err
}

// waitForActions waits for one or more actions to complete.
// Handles both single actions and multiple actions uniformly.
func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	var pending []*hcloud.Action
	for _, a := range actions {
		if a != nil {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, pending...)
}
