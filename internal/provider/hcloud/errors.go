package hcloud

import (
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/converge/internal/provider"
)

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action on the same
// resource is still running. These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsRateLimited checks if an error indicates rate limiting.
func IsRateLimited(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeRateLimitExceeded)
}

// classify translates API errors into the provider contract: rate limits
// become throttled errors and not_found becomes provider.ErrNotFound.
func classify(op, resourceType string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("failed to %s %s: %w", op, resourceType, err)
	switch {
	case IsRateLimited(err):
		return provider.Throttled(wrapped)
	case isHCloudErrorCode(err, hcloud.ErrorCodeNotFound):
		return fmt.Errorf("%w: %w", provider.ErrNotFound, wrapped)
	default:
		return wrapped
	}
}
