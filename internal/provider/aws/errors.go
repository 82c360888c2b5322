package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/util/retry"
)

var throttleCodes = map[string]bool{
	"Throttling":                true,
	"ThrottlingException":       true,
	"RequestLimitExceeded":      true,
	"TooManyRequestsException":  true,
	"RequestThrottled":          true,
	"RequestThrottledException": true,
}

var notFoundCodes = map[string]bool{
	"InvalidVpcID.NotFound":             true,
	"InvalidSubnetID.NotFound":          true,
	"InvalidInternetGatewayID.NotFound": true,
	"InvalidRouteTableID.NotFound":      true,
	"InvalidAssociationID.NotFound":     true,
	"ResourceNotFoundException":         true,
}

// errorCode returns the API error code of err, or "" for other errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// classify translates API errors into the provider contract.
func classify(op, resourceType string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("failed to %s %s: %w", op, resourceType, err)
	code := errorCode(err)
	switch {
	case throttleCodes[code]:
		return provider.Throttled(wrapped)
	case notFoundCodes[code]:
		return fmt.Errorf("%w: %w", provider.ErrNotFound, wrapped)
	default:
		return wrapped
	}
}

func isDependencyViolation(err error) bool {
	return errorCode(err) == "DependencyViolation"
}

// retryDependency runs a delete step, retrying while AWS reports a
// DependencyViolation. Other errors end the loop unchanged.
func (p *Provider) retryDependency(ctx context.Context, op func() error) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		err := op()
		if err == nil || isDependencyViolation(err) {
			return err
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(p.dependencyTries),
		retry.WithInitialDelay(p.dependencyDelay))

	var fatal *retry.FatalError
	if errors.As(err, &fatal) {
		return fatal.Err
	}
	return err
}
