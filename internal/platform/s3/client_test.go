package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"typed NoSuchKey", &types.NoSuchKey{}, true},
		{"wrapped NoSuchBucket", fmt.Errorf("get: %w", &types.NoSuchBucket{}), true},
		{"generic NotFound code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"generic 404 code", &smithy.GenericAPIError{Code: "404"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isNotFoundError(tt.err)
			if got != tt.want {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"precondition failed", &smithy.GenericAPIError{Code: "PreconditionFailed"}, true},
		{"conditional conflict", fmt.Errorf("put: %w", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}), true},
		{"other", &smithy.GenericAPIError{Code: "InternalError"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isPreconditionFailed(tt.err)
			if got != tt.want {
				t.Errorf("isPreconditionFailed() = %v, want %v", got, tt.want)
			}
		})
	}
}
