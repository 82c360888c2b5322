package provider

import "errors"

// ThrottledError marks an error as a rate-limit response that is safe to
// retry.
type ThrottledError struct {
	Err error
}

func (e *ThrottledError) Error() string {
	return e.Err.Error()
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}

// Throttled wraps err so that IsThrottled reports true. A nil err stays nil.
func Throttled(err error) error {
	if err == nil {
		return nil
	}
	return &ThrottledError{Err: err}
}

// IsThrottled reports whether err (or anything it wraps) is throttled.
func IsThrottled(err error) bool {
	var t *ThrottledError
	return errors.As(err, &t)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
