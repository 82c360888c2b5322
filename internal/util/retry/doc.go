// Package retry provides exponential backoff for provider calls.
//
// Errors wrapped with [Fatal] stop the loop immediately. [Classify] adapts an
// operation so that only errors accepted by a predicate (typically API
// throttling) are retried.
package retry
