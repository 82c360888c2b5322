package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/util/retry"
)

// call runs one provider operation. Throttled errors are retried with
// exponential backoff; anything else fails at once. Each attempt runs under
// timeout when it is positive.
func (e *Engine) call(ctx context.Context, phase, action, typ, address string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempt := func() error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return retry.Fatal(fmt.Errorf("%s timed out after %s: %w", action, timeout, err))
		}
		return err
	}

	rs := e.settings.Retry
	err := retry.WithExponentialBackoff(ctx, retry.Classify(attempt, provider.IsThrottled),
		retry.WithMaxRetries(max(rs.MaxAttempts-1, 0)),
		retry.WithInitialDelay(rs.InitialDelay),
		retry.WithMaxDelay(rs.MaxDelay),
		retry.WithOnRetry(func(n int, err error, delay time.Duration) {
			e.metrics.RecordRetry(typ)
			observability.LogResourceRetry(e.observer, phase, address, n, err, delay)
		}),
	)
	e.metrics.RecordOperation(typ, action, err, time.Since(start))
	return err
}
