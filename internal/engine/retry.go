package engine

// retry.go - Bounded backoff for transient collaborator failures

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/brickline-labs/pricesheet/internal/faults"
)

// withRetry runs op, retrying only transient failures (connectivity and
// upload faults) a bounded number of times with fibonacci backoff.
// Structural failures surface immediately: they need data correction,
// not another attempt.
func (e *Engine) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(e.opts.RetryAttempts), retry.NewFibonacci(e.opts.RetryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if faults.Retryable(err) {
			e.logger.Warn("transient failure, retrying", "op", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
