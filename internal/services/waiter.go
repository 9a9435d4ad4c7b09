package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// WaitConfig bounds one polling wait for a worker-produced row.
type WaitConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Await polls check on a fixed interval until it reports done, the timeout
// lapses, or ctx is canceled. check must issue a fresh read every call:
// the awaited write happens in the worker's own transaction and would
// never become visible to a cached read.
//
// Polling is the completion signal here because the worker has no push
// channel into this process; its callback lands in the database and we
// observe the row.
func Await[T any](ctx context.Context, cfg WaitConfig, check func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 1 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		out, done, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return out, nil
		}
		if time.Now().After(deadline) {
			return zero, fmt.Errorf("%w: waited %s", ErrGenerationTimedOut, timeout)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RetryConfig bounds a dispatch-then-await pair. After a timed-out wait
// the operation is re-dispatched; the nth re-dispatch waits
// backoffBase << (n-1) first.
type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// DispatchWithRetry runs op up to MaxRetries+1 times. Only a timed-out
// wait earns a re-dispatch; every other failure is terminal, since the
// send itself may have landed and retrying blind would duplicate work.
func DispatchWithRetry(ctx context.Context, log *logger.Logger, cfg RetryConfig, name string, op func(ctx context.Context) error) error {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 1 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			log.Warn("Generation timed out; re-dispatching",
				"op", name,
				"attempt", attempt,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrGenerationTimedOut) {
			return lastErr
		}
	}
	return fmt.Errorf("%w (after %d attempts)", ErrGenerationTimedOut, maxRetries+1)
}
