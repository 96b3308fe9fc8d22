// Package resilience provides the retry, failure-classification, and circuit
// breaker primitives shared by the transcription gateway and the offline
// delivery queues.
//
// The central entry point is [Retry]: a bounded retry loop with a per-attempt
// timeout race and an explicit linear backoff policy. A timed-out attempt is
// treated as a failure, not a cancellation: the in-flight call is abandoned
// to its own context and the loop moves on. [CircuitBreaker] protects callers
// from repeatedly hammering a backend that is known to be down.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is returned by [Retry] when every attempt failed.
// The last attempt's error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// RetryConfig holds the tuning knobs for a [Retry] loop.
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxAttempts is the total number of attempts, including the first.
	// Default: 2.
	MaxAttempts int

	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt timeout. Default: 30s.
	AttemptTimeout time.Duration

	// Backoff is the linear backoff unit: attempt n (1-based) is followed by
	// a pause of n × Backoff before the next attempt. Default: 1s.
	Backoff time.Duration

	// RetryAll, when true, retries every failure. When false (the default),
	// only failures classified transient by [IsTransient] are retried;
	// a non-transient failure aborts the loop immediately.
	RetryAll bool
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.AttemptTimeout < 0 {
		cfg.AttemptTimeout = 0
	} else if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return cfg
}

// Retry runs op up to cfg.MaxAttempts times. Each attempt receives a context
// bounded by cfg.AttemptTimeout; between attempts the loop sleeps linearly
// (1×, 2×, … × cfg.Backoff). A non-transient error stops the loop at once
// unless cfg.RetryAll is set.
//
// Returns nil on the first success. When all attempts fail, the returned
// error wraps both [ErrRetriesExhausted] and the last attempt's error. When
// ctx itself is done, ctx.Err() is returned without further attempts.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := func() error {
			attemptCtx := ctx
			if cfg.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
				defer cancel()
			}
			return op(attemptCtx)
		}()

		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.RetryAll && !IsTransient(err) {
			slog.Debug("non-transient failure, not retrying",
				"name", cfg.Name, "attempt", attempt, "error", err)
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		pause := time.Duration(attempt) * cfg.Backoff
		slog.Debug("attempt failed, backing off",
			"name", cfg.Name, "attempt", attempt, "backoff", pause, "error", err)

		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return errors.Join(ErrRetriesExhausted, lastErr)
}
