package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curanote/curanote/internal/resilience"
)

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: err=%v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls=%d, want 1", calls)
	}
}

func TestRetry_TransientFailureThenSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return resilience.AsTransient(errors.New("connection reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: err=%v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls=%d, want 2", calls)
	}
}

func TestRetry_NonTransientAbortsImmediately(t *testing.T) {
	t.Parallel()

	permanent := errors.New("invalid credentials")
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{MaxAttempts: 4, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Retry: err=%v, want %v", err, permanent)
	}
	if errors.Is(err, resilience.ErrRetriesExhausted) {
		t.Errorf("Retry: err wraps ErrRetriesExhausted for a non-transient failure")
	}
	if calls != 1 {
		t.Errorf("calls=%d, want 1", calls)
	}
}

func TestRetry_BudgetExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	boom := resilience.AsTransient(errors.New("boom"))
	err := resilience.Retry(context.Background(), resilience.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, resilience.ErrRetriesExhausted) {
		t.Fatalf("Retry: err=%v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Retry: err does not wrap the last attempt error")
	}
	if calls != 3 {
		t.Errorf("calls=%d, want 3", calls)
	}
}

func TestRetry_AttemptTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{
		MaxAttempts:    2,
		AttemptTimeout: 10 * time.Millisecond,
		Backoff:        time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, resilience.ErrRetriesExhausted) {
		t.Fatalf("Retry: err=%v, want ErrRetriesExhausted", err)
	}
	if calls != 2 {
		t.Errorf("calls=%d, want 2 (timeout must retry, not abort)", calls)
	}
}

func TestRetry_ParentContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 3}, func(ctx context.Context) error {
		t.Fatal("op must not run with a cancelled parent context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry: err=%v, want context.Canceled", err)
	}
}

func TestRetry_RetryAllRetriesPermanentErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		RetryAll:    true,
	}, func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})
	if !errors.Is(err, resilience.ErrRetriesExhausted) {
		t.Fatalf("Retry: err=%v, want ErrRetriesExhausted", err)
	}
	if calls != 2 {
		t.Errorf("calls=%d, want 2", calls)
	}
}
