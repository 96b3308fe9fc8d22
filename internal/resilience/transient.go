package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// transientError marks a wrapped error as retryable regardless of its type.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// AsTransient wraps err so that [IsTransient] reports true for it. Providers
// use this to flag failures that carry no recognisable network error type
// (e.g., an HTTP 503 from a gateway).
func AsTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient classifies err as a temporary failure worth retrying on the
// same backend: attempt timeouts, connection resets/refusals, DNS failures,
// truncated reads, and anything explicitly marked via [AsTransient].
//
// context.Canceled is never transient: it means the caller gave up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return false
}
