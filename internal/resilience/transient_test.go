package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/curanote/curanote/internal/resilience"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"marked transient", resilience.AsTransient(errors.New("http 503")), true},
		{"wrapped marked transient", fmt.Errorf("submit: %w", resilience.AsTransient(errors.New("http 503"))), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, true},
		{"connection reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := resilience.IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v)=%v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAsTransient_NilStaysNil(t *testing.T) {
	t.Parallel()

	if err := resilience.AsTransient(nil); err != nil {
		t.Fatalf("AsTransient(nil)=%v, want nil", err)
	}
}
