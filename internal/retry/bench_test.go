package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRefused = errors.New("connection refused")

// BenchmarkBackoff_FirstDial is the common connect path: the server is
// up and the first attempt succeeds.
func BenchmarkBackoff_FirstDial(b *testing.B) {
	bo := &Backoff{InitialDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second, MaxAttempts: 3, Jitter: true}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return nil }) //nolint:errcheck
	}
}

// BenchmarkBackoff_Rejected measures the early exit taken for errors
// the Retryable predicate refuses, such as an authentication failure.
func BenchmarkBackoff_Rejected(b *testing.B) {
	bo := &Backoff{MaxAttempts: 3, Retryable: func(error) bool { return false }}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bo.Do(ctx, func(_ int) error { return errRefused }) //nolint:errcheck
	}
}

func BenchmarkJitter(b *testing.B) {
	d := 250 * time.Millisecond
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = addJitter(d)
	}
}
