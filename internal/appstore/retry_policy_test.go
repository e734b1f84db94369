package appstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetryTransient(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	require.True(t, p.ShouldRetry(errors.New("server error"), 0))
	require.True(t, p.ShouldRetry(timeoutErr{}, 1))
}

func TestShouldRetryStopsOnDefinitiveSignals(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(ErrNotFound, 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3))
}

func TestBackoffIsBounded(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryStateNext(t *testing.T) {
	t.Parallel()

	r := RetryState{MaxAttempts: 3, Backoff: 100 * time.Millisecond, Exponential: true}
	require.False(t, r.Exhausted())

	r, delay := r.Next()
	require.Equal(t, 100*time.Millisecond, delay)
	require.Equal(t, 1, r.Attempt)

	r, delay = r.Next()
	require.Equal(t, 200*time.Millisecond, delay)

	r, _ = r.Next()
	require.True(t, r.Exhausted())
}
