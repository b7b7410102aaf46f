package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/verifai/internal/metrics"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	cb := NewBreaker[int]("test-open", BreakerConfig{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
		Record("test-open", err)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.True(t, Rejected(err))
	Record("test-open", err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-open", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-open", "rejected")))
}

func TestBreakerStaysClosedBelowMinimum(t *testing.T) {
	cb := NewBreaker[string]("test-closed", BreakerConfig{MinRequests: 10})
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (string, error) { return "", errors.New("nope") })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	v, err := cb.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.False(t, Rejected(errors.New("other")))
}

func TestBreakerIgnoresCanceledCalls(t *testing.T) {
	cb := NewBreaker[int]("test-canceled", BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Hour})
	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, fmt.Errorf("request: %w", context.Canceled) })
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}

func TestBreakerCustomIsSuccessful(t *testing.T) {
	notFound := errors.New("not found")
	cb := NewBreaker[int]("test-custom", BreakerConfig{
		MinRequests:  2,
		FailureRatio: 0.5,
		Timeout:      time.Hour,
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, notFound) },
	})

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, notFound })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, errors.New("down") })
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
