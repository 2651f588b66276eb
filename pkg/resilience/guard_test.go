package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

func testGuardConfig(name string) GuardConfig {
	config := DefaultGuardConfig(name)
	config.Retry = fastRetryConfig()
	config.Limiter = RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 1000}
	return config
}

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	g := NewGuard(testGuardConfig("test"), observability.NewNoopLogger(), GuardHooks{})

	calls := 0
	got, err := DoWithResult(context.Background(), g, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestGuard_RespectsRetryIf(t *testing.T) {
	config := testGuardConfig("test")
	config.Retry.RetryIf = func(err error) bool { return false }
	g := NewGuard(config, observability.NewNoopLogger(), GuardHooks{})

	calls := 0
	fatal := errors.New("invalid payload")
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestGuard_FailsFastWhenOpen(t *testing.T) {
	config := testGuardConfig("test")
	config.Retry.RetryIf = func(err error) bool { return false }
	config.Breaker = BreakerConfig{
		Name:         "test",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
	g := NewGuard(config, observability.NewNoopLogger(), GuardHooks{})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := g.Do(context.Background(), func(ctx context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.True(t, IsBreakerOpen(err))
	assert.Equal(t, 0, calls)
}
