package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2}, observability.NewNoopLogger(), nil)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestRateLimiter_WaitCountsThrottles(t *testing.T) {
	limited := 0
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 100, BurstSize: 1}, observability.NewNoopLogger(), func() {
		limited++
	})

	require.NoError(t, rl.Wait(context.Background()))
	assert.Equal(t, 0, limited)

	// The burst is spent, so this one has to wait for a token.
	require.NoError(t, rl.Wait(context.Background()))
	assert.Equal(t, 1, limited)
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1}, observability.NewNoopLogger(), nil)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
