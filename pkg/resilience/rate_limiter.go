package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// ErrRateLimitExceeded is returned when a reservation cannot be made
// under the configured limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiterConfig configures rate limiter behavior
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64

	// BurstSize is the maximum burst size
	BurstSize int
}

// DefaultRateLimiterConfig returns sensible defaults for generative
// API quotas.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}
}

// RateLimiter throttles outbound requests to stay inside provider
// quotas. The optional hook fires whenever a request had to wait.
type RateLimiter struct {
	limiter   *rate.Limiter
	logger    observability.Logger
	onLimited func()
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimiterConfig, logger observability.Logger, onLimited func()) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultRateLimiterConfig().BurstSize
	}

	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		logger:    logger.WithPrefix("rate-limiter"),
		onLimited: onLimited,
	}
}

// Allow checks if a request is allowed under rate limits
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a request is allowed or the context is done. Waits
// caused by throttling are logged at debug and counted via the hook.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	reservation := rl.limiter.Reserve()
	if !reservation.OK() {
		return ErrRateLimitExceeded
	}

	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}

	if rl.onLimited != nil {
		rl.onLimited()
	}
	rl.logger.Debug("Throttling request", map[string]interface{}{
		"delay": delay.String(),
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}
