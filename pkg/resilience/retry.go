// Package resilience wraps outbound provider calls with retry, circuit
// breaking, and rate limiting.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// RetryConfig defines configuration for retries
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration

	// RetryIf decides whether an error is worth another attempt.
	// A nil function retries every error.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  60 * time.Second,
	}
}

// Retry retries an operation with exponential backoff
func Retry(ctx context.Context, config RetryConfig, logger observability.Logger, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval
	b.MaxInterval = config.MaxInterval
	b.Multiplier = config.Multiplier
	b.MaxElapsedTime = config.MaxElapsedTime

	var withRetries backoff.BackOff = b
	if config.MaxRetries > 0 {
		withRetries = backoff.WithMaxRetries(b, uint64(config.MaxRetries))
	}
	ctxBackoff := backoff.WithContext(withRetries, ctx)

	wrapped := func() error {
		err := operation()
		if err != nil && config.RetryIf != nil && !config.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		logger.Warn("Retrying after error", map[string]interface{}{
			"delay": delay.String(),
			"error": err.Error(),
		})
	}

	return backoff.RetryNotify(wrapped, ctxBackoff, notify)
}

// RetryWithResult retries an operation with exponential backoff and
// returns its result.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, logger observability.Logger, operation func() (T, error)) (T, error) {
	var result T

	err := Retry(ctx, config, logger, func() error {
		var opErr error
		result, opErr = operation()
		return opErr
	})

	return result, err
}
