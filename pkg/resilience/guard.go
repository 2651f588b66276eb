package resilience

import (
	"context"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// GuardConfig bundles the three policies applied to one dependency.
type GuardConfig struct {
	Name    string
	Retry   RetryConfig
	Breaker BreakerConfig
	Limiter RateLimiterConfig
}

// DefaultGuardConfig returns defaults suitable for a remote model API.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:    name,
		Retry:   DefaultRetryConfig(),
		Breaker: DefaultBreakerConfig(name),
		Limiter: DefaultRateLimiterConfig(),
	}
}

// GuardHooks carries optional observability callbacks.
type GuardHooks struct {
	OnBreakerStateChange func(name string, open bool)
	OnRateLimited        func()
}

// Guard composes rate limiting, retry, and circuit breaking around a
// single outbound dependency. Requests pass the limiter once, then each
// retry attempt goes through the breaker so failures are counted
// individually.
type Guard struct {
	name    string
	retry   RetryConfig
	breaker *Breaker
	limiter *RateLimiter
	logger  observability.Logger
}

// NewGuard creates a guard for the named dependency
func NewGuard(config GuardConfig, logger observability.Logger, hooks GuardHooks) *Guard {
	log := logger.WithPrefix(config.Name)

	return &Guard{
		name:    config.Name,
		retry:   config.Retry,
		breaker: NewBreaker(config.Breaker, log, hooks.OnBreakerStateChange),
		limiter: NewRateLimiter(config.Limiter, log, hooks.OnRateLimited),
		logger:  log,
	}
}

// Do executes the operation under the guard's policies
func (g *Guard) Do(ctx context.Context, operation func(context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	retry := g.retry
	userRetryIf := retry.RetryIf
	retry.RetryIf = func(err error) bool {
		// An open breaker will not recover within one retry loop.
		if IsBreakerOpen(err) {
			return false
		}
		if userRetryIf != nil {
			return userRetryIf(err)
		}
		return true
	}

	return Retry(ctx, retry, g.logger, func() error {
		_, err := g.breaker.Execute(func() (interface{}, error) {
			return nil, operation(ctx)
		})
		return err
	})
}

// DoWithResult executes the operation under the guard's policies and
// returns its result.
func DoWithResult[T any](ctx context.Context, g *Guard, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := g.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})

	return result, err
}
