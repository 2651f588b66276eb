package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// BreakerConfig defines configuration for a circuit breaker
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns default circuit breaker settings
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// Breaker protects an outbound dependency with a circuit breaker. State
// changes are logged and reported through the optional hook so callers
// can export them as gauges.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger observability.Logger
}

// NewBreaker creates a circuit breaker from the given config
func NewBreaker(config BreakerConfig, logger observability.Logger, onStateChange func(name string, open bool)) *Breaker {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.FailureRatio <= 0 {
		config.FailureRatio = 0.6
	}
	if config.MinRequests == 0 {
		config.MinRequests = 3
	}

	log := logger.WithPrefix("circuit-breaker")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
			if onStateChange != nil {
				onStateChange(name, to == gobreaker.StateOpen)
			}
		},
	}

	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: log,
	}
}

// Execute runs the operation with circuit breaker protection
func (b *Breaker) Execute(operation func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(operation)
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsBreakerOpen reports whether the error came from an open or
// saturated circuit rather than the operation itself.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
