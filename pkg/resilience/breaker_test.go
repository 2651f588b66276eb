package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

func TestBreaker_PassesThroughResult(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("test"), observability.NewNoopLogger(), nil)

	got, err := b.Execute(func() (interface{}, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	var gotName string
	var gotOpen bool

	config := BreakerConfig{
		Name:         "embedding",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
	b := NewBreaker(config, observability.NewNoopLogger(), func(name string, open bool) {
		gotName = name
		gotOpen = open
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, boom })
		require.ErrorIs(t, err, boom)
	}

	executed := false
	_, err := b.Execute(func() (interface{}, error) {
		executed = true
		return nil, nil
	})

	assert.True(t, IsBreakerOpen(err))
	assert.False(t, executed)
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, "embedding", gotName)
	assert.True(t, gotOpen)
}

func TestIsBreakerOpen(t *testing.T) {
	assert.True(t, IsBreakerOpen(gobreaker.ErrOpenState))
	assert.True(t, IsBreakerOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsBreakerOpen(errors.New("boom")))
	assert.False(t, IsBreakerOpen(nil))
}
