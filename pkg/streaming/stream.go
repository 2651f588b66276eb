package streaming

import (
	"sync"

	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// DefaultBufferSize bounds how many undelivered events a stream holds.
const DefaultBufferSize = 16

// Config controls stream buffering.
type Config struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// DefaultConfig returns the stock stream configuration.
func DefaultConfig() Config {
	return Config{BufferSize: DefaultBufferSize}
}

// Stream is a bounded ordered queue from one producer to one consumer.
// When the consumer falls behind, the oldest queued progress event is
// dropped to make room; the terminal event is never dropped. After the
// terminal event the channel is closed and further publishes are no-ops.
type Stream struct {
	mu      sync.Mutex
	ch      chan Event
	done    bool
	metrics *observability.Metrics
	logger  observability.Logger
}

// NewStream creates a stream with the configured buffer.
func NewStream(cfg Config, metrics *observability.Metrics, logger observability.Logger) *Stream {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Stream{
		ch:      make(chan Event, size),
		metrics: metrics,
		logger:  logger.WithPrefix("stream"),
	}
}

// Events returns the consumer side. The channel closes after the
// terminal event is delivered or the stream is closed early.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Publish queues an event. Publishing after the terminal event is a
// silent no-op, so producers never need to track consumer state.
func (s *Stream) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	if event.Terminal() {
		s.done = true
		for {
			select {
			case s.ch <- event:
				close(s.ch)
				return
			default:
				s.evictOldest()
			}
		}
	}

	select {
	case s.ch <- event:
	default:
		// Producers serialize on s.mu, so after evicting one slot the
		// send cannot block again.
		s.evictOldest()
		s.ch <- event
	}
}

// CloseEarly closes the stream without a terminal event. Only the
// transport calls this, when the consumer is gone before the run ends.
func (s *Stream) CloseEarly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}

func (s *Stream) evictOldest() {
	select {
	case dropped := <-s.ch:
		s.metrics.RecordStreamDropped()
		s.logger.Warn("Dropping oldest stream event", map[string]interface{}{
			"node":   string(dropped.Node),
			"status": dropped.Status,
		})
	default:
	}
}
