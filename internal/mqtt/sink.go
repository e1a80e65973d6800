package mqtt

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/logic"
)

// SinkQueueSize bounds the events waiting to be published.
const SinkQueueSize = 64

// Sink hands events to a Publisher on its own goroutine so emitters never
// wait on the network. When the queue is full new events are dropped.
type Sink struct {
	events  chan logic.Event
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewSink creates a Sink. Nothing is published until Run is called.
func NewSink(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{events: make(chan logic.Event, SinkQueueSize), logger: logger}
}

// Emit queues e without blocking.
func (s *Sink) Emit(e logic.Event) {
	select {
	case s.events <- e:
	default:
		if s.dropped.Add(1) == 1 {
			s.logger.Warn("mqtt queue full, dropping events")
		}
	}
}

// Dropped returns the number of events lost to a full queue.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run publishes queued events until ctx is done.
func (s *Sink) Run(ctx context.Context, pub Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.events:
			s.publish(pub, e)
		}
	}
}

// Drain publishes whatever is still queued and returns once the queue is
// empty. Call it after Run has returned.
func (s *Sink) Drain(pub Publisher) int {
	n := 0
	for {
		select {
		case e := <-s.events:
			s.publish(pub, e)
			n++
		default:
			return n
		}
	}
}

func (s *Sink) publish(pub Publisher, e logic.Event) {
	if err := pub.Publish(e); err != nil {
		s.logger.Warn("publish error", zap.String("event", string(e.Type)), zap.Error(err))
	}
}
