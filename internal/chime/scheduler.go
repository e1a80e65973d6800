// Package chime rings the ringer on the hour during a daily window.
package chime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/clock"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/ringer"
)

// Ringer accepts ring commands.
type Ringer interface {
	Submit(count uint, src logic.Source) (ringer.Command, error)
}

// Scheduler sleeps until the next chime, submits a ring, and repeats.
type Scheduler struct {
	window logic.ChimeWindow
	count  uint
	ringer Ringer
	sink   logic.Sink
	logger *zap.Logger

	// Now and Sleep are replaceable for tests.
	Now   func() time.Time
	Sleep clock.SleepFunc
}

// New creates a Scheduler that submits count-pulse rings to r.
func New(window logic.ChimeWindow, count uint, r Ringer, sink logic.Sink, logger *zap.Logger) *Scheduler {
	if sink == nil {
		sink = logic.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		window: window,
		count:  count,
		ringer: r,
		sink:   sink,
		logger: logger,
		Now:    time.Now,
		Sleep:  clock.Sleep,
	}
}

// Next returns the next chime time from the current local time.
func (s *Scheduler) Next() time.Time {
	return logic.NextChime(s.Now(), s.window)
}

// Run chimes until ctx is done. A failed submit is logged and the schedule
// carries on.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("chime scheduler started", zap.Stringer("window", s.window), zap.Uint("count", s.count))
	for {
		now := s.Now()
		next := logic.NextChime(now, s.window)
		wait := next.Sub(now)

		s.logger.Info("next chime", zap.Time("at", next), zap.Duration("sleep", wait))
		s.sink.Emit(logic.Event{Type: logic.EventChimeScheduled, Timestamp: now, Next: next})

		if err := s.Sleep(ctx, wait); err != nil {
			return nil
		}

		if _, err := s.ringer.Submit(s.count, logic.SourceChime); err != nil {
			s.logger.Warn("chime submit failed", zap.Error(err))
			continue
		}
		s.sink.Emit(logic.Event{
			Type:      logic.EventChimeFired,
			Timestamp: s.Now(),
			Source:    logic.SourceChime,
			Count:     s.count,
		})
	}
}
