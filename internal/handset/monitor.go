// Package handset watches the hook switch and greets whoever picks up.
package handset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/clock"
	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/speech"
)

// Defaults for the greeting.
const (
	DefaultPhrase = "Yes?"
	DefaultDelay  = 700 * time.Millisecond
)

// Waiter blocks until a confirmed transition for edge.
type Waiter interface {
	Wait(ctx context.Context, edge gpio.Edge) (gpio.Level, error)
}

// Monitor tracks the hook state. The switch pulls the line low when the
// handset is lifted.
type Monitor struct {
	in      gpio.Input
	waiter  Waiter
	speaker speech.Speaker
	sink    logic.Sink
	logger  *zap.Logger

	Phrase string
	Delay  time.Duration
	Sleep  clock.SleepFunc
	Now    func() time.Time
}

// New creates a Monitor reading in through waiter.
func New(in gpio.Input, waiter Waiter, speaker speech.Speaker, sink logic.Sink, logger *zap.Logger) *Monitor {
	if sink == nil {
		sink = logic.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		in:      in,
		waiter:  waiter,
		speaker: speaker,
		sink:    sink,
		logger:  logger,
		Phrase:  DefaultPhrase,
		Delay:   DefaultDelay,
		Sleep:   clock.Sleep,
		Now:     time.Now,
	}
}

// Run alternates between waiting for the handset to be lifted and waiting
// for it to be replaced, until ctx is done. A handset already lifted at
// startup is reported without a greeting and must be replaced first. Only hardware faults end it
// early; a failed greeting is logged and tracking carries on.
func (m *Monitor) Run(ctx context.Context) error {
	initial, err := m.in.Read()
	if err != nil {
		return fmt.Errorf("read hook switch: %w: %w", logic.ErrHardware, err)
	}
	m.logger.Info("hook switch", zap.Stringer("level", initial))
	if initial == gpio.Low {
		m.logger.Warn("handset is off the hook at startup")
		m.emit(logic.EventOffHook, "startup")
		if _, err := m.waiter.Wait(ctx, gpio.RisingOnly); err != nil {
			return m.stop(ctx, "wait for on-hook", err)
		}
		m.logger.Info("back on the hook")
		m.emit(logic.EventOnHook, "")
	}

	for {
		level, err := m.waiter.Wait(ctx, gpio.FallingOnly)
		if err != nil {
			return m.stop(ctx, "wait for off-hook", err)
		}
		if level == gpio.High {
			m.logger.Info("on the hook")
			continue
		}

		m.logger.Info("off the hook")
		m.emit(logic.EventOffHook, "")

		if err := m.Sleep(ctx, m.Delay); err != nil {
			return nil
		}
		m.greet(ctx)

		if _, err := m.waiter.Wait(ctx, gpio.RisingOnly); err != nil {
			return m.stop(ctx, "wait for on-hook", err)
		}
		m.logger.Info("back on the hook")
		m.emit(logic.EventOnHook, "")
	}
}

func (m *Monitor) greet(ctx context.Context) {
	m.logger.Info("greeting", zap.String("phrase", m.Phrase))
	if err := m.speaker.Speak(ctx, m.Phrase); err != nil {
		m.logger.Warn("greeting failed", zap.Error(err))
		m.emit(logic.EventPromptFailed, err.Error())
	}
}

func (m *Monitor) stop(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (m *Monitor) emit(t logic.EventType, detail string) {
	m.sink.Emit(logic.Event{Type: t, Timestamp: m.Now(), Detail: detail})
}
