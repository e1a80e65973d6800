// Package button turns call-button presses into ring requests.
package button

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/ringer"
)

// Ringer accepts ring commands.
type Ringer interface {
	Submit(count uint, src logic.Source) (ringer.Command, error)
}

// Monitor reacts to falling edges on the button input. There is no
// confirmation window: every falling notification is a press.
type Monitor struct {
	in     gpio.Input
	ringer Ringer
	count  uint
	sink   logic.Sink
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Monitor that submits count-pulse rings to r.
func New(in gpio.Input, r Ringer, count uint, sink logic.Sink, logger *zap.Logger) *Monitor {
	if sink == nil {
		sink = logic.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{in: in, ringer: r, count: count, sink: sink, logger: logger, now: time.Now}
}

// Run arms the input for falling edges and handles presses until ctx is
// done. Each press submits and returns straight away, so a ring in
// progress never delays the next press.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.in.Arm(gpio.FallingOnly); err != nil {
		return fmt.Errorf("arm button: %w: %w", logic.ErrHardware, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.in.Events():
			if ev.Level != gpio.Low {
				continue
			}
			m.press()
		}
	}
}

func (m *Monitor) press() {
	m.sink.Emit(logic.Event{Type: logic.EventButtonPressed, Timestamp: m.now(), Source: logic.SourceButton, Count: m.count})
	cmd, err := m.ringer.Submit(m.count, logic.SourceButton)
	if err != nil {
		m.logger.Warn("ring request dropped", zap.Error(err))
		return
	}
	m.logger.Info("button pressed", zap.String("id", cmd.ID), zap.Uint("count", m.count))
}
