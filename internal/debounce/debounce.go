// Package debounce turns noisy edge notifications from a digital input into
// confirmed level changes.
package debounce

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/clock"
	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/logic"
)

// Defaults for the confirmation window.
const (
	DefaultSamples  = 5
	DefaultInterval = 100 * time.Millisecond
)

// Debouncer waits for and confirms transitions on one input.
// It is owned by a single goroutine.
type Debouncer struct {
	in       gpio.Input
	Samples  int
	Interval time.Duration
	Sleep    clock.SleepFunc
	logger   *zap.Logger
}

// New creates a Debouncer for in with the default window.
func New(in gpio.Input, logger *zap.Logger) *Debouncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		in:       in,
		Samples:  DefaultSamples,
		Interval: DefaultInterval,
		Sleep:    clock.Sleep,
		logger:   logger,
	}
}

// Wait arms the input for edge, blocks until a matching notification
// arrives, then samples the input Samples times, Interval apart, before
// returning the notified level.
//
// A sample that disagrees with the notified level is logged and skipped; it
// still uses up its slot and does not restart the count.
//
// Notifications that do not match edge are logged and ignored. The only
// ways out are a confirmed level, a read failure (wrapping
// logic.ErrHardware), or ctx ending.
func (d *Debouncer) Wait(ctx context.Context, edge gpio.Edge) (gpio.Level, error) {
	if err := d.in.Arm(edge); err != nil {
		return gpio.Low, fmt.Errorf("arm %s edge: %w: %w", edge, logic.ErrHardware, err)
	}

	for {
		select {
		case <-ctx.Done():
			return gpio.Low, ctx.Err()
		case ev := <-d.in.Events():
			if !edge.Matches(ev.Level) {
				d.logger.Warn("bounce", zap.Stringer("edge", edge), zap.Stringer("level", ev.Level))
				continue
			}
			return d.confirm(ctx, ev.Level)
		}
	}
}

func (d *Debouncer) confirm(ctx context.Context, level gpio.Level) (gpio.Level, error) {
	for i := 0; i < d.Samples; i++ {
		if err := d.Sleep(ctx, d.Interval); err != nil {
			return gpio.Low, err
		}
		got, err := d.in.Read()
		if err != nil {
			return gpio.Low, fmt.Errorf("confirm sample %d: %w: %w", i, logic.ErrHardware, err)
		}
		if got != level {
			d.logger.Debug("sample disagrees",
				zap.Int("sample", i),
				zap.Stringer("want", level),
				zap.Stringer("got", got))
		}
	}
	return level, nil
}
