// Package led drives the status LED as a liveness heartbeat.
package led

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/gpio"
)

// DefaultInterval is the time between toggles.
const DefaultInterval = 500 * time.Millisecond

// Blinker toggles an output on a fixed interval.
type Blinker struct {
	out      gpio.Output
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Blinker for out.
func New(out gpio.Output, interval time.Duration, logger *zap.Logger) *Blinker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Blinker{out: out, interval: interval, logger: logger}
}

// Run toggles the LED until ctx is done, then leaves it off. A failing
// write is logged once until a write succeeds again.
func (b *Blinker) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	return b.loop(ctx, ticker.C)
}

func (b *Blinker) loop(ctx context.Context, tick <-chan time.Time) error {
	level := gpio.Low
	failing := false
	for {
		select {
		case <-ctx.Done():
			if err := b.out.Write(gpio.Low); err != nil {
				b.logger.Warn("led off failed", zap.Error(err))
			}
			return nil
		case <-tick:
			level = !level
			if err := b.out.Write(level); err != nil {
				if !failing {
					b.logger.Warn("led write failed", zap.Error(err))
				}
				failing = true
				continue
			}
			failing = false
		}
	}
}
