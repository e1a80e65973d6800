// Package ringer drives the mechanical ringer: a pulse generator that owns
// the H-bridge outputs and a service that serialises ring requests onto it.
package ringer

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/logic"
)

// Pulse timings of one H-bridge drive cycle.
const (
	PulseDuration = 15 * time.Millisecond
	PulseGap      = 5 * time.Millisecond
	CycleDuration = 2 * (PulseDuration + PulseGap)
)

// Outputs are the three lines the generator owns exclusively.
type Outputs struct {
	Enable gpio.Output
	CoilA  gpio.Output
	CoilB  gpio.Output
}

// phase is one step of the drive cycle.
type phase struct {
	a, b gpio.Level
	hold time.Duration
}

// cycle alternates polarity so the armature swings both ways.
var cycle = [...]phase{
	{a: gpio.High, b: gpio.Low, hold: PulseDuration},
	{a: gpio.Low, b: gpio.Low, hold: PulseGap},
	{a: gpio.Low, b: gpio.High, hold: PulseDuration},
	{a: gpio.Low, b: gpio.Low, hold: PulseGap},
}

// Generator converts a pulse count into timed writes on its outputs.
// It must only be used from one goroutine.
type Generator struct {
	out Outputs

	// Sleep holds each phase. It is deliberately not cancellable so a
	// sequence always finishes with the coils released.
	Sleep func(time.Duration)

	logger *zap.Logger
}

// NewGenerator creates a Generator owning out.
func NewGenerator(out Outputs, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{out: out, Sleep: time.Sleep, logger: logger}
}

// Execute raises enable, runs count drive cycles, then drops both coils and
// enable. A count of zero pulses enable with no coil activity.
//
// A write failure aborts the sequence. Both coils and enable are then forced
// low on a best-effort basis and the failure is returned wrapping
// logic.ErrHardware, together with any failures from the forced release.
func (g *Generator) Execute(count uint) error {
	if err := g.write("enable", g.out.Enable, gpio.High); err != nil {
		return g.abort(err)
	}

	for i := uint(0); i < count; i++ {
		for _, p := range cycle {
			if err := g.write("coil-a", g.out.CoilA, p.a); err != nil {
				return g.abort(err)
			}
			if err := g.write("coil-b", g.out.CoilB, p.b); err != nil {
				return g.abort(err)
			}
			g.Sleep(p.hold)
		}
	}

	if err := g.release(); err != nil {
		return fmt.Errorf("release after %d cycles: %w", count, err)
	}
	return nil
}

func (g *Generator) release() error {
	if err := g.write("coil-a", g.out.CoilA, gpio.Low); err != nil {
		return err
	}
	if err := g.write("coil-b", g.out.CoilB, gpio.Low); err != nil {
		return err
	}
	return g.write("enable", g.out.Enable, gpio.Low)
}

// abort forces every output low, attempting each one even if another fails.
func (g *Generator) abort(cause error) error {
	g.logger.Error("ring aborted, releasing outputs", zap.Error(cause))
	err := cause
	err = multierr.Append(err, g.write("coil-a", g.out.CoilA, gpio.Low))
	err = multierr.Append(err, g.write("coil-b", g.out.CoilB, gpio.Low))
	err = multierr.Append(err, g.write("enable", g.out.Enable, gpio.Low))
	return err
}

func (g *Generator) write(name string, out gpio.Output, level gpio.Level) error {
	if err := out.Write(level); err != nil {
		return fmt.Errorf("write %s %s: %w: %w", name, level, logic.ErrHardware, err)
	}
	return nil
}
