// Package gpio provides digital input and output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Level is the logical value of a digital line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Edge selects which transitions of an input produce a notification.
type Edge int

const (
	RisingOnly Edge = iota + 1
	FallingOnly
	Both
)

// Matches reports whether a transition that ended at level l is one this
// edge trigger asks for.
func (e Edge) Matches(l Level) bool {
	switch e {
	case RisingOnly:
		return l == High
	case FallingOnly:
		return l == Low
	case Both:
		return true
	}
	return false
}

func (e Edge) String() string {
	switch e {
	case RisingOnly:
		return "rising"
	case FallingOnly:
		return "falling"
	case Both:
		return "both"
	}
	return "none"
}

// EdgeEvent is a single transition notification.
// Level is the level the line moved to.
type EdgeEvent struct {
	Level Level
	Time  time.Time
}

// Input is a digital input that can notify on edges.
type Input interface {
	// Read samples the current level.
	Read() (Level, error)

	// Arm sets the edge trigger for subsequent notifications and discards
	// any notifications still pending from the previous trigger.
	Arm(edge Edge) error

	// Events returns the notification queue for this input.
	Events() <-chan EdgeEvent

	// Close releases the line.
	Close() error
}

// Output is a digital output.
type Output interface {
	Write(level Level) error
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinButton = 2
	DefaultPinHook   = 3
	DefaultPinEnable = 16
	DefaultPinCoilA  = 20
	DefaultPinCoilB  = 21
)

// EventQueueSize bounds the per-input notification queue.
const EventQueueSize = 16
