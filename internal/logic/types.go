// Package logic contains the pure types and calculations shared by the ringer daemon.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", ...) and
// test with errors.Is.
var (
	ErrHardware = errors.New("hardware fault")
	ErrChannel  = errors.New("channel fault")
	ErrPlayback = errors.New("playback fault")
)

// HookState is the derived state of the handset hook switch.
type HookState string

const (
	OnHook  HookState = "ON_HOOK"
	OffHook HookState = "OFF_HOOK"
)

// Source identifies who asked for a ring.
type Source string

const (
	SourceSelfTest Source = "SELF_TEST"
	SourceButton   Source = "BUTTON"
	SourceChime    Source = "CHIME"
)

// EventType represents something worth reporting.
type EventType string

const (
	EventRingStarted    EventType = "RING_STARTED"
	EventRingDone       EventType = "RING_DONE"
	EventRingFailed     EventType = "RING_FAILED"
	EventButtonPressed  EventType = "BUTTON_PRESSED"
	EventChimeScheduled EventType = "CHIME_SCHEDULED"
	EventChimeFired     EventType = "CHIME_FIRED"
	EventOffHook        EventType = "OFF_HOOK"
	EventOnHook         EventType = "ON_HOOK"
	EventPromptFailed   EventType = "PROMPT_FAILED"
)

// Event is a single observation emitted by one of the daemon's loops.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Source    Source    // ring events only
	Count     uint      // pulse count, ring events only
	CommandID string    // ring events only
	Next      time.Time // CHIME_SCHEDULED only
	Detail    string    // failure text, if any
}

// Sink receives events. Implementations must not block the caller for long:
// the ringer worker emits from inside its only goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Event) {})

// Tee returns a Sink that hands every event to each of sinks in order.
// Nil entries are skipped.
func Tee(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}

// Counts tracks the number of notable events since startup.
type Counts struct {
	Rings         int
	Pulses        int
	RingFailures  int
	ButtonPresses int
	Chimes        int
	OffHook       int
	PromptFails   int
}

// Add folds a single event into the counts.
func (c *Counts) Add(e Event) {
	switch e.Type {
	case EventRingDone:
		c.Rings++
		c.Pulses += int(e.Count)
	case EventRingFailed:
		c.RingFailures++
	case EventButtonPressed:
		c.ButtonPresses++
	case EventChimeFired:
		c.Chimes++
	case EventOffHook:
		c.OffHook++
	case EventPromptFailed:
		c.PromptFails++
	}
}
