package logic

import (
	"errors"
	"fmt"
	"testing"
)

func TestCountsAdd(t *testing.T) {
	var c Counts
	events := []Event{
		{Type: EventRingStarted, Count: 8},
		{Type: EventRingDone, Count: 8},
		{Type: EventRingDone, Count: 4},
		{Type: EventRingFailed, Count: 2},
		{Type: EventButtonPressed},
		{Type: EventChimeFired},
		{Type: EventChimeScheduled},
		{Type: EventOffHook},
		{Type: EventOnHook},
		{Type: EventPromptFailed},
	}
	for _, e := range events {
		c.Add(e)
	}

	want := Counts{
		Rings:         2,
		Pulses:        12,
		RingFailures:  1,
		ButtonPresses: 1,
		Chimes:        1,
		OffHook:       1,
		PromptFails:   1,
	}
	if c != want {
		t.Errorf("counts: got %+v, want %+v", c, want)
	}
}

func TestSinkFunc(t *testing.T) {
	var got []EventType
	s := SinkFunc(func(e Event) { got = append(got, e.Type) })
	s.Emit(Event{Type: EventOffHook})
	s.Emit(Event{Type: EventOnHook})

	if len(got) != 2 || got[0] != EventOffHook || got[1] != EventOnHook {
		t.Errorf("unexpected events: %v", got)
	}

	// Discard must not panic.
	Discard.Emit(Event{Type: EventRingDone})
}

func TestTee(t *testing.T) {
	var a, b []EventType
	s := Tee(
		SinkFunc(func(e Event) { a = append(a, e.Type) }),
		nil,
		SinkFunc(func(e Event) { b = append(b, e.Type) }),
	)
	s.Emit(Event{Type: EventChimeFired})
	s.Emit(Event{Type: EventButtonPressed})

	want := []EventType{EventChimeFired, EventButtonPressed}
	for _, got := range [][]EventType{a, b} {
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("unexpected events: %v", got)
		}
	}
}

func TestErrorTaxonomyWraps(t *testing.T) {
	err := fmt.Errorf("write coil-a: %w", ErrHardware)
	if !errors.Is(err, ErrHardware) {
		t.Error("expected wrapped error to match ErrHardware")
	}
	if errors.Is(err, ErrChannel) {
		t.Error("hardware fault must not match ErrChannel")
	}
}
