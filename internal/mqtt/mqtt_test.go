package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/ringr/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventRingDone,
		Source:    logic.SourceButton,
		Count:     4,
		CommandID: "c0ffee",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"ringr":{"timestamp":"2026-02-02T22:18:12Z","event":"RING_DONE","source":"BUTTON","count":4,"command_id":"c0ffee"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadZeroCountKept(t *testing.T) {
	payload, err := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventRingStarted,
		Source:    logic.SourceButton,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Ringr.Count == nil || *parsed.Ringr.Count != 0 {
		t.Errorf("count: got %v, want 0", parsed.Ringr.Count)
	}
}

func TestFormatPayloadOmitsRingFieldsForHookEvents(t *testing.T) {
	payload, err := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventOffHook,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"ringr":{"timestamp":"2026-02-02T22:18:12Z","event":"OFF_HOOK"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadNextChimeKeepsLocalOffset(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	payload, err := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 6, 1, 13, 10, 0, 0, loc),
		Type:      logic.EventChimeScheduled,
		Next:      time.Date(2026, 6, 1, 15, 0, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Ringr.Timestamp != "2026-06-01T12:10:00Z" {
		t.Errorf("timestamp: got %s", parsed.Ringr.Timestamp)
	}
	if parsed.Ringr.NextChime != "2026-06-01T15:00:00+01:00" {
		t.Errorf("next_chime: got %s", parsed.Ringr.NextChime)
	}
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	types := []logic.EventType{
		logic.EventRingStarted,
		logic.EventRingDone,
		logic.EventRingFailed,
		logic.EventButtonPressed,
		logic.EventChimeScheduled,
		logic.EventChimeFired,
		logic.EventOffHook,
		logic.EventOnHook,
		logic.EventPromptFailed,
	}
	for _, typ := range types {
		t.Run(string(typ), func(t *testing.T) {
			payload, err := FormatPayload(logic.Event{Timestamp: time.Now(), Type: typ})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Ringr.Event != string(typ) {
				t.Errorf("event: got %s, want %s", parsed.Ringr.Event, typ)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	if Topic != "home/ringr/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "home/ringr/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPayloadPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	fake := NewFakePublisher()

	events := []logic.Event{
		{Timestamp: time.Now(), Type: logic.EventRingStarted, Source: logic.SourceSelfTest, Count: 8},
		{Timestamp: time.Now(), Type: logic.EventRingDone, Source: logic.SourceSelfTest, Count: 8},
		{Timestamp: time.Now(), Type: logic.EventOffHook},
	}
	for _, e := range events {
		require.NoError(t, fake.Publish(e))
	}

	got := fake.Published()
	require.Len(t, got, 3)
	assert.Equal(t, events, got)
	assert.Len(t, fake.Payloads, 3)
}

func TestFakePublisherError(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")

	err := fake.Publish(logic.Event{Type: logic.EventChimeFired})
	assert.EqualError(t, err, "broker down")
	assert.Empty(t, fake.Published())
}

func TestFakePublisherPublishSystem(t *testing.T) {
	fake := NewFakePublisher()
	fake.Connected = true

	require.NoError(t, fake.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}))
	fake.PublishSystemError = errors.New("nope")
	assert.Error(t, fake.PublishSystem(SystemEvent{Event: "HEARTBEAT"}))

	sys := fake.PublishedSystem()
	require.Len(t, sys, 1)
	assert.Equal(t, "STARTUP", sys[0].Event)
	assert.True(t, sys[0].Retained)
	assert.True(t, fake.IsConnected())

	require.NoError(t, fake.Close())
	assert.True(t, fake.Closed)
}

func TestSinkPublishesInOrder(t *testing.T) {
	fake := NewFakePublisher()
	sink := NewSink(zap.NewNop())

	for i := uint(1); i <= 3; i++ {
		sink.Emit(logic.Event{Type: logic.EventRingDone, Source: logic.SourceButton, Count: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx, fake) }()

	require.Eventually(t, func() bool { return len(fake.Published()) == 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	got := fake.Published()
	for i, e := range got {
		assert.Equal(t, uint(i+1), e.Count)
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := NewSink(zap.New(core))

	for i := 0; i < SinkQueueSize+5; i++ {
		sink.Emit(logic.Event{Type: logic.EventButtonPressed})
	}

	assert.Equal(t, uint64(5), sink.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("mqtt queue full, dropping events").Len())
}

func TestSinkContinuesAfterPublishError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fake := NewFakePublisher()
	fake.PublishError = errors.New("broker down")
	sink := NewSink(zap.New(core))

	sink.Emit(logic.Event{Type: logic.EventChimeFired})
	sink.Emit(logic.Event{Type: logic.EventChimeFired})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx, fake) }()

	require.Eventually(t, func() bool { return logs.FilterMessage("publish error").Len() == 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSinkDrainPublishesQueuedEvents(t *testing.T) {
	fake := NewFakePublisher()
	sink := NewSink(nil)

	sink.Emit(logic.Event{Type: logic.EventRingStarted, Source: logic.SourceButton, Count: 4})
	sink.Emit(logic.Event{Type: logic.EventRingDone, Source: logic.SourceButton, Count: 4})

	assert.Equal(t, 2, sink.Drain(fake))
	assert.Equal(t, 0, sink.Drain(fake), "second drain finds nothing")

	got := fake.Published()
	require.Len(t, got, 2)
	assert.Equal(t, logic.EventRingStarted, got[0].Type)
	assert.Equal(t, logic.EventRingDone, got[1].Type)
}
