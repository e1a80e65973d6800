// Package mqtt publishes ringer events over MQTT with abstraction for testing.
// Publishing is outbound only; nothing is subscribed.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ringr/internal/logic"
)

// Topic is the MQTT topic for ringer events.
const Topic = "home/ringr/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/ringr/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a ringer event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Ringr EventPayload `json:"ringr"`
}

// EventPayload contains the ringer event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source,omitempty"`
	Count     *uint  `json:"count,omitempty"`
	CommandID string `json:"command_id,omitempty"`
	NextChime string `json:"next_chime,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a ringer event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := EventPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Source:    string(event.Source),
		CommandID: event.CommandID,
		Detail:    event.Detail,
	}
	if event.Source != "" {
		// Zero is a legal ring count, so keep it whenever the event is about a ring.
		count := event.Count
		p.Count = &count
	}
	if !event.Next.IsZero() {
		p.NextChime = event.Next.Format(time.RFC3339)
	}
	return json.Marshal(Payload{Ringr: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
