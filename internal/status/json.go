package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Hook          string     `json:"hook"`
	Ringing       bool       `json:"ringing"`
	LastRing      *RingJSON  `json:"last_ring,omitempty"`
	NextChime     string     `json:"next_chime,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// RingJSON is the JSON representation of the last ring.
type RingJSON struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Count     uint   `json:"count"`
	Timestamp string `json:"timestamp"`
	Failed    bool   `json:"failed,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Rings         int `json:"rings"`
	Pulses        int `json:"pulses"`
	RingFailures  int `json:"ring_failures"`
	ButtonPresses int `json:"button_presses"`
	Chimes        int `json:"chimes"`
	OffHook       int `json:"off_hook"`
	PromptFails   int `json:"prompt_failures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ChimeStart  int    `json:"chime_start"`
	ChimeEnd    int    `json:"chime_end"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Hook:          string(snap.Hook),
		Ringing:       snap.Ringing,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Rings:         snap.Counts.Rings,
			Pulses:        snap.Counts.Pulses,
			RingFailures:  snap.Counts.RingFailures,
			ButtonPresses: snap.Counts.ButtonPresses,
			Chimes:        snap.Counts.Chimes,
			OffHook:       snap.Counts.OffHook,
			PromptFails:   snap.Counts.PromptFails,
		},
		Config: ConfigJSON{
			ChimeStart:  snap.Config.Window.StartHour,
			ChimeEnd:    snap.Config.Window.EndHour,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if inner.Hook == "" {
		inner.Hook = "UNKNOWN"
	}
	if !snap.NextChime.IsZero() {
		// Local time: the chime window is defined in local hours.
		inner.NextChime = snap.NextChime.Format(time.RFC3339)
	}
	if r := snap.LastRing; r != nil {
		inner.LastRing = &RingJSON{
			ID:        r.ID,
			Source:    string(r.Source),
			Count:     r.Count,
			Timestamp: r.At.UTC().Format(time.RFC3339),
			Failed:    r.Failed,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
