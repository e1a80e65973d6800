// Package status provides a thread-safe status tracker for the ringer daemon.
// It folds the event stream into a snapshot read by the HTTP page and MQTT
// system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ringr/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Window      logic.ChimeWindow
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Ring describes the most recent ring sequence.
type Ring struct {
	ID     string
	Source logic.Source
	Count  uint
	At     time.Time
	Failed bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Hook          logic.HookState
	Ringing       bool
	LastRing      *Ring
	NextChime     time.Time
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// The handset is assumed on the hook until told otherwise.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Hook:      logic.OnHook,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Emit folds an event into the snapshot. It implements logic.Sink.
func (t *Tracker) Emit(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.Add(e)
	switch e.Type {
	case logic.EventRingStarted:
		t.snap.Ringing = true
	case logic.EventRingDone, logic.EventRingFailed:
		t.snap.Ringing = false
		t.snap.LastRing = &Ring{
			ID:     e.CommandID,
			Source: e.Source,
			Count:  e.Count,
			At:     e.Timestamp,
			Failed: e.Type == logic.EventRingFailed,
		}
	case logic.EventChimeScheduled:
		t.snap.NextChime = e.Next
	case logic.EventOffHook:
		t.snap.Hook = logic.OffHook
	case logic.EventOnHook:
		t.snap.Hook = logic.OnHook
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastRing != nil {
		r := *s.LastRing
		s.LastRing = &r
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
