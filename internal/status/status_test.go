package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/ringr/internal/logic"
)

var (
	testStart  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	testConfig = Config{
		Window:      logic.ChimeWindow{StartHour: 9, EndHour: 19},
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
	}
)

func newTestTracker() *Tracker {
	tr := NewTracker(testStart, testConfig)
	tr.now = func() time.Time { return testStart.Add(90 * time.Second) }
	return tr
}

func TestNewTracker(t *testing.T) {
	tr := newTestTracker()
	snap := tr.Snapshot()

	assert.Equal(t, logic.OnHook, snap.Hook)
	assert.False(t, snap.Ringing)
	assert.Nil(t, snap.LastRing)
	assert.True(t, snap.NextChime.IsZero())
	assert.Equal(t, testConfig, snap.Config)
	assert.Equal(t, 90*time.Second, snap.Uptime())
}

func TestEmitRingLifecycle(t *testing.T) {
	tr := newTestTracker()
	at := testStart.Add(time.Minute)

	tr.Emit(logic.Event{Type: logic.EventRingStarted, Count: 4, Source: logic.SourceButton, CommandID: "abc", Timestamp: at})
	assert.True(t, tr.Snapshot().Ringing)

	tr.Emit(logic.Event{Type: logic.EventRingDone, Count: 4, Source: logic.SourceButton, CommandID: "abc", Timestamp: at})
	snap := tr.Snapshot()
	assert.False(t, snap.Ringing)
	require.NotNil(t, snap.LastRing)
	assert.Equal(t, Ring{ID: "abc", Source: logic.SourceButton, Count: 4, At: at}, *snap.LastRing)
	assert.Equal(t, 1, snap.Counts.Rings)
	assert.Equal(t, 4, snap.Counts.Pulses)

	tr.Emit(logic.Event{Type: logic.EventRingStarted, Count: 2})
	tr.Emit(logic.Event{Type: logic.EventRingFailed, Count: 2, CommandID: "def"})
	snap = tr.Snapshot()
	assert.False(t, snap.Ringing)
	assert.True(t, snap.LastRing.Failed)
	assert.Equal(t, 1, snap.Counts.RingFailures)
}

func TestEmitHookAndChime(t *testing.T) {
	tr := newTestTracker()
	next := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)

	tr.Emit(logic.Event{Type: logic.EventChimeScheduled, Next: next})
	tr.Emit(logic.Event{Type: logic.EventOffHook})
	snap := tr.Snapshot()
	assert.Equal(t, logic.OffHook, snap.Hook)
	assert.True(t, snap.NextChime.Equal(next))

	tr.Emit(logic.Event{Type: logic.EventOnHook})
	assert.Equal(t, logic.OnHook, tr.Snapshot().Hook)
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := newTestTracker()
	tr.Emit(logic.Event{Type: logic.EventRingDone, Count: 8, CommandID: "x"})

	snap := tr.Snapshot()
	snap.LastRing.Count = 99
	snap.Counts.Rings = 99

	again := tr.Snapshot()
	assert.Equal(t, uint(8), again.LastRing.Count)
	assert.Equal(t, 1, again.Counts.Rings)
}

func TestFormatJSON(t *testing.T) {
	tr := newTestTracker()
	tr.SetMQTTConnected(true)
	tr.Emit(logic.Event{Type: logic.EventRingDone, Count: 8, Source: logic.SourceSelfTest, CommandID: "id-1", Timestamp: testStart})
	tr.Emit(logic.Event{Type: logic.EventChimeScheduled, Next: time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)})

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	s := sj.Status
	assert.Empty(t, s.Event)
	assert.Equal(t, "ON_HOOK", s.Hook)
	assert.Equal(t, int64(90), s.UptimeSeconds)
	assert.Equal(t, "2026-01-01T12:00:00Z", s.StartTime)
	assert.Equal(t, "2026-01-01T12:01:30Z", s.Timestamp)
	assert.Equal(t, "2026-01-01T13:00:00Z", s.NextChime)
	assert.True(t, s.MQTT.Connected)
	assert.Equal(t, 1, s.Counts.Rings)
	assert.Equal(t, 8, s.Counts.Pulses)
	require.NotNil(t, s.LastRing)
	assert.Equal(t, "SELF_TEST", s.LastRing.Source)
	assert.Equal(t, 9, s.Config.ChimeStart)
	assert.Equal(t, 19, s.Config.ChimeEnd)
}

func TestFormatStatusEvent(t *testing.T) {
	tr := newTestTracker()
	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(data, &sj))
	assert.Equal(t, "SHUTDOWN", sj.Status.Event)
	assert.Equal(t, "SIGTERM", sj.Status.Reason)
	assert.Nil(t, sj.Status.LastRing)
	assert.Empty(t, sj.Status.NextChime)
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	tr := newTestTracker()
	data := string(FormatStatusEvent(tr.Snapshot(), "STARTUP", ""))
	assert.NotContains(t, data, `"reason"`)
	assert.NotContains(t, data, `"last_ring"`)
	assert.Contains(t, data, `"event":"STARTUP"`)
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(testStart, testConfig)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Emit(logic.Event{Type: logic.EventRingDone, Count: 1})
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, tr.Snapshot().Counts.Rings)
}
