package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeInput is a test double for Input. Events are injected with Push or
// Transition; reads return scripted samples first, then the current level.
type FakeInput struct {
	mu sync.Mutex

	// Samples are returned by Read, one per call, before falling back to the
	// current level.
	Samples []Level
	level   Level

	// ReadError, if set, will be returned by Read.
	ReadError error

	// KeepPending stops Arm from discarding queued notifications, so tests
	// can push events before the code under test arms the input.
	KeepPending bool

	arms   []Edge
	armed  chan Edge
	events chan EdgeEvent
	closed bool
	reads  int
}

// NewFakeInput creates a FakeInput resting at the given level.
func NewFakeInput(initial Level) *FakeInput {
	return &FakeInput{
		level:  initial,
		armed:  make(chan Edge, EventQueueSize),
		events: make(chan EdgeEvent, EventQueueSize),
	}
}

// Read returns the next scripted sample, or the current level.
func (f *FakeInput) Read() (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	if len(f.Samples) > 0 {
		l := f.Samples[0]
		f.Samples = f.Samples[1:]
		return l, nil
	}
	return f.level, nil
}

// Arm records the edge and discards pending notifications, unless
// KeepPending is set.
func (f *FakeInput) Arm(edge Edge) error {
	f.mu.Lock()
	f.arms = append(f.arms, edge)
	keep := f.KeepPending
	f.mu.Unlock()
	if !keep {
		f.drain()
	}
	select {
	case f.armed <- edge:
	default:
	}
	return nil
}

func (f *FakeInput) drain() {
	for {
		select {
		case <-f.events:
		default:
			return
		}
	}
}

// Armed delivers each edge passed to Arm, for synchronising tests.
func (f *FakeInput) Armed() <-chan Edge {
	return f.armed
}

// Arms returns every edge passed to Arm so far.
func (f *FakeInput) Arms() []Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edge(nil), f.arms...)
}

// Events returns the notification queue.
func (f *FakeInput) Events() <-chan EdgeEvent {
	return f.events
}

// Push enqueues a notification without changing the level.
func (f *FakeInput) Push(level Level) {
	f.events <- EdgeEvent{Level: level, Time: time.Now()}
}

// SetReadError makes subsequent reads fail with err (nil clears it).
func (f *FakeInput) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// Set changes the level returned by Read.
func (f *FakeInput) Set(level Level) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

// Transition sets the level and pushes the matching notification.
func (f *FakeInput) Transition(level Level) {
	f.Set(level)
	f.Push(level)
}

// Reads returns the number of Read calls.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeInput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Write is a single recorded output change.
type Write struct {
	Pin   string
	Level Level
	At    time.Duration // virtual time from the owning Trace
}

// Trace records writes from several fake outputs on one virtual clock.
// Its Sleep advances the clock instead of blocking.
type Trace struct {
	mu      sync.Mutex
	elapsed time.Duration
	writes  []Write
}

// NewTrace creates an empty Trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Sleep advances the virtual clock by d.
func (t *Trace) Sleep(d time.Duration) {
	t.mu.Lock()
	t.elapsed += d
	t.mu.Unlock()
}

// Elapsed returns the virtual time so far.
func (t *Trace) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Writes returns a copy of all recorded writes.
func (t *Trace) Writes() []Write {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Write(nil), t.writes...)
}

// Output creates a FakeOutput named pin that records into t.
func (t *Trace) Output(pin string) *FakeOutput {
	return &FakeOutput{Pin: pin, trace: t}
}

func (t *Trace) record(w Write) {
	t.mu.Lock()
	w.At = t.elapsed
	t.writes = append(t.writes, w)
	t.mu.Unlock()
}

// ErrFakeWrite is returned by FakeOutput when FailAfter is reached.
var ErrFakeWrite = errors.New("fake write failure")

// FakeOutput is a test double for Output.
type FakeOutput struct {
	Pin string

	// FailAfter, if > 0, makes the write with that 1-based index (and all
	// later ones) fail with ErrFakeWrite.
	FailAfter int

	mu     sync.Mutex
	trace  *Trace
	level  Level
	writes []Level
	closed bool
}

// NewFakeOutput creates a standalone FakeOutput.
func NewFakeOutput(pin string) *FakeOutput {
	return &FakeOutput{Pin: pin}
}

// Write records the level.
func (f *FakeOutput) Write(level Level) error {
	f.mu.Lock()
	if f.FailAfter > 0 && len(f.writes)+1 >= f.FailAfter {
		f.mu.Unlock()
		return ErrFakeWrite
	}
	f.level = level
	f.writes = append(f.writes, level)
	f.mu.Unlock()

	if f.trace != nil {
		f.trace.record(Write{Pin: f.Pin, Level: level})
	}
	return nil
}

// Level returns the last written level.
func (f *FakeOutput) Level() Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Writes returns every level written so far.
func (f *FakeOutput) Writes() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Level(nil), f.writes...)
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
