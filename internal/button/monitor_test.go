package button

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/ringer"
)

type fakeRinger struct {
	mu     sync.Mutex
	counts []uint
	err    error
}

func (f *fakeRinger) Submit(count uint, src logic.Source) (ringer.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := ringer.Command{Count: count, Source: src}
	if f.err != nil {
		return cmd, f.err
	}
	f.counts = append(f.counts, count)
	return cmd, nil
}

func (f *fakeRinger) submitted() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.counts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func start(t *testing.T, m *Monitor) chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	return done
}

func TestPressSubmitsRing(t *testing.T) {
	in := gpio.NewFakeInput(gpio.High)
	r := &fakeRinger{}
	m := New(in, r, ringer.ButtonCount, nil, nil)
	start(t, m)

	require.Equal(t, gpio.FallingOnly, <-in.Armed())

	in.Transition(gpio.Low)
	in.Transition(gpio.High)
	in.Transition(gpio.Low)

	waitFor(t, func() bool { return len(r.submitted()) == 2 })
	assert.Equal(t, []uint{4, 4}, r.submitted())
}

func TestPressWhileRingerStoppedIsDropped(t *testing.T) {
	in := gpio.NewFakeInput(gpio.High)
	r := &fakeRinger{err: ringer.ErrStopped}
	var mu sync.Mutex
	var events []logic.EventType
	sink := logic.SinkFunc(func(e logic.Event) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	})
	m := New(in, r, ringer.ButtonCount, sink, nil)
	done := start(t, m)
	<-in.Armed()

	in.Transition(gpio.Low)
	in.Transition(gpio.Low)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	})
	select {
	case err := <-done:
		t.Fatalf("monitor exited after a dropped request: %v", err)
	default:
	}
}

func TestPressesWithRealService(t *testing.T) {
	in := gpio.NewFakeInput(gpio.High)
	exec := make(chan uint, 8)
	svc := ringer.NewService(executorFunc(func(n uint) error {
		exec <- n
		return nil
	}), ringer.SelfTestCount, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	m := New(in, svc, ringer.ButtonCount, nil, nil)
	go m.Run(ctx)
	<-in.Armed()
	in.Transition(gpio.Low)

	assert.Equal(t, uint(8), <-exec, "self-test rings first")
	assert.Equal(t, uint(4), <-exec)
}

type executorFunc func(uint) error

func (f executorFunc) Execute(n uint) error { return f(n) }
