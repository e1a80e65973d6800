//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// Consumer is the label attached to every requested line.
const Consumer = "ringr"

// Chip owns the GPIO character device and hands out lines.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: chip}, nil
}

// Close releases the chip. Lines must be closed separately.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealInput is an input line with pull-up and kernel edge detection.
type RealInput struct {
	line *gpiocdev.Line
	pin  int

	mu      sync.Mutex
	edge    Edge
	events  chan EdgeEvent
	dropped atomic.Uint64
}

// RequestInput requests pin as an input with pull-up. Both edges are
// watched by the kernel; Arm decides which ones reach Events.
func (c *Chip) RequestInput(pin int) (*RealInput, error) {
	in := &RealInput{
		pin:    pin,
		edge:   Both,
		events: make(chan EdgeEvent, EventQueueSize),
	}
	line, err := c.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(in.handle),
	)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	in.line = line
	return in, nil
}

// handle runs on the gpiocdev watcher goroutine.
func (in *RealInput) handle(evt gpiocdev.LineEvent) {
	level := High
	if evt.Type == gpiocdev.LineEventFallingEdge {
		level = Low
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.edge.Matches(level) {
		return
	}
	select {
	case in.events <- EdgeEvent{Level: level, Time: time.Now()}:
	default:
		in.dropped.Add(1)
	}
}

// Read samples the line.
func (in *RealInput) Read() (Level, error) {
	v, err := in.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", in.pin, err)
	}
	return v != 0, nil
}

// Arm sets the edge filter and drops pending notifications.
func (in *RealInput) Arm(edge Edge) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.edge = edge
	for {
		select {
		case <-in.events:
		default:
			return nil
		}
	}
}

// Events returns the notification queue.
func (in *RealInput) Events() <-chan EdgeEvent {
	return in.events
}

// Dropped returns the number of notifications lost to a full queue.
func (in *RealInput) Dropped() uint64 {
	return in.dropped.Load()
}

// Close releases the line, leaving it as a pulled-up input.
func (in *RealInput) Close() error {
	err := in.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp)
	return multierr.Append(err, in.line.Close())
}

// RealOutput is an output line, initially low.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int
}

// RequestOutput requests pin as an output driven low.
func (c *Chip) RequestOutput(pin int) (*RealOutput, error) {
	line, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line, pin: pin}, nil
}

// Write drives the line.
func (o *RealOutput) Write(level Level) error {
	v := 0
	if level {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", o.pin, err)
	}
	return nil
}

// Close drives the line low and releases it as an input with pull-down,
// matching the Pi boot default.
func (o *RealOutput) Close() error {
	err := o.line.SetValue(0)
	err = multierr.Append(err, o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown))
	return multierr.Append(err, o.line.Close())
}
