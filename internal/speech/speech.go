// Package speech speaks short phrases through an external text-to-speech program.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/sweeney/ringr/internal/logic"
)

// Speaker says a phrase and blocks until it has been spoken or has failed.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// DefaultProgram is the TTS program used when none is configured.
const DefaultProgram = "espeak"

// CommandSpeaker runs Program with Args followed by the phrase.
type CommandSpeaker struct {
	Program string
	Args    []string
}

// NewCommandSpeaker parses a command line such as "espeak -s 140".
func NewCommandSpeaker(cmdline string) *CommandSpeaker {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return &CommandSpeaker{Program: DefaultProgram}
	}
	return &CommandSpeaker{Program: fields[0], Args: fields[1:]}
}

// Speak runs the program and waits for it to exit. Failures wrap
// logic.ErrPlayback.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), s.Args...), text)
	cmd := exec.CommandContext(ctx, s.Program, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("speak %q: %w: %w (%s)", text, logic.ErrPlayback, err, msg)
		}
		return fmt.Errorf("speak %q: %w: %w", text, logic.ErrPlayback, err)
	}
	return nil
}

// FakeSpeaker records phrases for test assertions.
type FakeSpeaker struct {
	mu    sync.Mutex
	said  []string
	err   error
	spoke chan string
}

// NewFakeSpeaker creates a FakeSpeaker that succeeds.
func NewFakeSpeaker() *FakeSpeaker {
	return &FakeSpeaker{spoke: make(chan string, 16)}
}

// Speak records text and returns the configured error, if any.
func (f *FakeSpeaker) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	f.said = append(f.said, text)
	err := f.err
	f.mu.Unlock()
	select {
	case f.spoke <- text:
	default:
	}
	if err != nil {
		return fmt.Errorf("speak %q: %w: %w", text, logic.ErrPlayback, err)
	}
	return nil
}

// SetError makes subsequent calls fail with err.
func (f *FakeSpeaker) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Said returns every phrase spoken so far.
func (f *FakeSpeaker) Said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

// Spoke delivers each phrase as it is spoken.
func (f *FakeSpeaker) Spoke() <-chan string {
	return f.spoke
}
