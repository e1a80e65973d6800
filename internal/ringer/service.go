package ringer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/ringr/internal/logic"
)

// Ring counts used by the daemon.
const (
	SelfTestCount = 8
	ButtonCount   = 4
	ChimeCount    = 2
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = fmt.Errorf("ringer service stopped: %w", logic.ErrChannel)

// Command is one queued ring request.
type Command struct {
	ID        string
	Count     uint
	Source    logic.Source
	Submitted time.Time
}

// Executor runs one ring sequence to completion.
type Executor interface {
	Execute(count uint) error
}

// Service is an unbounded FIFO of ring commands drained by a single worker.
// Submit never blocks; Run is the only caller of the Executor.
type Service struct {
	exec   Executor
	sink   logic.Sink
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	queue   []Command
	stopped bool
	ready   chan struct{}
}

// NewService creates a Service in front of exec and queues the self-test
// ring of selfTest pulses, so it is always the first command run.
func NewService(exec Executor, selfTest uint, sink logic.Sink, logger *zap.Logger) *Service {
	if sink == nil {
		sink = logic.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		exec:   exec,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		ready:  make(chan struct{}, 1),
	}
	// Submit only fails after Run has returned.
	_, _ = s.Submit(selfTest, logic.SourceSelfTest)
	return s
}

// Submit queues a ring of count pulses and returns immediately. The only
// failure is ErrStopped; producers may log and discard it.
func (s *Service) Submit(count uint, src logic.Source) (Command, error) {
	cmd := Command{
		ID:        uuid.NewString(),
		Count:     count,
		Source:    src,
		Submitted: s.now(),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return cmd, ErrStopped
	}
	s.queue = append(s.queue, cmd)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}

	s.logger.Debug("ring queued",
		zap.String("id", cmd.ID),
		zap.Uint("count", count),
		zap.String("source", string(src)))
	return cmd, nil
}

// Pending returns the number of queued commands not yet started.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run executes queued commands one at a time, in submission order, until
// ctx is done. A sequence in progress always completes. After Run returns,
// Submit fails with ErrStopped.
func (s *Service) Run(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.stopped = true
		dropped := len(s.queue)
		s.queue = nil
		s.mu.Unlock()
		if dropped > 0 {
			s.logger.Warn("ringer stopped with commands queued", zap.Int("dropped", dropped))
		}
	}()

	for {
		cmd, ok := s.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-s.ready:
				continue
			}
		}
		if ctx.Err() != nil {
			s.requeue(cmd)
			return nil
		}
		s.run(cmd)
	}
}

func (s *Service) next() (Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Command{}, false
	}
	cmd := s.queue[0]
	s.queue = s.queue[1:]
	return cmd, true
}

func (s *Service) requeue(cmd Command) {
	s.mu.Lock()
	s.queue = append([]Command{cmd}, s.queue...)
	s.mu.Unlock()
}

func (s *Service) run(cmd Command) {
	log := s.logger.With(
		zap.String("id", cmd.ID),
		zap.Uint("count", cmd.Count),
		zap.String("source", string(cmd.Source)))

	ev := logic.Event{
		Type:      logic.EventRingStarted,
		Timestamp: s.now(),
		Source:    cmd.Source,
		Count:     cmd.Count,
		CommandID: cmd.ID,
	}
	log.Info("starting ringing")
	s.sink.Emit(ev)

	err := s.exec.Execute(cmd.Count)

	ev.Timestamp = s.now()
	if err != nil {
		log.Error("ringing failed", zap.Error(err))
		ev.Type = logic.EventRingFailed
		ev.Detail = err.Error()
	} else {
		log.Info("done ringing")
		ev.Type = logic.EventRingDone
	}
	s.sink.Emit(ev)
}
