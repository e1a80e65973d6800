// Command ringr drives a telephone bell from a Raspberry Pi: it rings on
// demand, chimes on the hour and speaks when the handset is lifted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/ringr/internal/button"
	"github.com/sweeney/ringr/internal/chime"
	"github.com/sweeney/ringr/internal/config"
	"github.com/sweeney/ringr/internal/debounce"
	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/handset"
	"github.com/sweeney/ringr/internal/led"
	"github.com/sweeney/ringr/internal/logger"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/mqtt"
	"github.com/sweeney/ringr/internal/ringer"
	"github.com/sweeney/ringr/internal/speech"
	"github.com/sweeney/ringr/internal/status"
	"github.com/sweeney/ringr/internal/web"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "ringr")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	chip, err := gpio.OpenChip(cfg.Chip)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", cfg.Chip, logic.ErrHardware, err)
	}
	defer chip.Close()

	hw, err := openHardware(chip, cfg.Pins)
	if err != nil {
		return err
	}
	defer func() {
		hw.logDropped(log)
		err = multierr.Append(err, hw.Close())
	}()

	if cfg.PrintState {
		return printState(os.Stdout, hw.Hook, hw.Button)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d := &daemon{
		cfg:     cfg,
		logger:  log,
		hw:      hw,
		speaker: speech.NewCommandSpeaker(cfg.SpeechCommand),
		now:     time.Now,
	}
	if cfg.Broker != "" {
		d.connect = func() (broker, error) {
			return mqtt.NewRealPublisher(cfg.Broker, log.Named("mqtt"))
		}
	}
	return d.run(context.Background(), sigCh)
}

// hardware is the set of lines the daemon owns.
type hardware struct {
	Button gpio.Input
	Hook   gpio.Input

	Enable gpio.Output
	CoilA  gpio.Output
	CoilB  gpio.Output
	LED    gpio.Output // nil when disabled
}

type lineRequester interface {
	requestInput(pin int) (gpio.Input, error)
	requestOutput(pin int) (gpio.Output, error)
}

type chipRequester struct{ chip *gpio.Chip }

func (c chipRequester) requestInput(pin int) (gpio.Input, error) {
	in, err := c.chip.RequestInput(pin)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (c chipRequester) requestOutput(pin int) (gpio.Output, error) {
	out, err := c.chip.RequestOutput(pin)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func openHardware(chip *gpio.Chip, pins config.PinConfig) (*hardware, error) {
	return requestHardware(chipRequester{chip}, pins)
}

// requestHardware claims every line. On failure the lines already claimed
// are released and the error wraps logic.ErrHardware.
func requestHardware(r lineRequester, pins config.PinConfig) (*hardware, error) {
	hw := &hardware{}
	fail := func(name string, pin int, err error) (*hardware, error) {
		err = fmt.Errorf("request %s (GPIO%d): %w: %w", name, pin, logic.ErrHardware, err)
		return nil, multierr.Append(err, hw.Close())
	}

	var err error
	if hw.Button, err = r.requestInput(pins.Button); err != nil {
		return fail("button", pins.Button, err)
	}
	if hw.Hook, err = r.requestInput(pins.Hook); err != nil {
		return fail("hook", pins.Hook, err)
	}
	if hw.Enable, err = r.requestOutput(pins.Enable); err != nil {
		return fail("enable", pins.Enable, err)
	}
	if hw.CoilA, err = r.requestOutput(pins.CoilA); err != nil {
		return fail("coil-a", pins.CoilA, err)
	}
	if hw.CoilB, err = r.requestOutput(pins.CoilB); err != nil {
		return fail("coil-b", pins.CoilB, err)
	}
	if pins.LED >= 0 {
		if hw.LED, err = r.requestOutput(pins.LED); err != nil {
			return fail("led", pins.LED, err)
		}
	}
	return hw, nil
}

// Close releases every claimed line, outputs first.
func (h *hardware) Close() error {
	var err error
	for _, out := range []gpio.Output{h.LED, h.CoilB, h.CoilA, h.Enable} {
		if out != nil {
			err = multierr.Append(err, out.Close())
		}
	}
	for _, in := range []gpio.Input{h.Hook, h.Button} {
		if in != nil {
			err = multierr.Append(err, in.Close())
		}
	}
	return err
}

// dropCounter is implemented by inputs that count notifications lost to a
// full queue.
type dropCounter interface {
	Dropped() uint64
}

// logDropped reports inputs that lost edge notifications.
func (h *hardware) logDropped(log *zap.Logger) {
	for name, in := range map[string]gpio.Input{"button": h.Button, "hook": h.Hook} {
		dc, ok := in.(dropCounter)
		if !ok {
			continue
		}
		if n := dc.Dropped(); n > 0 {
			log.Warn("edge notifications dropped", zap.String("input", name), zap.Uint64("dropped", n))
		}
	}
}

// printState writes the current level of both inputs.
func printState(w io.Writer, hook, btn gpio.Input) error {
	h, err := hook.Read()
	if err != nil {
		return fmt.Errorf("read hook: %w: %w", logic.ErrHardware, err)
	}
	b, err := btn.Read()
	if err != nil {
		return fmt.Errorf("read button: %w: %w", logic.ErrHardware, err)
	}
	fmt.Fprintf(w, "hook: %s (%s), button: %s (%s)\n", hookState(h), h, buttonState(b), b)
	return nil
}

func hookState(l gpio.Level) logic.HookState {
	if l == gpio.Low {
		return logic.OffHook
	}
	return logic.OnHook
}

func buttonState(l gpio.Level) string {
	if l == gpio.Low {
		return "PRESSED"
	}
	return "RELEASED"
}

// broker is an MQTT connection that can also report its state.
type broker interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// signalError records the signal that stopped the daemon.
type signalError struct{ sig os.Signal }

func (e signalError) Error() string { return "received " + signalName(e.sig) }

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

type daemon struct {
	cfg     config.Config
	logger  *zap.Logger
	hw      *hardware
	speaker speech.Speaker

	// connect is nil when MQTT is disabled.
	connect func() (broker, error)

	now       func() time.Time
	ringSleep func(time.Duration) // nil keeps the generator's default
	tracker   *status.Tracker
}

// run starts every loop and blocks until a signal arrives, ctx ends or a
// loop fails.
func (d *daemon) run(parent context.Context, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	d.tracker = status.NewTracker(d.now(), status.Config{
		Window:      d.cfg.Window,
		HeartbeatMs: d.cfg.Heartbeat.Milliseconds(),
		Broker:      d.cfg.Broker,
		HTTPAddr:    d.cfg.HTTPAddr,
	})

	var events *mqtt.Sink
	sinks := []logic.Sink{d.tracker, logSink(d.logger)}
	if d.connect != nil {
		events = mqtt.NewSink(d.logger.Named("mqtt"))
		sinks = append(sinks, events)
	}
	sink := logic.Tee(sinks...)

	gen := ringer.NewGenerator(ringer.Outputs{
		Enable: d.hw.Enable,
		CoilA:  d.hw.CoilA,
		CoilB:  d.hw.CoilB,
	}, d.logger.Named("generator"))
	if d.ringSleep != nil {
		gen.Sleep = d.ringSleep
	}
	svc := ringer.NewService(gen, d.cfg.SelfTestCount, sink, d.logger.Named("ringer"))

	sched := chime.New(d.cfg.Window, d.cfg.ChimeCount, svc, sink, d.logger.Named("chime"))
	sched.Now = d.now

	hook := handset.New(d.hw.Hook, debounce.New(d.hw.Hook, d.logger.Named("hook")), d.speaker, sink, d.logger.Named("handset"))
	hook.Phrase = d.cfg.Phrase
	hook.Delay = d.cfg.GreetingDelay
	hook.Now = d.now

	btn := button.New(d.hw.Button, svc, d.cfg.ButtonCount, sink, d.logger.Named("button"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return hook.Run(gctx) })
	g.Go(func() error { return btn.Run(gctx) })
	if d.hw.LED != nil {
		blink := led.New(d.hw.LED, d.cfg.LEDInterval, d.logger.Named("led"))
		g.Go(func() error { return blink.Run(gctx) })
	}
	if d.cfg.HTTPAddr != "" {
		srv := web.New(d.cfg.HTTPAddr, d.tracker, d.logger.Named("web"))
		g.Go(func() error { return d.serveHTTP(gctx, srv) })
	}
	if events != nil {
		g.Go(func() error { return d.runMQTT(gctx, events) })
	}
	g.Go(func() error {
		select {
		case s := <-sig:
			d.logger.Info("shutting down", zap.String("signal", signalName(s)))
			cancel(signalError{s})
		case <-gctx.Done():
		}
		return nil
	})

	d.logger.Info("started",
		zap.Stringer("window", d.cfg.Window),
		zap.String("broker", d.cfg.Broker),
		zap.String("http", d.cfg.HTTPAddr),
		zap.Duration("heartbeat", d.cfg.Heartbeat),
	)
	return g.Wait()
}

func (d *daemon) serveHTTP(ctx context.Context, srv *web.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	d.logger.Info("http status server listening", zap.String("addr", d.cfg.HTTPAddr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("http server error", zap.Error(err))
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMQTT connects, announces startup, forwards events and sends
// heartbeats until ctx ends. Broker trouble is logged, never fatal.
func (d *daemon) runMQTT(ctx context.Context, events *mqtt.Sink) error {
	pub, err := d.connect()
	if err != nil {
		d.logger.Error("mqtt unavailable", zap.Error(err))
		return nil
	}
	defer pub.Close()

	d.publishSystem(pub, "STARTUP", "")

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		events.Run(ctx, pub)
	}()

	var heartbeat <-chan time.Time
	if d.cfg.Heartbeat > 0 {
		t := time.NewTicker(d.cfg.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}

	for {
		select {
		case <-heartbeat:
			d.publishSystem(pub, "HEARTBEAT", "")
		case <-ctx.Done():
			<-forwarded
			if n := events.Drain(pub); n > 0 {
				d.logger.Debug("flushed queued events", zap.Int("count", n))
			}
			reason := ""
			var se signalError
			if errors.As(context.Cause(ctx), &se) {
				reason = signalName(se.sig)
			}
			d.publishSystem(pub, "SHUTDOWN", reason)
			return nil
		}
	}
}

func (d *daemon) publishSystem(pub broker, event, reason string) {
	d.tracker.SetMQTTConnected(pub.IsConnected())
	snap := d.tracker.Snapshot()
	err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.logger.Warn("system event publish failed", zap.String("event", event), zap.Error(err))
		return
	}
	d.logger.Debug("published system event", zap.String("event", event))
}

// logSink records every event at info level.
func logSink(log *zap.Logger) logic.Sink {
	return logic.SinkFunc(func(e logic.Event) {
		fields := []zap.Field{zap.String("event", string(e.Type))}
		if e.Source != "" {
			fields = append(fields, zap.String("source", string(e.Source)), zap.Uint("count", e.Count))
		}
		if e.CommandID != "" {
			fields = append(fields, zap.String("command_id", e.CommandID))
		}
		if !e.Next.IsZero() {
			fields = append(fields, zap.Time("next", e.Next))
		}
		if e.Detail != "" {
			fields = append(fields, zap.String("detail", e.Detail))
		}
		log.Info("event", fields...)
	})
}
