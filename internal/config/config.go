// Package config holds the daemon settings, read from defaults, RINGR_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/ringr/internal/gpio"
	"github.com/sweeney/ringr/internal/handset"
	"github.com/sweeney/ringr/internal/led"
	"github.com/sweeney/ringr/internal/logic"
	"github.com/sweeney/ringr/internal/ringer"
	"github.com/sweeney/ringr/internal/speech"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RINGR"

// PinConfig holds BCM pin numbers.
type PinConfig struct {
	Button int
	Hook   int
	Enable int
	CoilA  int
	CoilB  int
	LED    int // < 0 disables the heartbeat LED
}

// Config is the full daemon configuration.
type Config struct {
	Chip string
	Pins PinConfig

	Window        logic.ChimeWindow
	SelfTestCount uint
	ButtonCount   uint
	ChimeCount    uint

	Phrase        string
	GreetingDelay time.Duration
	SpeechCommand string

	LEDInterval time.Duration

	Broker    string // empty disables MQTT
	HTTPAddr  string // empty disables the status page
	Heartbeat time.Duration

	LogLevel  string
	LogFormat string

	PrintState bool
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Chip: "gpiochip0",
		Pins: PinConfig{
			Button: gpio.DefaultPinButton,
			Hook:   gpio.DefaultPinHook,
			Enable: gpio.DefaultPinEnable,
			CoilA:  gpio.DefaultPinCoilA,
			CoilB:  gpio.DefaultPinCoilB,
			LED:    -1,
		},
		Window:        logic.ChimeWindow{StartHour: 9, EndHour: 19},
		SelfTestCount: ringer.SelfTestCount,
		ButtonCount:   ringer.ButtonCount,
		ChimeCount:    ringer.ChimeCount,
		Phrase:        handset.DefaultPhrase,
		GreetingDelay: handset.DefaultDelay,
		SpeechCommand: speech.DefaultProgram,
		LEDInterval:   led.DefaultInterval,
		Heartbeat:     15 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// LoadFromEnv overrides fields from environment variables named
// prefix_FIELD. Malformed values are reported, not ignored.
func (c *Config) LoadFromEnv(prefix string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = n
		}
	}
	count := func(name string, dst *uint) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = uint(n)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(prefix + "_" + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("CHIP", &c.Chip)
	num("PIN_BUTTON", &c.Pins.Button)
	num("PIN_HOOK", &c.Pins.Hook)
	num("PIN_ENABLE", &c.Pins.Enable)
	num("PIN_COIL_A", &c.Pins.CoilA)
	num("PIN_COIL_B", &c.Pins.CoilB)
	num("PIN_LED", &c.Pins.LED)
	num("CHIME_START", &c.Window.StartHour)
	num("CHIME_END", &c.Window.EndHour)
	count("SELFTEST_COUNT", &c.SelfTestCount)
	count("BUTTON_COUNT", &c.ButtonCount)
	count("CHIME_COUNT", &c.ChimeCount)
	str("PHRASE", &c.Phrase)
	dur("GREETING_DELAY", &c.GreetingDelay)
	str("SPEECH_COMMAND", &c.SpeechCommand)
	dur("LED_INTERVAL", &c.LEDInterval)
	str("BROKER", &c.Broker)
	str("HTTP", &c.HTTPAddr)
	dur("HEARTBEAT", &c.Heartbeat)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	return multierr.Combine(errs...)
}

// RegisterFlags binds flags to c, using c's current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip name")
	fs.IntVar(&c.Pins.Button, "pin-button", c.Pins.Button, "BCM pin number for the call button")
	fs.IntVar(&c.Pins.Hook, "pin-hook", c.Pins.Hook, "BCM pin number for the hook switch")
	fs.IntVar(&c.Pins.Enable, "pin-enable", c.Pins.Enable, "BCM pin number for the ringer enable line")
	fs.IntVar(&c.Pins.CoilA, "pin-coil-a", c.Pins.CoilA, "BCM pin number for ringer coil A")
	fs.IntVar(&c.Pins.CoilB, "pin-coil-b", c.Pins.CoilB, "BCM pin number for ringer coil B")
	fs.IntVar(&c.Pins.LED, "pin-led", c.Pins.LED, "BCM pin number for the status LED (-1 to disable)")
	fs.IntVar(&c.Window.StartHour, "chime-start", c.Window.StartHour, "First hour to chime (0-23)")
	fs.IntVar(&c.Window.EndHour, "chime-end", c.Window.EndHour, "Last hour to chime (0-23)")
	fs.UintVar(&c.SelfTestCount, "selftest-count", c.SelfTestCount, "Rings on startup")
	fs.UintVar(&c.ButtonCount, "button-count", c.ButtonCount, "Rings per button press")
	fs.UintVar(&c.ChimeCount, "chime-count", c.ChimeCount, "Rings per hourly chime")
	fs.StringVar(&c.Phrase, "phrase", c.Phrase, "Greeting spoken when the handset is lifted")
	fs.DurationVar(&c.GreetingDelay, "greeting-delay", c.GreetingDelay, "Pause between lifting the handset and the greeting")
	fs.StringVar(&c.SpeechCommand, "speech-command", c.SpeechCommand, "Text-to-speech command; the phrase is appended")
	fs.DurationVar(&c.LEDInterval, "led-interval", c.LEDInterval, "Status LED toggle interval")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "MQTT heartbeat interval (0 to disable)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: console or json")
	fs.BoolVar(&c.PrintState, "print-state", c.PrintState, "Print current input levels and exit")
}

// Load builds a Config from defaults, the environment and args.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()
	if err := cfg.LoadFromEnv(EnvPrefix); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if err := c.Window.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Chip == "" {
		errs = append(errs, errors.New("chip name is empty"))
	}

	pins := map[string]int{
		"button": c.Pins.Button,
		"hook":   c.Pins.Hook,
		"enable": c.Pins.Enable,
		"coil-a": c.Pins.CoilA,
		"coil-b": c.Pins.CoilB,
	}
	if c.Pins.LED >= 0 {
		pins["led"] = c.Pins.LED
	}
	seen := make(map[int]string)
	for _, name := range []string{"button", "hook", "enable", "coil-a", "coil-b", "led"} {
		pin, ok := pins[name]
		if !ok {
			continue
		}
		if pin < 0 {
			errs = append(errs, fmt.Errorf("%s pin %d: must not be negative", name, pin))
			continue
		}
		if other, dup := seen[pin]; dup {
			errs = append(errs, fmt.Errorf("%s pin %d: already used by %s", name, pin, other))
			continue
		}
		seen[pin] = name
	}

	if c.GreetingDelay < 0 {
		errs = append(errs, errors.New("greeting delay must not be negative"))
	}
	if c.LEDInterval <= 0 {
		errs = append(errs, errors.New("led interval must be positive"))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log format %q: want json or console", c.LogFormat))
	}
	return multierr.Combine(errs...)
}
