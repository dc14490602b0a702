package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/buzzer/internal/logger"
)

// Config holds every tunable of the buzzer server and its control client.
type Config struct {
	// ListenAddress is the HTTP address serving the UI and the /ws control channel.
	ListenAddress string `yaml:"listen_addr" toml:"listen_addr"`
	// AdminAddress is the optional gRPC health endpoint; empty disables it.
	AdminAddress string `yaml:"admin_addr" toml:"admin_addr"`
	// LogLevel is the minimum level of the global logger.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// Timeout bounds network writes and client calls.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// Scheduler configures the periodic playback loop.
	Scheduler Scheduler `yaml:"scheduler" toml:"scheduler"`
	// Note is the canonical tone played on every tick while sounding.
	Note Note `yaml:"note" toml:"note"`
	// Hardware selects and configures the transmit backend.
	Hardware Hardware `yaml:"hardware" toml:"hardware"`
	// Command tunes how control-channel text is mapped to activation.
	Command Command `yaml:"command" toml:"command"`
	// Network configures the wait for an IP-capable link at startup.
	Network Network `yaml:"network" toml:"network"`
}

// Scheduler configures the periodic playback loop.
type Scheduler struct {
	// Interval is the fixed period between ticks (10ms on the board, 1s on the demo).
	Interval time.Duration `yaml:"interval" toml:"interval"`
	// LogLevel is the level of per-tick log lines, kept separate because ticks are frequent.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// FailureThreshold is the number of consecutive failed notes after which
	// the health endpoint reports NOT_SERVING.
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`
}

// Note is the fixed tone regenerated on each tick.
type Note struct {
	// Frequency is the pitch in Hz.
	Frequency uint32 `yaml:"frequency" toml:"frequency"`
	// Duration is the length of a single note.
	Duration time.Duration `yaml:"duration" toml:"duration"`
}

// Hardware selects the transmit backend.
type Hardware struct {
	// Backend is one of sim, serial, wav or pwm.
	Backend string `yaml:"backend" toml:"backend"`
	// TickRate is the counter clock of the sim and wav backends in Hz.
	TickRate uint32 `yaml:"tick_rate" toml:"tick_rate"`
	// Device is the serial device of the pulse coprocessor.
	Device string `yaml:"device" toml:"device"`
	// BaudRate is the serial line speed.
	BaudRate int `yaml:"baud_rate" toml:"baud_rate"`
	// WAVPath is the output file of the wav backend.
	WAVPath string `yaml:"wav_path" toml:"wav_path"`
	// PWMChip is the sysfs directory of the PWM chip.
	PWMChip string `yaml:"pwm_chip" toml:"pwm_chip"`
	// PWMChannel is the channel number exported on the chip.
	PWMChannel int `yaml:"pwm_channel" toml:"pwm_channel"`
}

// Command tunes the command mapping.
type Command struct {
	// AcceptNULTerminator strips one trailing NUL byte before matching "start".
	AcceptNULTerminator bool `yaml:"accept_nul_terminator" toml:"accept_nul_terminator"`
}

// Network configures the link wait performed before the server starts.
type Network struct {
	// WaitTimeout bounds the wait for a non-loopback address; zero skips the wait.
	WaitTimeout time.Duration `yaml:"wait_timeout" toml:"wait_timeout"`
}

// Backend names accepted in Hardware.Backend.
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
	BackendWAV    = "wav"
	BackendPWM    = "pwm"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "buzzer-settings.yaml"
	// DefaultListenAddress serves the UI and control channel on all interfaces.
	DefaultListenAddress = ":8080"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultInterval is the demo scheduler period.
	DefaultInterval = time.Second
	// DefaultFrequency is the canonical note pitch in Hz.
	DefaultFrequency = 2000
	// DefaultNoteDuration is the canonical note length.
	DefaultNoteDuration = 100 * time.Millisecond
	// DefaultTickRate matches the 1 MHz RMT counter clock of the board.
	DefaultTickRate = 1_000_000
	// DefaultBaudRate is the coprocessor serial speed.
	DefaultBaudRate = 115200
	// DefaultPWMChip is the first sysfs PWM chip.
	DefaultPWMChip = "/sys/class/pwm/pwmchip0"
	// DefaultWAVPath is where the wav backend writes when no path is set.
	DefaultWAVPath = "buzzer.wav"
	// DefaultFailureThreshold is the number of failed notes tolerated before health degrades.
	DefaultFailureThreshold = 3
	// DefaultFilePermissions is the permission for written config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownBackend is returned for an unsupported hardware backend.
	errUnknownBackend = errors.New("unknown hardware backend")
	// errDeviceRequired is returned when the serial backend has no device.
	errDeviceRequired = errors.New("serial backend requires a device")
	// errBadLogLevel is returned for an unparsable log level.
	errBadLogLevel = errors.New("unknown log level")
	// errNegativeDuration is returned for negative note durations.
	errNegativeDuration = errors.New("note duration must not be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	//nolint:errcheck // Defaults always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config

	if isTOML(path) {
		if _, err = toml.Decode(string(contents), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	} else if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	if _, err := os.Stat(filepath.Clean(path)); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return Load(path)
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		var buf bytes.Buffer

		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults for unset fields.
//
//nolint:cyclop // Field-by-field validation reads best as one flat function.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.AdminAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.AdminAddress); err != nil {
			return fmt.Errorf("invalid admin address: %w", err)
		}
	}

	for _, level := range []string{cfg.LogLevel, cfg.Scheduler.LogLevel} {
		if _, ok := logger.ParseLogLevel(level); !ok {
			return fmt.Errorf("%w: %q", errBadLogLevel, level)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = DefaultInterval
	}

	if cfg.Scheduler.FailureThreshold <= 0 {
		cfg.Scheduler.FailureThreshold = DefaultFailureThreshold
	}

	if cfg.Note.Frequency == 0 {
		cfg.Note.Frequency = DefaultFrequency
	}

	switch {
	case cfg.Note.Duration < 0:
		return errNegativeDuration
	case cfg.Note.Duration == 0:
		cfg.Note.Duration = DefaultNoteDuration
	}

	return validateHardware(&cfg.Hardware)
}

// validateHardware checks backend-specific fields.
func validateHardware(hw *Hardware) error {
	if hw.Backend == "" {
		hw.Backend = BackendSim
	}

	hw.Backend = strings.ToLower(hw.Backend)
	if !slices.Contains([]string{BackendSim, BackendSerial, BackendWAV, BackendPWM}, hw.Backend) {
		return fmt.Errorf("%w: %q", errUnknownBackend, hw.Backend)
	}

	if hw.TickRate == 0 {
		hw.TickRate = DefaultTickRate
	}

	if hw.BaudRate <= 0 {
		hw.BaudRate = DefaultBaudRate
	}

	if hw.PWMChip == "" {
		hw.PWMChip = DefaultPWMChip
	}

	if hw.WAVPath == "" {
		hw.WAVPath = DefaultWAVPath
	}

	if hw.Backend == BackendSerial && hw.Device == "" {
		return errDeviceRequired
	}

	return nil
}

// isTOML reports whether path names a TOML file.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
