package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config gets every default.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, DefaultInterval, cfg.Scheduler.Interval)
	require.Equal(t, uint32(DefaultFrequency), cfg.Note.Frequency)
	require.Equal(t, DefaultNoteDuration, cfg.Note.Duration)
	require.Equal(t, BackendSim, cfg.Hardware.Backend)
	require.Equal(t, uint32(DefaultTickRate), cfg.Hardware.TickRate)
	require.Equal(t, DefaultFailureThreshold, cfg.Scheduler.FailureThreshold)

	// Bad listen address.
	require.Error(t, Validate(&Config{ListenAddress: "bad:address"}))

	// Bad admin address.
	require.Error(t, Validate(&Config{AdminAddress: "bad:address"}))

	// Unknown backend.
	require.ErrorIs(t, Validate(&Config{Hardware: Hardware{Backend: "laser"}}), errUnknownBackend)

	// Serial needs a device.
	require.ErrorIs(t, Validate(&Config{Hardware: Hardware{Backend: BackendSerial}}), errDeviceRequired)

	// Negative note duration.
	require.ErrorIs(t, Validate(&Config{Note: Note{Duration: -time.Second}}), errNegativeDuration)

	// Unknown log level.
	require.ErrorIs(t, Validate(&Config{Scheduler: Scheduler{LogLevel: "loud"}}), errBadLogLevel)

	// Nil config.
	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestSaveLoadRoundtrip ensures YAML and TOML settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"settings.yaml", "settings.toml"} {
		path := filepath.Join(t.TempDir(), name)

		settings := &Config{
			ListenAddress: "127.0.0.1:8081",
			AdminAddress:  "127.0.0.1:50051",
			Scheduler:     Scheduler{Interval: 10 * time.Millisecond},
			Note:          Note{Frequency: 440, Duration: 5 * time.Millisecond},
			Hardware:      Hardware{Backend: BackendSerial, Device: "/dev/ttyUSB0"},
			Command:       Command{AcceptNULTerminator: true},
		}

		require.NoError(t, Save(path, settings), name)

		loaded, err := Load(path)
		require.NoError(t, err, name)
		require.Equal(t, settings.ListenAddress, loaded.ListenAddress)
		require.Equal(t, settings.AdminAddress, loaded.AdminAddress)
		require.Equal(t, 10*time.Millisecond, loaded.Scheduler.Interval)
		require.Equal(t, uint32(440), loaded.Note.Frequency)
		require.Equal(t, 5*time.Millisecond, loaded.Note.Duration)
		require.Equal(t, "/dev/ttyUSB0", loaded.Hardware.Device)
		require.True(t, loaded.Command.AcceptNULTerminator)

		_, err = os.Stat(path)
		require.NoError(t, err)
	}
}

// TestLoad_DurationStrings verifies human-readable durations in hand-written files.
func TestLoad_DurationStrings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("scheduler:\n  interval: 10ms\nnote:\n  duration: 8ms\n"), 0o600))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, cfg.Scheduler.Interval)
	require.Equal(t, 8*time.Millisecond, cfg.Note.Duration)

	tomlPath := filepath.Join(dir, "board.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[scheduler]\ninterval = \"10ms\"\n"), 0o600))

	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, cfg.Scheduler.Interval)
}

// TestLoadOrDefault falls back to defaults when the file is missing.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
}

// TestLoad_SampleSettings keeps the shipped sample file in sync with Config.
func TestLoad_SampleSettings(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join("..", "..", DefaultConfigFilename))
	require.NoError(t, err)

	want := Default()
	want.LogLevel = "info"
	want.Scheduler.LogLevel = "info"

	require.Equal(t, want, cfg)
}
