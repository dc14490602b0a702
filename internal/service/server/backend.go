package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/buzzer/internal/config"
	"github.com/oshokin/buzzer/internal/hardware"
	"github.com/oshokin/buzzer/internal/hardware/serialport"
	"github.com/oshokin/buzzer/internal/hardware/sim"
	"github.com/oshokin/buzzer/internal/hardware/sysfspwm"
	"github.com/oshokin/buzzer/internal/hardware/wavfile"
	"github.com/oshokin/buzzer/internal/logger"
)

var errUnsupportedBackend = errors.New("unsupported hardware backend")

// openTransmitter builds the transmitter selected by hw.
//
//nolint:ireturn // Callers only need the Transmitter contract.
func openTransmitter(ctx context.Context, hw *config.Hardware) (hardware.Transmitter, error) {
	switch hw.Backend {
	case config.BackendSim:
		logger.InfoKV(ctx, "Using simulated transmitter", "tick_rate", hw.TickRate)

		return sim.New(hw.TickRate), nil
	case config.BackendWAV:
		logger.InfoKV(ctx, "Rendering notes to WAV", "path", hw.WAVPath, "tick_rate", hw.TickRate)

		return wavfile.New(hw.WAVPath, hw.TickRate), nil
	case config.BackendSerial:
		tx, err := serialport.Open(hw.Device, hw.BaudRate)
		if err != nil {
			return nil, fmt.Errorf("open serial transmitter: %w", err)
		}

		logger.InfoKV(ctx, "Using serial pulse coprocessor", "device", hw.Device, "baud_rate", hw.BaudRate)

		return tx, nil
	case config.BackendPWM:
		tx, err := sysfspwm.Open(hw.PWMChip, hw.PWMChannel, hw.TickRate)
		if err != nil {
			return nil, fmt.Errorf("open PWM transmitter: %w", err)
		}

		logger.InfoKV(ctx, "Using sysfs PWM", "chip", hw.PWMChip, "channel", hw.PWMChannel)

		return tx, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedBackend, hw.Backend)
	}
}

// exclusiveBackend reports whether backend drives real hardware that a
// second process must not share.
func exclusiveBackend(backend string) bool {
	return backend == config.BackendSerial || backend == config.BackendPWM
}
