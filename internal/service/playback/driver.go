package playback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
	"github.com/oshokin/buzzer/internal/logger"
	"github.com/oshokin/buzzer/internal/tone"
)

var (
	// ErrHardwareTransmit wraps every failure reported by the transmitter.
	ErrHardwareTransmit = errors.New("hardware transmit failure")
	// errTransmitterRequired is returned when New gets a nil transmitter.
	errTransmitterRequired = errors.New("transmitter must be provided")
)

// Driver plays tones on an exclusively owned transmitter.
type Driver struct {
	// tx is the claimed transmit resource.
	tx hardware.Transmitter
	// playing guards against overlapping Play calls.
	playing atomic.Bool
}

// New claims tx and returns a driver for it.
func New(tx hardware.Transmitter) (*Driver, error) {
	if tx == nil {
		return nil, errTransmitterRequired
	}

	if err := tx.Claim(); err != nil {
		return nil, fmt.Errorf("claim transmitter: %w", err)
	}

	return &Driver{tx: tx}, nil
}

// Play encodes t at the transmitter's counter clock and blocks until the
// sequence has been emitted. Failures are returned as-is, without retry.
func (d *Driver) Play(ctx context.Context, t buzzer.Tone) error {
	if !d.playing.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %w", ErrHardwareTransmit, hardware.ErrBusy)
	}
	defer d.playing.Store(false)

	tickRate, err := d.tx.CounterClock()
	if err != nil {
		return fmt.Errorf("%w: counter clock: %w", ErrHardwareTransmit, err)
	}

	seq, err := tone.Encode(t, tickRate)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}

	logger.DebugKV(ctx, "Transmitting note", "tone", t.String(), "cycles", seq.Len(), "tick_rate", tickRate)

	if err = d.tx.Transmit(seq); err != nil {
		return fmt.Errorf("%w: %w", ErrHardwareTransmit, err)
	}

	return nil
}

// Close releases the transmitter.
func (d *Driver) Close() error {
	return d.tx.Close()
}
