package playback

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
	"github.com/oshokin/buzzer/internal/hardware/sim"
	"github.com/oshokin/buzzer/internal/tone"
)

var errTestDMA = errors.New("dma buffer allocation failed")

// TestNew_ClaimsExclusively verifies the transmitter can back only one driver.
func TestNew_ClaimsExclusively(t *testing.T) {
	t.Parallel()

	tx := sim.New(1_000_000)

	d, err := New(tx)
	require.NoError(t, err)
	require.NotNil(t, d)

	_, err = New(tx)
	require.ErrorIs(t, err, hardware.ErrBusy)

	_, err = New(nil)
	require.Error(t, err)
}

// TestDriver_PlayBlocksForNote checks the note is emitted and Play blocks for its duration.
func TestDriver_PlayBlocksForNote(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		tx := sim.New(1_000_000)

		d, err := New(tx)
		require.NoError(t, err)

		start := time.Now()
		require.NoError(t, d.Play(context.Background(), buzzer.Tone{Frequency: 2000, Duration: 100 * time.Millisecond}))
		require.Equal(t, 100*time.Millisecond, time.Since(start))

		history := tx.History()
		require.Len(t, history, 1)
		require.Equal(t, 200, history[0].Cycles)
		require.Equal(t, buzzer.PulseTicks(250), history[0].HalfTicks)
	})
}

// TestDriver_PlayErrors maps encoder and transmitter failures.
func TestDriver_PlayErrors(t *testing.T) {
	t.Parallel()

	tx := sim.New(1_000_000)

	d, err := New(tx)
	require.NoError(t, err)

	err = d.Play(context.Background(), buzzer.Tone{Frequency: 900_000, Duration: time.Millisecond})
	require.ErrorIs(t, err, tone.ErrInvalidToneParameters)
	require.Empty(t, tx.History())

	tx.FailNext(errTestDMA)

	err = d.Play(context.Background(), buzzer.Tone{Frequency: 1000, Duration: time.Millisecond})
	require.ErrorIs(t, err, ErrHardwareTransmit)
	require.ErrorIs(t, err, errTestDMA)

	// The driver keeps working after a failure.
	require.NoError(t, d.Play(context.Background(), buzzer.Tone{Frequency: 1000, Duration: time.Millisecond}))

	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Play(context.Background(), buzzer.Tone{Frequency: 1000}), hardware.ErrClosed)
}
