// Package sim is a transmitter that only keeps time: Transmit sleeps for the
// duration of the sequence and records what it was asked to emit.
package sim

import (
	"sync"
	"time"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
)

// Transmission is one recorded call to Transmit.
type Transmission struct {
	// Cycles is the number of pulse pairs.
	Cycles int
	// HalfTicks is the high pulse width of the first pair.
	HalfTicks buzzer.PulseTicks
	// Duration is the emitted wall time.
	Duration time.Duration
	// At is when the transmission started.
	At time.Time
}

// Transmitter simulates the pulse hardware.
type Transmitter struct {
	hardware.Owner

	tickRate uint32

	mu      sync.Mutex
	history []Transmission
	failErr error
	limit   int
}

// DefaultHistoryLimit caps the recorded transmissions.
const DefaultHistoryLimit = 1024

// New returns a simulated transmitter clocked at tickRate.
func New(tickRate uint32) *Transmitter {
	return &Transmitter{
		tickRate: tickRate,
		limit:    DefaultHistoryLimit,
	}
}

// CounterClock returns the simulated tick rate.
func (t *Transmitter) CounterClock() (uint32, error) {
	return t.tickRate, nil
}

// Transmit blocks for the duration of seq.
func (t *Transmitter) Transmit(seq buzzer.PulseSequence) error {
	end, err := t.Begin()
	if err != nil {
		return err
	}
	defer end()

	t.mu.Lock()
	failErr := t.failErr
	t.failErr = nil
	t.mu.Unlock()

	if failErr != nil {
		return failErr
	}

	rec := Transmission{
		Cycles:   seq.Len(),
		Duration: seq.Duration(t.tickRate),
		At:       time.Now(),
	}

	if seq.Len() > 0 {
		rec.HalfTicks = seq.Pair(0)[0].Ticks
	}

	time.Sleep(rec.Duration)

	t.mu.Lock()
	t.history = append(t.history, rec)
	if len(t.history) > t.limit {
		t.history = t.history[len(t.history)-t.limit:]
	}
	t.mu.Unlock()

	return nil
}

// FailNext makes the next Transmit return err without emitting.
func (t *Transmitter) FailNext(err error) {
	t.mu.Lock()
	t.failErr = err
	t.mu.Unlock()
}

// History returns a copy of the recorded transmissions.
func (t *Transmitter) History() []Transmission {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Transmission(nil), t.history...)
}

// Close stops accepting transmissions.
func (t *Transmitter) Close() error {
	t.MarkClosed()

	return nil
}
