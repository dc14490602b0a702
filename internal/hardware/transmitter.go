package hardware

import (
	"errors"
	"sync/atomic"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
)

var (
	// ErrBusy is returned when the transmit resource is already claimed or in use.
	ErrBusy = errors.New("transmit resource busy")
	// ErrClosed is returned by a transmitter after Close.
	ErrClosed = errors.New("transmitter closed")
)

// Transmitter emits pulse sequences on the buzzer pin.
type Transmitter interface {
	// CounterClock returns the tick rate of pulse durations in Hz.
	CounterClock() (uint32, error)
	// Transmit blocks until seq has been emitted completely.
	Transmit(seq buzzer.PulseSequence) error
	// Claim takes exclusive ownership; a second claim fails with ErrBusy.
	Claim() error
	// Close releases the underlying resource.
	Close() error
}

// Owner implements the claim and in-flight bookkeeping backends share.
// The zero value is unclaimed and idle.
type Owner struct {
	claimed atomic.Bool
	active  atomic.Bool
	closed  atomic.Bool
}

// Claim marks the resource as owned.
func (o *Owner) Claim() error {
	if !o.claimed.CompareAndSwap(false, true) {
		return ErrBusy
	}

	return nil
}

// Begin marks a transmission in flight; end must be called when it finishes.
func (o *Owner) Begin() (end func(), err error) {
	if o.closed.Load() {
		return nil, ErrClosed
	}

	if !o.active.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	return func() { o.active.Store(false) }, nil
}

// MarkClosed flags the resource as closed and reports whether it was open.
func (o *Owner) MarkClosed() bool {
	return o.closed.CompareAndSwap(false, true)
}

// Run is a run-length encoded stretch of identical pulse pairs.
type Run struct {
	// Pair is the repeated pulse pair.
	Pair buzzer.PulsePair
	// Count is the number of repetitions.
	Count int
}

// Runs compresses seq into runs of identical pairs.
func Runs(seq buzzer.PulseSequence) []Run {
	var runs []Run

	seq.Pairs(func(_ int, p buzzer.PulsePair) bool {
		if n := len(runs); n > 0 && runs[n-1].Pair == p {
			runs[n-1].Count++
			return true
		}

		runs = append(runs, Run{Pair: p, Count: 1})

		return true
	})

	return runs
}
