package buzzer

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"
)

// Level is the electrical level of the output pin during a pulse.
type Level uint8

const (
	// Low drives the pin to ground.
	Low Level = iota
	// High drives the pin to VCC.
	High
)

// String returns a human-readable level name.
func (l Level) String() string {
	if l == High {
		return "high"
	}

	return "low"
}

// PulseTicks is a pulse duration in counter clock ticks.
type PulseTicks uint16

// MaxPulseTicks is the largest duration a single pulse can hold (15-bit RMT field).
const MaxPulseTicks = 1<<15 - 1

// ErrPulseTicksRange is returned when a tick count does not fit a pulse.
var ErrPulseTicksRange = errors.New("pulse ticks out of range")

// NewPulseTicks converts a tick count into a pulse duration.
// Zero and counts above MaxPulseTicks are rejected.
func NewPulseTicks(ticks uint64) (PulseTicks, error) {
	if ticks == 0 || ticks > MaxPulseTicks {
		return 0, fmt.Errorf("%w: %d (want 1..%d)", ErrPulseTicksRange, ticks, MaxPulseTicks)
	}

	return PulseTicks(ticks), nil
}

// Pulse holds the pin at Level for Ticks counter ticks.
type Pulse struct {
	// Level is the pin level during the pulse.
	Level Level
	// Ticks is the pulse length.
	Ticks PulseTicks
}

// PulsePair is one full wave cycle: a high pulse followed by a low pulse.
type PulsePair [2]Pulse

// PulseSequence is an immutable ordered list of pulse pairs.
type PulseSequence struct {
	pairs []PulsePair
}

// NewPulseSequence builds a sequence that owns a copy of pairs.
func NewPulseSequence(pairs ...PulsePair) PulseSequence {
	return PulseSequence{pairs: append([]PulsePair(nil), pairs...)}
}

// Len returns the number of pulse pairs (wave cycles).
func (s PulseSequence) Len() int {
	return len(s.pairs)
}

// Pair returns the i-th pulse pair.
func (s PulseSequence) Pair(i int) PulsePair {
	return s.pairs[i]
}

// Pairs calls fn for every pair in order until fn returns false.
func (s PulseSequence) Pairs(fn func(i int, p PulsePair) bool) {
	for i, p := range s.pairs {
		if !fn(i, p) {
			return
		}
	}
}

// TotalTicks returns the sum of all pulse lengths.
func (s PulseSequence) TotalTicks() uint64 {
	var total uint64
	for _, p := range s.pairs {
		total += uint64(p[0].Ticks) + uint64(p[1].Ticks)
	}

	return total
}

// Duration converts TotalTicks to wall time at the given counter clock.
// The product is taken in 128 bits; results past time.Duration's range saturate.
func (s PulseSequence) Duration(tickRate uint32) time.Duration {
	if tickRate == 0 {
		return 0
	}

	hi, lo := bits.Mul64(s.TotalTicks(), uint64(time.Second))
	if hi >= uint64(tickRate) {
		return math.MaxInt64
	}

	nanos, _ := bits.Div64(hi, lo, uint64(tickRate))
	if nanos > math.MaxInt64 {
		return math.MaxInt64
	}

	return time.Duration(nanos)
}
