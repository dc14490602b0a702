package tone

import (
	"errors"
	"fmt"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
)

// ErrInvalidToneParameters is returned when the frequency and tick rate
// cannot produce a square wave with non-degenerate pulses.
var ErrInvalidToneParameters = errors.New("invalid tone parameters")

// millisPerSecond converts between note durations and cycle counts.
const millisPerSecond = 1000

// Encode converts t into a 50% duty square wave at the given counter clock.
//
// ticksPerCycle = tickRate / frequency and ticksPerHalf = ticksPerCycle / 2,
// both truncated. The number of cycles is frequency * milliseconds / 1000.
func Encode(t buzzer.Tone, tickRate uint32) (buzzer.PulseSequence, error) {
	half, err := HalfPeriodTicks(t.Frequency, tickRate)
	if err != nil {
		return buzzer.PulseSequence{}, err
	}

	if t.Duration < 0 {
		return buzzer.PulseSequence{}, fmt.Errorf("%w: negative duration %s", ErrInvalidToneParameters, t.Duration)
	}

	cycles := Cycles(t)
	pair := buzzer.PulsePair{
		{Level: buzzer.High, Ticks: half},
		{Level: buzzer.Low, Ticks: half},
	}

	pairs := make([]buzzer.PulsePair, cycles)
	for i := range pairs {
		pairs[i] = pair
	}

	return buzzer.NewPulseSequence(pairs...), nil
}

// HalfPeriodTicks returns the length of one half wave in counter ticks.
func HalfPeriodTicks(frequency, tickRate uint32) (buzzer.PulseTicks, error) {
	if frequency == 0 {
		return 0, fmt.Errorf("%w: frequency must be positive", ErrInvalidToneParameters)
	}

	if tickRate == 0 {
		return 0, fmt.Errorf("%w: tick rate must be positive", ErrInvalidToneParameters)
	}

	ticksPerCycle := uint64(tickRate) / uint64(frequency)

	half, err := buzzer.NewPulseTicks(ticksPerCycle / 2)
	if err != nil {
		return 0, fmt.Errorf("%w: %dHz at %dHz clock: %w", ErrInvalidToneParameters, frequency, tickRate, err)
	}

	return half, nil
}

// Cycles returns the number of full wave cycles that fit t.Duration,
// computed in 64 bits so long notes cannot overflow.
func Cycles(t buzzer.Tone) int {
	if t.Duration <= 0 {
		return 0
	}

	return int(uint64(t.Frequency) * uint64(t.Duration.Milliseconds()) / millisPerSecond)
}

// Actual returns the pitch emitted for frequency after tick quantization.
func Actual(frequency, tickRate uint32) (float64, error) {
	half, err := HalfPeriodTicks(frequency, tickRate)
	if err != nil {
		return 0, err
	}

	return float64(tickRate) / float64(2*uint64(half)), nil
}
