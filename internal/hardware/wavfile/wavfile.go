// Package wavfile renders transmitted pulse sequences into a WAV file.
//
// It stands in for the pin on machines without buzzer hardware: every note
// the scheduler plays is appended to an in-memory track, and Close encodes
// the track with beep's WAV encoder. The track holds at most DefaultMaxTrack of
// audio (one byte per sample); later notes are dropped and reported on Close.
package wavfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
	"github.com/oshokin/buzzer/internal/logger"
)

// DefaultSampleRate is the rendering sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// DefaultMaxTrack is the longest track kept in memory.
const DefaultMaxTrack = 10 * time.Minute

// amplitude keeps the square wave below full scale.
const amplitude = 0.5

// Transmitter renders sequences to samples.
type Transmitter struct {
	hardware.Owner

	path       string
	tickRate   uint32
	sampleRate beep.SampleRate

	mu sync.Mutex
	// samples holds the sign of each sample: +1 high, -1 low.
	samples []int8
	// maxSamples caps len(samples).
	maxSamples int
	// dropped counts notes cut short or skipped by the cap.
	dropped int
	// phase carries the fractional sample remainder between pulses, in ticks*sampleRate units.
	phase uint64
}

// Option configures a Transmitter.
type Option func(*Transmitter)

// WithMaxTrack overrides DefaultMaxTrack.
func WithMaxTrack(d time.Duration) Option {
	return func(t *Transmitter) {
		if d > 0 {
			t.maxSamples = t.sampleRate.N(d)
		}
	}
}

// New returns a transmitter that writes to path on Close.
func New(path string, tickRate uint32, opts ...Option) *Transmitter {
	t := &Transmitter{
		path:       filepath.Clean(path),
		tickRate:   tickRate,
		sampleRate: DefaultSampleRate,
		maxSamples: DefaultSampleRate.N(DefaultMaxTrack),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// CounterClock returns the configured tick rate.
func (t *Transmitter) CounterClock() (uint32, error) {
	return t.tickRate, nil
}

// Transmit appends the square wave of seq to the track.
func (t *Transmitter) Transmit(seq buzzer.PulseSequence) error {
	end, err := t.Begin()
	if err != nil {
		return err
	}
	defer end()

	t.mu.Lock()
	defer t.mu.Unlock()

	complete := true

	seq.Pairs(func(_ int, p buzzer.PulsePair) bool {
		complete = t.appendPulse(p[0]) && t.appendPulse(p[1])

		return complete
	})

	if !complete {
		t.dropped++
	}

	return nil
}

// Close encodes the track into the WAV file.
func (t *Transmitter) Close() error {
	if !t.MarkClosed() {
		return nil
	}

	t.mu.Lock()
	samples, dropped := t.samples, t.dropped
	t.mu.Unlock()

	if dropped > 0 {
		logger.WarnKV(context.Background(), "WAV track full, notes were truncated",
			"path", t.path, "dropped_notes", dropped, "max_track", t.sampleRate.D(t.maxSamples).String())
	}

	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	format := beep.Format{
		SampleRate:  t.sampleRate,
		NumChannels: 1,
		Precision:   2,
	}

	if err = wav.Encode(f, newStreamer(samples), format); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}

	return nil
}

// appendPulse converts one pulse to samples, carrying rounding across pulses.
// It reports false once the track is full.
func (t *Transmitter) appendPulse(p buzzer.Pulse) bool {
	var sign int8 = -1
	if p.Level == buzzer.High {
		sign = 1
	}

	t.phase += uint64(p.Ticks) * uint64(t.sampleRate)
	n := t.phase / uint64(t.tickRate)
	t.phase %= uint64(t.tickRate)

	for range n {
		if len(t.samples) >= t.maxSamples {
			return false
		}

		t.samples = append(t.samples, sign)
	}

	return true
}

// newStreamer plays back mono samples on both beep channels.
func newStreamer(samples []int8) beep.Streamer {
	pos := 0

	return beep.StreamerFunc(func(out [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}

		n := copyMono(out, samples[pos:])
		pos += n

		return n, true
	})
}

// copyMono fills out with src scaled to amplitude on both channels.
func copyMono(out [][2]float64, src []int8) int {
	n := min(len(out), len(src))
	for i := range n {
		v := amplitude * float64(src[i])
		out[i] = [2]float64{v, v}
	}

	return n
}
