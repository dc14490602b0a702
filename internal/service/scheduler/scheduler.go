package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/logger"
)

// Player plays one note and blocks until it is done.
type Player interface {
	Play(ctx context.Context, t buzzer.Tone) error
}

// StateReader reads the activation flag.
type StateReader interface {
	Sounding() bool
}

// Outcome classifies what a tick did.
type Outcome uint8

const (
	// OutcomeIdle means the state was Silent and nothing was played.
	OutcomeIdle Outcome = iota
	// OutcomePlayed means the note was emitted.
	OutcomePlayed
	// OutcomeFailed means playback returned an error.
	OutcomeFailed
	// OutcomeSkipped means ticks elapsed while a note was playing.
	OutcomeSkipped
)

// String returns the outcome name used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomePlayed:
		return "played"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Event is reported to every Reporter after a tick.
type Event struct {
	// Outcome is what the tick did.
	Outcome Outcome
	// Err is the playback error for OutcomeFailed.
	Err error
	// Elapsed is how long the playback call took.
	Elapsed time.Duration
	// Skipped is the number of dropped ticks for OutcomeSkipped.
	Skipped uint64
}

// Reporter observes tick outcomes. Observe runs on the scheduler goroutine
// and must not block.
type Reporter interface {
	Observe(e Event)
}

// Options configures a Scheduler.
type Options struct {
	// Interval is the fixed tick period.
	Interval time.Duration
	// Note is the tone played on every sounding tick.
	Note buzzer.Tone
	// Reporters receive every tick event.
	Reporters []Reporter
}

// Stats is a snapshot of the scheduler counters.
type Stats struct {
	Ticks               uint64
	Played              uint64
	Failed              uint64
	Skipped             uint64
	ConsecutiveFailures uint64
}

var (
	// errBadInterval is returned for non-positive intervals.
	errBadInterval = errors.New("scheduler interval must be positive")
	// errBadNote is returned for a note without frequency.
	errBadNote = errors.New("note frequency must be positive")
	// errPlayerRequired is returned when no player or state is provided.
	errPlayerRequired = errors.New("player and state must be provided")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// Scheduler fires at a fixed interval and plays the note while sounding.
type Scheduler struct {
	state     StateReader
	player    Player
	interval  time.Duration
	note      buzzer.Tone
	reporters []Reporter

	running     atomic.Bool
	ticks       atomic.Uint64
	played      atomic.Uint64
	failed      atomic.Uint64
	skipped     atomic.Uint64
	consecutive atomic.Uint64
}

// New validates opts and returns a stopped scheduler.
func New(state StateReader, player Player, opts Options) (*Scheduler, error) {
	if state == nil || player == nil {
		return nil, errPlayerRequired
	}

	if opts.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", errBadInterval, opts.Interval)
	}

	if opts.Note.Frequency == 0 {
		return nil, errBadNote
	}

	return &Scheduler{
		state:     state,
		player:    player,
		interval:  opts.Interval,
		note:      opts.Note,
		reporters: append([]Reporter(nil), opts.Reporters...),
	}, nil
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Note returns the canonical note.
func (s *Scheduler) Note() buzzer.Tone {
	return s.note
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:               s.ticks.Load(),
		Played:              s.played.Load(),
		Failed:              s.failed.Load(),
		Skipped:             s.skipped.Load(),
		ConsecutiveFailures: s.consecutive.Load(),
	}
}

// Run ticks until ctx is canceled. A note in progress is finished before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	logger.InfoKV(ctx, "Scheduler started", "interval", s.interval.String(), "note", s.note.String())

	next := time.Now().Add(s.interval)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoKV(ctx, "Scheduler stopped", "ticks", s.ticks.Load(), "played", s.played.Load())
			return nil
		case <-timer.C:
		}

		s.tick(ctx)

		next = next.Add(s.interval)

		if now := time.Now(); now.After(next) {
			missed := uint64(now.Sub(next)/s.interval) + 1
			next = next.Add(time.Duration(missed) * s.interval)

			s.skipped.Add(missed)
			s.report(Event{Outcome: OutcomeSkipped, Skipped: missed})
			logger.DebugKV(ctx, "Skipped ticks while note was playing", "skipped", missed)
		}

		timer.Reset(time.Until(next))
	}
}

// tick reads the state once and plays the note if sounding. The state lock
// is released before the blocking playback call.
func (s *Scheduler) tick(ctx context.Context) {
	s.ticks.Add(1)

	if !s.state.Sounding() {
		s.report(Event{Outcome: OutcomeIdle})
		return
	}

	start := time.Now()
	err := s.player.Play(ctx, s.note)
	elapsed := time.Since(start)

	if err != nil {
		s.failed.Add(1)
		consecutive := s.consecutive.Add(1)

		logger.ErrorKV(ctx, "Note playback failed", "error", err, "consecutive_failures", consecutive)
		s.report(Event{Outcome: OutcomeFailed, Err: err, Elapsed: elapsed})

		return
	}

	s.played.Add(1)
	s.consecutive.Store(0)

	logger.DebugKV(ctx, "Note played", "elapsed", elapsed.String())
	s.report(Event{Outcome: OutcomePlayed, Elapsed: elapsed})
}

// report fans an event out to the reporters.
func (s *Scheduler) report(e Event) {
	for _, r := range s.reporters {
		r.Observe(e)
	}
}
