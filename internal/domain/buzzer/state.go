package buzzer

import (
	"sync"
	"time"
)

// Activation is the value held by State.
type Activation bool

const (
	// Silent means no notes are played.
	Silent Activation = false
	// Sounding means the scheduler plays the note on every tick.
	Sounding Activation = true
)

// String returns "sounding" or "silent".
func (a Activation) String() string {
	if a {
		return "sounding"
	}

	return "silent"
}

// State is the activation flag shared by the control channel (writer) and
// the scheduler (reader). Every method holds the lock for a single read or
// a single write; callers never keep it across blocking work.
type State struct {
	// mu serializes access to the fields below.
	mu sync.Mutex
	// value is the current activation.
	value Activation
	// changedAt is when value last changed.
	changedAt time.Time
	// writes counts Set calls, changing or not.
	writes uint64
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	// Value is the activation at the time of the snapshot.
	Value Activation
	// ChangedAt is when Value last changed; zero if it never did.
	ChangedAt time.Time
	// Writes is the number of completed Set calls.
	Writes uint64
}

// NewState returns a Silent state.
func NewState() *State {
	return new(State)
}

// Get returns the current activation.
func (s *State) Get() Activation {
	s.mu.Lock()
	v := s.value
	s.mu.Unlock()

	return v
}

// Sounding reports whether the buzzer should be sounding.
func (s *State) Sounding() bool {
	return s.Get() == Sounding
}

// Set stores v and reports whether the value changed.
func (s *State) Set(v Activation) bool {
	now := time.Now()

	s.mu.Lock()
	changed := s.value != v
	s.value = v
	s.writes++

	if changed {
		s.changedAt = now
	}
	s.mu.Unlock()

	return changed
}

// Snapshot returns a consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Value:     s.value,
		ChangedAt: s.changedAt,
		Writes:    s.writes,
	}
}
