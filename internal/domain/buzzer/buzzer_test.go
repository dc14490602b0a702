package buzzer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewPulseTicks verifies the accepted tick range.
func TestNewPulseTicks(t *testing.T) {
	t.Parallel()

	_, err := NewPulseTicks(0)
	require.ErrorIs(t, err, ErrPulseTicksRange)

	_, err = NewPulseTicks(MaxPulseTicks + 1)
	require.ErrorIs(t, err, ErrPulseTicksRange)

	ticks, err := NewPulseTicks(MaxPulseTicks)
	require.NoError(t, err)
	require.Equal(t, PulseTicks(32767), ticks)
}

// TestPulseSequence_LongDuration covers notes whose nanosecond count does not fit 64 bits
// before the division by the tick rate.
func TestPulseSequence_LongDuration(t *testing.T) {
	t.Parallel()

	widest := PulsePair{{Level: High, Ticks: MaxPulseTicks}, {Level: Low, Ticks: MaxPulseTicks}}
	pairs := make([]PulsePair, 600_000)

	for i := range pairs {
		pairs[i] = widest
	}

	seq := NewPulseSequence(pairs...)

	require.Equal(t, uint64(39_320_400_000), seq.TotalTicks())
	require.Equal(t, time.Duration(39_320_400_000_000), seq.Duration(1_000_000))
	require.Equal(t, time.Duration(math.MaxInt64), seq.Duration(1))
}

// TestPulseSequence_Duration checks tick totals and wall-time conversion.
func TestPulseSequence_Duration(t *testing.T) {
	t.Parallel()

	pair := PulsePair{{Level: High, Ticks: 250}, {Level: Low, Ticks: 250}}
	pairs := []PulsePair{pair, pair, pair, pair}
	seq := NewPulseSequence(pairs...)

	// The sequence owns its pairs.
	pairs[0][0].Ticks = 1
	require.Equal(t, PulseTicks(250), seq.Pair(0)[0].Ticks)

	require.Equal(t, 4, seq.Len())
	require.Equal(t, uint64(2000), seq.TotalTicks())
	require.Equal(t, 2*time.Millisecond, seq.Duration(1_000_000))
	require.Zero(t, seq.Duration(0))

	visited := 0
	seq.Pairs(func(i int, _ PulsePair) bool {
		visited++
		return i < 1
	})
	require.Equal(t, 2, visited)
}

// TestState_SetIsIdempotent asserts Set has no toggle semantics.
func TestState_SetIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewState()
	require.False(t, s.Sounding())

	require.True(t, s.Set(Sounding))
	require.False(t, s.Set(Sounding))
	require.True(t, s.Sounding())

	require.True(t, s.Set(Silent))
	require.False(t, s.Sounding())

	snap := s.Snapshot()
	require.Equal(t, Silent, snap.Value)
	require.Equal(t, uint64(3), snap.Writes)
	require.False(t, snap.ChangedAt.IsZero())
}

// TestState_ConcurrentAccess interleaves readers and writers; the final value
// must equal the last completed write.
func TestState_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewState()

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Go(func() {
			for j := range 1000 {
				s.Set(Activation((i+j)%2 == 0))
				_ = s.Sounding()
			}
		})
	}

	wg.Wait()

	s.Set(Sounding)
	require.True(t, s.Sounding())
	require.Equal(t, uint64(8*1000+1), s.Snapshot().Writes)
}

// TestSession_Lifecycle walks Opening -> Active -> Closed.
func TestSession_Lifecycle(t *testing.T) {
	t.Parallel()

	s := NewSession(1, "127.0.0.1:1234", "buzzer-ctl")
	require.Equal(t, Opening, s.Phase())

	require.NoError(t, s.Activate())
	require.Equal(t, Active, s.Phase())
	require.Equal(t, "active", s.Phase().String())

	require.True(t, s.Close())
	require.False(t, s.Close())
	require.ErrorIs(t, s.Activate(), ErrSessionClosed)
}
