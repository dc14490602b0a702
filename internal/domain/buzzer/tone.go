package buzzer

import (
	"fmt"
	"time"
)

// Tone is a single note: a square wave of Frequency Hz lasting Duration.
type Tone struct {
	// Frequency is the pitch in Hz and must be positive.
	Frequency uint32
	// Duration is the length of the note.
	Duration time.Duration
}

// String renders the tone as "2000Hz/100ms".
func (t Tone) String() string {
	return fmt.Sprintf("%dHz/%s", t.Frequency, t.Duration)
}
