package buzzer

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the lifecycle phase of a control connection.
type Phase uint8

const (
	// Opening means the connection is accepted but no frame was exchanged.
	Opening Phase = iota
	// Active means frames are being received.
	Active
	// Closed means the connection is torn down.
	Closed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("session closed")

// Session describes one control connection.
// It is owned by the goroutine serving that connection.
type Session struct {
	// ID identifies the session for logs.
	ID uint64
	// RemoteAddr is the peer address.
	RemoteAddr string
	// UserAgent is the client-supplied agent string, if any.
	UserAgent string
	// OpenedAt is when the connection was accepted.
	OpenedAt time.Time

	phase Phase
}

// NewSession returns a session in the Opening phase.
func NewSession(id uint64, remoteAddr, userAgent string) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		OpenedAt:   time.Now(),
		phase:      Opening,
	}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Activate moves an Opening session to Active. Active sessions stay Active.
func (s *Session) Activate() error {
	if s.phase == Closed {
		return ErrSessionClosed
	}

	s.phase = Active

	return nil
}

// Close moves the session to Closed and reports whether it was open.
func (s *Session) Close() bool {
	wasOpen := s.phase != Closed
	s.phase = Closed

	return wasOpen
}
