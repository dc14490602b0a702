package ws

import (
	"errors"
	"fmt"
	"io"
)

// MaxPayload is the largest accepted command frame in bytes.
const MaxPayload = 8

var (
	// ErrPayloadTooLarge is returned when a frame exceeds MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrTextDecode is returned when a frame is not valid UTF-8.
	ErrTextDecode = errors.New("payload is not valid UTF-8")
	// ErrProtocolOrder is returned when Peek and Read are not strictly alternated.
	ErrProtocolOrder = errors.New("receive out of order: peek then read exactly once")
)

// MessageReader is the frame source of a Receiver (*websocket.Conn satisfies it).
type MessageReader interface {
	NextReader() (messageType int, r io.Reader, err error)
}

// Receiver performs the two-phase receive on one connection.
// It is not safe for concurrent use; the connection's read goroutine owns it.
type Receiver struct {
	src MessageReader

	// staged holds up to MaxPayload+1 bytes of the peeked frame.
	staged [MaxPayload + 1]byte
	// length is the staged payload length, at most MaxPayload+1.
	length int
	// peeked is set between Peek and Read.
	peeked bool
}

// NewReceiver returns a receiver reading from src.
func NewReceiver(src MessageReader) *Receiver {
	return &Receiver{src: src}
}

// Peek waits for the next frame and returns its type and payload length.
// Lengths above MaxPayload are reported as MaxPayload+1.
// It must be followed by exactly one Read, unless the length is rejected.
func (r *Receiver) Peek() (messageType int, length int, err error) {
	if r.peeked {
		return 0, 0, ErrProtocolOrder
	}

	messageType, rd, err := r.src.NextReader()
	if err != nil {
		return 0, 0, err
	}

	n, err := io.ReadFull(rd, r.staged[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, 0, fmt.Errorf("read frame: %w", err)
	}

	// Anything past MaxPayload+1 bytes is left unread: the frame is rejected
	// whatever its real size.
	length = n

	r.length = length
	r.peeked = true

	return messageType, length, nil
}

// Read copies the peeked payload into buf and returns its length.
func (r *Receiver) Read(buf *[MaxPayload]byte) (int, error) {
	if !r.peeked {
		return 0, ErrProtocolOrder
	}

	r.peeked = false

	if r.length > MaxPayload {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, r.length)
	}

	return copy(buf[:], r.staged[:r.length]), nil
}

// Reset abandons a peeked frame that will not be read.
func (r *Receiver) Reset() {
	r.peeked = false
	r.length = 0
}

// Discard skips every remaining frame until the source fails, which is how
// a peer's close reply or a read deadline surfaces.
func (r *Receiver) Discard() {
	r.Reset()

	for {
		if _, _, err := r.src.NextReader(); err != nil {
			return
		}
	}
}
