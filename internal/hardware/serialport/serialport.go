// Package serialport drives a pulse coprocessor attached over a serial line.
//
// The host ships each sequence as run-length encoded PLAY frames; the
// coprocessor replies ACK once the pulses have left the pin, so Transmit
// blocks for the real emission time.
package serialport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
)

// Port is the subset of serial.Port the transmitter uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var (
	// ErrRejected is returned when the coprocessor answers NAK.
	ErrRejected = errors.New("coprocessor rejected the sequence")
	// ErrTimeout is returned when no reply arrives in time.
	ErrTimeout = errors.New("coprocessor reply timeout")
)

// replyMargin is added to the emission time when waiting for ACK.
const replyMargin = 250 * time.Millisecond

// Transmitter sends sequences to the coprocessor.
type Transmitter struct {
	hardware.Owner

	port Port

	// mu serializes request/reply exchanges on the line.
	mu       sync.Mutex
	tickRate uint32
}

// Open opens the serial device at baud and wraps it.
func Open(device string, baud int) (*Transmitter, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return New(port), nil
}

// New wraps an already opened port.
func New(port Port) *Transmitter {
	return &Transmitter{port: port}
}

// CounterClock asks the coprocessor for its tick rate once and caches it.
func (t *Transmitter) CounterClock() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tickRate != 0 {
		return t.tickRate, nil
	}

	reply, err := t.exchange(frame{cmd: cmdClock}, replyMargin)
	if err != nil {
		return 0, fmt.Errorf("query counter clock: %w", err)
	}

	if reply.cmd != cmdClock || len(reply.payload) != 4 {
		return 0, fmt.Errorf("query counter clock: %w", errBadFrame)
	}

	t.tickRate = binary.BigEndian.Uint32(reply.payload)

	return t.tickRate, nil
}

// Transmit sends seq and blocks until every PLAY frame is acknowledged.
func (t *Transmitter) Transmit(seq buzzer.PulseSequence) error {
	end, err := t.Begin()
	if err != nil {
		return err
	}
	defer end()

	tickRate, err := t.CounterClock()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range playFrames(seq) {
		wait := framedDuration(f, tickRate) + replyMargin

		reply, err := t.exchange(f, wait)
		if err != nil {
			return fmt.Errorf("play: %w", err)
		}

		switch reply.cmd {
		case cmdAck:
		case cmdNak:
			return ErrRejected
		default:
			return fmt.Errorf("play: unexpected reply 0x%02x: %w", reply.cmd, errBadFrame)
		}
	}

	return nil
}

// Close closes the serial port.
func (t *Transmitter) Close() error {
	if !t.MarkClosed() {
		return nil
	}

	return t.port.Close()
}

// exchange writes a request and reads one reply within wait. Callers hold mu.
func (t *Transmitter) exchange(req frame, wait time.Duration) (frame, error) {
	if _, err := t.port.Write(req.encode()); err != nil {
		return frame{}, fmt.Errorf("write frame: %w", err)
	}

	deadline := time.Now().Add(wait)

	header, err := t.readFull(headerSize-1, deadline)
	if err != nil {
		return frame{}, err
	}

	rest, err := t.readFull(int(header[2])+1, deadline)
	if err != nil {
		return frame{}, err
	}

	return decodeFrame(append(header, rest...))
}

// readFull reads exactly n bytes before deadline. A zero-byte read is the
// port's timeout signal.
func (t *Transmitter) readFull(n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, n)

	for read := 0; read < n; {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, ErrTimeout
		}

		if err := t.port.SetReadTimeout(left); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		m, err := t.port.Read(buf[read:])
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}

		if m == 0 {
			return nil, ErrTimeout
		}

		read += m
	}

	return buf, nil
}

// framedDuration returns the emission time of the runs in one PLAY frame.
func framedDuration(f frame, tickRate uint32) time.Duration {
	if tickRate == 0 {
		return 0
	}

	var ticks uint64

	for p := f.payload; len(p) >= runSize; p = p[runSize:] {
		width := uint64(binary.BigEndian.Uint16(p[1:])) + uint64(binary.BigEndian.Uint16(p[3:]))
		ticks += width * uint64(binary.BigEndian.Uint32(p[5:]))
	}

	return time.Duration(ticks * uint64(time.Second) / uint64(tickRate))
}
