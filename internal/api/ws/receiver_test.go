package ws

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var errTestSource = errors.New("source closed")

// frameSource replays queued frames as a MessageReader.
type frameSource struct {
	frames [][]byte
}

func (f *frameSource) NextReader() (int, io.Reader, error) {
	if len(f.frames) == 0 {
		return 0, nil, errTestSource
	}

	frame := f.frames[0]
	f.frames = f.frames[1:]

	return websocket.TextMessage, bytes.NewReader(frame), nil
}

// readerSource hands out one reader and then fails.
type readerSource struct {
	r io.Reader
}

func (s *readerSource) NextReader() (int, io.Reader, error) {
	if s.r == nil {
		return 0, nil, errTestSource
	}

	r := s.r
	s.r = nil

	return websocket.TextMessage, r, nil
}

func TestReceiver_PeekThenRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ""},
		{name: "start", payload: "start"},
		{name: "exactly max", payload: "12345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rcv := NewReceiver(&frameSource{frames: [][]byte{[]byte(tt.payload)}})

			messageType, length, err := rcv.Peek()
			require.NoError(t, err)
			require.Equal(t, websocket.TextMessage, messageType)
			require.Equal(t, len(tt.payload), length)

			var buf [MaxPayload]byte

			n, err := rcv.Read(&buf)
			require.NoError(t, err)
			require.Equal(t, tt.payload, string(buf[:n]))
		})
	}
}

func TestReceiver_OversizedStopsAfterLimit(t *testing.T) {
	t.Parallel()

	payload := bytes.NewReader([]byte(strings.Repeat("x", 100_000)))
	rcv := NewReceiver(&readerSource{r: payload})

	_, length, err := rcv.Peek()
	require.NoError(t, err)
	require.Equal(t, MaxPayload+1, length)
	require.Equal(t, 100_000-(MaxPayload+1), payload.Len(), "only the staged prefix is consumed")

	var buf [MaxPayload]byte

	_, err = rcv.Read(&buf)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReceiver_Order(t *testing.T) {
	t.Parallel()

	rcv := NewReceiver(&frameSource{frames: [][]byte{[]byte("a"), []byte("b")}})

	var buf [MaxPayload]byte

	_, err := rcv.Read(&buf)
	require.ErrorIs(t, err, ErrProtocolOrder)

	_, _, err = rcv.Peek()
	require.NoError(t, err)

	_, _, err = rcv.Peek()
	require.ErrorIs(t, err, ErrProtocolOrder)

	n, err := rcv.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, "a", string(buf[:n]))

	_, err = rcv.Read(&buf)
	require.ErrorIs(t, err, ErrProtocolOrder)

	_, _, err = rcv.Peek()
	require.NoError(t, err)

	rcv.Reset()

	_, err = rcv.Read(&buf)
	require.ErrorIs(t, err, ErrProtocolOrder)
}

func TestReceiver_SourceError(t *testing.T) {
	t.Parallel()

	rcv := NewReceiver(new(frameSource))

	_, _, err := rcv.Peek()
	require.ErrorIs(t, err, errTestSource)
}

func TestReceiver_Discard(t *testing.T) {
	t.Parallel()

	src := &frameSource{frames: [][]byte{[]byte("123456789"), []byte("start"), []byte("stop")}}
	rcv := NewReceiver(src)

	_, _, err := rcv.Peek()
	require.NoError(t, err)

	rcv.Discard()
	require.Empty(t, src.frames)

	var buf [MaxPayload]byte

	_, err = rcv.Read(&buf)
	require.ErrorIs(t, err, ErrProtocolOrder)
}
