package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
)

const waitTimeout = 2 * time.Second

// recordingHandler captures every callback.
type recordingHandler struct {
	opened   chan uint64
	closed   chan uint64
	commands chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan uint64, 8),
		closed:   make(chan uint64, 8),
		commands: make(chan string, 8),
	}
}

func (h *recordingHandler) OnOpen(_ context.Context, s *buzzer.Session) {
	h.opened <- s.ID
}

func (h *recordingHandler) OnCommand(_ context.Context, s *buzzer.Session, command string) {
	if s.Phase() != buzzer.Active {
		command = "phase:" + s.Phase().String()
	}

	h.commands <- command
}

func (h *recordingHandler) OnClose(_ context.Context, s *buzzer.Session) {
	h.closed <- s.ID
}

// countingObserver counts frame outcomes.
type countingObserver struct {
	mu     sync.Mutex
	counts map[FrameOutcome]int
}

func (o *countingObserver) FrameReceived(outcome FrameOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.counts == nil {
		o.counts = make(map[FrameOutcome]int)
	}

	o.counts[outcome]++
}

func (o *countingObserver) count(outcome FrameOutcome) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.counts[outcome]
}

func startChannel(t *testing.T, h Handler, obs FrameObserver) (*Channel, string) {
	t.Helper()

	channel := NewChannel(context.Background(), h, Options{Observer: obs})
	srv := httptest.NewServer(channel)
	t.Cleanup(srv.Close)

	return channel, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for callback")
	}

	var zero T

	return zero
}

func TestChannel_DeliversCommands(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	obs := new(countingObserver)
	_, url := startChannel(t, h, obs)
	conn := dial(t, url)

	receive(t, h.opened)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("start")))
	require.Equal(t, "start", receive(t, h.commands))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("12345678")))
	require.Equal(t, "12345678", receive(t, h.commands))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("stop")))
	require.Equal(t, "stop", receive(t, h.commands))

	require.Equal(t, 3, obs.count(FrameAccepted))
}

func TestChannel_OversizedFrameClosesSession(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	obs := new(countingObserver)
	channel, url := startChannel(t, h, obs)
	conn := dial(t, url)

	id := receive(t, h.opened)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("123456789")))

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	require.Equal(t, ReplyTooBig, string(data))

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)

	require.Equal(t, id, receive(t, h.closed))
	require.Empty(t, h.commands)
	require.Equal(t, 1, obs.count(FrameTooLarge))

	require.Eventually(t, func() bool { return channel.Sessions() == 0 }, waitTimeout, 10*time.Millisecond)

	select {
	case <-h.closed:
		t.Fatal("session closed twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannel_LargeFramesGetDiagnostic(t *testing.T) {
	t.Parallel()

	for _, size := range []int{5000, 1 << 20} {
		h := newRecordingHandler()
		obs := new(countingObserver)
		_, url := startChannel(t, h, obs)
		conn := dial(t, url)

		id := receive(t, h.opened)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("s", size))))

		_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "size %d", size)
		require.Equal(t, ReplyTooBig, string(data))

		_, _, err = conn.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "size %d: got %v", size, err)

		require.Equal(t, id, receive(t, h.closed))
		require.Equal(t, 1, obs.count(FrameTooLarge))
	}
}

func TestChannel_InvalidUTF8KeepsSession(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	obs := new(countingObserver)
	_, url := startChannel(t, h, obs)
	conn := dial(t, url)

	receive(t, h.opened)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0xfe, 0xfd}))

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ReplyUTF8Error, string(data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("start")))
	require.Equal(t, "start", receive(t, h.commands))
	require.Equal(t, 1, obs.count(FrameBadUTF8))
}

func TestChannel_SessionsAreIndependent(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	channel, url := startChannel(t, h, nil)

	first := dial(t, url)
	firstID := receive(t, h.opened)

	second := dial(t, url)
	secondID := receive(t, h.opened)

	require.NotEqual(t, firstID, secondID)
	require.Eventually(t, func() bool { return channel.Sessions() == 2 }, waitTimeout, 10*time.Millisecond)

	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte("123456789")))
	require.Equal(t, firstID, receive(t, h.closed))

	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte("start")))
	require.Equal(t, "start", receive(t, h.commands))
	require.Eventually(t, func() bool { return channel.Sessions() == 1 }, waitTimeout, 10*time.Millisecond)
}

func TestChannel_CloseSendsGoingAway(t *testing.T) {
	t.Parallel()

	h := newRecordingHandler()
	channel, url := startChannel(t, h, nil)
	conn := dial(t, url)

	receive(t, h.opened)
	channel.Close()

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	receive(t, h.closed)
}
