package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/logger"
)

// Diagnostic replies sent in-band on protocol errors.
const (
	ReplyTooBig    = "Request too big"
	ReplyUTF8Error = "[UTF-8 Error]"
)

const (
	// closeWait bounds the wait for the peer's close reply after a rejected frame.
	closeWait = time.Second
	// defaultWriteTimeout bounds each outgoing frame.
	defaultWriteTimeout = 5 * time.Second
	// defaultPingPeriod is the keepalive interval; pongs must arrive within pongWait.
	defaultPingPeriod = 30 * time.Second
)

// Handler reacts to session lifecycle and decoded commands.
// Calls for one session come from that session's goroutine; calls for
// different sessions may run in parallel.
type Handler interface {
	OnOpen(ctx context.Context, s *buzzer.Session)
	OnCommand(ctx context.Context, s *buzzer.Session, command string)
	OnClose(ctx context.Context, s *buzzer.Session)
}

// FrameOutcome classifies a received frame for observers.
type FrameOutcome string

// Frame outcomes reported to a FrameObserver.
const (
	FrameAccepted FrameOutcome = "accepted"
	FrameTooLarge FrameOutcome = "too_large"
	FrameBadUTF8  FrameOutcome = "bad_utf8"
)

// FrameObserver is notified about every received frame.
type FrameObserver interface {
	FrameReceived(outcome FrameOutcome)
}

// FrameWriter sends frames (*websocket.Conn satisfies it).
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Options configures a Channel.
type Options struct {
	// WriteTimeout bounds every outgoing frame.
	WriteTimeout time.Duration
	// PingPeriod is the keepalive interval; zero uses the default.
	PingPeriod time.Duration
	// Observer receives frame outcomes; may be nil.
	Observer FrameObserver
}

// Channel is the http.Handler serving the control WebSocket.
type Channel struct {
	handler  Handler
	opts     Options
	upgrader websocket.Upgrader

	lastID atomic.Uint64
	active atomic.Int64

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool

	// baseCtx carries the logger of the owning server.
	baseCtx context.Context
}

// NewChannel returns a channel dispatching to h.
func NewChannel(ctx context.Context, h Handler, opts Options) *Channel {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}

	return &Channel{
		handler: h,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Senders are not authenticated; any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns:   make(map[*websocket.Conn]struct{}),
		baseCtx: logger.WithName(ctx, "ws"),
	}
}

// Sessions returns the number of open sessions.
func (c *Channel) Sessions() int {
	return int(c.active.Load())
}

// ServeHTTP upgrades the request and serves the session until it closes.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		logger.WarnKV(c.baseCtx, "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	if !c.track(conn) {
		_ = conn.Close()
		return
	}
	defer c.untrack(conn)

	session := buzzer.NewSession(c.lastID.Add(1), r.RemoteAddr, r.UserAgent())
	ctx := logger.WithKV(c.baseCtx, "session", session.ID)

	c.serve(ctx, conn, session)
}

// Close sends a going-away close frame to every session and closes them.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conns := make([]*websocket.Conn, 0, len(c.conns))

	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	deadline := time.Now().Add(c.opts.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	}
}

// track registers conn unless the channel is closed.
func (c *Channel) track(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	c.conns[conn] = struct{}{}

	return true
}

// untrack forgets conn.
func (c *Channel) untrack(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
}

// serve runs the session: lifecycle hooks, keepalive and the frame loop.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, session *buzzer.Session) {
	c.active.Add(1)

	logger.InfoKV(ctx, "New WebSocket session", "remote_addr", session.RemoteAddr, "user_agent", session.UserAgent)
	c.handler.OnOpen(ctx, session)

	pongWait := 2 * c.opts.PingPeriod
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	go c.keepalive(conn, stopPing)

	defer func() {
		close(stopPing)
		_ = conn.Close()

		session.Close()
		c.handler.OnClose(ctx, session)
		c.active.Add(-1)

		logger.InfoKV(ctx, "Closed WebSocket session")
	}()

	receiver := NewReceiver(conn)

	for {
		if err := c.receive(ctx, receiver, conn, session); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return
			}

			logger.WarnKV(ctx, "WebSocket session failed", "error", err)

			return
		}
	}
}

// keepalive pings the peer until stop is closed.
func (c *Channel) keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// receive handles exactly one inbound frame. A returned error ends the session.
func (c *Channel) receive(ctx context.Context, rcv *Receiver, w FrameWriter, session *buzzer.Session) error {
	_, length, err := rcv.Peek()
	if err != nil {
		return err
	}

	if err = session.Activate(); err != nil {
		return err
	}

	if length > MaxPayload {
		rcv.Reset()
		c.observe(FrameTooLarge)

		logger.WarnKV(ctx, "WebSocket frame too big", "max", MaxPayload)

		if err = c.write(w, websocket.TextMessage, []byte(ReplyTooBig)); err != nil {
			return err
		}

		closeMsg := websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "")
		if err = w.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return fmt.Errorf("send close: %w", err)
		}

		// Skip the unread rest of the frame and wait for the close reply,
		// so teardown does not reset the connection under the diagnostic.
		if d, ok := w.(interface{ SetReadDeadline(t time.Time) error }); ok {
			_ = d.SetReadDeadline(time.Now().Add(closeWait))
		}

		rcv.Discard()

		return fmt.Errorf("%w: over %d bytes", ErrPayloadTooLarge, MaxPayload)
	}

	logger.DebugKV(ctx, "WebSocket frame received", "length", length)

	var buf [MaxPayload]byte

	n, err := rcv.Read(&buf)
	if err != nil {
		return err
	}

	if !utf8.Valid(buf[:n]) {
		c.observe(FrameBadUTF8)
		logger.WarnKV(ctx, "WebSocket frame rejected", "error", ErrTextDecode, "length", n)

		return c.write(w, websocket.TextMessage, []byte(ReplyUTF8Error))
	}

	command := string(buf[:n])

	c.observe(FrameAccepted)
	logger.InfoKV(ctx, "Received WebSocket text frame", "content", command)

	c.handler.OnCommand(ctx, session, command)

	return nil
}

// write sends one data frame.
func (c *Channel) write(w FrameWriter, messageType int, data []byte) error {
	if conn, ok := w.(*websocket.Conn); ok {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}

	if err := w.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}

// observe reports a frame outcome if an observer is set.
func (c *Channel) observe(outcome FrameOutcome) {
	if c.opts.Observer != nil {
		c.opts.Observer.FrameReceived(outcome)
	}
}
