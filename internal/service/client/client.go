package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/buzzer/internal/api/ws"
	"github.com/oshokin/buzzer/internal/config"
	"github.com/oshokin/buzzer/internal/logger"
	"github.com/oshokin/buzzer/internal/service/common"
)

// Program is the name reported in the User-Agent header.
const Program = "buzzer-ctl"

// Options configures one command delivery.
type Options struct {
	// ConfigPath to the settings file; a missing file means defaults.
	ConfigPath string
	// ServerAddress overrides the server: host:port or a ws:// URL.
	ServerAddress string
	// Command is the text sent in a single frame.
	Command string
	// Attempts bounds how many times the connection is tried.
	Attempts int
	// ReplyWait is how long to wait for a diagnostic reply after sending.
	ReplyWait time.Duration
}

const (
	// defaultAttempts is the number of connection attempts.
	defaultAttempts = 3
	// defaultRetryInterval is the delay between connection attempts.
	defaultRetryInterval = 1 * time.Second
	// defaultReplyWait is how long a silent server is given to complain.
	defaultReplyWait = 300 * time.Millisecond
	// controlPath is where the server mounts the control channel.
	controlPath = "/ws"
)

var (
	// ErrRejected is returned when the server answered with a diagnostic.
	ErrRejected = errors.New("server rejected the command")
	// errTooLong is returned for commands the server would reject anyway.
	errTooLong = errors.New("command too long")
)

// Run connects, sends opts.Command and reports any diagnostic the server sends back.
// The server does not acknowledge valid commands, so silence until ReplyWait
// elapses means success.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, Program)

	if len(opts.Command) > ws.MaxPayload {
		return fmt.Errorf("%w: %q is over %d bytes", errTooLong, opts.Command, ws.MaxPayload)
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}

	address := cfg.ListenAddress
	if opts.ServerAddress != "" {
		address = opts.ServerAddress
	}

	target, err := ControlURL(address)
	if err != nil {
		return err
	}

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("User-Agent", common.UserAgent(Program, actor))

	conn, err := dialWithRetry(ctx, target, header, cfg.Timeout, opts.Attempts)
	if err != nil {
		return err
	}

	defer func() {
		_ = conn.Close()
	}()

	logger.InfoKV(ctx, "Sending command", "server", target, "command", opts.Command)

	_ = conn.SetWriteDeadline(time.Now().Add(cfg.Timeout))

	if err = conn.WriteMessage(websocket.TextMessage, []byte(opts.Command)); err != nil {
		return fmt.Errorf("send command: %w", err)
	}

	replyWait := opts.ReplyWait
	if replyWait <= 0 {
		replyWait = defaultReplyWait
	}

	if err = awaitReply(conn, replyWait); err != nil {
		return err
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(cfg.Timeout))

	logger.InfoKV(ctx, "Command delivered", "command", opts.Command)

	return nil
}

// ControlURL turns host:port or a ws(s):// URL into the control channel URL.
// An empty host means the local machine.
func ControlURL(address string) (string, error) {
	if u, err := url.Parse(address); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		if u.Path == "" {
			u.Path = controlPath
		}

		return u.String(), nil
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", address, err)
	}

	if host == "" {
		host = "127.0.0.1"
	}

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: controlPath}

	return u.String(), nil
}

// dialWithRetry tries to connect up to attempts times.
func dialWithRetry(
	ctx context.Context,
	target string,
	header http.Header,
	timeout time.Duration,
	attempts int,
) (*websocket.Conn, error) {
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		conn, resp, err := dialer.DialContext(ctx, target, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if err == nil {
			return conn, nil
		}

		lastErr = err
		logger.WarnKV(ctx, "Connection attempt failed", "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(defaultRetryInterval):
		}
	}

	return nil, fmt.Errorf("connect to %s: %w", target, lastErr)
}

// awaitReply waits up to wait for a frame. A text frame is a diagnostic;
// a read timeout means the command was accepted.
func awaitReply(conn *websocket.Conn, wait time.Duration) error {
	_ = conn.SetReadDeadline(time.Now().Add(wait))

	_, data, err := conn.ReadMessage()
	if err == nil {
		return fmt.Errorf("%w: %s", ErrRejected, data)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil
	}

	return fmt.Errorf("await reply: %w", err)
}
