package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestControlURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{address: ":8080", want: "ws://127.0.0.1:8080/ws"},
		{address: "buzzer.local:80", want: "ws://buzzer.local:80/ws"},
		{address: "ws://10.0.0.5:8080", want: "ws://10.0.0.5:8080/ws"},
		{address: "wss://buzzer.example/control", want: "wss://buzzer.example/control"},
		{address: "no-port", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ControlURL(tt.address)
		if tt.wantErr {
			require.Error(t, err, tt.address)
			continue
		}

		require.NoError(t, err, tt.address)
		require.Equal(t, tt.want, got)
	}
}

// fakeServer accepts one frame per connection and optionally replies.
func fakeServer(t *testing.T, reply string) (string, <-chan string) {
	t.Helper()

	received := make(chan string, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		received <- r.UserAgent() + "|" + string(data)

		if reply != "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}

		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func options(t *testing.T, address, command string) *Options {
	t.Helper()

	return &Options{
		ConfigPath:    filepath.Join(t.TempDir(), "absent.yaml"),
		ServerAddress: address,
		Command:       command,
		Attempts:      1,
		ReplyWait:     100 * time.Millisecond,
	}
}

func TestRun_Delivers(t *testing.T) {
	t.Parallel()

	address, received := fakeServer(t, "")

	require.NoError(t, Run(context.Background(), options(t, address, "start")))

	got := <-received
	require.True(t, strings.HasPrefix(got, Program+"/"), got)
	require.True(t, strings.HasSuffix(got, "|start"), got)
}

func TestRun_Rejected(t *testing.T) {
	t.Parallel()

	address, _ := fakeServer(t, "[UTF-8 Error]")

	err := Run(context.Background(), options(t, address, "stop"))
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "[UTF-8 Error]")
}

func TestRun_TooLong(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), options(t, "127.0.0.1:1", "123456789"))
	require.ErrorIs(t, err, errTooLong)
}

func TestRun_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	address := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	err := Run(context.Background(), options(t, address, "start"))
	require.Error(t, err)
}
