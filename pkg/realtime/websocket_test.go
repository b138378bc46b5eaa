package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer accepts websocket connections and reads until the peer goes away
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig("live.sidechain.example")
	assert.Equal(t, "wss://live.sidechain.example/api/v1/realtime", cfg.URL)
	assert.Equal(t, 60000, cfg.ReconnectMaxDelayMs)
}

func TestWebsocketConnectFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/realtime"
	srv.Close()

	cfg := DefaultConfig()
	cfg.URL = url
	cfg.ConnectTimeoutMs = 500
	ws := NewWebsocket(cfg, "u-alice")

	require.Error(t, ws.Connect(context.Background()))
	assert.Equal(t, StateError, ws.State())
	assert.NotEmpty(t, ws.GetStats().LastError)
	assert.ErrorIs(t, ws.Send(context.Background(), "t", "e", map[string]string{}), ErrNotConnected)
}

func TestWebsocketClosed(t *testing.T) {
	ws := NewWebsocket(DefaultConfig(), "")
	require.NoError(t, ws.Close())
	assert.False(t, ws.IsConnected())

	_, err := ws.Subscribe("t", func(Message) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ws.Connect(context.Background()), ErrClosed)
}

func TestWebsocketSubscribeWhileDisconnected(t *testing.T) {
	ws := NewWebsocket(DefaultConfig(), "")
	defer ws.Close()

	sub, err := ws.Subscribe("typing:r", func(Message) {})
	require.NoError(t, err)
	assert.Equal(t, "typing:r", sub.Topic())
	sub.Unsubscribe()
}

func TestAttachAfterCloseReleasesConn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = echoServer(t)
	ws := NewWebsocket(cfg, "u-alice")

	// A reconnect that finished dialing just as the channel was closed
	conn, err := ws.dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	assert.False(t, ws.attach(conn))
	assert.False(t, ws.IsConnected())
	ws.connMu.RLock()
	assert.Nil(t, ws.conn)
	ws.connMu.RUnlock()
	assert.Error(t, conn.WriteMessage(websocket.TextMessage, []byte("late")), "conn was closed")
}

func TestWebsocketCloseWhileConnected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = echoServer(t)
	ws := NewWebsocket(cfg, "u-alice")
	require.NoError(t, ws.Connect(context.Background()))
	assert.True(t, ws.IsConnected())

	done := make(chan struct{})
	go func() {
		_ = ws.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, StateDisconnected, ws.State())
}
