package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed serves one status event per connection, then hangs up.
func feed(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"type":"status","time":"2026-05-01T12:00:00Z","data":{"tracking":{"mode":"tracking","current_pan":91.5},"identity":{"record":{"name":"ana"},"score":0.8}}}`
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatch_ReturnsWhenServerHangsUp(t *testing.T) {
	srv := feed(t)
	target := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// ctx stays alive: every reconnect must still clean up after itself.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		done := make(chan error, 1)
		go func() { done <- watch(ctx, target, false, logger) }()
		select {
		case err := <-done:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("watch %d did not return after the server closed", i)
		}
	}

	out := buf.String()
	assert.Contains(t, out, "mode=tracking")
	assert.Contains(t, out, "pan=91.5")
	assert.Contains(t, out, "identity=ana")
}

func TestWatch_DialFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	err := watch(context.Background(), "ws://127.0.0.1:1/ws/status", false, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}
