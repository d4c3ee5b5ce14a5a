package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records text frames and blocks reads until closed.
type fakeConn struct {
	mu     sync.Mutex
	texts  [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error                      { c.once.Do(func() { close(c.closed) }); return nil }

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	if mt != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.texts...)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h, cancel
}

func connect(t *testing.T, h *Hub) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	c, ok := NewClient(h, conn)
	require.True(t, ok)
	go c.Run()
	return conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	a, b := connect(t, h), connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.Publish("status", map[string]int{"frames": 3}))

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
		var ev struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal(conn.messages()[0], &ev))
		assert.Equal(t, "status", ev.Type)
		assert.Equal(t, 3, ev.Data["frames"])
	}
}

func TestHub_ReplaysLatestToNewClient(t *testing.T) {
	h, _ := startHub(t)
	require.NoError(t, h.Publish("sync", "done"))

	conn := connect(t, h)
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Contains(t, string(conn.messages()[0]), `"sync"`)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t)
	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StopsWithContext(t *testing.T) {
	h, cancel := startHub(t)
	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-h.Done()
	assert.False(t, h.IsRunning())
	assert.Equal(t, 0, h.ClientCount())

	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("client connection not closed after hub stop")
	}

	_, ok := NewClient(h, newFakeConn())
	assert.False(t, ok)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Broadcast(Message{Data: []byte("x")})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}
