package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/tracking"
)

type fakeBackend struct {
	mu        sync.Mutex
	ctrl      *tracking.Controller
	selection *identity.Selection
	inFlight  bool
	disabled  bool
	triggers  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{ctrl: tracking.NewController(tracking.DefaultConfig())}
}

func (b *fakeBackend) Status() Status {
	return Status{
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Tracking: b.ctrl.State(),
		Commands: []limbs.Command{{90, 60, 45, 90}},
		Camera:   CameraStatus{Frames: 12, Drops: 1},
	}
}

func (b *fakeBackend) Selection() (identity.Selection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selection == nil {
		return identity.Selection{}, false
	}
	return *b.selection, true
}

func (b *fakeBackend) Tuning() tracking.TuningParams { return b.ctrl.GetTuningParams() }

func (b *fakeBackend) SetTuning(u tracking.TuningUpdate) tracking.TuningParams {
	b.ctrl.SetTuningParams(u)
	return b.ctrl.GetTuningParams()
}

func (b *fakeBackend) SyncStatus() bulletin.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bulletin.Status{Records: 7, InFlight: b.inFlight}
}

func (b *fakeBackend) TriggerSync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disabled {
		return ErrSyncDisabled
	}
	if b.inFlight {
		return bulletin.ErrInFlight
	}
	b.inFlight = true
	b.triggers++
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestStatus(t *testing.T) {
	s := NewServer(":0", newFakeBackend())
	code, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(body, &st))
	tr := st["tracking"].(map[string]any)
	assert.Equal(t, "searching", tr["mode"])
	assert.Equal(t, 90.0, tr["current_pan"])
	assert.Equal(t, []any{90.0, 60.0, 45.0, 90.0}, st["commands"].([]any)[0])
	assert.NotContains(t, st, "face")
	assert.Equal(t, 0.0, st["viewers"])
}

func TestMatches(t *testing.T) {
	b := newFakeBackend()
	s := NewServer(":0", b)

	code, body := do(t, s, http.MethodGet, "/api/matches", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"matches":[]}`, string(body))

	b.selection = &identity.Selection{Matches: []identity.Match{{
		Index:  2,
		Record: identity.Record{Name: "ana_lopez", Year: "2024", Embedding: []float32{1, 2}},
		Score:  0.81,
	}}}
	code, body = do(t, s, http.MethodGet, "/api/matches", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"ana_lopez"`)
	assert.NotContains(t, string(body), "embedding")
}

func TestTuning(t *testing.T) {
	s := NewServer(":0", newFakeBackend())

	code, body := do(t, s, http.MethodGet, "/api/tuning", "")
	require.Equal(t, http.StatusOK, code)
	var got tracking.TuningParams
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, tracking.DefaultConfig().Pan.Gain, got.PanGain)

	code, body = do(t, s, http.MethodPut, "/api/tuning", `{"pan_gain": -2.5, "tilt_deadzone": 5}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, -2.5, got.PanGain)
	assert.Equal(t, 0.9, got.TiltDeadzone, "deadzone is clamped")
	assert.Equal(t, tracking.DefaultConfig().Tilt.Gain, got.TiltGain, "omitted fields keep their value")

	code, body = do(t, s, http.MethodPut, "/api/tuning", `{"pan_deadzone": 0}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Zero(t, got.PanDeadzone, "an explicit zero is applied")
	assert.Equal(t, -2.5, got.PanGain)

	code, _ = do(t, s, http.MethodPut, "/api/tuning", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSync(t *testing.T) {
	b := newFakeBackend()
	s := NewServer(":0", b)

	code, body := do(t, s, http.MethodGet, "/api/sync", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"records":7`)

	code, _ = do(t, s, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusAccepted, code)

	code, body = do(t, s, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(body), "in flight")
	assert.Equal(t, 1, b.triggers)
}

func TestSync_Disabled(t *testing.T) {
	b := newFakeBackend()
	b.disabled = true
	s := NewServer(":0", b)

	code, body := do(t, s, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "not configured")
	assert.Zero(t, b.triggers)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer(":0", newFakeBackend())
	code, _ := do(t, s, http.MethodGet, "/ws/status", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestWebsocketNeedsRunningHub(t *testing.T) {
	s := NewServer(":0", newFakeBackend())
	req := httptest.NewRequest(http.MethodGet, "/ws/status", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
