package rig

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/camera"
	"github.com/teslashibe/go-vigia/pkg/capture"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/robot"
	"github.com/teslashibe/go-vigia/pkg/tracking"
	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
	"github.com/teslashibe/go-vigia/pkg/web"
)

// Portrait frames as published after the default 90ccw rotation.
const (
	frameW, frameH   = 480, 640
	detectW, detectH = 240, 320
)

type fakeFrames struct {
	mu      sync.Mutex
	mat     gocv.Mat
	has     bool
	seq     uint64
	started int
	stopped int
}

func (f *fakeFrames) push() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.has {
		f.mat.Close()
	}
	f.mat = gocv.NewMatWithSize(frameH, frameW, gocv.MatTypeCV8UC3)
	f.has = true
	f.seq++
}

func (f *fakeFrames) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeFrames) Latest() (camera.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return camera.Frame{}, false
	}
	return camera.Frame{
		Mat:    f.mat.Clone(),
		Width:  f.mat.Cols(),
		Height: f.mat.Rows(),
		Seq:    f.seq,
	}, true
}

func (f *fakeFrames) Stats() camera.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return camera.Stats{Frames: f.seq, Seq: f.seq}
}

func (f *fakeFrames) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	if f.has {
		f.mat.Close()
		f.has = false
	}
	return nil
}

type fakeDetector struct {
	mu     sync.Mutex
	dets   []detection.Detection
	err    error
	inputs []image.Point
	closes int
}

func (d *fakeDetector) set(dets []detection.Detection, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dets, d.err = dets, err
}

func (d *fakeDetector) Detect(img gocv.Mat) ([]detection.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputs = append(d.inputs, image.Pt(img.Cols(), img.Rows()))
	return d.dets, d.err
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

type fakeSnapshots struct {
	rects []capture.Rect
	paths []capture.Paths
	err   error
}

func (s *fakeSnapshots) Write(_ gocv.Mat, box capture.Rect, paths capture.Paths) error {
	s.rects = append(s.rects, box)
	s.paths = append(s.paths, paths)
	return s.err
}

type fakeSync struct {
	db       *identity.Database
	triggers int
}

func (s *fakeSync) Database() *identity.Database  { return s.db }
func (s *fakeSync) Run(ctx context.Context) error { <-ctx.Done(); return nil }
func (s *fakeSync) Trigger(context.Context) bool  { s.triggers++; return s.triggers == 1 }
func (s *fakeSync) Status() bulletin.Status       { return bulletin.Status{Records: s.db.Len()} }

type harness struct {
	app    *App
	frames *fakeFrames
	det    *fakeDetector
	port   *robot.MockPort
	snaps  *fakeSnapshots
	sync   *fakeSync
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.CaptureDir = t.TempDir()
	cfg.HTTPAddr = ""
	a, err := New(cfg)
	require.NoError(t, err)

	h := &harness{
		app:    a,
		frames: &fakeFrames{},
		det:    &fakeDetector{},
		port:   &robot.MockPort{},
		snaps:  &fakeSnapshots{},
		sync:   &fakeSync{db: identity.NewDatabase(nil)},
	}
	link := robot.Open(robot.Config{Port: "/dev/null-servo", BaudRate: 115200, Mode: robot.ModeTracking}, h.port.Opener())
	require.NoError(t, a.Wire(Parts{
		Frames:    h.frames,
		Detector:  h.det,
		Link:      link,
		Sync:      h.sync,
		Snapshots: h.snaps,
	}))
	t.Cleanup(a.Shutdown)
	return h
}

// face returns a detection centered at (cx, cy) in detection pixels.
func face(cx, cy float64, emb []float32) detection.Detection {
	return detection.Detection{
		Box:        detection.Box{X0: cx - 20, Y0: cy - 20, X1: cx + 20, Y1: cy + 20},
		Embedding:  emb,
		Confidence: 0.9,
	}
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStep_NoFrameYet(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.app.Step(t0))
	assert.Empty(t, h.port.Written())
}

func TestStep_CenteredFaceHoldsTarget(t *testing.T) {
	h := newHarness(t)
	h.frames.push()
	h.det.set([]detection.Detection{face(detectW/2, detectH/2, nil)}, nil)

	require.True(t, h.app.Step(t0))

	st := h.app.Status()
	assert.Equal(t, tracking.Tracking, st.Tracking.Mode)
	assert.True(t, st.Tracking.HasTarget)
	assert.Equal(t, tracking.DefaultConfig().Pan.Home, st.Tracking.TargetPan)
	assert.Equal(t, tracking.DefaultConfig().Tilt.Home, st.Tracking.TargetTilt)
	require.NotNil(t, st.Face)
	assert.Equal(t, 0.9, st.Face.Confidence)

	assert.Equal(t, []image.Point{image.Pt(detectW, detectH)}, h.det.inputs, "detection runs on the resized frame")

	line := h.port.Written()
	require.True(t, strings.HasPrefix(line, "$"))
	require.True(t, strings.HasSuffix(line, "\n"))
	assert.Len(t, strings.Split(strings.TrimSpace(line[1:]), ","), 4*4+1)

	// Same frame again is not processed
	assert.False(t, h.app.Step(t0.Add(30*time.Millisecond)))
	assert.Equal(t, line, h.port.Written())
}

func TestStep_OffCenterFaceMovesTarget(t *testing.T) {
	h := newHarness(t)
	h.frames.push()
	h.det.set([]detection.Detection{face(20, detectH/2, nil)}, nil)

	require.True(t, h.app.Step(t0))
	st := h.app.Status()
	home := tracking.DefaultConfig().Pan.Home
	assert.Greater(t, st.Tracking.TargetPan, home, "face left of center pans toward it")
	assert.Greater(t, st.Tracking.CurrentPan, home)
	assert.Less(t, st.Tracking.CurrentPan, st.Tracking.TargetPan)
}

func TestStep_DetectorErrorIsNoFace(t *testing.T) {
	h := newHarness(t)
	h.frames.push()
	h.det.set(nil, errors.New("inference failed"))

	require.True(t, h.app.Step(t0))
	st := h.app.Status()
	assert.Equal(t, tracking.Searching, st.Tracking.Mode)
	assert.False(t, st.Tracking.HasTarget)
	assert.Nil(t, st.Face)
	assert.NotEmpty(t, h.port.Written(), "limbs are still driven")
}

func TestStep_CaptureCooldown(t *testing.T) {
	h := newHarness(t)
	h.det.set([]detection.Detection{face(detectW/2, detectH/2, nil)}, nil)

	for _, at := range []time.Duration{0, time.Second, 13 * time.Second} {
		h.frames.push()
		require.True(t, h.app.Step(t0.Add(at)))
	}

	require.Len(t, h.snaps.rects, 2)
	assert.Equal(t, capture.Rect{X0: 200, Y0: 280, X1: 280, Y1: 360}, h.snaps.rects[0], "box scaled to full resolution")
	assert.NotEqual(t, h.snaps.paths[0].ID, h.snaps.paths[1].ID)

	st := h.app.Status()
	assert.Equal(t, 2, st.Captures.Count)
	assert.Equal(t, t0.Add(13*time.Second), st.Captures.Last)
}

func TestStep_CaptureNeedsCentering(t *testing.T) {
	h := newHarness(t)
	h.frames.push()
	h.det.set([]detection.Detection{face(10, 10, nil)}, nil)

	require.True(t, h.app.Step(t0))
	assert.Empty(t, h.snaps.rects)
}

func TestStep_CaptureFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.snaps.err = errors.New("disk full")
	h.det.set([]detection.Detection{face(detectW/2, detectH/2, nil)}, nil)

	h.frames.push()
	require.True(t, h.app.Step(t0))
	h.frames.push()
	require.True(t, h.app.Step(t0.Add(time.Second)))

	assert.Len(t, h.snaps.rects, 1, "a failed attempt still starts the cooldown")
	assert.Zero(t, h.app.Status().Captures.Count)
}

func oneHot(n, i int) []float32 {
	v := make([]float32, n)
	v[i] = 1
	return v
}

func TestStep_IdentityFollowsEmbedding(t *testing.T) {
	h := newHarness(t)
	h.sync.db = identity.NewDatabase([]identity.Record{
		{Name: "ana", Year: "2024", OriginalPath: "a.jpg", Embedding: oneHot(4, 0)},
		{Name: "jose", Year: "2023", OriginalPath: "b.jpg", Embedding: oneHot(4, 1)},
	})
	h.det.set([]detection.Detection{face(detectW/2, detectH/2, oneHot(4, 1))}, nil)

	h.frames.push()
	require.True(t, h.app.Step(t0))

	st := h.app.Status()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "jose", st.Identity.Record.Name)
	assert.Equal(t, 1, st.Votes)
	assert.InDelta(t, 1.0, st.Identity.Score, 1e-9)

	sel, ok := h.app.Selection()
	require.True(t, ok)
	assert.Len(t, sel.Matches, 2)

	// Losing the face clears the votes but keeps what is displayed
	h.det.set(nil, nil)
	h.frames.push()
	require.True(t, h.app.Step(t0.Add(time.Second)))
	assert.Zero(t, h.app.Status().Votes)
	require.NotNil(t, h.app.Status().Identity)
	assert.Equal(t, "jose", h.app.Status().Identity.Record.Name)
}

func TestStep_LostThenSearching(t *testing.T) {
	h := newHarness(t)
	h.det.set([]detection.Detection{face(detectW/2, detectH/2, nil)}, nil)
	h.frames.push()
	require.True(t, h.app.Step(t0))

	h.det.set(nil, nil)
	h.frames.push()
	require.True(t, h.app.Step(t0.Add(time.Second)))
	assert.Equal(t, tracking.LostRecent, h.app.Status().Tracking.Mode)

	h.frames.push()
	require.True(t, h.app.Step(t0.Add(10*time.Second)))
	assert.Equal(t, tracking.Searching, h.app.Status().Tracking.Mode)
}

func TestRun_ReleasesOnCancel(t *testing.T) {
	h := newHarness(t)
	h.app.config.NoSync = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()

	h.frames.push()
	require.Eventually(t, func() bool { return h.port.Written() != "" }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 1, h.frames.started)
	assert.Equal(t, 1, h.frames.stopped)
	assert.Equal(t, 1, h.port.Closes())

	// Shutdown after Run is a no-op
	h.app.Shutdown()
	assert.Equal(t, 1, h.port.Closes())
}

func TestBackend(t *testing.T) {
	h := newHarness(t)

	gain := -2.0
	got := h.app.SetTuning(tracking.TuningUpdate{PanGain: &gain})
	assert.Equal(t, -2.0, got.PanGain)
	assert.Equal(t, got, h.app.Tuning())

	assert.NoError(t, h.app.TriggerSync())
	assert.ErrorIs(t, h.app.TriggerSync(), bulletin.ErrInFlight)
	assert.Equal(t, 0, h.app.SyncStatus().Records)

	h.app.config.NoSync = true
	assert.ErrorIs(t, h.app.TriggerSync(), web.ErrSyncDisabled)

	st := h.app.Status()
	require.NotNil(t, st.Sync)
}

func TestWire_RequiresParts(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Error(t, a.Wire(Parts{}))
}

func TestWire_SyncDetectorIsSeparate(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	frames := &fakeFrames{}
	det := &fakeDetector{}
	link := robot.Open(robot.Config{}, nil)
	shared := Parts{Frames: frames, Detector: det, Link: link, SyncDetector: det}
	assert.Error(t, a.Wire(shared), "sync must not share the control loop detector")

	syncDet := &fakeDetector{}
	require.NoError(t, a.Wire(Parts{Frames: frames, Detector: det, Link: link, SyncDetector: syncDet}))
	a.Shutdown()
	assert.Equal(t, 1, det.closes)
	assert.Equal(t, 1, syncDet.closes)
}

func TestWire_LimbsMustFitBoard(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	link := robot.Open(robot.Config{Channels: 8}, nil)
	err = a.Wire(Parts{Frames: &fakeFrames{}, Detector: &fakeDetector{}, Link: link})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Limbs", ce.Field)
}
