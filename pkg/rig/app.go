package rig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/camera"
	"github.com/teslashibe/go-vigia/pkg/capture"
	"github.com/teslashibe/go-vigia/pkg/debug"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/robot"
	"github.com/teslashibe/go-vigia/pkg/tracking"
	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
	"github.com/teslashibe/go-vigia/pkg/vision"
	"github.com/teslashibe/go-vigia/pkg/web"
)

// FrameSource is the latest-frame cell fed by the acquisition goroutine.
// *camera.Source implements it.
type FrameSource interface {
	Start()
	Latest() (camera.Frame, bool)
	Stats() camera.Stats
	Stop() error
}

// SyncManager owns the identity database. *bulletin.Manager implements it.
type SyncManager interface {
	Database() *identity.Database
	Run(ctx context.Context) error
	Trigger(ctx context.Context) bool
	Status() bulletin.Status
}

// Snapshotter persists a capture.
type Snapshotter interface {
	Write(frame gocv.Mat, box capture.Rect, paths capture.Paths) error
}

// Parts are the collaborators of an App. Init builds them from the Config;
// tests pass fakes to Wire.
type Parts struct {
	Frames    FrameSource
	Detector  detection.Detector
	Link      *robot.Link
	Sync      SyncManager // optional
	Snapshots Snapshotter // optional
	Web       *web.Server // optional

	// SyncDetector embeds bulletins for Sync. It must not be Detector:
	// detectors serialize calls and the control loop must not wait on a refresh.
	SyncDetector detection.Detector
}

// App is the rig application orchestrator.
// It owns every component and their lifecycle.
type App struct {
	config Config
	deploy Deployment
	logger *slog.Logger

	frames     FrameSource
	detector   detection.Detector
	syncDet    detection.Detector
	link       *robot.Link
	sync       SyncManager
	snapshots  Snapshotter
	web        *web.Server
	controller *tracking.Controller
	coord      *limbs.Coordinator
	matcher    *identity.Matcher
	throttle   *capture.Throttle

	// Detection runs on frames resized to this size; zero means full frame.
	detectW, detectH int

	epoch       time.Time // Idle phase reference
	lastSeq     uint64
	lastPublish time.Time

	runCtx context.Context

	mu       sync.RWMutex
	status   web.Status
	captures web.CaptureStatus

	releaseOnce sync.Once
}

// New creates the application. It fills derived settings, validates the
// configuration and loads the deployment file. Environment overrides are
// the caller's job (see Config.LoadEnvConfig).
func New(cfg Config) (*App, error) {
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Tracking = cfg.DebugTracking

	deploy, err := LoadDeployment(cfg.DeploymentPath)
	if err != nil {
		return nil, err
	}

	return &App{
		config: cfg,
		deploy: deploy,
		logger: log.Component("rig"),
		runCtx: context.Background(),
	}, nil
}

// Init opens the devices and builds every component.
// Call this after New() and before Run().
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("starting rig", "deployment", a.deploy.Name, "limbs", len(a.deploy.Limbs))

	camCfg := a.config.CameraConfig()
	if problems := camCfg.Validate(); len(problems) > 0 {
		return &ConfigError{Field: "CameraPreset", Message: fmt.Sprintf("camera config: %v", problems)}
	}
	frames, err := camera.Open(camCfg)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	detCfg := detection.DefaultConfig()
	detCfg.ModelPath = a.config.ModelPath
	detCfg.RecognizerPath = a.config.RecognizerPath
	det, err := detection.NewYuNet(detCfg)
	if err != nil {
		frames.Stop()
		return fmt.Errorf("detector: %w", err)
	}

	linkCfg := robot.DefaultConfig()
	linkCfg.Port = a.config.SerialPort
	linkCfg.BaudRate = a.config.BaudRate
	link := robot.Open(linkCfg, robot.OpenSerial)

	syncDet, err := detection.NewYuNet(detCfg)
	if err != nil {
		frames.Stop()
		det.Close()
		link.Close()
		return fmt.Errorf("sync detector: %w", err)
	}

	syncCfg := bulletin.DefaultConfig(a.config.DataDir)
	syncCfg.DBPath = a.config.DBPath()
	if a.config.ListingURL != "" {
		syncCfg.ListingURL = a.config.ListingURL
	}
	mgr, err := bulletin.NewManager(syncCfg, bulletin.Deps{
		Fetcher:  bulletin.NewHTTPFetcher(syncCfg.UserAgent),
		Cropper:  vision.NewBulletinCropper(),
		Embedder: vision.FileEmbedder{Detector: syncDet},
		Store:    identity.NewStore(syncCfg.DBPath),
	})
	if err != nil {
		frames.Stop()
		det.Close()
		syncDet.Close()
		link.Close()
		return err
	}
	if err := mgr.Load(ctx); err != nil {
		// A corrupt database is replaced by the next refresh.
		a.logger.Error("identity database unavailable, starting empty", "error", err)
	}

	parts := Parts{
		Frames:       frames,
		Detector:     det,
		Link:         link,
		Sync:         mgr,
		SyncDetector: syncDet,
		Snapshots:    vision.SnapshotWriter{},
	}
	if a.config.HTTPAddr != "" {
		parts.Web = web.NewServer(a.config.HTTPAddr, a)
	}
	return a.Wire(parts)
}

// Wire installs the collaborators and builds the control components from
// the deployment.
func (a *App) Wire(p Parts) error {
	if p.Frames == nil || p.Detector == nil || p.Link == nil {
		return fmt.Errorf("rig: frames, detector and link are required")
	}
	if p.SyncDetector != nil && p.SyncDetector == p.Detector {
		return fmt.Errorf("rig: bulletin sync needs its own detector")
	}
	coord, err := limbs.NewCoordinator(a.deploy.Limbs)
	if err != nil {
		return err
	}
	if ch := p.Link.Channels(); ch > 0 && coord.Channels() > ch {
		return &ConfigError{
			Field:   "Limbs",
			Message: fmt.Sprintf("deployment drives %d joints but the board has %d channels", coord.Channels(), ch),
		}
	}

	a.frames = p.Frames
	a.detector = p.Detector
	a.syncDet = p.SyncDetector
	a.link = p.Link
	a.sync = p.Sync
	a.snapshots = p.Snapshots
	a.web = p.Web
	a.controller = tracking.NewController(a.deploy.Tracking)
	a.coord = coord
	a.matcher = identity.NewMatcher(a.deploy.Matcher)
	a.throttle = capture.NewThrottle(a.deploy.Capture.Tolerance, a.deploy.Capture.Cooldown)

	camCfg := a.config.CameraConfig()
	a.detectW, a.detectH = camCfg.DetectWidth, camCfg.DetectHeight
	return nil
}

// Run starts acquisition, the bulletin scheduler and the status API, then
// runs the control loop until ctx is cancelled. The camera and the serial
// link are released on every exit path.
func (a *App) Run(ctx context.Context) error {
	defer a.release()

	a.runCtx = ctx
	a.epoch = time.Now()
	a.frames.Start()

	g, ctx := errgroup.WithContext(ctx)
	if a.sync != nil && !a.config.NoSync {
		g.Go(func() error { return a.sync.Run(ctx) })
	}
	if a.web != nil {
		g.Go(func() error {
			if err := a.web.Run(ctx); err != nil {
				a.logger.Error("status api stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error { return a.loop(ctx) })

	a.logger.Info("rig running", "simulated_link", a.link.Simulated())
	return g.Wait()
}

// loop polls the frame cell and steps on every new frame. It never waits
// for a frame beyond the poll interval.
func (a *App) loop(ctx context.Context) error {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.Step(now)
		}
	}
}

// Shutdown releases every component. Safe to call more than once.
func (a *App) Shutdown() {
	a.release()
}

func (a *App) release() {
	a.releaseOnce.Do(func() {
		if a.frames != nil {
			if err := a.frames.Stop(); err != nil {
				a.logger.Warn("camera release", "error", err)
			}
		}
		if a.link != nil {
			if err := a.link.Close(); err != nil {
				a.logger.Warn("serial close", "error", err)
			}
		}
		if a.detector != nil {
			a.detector.Close()
		}
		if a.syncDet != nil {
			a.syncDet.Close()
		}
		a.logger.Info("rig stopped")
	})
}
