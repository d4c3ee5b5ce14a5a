// Package web serves the rig's status and tuning API with a live websocket feed.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/hub"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/robot"
	"github.com/teslashibe/go-vigia/pkg/tracking"
)

// Status is the per-tick snapshot published to clients.
type Status struct {
	Time     time.Time        `json:"time"`
	Tracking tracking.State   `json:"tracking"`
	Commands []limbs.Command  `json:"commands"`
	Face     *Face            `json:"face,omitempty"`
	Identity *identity.Match  `json:"identity,omitempty"`
	Votes    int              `json:"votes"` // Identity votes in the history window
	Camera   CameraStatus     `json:"camera"`
	Link     robot.Stats      `json:"link"`
	Captures CaptureStatus    `json:"captures"`
	Sync     *bulletin.Status `json:"sync,omitempty"`
	Viewers  int              `json:"viewers"` // Websocket clients
}

// Face describes the primary detection in detection-frame pixels.
type Face struct {
	Box        [4]float64 `json:"box"` // x0, y0, x1, y1
	Confidence float64    `json:"confidence"`
	Age        *int       `json:"age,omitempty"`
	Sex        string     `json:"sex,omitempty"`
}

// CameraStatus mirrors the frame source counters.
type CameraStatus struct {
	Frames uint64 `json:"frames"`
	Drops  uint64 `json:"drops"`
	Halted bool   `json:"halted"`
}

// CaptureStatus summarizes saved snapshots.
type CaptureStatus struct {
	Count  int       `json:"count"`
	Last   time.Time `json:"last"`
	LastID string    `json:"last_id,omitempty"`
}

// ErrSyncDisabled is returned by TriggerSync when the rig runs without
// bulletin refresh.
var ErrSyncDisabled = errors.New("bulletin sync is not configured")

// Backend is what the server exposes. The rig App implements it.
// TriggerSync returns bulletin.ErrInFlight when a refresh is already running.
type Backend interface {
	Status() Status
	Selection() (identity.Selection, bool)
	Tuning() tracking.TuningParams
	SetTuning(u tracking.TuningUpdate) tracking.TuningParams
	SyncStatus() bulletin.Status
	TriggerSync() error
}

// Server is the status API server
type Server struct {
	app     *fiber.App
	addr    string
	backend Backend
	status  *hub.Hub
	logger  *slog.Logger
}

// NewServer creates the server; addr is host:port or :port.
func NewServer(addr string, backend Backend) *Server {
	s := &Server{
		addr:    addr,
		backend: backend,
		status:  hub.New("status"),
		logger:  log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "vigia",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/matches", s.handleMatches)
	api.Get("/tuning", s.handleGetTuning)
	api.Put("/tuning", s.handlePutTuning)
	api.Get("/sync", s.handleGetSync)
	api.Post("/sync", s.handleTriggerSync)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		// Registration would block until the hub loop starts
		if !s.status.IsRunning() {
			return fiber.ErrServiceUnavailable
		}
		return c.Next()
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app (used by tests).
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the status broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.status
}

// Run serves until ctx is cancelled, then shuts the listener and hub down.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.status.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("shutdown", "error", err)
		}
		<-errc
		return nil
	}
}

// Publish sends a status snapshot to websocket clients.
func (s *Server) Publish(st Status) {
	if err := s.status.Publish("status", st); err != nil {
		s.logger.Warn("publish status", "error", err)
	}
}

// PublishEvent sends a non-status event (sync, identity) to websocket clients.
func (s *Server) PublishEvent(eventType string, data any) {
	if err := s.status.Publish(eventType, data); err != nil {
		s.logger.Warn("publish event", "type", eventType, "error", err)
	}
}
