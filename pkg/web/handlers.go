package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/hub"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/tracking"
)

// handleStatus returns the latest rig status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.backend.Status()
	st.Viewers = s.status.ClientCount()
	return c.JSON(st)
}

// handleMatches returns the displayed identity selection
func (s *Server) handleMatches(c *fiber.Ctx) error {
	sel, ok := s.backend.Selection()
	if !ok || sel.Matches == nil {
		sel = identity.Selection{Matches: []identity.Match{}}
	}
	return c.JSON(sel)
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.backend.Tuning())
}

// handlePutTuning applies the fields present in the body and returns the
// resulting parameters
func (s *Server) handlePutTuning(c *fiber.Ctx) error {
	var req tracking.TuningUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid tuning body: " + err.Error(),
		})
	}
	applied := s.backend.SetTuning(req)
	s.logger.Info("tuning updated", "pan_gain", applied.PanGain, "tilt_gain", applied.TiltGain)
	return c.JSON(applied)
}

func (s *Server) handleGetSync(c *fiber.Ctx) error {
	return c.JSON(s.backend.SyncStatus())
}

// handleTriggerSync starts a bulletin refresh unless one is running
func (s *Server) handleTriggerSync(c *fiber.Ctx) error {
	err := s.backend.TriggerSync()
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": true})
	case errors.Is(err, bulletin.ErrInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "refresh already in flight"})
	case errors.Is(err, ErrSyncDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// handleStatusWS attaches a websocket client to the status hub
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client, ok := hub.NewClient(s.status, conn)
	if !ok {
		conn.Close()
		return
	}
	client.Run()
}
