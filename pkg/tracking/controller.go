package tracking

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Mode is the behavioral state of the tracker.
type Mode int

const (
	// Searching sweeps the room; nothing has been seen for a while.
	Searching Mode = iota
	// Tracking means a face was present this tick.
	Tracking
	// LostRecent glances around the last known position right after losing the face.
	LostRecent
)

func (m Mode) String() string {
	switch m {
	case Tracking:
		return "tracking"
	case LostRecent:
		return "lost"
	default:
		return "searching"
	}
}

// MarshalText renders the mode name in JSON/YAML.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "tracking":
		*m = Tracking
	case "lost":
		*m = LostRecent
	case "searching":
		*m = Searching
	default:
		return fmt.Errorf("tracking: unknown mode %q", b)
	}
	return nil
}

// State is a snapshot of the controller after a tick.
type State struct {
	Mode Mode `json:"mode"`

	CurrentPan  float64 `json:"current_pan"`
	CurrentTilt float64 `json:"current_tilt"`
	TargetPan   float64 `json:"target_pan"`
	TargetTilt  float64 `json:"target_tilt"`

	LastKnownPan  float64   `json:"last_known_pan"`
	LastKnownTilt float64   `json:"last_known_tilt"`
	LastSeen      time.Time `json:"last_seen"`

	// Normalized errors of this tick's observation (zero without one).
	ErrPan    float64 `json:"err_pan"`
	ErrTilt   float64 `json:"err_tilt"`
	HasTarget bool    `json:"has_target"`
}

// Controller turns observations into smoothed pan/tilt positions.
// It is driven synchronously by the control loop; the mutex only guards
// against concurrent tuning from the status API.
type Controller struct {
	mu     sync.RWMutex
	config Config

	currentPan, currentTilt     float64
	targetPan, targetTilt       float64
	lastKnownPan, lastKnownTilt float64
	lastSeen                    time.Time
	mode                        Mode

	epoch time.Time // Reference for the search sweep
}

// NewController creates a controller resting at the configured home pose.
func NewController(config Config) *Controller {
	c := &Controller{config: config}
	c.currentPan, c.targetPan, c.lastKnownPan = config.Pan.Home, config.Pan.Home, config.Pan.Home
	c.currentTilt, c.targetTilt, c.lastKnownTilt = config.Tilt.Home, config.Tilt.Home, config.Tilt.Home
	return c
}

// Config returns a copy of the active configuration.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// Update runs one tick. obs is nil when no face was detected this frame.
func (c *Controller) Update(obs *Observation, now time.Time) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch.IsZero() {
		c.epoch = now
	}

	var errPan, errTilt float64
	fraction := c.config.SearchSmoothing

	switch {
	case obs != nil:
		c.mode = Tracking
		c.lastSeen = now
		errPan, errTilt = obs.ErrPan, obs.ErrTilt

		c.targetPan = c.config.Pan.Clamp(c.targetPan + c.step(c.config.Pan, obs.ErrPan))
		c.targetTilt = c.config.Tilt.Clamp(c.targetTilt + c.step(c.config.Tilt, obs.ErrTilt))
		c.lastKnownPan, c.lastKnownTilt = c.targetPan, c.targetTilt
		fraction = c.config.TrackingSmoothing

	case !c.lastSeen.IsZero() && now.Sub(c.lastSeen) < c.config.LostTimeout:
		c.mode = LostRecent
		dp, dt := c.glance(now.Sub(c.lastSeen))
		c.targetPan = c.config.Pan.Clamp(c.lastKnownPan + dp)
		c.targetTilt = c.config.Tilt.Clamp(c.lastKnownTilt + dt)

	default:
		c.mode = Searching
		c.targetPan, c.targetTilt = c.sweep(now)
	}

	c.currentPan = c.config.Pan.Clamp(c.currentPan + (c.targetPan-c.currentPan)*fraction)
	c.currentTilt = c.config.Tilt.Clamp(c.currentTilt + (c.targetTilt-c.currentTilt)*fraction)

	st := c.snapshot()
	st.ErrPan, st.ErrTilt = errPan, errTilt
	st.HasTarget = obs != nil
	return st
}

// step is the proportional correction for one axis, zero inside the deadzone.
func (c *Controller) step(a Axis, err float64) float64 {
	if math.Abs(err) < a.Deadzone {
		return 0
	}
	return clamp(err*a.Gain*c.config.ResponseScale, -a.MaxStep, a.MaxStep)
}

// glance is a small figure-eight around the last known position.
func (c *Controller) glance(since time.Duration) (pan, tilt float64) {
	if c.config.GlancePeriod <= 0 {
		return 0, 0
	}
	phase := 2 * math.Pi * since.Seconds() / c.config.GlancePeriod.Seconds()
	return c.config.GlanceAmplitude * math.Sin(phase), c.config.GlanceAmplitude / 2 * math.Sin(2*phase)
}

// sweep is the search target as a function of time since the first tick.
func (c *Controller) sweep(now time.Time) (pan, tilt float64) {
	t := now.Sub(c.epoch).Seconds()
	pan = c.config.SweepPanCenter + c.config.SweepPanAmplitude*math.Sin(t*c.config.SweepPanRate)
	tilt = c.config.SweepTiltCenter + c.config.SweepTiltAmplitude*math.Sin(t*c.config.SweepTiltRate)
	return c.config.Pan.Clamp(pan), c.config.Tilt.Clamp(tilt)
}

// State returns the last computed state without advancing the controller.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Controller) snapshot() State {
	return State{
		Mode:          c.mode,
		CurrentPan:    c.currentPan,
		CurrentTilt:   c.currentTilt,
		TargetPan:     c.targetPan,
		TargetTilt:    c.targetTilt,
		LastKnownPan:  c.lastKnownPan,
		LastKnownTilt: c.lastKnownTilt,
		LastSeen:      c.lastSeen,
	}
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
