package tracking

import (
	"fmt"
	"time"
)

// Axis holds the per-axis tunables of the proportional controller.
// Gain may be negative when the servo is mounted inverted.
type Axis struct {
	Gain     float64 `yaml:"gain" json:"gain"`         // Degrees per unit of normalized error
	Deadzone float64 `yaml:"deadzone" json:"deadzone"` // Normalized error below which the axis holds
	MaxStep  float64 `yaml:"max_step" json:"max_step"` // Maximum target change per tick (degrees)
	Min      float64 `yaml:"min" json:"min"`           // Hardware-safe lower bound (degrees)
	Max      float64 `yaml:"max" json:"max"`           // Hardware-safe upper bound (degrees)
	Home     float64 `yaml:"home" json:"home"`         // Start position (degrees)
}

// Clamp limits v to the axis range.
func (a Axis) Clamp(v float64) float64 {
	return clamp(v, a.Min, a.Max)
}

// Config holds all tunable parameters for pan/tilt tracking
type Config struct {
	Pan  Axis `yaml:"pan"`
	Tilt Axis `yaml:"tilt"`

	// ResponseScale multiplies every proportional step (0-1 is typical).
	ResponseScale float64 `yaml:"response_scale"`

	// Exponential smoothing fraction applied to current->target each tick.
	TrackingSmoothing float64 `yaml:"tracking_smoothing"`
	SearchSmoothing   float64 `yaml:"search_smoothing"`

	// LostTimeout is how long after the last sighting the rig keeps glancing
	// around the last known position before it starts sweeping.
	LostTimeout time.Duration `yaml:"lost_timeout"`

	// Glance pattern around the last known position while recently lost.
	GlanceAmplitude float64       `yaml:"glance_amplitude"` // Degrees
	GlancePeriod    time.Duration `yaml:"glance_period"`

	// Sweep while searching: pan = center + amp*sin(rate*t), tilt likewise (slower).
	SweepPanCenter     float64 `yaml:"sweep_pan_center"`
	SweepPanAmplitude  float64 `yaml:"sweep_pan_amplitude"`
	SweepPanRate       float64 `yaml:"sweep_pan_rate"` // rad/s
	SweepTiltCenter    float64 `yaml:"sweep_tilt_center"`
	SweepTiltAmplitude float64 `yaml:"sweep_tilt_amplitude"`
	SweepTiltRate      float64 `yaml:"sweep_tilt_rate"` // rad/s
}

// DefaultConfig returns the tuning used on the four-arm rig
func DefaultConfig() Config {
	return Config{
		Pan: Axis{
			Gain:     1.5,
			Deadzone: 0.10,
			MaxStep:  2.0,
			Min:      DefaultPanMin,
			Max:      DefaultPanMax,
			Home:     90,
		},
		Tilt: Axis{
			Gain:     24.0,
			Deadzone: 0.05,
			MaxStep:  3.0,
			Min:      DefaultTiltMin,
			Max:      DefaultTiltMax,
			Home:     45,
		},
		ResponseScale: 1.0,

		TrackingSmoothing: 0.15,
		SearchSmoothing:   0.08,

		LostTimeout:     3 * time.Second,
		GlanceAmplitude: 6,
		GlancePeriod:    1500 * time.Millisecond,

		SweepPanCenter:     90,
		SweepPanAmplitude:  40,
		SweepPanRate:       0.5,
		SweepTiltCenter:    50,
		SweepTiltAmplitude: 8,
		SweepTiltRate:      0.15,
	}
}

// SlowConfig returns a configuration for slower, smoother tracking
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.ResponseScale = 0.6
	cfg.TrackingSmoothing = 0.10
	cfg.Pan.Deadzone = 0.15
	cfg.Tilt.Deadzone = 0.10
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.ResponseScale = 1.4
	cfg.TrackingSmoothing = 0.3
	cfg.Pan.MaxStep = 3.0
	cfg.Tilt.MaxStep = 4.0
	return cfg
}

// Preset returns a named configuration: "default", "slow" or "aggressive".
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "slow":
		return SlowConfig(), true
	case "aggressive":
		return AggressiveConfig(), true
	}
	return Config{}, false
}

// Validate checks ranges that would otherwise break the smoothing invariants.
func (c Config) Validate() error {
	for name, a := range map[string]Axis{"pan": c.Pan, "tilt": c.Tilt} {
		if a.Min >= a.Max {
			return fmt.Errorf("tracking: %s range invalid: min %.1f >= max %.1f", name, a.Min, a.Max)
		}
		if a.Min < ServoMin || a.Max > ServoMax {
			return fmt.Errorf("tracking: %s range [%.1f, %.1f] outside servo range", name, a.Min, a.Max)
		}
		if a.Home < a.Min || a.Home > a.Max {
			return fmt.Errorf("tracking: %s home %.1f outside range", name, a.Home)
		}
		if a.Deadzone < 0 || a.Deadzone >= 1 {
			return fmt.Errorf("tracking: %s deadzone %.2f must be in [0, 1)", name, a.Deadzone)
		}
		if a.MaxStep <= 0 {
			return fmt.Errorf("tracking: %s max step must be positive", name)
		}
	}
	for name, f := range map[string]float64{"tracking": c.TrackingSmoothing, "search": c.SearchSmoothing} {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("tracking: %s smoothing %.2f must be in (0, 1)", name, f)
		}
	}
	if c.LostTimeout <= 0 {
		return fmt.Errorf("tracking: lost timeout must be positive")
	}
	if c.ResponseScale <= 0 {
		return fmt.Errorf("tracking: response scale must be positive")
	}
	return nil
}
