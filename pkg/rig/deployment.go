package rig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-vigia/pkg/capture"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/tracking"
)

// Deployment is the per-rig tuning: gains and deadzones drift between builds
// and servo mountings, so they live in a file rather than in code.
type Deployment struct {
	Name string `yaml:"name"`
	// Preset picks the base tracking tuning (tracking.Preset); the tracking
	// section is applied on top of it.
	Preset   string                 `yaml:"preset,omitempty"`
	Tracking tracking.Config        `yaml:"tracking"`
	Limbs    []limbs.Limb           `yaml:"limbs"`
	Matcher  identity.MatcherConfig `yaml:"matcher"`
	Capture  CaptureConfig          `yaml:"capture"`
}

// CaptureConfig holds the snapshot throttle settings.
type CaptureConfig struct {
	Tolerance float64       `yaml:"tolerance"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// DefaultDeployment returns the four-arm rig settings.
func DefaultDeployment() Deployment {
	return Deployment{
		Name:     "default",
		Tracking: tracking.DefaultConfig(),
		Limbs:    limbs.DefaultRig(),
		Matcher:  identity.DefaultMatcherConfig(),
		Capture: CaptureConfig{
			Tolerance: capture.DefaultTolerance,
			Cooldown:  capture.DefaultCooldown,
		},
	}
}

// LoadDeployment reads a YAML deployment file. Fields the file omits keep
// their defaults; a limbs list replaces the default layout entirely.
func LoadDeployment(path string) (Deployment, error) {
	d := DefaultDeployment()
	if path == "" {
		return d, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Deployment{}, fmt.Errorf("read deployment: %w", err)
	}

	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(b, &head); err != nil {
		return Deployment{}, fmt.Errorf("parse deployment %s: %w", path, err)
	}
	base, ok := tracking.Preset(head.Preset)
	if !ok {
		return Deployment{}, fmt.Errorf("deployment %s: unknown tracking preset %q", path, head.Preset)
	}
	d.Tracking = base

	if err := yaml.Unmarshal(b, &d); err != nil {
		return Deployment{}, fmt.Errorf("parse deployment %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return Deployment{}, fmt.Errorf("deployment %s: %w", path, err)
	}
	return d, nil
}

// Validate checks every section.
func (d Deployment) Validate() error {
	if err := d.Tracking.Validate(); err != nil {
		return err
	}
	if _, err := limbs.NewCoordinator(d.Limbs); err != nil {
		return err
	}
	m := d.Matcher
	if m.Window <= 0 || m.Threshold <= 0 || m.Threshold > m.Window {
		return fmt.Errorf("matcher: threshold %d must be in [1, window %d]", m.Threshold, m.Window)
	}
	if m.TopK <= 0 {
		return fmt.Errorf("matcher: top_k must be positive")
	}
	if d.Capture.Tolerance <= 0 || d.Capture.Cooldown < 0 {
		return fmt.Errorf("capture: tolerance must be positive and cooldown non-negative")
	}
	return nil
}
