// Package camera owns the rig camera and publishes only the newest frame,
// rotated to the mounting orientation.
package camera

import "fmt"

// Rotation is the mounting orientation correction applied to every frame.
type Rotation string

const (
	RotateNone  Rotation = "none"
	Rotate90CW  Rotation = "90cw"
	Rotate90CCW Rotation = "90ccw"
	Rotate180   Rotation = "180"
)

// Config holds camera capture parameters.
type Config struct {
	Device    int      `yaml:"device" json:"device"`
	Width     int      `yaml:"width" json:"width"`         // Capture width before rotation
	Height    int      `yaml:"height" json:"height"`       // Capture height before rotation
	Framerate int      `yaml:"framerate" json:"framerate"` // Requested FPS
	Rotation  Rotation `yaml:"rotation" json:"rotation"`

	// Detection runs on a downscaled copy of the rotated frame.
	DetectWidth  int `yaml:"detect_width" json:"detect_width"`
	DetectHeight int `yaml:"detect_height" json:"detect_height"`
}

// DefaultConfig returns the settings of the portrait-mounted USB camera.
func DefaultConfig() Config {
	return Config{
		Device:       0,
		Width:        640,
		Height:       480,
		Framerate:    30,
		Rotation:     Rotate90CCW,
		DetectWidth:  240,
		DetectHeight: 320,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < 160 || c.Width > 4096 {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > 4096 {
		errors = append(errors, "height must be between 120 and 4096")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}

	switch c.Rotation {
	case RotateNone, Rotate90CW, Rotate90CCW, Rotate180:
	default:
		errors = append(errors, fmt.Sprintf("rotation must be none, 90cw, 90ccw or 180 (got %q)", c.Rotation))
	}

	if c.DetectWidth < 32 || c.DetectHeight < 32 {
		errors = append(errors, "detect size must be at least 32x32")
	}

	return errors
}
