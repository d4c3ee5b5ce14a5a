// Package rig wires the camera, perception, tracking, limbs, identity and
// serial link into the control loop of the animatronic rig.
package rig

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-vigia/internal/config"
	"github.com/teslashibe/go-vigia/pkg/camera"
	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
)

// Config holds all configuration for the rig application.
// Flag parsing is done in cmd/vigia/main.go; this struct is data only.
type Config struct {
	Debug         bool
	DebugTracking bool

	// Camera preset name (see camera.PresetNames) and device index.
	CameraPreset string
	CameraDevice int

	// Serial link. An empty port runs in simulation mode.
	SerialPort string
	BaudRate   int

	// DataDir holds the identity database, bulletins and captures.
	DataDir    string
	CaptureDir string

	// DeploymentPath is an optional YAML file with tracking and limb settings.
	DeploymentPath string

	// Face models.
	ModelPath      string
	RecognizerPath string

	// Status API. Empty HTTPAddr disables it.
	HTTPAddr string

	// NoSync disables the bulletin refresh; the stored database is still used.
	NoSync     bool
	ListingURL string

	// PollInterval is how often the loop polls for a new frame.
	PollInterval time.Duration
	// StatusInterval limits how often status is pushed to websocket clients.
	StatusInterval time.Duration
}

// DefaultConfig returns the defaults of the bring-up rig.
func DefaultConfig() Config {
	det := detection.DefaultConfig()
	return Config{
		CameraPreset:   "default",
		CameraDevice:   config.DefaultCamera,
		SerialPort:     config.DefaultSerialPort,
		BaudRate:       config.DefaultBaudRate,
		DataDir:        config.DefaultDataDir,
		ModelPath:      det.ModelPath,
		RecognizerPath: det.RecognizerPath,
		HTTPAddr:       ":" + config.DefaultHTTPPort,
		PollInterval:   5 * time.Millisecond,
		StatusInterval: 100 * time.Millisecond,
	}
}

// LoadEnvConfig applies environment overrides to c.
// Call this on the defaults before flag parsing so explicit flags win.
// VIGIA_HTTP_PORT replaces only the port of HTTPAddr.
func (c *Config) LoadEnvConfig() {
	c.SerialPort = config.SerialPort(c.SerialPort)
	c.BaudRate = config.BaudRate(c.BaudRate)
	c.CameraDevice = config.CameraDevice(c.CameraDevice)
	c.DataDir = config.DataDir(c.DataDir)
	if c.HTTPAddr != "" {
		host, port := splitAddr(c.HTTPAddr)
		c.HTTPAddr = net.JoinHostPort(host, config.HTTPPort(port))
	}
}

// resolve fills settings derived from others.
func (c *Config) resolve() {
	if c.CaptureDir == "" {
		c.CaptureDir = config.DataPath(c.DataDir, "captures")
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if camera.GetPreset(c.CameraPreset) == nil {
		return &ConfigError{Field: "CameraPreset", Message: fmt.Sprintf("unknown camera preset %q (have %v)", c.CameraPreset, camera.PresetNames())}
	}
	if c.CameraDevice < 0 {
		return &ConfigError{Field: "CameraDevice", Message: "camera device index must not be negative"}
	}
	if c.SerialPort != "" && c.BaudRate <= 0 {
		return &ConfigError{Field: "BaudRate", Message: "baud rate must be positive"}
	}
	if c.DataDir == "" {
		return &ConfigError{Field: "DataDir", Message: "data directory is required"}
	}
	if c.ModelPath == "" {
		return &ConfigError{Field: "ModelPath", Message: "face detection model path is required"}
	}
	if c.PollInterval <= 0 {
		return &ConfigError{Field: "PollInterval", Message: "poll interval must be positive"}
	}
	return nil
}

// CameraConfig resolves the preset and device.
func (c *Config) CameraConfig() camera.Config {
	cfg := camera.DefaultConfig()
	if p := camera.GetPreset(c.CameraPreset); p != nil {
		cfg = *p
	}
	cfg.Device = c.CameraDevice
	return cfg
}

// DBPath is the identity database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "identities.db")
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// splitAddr splits host:port; a bare value is taken as the port.
func splitAddr(addr string) (host, port string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", addr
	}
	return host, port
}
