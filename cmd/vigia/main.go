// vigia drives the face-tracking animatronic rig: camera, face detection,
// pan/tilt tracking, limb coordination over serial, and identity matching
// against the bulletin database.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/camera"
	"github.com/teslashibe/go-vigia/pkg/rig"
)

func main() {
	cfg, level, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}
	log.Init(level)

	app, err := rig.New(cfg)
	if err != nil {
		var ce *rig.ConfigError
		if errors.As(err, &ce) {
			log.Error("configuration error", "field", ce.Field, "error", ce.Message)
		} else {
			log.Error("configuration error", "error", err)
		}
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		app.Shutdown()
		os.Exit(1)
	}
}

// parseFlags builds the configuration: defaults, then environment
// overrides, then explicit flags.
func parseFlags(args []string) (rig.Config, string, error) {
	cfg := rig.DefaultConfig()
	cfg.LoadEnvConfig()

	fs := flag.NewFlagSet("vigia", flag.ContinueOnError)
	level := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	fs.BoolVar(&cfg.DebugTracking, "debug-tracking", false, "Log every tracking tick (very verbose)")
	fs.StringVar(&cfg.CameraPreset, "camera-preset", cfg.CameraPreset, "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	fs.IntVar(&cfg.CameraDevice, "camera", cfg.CameraDevice, "Camera device index (overrides VIGIA_CAMERA)")
	fs.StringVar(&cfg.SerialPort, "port", cfg.SerialPort, "Servo board serial port; empty for simulation (overrides VIGIA_SERIAL_PORT)")
	fs.IntVar(&cfg.BaudRate, "baud", cfg.BaudRate, "Serial baud rate (overrides VIGIA_BAUD)")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory (overrides VIGIA_DATA_DIR)")
	fs.StringVar(&cfg.CaptureDir, "captures", "", "Capture directory (default <data>/captures)")
	fs.StringVar(&cfg.DeploymentPath, "deployment", "", "Deployment YAML with tracking and limb settings")
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "YuNet face detection model")
	fs.StringVar(&cfg.RecognizerPath, "recognizer", cfg.RecognizerPath, "SFace recognition model; empty disables identity matching")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "Status API address; empty disables it (overrides VIGIA_HTTP_PORT)")
	fs.BoolVar(&cfg.NoSync, "no-sync", false, "Do not refresh the bulletin database")
	fs.StringVar(&cfg.ListingURL, "listing-url", "", "Bulletin listing page")
	if err := fs.Parse(args); err != nil {
		return cfg, "", err
	}
	return cfg, *level, nil
}
