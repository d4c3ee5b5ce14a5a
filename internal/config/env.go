// Package config provides environment helpers for vigia commands.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Default rig configuration.
const (
	DefaultSerialPort = "/dev/ttyUSB0"
	DefaultBaudRate   = 115200
	DefaultCamera     = 0
	DefaultDataDir    = "data"
	DefaultHTTPPort   = "8080"
)

// SerialPort returns the serial device from VIGIA_SERIAL_PORT.
// Falls back to the provided default if not set.
func SerialPort(def string) string {
	if p := os.Getenv("VIGIA_SERIAL_PORT"); p != "" {
		return p
	}
	return def
}

// BaudRate returns VIGIA_BAUD or the default when unset or malformed.
func BaudRate(def int) int {
	return intEnv("VIGIA_BAUD", def)
}

// CameraDevice returns the camera index from VIGIA_CAMERA.
func CameraDevice(def int) int {
	return intEnv("VIGIA_CAMERA", def)
}

// DataDir returns the data root from VIGIA_DATA_DIR.
func DataDir(def string) string {
	if d := os.Getenv("VIGIA_DATA_DIR"); d != "" {
		return d
	}
	return def
}

// HTTPPort returns the status server port from VIGIA_HTTP_PORT.
func HTTPPort(def string) string {
	if p := os.Getenv("VIGIA_HTTP_PORT"); p != "" {
		return p
	}
	return def
}

// DataPath joins a name under the data root.
func DataPath(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
