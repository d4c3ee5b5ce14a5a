package robot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/teslashibe/go-vigia/internal/config"
	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/debug"
	"github.com/teslashibe/go-vigia/pkg/limbs"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("robot: link closed")

// ErrTooManyChannels is returned by Send when cmds exceed the board's servo outputs.
var ErrTooManyChannels = errors.New("robot: more joints than board channels")

// errorLogInterval rate-limits write error logs.
const errorLogInterval = 5 * time.Second

// Config holds serial link settings.
type Config struct {
	Port     string        // Device path; empty runs in simulation mode
	BaudRate int           // 8N1 at this rate
	Settle   time.Duration // Wait after open while the board resets
	Mode     int           // Trailing protocol flag
	Channels int           // Servo outputs on the board; 0 means unchecked
}

// DefaultConfig returns the settings of the rig's servo board.
func DefaultConfig() Config {
	return Config{
		Port:     config.DefaultSerialPort,
		BaudRate: config.DefaultBaudRate,
		Settle:   2 * time.Second,
		Mode:     ModeTracking,
		Channels: 16,
	}
}

// Stats holds link diagnostics.
type Stats struct {
	Port      string `json:"port"`
	Simulated bool   `json:"simulated"`
	Sent      uint64 `json:"sent"`
	Errors    uint64 `json:"errors"`
	LastLine  string `json:"last_line"`
}

// Link is the serial actuator link. When the device cannot be opened it runs
// in simulation mode: Send records the line and transmits nothing.
type Link struct {
	mu     sync.Mutex
	config Config
	port   Port
	closed bool

	sent          uint64
	errorCount    uint64
	lastErrorTime time.Time
	lastLine      string
}

// Open connects to the board. Failure to open is not an error: the link falls
// back to simulation mode and says so once.
func Open(cfg Config, open Opener) *Link {
	l := &Link{config: cfg}
	if cfg.Port == "" {
		log.Info("serial link in simulation mode", "reason", "no port configured")
		return l
	}
	if open == nil {
		open = OpenSerial
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := open(cfg.Port, mode)
	if err != nil {
		log.Warn("serial link in simulation mode", "port", cfg.Port, "error", err)
		return l
	}
	if cfg.Settle > 0 {
		time.Sleep(cfg.Settle)
	}
	log.Info("serial link open", "port", cfg.Port, "baud", cfg.BaudRate)
	l.port = port
	return l
}

// Simulated reports whether the link transmits nothing.
func (l *Link) Simulated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port == nil
}

// Send encodes cmds and writes one line. Write errors are counted, logged at
// most every few seconds and returned; the caller is expected to carry on.
func (l *Link) Send(cmds []limbs.Command) error {
	if n := len(cmds) * limbs.JointsPerLimb; l.config.Channels > 0 && n > l.config.Channels {
		return fmt.Errorf("%w: %d > %d", ErrTooManyChannels, n, l.config.Channels)
	}
	line := Encode(cmds, l.config.Mode)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.lastLine = line
	if l.port == nil {
		return nil
	}

	if _, err := l.port.Write([]byte(line)); err != nil {
		l.errorCount++
		if l.lastErrorTime.IsZero() || time.Since(l.lastErrorTime) > errorLogInterval {
			log.Warn("serial write failed", "port", l.config.Port, "error", err, "total_errors", l.errorCount)
			l.lastErrorTime = time.Now()
		}
		return fmt.Errorf("serial write: %w", err)
	}
	l.sent++

	// Heartbeat every ~5 seconds at camera rate
	if l.sent%150 == 0 {
		debug.Log("serial link heartbeat", "sent", l.sent, "errors", l.errorCount)
	}
	return nil
}

// Channels returns the number of servo outputs on the board (0 if unknown).
func (l *Link) Channels() int { return l.config.Channels }

// Stats returns link diagnostics.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Port:      l.config.Port,
		Simulated: l.port == nil,
		Sent:      l.sent,
		Errors:    l.errorCount,
		LastLine:  l.lastLine,
	}
}

// Close releases the port. Safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.port == nil {
		return nil
	}
	return l.port.Close()
}
