// Package robot drives the servo board of the rig over a serial line.
//
// The board accepts one ASCII line per update carrying every joint angle of
// every limb. Delivery is best-effort: nothing is acknowledged.
package robot

import (
	"io"

	"go.bug.st/serial"

	"github.com/teslashibe/go-vigia/pkg/limbs"
)

// Actuator accepts one full command vector per control tick.
// Use this minimal interface when only actuation is needed (e.g., the control loop).
type Actuator interface {
	Send(cmds []limbs.Command) error
}

// Port is the minimal interface needed from a serial port.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.Writer
	io.Closer
}

// Opener opens a serial port with the given mode.
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial device.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Ensure Link implements Actuator
var _ Actuator = (*Link)(nil)
