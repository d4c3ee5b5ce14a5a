// Package limbs maps the tracked pan/tilt state onto the servo joints of every
// limb of the rig.
package limbs

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-vigia/pkg/tracking"
)

// JointsPerLimb is fixed by the servo board wiring.
const JointsPerLimb = 4

// Joint names in wire order.
var JointNames = [JointsPerLimb]string{"base", "shoulder", "vertical", "horizontal"}

// Source selects what drives a joint.
type Source string

const (
	SourcePan   Source = "pan"
	SourceTilt  Source = "tilt"
	SourceFixed Source = "fixed"
)

// Oscillation is a sinusoid over the shared idle phase (seconds).
// A zero amplitude disables it.
type Oscillation struct {
	Center    float64 `yaml:"center" json:"center"`
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Period    float64 `yaml:"period" json:"period"` // seconds
	Phase     float64 `yaml:"phase" json:"phase"`   // radians
}

// Active reports whether the oscillation moves at all.
func (o Oscillation) Active() bool {
	return o.Amplitude != 0 && o.Period > 0
}

// At evaluates the oscillation at phase seconds.
func (o Oscillation) At(phase float64) float64 {
	return o.Center + o.Amplitude*math.Sin(2*math.Pi*phase/o.Period+o.Phase)
}

// Joint is an affine function of one tracking axis: Scale*source + Offset.
// A mirrored joint uses Scale -1 and Offset 180.
type Joint struct {
	Source Source      `yaml:"source" json:"source"`
	Scale  float64     `yaml:"scale" json:"scale"`
	Offset float64     `yaml:"offset" json:"offset"`
	Idle   Oscillation `yaml:"idle" json:"idle"`
}

// Follow returns a joint driven by src one to one.
func Follow(src Source) Joint { return Joint{Source: src, Scale: 1} }

// Mirror returns a joint driven by src reflected about 90 degrees.
func Mirror(src Source) Joint { return Joint{Source: src, Scale: -1, Offset: 180} }

// Fixed returns a joint held at deg.
func Fixed(deg float64) Joint { return Joint{Source: SourceFixed, Offset: deg} }

// Value evaluates the joint against the smoothed pan/tilt position.
func (j Joint) Value(pan, tilt float64) float64 {
	switch j.Source {
	case SourcePan:
		return j.Scale*pan + j.Offset
	case SourceTilt:
		return j.Scale*tilt + j.Offset
	default:
		return j.Offset
	}
}

// Limb is one actuator group of four joints in wire order.
type Limb struct {
	Name   string               `yaml:"name" json:"name"`
	Joints [JointsPerLimb]Joint `yaml:"joints" json:"joints"`
}

// Command is one limb's joint angles, integer degrees in [0, 180].
type Command [JointsPerLimb]int

// Coordinator computes commands for every limb. The first limb is the
// primary one and always follows the tracking state.
type Coordinator struct {
	limbs []Limb
}

// NewCoordinator validates the limb set and creates a coordinator.
func NewCoordinator(limbs []Limb) (*Coordinator, error) {
	if len(limbs) == 0 {
		return nil, fmt.Errorf("limbs: at least one limb required")
	}
	for _, l := range limbs {
		for i, j := range l.Joints {
			switch j.Source {
			case SourcePan, SourceTilt, SourceFixed:
			default:
				return nil, fmt.Errorf("limbs: %s.%s: unknown source %q", l.Name, JointNames[i], j.Source)
			}
			if j.Idle.Amplitude != 0 && j.Idle.Period <= 0 {
				return nil, fmt.Errorf("limbs: %s.%s: idle period must be positive", l.Name, JointNames[i])
			}
		}
	}
	cp := make([]Limb, len(limbs))
	copy(cp, limbs)
	return &Coordinator{limbs: cp}, nil
}

// Channels returns the number of servo channels driven.
func (c *Coordinator) Channels() int { return len(c.limbs) * JointsPerLimb }

// Coordinate produces one command per limb from the current tracking state.
// While searching, dependent joints with an idle oscillation follow it
// instead of the tracking axes, so the limbs do not sweep in lockstep.
func (c *Coordinator) Coordinate(st tracking.State, phase float64) []Command {
	cmds := make([]Command, len(c.limbs))
	for i, l := range c.limbs {
		idle := i > 0 && st.Mode == tracking.Searching
		for k, j := range l.Joints {
			var v float64
			if idle && j.Idle.Active() {
				v = j.Idle.At(phase)
			} else {
				v = j.Value(st.CurrentPan, st.CurrentTilt)
			}
			cmds[i][k] = Quantize(v)
		}
	}
	return cmds
}

// Quantize clamps an angle to the servo range and rounds it to whole degrees.
func Quantize(deg float64) int {
	if math.IsNaN(deg) {
		return int(tracking.ServoMin)
	}
	deg = math.Max(tracking.ServoMin, math.Min(tracking.ServoMax, deg))
	return int(math.Round(deg))
}

// Flatten returns all joint angles in wire order.
func Flatten(cmds []Command) []int {
	out := make([]int, 0, len(cmds)*JointsPerLimb)
	for _, c := range cmds {
		out = append(out, c[:]...)
	}
	return out
}
