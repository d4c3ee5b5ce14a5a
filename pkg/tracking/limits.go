// Package tracking converts face detections into smoothed pan/tilt targets.
// This file defines the servo limits of the rig.
package tracking

// Hobby servos accept 0-180 degrees. The per-axis limits below keep the
// camera mount clear of the frame (values from the bring-up rig).
const (
	ServoMin = 0.0
	ServoMax = 180.0

	DefaultPanMin  = 15.0
	DefaultPanMax  = 165.0
	DefaultTiltMin = 10.0
	DefaultTiltMax = 140.0
)
