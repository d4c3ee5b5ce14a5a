package tracking

// Observation is the per-frame input of the controller: where the primary face
// sits relative to the frame center, normalized to [-1, 1] by half the frame size.
// Positive ErrPan means the face is left of center, positive ErrTilt above it.
type Observation struct {
	ErrPan  float64
	ErrTilt float64
}

// NormalizedError converts a detection center (pixels) into an Observation.
// Centers outside the frame are clamped so the error stays within [-1, 1].
func NormalizedError(frameW, frameH int, cx, cy float64) Observation {
	if frameW <= 0 || frameH <= 0 {
		return Observation{}
	}
	halfW := float64(frameW) / 2
	halfH := float64(frameH) / 2
	return Observation{
		ErrPan:  clamp((halfW-cx)/halfW, -1, 1),
		ErrTilt: clamp((halfH-cy)/halfH, -1, 1),
	}
}
