package tracking

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting the rig.
type TuningParams struct {
	// Proportional control
	PanGain      float64 `json:"pan_gain"`      // Sign flips the axis
	TiltGain     float64 `json:"tilt_gain"`     // Sign flips the axis
	PanDeadzone  float64 `json:"pan_deadzone"`  // Normalized (0-1)
	TiltDeadzone float64 `json:"tilt_deadzone"` // Normalized (0-1)
	PanMaxStep   float64 `json:"pan_max_step"`  // Degrees per tick
	TiltMaxStep  float64 `json:"tilt_max_step"` // Degrees per tick

	// Smoothing
	TrackingSmoothing float64 `json:"tracking_smoothing"` // 0.1=smooth, 0.3=responsive
	SearchSmoothing   float64 `json:"search_smoothing"`
	ResponseScale     float64 `json:"response_scale"`
}

// GetTuningParams returns current tuning parameters from the controller.
func (c *Controller) GetTuningParams() TuningParams {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return TuningParams{
		PanGain:           c.config.Pan.Gain,
		TiltGain:          c.config.Tilt.Gain,
		PanDeadzone:       c.config.Pan.Deadzone,
		TiltDeadzone:      c.config.Tilt.Deadzone,
		PanMaxStep:        c.config.Pan.MaxStep,
		TiltMaxStep:       c.config.Tilt.MaxStep,
		TrackingSmoothing: c.config.TrackingSmoothing,
		SearchSmoothing:   c.config.SearchSmoothing,
		ResponseScale:     c.config.ResponseScale,
	}
}

// TuningUpdate is a partial change to TuningParams. Nil fields are left
// alone, so an explicit zero (a zero deadzone, say) can be applied.
type TuningUpdate struct {
	PanGain      *float64 `json:"pan_gain,omitempty"`
	TiltGain     *float64 `json:"tilt_gain,omitempty"`
	PanDeadzone  *float64 `json:"pan_deadzone,omitempty"`
	TiltDeadzone *float64 `json:"tilt_deadzone,omitempty"`
	PanMaxStep   *float64 `json:"pan_max_step,omitempty"`
	TiltMaxStep  *float64 `json:"tilt_max_step,omitempty"`

	TrackingSmoothing *float64 `json:"tracking_smoothing,omitempty"`
	SearchSmoothing   *float64 `json:"search_smoothing,omitempty"`
	ResponseScale     *float64 `json:"response_scale,omitempty"`
}

// SetTuningParams applies the set fields of u at runtime and clamps them to
// safe ranges. A negative gain inverts a mis-mounted axis; a zero gain
// freezes it. Non-positive max steps are ignored.
func (c *Controller) SetTuningParams(u TuningUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.PanGain != nil {
		c.config.Pan.Gain = *u.PanGain
	}
	if u.TiltGain != nil {
		c.config.Tilt.Gain = *u.TiltGain
	}
	if u.PanDeadzone != nil {
		c.config.Pan.Deadzone = clamp(*u.PanDeadzone, 0, 0.9)
	}
	if u.TiltDeadzone != nil {
		c.config.Tilt.Deadzone = clamp(*u.TiltDeadzone, 0, 0.9)
	}
	if u.PanMaxStep != nil && *u.PanMaxStep > 0 {
		c.config.Pan.MaxStep = *u.PanMaxStep
	}
	if u.TiltMaxStep != nil && *u.TiltMaxStep > 0 {
		c.config.Tilt.MaxStep = *u.TiltMaxStep
	}
	if u.TrackingSmoothing != nil {
		c.config.TrackingSmoothing = clamp(*u.TrackingSmoothing, 0.01, 0.99)
	}
	if u.SearchSmoothing != nil {
		c.config.SearchSmoothing = clamp(*u.SearchSmoothing, 0.01, 0.99)
	}
	if u.ResponseScale != nil {
		c.config.ResponseScale = clamp(*u.ResponseScale, 0.05, 4.0)
	}
}
