package rig

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigia/pkg/camera"
	"github.com/teslashibe/go-vigia/pkg/capture"
	"github.com/teslashibe/go-vigia/pkg/debug"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/limbs"
	"github.com/teslashibe/go-vigia/pkg/tracking"
	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
	"github.com/teslashibe/go-vigia/pkg/web"
)

// Step runs one control iteration on the newest frame. It returns false when
// there was no new frame to process. Nothing in here is fatal: perception
// errors count as "no face", actuation and capture errors are logged.
func (a *App) Step(now time.Time) bool {
	frame, ok := a.frames.Latest()
	if !ok {
		return false
	}
	defer frame.Close()
	if frame.Seq == a.lastSeq {
		return false
	}
	a.lastSeq = frame.Seq
	if a.epoch.IsZero() {
		a.epoch = now
	}

	small, w, h := a.detectionInput(&frame)
	if small != &frame.Mat {
		defer small.Close()
	}

	dets, err := a.detector.Detect(*small)
	if err != nil {
		debug.Log("detection failed", "error", err)
		dets = nil
	}
	primary := detection.SelectPrimary(dets)

	var obs *tracking.Observation
	if primary != nil {
		cx, cy := primary.Center()
		o := tracking.NormalizedError(w, h, cx, cy)
		obs = &o
	}

	state := a.controller.Update(obs, now)
	cmds := a.coord.Coordinate(state, now.Sub(a.epoch).Seconds())
	// Send logs its own failures with a rate limit
	_ = a.link.Send(cmds)

	debug.TrackLog("tick",
		"mode", state.Mode,
		"err_pan", state.ErrPan,
		"err_tilt", state.ErrTilt,
		"target_pan", state.TargetPan,
		"target_tilt", state.TargetTilt,
		"cmds", limbs.Flatten(cmds))

	match := a.identify(primary)
	if obs != nil {
		a.maybeCapture(frame, primary.Box, *obs, w, h, now)
	}

	a.publish(now, state, cmds, primary, match)
	return true
}

// detectionInput returns the image detection runs on and its size.
// The returned Mat is frame.Mat itself when no resize is needed.
func (a *App) detectionInput(frame *camera.Frame) (*gocv.Mat, int, int) {
	w, h := a.detectW, a.detectH
	if w <= 0 || h <= 0 || (w == frame.Width && h == frame.Height) {
		return &frame.Mat, frame.Width, frame.Height
	}
	small := gocv.NewMat()
	gocv.Resize(frame.Mat, &small, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	return &small, w, h
}

// identify feeds the primary embedding to the matcher. A frame without a
// face clears the vote history.
func (a *App) identify(primary *detection.Detection) *identity.Match {
	if primary == nil {
		a.matcher.Clear()
		return a.displayed()
	}
	if a.sync == nil || len(primary.Embedding) == 0 {
		return a.displayed()
	}

	res, ok := a.matcher.Observe(primary.Embedding, a.sync.Database())
	if !ok {
		return a.displayed()
	}
	top, ok := res.Selection.Top()
	if !ok {
		return nil
	}
	if res.Changed {
		a.logger.Info("identity selection changed",
			"name", top.Record.Name,
			"year", top.Record.Year,
			"score", top.Score,
			"votes", res.Votes,
			"low_confidence", top.LowConfidence)
		if a.web != nil {
			a.web.PublishEvent("identity", res.Selection)
		}
	}
	return &top
}

func (a *App) displayed() *identity.Match {
	sel, ok := a.matcher.Selection()
	if !ok {
		return nil
	}
	top, ok := sel.Top()
	if !ok {
		return nil
	}
	return &top
}

// maybeCapture saves the full frame and the face crop when the subject is
// centered and the cooldown has elapsed. box is in detection pixels.
func (a *App) maybeCapture(frame camera.Frame, box detection.Box, obs tracking.Observation, w, h int, now time.Time) {
	if a.snapshots == nil || !a.throttle.Ready(obs.ErrPan, obs.ErrTilt, now) {
		return
	}
	a.throttle.Mark(now)

	rect := capture.ScaleBox(box.X0, box.Y0, box.X1, box.Y1, w, h, frame.Width, frame.Height)
	paths := capture.Names(a.config.CaptureDir, now, "")
	if err := a.snapshots.Write(frame.Mat, rect, paths); err != nil {
		a.logger.Warn("capture failed", "id", paths.ID, "error", err)
		return
	}

	a.mu.Lock()
	a.captures.Count++
	a.captures.Last = now
	a.captures.LastID = paths.ID
	a.mu.Unlock()
	a.logger.Info("capture saved", "id", paths.ID, "full", paths.Full, "face", paths.Face)
}

// publish stores the status snapshot and pushes it to websocket clients at
// most once per StatusInterval.
func (a *App) publish(now time.Time, state tracking.State, cmds []limbs.Command, primary *detection.Detection, match *identity.Match) {
	st := web.Status{
		Time:     now,
		Tracking: state,
		Commands: cmds,
		Identity: match,
		Votes:    a.matcher.HistoryLen(),
		Link:     a.link.Stats(),
	}
	cs := a.frames.Stats()
	st.Camera = web.CameraStatus{Frames: cs.Frames, Drops: cs.Drops, Halted: cs.Halted}
	if primary != nil {
		st.Face = &web.Face{
			Box:        [4]float64{primary.Box.X0, primary.Box.Y0, primary.Box.X1, primary.Box.Y1},
			Confidence: primary.Confidence,
			Age:        primary.Age,
		}
		if primary.Sex != detection.SexUnknown {
			st.Face.Sex = primary.Sex.String()
		}
	}

	a.mu.Lock()
	st.Captures = a.captures
	a.status = st
	a.mu.Unlock()

	if a.web != nil && now.Sub(a.lastPublish) >= a.config.StatusInterval {
		a.lastPublish = now
		a.web.Publish(st)
	}
}
