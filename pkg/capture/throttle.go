// Package capture decides when a centered subject is worth a snapshot and
// where the snapshot files go.
package capture

import (
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for the snapshot throttle. The tolerance is normalized error, looser
// than the tracking deadzones so a settled subject qualifies.
const (
	DefaultTolerance = 0.25
	DefaultCooldown  = 12 * time.Second
)

// Throttle gates snapshot attempts on centering and a cooldown.
type Throttle struct {
	mu        sync.Mutex
	tolerance float64
	cooldown  time.Duration
	last      time.Time
}

// NewThrottle creates a throttle. A zero cooldown allows every centered frame.
func NewThrottle(tolerance float64, cooldown time.Duration) *Throttle {
	return &Throttle{tolerance: tolerance, cooldown: cooldown}
}

// Ready reports whether both errors are within tolerance and the cooldown has
// elapsed since the last attempt.
func (t *Throttle) Ready(errPan, errTilt float64, now time.Time) bool {
	if math.Abs(errPan) > t.tolerance || math.Abs(errTilt) > t.tolerance {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last.IsZero() || now.Sub(t.last) >= t.cooldown
}

// Mark restarts the cooldown. It is called for every attempt, failed or not,
// so a failing disk is not hammered at frame rate.
func (t *Throttle) Mark(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = now
}

// Rect is an integer pixel rectangle, Min inclusive and Max exclusive.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// ScaleBox maps a box detected on a fromW×fromH frame onto a toW×toH frame
// and clips it to the target bounds.
func ScaleBox(x0, y0, x1, y1 float64, fromW, fromH, toW, toH int) Rect {
	if fromW <= 0 || fromH <= 0 {
		return Rect{}
	}
	sx := float64(toW) / float64(fromW)
	sy := float64(toH) / float64(fromH)

	r := Rect{
		X0: clampInt(int(math.Floor(x0*sx)), 0, toW),
		Y0: clampInt(int(math.Floor(y0*sy)), 0, toH),
		X1: clampInt(int(math.Ceil(x1*sx)), 0, toW),
		Y1: clampInt(int(math.Ceil(y1*sy)), 0, toH),
	}
	if r.Empty() {
		return Rect{}
	}
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Paths holds the two files written per capture.
type Paths struct {
	ID   string
	Full string
	Face string
}

// Names builds capture file paths in dir from the capture time and id.
// An empty id gets a fresh random one.
func Names(dir string, at time.Time, id string) Paths {
	if id == "" {
		id = uuid.NewString()[:8]
	}
	stamp := at.Format("20060102_150405.000")
	return Paths{
		ID:   id,
		Full: filepath.Join(dir, "capture_"+stamp+"_"+id+"_full.jpg"),
		Face: filepath.Join(dir, "capture_"+stamp+"_"+id+"_face.jpg"),
	}
}
