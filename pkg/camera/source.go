package camera

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigia/internal/log"
)

// ErrNotOpen is returned when the camera device cannot be opened.
var ErrNotOpen = errors.New("camera: device not open")

// Device is a frame-producing capture device. *gocv.VideoCapture satisfies it.
type Device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Frame is a published image. The Mat belongs to the caller and must be closed.
type Frame struct {
	Mat        gocv.Mat
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Close releases the frame's image.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Stats reports acquisition counters.
type Stats struct {
	Frames uint64 `json:"frames"` // Frames published
	Drops  uint64 `json:"drops"`  // Frames overwritten before anyone read them
	Seq    uint64 `json:"seq"`
	Halted bool   `json:"halted"`
}

// Source runs acquisition on its own goroutine and keeps a single slot with
// the newest frame. Consumers never block on it and never see history.
type Source struct {
	config Config
	dev    Device
	now    func() time.Time

	mu         sync.Mutex
	latest     gocv.Mat
	hasFrame   bool
	capturedAt time.Time
	seq        uint64
	readSeq    uint64
	frames     uint64
	drops      uint64
	halted     bool
	started    bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Open opens the capture device described by cfg.
func Open(cfg Config) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrNotOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d", ErrNotOpen, cfg.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	return NewSource(cfg, vc), nil
}

// NewSource wraps an already open device.
func NewSource(cfg Config, dev Device) *Source {
	return &Source{
		config: cfg,
		dev:    dev,
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Config returns the capture configuration.
func (s *Source) Config() Config { return s.config }

// Start launches acquisition. Calling it again has no effect.
func (s *Source) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

func (s *Source) run() {
	defer close(s.done)

	raw := gocv.NewMat()
	defer raw.Close()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if ok := s.dev.Read(&raw); !ok || raw.Empty() {
			log.Error("camera read failed, acquisition halted", "device", s.config.Device)
			s.mu.Lock()
			s.halted = true
			s.mu.Unlock()
			return
		}
		s.publish(s.rotate(raw))
	}
}

// rotate returns a new Mat in the mounting orientation.
func (s *Source) rotate(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch s.config.Rotation {
	case Rotate90CW:
		gocv.Rotate(src, &dst, gocv.Rotate90Clockwise)
	case Rotate90CCW:
		gocv.Rotate(src, &dst, gocv.Rotate90CounterClockwise)
	case Rotate180:
		gocv.Rotate(src, &dst, gocv.Rotate180Clockwise)
	default:
		src.CopyTo(&dst)
	}
	return dst
}

// publish replaces the slot content, releasing the previous frame.
func (s *Source) publish(m gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasFrame {
		if s.readSeq < s.seq {
			s.drops++
		}
		s.latest.Close()
	}
	s.latest = m
	s.hasFrame = true
	s.capturedAt = s.now()
	s.seq++
	s.frames++
}

// Latest returns a copy of the newest frame, or false before the first one.
// After a read failure it keeps returning the last good frame.
func (s *Source) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasFrame {
		return Frame{}, false
	}
	s.readSeq = s.seq
	return Frame{
		Mat:        s.latest.Clone(),
		Width:      s.latest.Cols(),
		Height:     s.latest.Rows(),
		Seq:        s.seq,
		CapturedAt: s.capturedAt,
	}, true
}

// Stats returns acquisition counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Frames: s.frames, Drops: s.drops, Seq: s.seq, Halted: s.halted}
}

// Stop halts acquisition, waits for it and releases the device and the held
// frame. Safe to call more than once and before Start.
func (s *Source) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		started := s.started
		s.started = true // a later Start must not launch acquisition
		s.mu.Unlock()
		if started {
			<-s.done
		}

		err = s.dev.Close()

		s.mu.Lock()
		if s.hasFrame {
			s.latest.Close()
			s.hasFrame = false
		}
		s.mu.Unlock()
	})
	return err
}
