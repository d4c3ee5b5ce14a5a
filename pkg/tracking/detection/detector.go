// Package detection provides face detection and identity embeddings using computer vision
package detection

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrNoFace is returned by Embed when the image contains no detectable face.
var ErrNoFace = errors.New("detection: no face found")

// Sex is the optional sex attribute of a detection.
type Sex int

const (
	SexUnknown Sex = iota
	SexFemale
	SexMale
)

func (s Sex) String() string {
	switch s {
	case SexFemale:
		return "F"
	case SexMale:
		return "M"
	default:
		return ""
	}
}

// Box is a bounding box in pixels of the image passed to Detect.
type Box struct {
	X0, Y0 float64
	X1, Y1 float64
}

// Center returns the center point of the box
func (b Box) Center() (x, y float64) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

// Area returns the area of the box (zero for degenerate boxes)
func (b Box) Area() float64 {
	w, h := b.X1-b.X0, b.Y1-b.Y0
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection represents a detected face
type Detection struct {
	Box        Box
	Embedding  []float32 // L2-normalized identity vector, nil when not computed
	Age        *int      // nil when the backend does not estimate age
	Sex        Sex
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.Box.Center()
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.Box.Area()
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the image. The image is not retained.
	Detect(img gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to YuNet ONNX model
	RecognizerPath   string  // Path to SFace ONNX model; empty disables embeddings
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	NMSThresh        float64
	InputWidth       int // Initial model input width
	InputHeight      int // Initial model input height
}

// DefaultConfig returns production defaults for YuNet + SFace
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		RecognizerPath:   "models/face_recognition_sface.onnx",
		ConfidenceThresh: 0.6,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectPrimary picks the detection with the largest box.
// Ties keep the earliest detection in the returned order.
func SelectPrimary(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	best := &dets[0]
	for i := 1; i < len(dets); i++ {
		if dets[i].Area() > best.Area() {
			best = &dets[i]
		}
	}
	return best
}

// Embed detects faces in img and returns the embedding of the primary one.
func Embed(d Detector, img gocv.Mat) ([]float32, error) {
	dets, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	primary := SelectPrimary(dets)
	if primary == nil || len(primary.Embedding) == 0 {
		return nil, ErrNoFace
	}
	return primary.Embedding, nil
}
