package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/teslashibe/go-vigia/pkg/debug"
	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection and, when a
// recognizer model is configured, FaceRecognizerSF for identity embeddings.
type YuNetDetector struct {
	detector   gocv.FaceDetectorYN
	recognizer *gocv.FaceRecognizerSF
	config     Config
	mu         sync.Mutex // Protects inference
	closed     bool
}

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.RecognizerPath != "" {
		if _, err := os.Stat(cfg.RecognizerPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("recognizer model not found: %s", cfg.RecognizerPath)
		}
	}

	// Input size is updated per image
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	d := &YuNetDetector{detector: detector, config: cfg}
	if cfg.RecognizerPath != "" {
		rec := gocv.NewFaceRecognizerSF(cfg.RecognizerPath, "")
		d.recognizer = &rec
	}
	return d, nil
}

// HasEmbeddings reports whether detections carry identity embeddings.
func (d *YuNetDetector) HasEmbeddings() bool {
	return d.recognizer != nil
}

// Detect finds faces in img
func (d *YuNetDetector) Detect(img gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector closed")
	}
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(img, &faces)

	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		// YuNet row (15 columns):
		// 0-3: x, y, w, h (pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))

		det := Detection{
			Box:        Box{X0: x, Y0: y, X1: x + w, Y1: y + h},
			Confidence: float64(faces.GetFloatAt(r, 14)),
		}
		if d.recognizer != nil {
			emb, err := d.embed(img, faces.RowRange(r, r+1))
			if err != nil {
				debug.TrackLog("embedding failed", "row", r, "error", err)
			} else {
				det.Embedding = emb
			}
		}
		detections = append(detections, det)
	}

	if len(detections) > 0 {
		debug.TrackLog("YuNet found faces", "count", len(detections))
	}
	return detections, nil
}

// embed aligns the face row and extracts a normalized SFace feature.
func (d *YuNetDetector) embed(img gocv.Mat, faceRow gocv.Mat) ([]float32, error) {
	defer faceRow.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	d.recognizer.AlignCrop(img, faceRow, &aligned)
	if aligned.Empty() {
		return nil, errors.New("align crop produced empty image")
	}

	feature := gocv.NewMat()
	defer feature.Close()
	d.recognizer.Feature(aligned, &feature)

	data, err := feature.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read feature: %w", err)
	}
	out := make([]float32, len(data))
	copy(out, data)
	return normalize(out), nil
}

// normalize scales v to unit length in place. Zero vectors are returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.detector.Close()
	if d.recognizer != nil {
		d.recognizer.Close()
	}
	return nil
}
