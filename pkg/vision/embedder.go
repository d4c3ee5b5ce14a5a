package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
)

// FileEmbedder computes the identity embedding of the primary face in an image file.
type FileEmbedder struct {
	Detector detection.Detector
}

// Embed reads path and returns the primary face embedding, or detection.ErrNoFace.
func (e FileEmbedder) Embed(path string) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("read %s: %w", path, ErrEmptyImage)
	}
	return detection.Embed(e.Detector, img)
}
