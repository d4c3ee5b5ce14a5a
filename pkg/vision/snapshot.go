package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigia/pkg/capture"
)

// SnapshotWriter persists capture events as a full frame and a face crop.
type SnapshotWriter struct{}

// Write saves frame to paths.Full and the box region to paths.Face.
// The full frame is written even when the crop turns out empty.
func (SnapshotWriter) Write(frame gocv.Mat, box capture.Rect, paths capture.Paths) error {
	if frame.Empty() {
		return fmt.Errorf("snapshot: %w", ErrEmptyImage)
	}
	if err := writeImage(paths.Full, frame); err != nil {
		return fmt.Errorf("snapshot full frame: %w", err)
	}

	r := image.Rect(box.X0, box.Y0, box.X1, box.Y1).Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if r.Empty() {
		return fmt.Errorf("snapshot face crop: %w", ErrEmptyImage)
	}
	face := frame.Region(r)
	defer face.Close()
	if err := writeImage(paths.Face, face); err != nil {
		return fmt.Errorf("snapshot face crop: %w", err)
	}
	return nil
}
