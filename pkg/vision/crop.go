// Package vision holds the OpenCV-backed collaborators of the rig: bulletin
// photo cropping, snapshot writing and file embeddings.
package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// DefaultWhiteThreshold is the gray level above which a pixel counts as page background.
const DefaultWhiteThreshold = 240

// ErrEmptyImage is returned when an image cannot be read or a crop has no area.
var ErrEmptyImage = errors.New("vision: empty image")

// BulletinCropper isolates the portrait from a scanned bulletin: a size-based
// guess of the photo area, then trimmed to the non-white content inside it.
type BulletinCropper struct {
	WhiteThreshold float64
}

// NewBulletinCropper creates a cropper with the default background threshold.
func NewBulletinCropper() *BulletinCropper {
	return &BulletinCropper{WhiteThreshold: DefaultWhiteThreshold}
}

// InitialGuess returns the expected photo area for a bulletin of w×h pixels.
// The two common layouts have fixed boxes; anything else uses ratios.
func InitialGuess(w, h int) image.Rectangle {
	var r image.Rectangle
	switch {
	case w == 640 && h == 480:
		r = image.Rect(5, 60, 230, 360)
	case w == 680 && h == 528:
		r = image.Rect(10, 80, 400, 450)
	default:
		r = image.Rect(int(float64(w)*0.02), int(float64(h)*0.1), int(float64(w)*0.5), int(float64(h)*0.8))
	}
	return r.Intersect(image.Rect(0, 0, w, h))
}

// Refine shrinks box to the bounding box of non-background pixels inside it.
// A box with no content is returned unchanged.
func (c *BulletinCropper) Refine(img gocv.Mat, box image.Rectangle) image.Rectangle {
	if box.Empty() {
		return box
	}
	region := img.Region(box)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if region.Channels() == 1 {
		region.CopyTo(&gray)
	} else {
		gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	}

	content := gocv.NewMat()
	defer content.Close()
	gocv.Threshold(gray, &content, float32(c.WhiteThreshold), 255, gocv.ThresholdBinaryInv)

	points := gocv.NewMat()
	defer points.Close()
	gocv.FindNonZero(content, &points)
	if points.Empty() || points.Rows() == 0 {
		return box
	}

	bounds := contentBounds(points)
	return bounds.Add(box.Min)
}

// contentBounds is the half-open bounding box of a FindNonZero result.
func contentBounds(points gocv.Mat) image.Rectangle {
	first := points.GetVeciAt(0, 0)
	r := image.Rect(int(first[0]), int(first[1]), int(first[0])+1, int(first[1])+1)
	for i := 1; i < points.Rows(); i++ {
		p := points.GetVeciAt(i, 0)
		r = r.Union(image.Rect(int(p[0]), int(p[1]), int(p[0])+1, int(p[1])+1))
	}
	return r
}

// CropMat returns the refined photo region of a bulletin image as a new Mat.
func (c *BulletinCropper) CropMat(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}
	box := c.Refine(img, InitialGuess(img.Cols(), img.Rows()))
	if box.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}
	region := img.Region(box)
	defer region.Close()
	return region.Clone(), nil
}

// Crop reads the bulletin at src and writes the portrait to dst.
func (c *BulletinCropper) Crop(src, dst string) error {
	img := gocv.IMRead(src, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("read %s: %w", src, ErrEmptyImage)
	}

	out, err := c.CropMat(img)
	defer out.Close()
	if err != nil {
		return fmt.Errorf("crop %s: %w", src, err)
	}
	return writeImage(dst, out)
}

// writeImage writes img, creating the parent directory.
func writeImage(path string, img gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("write %s failed", path)
	}
	return nil
}
