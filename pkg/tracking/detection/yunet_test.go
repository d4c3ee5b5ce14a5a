package detection

import (
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gocv.io/x/gocv"
)

// TestYuNetNew tests detector initialization
func TestYuNetNew(t *testing.T) {
	modelPath := findModelPath("face_detection_yunet.onnx")
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = modelPath
	cfg.RecognizerPath = ""

	detector, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	if detector.HasEmbeddings() {
		t.Error("Expected no embeddings without recognizer model")
	}
}

// TestYuNetNewInvalidPath tests error handling for missing models
func TestYuNetNewInvalidPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid model path")
	}

	modelPath := findModelPath("face_detection_yunet.onnx")
	if modelPath == "" {
		return
	}
	cfg.ModelPath = modelPath
	cfg.RecognizerPath = "/nonexistent/sface.onnx"
	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid recognizer path")
	}
}

// TestYuNetDetect_EmptyImage tests detection on an empty Mat
func TestYuNetDetect_EmptyImage(t *testing.T) {
	detector := newTestDetector(t)
	defer detector.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := detector.Detect(empty); err == nil {
		t.Error("Expected error for empty image")
	}
}

// TestYuNetDetect_SolidImage tests detection on solid color image (no faces)
func TestYuNetDetect_SolidImage(t *testing.T) {
	detector := newTestDetector(t)
	defer detector.Close()

	img := solidMat(320, 240, color.RGBA{0, 0, 255, 0})
	defer img.Close()

	detections, err := detector.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) > 0 {
		t.Errorf("Expected no detections in solid color image, got %d", len(detections))
	}
}

// TestYuNetClose tests idempotent resource cleanup
func TestYuNetClose(t *testing.T) {
	detector := newTestDetector(t)

	if err := detector.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := detector.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	img := solidMat(64, 64, color.RGBA{})
	defer img.Close()
	if _, err := detector.Detect(img); err == nil {
		t.Error("Expected error detecting with closed detector")
	}
}

// TestYuNetConcurrency tests thread safety
func TestYuNetConcurrency(t *testing.T) {
	detector := newTestDetector(t)
	defer detector.Close()

	img := solidMat(320, 240, color.RGBA{100, 100, 100, 0})
	defer img.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := detector.Detect(img); err != nil {
				t.Errorf("Concurrent detection failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

// Helper functions

func newTestDetector(t *testing.T) *YuNetDetector {
	t.Helper()
	modelPath := findModelPath("face_detection_yunet.onnx")
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = modelPath
	cfg.RecognizerPath = findModelPath("face_recognition_sface.onnx")

	detector, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	return detector
}

func findModelPath(name string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	// Walk up to find models directory
	for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
		modelPath := filepath.Join(dir, "models", name)
		if _, err := os.Stat(modelPath); err == nil {
			return modelPath
		}
	}
	return ""
}

func solidMat(width, height int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		height, width, gocv.MatTypeCV8UC3,
	)
}
