package bulletin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReadMarker returns the last successful sync time. A missing marker is the zero time.
func ReadMarker(path string) (time.Time, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read marker: %w", err)
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(b)))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse marker: %w", err)
	}
	return t, nil
}

// WriteMarker records t via a temp file renamed over the marker.
func WriteMarker(path string, t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create marker: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(t.UTC().Format(time.RFC3339) + "\n"); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace marker: %w", err)
	}
	return nil
}
