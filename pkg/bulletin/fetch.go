package bulletin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/teslashibe/go-vigia/internal/httpc"
)

// MaxListingBytes bounds the listing page read into memory.
const MaxListingBytes = 16 << 20

// Fetcher retrieves the listing page and bulletin images.
type Fetcher interface {
	Listing(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url, dst string) error
}

// HTTPFetcher fetches over HTTP with the shared client.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher creates a fetcher using httpc.Client.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{Client: httpc.Client, UserAgent: userAgent}
}

// Listing returns the page body as text.
func (f *HTTPFetcher) Listing(ctx context.Context, url string) (string, error) {
	body, err := httpc.Get(ctx, f.Client, url, f.UserAgent)
	if err != nil {
		return "", fmt.Errorf("fetch listing: %w", err)
	}
	defer body.Close()

	b, err := io.ReadAll(io.LimitReader(body, MaxListingBytes))
	if err != nil {
		return "", fmt.Errorf("read listing: %w", err)
	}
	return string(b), nil
}

// Download stores url at dst. The file appears only once fully written.
func (f *HTTPFetcher) Download(ctx context.Context, url, dst string) error {
	body, err := httpc.Get(ctx, f.Client, url, f.UserAgent)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	name := tmp.Name()

	_, err = io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, dst)
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return nil
}
