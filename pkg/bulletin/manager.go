package bulletin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/identity"
)

// ErrInFlight is returned when a refresh is already running.
var ErrInFlight = errors.New("bulletin: refresh already in flight")

// Cropper extracts the portrait from a full bulletin image.
type Cropper interface {
	Crop(src, dst string) error
}

// Embedder computes the face embedding of an image file.
type Embedder interface {
	Embed(path string) ([]float32, error)
}

// Persister loads and atomically replaces the identity database file.
// *identity.Store implements it.
type Persister interface {
	Load(ctx context.Context) (*identity.Database, error)
	Save(ctx context.Context, d *identity.Database) error
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Fetcher  Fetcher
	Cropper  Cropper
	Embedder Embedder
	Store    Persister
}

// Report summarizes one refresh run.
type Report struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Discovered int       `json:"discovered"`
	Skipped    int       `json:"skipped"`
	Downloaded int       `json:"downloaded"`
	Cropped    int       `json:"cropped"`
	Indexed    int       `json:"indexed"`
	Failed     int       `json:"failed"`
	Err        string    `json:"error,omitempty"`
}

// Status is the externally visible sync state.
type Status struct {
	LastSync   time.Time `json:"last_sync"`
	Stale      bool      `json:"stale"`
	InFlight   bool      `json:"in_flight"`
	Records    int       `json:"records"`
	Generation uint64    `json:"generation"`
	LastRun    *Report   `json:"last_run,omitempty"`
}

// Manager owns the live identity database and refreshes it from the bulletin site.
// Readers call Database on every frame; the pointer is swapped only after a
// refresh has been persisted.
type Manager struct {
	cfg    Config
	deps   Deps
	layout Layout
	logger *slog.Logger
	now    func() time.Time

	db       atomic.Pointer[identity.Database]
	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu       sync.Mutex
	lastSync time.Time
	lastRun  *Report
}

// NewManager validates the configuration and creates a manager with an empty database.
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Fetcher == nil || deps.Cropper == nil || deps.Embedder == nil || deps.Store == nil {
		return nil, fmt.Errorf("bulletin: fetcher, cropper, embedder and store are required")
	}
	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		layout: Layout{DataDir: cfg.DataDir},
		logger: log.Component("bulletin"),
		now:    time.Now,
	}
	m.db.Store(identity.NewDatabase(nil))
	return m, nil
}

// Load reads the persisted database and sync marker. Missing files are not errors.
func (m *Manager) Load(ctx context.Context) error {
	db, err := m.deps.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("bulletin: load database: %w", err)
	}
	last, err := ReadMarker(m.cfg.MarkerPath)
	if err != nil {
		// An unreadable marker only forces a refresh.
		m.logger.Warn("ignoring sync marker", "path", m.cfg.MarkerPath, "error", err)
		last = time.Time{}
	}

	m.db.Store(db)
	m.mu.Lock()
	m.lastSync = last
	m.mu.Unlock()

	m.logger.Info("identity database loaded", "records", db.Len(), "last_sync", last)
	return nil
}

// Database returns the current snapshot. It never blocks on a refresh.
func (m *Manager) Database() *identity.Database {
	return m.db.Load()
}

// Stale reports whether the last successful sync is older than the freshness window.
func (m *Manager) Stale(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync.IsZero() || now.Sub(m.lastSync) > m.cfg.Freshness
}

// CheckAndUpdate starts a background refresh when the database is stale.
// It returns true if a refresh was started.
func (m *Manager) CheckAndUpdate(ctx context.Context) bool {
	if !m.Stale(m.now()) {
		return false
	}
	return m.Trigger(ctx)
}

// Trigger starts a background refresh regardless of freshness.
// It returns false if one is already in flight.
func (m *Manager) Trigger(ctx context.Context) bool {
	if !m.inFlight.CompareAndSwap(false, true) {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.inFlight.Store(false)
		_, _ = m.run(ctx)
	}()
	return true
}

// Update runs a refresh synchronously.
func (m *Manager) Update(ctx context.Context) (Report, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return Report{}, ErrInFlight
	}
	defer m.inFlight.Store(false)
	return m.run(ctx)
}

// Run checks staleness now and then every CheckInterval until ctx is done.
// In-flight refreshes are waited for before returning.
func (m *Manager) Run(ctx context.Context) error {
	defer m.Wait()

	m.CheckAndUpdate(ctx)
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckAndUpdate(ctx)
		}
	}
}

// Wait blocks until background refreshes have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// InFlight reports whether a refresh is running.
func (m *Manager) InFlight() bool {
	return m.inFlight.Load()
}

// Status returns the current sync state.
func (m *Manager) Status() Status {
	db := m.db.Load()
	stale := m.Stale(m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		LastSync:   m.lastSync,
		Stale:      stale,
		InFlight:   m.inFlight.Load(),
		Records:    db.Len(),
		Generation: db.Generation(),
	}
	if m.lastRun != nil {
		r := *m.lastRun
		st.LastRun = &r
	}
	return st
}

// run executes one refresh and records its report.
func (m *Manager) run(ctx context.Context) (Report, error) {
	rep := Report{ID: uuid.NewString()[:8], Started: m.now()}
	logger := m.logger.With("run", rep.ID)
	logger.Info("bulletin refresh started")

	err := m.refresh(ctx, logger, &rep)
	rep.Finished = m.now()
	if err != nil {
		rep.Err = err.Error()
		logger.Error("bulletin refresh failed", "error", err, "indexed", rep.Indexed, "failed", rep.Failed)
	} else {
		logger.Info("bulletin refresh finished",
			"discovered", rep.Discovered,
			"skipped", rep.Skipped,
			"indexed", rep.Indexed,
			"failed", rep.Failed,
			"records", m.db.Load().Len(),
			"took", rep.Finished.Sub(rep.Started))
	}

	m.mu.Lock()
	m.lastRun = &rep
	m.mu.Unlock()
	return rep, err
}

// refresh discovers, downloads, crops and embeds new bulletins, persists the
// grown database, swaps it in and then writes the marker. Any error before the
// save leaves the file, the live snapshot and the marker as they were.
func (m *Manager) refresh(ctx context.Context, logger *slog.Logger, rep *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bulletin: refresh panicked: %v", r)
		}
	}()

	linkRe, yearRe, err := m.cfg.patterns()
	if err != nil {
		return err
	}

	html, err := m.deps.Fetcher.Listing(ctx, m.cfg.ListingURL)
	if err != nil {
		return err
	}
	urls := ExtractURLs(html, linkRe, m.cfg.BaseURL)
	rep.Discovered = len(urls)
	logger.Info("bulletins discovered", "count", len(urls))

	current := m.db.Load()
	var added []identity.Record
	// Links from different month folders can share a local path; the first one wins.
	claimed := make(map[string]string)
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		year := YearOf(u, yearRe)
		file := FileName(u)
		full := m.layout.BulletinPath(year, file)
		crop := m.layout.CropPath(year, file)

		if current.Has(full) {
			rep.Skipped++
			continue
		}
		if prev, dup := claimed[full]; dup {
			rep.Skipped++
			logger.Warn("bulletin path already claimed this run", "url", u, "by", prev, "path", full)
			continue
		}
		claimed[full] = u

		emb, err := m.index(ctx, u, full, crop, rep)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rep.Failed++
			logger.Warn("skipping bulletin", "url", u, "error", err)
			continue
		}
		added = append(added, identity.Record{
			Name:         DisplayName(file),
			Year:         year,
			OriginalPath: full,
			Embedding:    emb,
		})
		rep.Indexed++
	}

	if len(added) > 0 {
		next := current.With(added)
		if err := m.deps.Store.Save(ctx, next); err != nil {
			return fmt.Errorf("bulletin: persist: %w", err)
		}
		m.db.Store(next)
	}

	now := m.now()
	if err := WriteMarker(m.cfg.MarkerPath, now); err != nil {
		return fmt.Errorf("bulletin: %w", err)
	}
	m.mu.Lock()
	m.lastSync = now
	m.mu.Unlock()
	return nil
}

// index makes sure the full image and its crop exist on disk and embeds the crop.
func (m *Manager) index(ctx context.Context, url, full, crop string, rep *Report) ([]float32, error) {
	if !exists(full) {
		if err := m.deps.Fetcher.Download(ctx, url, full); err != nil {
			return nil, err
		}
		rep.Downloaded++
	}
	if !exists(crop) {
		if err := m.deps.Cropper.Crop(full, crop); err != nil {
			return nil, fmt.Errorf("crop: %w", err)
		}
		rep.Cropped++
	}
	emb, err := m.deps.Embedder.Embed(crop)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(emb) == 0 {
		return nil, fmt.Errorf("embed: empty embedding")
	}
	return emb, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
