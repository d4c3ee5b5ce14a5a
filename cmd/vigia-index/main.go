// vigia-index refreshes the identity database from the bulletin site once and exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-vigia/internal/config"
	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/tracking/detection"
	"github.com/teslashibe/go-vigia/pkg/vision"
)

func main() {
	det := detection.DefaultConfig()

	dataDir := flag.String("data", config.DataDir(config.DefaultDataDir), "Data directory")
	listing := flag.String("listing-url", bulletin.DefaultListingURL, "Bulletin listing page")
	model := flag.String("model", det.ModelPath, "YuNet face detection model")
	recognizer := flag.String("recognizer", det.RecognizerPath, "SFace recognition model")
	ifStale := flag.Bool("if-stale", false, "Only refresh when the database is older than the freshness window")
	timeout := flag.Duration("timeout", 30*time.Minute, "Give up after this long")
	level := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)
	logger := log.Component("index")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	det.ModelPath, det.RecognizerPath = *model, *recognizer
	detector, err := detection.NewYuNet(det)
	if err != nil {
		logger.Error("detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()
	if !detector.HasEmbeddings() {
		logger.Error("a recognizer model is required to index bulletins")
		os.Exit(2)
	}

	cfg := bulletin.DefaultConfig(*dataDir)
	cfg.ListingURL = *listing
	mgr, err := bulletin.NewManager(cfg, bulletin.Deps{
		Fetcher:  bulletin.NewHTTPFetcher(cfg.UserAgent),
		Cropper:  vision.NewBulletinCropper(),
		Embedder: vision.FileEmbedder{Detector: detector},
		Store:    identity.NewStore(cfg.DBPath),
	})
	if err != nil {
		logger.Error("sync manager", "error", err)
		os.Exit(2)
	}
	if err := mgr.Load(ctx); err != nil {
		logger.Warn("starting from an empty database", "error", err)
	}

	if *ifStale && !mgr.Stale(time.Now()) {
		st := mgr.Status()
		logger.Info("database is fresh, nothing to do", "last_sync", st.LastSync, "records", st.Records)
		return
	}

	rep, err := mgr.Update(ctx)
	if err != nil {
		logger.Error("refresh failed", "error", err)
		os.Exit(1)
	}
	logger.Info("refresh complete",
		"discovered", rep.Discovered,
		"indexed", rep.Indexed,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"records", mgr.Database().Len(),
		"db", cfg.DBPath)
}
