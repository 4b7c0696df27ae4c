package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vinpix/vinpix/internal/bus"
	"github.com/vinpix/vinpix/internal/config"
	"github.com/vinpix/vinpix/internal/download"
	"github.com/vinpix/vinpix/internal/imaging"
	"github.com/vinpix/vinpix/internal/progress"
	"github.com/vinpix/vinpix/internal/resolver"
	"github.com/vinpix/vinpix/internal/salvage"
	"github.com/vinpix/vinpix/internal/storage"
)

// Stores exposes the repositories the HTTP layer also needs.
type Stores struct {
	Settings storage.SettingsRepository
	Searches storage.SearchRepository
}

// Build wires the whole pipeline from configuration: adapters, resolver,
// imaging, dispatcher, persistence. The returned cleanup closes the
// database; call it on shutdown.
func Build(cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*VehicleService, *Stores, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	fs, err := storage.NewFileSystem(cfg.Storage.DownloadDir)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("creating download sink: %w", err)
	}

	adapterTimeout := time.Duration(cfg.Search.AdapterTimeoutSeconds) * time.Second
	poller := salvage.TokenPoller{
		Interval:    time.Duration(cfg.Search.TokenPollSeconds) * time.Second,
		MaxAttempts: cfg.Search.TokenPollAttempts,
	}

	copart := salvage.NewCopart(cfg.Sites.CopartURL, adapterTimeout, logger)
	iaai := salvage.NewIAAI(cfg.Sites.IaaiURL, cfg.Sites.TileURL, cfg.Sites.SpincarURL, adapterTimeout, logger)
	poctra := salvage.NewPoctra(cfg.Sites.PoctraURL, adapterTimeout, logger)
	bidfax := salvage.NewBidfax(cfg.Sites.BidfaxURL, adapterTimeout, &salvage.HTTPChallengeBrowser{}, poller, logger)

	// Priority order: primary yards first, archives after.
	adapters := []salvage.Adapter{copart, iaai, poctra, bidfax}
	res := resolver.New(adapters, adapterTimeout, b, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.Tiles.RequestsPerSecond), cfg.Tiles.Burst)
	stitcher := imaging.NewStitcher(cfg.Tiles.Concurrency, limiter, logger)
	trimmer := imaging.NewTrimmer()
	converter := imaging.NewConverter(cfg.Pano.FaceSize, logger)

	dispatcher := download.NewDispatcher(fs, logger)
	tracker := progress.NewTracker(b)

	stores := &Stores{
		Settings: storage.NewSettingsRepository(db),
		Searches: storage.NewSearchRepository(db),
	}

	svc := NewVehicleService(
		res, adapters, iaai,
		stitcher, trimmer, converter,
		dispatcher, tracker, b,
		stores.Settings, stores.Searches,
		logger,
	)
	return svc, stores, cleanup, nil
}
