// Package service contains the core business logic: resolving a VIN to a
// listing through the site fallback chain, then reconstructing and saving
// that listing's images.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/bus"
	"github.com/vinpix/vinpix/internal/download"
	"github.com/vinpix/vinpix/internal/imaging"
	"github.com/vinpix/vinpix/internal/model"
	"github.com/vinpix/vinpix/internal/progress"
	"github.com/vinpix/vinpix/internal/resolver"
	"github.com/vinpix/vinpix/internal/salvage"
	"github.com/vinpix/vinpix/internal/storage"
)

// TileFetcher is the slice of the IAAI adapter the stitching flow needs.
type TileFetcher interface {
	FetchTile(ctx context.Context, key string, x, y int) ([]byte, error)
}

// VehicleService is the main entry point: Search resolves a VIN to a
// listing record, Download runs the full image pipeline for one.
//
// Top-level operations are single-flight: a second Search or Download
// while one runs returns progress.ErrBusy rather than interleaving
// notifications and counters.
type VehicleService struct {
	resolver   *resolver.Resolver
	adapters   map[model.Source]salvage.Adapter
	tiles      TileFetcher
	stitcher   *imaging.Stitcher
	trimmer    *imaging.Trimmer
	converter  *imaging.Converter
	dispatcher *download.Dispatcher
	tracker    *progress.Tracker
	notifier   bus.Notifier
	settings   storage.SettingsRepository
	searches   storage.SearchRepository
	logger     *zap.Logger

	mu   sync.Mutex
	busy bool
}

// NewVehicleService wires the service. searches may be nil when history
// persistence is not configured (the CLI's one-shot mode).
func NewVehicleService(
	res *resolver.Resolver,
	adapters []salvage.Adapter,
	tiles TileFetcher,
	stitcher *imaging.Stitcher,
	trimmer *imaging.Trimmer,
	converter *imaging.Converter,
	dispatcher *download.Dispatcher,
	tracker *progress.Tracker,
	notifier bus.Notifier,
	settings storage.SettingsRepository,
	searches storage.SearchRepository,
	logger *zap.Logger,
) *VehicleService {
	bySource := make(map[model.Source]salvage.Adapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	if notifier == nil {
		notifier = bus.NopNotifier{}
	}
	return &VehicleService{
		resolver:   res,
		adapters:   bySource,
		tiles:      tiles,
		stitcher:   stitcher,
		trimmer:    trimmer,
		converter:  converter,
		dispatcher: dispatcher,
		tracker:    tracker,
		notifier:   notifier,
		settings:   settings,
		searches:   searches,
		logger:     logger,
	}
}

// acquire claims the single-flight guard.
func (s *VehicleService) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return progress.ErrBusy
	}
	s.busy = true
	return nil
}

func (s *VehicleService) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Search resolves a raw VIN string to a listing record and records the
// outcome in the search history.
func (s *VehicleService) Search(ctx context.Context, rawVin string) (*model.ListingRecord, error) {
	if err := s.acquire(); err != nil {
		s.notifier.Notify("A search or download is already running.", bus.DisplayError)
		return nil, err
	}
	defer s.release()
	return s.search(ctx, rawVin)
}

func (s *VehicleService) search(ctx context.Context, rawVin string) (*model.ListingRecord, error) {
	vin, err := model.ParseVin(rawVin)
	if err != nil {
		s.notifier.Notify("That doesn't look like a valid VIN.", bus.DisplayError)
		return nil, err
	}

	if s.settings != nil {
		settings, err := s.settings.Load(ctx)
		if err != nil {
			s.logger.Warn("loading settings failed, using defaults", zap.Error(err))
			settings = model.DefaultSettings()
		}
		s.resolver.Enabled = settings.Enabled
	}

	start := time.Now()
	rec, err := s.resolver.Resolve(ctx, vin)
	s.recordSearch(ctx, vin, rec, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// recordSearch appends to the history; failures only log.
func (s *VehicleService) recordSearch(ctx context.Context, vin model.Vin, rec *model.ListingRecord, resErr error, took time.Duration) {
	if s.searches == nil {
		return
	}
	row := &model.SearchRecord{
		Vin:        vin.String(),
		Success:    resErr == nil,
		DurationMs: took.Milliseconds(),
	}
	if rec != nil {
		row.Source = string(rec.Source)
		row.LotNumber = rec.LotNumber
		row.ListingURL = rec.ListingURL
	}
	if resErr != nil {
		row.ErrorKind = salvage.KindOf(resErr).String()
	}
	if err := s.searches.Create(ctx, row); err != nil {
		s.logger.Warn("recording search history failed", zap.Error(err))
	}
}

// Scrape extracts a listing record from an already-rendered page. The
// caller supplies the document; no network calls are made, so the busy
// guard is not taken.
func (s *VehicleService) Scrape(_ context.Context, pageURL, pageHTML string) (*model.ListingRecord, error) {
	site, ok := salvage.SiteFromURL(pageURL)
	if !ok {
		return nil, &salvage.Error{
			Kind: salvage.KindValidation, Stage: "scrape",
			Err: fmt.Errorf("unrecognized listing host in %q", pageURL),
		}
	}
	adapter, ok := s.adapters[site]
	if !ok {
		return nil, fmt.Errorf("no adapter for source %q", site)
	}
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &salvage.Error{
			Kind: salvage.KindParse, Site: site, Stage: "scrape", Err: err,
		}
	}
	return adapter.ScrapeListing(doc, pageURL)
}

// Download resolves the VIN and saves every image the listing offers.
func (s *VehicleService) Download(ctx context.Context, rawVin string) error {
	if err := s.acquire(); err != nil {
		s.notifier.Notify("A search or download is already running.", bus.DisplayError)
		return err
	}
	defer s.release()

	rec, err := s.search(ctx, rawVin)
	if err != nil {
		return err
	}
	return s.DownloadListing(ctx, rec)
}

// DownloadListing runs the image pipeline for an already-resolved record.
// Exposed for callers that resolved separately (the CLI's two-step mode);
// it shares the progress tracker but not the service guard.
func (s *VehicleService) DownloadListing(ctx context.Context, rec *model.ListingRecord) error {
	descs, err := s.imageInfo(ctx, rec)
	if err != nil {
		s.notifier.Notify("Couldn't fetch the image list for this lot.", bus.DisplayError)
		return err
	}
	if len(descs) == 0 {
		s.notifier.Notify("This lot has no images.", bus.DisplayStatus)
		return nil
	}

	total := 0
	for _, d := range descs {
		total += unitCount(d)
	}
	if err := s.tracker.TryBegin(total); err != nil {
		return err
	}

	folder := download.LotFolder(rec)
	idx := 0
	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			s.tracker.Abort()
			return err
		}
		n, err := s.saveDescriptor(ctx, folder, idx, desc)
		idx += n
		if err != nil {
			s.logger.Warn("descriptor failed",
				zap.String("descriptor", desc.Describe()),
				zap.Error(err))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.tracker.Abort()
				return err
			}
			// A single bad image degrades the set, not the download.
			continue
		}
	}

	s.tracker.End()
	s.notifier.Notify(fmt.Sprintf("Saved %d images to %s.", idx, folder), bus.DisplaySuccess)
	return nil
}

// imageInfo routes to the yard that actually hosts the images. Archive
// records carry the originating yard in ImageSource.
func (s *VehicleService) imageInfo(ctx context.Context, rec *model.ListingRecord) ([]model.ImageDescriptor, error) {
	source := rec.Source
	if rec.Source.IsArchive() {
		source = rec.ImageSource
	}
	adapter, ok := s.adapters[source]
	if !ok {
		return nil, fmt.Errorf("no adapter for source %q", source)
	}
	lot, err := model.ParseLotNumber(rec.LotNumber)
	if err != nil {
		return nil, err
	}
	return adapter.ImageInfo(ctx, lot)
}

// unitCount is how many progress units a descriptor contributes.
func unitCount(desc model.ImageDescriptor) int {
	switch d := desc.(type) {
	case model.DirectImage:
		return 1
	case model.TiledImage:
		return 1
	case model.PanoramaImage:
		return len(imaging.Faces)
	case model.FrameSequence:
		return d.FrameCount
	case model.CubeFaceSet:
		return len(d.FaceURLs)
	}
	return 1
}

// saveDescriptor persists one descriptor's images, returning how many
// files were written. Progress increments as each file lands.
func (s *VehicleService) saveDescriptor(ctx context.Context, folder string, idx int, desc model.ImageDescriptor) (int, error) {
	switch d := desc.(type) {
	case model.DirectImage:
		err := s.dispatcher.Save(ctx, folder, download.SaveRequest{
			URL:      d.URL,
			Filename: download.ImageName(idx + 1),
		})
		if err != nil {
			return 0, err
		}
		s.tracker.Increment()
		return 1, nil

	case model.TiledImage:
		data, err := s.reassemble(ctx, d)
		if err != nil {
			return 0, err
		}
		err = s.dispatcher.Save(ctx, folder, download.SaveRequest{
			Data:     data,
			Filename: download.ImageName(idx + 1),
		})
		if err != nil {
			return 0, err
		}
		s.tracker.Increment()
		return 1, nil

	case model.FrameSequence:
		saved := 0
		for i := 0; i < d.FrameCount; i++ {
			err := s.dispatcher.Save(ctx, folder, download.SaveRequest{
				URL:      fmt.Sprintf(d.URLTemplate, i),
				Filename: download.ImageName(idx + saved + 1),
			})
			if err != nil {
				if ctx.Err() != nil {
					return saved, ctx.Err()
				}
				s.logger.Warn("frame skipped", zap.Int("frame", i), zap.Error(err))
				continue
			}
			s.tracker.Increment()
			saved++
		}
		return saved, nil

	case model.CubeFaceSet:
		saved := 0
		for face, url := range d.FaceURLs {
			err := s.dispatcher.Save(ctx, folder, download.SaveRequest{
				URL:      url,
				Filename: fmt.Sprintf("%d_%s.jpg", idx+saved+1, face),
			})
			if err != nil {
				if ctx.Err() != nil {
					return saved, ctx.Err()
				}
				s.logger.Warn("cube face skipped", zap.String("face", face), zap.Error(err))
				continue
			}
			s.tracker.Increment()
			saved++
		}
		return saved, nil

	case model.PanoramaImage:
		return s.savePanorama(ctx, folder, idx, d)
	}
	return 0, fmt.Errorf("unknown descriptor %T", desc)
}

// reassemble stitches a tile grid, trims the padding border and encodes
// the result as a JPEG.
func (s *VehicleService) reassemble(ctx context.Context, d model.TiledImage) ([]byte, error) {
	rec, err := s.stitcher.Stitch(ctx, d, func(ctx context.Context, x, y int) ([]byte, error) {
		return s.tiles.FetchTile(ctx, d.Key, x, y)
	})
	if err != nil {
		return nil, err
	}
	trimmed := s.trimmer.Trim(rec)
	return imaging.EncodeJPEG(trimmed.RGBA)
}

// savePanorama fetches the equirectangular source, reprojects it to six
// cube faces and saves each. A single "halfway there" message surfaces
// while the faces render.
func (s *VehicleService) savePanorama(ctx context.Context, folder string, idx int, d model.PanoramaImage) (int, error) {
	raw, err := s.dispatcher.Fetch(ctx, d.EquirectangularURL)
	if err != nil {
		return 0, err
	}
	pano, err := decodeImage(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding panorama: %w", err)
	}

	halfway := progress.NewHalfway(len(imaging.Faces), func() {
		s.notifier.Notify("Interior panorama: halfway there...", bus.DisplayStatus)
	})
	set, err := s.converter.Convert(ctx, pano, func(p imaging.FaceProgress) {
		halfway.Report(int(p.Face), p.Percent)
	})
	if err != nil {
		return 0, fmt.Errorf("converting panorama: %w", err)
	}

	saved := 0
	for _, face := range imaging.Faces {
		data, err := imaging.EncodeJPEG(set.Faces[face])
		if err != nil {
			return saved, err
		}
		err = s.dispatcher.Save(ctx, folder, download.SaveRequest{
			Data:     data,
			Filename: fmt.Sprintf("%d_%s.jpg", idx+saved+1, face),
		})
		if err != nil {
			return saved, err
		}
		s.tracker.Increment()
		saved++
	}
	return saved, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := imaging.Decode(data)
	return img, err
}
