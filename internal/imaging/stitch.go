package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vinpix/vinpix/internal/model"
)

// TileFetcher retrieves the encoded bytes of a single tile at grid
// coordinates (x, y).
type TileFetcher func(ctx context.Context, x, y int) ([]byte, error)

// Stitcher reassembles a deep-zoom tile grid into one contiguous buffer.
// Tiles are fetched concurrently; each failed fetch is retried once and a
// tile that fails both attempts leaves a transparent gap rather than
// aborting the whole image.
type Stitcher struct {
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewStitcher builds a stitcher with the given worker count. A nil limiter
// disables pacing; concurrency below 1 is raised to 1.
func NewStitcher(concurrency int, limiter *rate.Limiter, logger *zap.Logger) *Stitcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stitcher{concurrency: concurrency, limiter: limiter, logger: logger}
}

type tileJob struct {
	x, y int
}

type tileResult struct {
	x, y int
	img  image.Image
}

// Stitch fetches every tile of desc and composites them into a buffer of
// the full advertised dimensions. Stitching the same descriptor twice
// yields identical output: tile placement depends only on grid
// coordinates, never on arrival order.
func (s *Stitcher) Stitch(ctx context.Context, desc model.TiledImage, fetch TileFetcher) (*Reconstructed, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.TileSize <= 0 {
		return nil, fmt.Errorf("stitch %s: degenerate dimensions %dx%d tile %d", desc.Key, desc.Width, desc.Height, desc.TileSize)
	}

	across := desc.TilesAcross()
	down := desc.TilesDown()
	total := across * down

	surface := image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	jobs := make(chan tileJob)
	results := make(chan tileResult, s.concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		missing int
	)
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				img, err := s.fetchTile(ctx, desc, fetch, job.x, job.y)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					s.logger.Warn("tile unavailable after retry",
						zap.String("key", desc.Key),
						zap.Int("x", job.x),
						zap.Int("y", job.y),
						zap.Error(err))
					mu.Lock()
					missing++
					mu.Unlock()
					continue
				}
				results <- tileResult{x: job.x, y: job.y, img: img}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for y := 0; y < down; y++ {
			for x := 0; x < across; x++ {
				select {
				case jobs <- tileJob{x: x, y: y}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(results)
		close(done)
	}()

	placed := 0
	for res := range results {
		origin := image.Pt(res.x*desc.TileSize, res.y*desc.TileSize)
		target := image.Rectangle{Min: origin, Max: origin.Add(res.img.Bounds().Size())}
		draw.Draw(surface, target.Intersect(surface.Bounds()), res.img, res.img.Bounds().Min, draw.Src)
		placed++
	}
	<-done

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if placed == 0 {
		return nil, fmt.Errorf("stitch %s: no tiles could be fetched (%d attempted)", desc.Key, total)
	}
	if missing > 0 {
		s.logger.Warn("stitched with gaps",
			zap.String("key", desc.Key),
			zap.Int("placed", placed),
			zap.Int("missing", missing))
	}

	rec := NewReconstructed(surface)
	rec.MissingTiles = missing
	return rec, nil
}

// fetchTile paces, fetches and decodes one tile, retrying the fetch once.
func (s *Stitcher) fetchTile(ctx context.Context, desc model.TiledImage, fetch TileFetcher, x, y int) (image.Image, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		data, err := fetch(ctx, x, y)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			lastErr = fmt.Errorf("decode tile (%d,%d): %w", x, y, err)
			continue
		}
		return img, nil
	}
	return nil, lastErr
}
