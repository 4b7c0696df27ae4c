// Package download routes finished images to the filesystem sink. It is a
// thin layer: naming and placement policy live here, pixels come from the
// imaging pipeline or straight off the wire.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/model"
	"github.com/vinpix/vinpix/internal/storage"
)

// maxDownloadBytes caps a single fetched image.
const maxDownloadBytes = 50 << 20

// SaveRequest describes one image to persist. Exactly one of Data and URL
// is set: Data for images the pipeline reconstructed in memory, URL for
// originals saved as-is.
type SaveRequest struct {
	Data     []byte
	URL      string
	Filename string
}

// LotFolder names the directory for a listing's images: {site}-{lot}.
func LotFolder(rec *model.ListingRecord) string {
	return fmt.Sprintf("%s-%s", rec.Source, rec.LotNumber)
}

// ImageName numbers images within a lot folder: {idx}.jpg, 1-based.
func ImageName(idx int) string {
	return fmt.Sprintf("%d.jpg", idx)
}

// Dispatcher saves images for a lot, fetching URL-backed requests itself.
type Dispatcher struct {
	fs     *storage.FileSystem
	client *http.Client
	logger *zap.Logger
}

// NewDispatcher builds a dispatcher over the given filesystem sink.
func NewDispatcher(fs *storage.FileSystem, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		fs:     fs,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// Save persists one image into the folder, fetching it first when the
// request is URL-backed.
func (d *Dispatcher) Save(ctx context.Context, folder string, req SaveRequest) error {
	data := req.Data
	if data == nil {
		fetched, err := d.Fetch(ctx, req.URL)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", req.URL, err)
		}
		data = fetched
	}
	if err := d.fs.Write(folder, req.Filename, data); err != nil {
		return err
	}
	d.logger.Debug("image saved",
		zap.String("folder", folder),
		zap.String("file", req.Filename),
		zap.Int("bytes", len(data)))
	return nil
}

// Fetch retrieves raw image bytes without persisting them.
func (d *Dispatcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}
