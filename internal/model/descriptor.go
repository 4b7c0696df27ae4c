package model

import "fmt"

// ImageDescriptor describes one downloadable image asset for a listing.
// Exactly one of the four concrete types below is returned per asset; each
// descriptor is consumed once by the reconstruction pipeline.
type ImageDescriptor interface {
	// Describe returns a short human-readable label used in feedback
	// messages and log fields.
	Describe() string
}

// TiledImage is a deep-zoom image that must be reassembled from a grid of
// fixed-size tiles. Key is the site-specific opaque token identifying the
// image on the tile server.
type TiledImage struct {
	Key      string
	Width    int
	Height   int
	TileSize int
}

func (t TiledImage) Describe() string {
	return fmt.Sprintf("tiled %dx%d (%s)", t.Width, t.Height, t.Key)
}

// TilesAcross returns the number of tile columns: ceil(Width/TileSize).
func (t TiledImage) TilesAcross() int {
	return (t.Width + t.TileSize - 1) / t.TileSize
}

// TilesDown returns the number of tile rows: ceil(Height/TileSize).
func (t TiledImage) TilesDown() int {
	return (t.Height + t.TileSize - 1) / t.TileSize
}

// DirectImage is a plain full-resolution image available at a single URL.
type DirectImage struct {
	URL string
}

func (d DirectImage) Describe() string { return "direct " + d.URL }

// PanoramaImage is a single equirectangular photo covering a full
// 360x180 degree sphere; it is converted to six cube faces before download.
type PanoramaImage struct {
	EquirectangularURL string
}

func (p PanoramaImage) Describe() string { return "panorama " + p.EquirectangularURL }

// FrameSequence is an ordered walkaround (exterior 360) image set. Frame i
// lives at fmt.Sprintf(URLTemplate, i) for i in [0, FrameCount).
type FrameSequence struct {
	URLTemplate string
	FrameCount  int
}

func (f FrameSequence) Describe() string {
	return fmt.Sprintf("walkaround %d frames", f.FrameCount)
}

// CubeFaceSet is a prebuilt panorama already split into the six cube faces
// by the upstream media host, keyed by face name (pano_f, pano_l, ...).
type CubeFaceSet struct {
	FaceURLs map[string]string
}

func (c CubeFaceSet) Describe() string {
	return fmt.Sprintf("cubemap %d faces", len(c.FaceURLs))
}
