// Package imaging reconstructs downloadable images from the raw forms the
// sites serve: deep-zoom tile grids are stitched back together, near-black
// padding borders are trimmed off, and equirectangular panoramas are
// reprojected onto cube faces.
package imaging

import "image"

// TrimBounds are pixel offsets from each edge of a reconstructed buffer,
// produced by the border trimmer.
type TrimBounds struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Reconstructed is an in-memory pixel buffer assembled by the stitcher
// (or loaded directly). The trimmer mutates Trim; once the image has been
// exported the value is treated as immutable.
type Reconstructed struct {
	RGBA *image.RGBA
	Trim TrimBounds

	// MissingTiles counts tile fetches that failed both attempts and left
	// a gap in the buffer.
	MissingTiles int
}

// NewReconstructed wraps an RGBA buffer with zero trim bounds.
func NewReconstructed(img *image.RGBA) *Reconstructed {
	return &Reconstructed{RGBA: img}
}

// Width and Height describe the untrimmed buffer.
func (r *Reconstructed) Width() int  { return r.RGBA.Bounds().Dx() }
func (r *Reconstructed) Height() int { return r.RGBA.Bounds().Dy() }

// toRGBA converts any decoded image into an RGBA buffer with origin (0,0).
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
