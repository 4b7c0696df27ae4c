package imaging

import (
	"image"
	"image/draw"
	"sync"
)

const (
	// trimSampleLen is the length of the 1px-wide strip sampled along the
	// midline of each edge when probing for padding.
	trimSampleLen = 50

	// trimSlack is the per-byte brightness allowance above pure black.
	trimSlack = 20
)

// Trimmer detects and removes the near-black padding borders that stitched
// deep-zoom images carry on their right and bottom edges (and occasionally
// elsewhere).
type Trimmer struct{}

// NewTrimmer returns a border trimmer.
func NewTrimmer() *Trimmer { return &Trimmer{} }

// isBlackish reports whether an RGBA byte strip is close enough to opaque
// black to count as padding. The alpha channel contributes fully to the
// expected sum, so a fully transparent strip (an unfilled tile gap) also
// reads as padding.
func isBlackish(pix []byte) bool {
	if len(pix) == 0 {
		return true
	}
	sum := 0
	for _, b := range pix {
		sum += int(b)
	}
	fullAlpha := len(pix) / 4 * 255
	return fullAlpha+trimSlack*len(pix) >= sum
}

// Trim scans inward from all four edges and returns a copy of rec cropped
// to the non-padding region, recording the offsets in the result's Trim
// field. If the scans cross (an entirely dark image) the bounds are
// clamped and an empty buffer is returned rather than panicking.
func (t *Trimmer) Trim(rec *Reconstructed) *Reconstructed {
	img := rec.RGBA
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return rec
	}

	var (
		wg                       sync.WaitGroup
		left, right, top, bottom int
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		for left = 0; left < w; left++ {
			if !isBlackish(columnStrip(img, left)) {
				break
			}
		}
	}()
	go func() {
		defer wg.Done()
		for right = 0; right < w; right++ {
			if !isBlackish(columnStrip(img, w-1-right)) {
				break
			}
		}
	}()
	go func() {
		defer wg.Done()
		for top = 0; top < h; top++ {
			if !isBlackish(rowStrip(img, top)) {
				break
			}
		}
	}()
	go func() {
		defer wg.Done()
		for bottom = 0; bottom < h; bottom++ {
			if !isBlackish(rowStrip(img, h-1-bottom)) {
				break
			}
		}
	}()
	wg.Wait()

	// Crossed scans mean the whole image read as padding.
	if left+right >= w {
		left, right = 0, w
	}
	if top+bottom >= h {
		top, bottom = 0, h
	}

	cropped := image.NewRGBA(image.Rect(0, 0, w-left-right, h-top-bottom))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(left, top), draw.Src)

	out := NewReconstructed(cropped)
	out.Trim = TrimBounds{Left: left, Right: right, Top: top, Bottom: bottom}
	out.MissingTiles = rec.MissingTiles
	return out
}

// columnStrip samples a 1x50 strip centred on the vertical midline of
// column x, clipped to the image.
func columnStrip(img *image.RGBA, x int) []byte {
	h := img.Bounds().Dy()
	y0 := h/2 - trimSampleLen/2
	if y0 < 0 {
		y0 = 0
	}
	y1 := y0 + trimSampleLen
	if y1 > h {
		y1 = h
	}
	strip := make([]byte, 0, (y1-y0)*4)
	for y := y0; y < y1; y++ {
		off := img.PixOffset(x, y)
		strip = append(strip, img.Pix[off:off+4]...)
	}
	return strip
}

// rowStrip samples a 50x1 strip centred on the horizontal midline of row y.
func rowStrip(img *image.RGBA, y int) []byte {
	w := img.Bounds().Dx()
	x0 := w/2 - trimSampleLen/2
	if x0 < 0 {
		x0 = 0
	}
	x1 := x0 + trimSampleLen
	if x1 > w {
		x1 = w
	}
	off := img.PixOffset(x0, y)
	return img.Pix[off : off+(x1-x0)*4]
}
