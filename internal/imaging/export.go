package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/h2non/bimg"
	xdraw "golang.org/x/image/draw"
)

// jpegQuality is the export quality for reconstructed images.
const jpegQuality = 90

// Decode parses encoded image bytes in any registered format.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// EncodePNG serialises an RGBA buffer as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG serialises an RGBA buffer as a JPEG via libvips. The buffer
// is first encoded losslessly, then transcoded so the flattening and
// quality handling stay in one place.
func EncodeJPEG(img image.Image) ([]byte, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	out, err := bimg.NewImage(raw).Process(bimg.Options{
		Type:           bimg.JPEG,
		Quality:        jpegQuality,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return out, nil
}

// Thumbnail scales img so its width is at most maxWidth, preserving the
// aspect ratio. Images already narrow enough are returned unchanged.
func Thumbnail(img *image.RGBA, maxWidth int) *image.RGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img
	}
	scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, h*maxWidth/w))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return scaled
}
