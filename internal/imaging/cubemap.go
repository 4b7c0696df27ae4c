package imaging

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"go.uber.org/zap"
)

// Face identifies one of the six cube directions. The string forms match
// the pano face names used by the spin providers.
type Face int

const (
	FaceFront Face = iota
	FaceLeft
	FaceBack
	FaceRight
	FaceUp
	FaceDown
)

// Faces lists every face in conversion order.
var Faces = [...]Face{FaceFront, FaceLeft, FaceBack, FaceRight, FaceUp, FaceDown}

func (f Face) String() string {
	switch f {
	case FaceFront:
		return "pano_f"
	case FaceLeft:
		return "pano_l"
	case FaceBack:
		return "pano_b"
	case FaceRight:
		return "pano_r"
	case FaceUp:
		return "pano_u"
	case FaceDown:
		return "pano_d"
	}
	return "pano_?"
}

// FaceSet holds the rendered cube faces. Usable is false when any face
// failed or the conversion was cancelled; the faces rendered so far are
// retained for diagnostics but must not be exported.
type FaceSet struct {
	Faces  map[Face]*image.RGBA
	Usable bool
}

// FaceProgress reports how far one face has rendered, as a percentage.
type FaceProgress struct {
	Face    Face
	Percent float64
}

// Converter reprojects an equirectangular panorama onto six cube faces,
// one goroutine per face, sampling the source with a Lanczos-3 kernel.
type Converter struct {
	faceSize int
	logger   *zap.Logger
}

// NewConverter builds a converter producing faceSize x faceSize faces.
func NewConverter(faceSize int, logger *zap.Logger) *Converter {
	if faceSize < 1 {
		faceSize = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{faceSize: faceSize, logger: logger}
}

// Convert renders all six faces of pano concurrently. onProgress, when
// non-nil, receives per-face percentages as rows complete; callers
// aggregate them (the halfway milestone lives with the caller, not here).
// Cancellation stops every face promptly and yields an unusable set.
func (c *Converter) Convert(ctx context.Context, pano image.Image, onProgress func(FaceProgress)) (*FaceSet, error) {
	src := toRGBA(pano)
	if src.Bounds().Dx() == 0 || src.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("convert panorama: empty source image")
	}

	set := &FaceSet{Faces: make(map[Face]*image.RGBA, len(Faces))}
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, face := range Faces {
		wg.Add(1)
		go func(face Face) {
			defer wg.Done()
			img, err := c.renderFace(ctx, src, face, onProgress)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("face %s: %w", face, err)
				}
				return
			}
			set.Faces[face] = img
		}(face)
	}
	wg.Wait()

	if firstErr != nil {
		c.logger.Warn("panorama conversion incomplete",
			zap.Int("rendered", len(set.Faces)),
			zap.Error(firstErr))
		return set, firstErr
	}
	set.Usable = true
	return set, nil
}

// renderFace rasterises a single cube face row by row, checking for
// cancellation between rows.
func (c *Converter) renderFace(ctx context.Context, src *image.RGBA, face Face, onProgress func(FaceProgress)) (*image.RGBA, error) {
	size := c.faceSize
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	srcW := float64(src.Bounds().Dx())
	srcH := float64(src.Bounds().Dy())

	for j := 0; j < size; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := 2*(float64(j)+0.5)/float64(size) - 1
		for i := 0; i < size; i++ {
			a := 2*(float64(i)+0.5)/float64(size) - 1
			x, y, z := faceDirection(face, a, b)

			theta := math.Atan2(x, z)
			phi := math.Asin(y / math.Sqrt(x*x+y*y+z*z))

			u := (theta + math.Pi) / (2 * math.Pi) * srcW
			v := (math.Pi/2 - phi) / math.Pi * srcH

			r, g, bl, al := lanczosSample(src, u-0.5, v-0.5)
			off := out.PixOffset(i, j)
			out.Pix[off] = r
			out.Pix[off+1] = g
			out.Pix[off+2] = bl
			out.Pix[off+3] = al
		}
		if onProgress != nil {
			onProgress(FaceProgress{Face: face, Percent: float64(j+1) / float64(size) * 100})
		}
	}
	return out, nil
}

// faceDirection maps face-plane coordinates (a, b) in [-1, 1] to a view
// ray. Axes follow x-right, y-up, z-forward with zero yaw rotation.
func faceDirection(face Face, a, b float64) (x, y, z float64) {
	switch face {
	case FaceFront:
		return a, -b, 1
	case FaceBack:
		return -a, -b, -1
	case FaceLeft:
		return -1, -b, a
	case FaceRight:
		return 1, -b, -a
	case FaceUp:
		return a, 1, b
	case FaceDown:
		return a, -1, -b
	}
	return 0, 0, 1
}

const lanczosRadius = 3

// lanczosKernel is the Lanczos windowed sinc with a = 3.
func lanczosKernel(t float64) float64 {
	t = math.Abs(t)
	if t < 1e-9 {
		return 1
	}
	if t >= lanczosRadius {
		return 0
	}
	pt := math.Pi * t
	return lanczosRadius * math.Sin(pt) * math.Sin(pt/lanczosRadius) / (pt * pt)
}

// lanczosSample filters a 6x6 neighbourhood around (u, v). The horizontal
// axis wraps (equirectangular longitude is periodic); the vertical axis
// clamps at the poles.
func lanczosSample(src *image.RGBA, u, v float64) (r, g, b, a uint8) {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	iu := int(math.Floor(u))
	iv := int(math.Floor(v))

	var sr, sg, sb, sa, sw float64
	for dy := -lanczosRadius + 1; dy <= lanczosRadius; dy++ {
		sy := iv + dy
		if sy < 0 {
			sy = 0
		} else if sy >= h {
			sy = h - 1
		}
		wy := lanczosKernel(v - float64(iv+dy))
		if wy == 0 {
			continue
		}
		for dx := -lanczosRadius + 1; dx <= lanczosRadius; dx++ {
			sx := ((iu+dx)%w + w) % w
			wgt := wy * lanczosKernel(u-float64(iu+dx))
			if wgt == 0 {
				continue
			}
			off := src.PixOffset(sx, sy)
			sr += wgt * float64(src.Pix[off])
			sg += wgt * float64(src.Pix[off+1])
			sb += wgt * float64(src.Pix[off+2])
			sa += wgt * float64(src.Pix[off+3])
			sw += wgt
		}
	}
	if sw == 0 {
		return 0, 0, 0, 255
	}
	return clampByte(sr / sw), clampByte(sg / sw), clampByte(sb / sw), clampByte(sa / sw)
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}
