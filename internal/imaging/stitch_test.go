package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/vinpix/vinpix/internal/model"
)

// solidTile encodes a PNG tile filled with one color.
func solidTile(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode tile: %v", err)
	}
	return buf.Bytes()
}

func TestStitch_AssemblesGrid(t *testing.T) {
	desc := model.TiledImage{Key: "k1", Width: 500, Height: 500, TileSize: 250}
	colors := map[[2]int]color.RGBA{
		{0, 0}: {R: 255, A: 255},
		{1, 0}: {G: 255, A: 255},
		{0, 1}: {B: 255, A: 255},
		{1, 1}: {R: 255, G: 255, A: 255},
	}
	tiles := map[[2]int][]byte{}
	for pos, c := range colors {
		tiles[pos] = solidTile(t, 250, 250, c)
	}

	fetch := func(ctx context.Context, x, y int) ([]byte, error) {
		return tiles[[2]int{x, y}], nil
	}

	s := NewStitcher(4, nil, nil)
	rec, err := s.Stitch(context.Background(), desc, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Width() != 500 || rec.Height() != 500 {
		t.Fatalf("dimensions = %dx%d, want 500x500", rec.Width(), rec.Height())
	}
	if rec.MissingTiles != 0 {
		t.Errorf("missing tiles = %d, want 0", rec.MissingTiles)
	}

	// One probe inside each quadrant.
	probes := map[[2]int]image.Point{
		{0, 0}: {X: 100, Y: 100},
		{1, 0}: {X: 400, Y: 100},
		{0, 1}: {X: 100, Y: 400},
		{1, 1}: {X: 400, Y: 400},
	}
	for pos, pt := range probes {
		got := rec.RGBA.RGBAAt(pt.X, pt.Y)
		if got != colors[pos] {
			t.Errorf("tile %v pixel at %v = %v, want %v", pos, pt, got, colors[pos])
		}
	}
}

func TestStitch_OutputIndependentOfArrivalOrder(t *testing.T) {
	desc := model.TiledImage{Key: "k2", Width: 750, Height: 500, TileSize: 250}
	fetch := func(ctx context.Context, x, y int) ([]byte, error) {
		shade := uint8(40*x + 90*y)
		return solidTile(t, 250, 250, color.RGBA{R: shade, G: shade, A: 255}), nil
	}

	first, err := NewStitcher(1, nil, nil).Stitch(context.Background(), desc, fetch)
	if err != nil {
		t.Fatalf("serial stitch: %v", err)
	}
	second, err := NewStitcher(6, nil, nil).Stitch(context.Background(), desc, fetch)
	if err != nil {
		t.Fatalf("concurrent stitch: %v", err)
	}
	if !bytes.Equal(first.RGBA.Pix, second.RGBA.Pix) {
		t.Error("concurrent stitch differs from serial stitch")
	}
}

func TestStitch_FailedTileLeavesGap(t *testing.T) {
	desc := model.TiledImage{Key: "k3", Width: 500, Height: 250, TileSize: 250}
	white := solidTile(t, 250, 250, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	fetch := func(ctx context.Context, x, y int) ([]byte, error) {
		if x == 1 {
			return nil, errors.New("boom")
		}
		return white, nil
	}

	s := NewStitcher(2, nil, nil)
	rec, err := s.Stitch(context.Background(), desc, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.MissingTiles != 1 {
		t.Errorf("missing tiles = %d, want 1", rec.MissingTiles)
	}
	if got := rec.RGBA.RGBAAt(100, 100); got.A != 255 {
		t.Errorf("placed tile pixel = %v, want opaque", got)
	}
	if got := rec.RGBA.RGBAAt(400, 100); got.A != 0 {
		t.Errorf("gap pixel = %v, want transparent", got)
	}
}

func TestStitch_AllTilesFailing(t *testing.T) {
	desc := model.TiledImage{Key: "k4", Width: 250, Height: 250, TileSize: 250}
	fetch := func(ctx context.Context, x, y int) ([]byte, error) {
		return nil, errors.New("unavailable")
	}

	if _, err := NewStitcher(2, nil, nil).Stitch(context.Background(), desc, fetch); err == nil {
		t.Fatal("expected an error when no tile could be placed")
	}
}

func TestStitch_RejectsDegenerateDescriptor(t *testing.T) {
	desc := model.TiledImage{Key: "k5", Width: 0, Height: 100, TileSize: 250}
	_, err := NewStitcher(1, nil, nil).Stitch(context.Background(), desc, func(context.Context, int, int) ([]byte, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected an error for zero width")
	}
}
