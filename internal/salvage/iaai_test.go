package salvage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/model"
)

func newTestIAAI(t *testing.T, handler http.HandlerFunc) *IAAI {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	// One server plays both the IAAI site and the Spincar API.
	return NewIAAI(ts.URL, ts.URL+"/deepzoom", ts.URL, 5*time.Second, zap.NewNop())
}

func TestIAAI_SearchRedirectsToListing(t *testing.T) {
	i := newTestIAAI(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/Search":
			if r.URL.Query().Get("SearchVIN") != testVin {
				t.Errorf("unexpected SearchVIN %q", r.URL.Query().Get("SearchVIN"))
			}
			http.Redirect(w, r, "/VehicleDetails/87654321~US", http.StatusFound)
		default:
			fmt.Fprint(w, "<html>listing</html>")
		}
	})

	rec, err := i.Search(context.Background(), model.Vin(testVin))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "87654321" {
		t.Errorf("lot = %s, want 87654321", rec.LotNumber)
	}
	if rec.Source != model.SourceIAAI || rec.ImageSource != model.SourceIAAI {
		t.Errorf("unexpected sources %s/%s", rec.Source, rec.ImageSource)
	}
}

func TestIAAI_SearchNoRedirectMeansNoResults(t *testing.T) {
	i := newTestIAAI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>search page</html>")
	})

	_, err := i.Search(context.Background(), model.Vin(testVin))
	if !IsKind(err, KindNoResults) {
		t.Errorf("expected no-results error, got %v", err)
	}
}

func TestIAAI_ImageInfoTiledImages(t *testing.T) {
	i := newTestIAAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Images/GetJsonImageDimensions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("json"); q != `{"stockNumber":"87654321"}` {
			t.Errorf("unexpected json arg %q", q)
		}
		fmt.Fprint(w, `{"keys":[
			{"K":"abc123","W":2000,"H":1500},
			{"K":"def456","W":1800,"H":1200}
		]}`)
	})

	descs, err := i.ImageInfo(context.Background(), "87654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	ti, ok := descs[0].(model.TiledImage)
	if !ok {
		t.Fatalf("descriptor 0 = %#v, want tiled image", descs[0])
	}
	if ti.Key != "abc123" || ti.Width != 2000 || ti.Height != 1500 || ti.TileSize != 250 {
		t.Errorf("tiled image = %#v", ti)
	}
}

func TestIAAI_ImageInfoEmptyBodyMeansNoImages(t *testing.T) {
	i := newTestIAAI(t, func(w http.ResponseWriter, r *http.Request) {
		// IAAI answers an unknown stock number with a 200 and no body.
	})

	descs, err := i.ImageInfo(context.Background(), "87654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if descs != nil {
		t.Errorf("expected nil descriptors, got %#v", descs)
	}
}

func TestIAAI_ImageInfoSpincarBonus(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Images/GetJsonImageDimensions":
			fmt.Fprintf(w, `{"keys":[{"K":"abc","W":500,"H":500}],
				"Image360Url":"%s/swipetospin-viewers/xyz"}`, "https://cdn.spincar.com")
		case "/spin/swipetospin-viewers/xyz":
			fmt.Fprint(w, `{"cdn_image_prefix":"//cdn.example/spins/abc/",
				"info":{"options":{"numImgEC":8,"has_pano":true}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()
	i := NewIAAI(ts.URL, ts.URL+"/deepzoom", ts.URL, 5*time.Second, zap.NewNop())

	descs, err := i.ImageInfo(context.Background(), "87654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descs))
	}

	seq, ok := descs[1].(model.FrameSequence)
	if !ok {
		t.Fatalf("descriptor 1 = %#v, want frame sequence", descs[1])
	}
	if seq.URLTemplate != "https://cdn.example/spins/abc/ec/0-%d.jpg" || seq.FrameCount != 8 {
		t.Errorf("frame sequence = %#v", seq)
	}

	faces, ok := descs[2].(model.CubeFaceSet)
	if !ok {
		t.Fatalf("descriptor 2 = %#v, want cube face set", descs[2])
	}
	if len(faces.FaceURLs) != 6 {
		t.Errorf("expected 6 faces, got %d", len(faces.FaceURLs))
	}
	if got := faces.FaceURLs["pano_f"]; got != "https://cdn.example/spins/abc/pano/pano_f.jpg" {
		t.Errorf("pano_f = %q", got)
	}
}

func TestIAAI_TileURLContract(t *testing.T) {
	i := NewIAAI("", "", "", 5*time.Second, zap.NewNop())
	got := i.TileURL("someKey", 3, 7)
	want := "https://anvis.iaai.com/deepzoom?imageKey=someKey&level=12&overlap=0&tilesize=250&x=3&y=7"
	if got != want {
		t.Errorf("TileURL = %s\nwant      %s", got, want)
	}
}
