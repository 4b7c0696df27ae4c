package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vinpix/vinpix/internal/model"
	"github.com/vinpix/vinpix/internal/storage"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *storage.FileSystem) {
	t.Helper()
	fs, err := storage.NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	return NewDispatcher(fs, nil), fs
}

func TestSave_WithInMemoryData(t *testing.T) {
	d, fs := newTestDispatcher(t)
	payload := []byte("jpeg bytes")

	err := d.Save(context.Background(), "copart-12345678", SaveRequest{
		Data:     payload,
		Filename: "1.jpg",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.Read("copart-12345678", "1.jpg")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("stored %q, want %q", got, payload)
	}
}

func TestSave_FetchesURLBackedRequest(t *testing.T) {
	payload := []byte("original image")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer ts.Close()

	d, fs := newTestDispatcher(t)
	err := d.Save(context.Background(), "iaai-87654321", SaveRequest{
		URL:      ts.URL + "/image.jpg",
		Filename: "2.jpg",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := fs.Read("iaai-87654321", "2.jpg")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("stored %q, want %q", got, payload)
	}
}

func TestSave_PropagatesHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	d, _ := newTestDispatcher(t)
	err := d.Save(context.Background(), "copart-12345678", SaveRequest{
		URL:      ts.URL,
		Filename: "1.jpg",
	})
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}

func TestFetch_RespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer ts.Close()
	defer close(block)

	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Fetch(ctx, ts.URL); err == nil {
		t.Fatal("expected an error from a cancelled fetch")
	}
}

func TestNamingHelpers(t *testing.T) {
	rec := &model.ListingRecord{Source: model.SourceCopart, LotNumber: "12345678"}
	if got := LotFolder(rec); got != "copart-12345678" {
		t.Errorf("LotFolder = %q", got)
	}
	if got := ImageName(1); got != "1.jpg" {
		t.Errorf("ImageName(1) = %q", got)
	}
	if got := ImageName(17); got != "17.jpg" {
		t.Errorf("ImageName(17) = %q", got)
	}
}
