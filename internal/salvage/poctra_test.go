package salvage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/model"
)

func newTestPoctra(t *testing.T, handler http.HandlerFunc) *Poctra {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewPoctra(ts.URL, 5*time.Second, zap.NewNop())
}

func poctraRow(href, text string) string {
	return fmt.Sprintf(`<tr class="clickable-row"><td><a href="%s">%s</a></td></tr>`, href, text)
}

func TestPoctra_SearchContract(t *testing.T) {
	p := newTestPoctra(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search/ajax" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("q"); got != testVin {
			t.Errorf("q = %q, want the vin", got)
		}
		if got := r.PostForm.Get("page"); got != "1" {
			t.Errorf("page = %q, want 1", got)
		}
		fmt.Fprint(w, "<table>"+
			poctraRow("/uk/bid-history/copart/old", "Copart Lot no: 11111111")+
			poctraRow("/uk/bid-history/copart/new", "Copart Lot no: 22222222")+
			"</table>")
	})

	rec, err := p.Search(context.Background(), model.Vin(testVin))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The last row is the primary match.
	if rec.LotNumber != "22222222" {
		t.Errorf("lot = %s, want 22222222", rec.LotNumber)
	}
	if rec.Source != model.SourcePoctra {
		t.Errorf("source = %s, want poctra", rec.Source)
	}
	if rec.ImageSource != model.SourceCopart {
		t.Errorf("image source = %s, want copart", rec.ImageSource)
	}
	if !strings.HasSuffix(rec.ListingURL, "/uk/bid-history/copart/new") {
		t.Errorf("listing url = %s", rec.ListingURL)
	}
	// Relative hrefs resolve against the site base.
	if !strings.HasPrefix(rec.ListingURL, "http") {
		t.Errorf("listing url not absolute: %s", rec.ListingURL)
	}
	if len(rec.ExtraListingURLs) != 1 {
		t.Errorf("expected 1 extra url, got %d", len(rec.ExtraListingURLs))
	}
}

func TestPoctra_SearchNoResults(t *testing.T) {
	p := newTestPoctra(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<div>nothing found</div>")
	})

	_, err := p.Search(context.Background(), model.Vin(testVin))
	if !IsKind(err, KindNoResults) {
		t.Errorf("expected no-results error, got %v", err)
	}
}

func TestPoctra_SearchAmbiguous(t *testing.T) {
	p := newTestPoctra(t, func(w http.ResponseWriter, r *http.Request) {
		rows := ""
		for i := 0; i < 4; i++ {
			rows += poctraRow(fmt.Sprintf("/lot/%d", i), "IAAI Stock no: 12345678")
		}
		fmt.Fprint(w, "<table>"+rows+"</table>")
	})

	_, err := p.Search(context.Background(), model.Vin(testVin))
	if !IsKind(err, KindAmbiguous) {
		t.Errorf("expected ambiguous error, got %v", err)
	}
}

func TestPoctra_ImageInfoDelegates(t *testing.T) {
	p := NewPoctra("", 5*time.Second, zap.NewNop())
	_, err := p.ImageInfo(context.Background(), "12345678")
	if !IsKind(err, KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
