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

// tokenBrowser hands back a session that already carries the token.
func tokenBrowser(token string) ChallengeBrowser {
	return &scriptedBrowser{session: &scriptedSession{
		locations: []string{"https://example.com/?token2=" + token},
	}}
}

func newTestBidfax(t *testing.T, handler http.HandlerFunc) *Bidfax {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	poller := TokenPoller{Interval: time.Millisecond, MaxAttempts: 3}
	return NewBidfax(ts.URL, 5*time.Second, tokenBrowser("tok123"), poller, zap.NewNop())
}

const bidfaxCard = `
<div class="thumbnail offer">
  <div class="short-storyup">Auction: IAAI</div>
  <div class="caption"><a href="/iaai/99887766-some-car.html">2019 Car</a></div>
  <div class="short-story">Stock number: 99887766</div>
</div>`

func TestBidfax_SearchContract(t *testing.T) {
	b := newTestBidfax(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("do") != "search" || q.Get("subaction") != "search" || q.Get("action2") != "search_action" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("story") != testVin {
			t.Errorf("story = %q, want the vin", q.Get("story"))
		}
		if q.Get("token2") != "tok123" {
			t.Errorf("token2 = %q, want tok123", q.Get("token2"))
		}
		fmt.Fprint(w, "<html>"+bidfaxCard+"</html>")
	})

	rec, err := b.Search(context.Background(), model.Vin(testVin))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Source != model.SourceBidfax {
		t.Errorf("source = %s, want bidfax", rec.Source)
	}
	if rec.ImageSource != model.SourceIAAI {
		t.Errorf("image source = %s, want iaai", rec.ImageSource)
	}
	if rec.LotNumber != "99887766" {
		t.Errorf("lot = %s, want 99887766", rec.LotNumber)
	}
	if rec.ListingURL == "" {
		t.Error("expected a listing url")
	}
}

func TestBidfax_RedirectMeansBotChallenge(t *testing.T) {
	b := newTestBidfax(t, func(w http.ResponseWriter, r *http.Request) {
		// An expired or missing token bounces back to the home page.
		w.Header().Set("Location", "/")
		w.WriteHeader(http.StatusMovedPermanently)
	})

	_, err := b.Search(context.Background(), model.Vin(testVin))
	if !IsKind(err, KindBotChallenge) {
		t.Errorf("expected bot-challenge error, got %v", err)
	}
}

func TestBidfax_URLOnlyCardIsUsable(t *testing.T) {
	b := newTestBidfax(t, func(w http.ResponseWriter, r *http.Request) {
		// No yard or stock number on the card, just the link.
		fmt.Fprint(w, `<html><div class="thumbnail offer">
			<div class="caption"><a href="/some/listing.html">2018 Car</a></div>
		</div></html>`)
	})

	rec, err := b.Search(context.Background(), model.Vin(testVin))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "" {
		t.Errorf("expected no lot number, got %q", rec.LotNumber)
	}
	if !rec.Usable() {
		t.Error("expected a url-only archive record to be usable")
	}
}

func TestBidfax_NoCardsMeansNoResults(t *testing.T) {
	b := newTestBidfax(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><p>nothing</p></html>")
	})

	_, err := b.Search(context.Background(), model.Vin(testVin))
	if !IsKind(err, KindNoResults) {
		t.Errorf("expected no-results error, got %v", err)
	}
}
