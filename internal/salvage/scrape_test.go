package salvage

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

func parseHTML(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc
}

func TestCopartScrape_LotDetailsWidget(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<div id="lot-details">
			<span class="lot-number">Lot # 12345678</span>
		</div>
	</body></html>`)

	c := NewCopart("", 5*time.Second, zap.NewNop())
	rec, err := c.ScrapeListing(doc, "https://www.copart.com/lot/12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "12345678" || rec.Source != model.SourceCopart {
		t.Errorf("record = %#v", rec)
	}
}

func TestCopartScrape_FallsBackToPageURL(t *testing.T) {
	doc := parseHTML(t, `<html><body><p>nothing useful</p></body></html>`)

	c := NewCopart("", 5*time.Second, zap.NewNop())
	rec, err := c.ScrapeListing(doc, "https://www.copart.com/lot/55667788?query=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "55667788" {
		t.Errorf("lot = %s, want 55667788", rec.LotNumber)
	}
}

func TestCopartScrape_NoLotAnywhere(t *testing.T) {
	doc := parseHTML(t, `<html><body><p>empty page</p></body></html>`)

	c := NewCopart("", 5*time.Second, zap.NewNop())
	_, err := c.ScrapeListing(doc, "https://www.copart.com/somewhere")
	if !IsKind(err, KindParse) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestIAAIScrape_ProductDetailsBlob(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<script id="ProductDetailsVM" type="application/json">
			{"VehicleDetailsViewModel":{"StockNo":"33445566"}}
		</script>
	</body></html>`)

	i := NewIAAI("", "", "", 5*time.Second, zap.NewNop())
	rec, err := i.ScrapeListing(doc, "https://www.iaai.com/VehicleDetails/33445566")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "33445566" || rec.Source != model.SourceIAAI {
		t.Errorf("record = %#v", rec)
	}
}

func TestIAAIScrape_VisibleStockText(t *testing.T) {
	doc := parseHTML(t, `<html><body>
		<span>Stock #: 77665544</span>
	</body></html>`)

	i := NewIAAI("", "", "", 5*time.Second, zap.NewNop())
	rec, err := i.ScrapeListing(doc, "https://www.iaai.com/somewhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LotNumber != "77665544" {
		t.Errorf("lot = %s, want 77665544", rec.LotNumber)
	}
}

func TestPoctraScrape_HeadlineNamesYard(t *testing.T) {
	cases := []struct {
		headline string
		yard     model.Source
	}{
		{"Lot no: 12345678", model.SourceCopart},
		{"Stock no: 12345678", model.SourceIAAI},
	}
	p := NewPoctra("", 5*time.Second, zap.NewNop())

	for _, tc := range cases {
		doc := parseHTML(t, `<html><body><h2>`+tc.headline+`</h2></body></html>`)
		rec, err := p.ScrapeListing(doc, "https://poctra.com/some/listing")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.headline, err)
		}
		if rec.LotNumber != "12345678" {
			t.Errorf("%s: lot = %s", tc.headline, rec.LotNumber)
		}
		if rec.ImageSource != tc.yard {
			t.Errorf("%s: image source = %s, want %s", tc.headline, rec.ImageSource, tc.yard)
		}
	}
}

func TestYardFromString(t *testing.T) {
	if got := yardFromString("sold at COPART auctions"); got != model.SourceCopart {
		t.Errorf("got %s, want copart", got)
	}
	if got := yardFromString("Auction: iaai"); got != model.SourceIAAI {
		t.Errorf("got %s, want iaai", got)
	}
	if got := yardFromString("no yard here"); got != "" {
		t.Errorf("got %s, want empty", got)
	}
}

func TestSiteFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want model.Source
		ok   bool
	}{
		{"https://www.copart.com/lot/55667788", model.SourceCopart, true},
		{"https://www.iaai.com/VehicleDetails/12345678", model.SourceIAAI, true},
		{"https://poctra.com/gb/some-listing", model.SourcePoctra, true},
		{"https://en.bidfax.info/ford/12345-listing.html", model.SourceBidfax, true},
		{"https://example.com/whatever", "", false},
		{"::not a url", "", false},
	}
	for _, tc := range cases {
		got, ok := SiteFromURL(tc.url)
		if got != tc.want || ok != tc.ok {
			t.Errorf("SiteFromURL(%q) = %s, %v; want %s, %v", tc.url, got, ok, tc.want, tc.ok)
		}
	}
}
