package salvage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// Poctra is the archive-A adapter. Poctra mirrors closed Copart and IAAI
// listings; a hit tells us which primary yard held the vehicle and under
// what lot number, and image retrieval is delegated to that yard's adapter.
type Poctra struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewPoctra creates the Poctra adapter. baseURL overrides the production
// endpoint in tests; pass "" for the real site.
func NewPoctra(baseURL string, timeout time.Duration, logger *zap.Logger) *Poctra {
	if baseURL == "" {
		baseURL = "https://poctra.com"
	}
	return &Poctra{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newHTTPClient(timeout),
		logger:  logger,
	}
}

func (p *Poctra) Source() model.Source { return model.SourcePoctra }

// poctraAmbiguityLimit: more rows than this and the search result is not
// trusted (the site fuzzy-matches partial VINs).
const poctraAmbiguityLimit = 3

// Search posts the archive's ajax search form. The body is form-encoded
// with fixed q/by/asc/page fields; this is the site's wire contract.
func (p *Poctra) Search(ctx context.Context, vin model.Vin) (*model.ListingRecord, error) {
	form := url.Values{}
	form.Set("q", vin.String())
	form.Set("by", "")
	form.Set("asc", "")
	form.Set("page", "1")

	searchURL := p.baseURL + "/search/ajax"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newErr(KindServer, model.SourcePoctra, "search", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := doRequest(p.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourcePoctra, "search", err)
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, newErr(KindServer, model.SourcePoctra, "search", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourcePoctra, Stage: "search", Status: resp.StatusCode}
	}

	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, newErr(KindParse, model.SourcePoctra, "search", err)
	}

	rows := elementsByClass(doc, "clickable-row")
	if len(rows) == 0 {
		return nil, newErr(KindNoResults, model.SourcePoctra, "search", nil)
	}
	if len(rows) > poctraAmbiguityLimit {
		return nil, newErr(KindAmbiguous, model.SourcePoctra, "search",
			fmt.Errorf("%d rows", len(rows)))
	}

	base, _ := url.Parse(searchURL)
	var listingURLs []string
	var lots []string
	var yard model.Source
	for _, row := range rows {
		href := firstAnchorHref(row)
		if href == "" {
			continue
		}
		if rel, err := url.Parse(href); err == nil {
			href = base.ResolveReference(rel).String()
		}
		listingURLs = append(listingURLs, href)

		text := innerText(row)
		lots = append(lots, eightDigitPattern.FindString(text))
		if yard == "" {
			yard = yardFromString(text)
		}
	}
	if len(listingURLs) == 0 {
		p.logger.Debug("poctra rows carried no listing links")
		return nil, newErr(KindParse, model.SourcePoctra, "search",
			fmt.Errorf("result rows carried no listing links"))
	}

	last := len(listingURLs) - 1
	rec := &model.ListingRecord{
		Source:           model.SourcePoctra,
		ImageSource:      yard,
		LotNumber:        lots[last],
		ListingURL:       listingURLs[last],
		ExtraListingURLs: listingURLs[:last],
	}
	if !rec.Usable() {
		return nil, newErr(KindParse, model.SourcePoctra, "search",
			fmt.Errorf("result carried neither lot number nor listing url"))
	}
	return rec, nil
}

// poctraHeadlinePattern reads the listing page headline: "Lot no" pages
// mirror Copart, "Stock no" pages mirror IAAI.
var poctraHeadlinePattern = regexp.MustCompile(`(?i)(Lot|Stock)\s+no:?\s*(\d+)`)

// ScrapeListing extracts the lot number and originating yard from an open
// Poctra listing page. The info grid in #aside is tried first, then the
// page headline, then meta tags.
func (p *Poctra) ScrapeListing(doc *html.Node, pageURL string) (*model.ListingRecord, error) {
	strategies := []extractionStrategy{
		func(d *html.Node, _ string) partialListing {
			aside := elementByID(d, "aside")
			if aside == nil {
				return partialListing{}
			}
			text := innerText(aside)
			pt := partialListing{source: yardFromString(text)}
			if m := lotTextPattern.FindStringSubmatch(text); m != nil {
				pt.lotNumber = m[1]
			} else if m := bareLotPattern.FindString(text); m != "" {
				pt.lotNumber = m
			}
			return pt
		},
		func(d *html.Node, _ string) partialListing {
			for _, h := range elementsByTag(d, "h2") {
				m := poctraHeadlinePattern.FindStringSubmatch(innerText(h))
				if m == nil {
					continue
				}
				lot, err := model.ParseLotNumber(m[2])
				if err != nil {
					continue
				}
				// "Lot" numbers are Copart's vocabulary, "Stock"
				// numbers IAAI's.
				yard := model.SourceCopart
				if strings.EqualFold(m[1], "stock") {
					yard = model.SourceIAAI
				}
				return partialListing{lotNumber: lot, source: yard}
			}
			return partialListing{}
		},
		metaTagStrategy(""),
		imageURLStrategy(),
	}
	return runStrategies(model.SourcePoctra, strategies, doc, pageURL)
}

// ImageInfo is not available on the archive itself; images are fetched
// from the originating yard named by the listing record.
func (p *Poctra) ImageInfo(ctx context.Context, lotNumber string) ([]model.ImageDescriptor, error) {
	return nil, newErr(KindValidation, model.SourcePoctra, "image-info",
		fmt.Errorf("archive listings delegate image retrieval to the originating yard"))
}
