package salvage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// Bidfax is the archive-B adapter. Its search endpoint requires a
// short-lived token acquired through the bot-challenge sub-protocol in
// challenge.go; the token is used once and discarded.
type Bidfax struct {
	baseURL string
	client  *http.Client
	browser ChallengeBrowser
	poller  TokenPoller
	logger  *zap.Logger
}

// NewBidfax creates the Bidfax adapter. baseURL overrides the production
// endpoint in tests.
func NewBidfax(baseURL string, timeout time.Duration, browser ChallengeBrowser, poller TokenPoller, logger *zap.Logger) *Bidfax {
	if baseURL == "" {
		baseURL = "https://en.bidfax.info"
	}
	client := newHTTPClient(timeout)
	// A 301 from the search endpoint signals an invalid token, and must be
	// observed rather than followed.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Bidfax{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		browser: browser,
		poller:  poller,
		logger:  logger,
	}
}

func (b *Bidfax) Source() model.Source { return model.SourceBidfax }

const bidfaxAmbiguityLimit = 3

// Search acquires a challenge token, then runs the tokened search query.
// The query-parameter set (do/subaction/story/token2/action2) is the
// site's wire contract.
func (b *Bidfax) Search(ctx context.Context, vin model.Vin) (*model.ListingRecord, error) {
	token, err := b.poller.AcquireToken(ctx, b.browser, b.baseURL, "token2")
	if err != nil {
		return nil, challengeErr(model.SourceBidfax, err)
	}

	q := url.Values{}
	q.Set("do", "search")
	q.Set("subaction", "search")
	q.Set("story", vin.String())
	q.Set("token2", token)
	q.Set("action2", "search_action")
	searchURL := b.baseURL + "/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, newErr(KindServer, model.SourceBidfax, "search", err)
	}
	resp, err := doRequest(b.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourceBidfax, "search", err)
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, newErr(KindServer, model.SourceBidfax, "search", err)
	}
	if resp.StatusCode == http.StatusMovedPermanently {
		// Moved Permanently comes back when the token is missing or
		// expired; the user has to pass the check by hand.
		b.logger.Info("bidfax rejected the challenge token")
		return nil, newErr(KindBotChallenge, model.SourceBidfax, "search", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourceBidfax, Stage: "search", Status: resp.StatusCode}
	}

	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, newErr(KindParse, model.SourceBidfax, "search", err)
	}

	// Result cards carry both "thumbnail" and "offer" classes.
	var cards []*html.Node
	for _, n := range elementsByClass(doc, "thumbnail") {
		if hasClass(n, "offer") {
			cards = append(cards, n)
		}
	}
	if len(cards) == 0 {
		return nil, newErr(KindNoResults, model.SourceBidfax, "search", nil)
	}
	if len(cards) > bidfaxAmbiguityLimit {
		return nil, newErr(KindAmbiguous, model.SourceBidfax, "search",
			fmt.Errorf("%d cards", len(cards)))
	}

	card := cards[0]
	var listingURL string
	for _, cap := range elementsByClass(card, "caption") {
		if href := firstAnchorHref(cap); href != "" {
			listingURL = href
			break
		}
	}
	if listingURL == "" {
		return nil, newErr(KindParse, model.SourceBidfax, "search",
			fmt.Errorf("result card carried no listing link"))
	}
	if base, err := url.Parse(b.baseURL + "/"); err == nil {
		if rel, err := url.Parse(listingURL); err == nil {
			listingURL = base.ResolveReference(rel).String()
		}
	}

	rec := &model.ListingRecord{
		Source:     model.SourceBidfax,
		ListingURL: listingURL,
	}

	// Yard and lot number are nice-to-have on the result card; the
	// listing URL alone is still a usable archive record.
	for _, span := range elementsByClass(card, "short-storyup") {
		if yard := yardFromString(innerText(span)); yard != "" {
			rec.ImageSource = yard
			break
		}
	}
	for _, span := range elementsByClass(card, "short-story") {
		if lot := eightDigitPattern.FindString(innerText(span)); lot != "" {
			rec.LotNumber = lot
			break
		}
	}

	b.logger.Debug("bidfax search hit",
		zap.String("vin", vin.String()),
		zap.String("listing", rec.ListingURL),
		zap.String("lot", rec.LotNumber),
	)
	return rec, nil
}

// ScrapeListing reads the info box of an open Bidfax listing page.
func (b *Bidfax) ScrapeListing(doc *html.Node, pageURL string) (*model.ListingRecord, error) {
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
			}
			return pt
		},
		visibleTextStrategy(""),
		metaTagStrategy(""),
		imageURLStrategy(),
	}
	return runStrategies(model.SourceBidfax, strategies, doc, pageURL)
}

// ImageInfo is not available on the archive itself; see Poctra.ImageInfo.
func (b *Bidfax) ImageInfo(ctx context.Context, lotNumber string) ([]model.ImageDescriptor, error) {
	return nil, newErr(KindValidation, model.SourceBidfax, "image-info",
		fmt.Errorf("archive listings delegate image retrieval to the originating yard"))
}
