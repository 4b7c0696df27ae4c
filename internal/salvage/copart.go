package salvage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// Copart is the primary-A site adapter. Searches go through Copart's public
// lot-search API; image descriptors come from the lotImages endpoint.
type Copart struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewCopart creates the Copart adapter. baseURL overrides the production
// endpoint in tests; pass "" for the real site.
func NewCopart(baseURL string, timeout time.Duration, logger *zap.Logger) *Copart {
	if baseURL == "" {
		baseURL = "https://www.copart.com"
	}
	return &Copart{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newHTTPClient(timeout),
		logger:  logger,
	}
}

func (c *Copart) Source() model.Source { return model.SourceCopart }

// ListingURL returns the public listing page for a lot number.
func (c *Copart) ListingURL(lotNumber string) string {
	return c.baseURL + "/lot/" + lotNumber
}

// copartSearchResponse mirrors the fields of the vin/search payload that
// the adapter consumes.
type copartSearchResponse struct {
	Data struct {
		Results struct {
			Content []struct {
				LotNumberStr string `json:"lotNumberStr"`
			} `json:"content"`
		} `json:"results"`
	} `json:"data"`
}

// copartAmbiguityLimit caps how many matches a VIN search may return before
// the result is considered too ambiguous to trust.
const copartAmbiguityLimit = 5

// Search posts the VIN filter query. The request body shape is Copart's
// wire contract and must not change:
// {"filter":{"MISC":["ps_vin_number:<vin>","sold_flag:false"]}}
func (c *Copart) Search(ctx context.Context, vin model.Vin) (*model.ListingRecord, error) {
	body, _ := json.Marshal(map[string]any{
		"filter": map[string][]string{
			"MISC": {
				"ps_vin_number:" + vin.String(),
				"sold_flag:false",
			},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/public/lots/vin/search", bytes.NewReader(body))
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "search", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := doRequest(c.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "search", err)
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "search", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourceCopart, Stage: "search", Status: resp.StatusCode}
	}

	var parsed copartSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newErr(KindParse, model.SourceCopart, "search", err)
	}

	content := parsed.Data.Results.Content
	if len(content) == 0 {
		return nil, newErr(KindNoResults, model.SourceCopart, "search", nil)
	}
	if len(content) > copartAmbiguityLimit {
		return nil, newErr(KindAmbiguous, model.SourceCopart, "search",
			fmt.Errorf("%d matches", len(content)))
	}

	// The last entry is the primary match; anything before it is kept as
	// an alternate.
	lots := make([]string, 0, len(content))
	for _, v := range content {
		if v.LotNumberStr != "" {
			lots = append(lots, v.LotNumberStr)
		}
	}
	if len(lots) == 0 {
		return nil, newErr(KindParse, model.SourceCopart, "search",
			fmt.Errorf("results carried no lot numbers"))
	}

	primary := lots[len(lots)-1]
	extras := make([]string, 0, len(lots)-1)
	for _, lot := range lots[:len(lots)-1] {
		extras = append(extras, c.ListingURL(lot))
	}

	c.logger.Debug("copart search hit",
		zap.String("vin", vin.String()),
		zap.String("lot", primary),
		zap.Int("extras", len(extras)),
	)
	return &model.ListingRecord{
		Source:           model.SourceCopart,
		ImageSource:      model.SourceCopart,
		LotNumber:        primary,
		ListingURL:       c.ListingURL(primary),
		ExtraListingURLs: extras,
	}, nil
}

var copartLotURLPattern = regexp.MustCompile(`copart\.com/lot/(\d+)`)

// ScrapeListing pulls the lot number out of an open Copart listing page.
// Strategies, in order: the lot-details widget, visible "Lot #" text, SEO
// meta tags, and finally the page URL itself.
func (c *Copart) ScrapeListing(doc *html.Node, pageURL string) (*model.ListingRecord, error) {
	strategies := []extractionStrategy{
		func(d *html.Node, _ string) partialListing {
			details := elementByID(d, "lot-details")
			if details == nil {
				return partialListing{}
			}
			for _, n := range elementsByClass(details, "lot-number") {
				if lot, err := model.ParseLotNumber(innerText(n)); err == nil {
					return partialListing{lotNumber: lot, source: model.SourceCopart}
				}
			}
			return partialListing{}
		},
		visibleTextStrategy(model.SourceCopart),
		metaTagStrategy(model.SourceCopart),
		func(_ *html.Node, url string) partialListing {
			if m := copartLotURLPattern.FindStringSubmatch(url); m != nil {
				if lot, err := model.ParseLotNumber(m[1]); err == nil {
					return partialListing{lotNumber: lot, source: model.SourceCopart}
				}
			}
			return partialListing{}
		},
	}
	return runStrategies(model.SourceCopart, strategies, doc, pageURL)
}

// copartImagesResponse mirrors the lotImages payload.
type copartImagesResponse struct {
	ReturnCode int `json:"returnCode"`
	Data       struct {
		ImagesList struct {
			FullImage []copartImageEntry `json:"FULL_IMAGE"`
			HighRes   []copartImageEntry `json:"HIGH_RESOLUTION_IMAGE"`
			Exterior  []copartImageEntry `json:"EXTERIOR_360"`
			Interior  []copartImageEntry `json:"INTERIOR_360"`
		} `json:"imagesList"`
	} `json:"data"`
}

type copartImageEntry struct {
	URL            string `json:"url"`
	SequenceNumber int    `json:"sequenceNumber"`
	FrameCount     int    `json:"frameCount"`
	HighRes        bool   `json:"highRes"`
}

// framesPattern matches the frame index segment of an EXTERIOR_360 URL
// (".../<key>_frames_0.jpg").
var framesPattern = regexp.MustCompile(`frames_\d+`)

// ImageInfo fetches the lotImages document and normalizes it. A non-JSON
// response is Copart's CAPTCHA interstitial and classifies as a bot
// challenge rather than a parse failure.
func (c *Copart) ImageInfo(ctx context.Context, lotNumber string) ([]model.ImageDescriptor, error) {
	url := fmt.Sprintf("%s/public/data/lotdetails/solr/lotImages/%s/USA", c.baseURL, lotNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "image-info", err)
	}

	resp, err := doRequest(c.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "image-info", err)
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, newErr(KindServer, model.SourceCopart, "image-info", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourceCopart, Stage: "image-info", Status: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		c.logger.Warn("copart served non-json image info, likely a captcha page",
			zap.String("content_type", ct))
		return nil, newErr(KindBotChallenge, model.SourceCopart, "image-info", nil)
	}

	var parsed copartImagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newErr(KindParse, model.SourceCopart, "image-info", err)
	}
	if parsed.ReturnCode != 1 {
		return nil, newErr(KindServer, model.SourceCopart, "image-info",
			fmt.Errorf("returnCode %d", parsed.ReturnCode))
	}

	list := parsed.Data.ImagesList
	var out []model.ImageDescriptor

	// Hero images: walk FULL_IMAGE and substitute the matching
	// HIGH_RESOLUTION_IMAGE (paired by sequence number) when one exists.
	highBySeq := make(map[int]string, len(list.HighRes))
	for _, h := range list.HighRes {
		highBySeq[h.SequenceNumber] = h.URL
	}
	for _, full := range list.FullImage {
		url := full.URL
		if full.HighRes {
			if high, ok := highBySeq[full.SequenceNumber]; ok {
				url = high
			}
		}
		if url != "" {
			out = append(out, model.DirectImage{URL: url})
		}
	}

	// Exterior 360: one frame URL with an embedded index; the rest of the
	// sequence is addressed by substituting the frame number.
	if len(list.Exterior) > 0 && list.Exterior[0].URL != "" && list.Exterior[0].FrameCount > 0 {
		e := list.Exterior[0]
		tmpl := framesPattern.ReplaceAllString(e.URL, "frames_%d")
		if strings.Contains(tmpl, "%d") {
			out = append(out, model.FrameSequence{URLTemplate: tmpl, FrameCount: e.FrameCount})
		}
	}

	// Interior 360: a single equirectangular photo.
	if len(list.Interior) > 0 && list.Interior[0].URL != "" {
		out = append(out, model.PanoramaImage{EquirectangularURL: list.Interior[0].URL})
	}

	return out, nil
}
