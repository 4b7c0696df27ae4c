package salvage

import (
	"context"
	"encoding/json"
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

// IAAI is the primary-B site adapter. IAAI serves full-resolution photos
// through a deep-zoom tile server, so its image descriptors are TiledImage
// values that the stitcher reassembles. Walkaround and panorama assets live
// on the Spincar CDN behind a second metadata request.
type IAAI struct {
	baseURL    string // search + image-dimension endpoints
	tileURL    string // deep-zoom tile server
	spincarURL string // spincar metadata API
	client     *http.Client
	logger     *zap.Logger
}

// iaaiTileSize is the fixed deep-zoom tile edge in pixels, matching the
// tilesize parameter the tile server expects.
const iaaiTileSize = 250

// iaaiZoomLevel is the deep-zoom level fetched. Level 13 returns an image
// larger than the advertised W/H; level 12 slightly smaller, which the
// stitched canvas absorbs.
const iaaiZoomLevel = 12

// NewIAAI creates the IAAI adapter. Empty URLs select the production
// endpoints.
func NewIAAI(baseURL, tileURL, spincarURL string, timeout time.Duration, logger *zap.Logger) *IAAI {
	if baseURL == "" {
		baseURL = "https://www.iaai.com"
	}
	if tileURL == "" {
		tileURL = "https://anvis.iaai.com/deepzoom"
	}
	if spincarURL == "" {
		spincarURL = "https://api.spincar.com"
	}
	return &IAAI{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tileURL:    tileURL,
		spincarURL: strings.TrimSuffix(spincarURL, "/"),
		client:     newHTTPClient(timeout),
		logger:     logger,
	}
}

func (i *IAAI) Source() model.Source { return model.SourceIAAI }

var (
	iaaiListingURLPattern = regexp.MustCompile(`(?i)(itemid|vehicledetails)`)
	eightDigitPattern     = regexp.MustCompile(`\d{8}`)
)

// Search hits the VIN search endpoint and watches where it redirects.
// IAAI answers a unique VIN match with a redirect straight to the listing
// page; landing back on the search page means no results.
func (i *IAAI) Search(ctx context.Context, vin model.Vin) (*model.ListingRecord, error) {
	searchURL := i.baseURL + "/Search?SearchVIN=" + url.QueryEscape(vin.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "search", err)
	}

	resp, err := doRequest(i.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "search", err)
	}
	if _, err := readBody(resp); err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "search", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourceIAAI, Stage: "search", Status: resp.StatusCode}
	}

	finalURL := resp.Request.URL.String()
	if finalURL == searchURL || !iaaiListingURLPattern.MatchString(finalURL) {
		return nil, newErr(KindNoResults, model.SourceIAAI, "search", nil)
	}

	lot := eightDigitPattern.FindString(finalURL)
	if lot == "" {
		return nil, newErr(KindParse, model.SourceIAAI, "search",
			fmt.Errorf("listing url %q carries no stock number", finalURL))
	}

	i.logger.Debug("iaai search hit",
		zap.String("vin", vin.String()),
		zap.String("lot", lot),
	)
	return &model.ListingRecord{
		Source:      model.SourceIAAI,
		ImageSource: model.SourceIAAI,
		LotNumber:   lot,
		ListingURL:  finalURL,
	}, nil
}

// iaaiProductDetails mirrors the embedded JSON blob on listing pages. Two
// shapes have been observed in the wild; either may carry the stock number.
type iaaiProductDetails struct {
	VehicleDetailsViewModel struct {
		StockNo string `json:"StockNo"`
	} `json:"VehicleDetailsViewModel"`
	AuctionInformation struct {
		StockNumber string `json:"stockNumber"`
	} `json:"auctionInformation"`
}

// ScrapeListing extracts the stock number from an open IAAI listing page.
// The structured #ProductDetailsVM JSON blob is authoritative; text and
// meta scans back it up.
func (i *IAAI) ScrapeListing(doc *html.Node, pageURL string) (*model.ListingRecord, error) {
	strategies := []extractionStrategy{
		func(d *html.Node, _ string) partialListing {
			el := elementByID(d, "ProductDetailsVM")
			if el == nil {
				return partialListing{}
			}
			var details iaaiProductDetails
			if err := json.Unmarshal([]byte(innerText(el)), &details); err != nil {
				return partialListing{}
			}
			stock := details.VehicleDetailsViewModel.StockNo
			if stock == "" {
				stock = details.AuctionInformation.StockNumber
			}
			if lot, err := model.ParseLotNumber(stock); err == nil {
				return partialListing{lotNumber: lot, source: model.SourceIAAI}
			}
			return partialListing{}
		},
		visibleTextStrategy(model.SourceIAAI),
		metaTagStrategy(model.SourceIAAI),
	}
	return runStrategies(model.SourceIAAI, strategies, doc, pageURL)
}

// iaaiDimensions mirrors GetJsonImageDimensions. Keys describe deep-zoom
// images; Image360Url, when present, points into the Spincar viewer.
type iaaiDimensions struct {
	Keys []struct {
		K string `json:"K"`
		W int    `json:"W"`
		H int    `json:"H"`
	} `json:"keys"`
	Image360URL string `json:"Image360Url"`
}

// ImageInfo fetches the deep-zoom key list for a stock number, plus any
// Spincar walkaround/panorama assets. An empty response means the listing
// simply has no images; that is not an error.
func (i *IAAI) ImageInfo(ctx context.Context, lotNumber string) ([]model.ImageDescriptor, error) {
	jsonArg, _ := json.Marshal(map[string]string{"stockNumber": lotNumber})
	infoURL := i.baseURL + "/Images/GetJsonImageDimensions?json=" + url.QueryEscape(string(jsonArg))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "image-info", err)
	}
	resp, err := doRequest(i.client, req)
	if err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "image-info", err)
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, newErr(KindServer, model.SourceIAAI, "image-info", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindServer, Site: model.SourceIAAI, Stage: "image-info", Status: resp.StatusCode}
	}
	if len(raw) == 0 {
		// Zero images available.
		return nil, nil
	}

	var dims iaaiDimensions
	if err := json.Unmarshal(raw, &dims); err != nil {
		return nil, newErr(KindParse, model.SourceIAAI, "image-info", err)
	}

	var out []model.ImageDescriptor
	for _, k := range dims.Keys {
		if k.K == "" || k.W <= 0 || k.H <= 0 {
			continue
		}
		out = append(out, model.TiledImage{
			Key:      k.K,
			Width:    k.W,
			Height:   k.H,
			TileSize: iaaiTileSize,
		})
	}

	if dims.Image360URL != "" {
		bonus, err := i.spincarDescriptors(ctx, dims.Image360URL)
		if err != nil {
			// Bonus assets degrade silently; hero images still download.
			i.logger.Warn("spincar lookup failed", zap.Error(err))
		} else {
			out = append(out, bonus...)
		}
	}

	return out, nil
}

// TileURL builds the deep-zoom tile request for one grid cell. This is the
// tile server's wire contract.
func (i *IAAI) TileURL(key string, x, y int) string {
	u, _ := url.Parse(i.tileURL)
	q := u.Query()
	q.Set("imageKey", key)
	q.Set("level", fmt.Sprint(iaaiZoomLevel))
	q.Set("x", fmt.Sprint(x))
	q.Set("y", fmt.Sprint(y))
	q.Set("overlap", "0")
	q.Set("tilesize", fmt.Sprint(iaaiTileSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchTile downloads one deep-zoom tile.
func (i *IAAI) FetchTile(ctx context.Context, key string, x, y int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.TileURL(key, x, y), nil)
	if err != nil {
		return nil, err
	}
	resp, err := doRequest(i.client, req)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile %s (%d,%d): http %d", key, x, y, resp.StatusCode)
	}
	return raw, nil
}

// spincarInfo mirrors the fields of the Spincar spin payload the adapter
// consumes.
type spincarInfo struct {
	CDNImagePrefix string `json:"cdn_image_prefix"`
	Info           struct {
		Options struct {
			NumImgEC int  `json:"numImgEC"`
			HasPano  bool `json:"has_pano"`
		} `json:"options"`
	} `json:"info"`
}

// spincarFaceNames are the six cube-face file names Spincar publishes, in
// front/left/back/right/up/down order.
var spincarFaceNames = []string{"pano_f", "pano_l", "pano_b", "pano_r", "pano_u", "pano_d"}

var spincarPathPattern = regexp.MustCompile(`com/(.*)`)

// spincarDescriptors turns a Spincar viewer URL into walkaround and
// panorama descriptors by querying the Spincar API.
func (i *IAAI) spincarDescriptors(ctx context.Context, viewerURL string) ([]model.ImageDescriptor, error) {
	m := spincarPathPattern.FindStringSubmatch(viewerURL)
	if m == nil {
		return nil, fmt.Errorf("unrecognized spincar url %q", viewerURL)
	}
	apiURL := i.spincarURL + "/spin/" + m[1]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := doRequest(i.client, req)
	if err != nil {
		return nil, err
	}
	raw, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spincar: http %d", resp.StatusCode)
	}

	var info spincarInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("spincar: %w", err)
	}
	if info.CDNImagePrefix == "" {
		return nil, nil
	}
	prefix := info.CDNImagePrefix
	if strings.HasPrefix(prefix, "//") {
		prefix = "https:" + prefix
	}

	var out []model.ImageDescriptor
	if n := info.Info.Options.NumImgEC; n > 0 {
		out = append(out, model.FrameSequence{
			URLTemplate: prefix + "ec/0-%d.jpg",
			FrameCount:  n,
		})
	}
	if info.Info.Options.HasPano {
		faces := make(map[string]string, len(spincarFaceNames))
		for _, name := range spincarFaceNames {
			faces[name] = prefix + "pano/" + name + ".jpg"
		}
		out = append(out, model.CubeFaceSet{FaceURLs: faces})
	}
	return out, nil
}
