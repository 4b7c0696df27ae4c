// Package salvage implements the site adapters: one per supported salvage
// or archive site, each exposing the same capability surface (VIN search,
// page scrape, image-descriptor retrieval).
//
// Every adapter classifies its own failures into the closed Kind taxonomy
// before returning; the resolver never sees a raw transport error.
package salvage

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// Adapter is the uniform capability of one site. Implementations are
// stateless aside from their HTTP client and base URLs, so one instance
// serves any number of sequential calls.
type Adapter interface {
	// Source identifies the site.
	Source() model.Source

	// Search runs a VIN search against the live site and normalizes the
	// response. Errors are always *Error values.
	Search(ctx context.Context, vin model.Vin) (*model.ListingRecord, error)

	// ScrapeListing extracts a listing record from an already-rendered
	// page document. Used when the user has the listing open; no network
	// calls are made.
	ScrapeListing(doc *html.Node, pageURL string) (*model.ListingRecord, error)

	// ImageInfo retrieves the raw image descriptors for a lot number.
	// A listing with zero images yields an empty slice and nil error.
	ImageInfo(ctx context.Context, lotNumber string) ([]model.ImageDescriptor, error)
}

// userAgent is sent on every outbound request. The sites gate some
// endpoints on a browser-looking agent string.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

// newHTTPClient builds the client adapters share. Redirects are followed
// (IAAI search depends on observing the final redirected URL via
// Response.Request.URL).
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// doRequest issues req with the standard headers applied and returns the
// response. The caller owns the body.
func doRequest(client *http.Client, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	return client.Do(req)
}

// readBody reads at most 20MB of the response body. The site APIs return
// modest payloads; the limit guards against a misbehaving endpoint.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}
