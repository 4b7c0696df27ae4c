package salvage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// The archive-B site fronts its search endpoint with a bot check that
// issues short-lived tokens through the browser: loading the home page and
// submitting the search form redirects to a URL carrying the token as a
// query parameter. The token acquisition sub-protocol here opens a hidden
// browsing context, triggers that probe submission, polls the navigation
// state until the token shows up, and hands the token back for exactly one
// search request. Tokens are deliberately not cached across calls; validity
// is only minutes and a stale token just re-triggers the challenge.

// ChallengeSession is one hidden browsing context on the guarded site.
type ChallengeSession interface {
	// TriggerProbe submits the deterministic probe query.
	TriggerProbe(ctx context.Context) error
	// Location returns the session's current navigation URL.
	Location(ctx context.Context) (string, error)
	// Close tears the context down. Always called, even on failure.
	Close() error
}

// ChallengeBrowser opens hidden browsing contexts. The production
// implementation is HTTP-backed; tests substitute a scripted fake.
type ChallengeBrowser interface {
	Open(ctx context.Context, homeURL string) (ChallengeSession, error)
}

// TokenPoller drives the acquisition loop with a fixed interval and a
// bounded attempt count, so both timeout and cancellation are first-class.
type TokenPoller struct {
	Interval    time.Duration
	MaxAttempts int
}

// AcquireToken runs the full sub-protocol: open, probe, poll for the named
// query parameter, close. It never blocks longer than
// Interval*MaxAttempts past the probe.
func (tp TokenPoller) AcquireToken(ctx context.Context, browser ChallengeBrowser, homeURL, param string) (string, error) {
	session, err := browser.Open(ctx, homeURL)
	if err != nil {
		return "", fmt.Errorf("opening challenge session: %w", err)
	}
	defer session.Close()

	if err := session.TriggerProbe(ctx); err != nil {
		return "", fmt.Errorf("triggering probe: %w", err)
	}

	ticker := time.NewTicker(tp.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < tp.MaxAttempts; attempt++ {
		loc, err := session.Location(ctx)
		if err != nil {
			return "", fmt.Errorf("reading navigation state: %w", err)
		}
		if tok := tokenFromURL(loc, param); tok != "" {
			return tok, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", fmt.Errorf("token %q did not appear within %d attempts", param, tp.MaxAttempts)
}

func tokenFromURL(raw, param string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get(param)
}

// httpChallengeSession is the HTTP-backed session: the probe is a GET of
// the home page's search form action, and Location is wherever the probe
// response ended up.
type httpChallengeSession struct {
	client   *http.Client
	homeURL  string
	location string
}

func (s *httpChallengeSession) TriggerProbe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.homeURL, nil)
	if err != nil {
		return err
	}
	resp, err := doRequest(s.client, req)
	if err != nil {
		return err
	}
	raw, err := readBody(resp)
	if err != nil {
		return err
	}

	// The token lands in the alternate-link URL once the site accepts the
	// probe; mirror the page's own submission by following the form.
	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	for _, link := range elementsByTag(doc, "link") {
		if attrVal(link, "rel") == "alternate" {
			s.location = attrVal(link, "href")
			return nil
		}
	}
	s.location = resp.Request.URL.String()
	return nil
}

func (s *httpChallengeSession) Location(ctx context.Context) (string, error) {
	return s.location, nil
}

func (s *httpChallengeSession) Close() error { return nil }

// HTTPChallengeBrowser opens HTTP-backed challenge sessions. It handles
// the common case where the site publishes the tokened URL in the page
// head; anything needing real script execution surfaces as a bot
// challenge for manual completion instead.
type HTTPChallengeBrowser struct {
	Client *http.Client
}

func (b *HTTPChallengeBrowser) Open(ctx context.Context, homeURL string) (ChallengeSession, error) {
	client := b.Client
	if client == nil {
		client = newHTTPClient(30 * time.Second)
	}
	return &httpChallengeSession{client: client, homeURL: homeURL}, nil
}

// challengeErr wraps a token-acquisition failure as a bot challenge for
// the named site.
func challengeErr(site model.Source, err error) *Error {
	return &Error{Kind: KindBotChallenge, Site: site, Stage: "token", Err: err}
}
