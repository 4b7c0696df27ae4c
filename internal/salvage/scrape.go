package salvage

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/vinpix/vinpix/internal/model"
)

// SiteFromURL identifies which adapter owns a listing page URL by its
// hostname. Unknown hosts report false.
func SiteFromURL(pageURL string) (model.Source, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range []model.Source{model.SourceCopart, model.SourceIAAI, model.SourcePoctra, model.SourceBidfax} {
		if strings.Contains(host, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Page scraping runs a prioritized list of independent extraction
// strategies against an already-rendered document. The first strategy that
// yields both the lot number and the originating yard wins; otherwise
// partial results are combined across strategies (lot number from one,
// yard from another) before the scrape fails.

// partialListing is what one strategy managed to extract. Either field may
// be empty.
type partialListing struct {
	lotNumber string
	source    model.Source
}

func (p partialListing) complete() bool {
	return p.lotNumber != "" && p.source != ""
}

// extractionStrategy is a pure function over the parsed page; it never
// touches the network, which keeps every strategy unit-testable with HTML
// fixtures.
type extractionStrategy func(doc *html.Node, pageURL string) partialListing

// runStrategies applies the strategies in priority order for the named
// scraped site and assembles a ListingRecord.
func runStrategies(site model.Source, strategies []extractionStrategy, doc *html.Node, pageURL string) (*model.ListingRecord, error) {
	var combined partialListing
	for _, strat := range strategies {
		p := strat(doc, pageURL)
		if p.complete() {
			combined = p
			break
		}
		if combined.lotNumber == "" {
			combined.lotNumber = p.lotNumber
		}
		if combined.source == "" {
			combined.source = p.source
		}
		if combined.complete() {
			break
		}
	}

	if combined.lotNumber == "" {
		return nil, newErr(KindParse, site, "scrape",
			fmt.Errorf("no strategy found a lot number"))
	}
	if combined.source == "" {
		combined.source = site
	}

	return &model.ListingRecord{
		Source:      site,
		ImageSource: combined.source,
		LotNumber:   combined.lotNumber,
		ListingURL:  pageURL,
	}, nil
}

var (
	// lotTextPattern matches "Lot # 12345678", "Stock No: 12345678" and
	// the other labelings the sites use in visible text and meta tags.
	lotTextPattern = regexp.MustCompile(`(?i)(?:lot|stock)\s*(?:number|no|#)?[:#\s]*(\d{8})`)
	// bareLotPattern is the low-confidence fallback: any 8-digit run.
	bareLotPattern = regexp.MustCompile(`\d{8}`)
	// yardPattern finds the originating yard name in free text or URLs.
	yardPattern = regexp.MustCompile(`(?i)(copart|iaai)`)
)

func yardFromString(s string) model.Source {
	m := yardPattern.FindString(s)
	switch strings.ToLower(m) {
	case "copart":
		return model.SourceCopart
	case "iaai":
		return model.SourceIAAI
	}
	return ""
}

// visibleTextStrategy scans the whole document text for a labeled lot
// number and a yard name.
func visibleTextStrategy(fallback model.Source) extractionStrategy {
	return func(doc *html.Node, _ string) partialListing {
		text := innerText(doc)
		p := partialListing{source: yardFromString(text)}
		if m := lotTextPattern.FindStringSubmatch(text); m != nil {
			p.lotNumber = m[1]
		}
		if p.source == "" {
			p.source = fallback
		}
		return p
	}
}

// metaTagStrategy inspects title and SEO/social meta tags; archive pages
// bury the lot number in og:title and description content.
func metaTagStrategy(fallback model.Source) extractionStrategy {
	return func(doc *html.Node, _ string) partialListing {
		var texts []string
		for _, t := range elementsByTag(doc, "title") {
			texts = append(texts, innerText(t))
		}
		for _, m := range elementsByTag(doc, "meta") {
			if c := attrVal(m, "content"); c != "" {
				texts = append(texts, c)
			}
		}
		var p partialListing
		for _, s := range texts {
			if p.lotNumber == "" {
				if m := lotTextPattern.FindStringSubmatch(s); m != nil {
					p.lotNumber = m[1]
				}
			}
			if p.source == "" {
				p.source = yardFromString(s)
			}
			if p.complete() {
				break
			}
		}
		if p.source == "" {
			p.source = fallback
		}
		return p
	}
}

// imageURLStrategy sniffs the yard out of cached-image URLs; the archive
// sites store their copies in per-yard directories.
func imageURLStrategy() extractionStrategy {
	return func(doc *html.Node, _ string) partialListing {
		var p partialListing
		for _, img := range elementsByTag(doc, "img") {
			for _, a := range []string{"src", "data-src"} {
				if src := attrVal(img, a); src != "" {
					if s := yardFromString(src); s != "" {
						p.source = s
						return p
					}
				}
			}
		}
		for _, link := range elementsByTag(doc, "link") {
			if attrVal(link, "itemprop") == "image" {
				if s := yardFromString(attrVal(link, "href")); s != "" {
					p.source = s
					return p
				}
			}
		}
		return p
	}
}
