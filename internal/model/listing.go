package model

// Source identifies which site produced a listing. The string values match
// the site names used in listing URLs and download folder names.
type Source string

const (
	SourceCopart Source = "copart" // primary
	SourceIAAI   Source = "iaai"   // primary
	SourcePoctra Source = "poctra" // archive
	SourceBidfax Source = "bidfax" // archive
)

// IsArchive reports whether the source is a mirror/archive site. Archive
// listings may carry only a listing URL; the lot number can be absent.
func (s Source) IsArchive() bool {
	return s == SourcePoctra || s == SourceBidfax
}

// ListingRecord is the normalized result of a VIN search or page scrape.
// It lives for one resolution attempt; records are never cached across
// VIN queries.
type ListingRecord struct {
	Source           Source
	LotNumber        string
	ListingURL       string
	ExtraListingURLs []string

	// ImageSource names the primary site that actually hosts the images.
	// For primary-site records it equals Source; archive records point at
	// copart or iaai when the archive page names the originating yard.
	ImageSource Source
}

// Usable reports whether the record carries enough information to proceed
// to image retrieval: a lot number, or for archive sources a listing URL.
func (r *ListingRecord) Usable() bool {
	if r.LotNumber != "" {
		return true
	}
	return r.Source.IsArchive() && r.ListingURL != ""
}
