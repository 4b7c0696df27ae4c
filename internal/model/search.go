package model

import "time"

// SearchRecord is one row of the search history kept for diagnostics:
// which VIN was looked up, where it resolved, and how long it took.
type SearchRecord struct {
	ID         int64     `db:"id"`
	Vin        string    `db:"vin"`
	Source     string    `db:"source"`
	LotNumber  string    `db:"lot_number"`
	ListingURL string    `db:"listing_url"`
	Success    bool      `db:"success"`
	ErrorKind  string    `db:"error_kind"`
	DurationMs int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}
