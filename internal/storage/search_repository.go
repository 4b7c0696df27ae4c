package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vinpix/vinpix/internal/model"
)

// ErrNotFound is returned when a requested record doesn't exist.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("record not found")

// SearchRepository persists the search history.
type SearchRepository interface {
	Create(ctx context.Context, rec *model.SearchRecord) error
	LatestByVin(ctx context.Context, vin string) (*model.SearchRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.SearchRecord, error)
	Count(ctx context.Context) (int64, error)
}

type sqliteSearchRepository struct {
	db *sqlx.DB
}

// NewSearchRepository creates a SQLite-backed SearchRepository.
func NewSearchRepository(db *sqlx.DB) SearchRepository {
	return &sqliteSearchRepository{db: db}
}

func (r *sqliteSearchRepository) Create(ctx context.Context, rec *model.SearchRecord) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO searches (vin, source, lot_number, listing_url, success, error_kind, duration_ms)
		VALUES (:vin, :source, :lot_number, :listing_url, :success, :error_kind, :duration_ms)
	`, rec)
	if err != nil {
		return fmt.Errorf("creating search record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

func (r *sqliteSearchRepository) LatestByVin(ctx context.Context, vin string) (*model.SearchRecord, error) {
	var rec model.SearchRecord
	err := r.db.GetContext(ctx, &rec,
		"SELECT * FROM searches WHERE vin = ? ORDER BY created_at DESC, id DESC LIMIT 1", vin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest search for %s: %w", vin, err)
	}
	return &rec, nil
}

func (r *sqliteSearchRepository) ListRecent(ctx context.Context, limit int) ([]model.SearchRecord, error) {
	var recs []model.SearchRecord
	err := r.db.SelectContext(ctx, &recs,
		"SELECT * FROM searches ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent searches: %w", err)
	}
	return recs, nil
}

func (r *sqliteSearchRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM searches")
	return count, err
}
