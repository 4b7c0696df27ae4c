package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vinpix/vinpix/internal/model"
)

// settingsKey is the row under which the site-selection record lives.
const settingsKey = "sites"

// SettingsRepository persists the site-selection settings. Only the
// interface is exported; the SQLite implementation stays unexported.
type SettingsRepository interface {
	// Load returns the stored settings overlaid on defaults. A missing or
	// partial record yields defaults for the absent flags.
	Load(ctx context.Context) (model.Settings, error)
	// Patch overlays a partial update on the stored record and persists
	// the merged result, which is also returned.
	Patch(ctx context.Context, patch model.SettingsPatch) (model.Settings, error)
}

type sqliteSettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a SQLite-backed SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &sqliteSettingsRepository{db: db}
}

func (r *sqliteSettingsRepository) Load(ctx context.Context) (model.Settings, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, "SELECT value FROM settings WHERE key = ?", settingsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	// Stored records may predate newer flags; decode as a patch so absent
	// flags keep their defaults instead of reading as false.
	var patch model.SettingsPatch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return model.Settings{}, fmt.Errorf("decoding settings record: %w", err)
	}
	return patch.Apply(model.DefaultSettings()), nil
}

func (r *sqliteSettingsRepository) Patch(ctx context.Context, patch model.SettingsPatch) (model.Settings, error) {
	current, err := r.Load(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	merged := patch.Apply(current)

	raw, err := json.Marshal(merged)
	if err != nil {
		return model.Settings{}, fmt.Errorf("encoding settings record: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, settingsKey, string(raw))
	if err != nil {
		return model.Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	return merged, nil
}
