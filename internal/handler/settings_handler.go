package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/model"
	"github.com/vinpix/vinpix/internal/storage"
)

// SettingsHandler reads and updates the per-site search toggles.
type SettingsHandler struct {
	settings storage.SettingsRepository
	logger   *zap.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings storage.SettingsRepository, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// Get returns the effective settings (stored values over defaults).
// Route: GET /api/v1/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settings.Load(c.Request.Context())
	if err != nil {
		h.logger.Error("loading settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading settings"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// Patch applies a partial update. Flags absent from the body keep their
// stored (or default) value.
// Route: PATCH /api/v1/settings
func (h *SettingsHandler) Patch(c *gin.Context) {
	var patch model.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}

	merged, err := h.settings.Patch(c.Request.Context(), patch)
	if err != nil {
		h.logger.Error("saving settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving settings"})
		return
	}
	c.JSON(http.StatusOK, merged)
}
