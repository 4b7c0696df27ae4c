package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/storage"
)

// HistoryHandler serves the search history for diagnostics.
type HistoryHandler struct {
	searches storage.SearchRepository
	logger   *zap.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(searches storage.SearchRepository, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{searches: searches, logger: logger}
}

// Recent lists the most recent searches, newest first.
// Route: GET /api/v1/history?limit=50
func (h *HistoryHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-500"})
		return
	}

	recs, err := h.searches.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("listing history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing history"})
		return
	}

	total, err := h.searches.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("counting history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "counting history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"searches": recs,
	})
}
