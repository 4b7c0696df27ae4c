package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/progress"
	"github.com/vinpix/vinpix/internal/resolver"
	"github.com/vinpix/vinpix/internal/salvage"
	"github.com/vinpix/vinpix/internal/service"
)

// VehicleHandler exposes the search and download flows over HTTP.
// Downloads run in the background: the endpoint answers as soon as the
// operation is accepted, and progress flows over the feedback socket.
type VehicleHandler struct {
	vehicles *service.VehicleService
	logger   *zap.Logger
}

// NewVehicleHandler creates a VehicleHandler.
func NewVehicleHandler(vehicles *service.VehicleService, logger *zap.Logger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, logger: logger}
}

type vinRequest struct {
	Vin string `json:"vin" binding:"required"`
}

// Search resolves a VIN through the site chain.
// Route: POST /api/v1/search  {"vin": "..."}
func (h *VehicleHandler) Search(c *gin.Context) {
	var req vinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vin is required"})
		return
	}

	rec, err := h.vehicles.Search(c.Request.Context(), req.Vin)
	if err != nil {
		h.writeError(c, req.Vin, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":           rec.Source,
		"lotNumber":        rec.LotNumber,
		"listingUrl":       rec.ListingURL,
		"extraListingUrls": rec.ExtraListingURLs,
	})
}

type scrapeRequest struct {
	URL  string `json:"url" binding:"required"`
	HTML string `json:"html" binding:"required"`
}

// Scrape extracts a listing from a page the client already has rendered.
// Route: POST /api/v1/scrape  {"url": "...", "html": "..."}
func (h *VehicleHandler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and html are required"})
		return
	}

	rec, err := h.vehicles.Scrape(c.Request.Context(), req.URL, req.HTML)
	if err != nil {
		switch {
		case salvage.IsKind(err, salvage.KindValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized listing url"})
		case salvage.IsKind(err, salvage.KindParse):
			c.JSON(http.StatusNotFound, gin.H{"error": "no listing found on this page"})
		default:
			h.logger.Error("scrape failed", zap.String("url", req.URL), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "scrape failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":      rec.Source,
		"imageSource": rec.ImageSource,
		"lotNumber":   rec.LotNumber,
		"listingUrl":  rec.ListingURL,
	})
}

// Download resolves a VIN and saves every image the listing offers.
// The heavy lifting happens on a background goroutine; progress and the
// final outcome are published on the feedback socket.
// Route: POST /api/v1/download  {"vin": "..."}
func (h *VehicleHandler) Download(c *gin.Context) {
	var req vinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vin is required"})
		return
	}

	go func() {
		// Detached from the request context on purpose: the download
		// outlives the HTTP exchange.
		if err := h.vehicles.Download(context.Background(), req.Vin); err != nil {
			h.logger.Warn("download failed",
				zap.String("vin", req.Vin),
				zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// writeError maps pipeline failures onto HTTP statuses.
func (h *VehicleHandler) writeError(c *gin.Context, vin string, err error) {
	var chainErr *resolver.ChainError
	switch {
	case errors.Is(err, progress.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "another operation is in progress"})
	case salvage.IsKind(err, salvage.KindValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vin"})
	case errors.As(err, &chainErr):
		c.JSON(http.StatusNotFound, gin.H{"error": "no site matched this vin"})
	default:
		h.logger.Error("search failed", zap.String("vin", vin), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
	}
}
