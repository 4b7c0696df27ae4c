// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/bus"
	"github.com/vinpix/vinpix/internal/config"
	"github.com/vinpix/vinpix/internal/handler"
	"github.com/vinpix/vinpix/internal/middleware"
	"github.com/vinpix/vinpix/internal/service"
	"github.com/vinpix/vinpix/internal/storage"
)

// Deps collects everything the routes need. Dependencies are passed
// explicitly — no DI container, no magic.
type Deps struct {
	Vehicles *service.VehicleService
	Settings storage.SettingsRepository
	Searches storage.SearchRepository
	Bus      *bus.Bus
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	vehicleHandler := handler.NewVehicleHandler(deps.Vehicles, logger)
	settingsHandler := handler.NewSettingsHandler(deps.Settings, logger)
	historyHandler := handler.NewHistoryHandler(deps.Searches, logger)
	feedbackHandler := handler.NewFeedbackHandler(deps.Bus,
		middleware.OriginAllowed(cfg.CORS.AllowedOrigins), logger)

	// Public endpoint (no middleware)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		api.POST("/search", vehicleHandler.Search)
		api.POST("/scrape", vehicleHandler.Scrape)
		api.POST("/download", vehicleHandler.Download)
		api.GET("/settings", settingsHandler.Get)
		api.PATCH("/settings", settingsHandler.Patch)
		api.GET("/history", historyHandler.Recent)
		api.GET("/feedback", feedbackHandler.Serve)
	}
}
