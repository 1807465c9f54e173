// Package api implements the dashboard's JSON endpoints.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jamesarrow/kpi-vet/internal/importer"
	"github.com/jamesarrow/kpi-vet/internal/store"
)

// Handler holds the API dependencies.
type Handler struct {
	store          *store.Store
	coordinator    *importer.Coordinator
	cache          *viewCache
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(st *store.Store, coordinator *importer.Coordinator, maxUploadBytes int64, log zerolog.Logger) *Handler {
	return &Handler{
		store:          st,
		coordinator:    coordinator,
		cache:          newViewCache(),
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes mounts the API under the given group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// Snapshots
	router.POST("/reports/upload", h.UploadReport)
	router.GET("/reports", h.ListReports)

	// Period metrics
	router.GET("/metrics", h.GetMetrics)
	router.GET("/metrics/compare", h.CompareMetrics)

	// Series and navigation
	router.GET("/overall", h.GetOverallSeries)
	router.GET("/specializations", h.ListSpecializations)
	router.GET("/specializations/:code", h.GetSpecializationSeries)
	router.GET("/months", h.ListMonths)

	// System
	router.GET("/status", h.GetStatus)
}
