package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListReports returns all snapshots, newest first.
// GET /api/reports
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.store.ListReports()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// ListMonths returns the navigation tree of months with data.
// GET /api/months
func (h *Handler) ListMonths(c *gin.Context) {
	months, err := h.store.ListMonths()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": months})
}

// GetStatus returns store-wide counts.
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.store.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
