package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

// GetOverallSeries returns the clinic-wide metric series across all months.
// GET /api/overall?metric
func (h *Handler) GetOverallSeries(c *gin.Context) {
	metricKey := model.ParseMetricKey(c.Query("metric"))

	series, err := h.store.OverallSeries(metricKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metricKey": metricKey, "series": series})
}

// ListSpecializations returns the global category dictionary.
// GET /api/specializations
func (h *Handler) ListSpecializations(c *gin.Context) {
	categories, err := h.store.ListCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"specializations": categories})
}

// GetSpecializationSeries returns one specialization's series across months.
// GET /api/specializations/:code?metric[&name]
func (h *Handler) GetSpecializationSeries(c *gin.Context) {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "specialization code must be numeric"})
		return
	}
	metricKey := model.ParseMetricKey(c.Query("metric"))
	name := c.Query("name")

	series, err := h.store.CategorySeries(code, name, metricKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(series) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for this specialization"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "metricKey": metricKey, "series": series})
}
