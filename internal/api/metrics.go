package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jamesarrow/kpi-vet/internal/model"
	"github.com/jamesarrow/kpi-vet/internal/store"
)

type reportInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type periodInfo struct {
	ID        int64      `json:"id"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	PeriodKey string     `json:"periodKey"`
	Report    reportInfo `json:"report"`
}

type periodMetricsResponse struct {
	Period     periodInfo             `json:"period"`
	MetricKey  model.MetricKey        `json:"metricKey"`
	Overall    *store.MetricTriple    `json:"overall"`
	Categories []store.CategoryMetric `json:"categories"`
}

type compareResponse struct {
	Current    *periodMetricsResponse `json:"current"`
	Previous   *periodMetricsResponse `json:"previous"`
	ValueDelta *float64               `json:"valueDelta,omitempty"`
}

// GetMetrics serves one month's metric view.
// GET /api/metrics?year&month&metric[&reportId]
func (h *Handler) GetMetrics(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	metricKey := model.ParseMetricKey(c.Query("metric"))
	reportID := c.Query("reportId")

	cacheKey := fmt.Sprintf("metrics:%d-%02d:%s:%s", year, month, metricKey, reportID)
	if cached, ok := h.cache.get(cacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	view, err := h.buildPeriodMetrics(year, month, reportID, metricKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for this period"})
		return
	}

	h.cache.put(cacheKey, view, model.YearMonth{Year: year, Month: month})
	c.JSON(http.StatusOK, view)
}

// CompareMetrics serves one month's view next to the preceding month's.
// GET /api/metrics/compare?year&month&metric[&reportId]
func (h *Handler) CompareMetrics(c *gin.Context) {
	year, month, ok := yearMonthParams(c)
	if !ok {
		return
	}
	metricKey := model.ParseMetricKey(c.Query("metric"))
	reportID := c.Query("reportId")

	ym := model.YearMonth{Year: year, Month: month}
	prev := ym.Prev()

	cacheKey := fmt.Sprintf("compare:%d-%02d:%s:%s", year, month, metricKey, reportID)
	if cached, ok := h.cache.get(cacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	current, err := h.buildPeriodMetrics(year, month, reportID, metricKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for this period"})
		return
	}

	// The previous month falls back to the latest snapshot covering it when
	// the pinned snapshot does not include that month.
	previous, err := h.buildPeriodMetrics(prev.Year, prev.Month, reportID, metricKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if previous == nil && reportID != "" {
		previous, err = h.buildPeriodMetrics(prev.Year, prev.Month, "", metricKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	resp := &compareResponse{Current: current, Previous: previous}
	if previous != nil && current.Overall != nil && previous.Overall != nil {
		delta := current.Overall.Value - previous.Overall.Value
		resp.ValueDelta = &delta
	}

	h.cache.put(cacheKey, resp, ym, prev)
	c.JSON(http.StatusOK, resp)
}

// buildPeriodMetrics assembles a month's view; nil means no data.
func (h *Handler) buildPeriodMetrics(year, month int, reportID string, key model.MetricKey) (*periodMetricsResponse, error) {
	view, err := h.store.FindPeriod(year, month, reportID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, nil
	}

	overall, err := h.store.OverallMetric(view.Period.ID, key)
	if err != nil {
		return nil, err
	}
	categories, err := h.store.CategoryMetrics(view.Period.ID, key)
	if err != nil {
		return nil, err
	}

	return &periodMetricsResponse{
		Period: periodInfo{
			ID:        view.Period.ID,
			Year:      view.Period.Year,
			Month:     view.Period.Month,
			PeriodKey: view.Period.PeriodKey,
			Report: reportInfo{
				ID:         view.Report.ID,
				Filename:   view.Report.Filename,
				UploadedAt: view.Report.UploadedAt,
			},
		},
		MetricKey:  key,
		Overall:    overall,
		Categories: categories,
	}, nil
}

// yearMonthParams validates the year/month query parameters, answering 400
// itself on failure.
func yearMonthParams(c *gin.Context) (year, month int, ok bool) {
	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 || year <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month query parameters are required"})
		return 0, 0, false
	}
	return year, month, true
}
