package model

import "time"

// MetricKey identifies one of the derived metric families.
type MetricKey string

const (
	MetricReturnRate      MetricKey = "return_rate"
	MetricRepeatVisitRate MetricKey = "repeat_visit_rate"
	MetricChurnRate       MetricKey = "churn_rate"
)

// AllMetricKeys returns every metric family in computation order.
func AllMetricKeys() []MetricKey {
	return []MetricKey{MetricReturnRate, MetricRepeatVisitRate, MetricChurnRate}
}

// ParseMetricKey maps a query parameter to a MetricKey.
// Unknown values fall back to return_rate, mirroring the dashboard default.
func ParseMetricKey(s string) MetricKey {
	switch MetricKey(s) {
	case MetricRepeatVisitRate:
		return MetricRepeatVisitRate
	case MetricChurnRate:
		return MetricChurnRate
	default:
		return MetricReturnRate
	}
}

// Report is one ingested file (a snapshot), identified by content hash.
// Re-uploading identical bytes resolves to the same Report.
type Report struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileHash   string    `json:"fileHash"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Period is one (report, year, month) data slice.
type Period struct {
	ID        int64  `json:"id"`
	ReportID  string `json:"reportId"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	PeriodKey string `json:"periodKey"`
}

// Category is a specialization identity, keyed by (code, name). The same
// numeric code under two different names is two distinct categories.
type Category struct {
	ID   int64  `json:"id"`
	Code int    `json:"code"`
	Name string `json:"name"`
}

// MetricValue is one computed data point.
// ScopeOverall implies CategoryID == nil; ScopeCategory implies non-nil.
type MetricValue struct {
	ID          int64     `json:"id"`
	PeriodID    int64     `json:"periodId"`
	ScopeType   ScopeType `json:"scopeType"`
	CategoryID  *int64    `json:"categoryId,omitempty"`
	MetricKey   MetricKey `json:"metricKey"`
	Numerator   float64   `json:"numerator"`
	Denominator float64   `json:"denominator"`
	Value       float64   `json:"value"`
}

// YearMonth names one calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Prev returns the immediately preceding calendar month.
func (ym YearMonth) Prev() YearMonth {
	if ym.Month == 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}
