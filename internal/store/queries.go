package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

// Read-side queries behind the dashboard API. Every month-level query
// resolves "the" period as the one from the most recently uploaded snapshot
// covering that month; older snapshots stay addressable via reportId.

// ReportSummary is one snapshot with its coverage, for the snapshot picker.
type ReportSummary struct {
	model.Report
	PeriodCount int `json:"periodCount"`
}

// PeriodView is one period together with its owning snapshot.
type PeriodView struct {
	Period model.Period `json:"period"`
	Report model.Report `json:"report"`
}

// MetricTriple is a computed metric as served to the dashboard.
type MetricTriple struct {
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	Value       float64 `json:"value"`
}

// CategoryMetric is one specialization's value within a period.
type CategoryMetric struct {
	CategoryID  int64   `json:"categoryId"`
	Code        int     `json:"code"`
	Name        string  `json:"name"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	Value       float64 `json:"value"`
}

// MonthEntry is one month in the navigation tree.
type MonthEntry struct {
	Year           int       `json:"year"`
	Month          int       `json:"month"`
	PeriodKey      string    `json:"periodKey"`
	ReportCount    int       `json:"reportCount"`
	LatestReportID string    `json:"latestReportId"`
	LatestUpload   time.Time `json:"latestUpload"`
}

// SeriesPoint is one month of a metric series.
type SeriesPoint struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	PeriodKey   string  `json:"periodKey"`
	Name        string  `json:"name,omitempty"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
	Value       float64 `json:"value"`
}

// latestPeriodCond picks, among all periods for a (year, month), the one
// belonging to the newest snapshot.
const latestPeriodCond = `p.id = (
	SELECT p2.id FROM periods p2
	JOIN reports r2 ON r2.id = p2.report_id
	WHERE p2.year = p.year AND p2.month = p.month
	ORDER BY r2.uploaded_at DESC, r2.id DESC LIMIT 1)`

// FindPeriod resolves one month's period. With reportID empty the newest
// snapshot covering the month wins. Returns (nil, nil) when the month has
// no data at all.
func (s *Store) FindPeriod(year, month int, reportID string) (*PeriodView, error) {
	query := `
		SELECT p.id, p.report_id, p.year, p.month, p.period_key,
		       r.filename, r.file_hash, r.uploaded_at
		FROM periods p
		JOIN reports r ON r.id = p.report_id
		WHERE p.year = ? AND p.month = ?`
	args := []interface{}{year, month}

	if reportID != "" {
		query += " AND p.report_id = ?"
		args = append(args, reportID)
	}
	query += " ORDER BY r.uploaded_at DESC, r.id DESC LIMIT 1"

	v := &PeriodView{}
	err := s.db.QueryRow(query, args...).Scan(
		&v.Period.ID, &v.Period.ReportID, &v.Period.Year, &v.Period.Month, &v.Period.PeriodKey,
		&v.Report.Filename, &v.Report.FileHash, &v.Report.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find period: %w", err)
	}
	v.Report.ID = v.Period.ReportID
	return v, nil
}

// OverallMetric returns the clinic-wide value of one metric in one period,
// or nil when the metric kind was never computed for it.
func (s *Store) OverallMetric(periodID int64, key model.MetricKey) (*MetricTriple, error) {
	t := &MetricTriple{}
	err := s.db.QueryRow(`
		SELECT numerator, denominator, value FROM metric_values
		WHERE period_id = ? AND metric_key = ? AND scope_type = 'overall'`,
		periodID, string(key)).Scan(&t.Numerator, &t.Denominator, &t.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query overall metric: %w", err)
	}
	return t, nil
}

// CategoryMetrics returns one period's per-specialization values, highest
// first.
func (s *Store) CategoryMetrics(periodID int64, key model.MetricKey) ([]CategoryMetric, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.code, c.name, mv.numerator, mv.denominator, mv.value
		FROM metric_values mv
		JOIN categories c ON c.id = mv.category_id
		WHERE mv.period_id = ? AND mv.metric_key = ? AND mv.scope_type = 'category'
		ORDER BY mv.value DESC, c.code`, periodID, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to query category metrics: %w", err)
	}
	defer rows.Close()

	var out []CategoryMetric
	for rows.Next() {
		var m CategoryMetric
		if err := rows.Scan(&m.CategoryID, &m.Code, &m.Name, &m.Numerator, &m.Denominator, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan category metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListReports returns all snapshots, newest first.
func (s *Store) ListReports() ([]ReportSummary, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.filename, r.file_hash, r.uploaded_at,
		       (SELECT COUNT(*) FROM periods p WHERE p.report_id = r.id)
		FROM reports r
		ORDER BY r.uploaded_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var r ReportSummary
		if err := rows.Scan(&r.ID, &r.Filename, &r.FileHash, &r.UploadedAt, &r.PeriodCount); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListMonths returns every month with data, newest first, with its default
// (latest) snapshot.
func (s *Store) ListMonths() ([]MonthEntry, error) {
	rows, err := s.db.Query(`
		SELECT p.year, p.month,
		       (SELECT p2.period_key FROM periods p2
		        JOIN reports r2 ON r2.id = p2.report_id
		        WHERE p2.year = p.year AND p2.month = p.month
		        ORDER BY r2.uploaded_at DESC, r2.id DESC LIMIT 1),
		       (SELECT r2.id FROM periods p2
		        JOIN reports r2 ON r2.id = p2.report_id
		        WHERE p2.year = p.year AND p2.month = p.month
		        ORDER BY r2.uploaded_at DESC, r2.id DESC LIMIT 1),
		       COUNT(DISTINCT p.report_id),
		       MAX(r.uploaded_at)
		FROM periods p
		JOIN reports r ON r.id = p.report_id
		GROUP BY p.year, p.month
		ORDER BY p.year DESC, p.month DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list months: %w", err)
	}
	defer rows.Close()

	var out []MonthEntry
	for rows.Next() {
		var m MonthEntry
		if err := rows.Scan(&m.Year, &m.Month, &m.PeriodKey, &m.LatestReportID,
			&m.ReportCount, &m.LatestUpload); err != nil {
			return nil, fmt.Errorf("failed to scan month entry: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// OverallSeries returns the clinic-wide series of one metric across all
// months, chronological, latest snapshot per month.
func (s *Store) OverallSeries(key model.MetricKey) ([]SeriesPoint, error) {
	rows, err := s.db.Query(`
		SELECT p.year, p.month, p.period_key, mv.numerator, mv.denominator, mv.value
		FROM metric_values mv
		JOIN periods p ON p.id = mv.period_id
		WHERE mv.metric_key = ? AND mv.scope_type = 'overall' AND `+latestPeriodCond+`
		ORDER BY p.year, p.month`, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to query overall series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Year, &pt.Month, &pt.PeriodKey, &pt.Numerator, &pt.Denominator, &pt.Value); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// ListCategories returns the global specialization dictionary.
func (s *Store) ListCategories() ([]model.Category, error) {
	rows, err := s.db.Query("SELECT id, code, name FROM categories ORDER BY code, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategorySeries returns one specialization's series across all months.
// name narrows the match when one code is shared by several names; empty
// name includes them all, each point carrying its category name.
func (s *Store) CategorySeries(code int, name string, key model.MetricKey) ([]SeriesPoint, error) {
	query := `
		SELECT p.year, p.month, p.period_key, c.name, mv.numerator, mv.denominator, mv.value
		FROM metric_values mv
		JOIN periods p ON p.id = mv.period_id
		JOIN categories c ON c.id = mv.category_id
		WHERE mv.metric_key = ? AND mv.scope_type = 'category' AND c.code = ?`
	args := []interface{}{string(key), code}

	if name != "" {
		query += " AND c.name = ?"
		args = append(args, name)
	}
	query += " AND " + latestPeriodCond + " ORDER BY p.year, p.month, c.name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Year, &pt.Month, &pt.PeriodKey, &pt.Name,
			&pt.Numerator, &pt.Denominator, &pt.Value); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// Status aggregates store-wide counts for the dashboard status endpoint.
type Status struct {
	Reports      int        `json:"reports"`
	Periods      int        `json:"periods"`
	Categories   int        `json:"categories"`
	MetricValues int        `json:"metricValues"`
	LastUpload   *time.Time `json:"lastUpload,omitempty"`
}

// GetStatus returns store-wide counts and the last upload time.
func (s *Store) GetStatus() (*Status, error) {
	st := &Status{}
	err := s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM reports),
		       (SELECT COUNT(*) FROM periods),
		       (SELECT COUNT(*) FROM categories),
		       (SELECT COUNT(*) FROM metric_values)`).
		Scan(&st.Reports, &st.Periods, &st.Categories, &st.MetricValues)
	if err != nil {
		return nil, fmt.Errorf("failed to query status: %w", err)
	}

	var last sql.NullTime
	if err := s.db.QueryRow("SELECT MAX(uploaded_at) FROM reports").Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last upload: %w", err)
	}
	if last.Valid {
		st.LastUpload = &last.Time
	}
	return st, nil
}
