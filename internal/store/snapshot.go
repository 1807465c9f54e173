package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

// FindReportByHash looks up a snapshot by its content hash.
// Returns (nil, nil) when no snapshot with that hash exists.
func (s *Store) FindReportByHash(hash string) (*model.Report, error) {
	row := s.db.QueryRow(
		"SELECT id, filename, file_hash, uploaded_at FROM reports WHERE file_hash = ?", hash)

	r := &model.Report{}
	err := row.Scan(&r.ID, &r.Filename, &r.FileHash, &r.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report by hash: %w", err)
	}
	return r, nil
}

// PeriodCountByReport counts the periods recorded under one snapshot.
// Zero periods on an existing report marks an orphaned (half-ingested)
// snapshot.
func (s *Store) PeriodCountByReport(reportID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM periods WHERE report_id = ?", reportID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count periods: %w", err)
	}
	return count, nil
}

// DeleteReport removes a snapshot; periods and metric rows cascade.
func (s *Store) DeleteReport(id string) error {
	if _, err := s.db.Exec("DELETE FROM reports WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// IngestTx scopes every mutation of one ingestion to a single transaction.
// Either the whole snapshot lands or none of it does.
type IngestTx struct {
	tx *sql.Tx
}

// RunIngest executes fn inside one transaction, committing on nil error.
func (s *Store) RunIngest(fn func(*IngestTx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&IngestTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateReport inserts the snapshot row. A unique violation on file_hash
// means a concurrent ingestion of the same bytes won the race; callers
// detect that with IsUniqueViolation and re-read instead of failing.
func (t *IngestTx) CreateReport(filename, hash string) (*model.Report, error) {
	r := &model.Report{
		ID:         uuid.NewString(),
		Filename:   filename,
		FileHash:   hash,
		UploadedAt: time.Now().UTC(),
	}
	_, err := t.tx.Exec(
		"INSERT INTO reports (id, filename, file_hash, uploaded_at) VALUES (?, ?, ?, ?)",
		r.ID, r.Filename, r.FileHash, r.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return r, nil
}

// MetricKindsPresent returns the metric families that already have at least
// one value row under the report.
func (t *IngestTx) MetricKindsPresent(reportID string) (map[model.MetricKey]bool, error) {
	rows, err := t.tx.Query(`
		SELECT DISTINCT mv.metric_key
		FROM metric_values mv
		JOIN periods p ON p.id = mv.period_id
		WHERE p.report_id = ?`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric kinds: %w", err)
	}
	defer rows.Close()

	present := make(map[model.MetricKey]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan metric kind: %w", err)
		}
		present[model.MetricKey(key)] = true
	}
	return present, rows.Err()
}

// UpsertPeriods inserts the report's periods with insert-or-skip on
// (report, year, month) and returns id by year/month. Period rows must
// exist before any metric row referencing them is written.
func (t *IngestTx) UpsertPeriods(reportID string, periods []model.Period) (map[model.YearMonth]int64, error) {
	insert, err := t.tx.Prepare(`
		INSERT INTO periods (report_id, year, month, period_key)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_id, year, month) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare period insert: %w", err)
	}
	defer insert.Close()

	for _, p := range periods {
		if _, err := insert.Exec(reportID, p.Year, p.Month, p.PeriodKey); err != nil {
			return nil, fmt.Errorf("failed to insert period %s: %w", p.PeriodKey, err)
		}
	}

	rows, err := t.tx.Query("SELECT id, year, month FROM periods WHERE report_id = ?", reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back periods: %w", err)
	}
	defer rows.Close()

	ids := make(map[model.YearMonth]int64, len(periods))
	for rows.Next() {
		var id int64
		var ym model.YearMonth
		if err := rows.Scan(&id, &ym.Year, &ym.Month); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		ids[ym] = id
	}
	return ids, rows.Err()
}

// UpsertCategories inserts missing categories with insert-or-skip on
// (code, name) and returns id by "code|name". The dictionary is global
// and append-only.
func (t *IngestTx) UpsertCategories(categories []model.Category) (map[string]int64, error) {
	insert, err := t.tx.Prepare(`
		INSERT INTO categories (code, name)
		VALUES (?, ?)
		ON CONFLICT (code, name) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare category insert: %w", err)
	}
	defer insert.Close()

	lookup, err := t.tx.Prepare("SELECT id FROM categories WHERE code = ? AND name = ?")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare category lookup: %w", err)
	}
	defer lookup.Close()

	ids := make(map[string]int64, len(categories))
	for _, c := range categories {
		key := fmt.Sprintf("%d|%s", c.Code, c.Name)
		if _, ok := ids[key]; ok {
			continue
		}
		if _, err := insert.Exec(c.Code, c.Name); err != nil {
			return nil, fmt.Errorf("failed to insert category %s: %w", key, err)
		}
		var id int64
		if err := lookup.QueryRow(c.Code, c.Name).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to resolve category %s: %w", key, err)
		}
		ids[key] = id
	}
	return ids, nil
}

// InsertMetricValues writes metric rows with insert-if-absent on the full
// (period, scope, category, kind) tuple and returns how many were actually
// inserted. Existing rows are never overwritten.
func (t *IngestTx) InsertMetricValues(values []model.MetricValue) (int64, error) {
	stmt, err := t.tx.Prepare(`
		INSERT OR IGNORE INTO metric_values
			(period_id, scope_type, category_id, metric_key, numerator, denominator, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare metric insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, v := range values {
		res, err := stmt.Exec(
			v.PeriodID, string(v.ScopeType), v.CategoryID, string(v.MetricKey),
			v.Numerator, v.Denominator, v.Value)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert metric value: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}
