// Package importer coordinates one upload: parse, dedup by content hash,
// derive the three metric families and persist everything atomically per
// snapshot.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jamesarrow/kpi-vet/internal/metrics"
	"github.com/jamesarrow/kpi-vet/internal/model"
	"github.com/jamesarrow/kpi-vet/internal/parser"
	"github.com/jamesarrow/kpi-vet/internal/store"
)

// Coordinator runs the snapshot ingestion state machine.
type Coordinator struct {
	store *store.Store
	log   zerolog.Logger
}

// NewCoordinator creates an ingestion coordinator over the given store.
func NewCoordinator(st *store.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store: st,
		log:   log.With().Str("component", "importer").Logger(),
	}
}

// Result is the outcome of one ingestion call. Touched lists every month
// whose data changed; the server invalidates cached views from it.
type Result struct {
	ReportID string            `json:"reportId"`
	Deduped  bool              `json:"deduped"`
	Updated  bool              `json:"updated,omitempty"`
	Touched  []model.YearMonth `json:"-"`
}

// Ingest processes one uploaded workbook buffer.
//
// Same bytes always resolve to the same snapshot: a fresh hash gets a full
// ingestion, a known hash with all three metric families is a no-op, and a
// known hash missing some families (an upload from before those metrics
// existed) is extended with only the missing rows. A report without any
// period is a leftover of a failed ingestion and is deleted and redone.
func (c *Coordinator) Ingest(buf []byte, filename string) (*Result, error) {
	rows, err := parser.ParseBuffer(buf)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, parser.ErrEmptyExtraction
	}

	sum := sha256.Sum256(buf)
	hash := hex.EncodeToString(sum[:])

	c.log.Info().
		Str("filename", filename).
		Str("hash", hash).
		Int("rows", len(rows)).
		Msg("workbook parsed")

	existing, err := c.store.FindReportByHash(hash)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		count, err := c.store.PeriodCountByReport(existing.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			// A report without periods is a half-finished prior ingestion;
			// drop it and ingest from scratch.
			c.log.Warn().Str("report", existing.ID).Msg("repairing orphaned snapshot")
			if err := c.store.DeleteReport(existing.ID); err != nil {
				return nil, err
			}
			existing = nil
		}
	}

	if existing == nil {
		res, err := c.ingestNew(filename, hash, rows)
		if err == nil {
			return res, nil
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
		// A concurrent upload of the same bytes created the report first.
		// Expected race: re-read and continue on the extend path.
		c.log.Info().Str("hash", hash).Msg("lost report creation race, extending instead")
		existing, err = c.store.FindReportByHash(hash)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("report for hash %s vanished after constraint violation", hash)
		}
	}

	return c.extendExisting(existing, rows)
}

// ingestNew creates the report and persists all three metric families in
// one transaction.
func (c *Coordinator) ingestNew(filename, hash string, rows []model.RawMetricRow) (*Result, error) {
	var reportID string
	err := c.store.RunIngest(func(tx *store.IngestTx) error {
		report, err := tx.CreateReport(filename, hash)
		if err != nil {
			return err
		}
		reportID = report.ID
		return c.persist(tx, report.ID, rows, model.AllMetricKeys())
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().Str("report", reportID).Msg("snapshot ingested")
	return &Result{ReportID: reportID, Touched: touchedMonths(rows)}, nil
}

// extendExisting adds only the metric families the snapshot does not have
// yet. With nothing missing the call is a pure dedup hit.
func (c *Coordinator) extendExisting(report *model.Report, rows []model.RawMetricRow) (*Result, error) {
	res := &Result{ReportID: report.ID}

	err := c.store.RunIngest(func(tx *store.IngestTx) error {
		present, err := tx.MetricKindsPresent(report.ID)
		if err != nil {
			return err
		}

		var missing []model.MetricKey
		for _, key := range model.AllMetricKeys() {
			if !present[key] {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			res.Deduped = true
			return nil
		}

		if err := c.persist(tx, report.ID, rows, missing); err != nil {
			return err
		}
		res.Updated = true
		res.Touched = touchedMonths(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Deduped {
		c.log.Info().Str("report", report.ID).Msg("duplicate upload, nothing to do")
	} else {
		c.log.Info().Str("report", report.ID).Msg("snapshot extended with missing metric kinds")
	}
	return res, nil
}

// persist is the single upsert-everywhere pipeline, parameterized by which
// metric kinds to write. Full ingestion and extension both run through it so
// the two paths cannot drift apart.
func (c *Coordinator) persist(tx *store.IngestTx, reportID string, rows []model.RawMetricRow, kinds []model.MetricKey) error {
	periodIDs, err := tx.UpsertPeriods(reportID, uniquePeriods(rows))
	if err != nil {
		return err
	}

	categoryIDs, err := tx.UpsertCategories(uniqueCategories(rows))
	if err != nil {
		return err
	}

	churn := metrics.NewChurnResolver(rows)

	var values []model.MetricValue
	for _, row := range rows {
		periodID, ok := periodIDs[row.YearMonth()]
		if !ok {
			return fmt.Errorf("no period resolved for %s", row.PeriodKey)
		}

		var categoryID *int64
		if code, name, ok := row.Scope.Category(); ok {
			id, ok := categoryIDs[fmt.Sprintf("%d|%s", code, name)]
			if !ok {
				return fmt.Errorf("no category resolved for %d|%s", code, name)
			}
			categoryID = &id
		}

		for _, key := range kinds {
			var t metrics.Triple
			switch key {
			case model.MetricReturnRate:
				t = metrics.ReturnRate(row)
			case model.MetricRepeatVisitRate:
				t = metrics.RepeatVisitRate(row)
			case model.MetricChurnRate:
				var ok bool
				if t, ok = churn.Resolve(row); !ok {
					continue
				}
			default:
				continue
			}

			values = append(values, model.MetricValue{
				PeriodID:    periodID,
				ScopeType:   row.Scope.Type(),
				CategoryID:  categoryID,
				MetricKey:   key,
				Numerator:   t.Numerator,
				Denominator: t.Denominator,
				Value:       t.Value,
			})
		}
	}

	inserted, err := tx.InsertMetricValues(values)
	if err != nil {
		return err
	}

	c.log.Debug().
		Str("report", reportID).
		Int("computed", len(values)).
		Int64("inserted", inserted).
		Msg("metric rows persisted")
	return nil
}

// uniquePeriods collapses the row sequence to one period per (year, month).
func uniquePeriods(rows []model.RawMetricRow) []model.Period {
	seen := make(map[model.YearMonth]bool)
	var out []model.Period
	for _, row := range rows {
		ym := row.YearMonth()
		if seen[ym] {
			continue
		}
		seen[ym] = true
		out = append(out, model.Period{Year: row.Year, Month: row.Month, PeriodKey: row.PeriodKey})
	}
	return out
}

// uniqueCategories collapses the row sequence to distinct (code, name) pairs.
func uniqueCategories(rows []model.RawMetricRow) []model.Category {
	seen := make(map[string]bool)
	var out []model.Category
	for _, row := range rows {
		code, name, ok := row.Scope.Category()
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%s", code, name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Category{Code: code, Name: name})
	}
	return out
}

// touchedMonths lists every month present in the upload, oldest first.
func touchedMonths(rows []model.RawMetricRow) []model.YearMonth {
	seen := make(map[model.YearMonth]bool)
	var out []model.YearMonth
	for _, row := range rows {
		ym := row.YearMonth()
		if seen[ym] {
			continue
		}
		seen[ym] = true
		out = append(out, ym)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
