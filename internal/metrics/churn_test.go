package metrics

import (
	"testing"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

func overallRow(year, month int, repeat float64) model.RawMetricRow {
	return model.RawMetricRow{Year: year, Month: month, Scope: model.OverallScope(), RepeatClients: repeat}
}

func categoryRow(year, month, code int, name string, repeat float64) model.RawMetricRow {
	return model.RawMetricRow{Year: year, Month: month, Scope: model.CategoryScope(code, name), RepeatClients: repeat}
}

func TestChurnResolver_PairsAdjacentMonths(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		overallRow(2025, 1, 50),
		overallRow(2025, 2, 35),
	}
	r := NewChurnResolver(rows)

	got, ok := r.Resolve(rows[1])
	if !ok {
		t.Fatalf("expected churn for M2.2025")
	}
	if got.Numerator != 15 || got.Denominator != 50 || got.Value != 30.0 {
		t.Fatalf("unexpected triple: %+v", got)
	}

	// January has no predecessor in the upload.
	if _, ok := r.Resolve(rows[0]); ok {
		t.Fatalf("no churn expected for the first month")
	}
}

func TestChurnResolver_MissingPredecessor(t *testing.T) {
	t.Parallel()

	// M1 is absent from the upload even if it exists in storage elsewhere.
	rows := []model.RawMetricRow{overallRow(2025, 2, 35)}
	if _, ok := NewChurnResolver(rows).Resolve(rows[0]); ok {
		t.Fatalf("churn must not be computed without the predecessor month")
	}
}

func TestChurnResolver_YearBoundary(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		overallRow(2024, 12, 80),
		overallRow(2025, 1, 60),
	}
	got, ok := NewChurnResolver(rows).Resolve(rows[1])
	if !ok {
		t.Fatalf("expected churn across the year boundary")
	}
	if got.Numerator != 20 || got.Denominator != 80 || got.Value != 25.0 {
		t.Fatalf("unexpected triple: %+v", got)
	}
}

func TestChurnResolver_ScopesDoNotMix(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		overallRow(2025, 1, 50),
		categoryRow(2025, 2, 7, "Стоматология", 10),
	}
	// The category has no January row; the overall January row must not
	// serve as its predecessor.
	if _, ok := NewChurnResolver(rows).Resolve(rows[1]); ok {
		t.Fatalf("overall row must not pair with a category row")
	}
}

func TestChurnResolver_SameCodeDifferentName(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		categoryRow(2025, 1, 7, "Стоматология", 40),
		categoryRow(2025, 2, 7, "Хирургия", 10),
	}
	if _, ok := NewChurnResolver(rows).Resolve(rows[1]); ok {
		t.Fatalf("categories sharing a code must not pair across names")
	}
}

func TestChurnResolver_ZeroPredecessorMeansAbsence(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		overallRow(2025, 1, 0),
		overallRow(2025, 2, 35),
	}
	if _, ok := NewChurnResolver(rows).Resolve(rows[1]); ok {
		t.Fatalf("zero repeat clients in the predecessor must suppress churn")
	}
}

func TestChurnResolver_DuplicateRowsLastWriteWins(t *testing.T) {
	t.Parallel()

	rows := []model.RawMetricRow{
		categoryRow(2025, 1, 7, "Стоматология", 40),
		categoryRow(2025, 1, 7, "Стоматология", 100),
		categoryRow(2025, 2, 7, "Стоматология", 50),
	}
	got, ok := NewChurnResolver(rows).Resolve(rows[2])
	if !ok {
		t.Fatalf("expected churn")
	}
	if got.Denominator != 100 || got.Numerator != 50 || got.Value != 50.0 {
		t.Fatalf("last duplicate must win: %+v", got)
	}
}
