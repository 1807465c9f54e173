package metrics

import "github.com/jamesarrow/kpi-vet/internal/model"

type scopedPeriod struct {
	ym       model.YearMonth
	scopeKey string
}

// ChurnResolver pairs each (period, scope) with its immediate calendar
// predecessor under the same scope and computes churn across the pair.
//
// The index is built from a single upload's rows only: churn is computable
// exactly when both months appear in the same file. A predecessor that only
// exists in an earlier snapshot in storage does not count. That is a known
// scope limitation, not an accident.
type ChurnResolver struct {
	repeatByScope map[scopedPeriod]float64
}

// NewChurnResolver indexes repeat-client counts by (period, scope key).
// Duplicate (period, scope) rows are last-write-wins in document order.
func NewChurnResolver(rows []model.RawMetricRow) *ChurnResolver {
	idx := make(map[scopedPeriod]float64, len(rows))
	for _, row := range rows {
		idx[scopedPeriod{ym: row.YearMonth(), scopeKey: row.Scope.Key()}] = row.RepeatClients
	}
	return &ChurnResolver{repeatByScope: idx}
}

// Resolve computes churn for one row. ok is false when the preceding month
// is absent from the upload for this scope, or had no repeat clients; an
// absent churn row means "not computable", not zero churn.
func (r *ChurnResolver) Resolve(row model.RawMetricRow) (Triple, bool) {
	prev, found := r.repeatByScope[scopedPeriod{
		ym:       row.YearMonth().Prev(),
		scopeKey: row.Scope.Key(),
	}]
	if !found || prev <= 0 {
		return Triple{}, false
	}
	return ChurnRate(prev, row.RepeatClients), true
}
