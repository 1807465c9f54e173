// Package metrics derives business metrics from raw client counts.
// All computations are pure; persistence and HTTP know nothing of them.
package metrics

import "github.com/jamesarrow/kpi-vet/internal/model"

// Triple is one computed (numerator, denominator, value) for a metric.
// A zero denominator yields value 0, never NaN: the dashboard always
// renders a number.
type Triple struct {
	Numerator   float64
	Denominator float64
	Value       float64
}

// ReturnRate is the share of repeat clients among all recorded clients,
// as a percentage.
func ReturnRate(row model.RawMetricRow) Triple {
	t := Triple{
		Numerator:   row.RepeatClients,
		Denominator: row.AllClients,
	}
	if t.Denominator > 0 {
		t.Value = t.Numerator / t.Denominator * 100
	}
	return t
}

// RepeatVisitRate is the average visit count per newly acquired client,
// as a plain ratio. The denominator is clients counted as new, not all.
func RepeatVisitRate(row model.RawMetricRow) Triple {
	t := Triple{
		Numerator:   row.NewClients + row.ContinueClients,
		Denominator: row.NewClients,
	}
	if t.Denominator > 0 {
		t.Value = t.Numerator / t.Denominator
	}
	return t
}

// ChurnRate is the share of the previous period's repeat clients not
// retained into the current one, as a percentage. Growth clamps the
// numerator to zero rather than going negative.
func ChurnRate(previousRepeat, currentRepeat float64) Triple {
	t := Triple{
		Numerator:   max(0, previousRepeat-currentRepeat),
		Denominator: previousRepeat,
	}
	if t.Denominator > 0 {
		t.Value = t.Numerator / t.Denominator * 100
	}
	return t
}
