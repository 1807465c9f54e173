package model

import "fmt"

// ScopeType discriminates clinic-wide rows from per-specialization rows.
type ScopeType string

const (
	ScopeOverall  ScopeType = "overall"
	ScopeCategory ScopeType = "category"
)

// Scope is the tagged row scope: overall, or one category. A category scope
// always carries its code and name; the zero value is the overall scope.
// Construct via OverallScope and CategoryScope only.
type Scope struct {
	typ  ScopeType
	code int
	name string
}

// OverallScope returns the clinic-wide scope.
func OverallScope() Scope {
	return Scope{typ: ScopeOverall}
}

// CategoryScope returns the scope of one specialization.
func CategoryScope(code int, name string) Scope {
	return Scope{typ: ScopeCategory, code: code, name: name}
}

// Type returns the scope discriminant.
func (s Scope) Type() ScopeType {
	if s.typ == "" {
		return ScopeOverall
	}
	return s.typ
}

// Category returns the category identity; ok is false for overall scopes.
func (s Scope) Category() (code int, name string, ok bool) {
	if s.Type() != ScopeCategory {
		return 0, "", false
	}
	return s.code, s.name, true
}

// Key is the scope's lookup key, used to align rows across periods:
// "overall" for clinic-wide rows, "cat:<code>|<name>" for categories.
func (s Scope) Key() string {
	if code, name, ok := s.Category(); ok {
		return fmt.Sprintf("cat:%d|%s", code, name)
	}
	return "overall"
}

// RawMetricRow is one extracted spreadsheet row: raw client counts for a
// single (year, month) period and a single scope. Transient; produced and
// consumed within one ingestion.
type RawMetricRow struct {
	Year      int
	Month     int
	PeriodKey string
	Scope     Scope

	AllClients      float64
	RepeatClients   float64
	NewClients      float64
	ContinueClients float64
}

// YearMonth returns the row's period.
func (r RawMetricRow) YearMonth() YearMonth {
	return YearMonth{Year: r.Year, Month: r.Month}
}
