package parser

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) []byte {
	t.Helper()

	f := excelize.NewFile()
	first := true
	for _, name := range order {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for i, row := range sheets[name] {
			r := row
			if err := f.SetSheetRow(name, fmt.Sprintf("A%d", i+1), &r); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func header() []interface{} {
	return []interface{}{ColGroupName, ColAll, ColRepeat, ColNew, ColContinue}
}

func TestParseBuffer_RowClassification(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, map[string][][]interface{}{
		"2025": {
			header(),
			{"5, Дерматология", 10, 4, 2, 1}, // before any period marker: discarded
			{"M10.2025", 100, 40, 20, 30},
			{"7, Стоматология", 50, 20, 10, 5},
			{"", 1, 1, 1, 1},          // empty label: skipped
			{"Итого за год", 9, 9, 9}, // matches neither pattern: skipped
			{"M11.2025", 120, 50, 25, 10},
			{"7, Хирургия", 30, 12, 6, 3},
		},
		"Сводка": {
			header(),
			{"M12.2025", 999, 999, 999, 999}, // non-year sheet: ignored
		},
	}, []string{"2025", "Сводка"})

	rows, err := ParseBuffer(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(rows) != 4 {
		t.Fatalf("unexpected row count: %d", len(rows))
	}

	first := rows[0]
	if first.Scope.Type() != model.ScopeOverall || first.Year != 2025 || first.Month != 10 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if first.PeriodKey != "M10.2025" {
		t.Fatalf("unexpected period key: %s", first.PeriodKey)
	}
	if first.AllClients != 100 || first.RepeatClients != 40 || first.NewClients != 20 || first.ContinueClients != 30 {
		t.Fatalf("unexpected counts: %+v", first)
	}

	second := rows[1]
	code, name, ok := second.Scope.Category()
	if !ok || code != 7 || name != "Стоматология" {
		t.Fatalf("unexpected category scope: %+v", second.Scope)
	}
	if second.Year != 2025 || second.Month != 10 {
		t.Fatalf("category row attributed to wrong period: %+v", second)
	}

	fourth := rows[3]
	if _, name, _ := fourth.Scope.Category(); name != "Хирургия" {
		t.Fatalf("unexpected last category: %+v", fourth.Scope)
	}
	if fourth.Month != 11 {
		t.Fatalf("period marker did not advance: %+v", fourth)
	}
}

func TestParseBuffer_SchemaMismatch(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, map[string][][]interface{}{
		"2025": {
			{ColGroupName, ColAll, ColNew, ColContinue}, // repeat column missing
			{"M10.2025", 100, 20, 30},
		},
	}, []string{"2025"})

	_, err := ParseBuffer(buf)
	var schemaErr *SchemaMismatchError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if schemaErr.Sheet != "2025" {
		t.Fatalf("unexpected sheet name: %s", schemaErr.Sheet)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != ColRepeat {
		t.Fatalf("unexpected missing columns: %v", schemaErr.Missing)
	}
}

func TestParseBuffer_NonYearSheetsNeedNoHeader(t *testing.T) {
	t.Parallel()

	// A malformed non-year sheet must not trigger schema validation.
	buf := buildWorkbook(t, map[string][][]interface{}{
		"Инструкция": {{"как пользоваться файлом"}},
		"2025": {
			header(),
			{"M1.2025", 10, 5, 3, 2},
		},
	}, []string{"Инструкция", "2025"})

	rows, err := ParseBuffer(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected row count: %d", len(rows))
	}
}

func TestParseBuffer_DuplicateCategoryRowsKept(t *testing.T) {
	t.Parallel()

	buf := buildWorkbook(t, map[string][][]interface{}{
		"2025": {
			header(),
			{"M3.2025", 100, 40, 20, 30},
			{"7, Стоматология", 50, 20, 10, 5},
			{"7, Стоматология", 60, 25, 12, 6},
		},
	}, []string{"2025"})

	rows, err := ParseBuffer(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Extraction does not deduplicate; downstream lookups are last-write-wins.
	if len(rows) != 3 {
		t.Fatalf("unexpected row count: %d", len(rows))
	}
	if rows[1].AllClients != 50 || rows[2].AllClients != 60 {
		t.Fatalf("duplicate rows reordered: %+v", rows[1:])
	}
}

func TestToNumber_Coercion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"42", 42},
		{" 1 234 ", 1234},
		{"12,5", 12.5},
		{"12.5", 12.5},
		{"", 0},
		{"n/a", 0},
		{"-", 0},
	}
	for _, tc := range cases {
		if got := toNumber(tc.in); got != tc.want {
			t.Fatalf("toNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
