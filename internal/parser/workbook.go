package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

// Required header labels. Matched by exact text after trimming; the clinic's
// export tool emits them verbatim, so fuzzy matching would only hide drift.
const (
	ColGroupName = "Группа / Название"
	ColAll       = "Клиенты / КЛ.Все Записанные"
	ColRepeat    = "Клиенты / КЛ. Повторные"
	ColNew       = "Клиенты / КЛ. Новые"
	ColContinue  = "Клиенты / КЛ. Продолжившие"
)

var (
	yearSheetRe = regexp.MustCompile(`^\d{4}$`)
	monthRe     = regexp.MustCompile(`^M(\d{1,2})\.(\d{4})$`)
	categoryRe  = regexp.MustCompile(`^(\d+)\s*,\s*(.+)$`)
)

// WorkbookParser extracts raw metric rows from a clinic visit workbook.
// Only sheets named exactly four digits (a year) are considered.
type WorkbookParser struct {
	file *excelize.File
}

// NewWorkbookParser wraps an already opened workbook.
func NewWorkbookParser(file *excelize.File) *WorkbookParser {
	return &WorkbookParser{file: file}
}

// ParseBuffer parses a raw workbook buffer into the flat row sequence.
// Rows keep document order within a sheet; sheets keep workbook order.
func ParseBuffer(buf []byte) ([]model.RawMetricRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	p := NewWorkbookParser(file)

	var out []model.RawMetricRow
	for _, sheetName := range file.GetSheetList() {
		if !yearSheetRe.MatchString(sheetName) {
			continue
		}
		rows, err := p.ParseSheet(sheetName)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// columnIndex holds the resolved positions of the required columns.
type columnIndex struct {
	name   int
	all    int
	repeat int
	fresh  int
	cont   int
}

// ParseSheet extracts rows from one year sheet.
func (p *WorkbookParser) ParseSheet(sheetName string) ([]model.RawMetricRow, error) {
	rows, err := p.file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := resolveColumns(sheetName, rows[0])
	if err != nil {
		return nil, err
	}

	var out []model.RawMetricRow
	var current *model.YearMonth
	var currentKey string

	for _, row := range rows[1:] {
		label := strings.TrimSpace(cell(row, cols.name))
		if label == "" {
			continue
		}

		// A month totals row both starts a new period and is the period's
		// overall row.
		if m := monthRe.FindStringSubmatch(label); m != nil {
			month, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[2])
			if month < 1 || month > 12 {
				continue
			}
			current = &model.YearMonth{Year: year, Month: month}
			currentKey = label

			out = append(out, model.RawMetricRow{
				Year:            year,
				Month:           month,
				PeriodKey:       label,
				Scope:           model.OverallScope(),
				AllClients:      toNumber(cell(row, cols.all)),
				RepeatClients:   toNumber(cell(row, cols.repeat)),
				NewClients:      toNumber(cell(row, cols.fresh)),
				ContinueClients: toNumber(cell(row, cols.cont)),
			})
			continue
		}

		// Category rows before the first period marker have no period to
		// belong to and are discarded.
		if current == nil {
			continue
		}

		c := categoryRe.FindStringSubmatch(label)
		if c == nil {
			continue
		}
		code, err := strconv.Atoi(c[1])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(c[2])
		if name == "" {
			continue
		}

		out = append(out, model.RawMetricRow{
			Year:            current.Year,
			Month:           current.Month,
			PeriodKey:       currentKey,
			Scope:           model.CategoryScope(code, name),
			AllClients:      toNumber(cell(row, cols.all)),
			RepeatClients:   toNumber(cell(row, cols.repeat)),
			NewClients:      toNumber(cell(row, cols.fresh)),
			ContinueClients: toNumber(cell(row, cols.cont)),
		})
	}

	return out, nil
}

// resolveColumns matches the header row against the required labels.
// Any missing label fails the whole sheet, and with it the ingestion.
func resolveColumns(sheetName string, header []string) (columnIndex, error) {
	find := func(label string) int {
		for i, h := range header {
			if strings.TrimSpace(h) == label {
				return i
			}
		}
		return -1
	}

	cols := columnIndex{
		name:   find(ColGroupName),
		all:    find(ColAll),
		repeat: find(ColRepeat),
		fresh:  find(ColNew),
		cont:   find(ColContinue),
	}

	var missing []string
	for _, c := range []struct {
		idx   int
		label string
	}{
		{cols.name, ColGroupName},
		{cols.all, ColAll},
		{cols.repeat, ColRepeat},
		{cols.fresh, ColNew},
		{cols.cont, ColContinue},
	} {
		if c.idx < 0 {
			missing = append(missing, c.label)
		}
	}
	if len(missing) > 0 {
		return columnIndex{}, &SchemaMismatchError{Sheet: sheetName, Missing: missing}
	}
	return cols, nil
}

// cell returns a cell by index; short rows read as empty cells.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// toNumber coerces a cell to a count. Whitespace is stripped, a decimal
// comma is normalized, and anything unparsable degrades to zero: blank
// cells mean "no clients", never a parse error.
func toNumber(s string) float64 {
	s = strings.Join(strings.Fields(s), "")
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
