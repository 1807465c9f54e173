package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExtraction is returned when a workbook parses cleanly but no row
// matched a period or category pattern on any year sheet.
var ErrEmptyExtraction = errors.New("no recognizable periods or data in workbook")

// SchemaMismatchError reports a candidate year sheet whose header row is
// missing one or more required column labels. It aborts the whole ingestion.
type SchemaMismatchError struct {
	Sheet   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("sheet %q is missing required columns: %s",
		e.Sheet, strings.Join(e.Missing, ", "))
}
