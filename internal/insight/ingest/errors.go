package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// maxReportedRows caps the row list rendered in an error message. The full
// list stays available in FormatError.Rows.
const maxReportedRows = 20

// FormatError reports malformed input: missing columns or cells that could
// not be parsed. Rows are 1-based line numbers in the uploaded file, where
// line 1 is the header.
type FormatError struct {
	Columns []string
	Rows    []int
	Reason  string
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("format error: ")
	b.WriteString(e.Reason)
	if len(e.Columns) > 0 {
		quoted := make([]string, len(e.Columns))
		for i, c := range e.Columns {
			quoted[i] = strconv.Quote(c)
		}
		fmt.Fprintf(&b, " (column %s)", strings.Join(quoted, ", "))
	}
	if len(e.Rows) > 0 {
		shown := e.Rows
		if len(shown) > maxReportedRows {
			shown = shown[:maxReportedRows]
		}
		parts := make([]string, len(shown))
		for i, r := range shown {
			parts[i] = strconv.Itoa(r)
		}
		fmt.Fprintf(&b, " at rows %s", strings.Join(parts, ", "))
		if extra := len(e.Rows) - len(shown); extra > 0 {
			fmt.Fprintf(&b, " and %d more", extra)
		}
	}
	return b.String()
}

// rowErrors accumulates per-column row failures so they are reported
// together rather than one at a time.
type rowErrors struct {
	order  []string
	rows   map[string][]int
	reason map[string]string
}

func newRowErrors() *rowErrors {
	return &rowErrors{
		rows:   make(map[string][]int),
		reason: make(map[string]string),
	}
}

func (r *rowErrors) add(column string, line int, reason string) {
	if _, ok := r.rows[column]; !ok {
		r.order = append(r.order, column)
		r.reason[column] = reason
	}
	r.rows[column] = append(r.rows[column], line)
}

func (r *rowErrors) errs() []error {
	out := make([]error, 0, len(r.order))
	for _, col := range r.order {
		out = append(out, &FormatError{
			Columns: []string{col},
			Rows:    r.rows[col],
			Reason:  r.reason[col],
		})
	}
	return out
}

// joinFormatErrors returns a single error for one failure and a joined
// error otherwise; errors.As still reaches each *FormatError.
func joinFormatErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
