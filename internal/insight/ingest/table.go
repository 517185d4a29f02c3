// Package ingest turns uploaded tabular sensor data into a canonical,
// strictly ordered observation series.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a header-indexed CSV table. Cells are kept as raw strings until
// normalization decides how to interpret them.
type Table struct {
	Header []string
	Rows   [][]string
	Lines  []int // file line of each row; the header is line 1
	index  map[string]int
}

// ReadCSV parses a comma separated table with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FormatError{Reason: "empty file: no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := NewTable(header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &FormatError{Rows: []int{pe.Line}, Reason: fmt.Sprintf("malformed csv record: %v", pe.Err)}
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

// NewTable builds an empty table for the given header. Header names are
// trimmed and a leading UTF-8 byte order mark is dropped.
func NewTable(header []string) *Table {
	h := make([]string, len(header))
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		h[i] = name
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return &Table{Header: h, index: idx}
}

// Has reports whether the table has the named column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Cell returns the trimmed cell for row i and the named column. Missing
// trailing cells read as empty strings.
func (t *Table) Cell(i int, column string) string {
	c, ok := t.index[column]
	if !ok || c >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][c])
}

// Line returns the file line number of row i.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
