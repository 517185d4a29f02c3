package ingest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

// DefaultAnchor is the planting date used when a file carries day/time
// columns instead of absolute timestamps.
var DefaultAnchor = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

// TimestampLayout is the canonical datetime format for uploads and exports.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer converts raw tables into observation series.
type Normalizer struct {
	// Anchor is day 1 for day/time synthesized timestamps.
	Anchor time.Time
	// Location interprets datetime values that carry no zone.
	Location *time.Location
}

// NewNormalizer returns a normalizer anchored at DefaultAnchor in UTC.
func NewNormalizer() *Normalizer {
	return &Normalizer{Anchor: DefaultAnchor, Location: time.UTC}
}

type parsedRow struct {
	line       int
	ts         time.Time
	target     float64
	regressors map[string]float64
}

// Normalize resolves timestamps, validates and projects the required
// columns, drops exact duplicate reads and sorts by time. Any problem fails
// the whole table; per-row failures are batched into one error per column.
func (n *Normalizer) Normalize(t *Table) (growth.Series, error) {
	if err := checkColumns(t); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, &FormatError{Reason: "no data rows"}
	}

	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	anchor := n.Anchor
	if anchor.IsZero() {
		anchor = DefaultAnchor
	}
	absolute := t.Has(growth.ColumnDatetime)

	failures := newRowErrors()
	rows := make([]parsedRow, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		line := t.Line(i)
		row := parsedRow{line: line, regressors: make(map[string]float64, len(growth.Regressors))}
		ok := true

		if absolute {
			ts, err := parseTimestamp(t.Cell(i, growth.ColumnDatetime), loc)
			if err != nil {
				failures.add(growth.ColumnDatetime, line, "unparseable timestamp")
				ok = false
			}
			row.ts = ts
		} else {
			day, err := parseDay(t.Cell(i, growth.ColumnDay))
			if err != nil {
				failures.add(growth.ColumnDay, line, "day must be a positive integer")
				ok = false
			}
			offset, err := parseClock(t.Cell(i, growth.ColumnTime))
			if err != nil {
				failures.add(growth.ColumnTime, line, "time must be H.MM within 0.00 and 23.59")
				ok = false
			}
			row.ts = anchor.AddDate(0, 0, day-1).Add(offset)
		}

		target, err := parseNumber(t.Cell(i, growth.ColumnTarget))
		if err != nil || target < 0 {
			failures.add(growth.ColumnTarget, line, "leaf count must be a non-negative number")
			ok = false
		}
		row.target = target

		for _, name := range growth.Regressors {
			v, err := parseNumber(t.Cell(i, name))
			if err != nil {
				failures.add(name, line, "value must be numeric")
				ok = false
				continue
			}
			row.regressors[name] = v
		}

		if ok {
			rows = append(rows, row)
		}
	}

	if errs := failures.errs(); len(errs) > 0 {
		return nil, joinFormatErrors(errs)
	}

	rows = dedupe(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })
	return collapse(rows), nil
}

// checkColumns verifies that the target, every regressor and some form of
// time information are present.
func checkColumns(t *Table) error {
	required := append([]string{growth.ColumnTarget}, growth.Regressors...)
	if !t.Has(growth.ColumnDatetime) {
		required = append([]string{growth.ColumnDay, growth.ColumnTime}, required...)
	}
	var missing []string
	for _, c := range required {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &FormatError{Columns: missing, Reason: "missing required column"}
	}
	return nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseDay accepts integral values, including integral floats such as "3.0".
func parseDay(s string) (int, error) {
	if d, err := strconv.Atoi(s); err == nil {
		if d < 1 {
			return 0, fmt.Errorf("day %d is not positive", d)
		}
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid day %q", s)
	}
	return int(f), nil
}

// parseClock reads a dot-decimal hour.minute value ("14.30" is 14:30,
// "9.5" is 09:50) and returns the offset from midnight. The value is first
// rendered with two decimals and then read in colon form.
func parseClock(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 23.59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	colon := strings.Replace(strconv.FormatFloat(f, 'f', 2, 64), ".", ":", 1)
	clock, err := time.Parse("15:04", zeroPad(colon))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute, nil
}

func zeroPad(clock string) string {
	if len(clock) == 4 {
		return "0" + clock
	}
	return clock
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}

// dedupe drops exact duplicate sensor reads: rows sharing the same
// timestamp (day and time) and target. The first occurrence wins.
func dedupe(rows []parsedRow) []parsedRow {
	type key struct {
		ts     int64
		target float64
	}
	seen := make(map[key]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key{ts: r.ts.UnixNano(), target: r.target}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// collapse averages rows that still share a timestamp (same instant,
// different readings) so the output timestamps are strictly increasing.
// Input must be sorted by timestamp.
func collapse(rows []parsedRow) growth.Series {
	series := make(growth.Series, 0, len(rows))
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].ts.Equal(rows[i].ts) {
			j++
		}
		group := rows[i:j]
		obs := growth.Observation{
			Timestamp:  rows[i].ts,
			Regressors: make(map[string]float64, len(growth.Regressors)),
		}
		for _, r := range group {
			obs.Target += r.target
			for _, name := range growth.Regressors {
				obs.Regressors[name] += r.regressors[name]
			}
		}
		k := float64(len(group))
		obs.Target /= k
		for _, name := range growth.Regressors {
			obs.Regressors[name] /= k
		}
		series = append(series, obs)
		i = j
	}
	return series
}
