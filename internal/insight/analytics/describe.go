package analytics

import (
	"sort"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const dateLayout = "2006-01-02"

// Describe returns min, max and mean for the leaf count and every
// regressor, in column order.
func Describe(series growth.Series) []growth.Stats {
	if len(series) == 0 {
		return nil
	}
	columns := append([]string{growth.ColumnTarget}, growth.Regressors...)
	out := make([]growth.Stats, 0, len(columns))
	for _, name := range columns {
		var values []float64
		if name == growth.ColumnTarget {
			values = series.Targets()
		} else {
			values = series.Column(name)
		}
		out = append(out, growth.Stats{
			Column: name,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
			Mean:   round2(stat.Mean(values, nil)),
		})
	}
	return out
}

// DailyAverages returns the mean leaf count per calendar day, oldest first.
func DailyAverages(series growth.Series) []growth.DailyAverage {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, o := range series {
		d := o.Timestamp.Format(dateLayout)
		sums[d] += o.Target
		counts[d]++
	}
	days := make([]string, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]growth.DailyAverage, len(days))
	for i, d := range days {
		out[i] = growth.DailyAverage{Date: d, LeafCount: round2(sums[d] / float64(counts[d]))}
	}
	return out
}

// UniqueDays counts the distinct calendar days in the series.
func UniqueDays(series growth.Series) int {
	seen := make(map[string]struct{})
	for _, o := range series {
		seen[o.Timestamp.Format(dateLayout)] = struct{}{}
	}
	return len(seen)
}
