package analytics

import (
	"math"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/stat"
)

// Outliers flags regressor readings whose z-score against the column mean
// reaches threshold. A reading is critical from threshold+1 upward. Columns
// with zero spread are skipped. Results are ordered by column, then time.
func Outliers(series growth.Series, threshold float64) []growth.Outlier {
	if len(series) < 2 || threshold <= 0 {
		return nil
	}
	var out []growth.Outlier
	for _, name := range growth.Regressors {
		values := series.Column(name)
		mean, std := stat.MeanStdDev(values, nil)
		if std <= 0 || math.IsNaN(std) {
			continue
		}
		for i, v := range values {
			z := (v - mean) / std
			if math.Abs(z) < threshold {
				continue
			}
			severity := growth.SeverityWarning
			if math.Abs(z) >= threshold+1 {
				severity = growth.SeverityCritical
			}
			out = append(out, growth.Outlier{
				Timestamp: series[i].Timestamp,
				Column:    name,
				Value:     v,
				ZScore:    round2(z),
				Severity:  severity,
			})
		}
	}
	return out
}
