package analytics

import (
	"fmt"
	"math"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/stat"
)

// CheckOptimality compares the mean of each banded regressor over the
// window against its optimal range. Means are rounded to two decimals
// before comparison. Advisories come back in column order; an empty window
// yields none.
func CheckOptimality(window growth.Series) []growth.Advisory {
	if len(window) == 0 {
		return nil
	}
	var out []growth.Advisory
	for _, name := range growth.Regressors {
		band, ok := optimalRanges[name]
		if !ok {
			continue
		}
		mean := round2(stat.Mean(window.Column(name), nil))
		if band.Contains(mean) {
			continue
		}
		side := "below"
		if mean > band.Upper {
			side = "above"
		}
		out = append(out, growth.Advisory{
			Regressor: name,
			Mean:      mean,
			Band:      band,
			Message: fmt.Sprintf("Average %s is %.2f, %s the optimal range %g to %g.",
				name, mean, side, band.Lower, band.Upper),
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
