package analytics

import (
	"math"
	"time"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/stat"
)

// Trend is a straight-line fit of daily average leaf counts.
type Trend struct {
	LeavesPerDay float64  `json:"leaves_per_day"`
	Intercept    float64  `json:"intercept"` // value on the first observed day
	RSquared     float64  `json:"r_squared"` // coefficient of determination (0-1)
	Current      float64  `json:"current"`   // fitted value on the last observed day
	DaysToCap    *float64 `json:"days_to_cap,omitempty"`
}

// DailyTrend fits a least-squares line through the daily averages and, when
// capacity is positive and the line is rising toward it, estimates the days
// left until the capacity is reached. Returns nil for fewer than two days.
func DailyTrend(daily []growth.DailyAverage, capacity float64) *Trend {
	n := len(daily)
	if n < 2 {
		return nil
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	var first time.Time
	for i, d := range daily {
		ts, err := time.Parse(dateLayout, d.Date)
		if err != nil {
			return nil
		}
		if i == 0 {
			first = ts
		}
		xs = append(xs, ts.Sub(first).Hours()/24)
		ys = append(ys, d.LeafCount)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) {
		mean := stat.Mean(ys, nil)
		return &Trend{Intercept: mean, Current: mean}
	}
	rSquared := stat.RSquared(xs, ys, nil, intercept, slope)
	if math.IsNaN(rSquared) || math.IsInf(rSquared, 0) {
		rSquared = 0
	}

	current := slope*xs[n-1] + intercept
	t := &Trend{
		LeavesPerDay: slope,
		Intercept:    intercept,
		RSquared:     rSquared,
		Current:      current,
	}

	// Solve slope*d + current = capacity.
	if capacity > 0 && slope > 0 && current < capacity {
		days := (capacity - current) / slope
		t.DaysToCap = &days
	}
	return t
}
