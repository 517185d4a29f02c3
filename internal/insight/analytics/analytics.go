// Package analytics derives growth metrics from observed and forecast
// leaf counts: growth percentage, optimal-range advisories, descriptive
// statistics and the summary sentence shown to growers.
package analytics

import (
	"errors"
	"fmt"
	"math"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

// ErrZeroBaseline is returned when the last observed leaf count is zero,
// which leaves the growth percentage undefined.
var ErrZeroBaseline = errors.New("last observed leaf count is zero")

// ErrEmptyInput is returned when a series or frame has no rows.
var ErrEmptyInput = errors.New("no rows to analyse")

var optimalRanges = map[string]growth.Range{
	growth.Temperature: {Lower: 25, Upper: 28},
	growth.Humidity:    {Lower: 50, Upper: 70},
	growth.Light:       {Lower: 1000, Upper: 4000},
	growth.PH:          {Lower: 6.0, Upper: 7.0},
	growth.EC:          {Lower: 1200, Upper: 1800},
	growth.TDS:         {Lower: 560, Upper: 840},
	growth.WaterTemp:   {Lower: 25, Upper: 28},
}

// OptimalRanges returns a copy of the ideal band per regressor. The hole
// identifier has no band.
func OptimalRanges() map[string]growth.Range {
	out := make(map[string]growth.Range, len(optimalRanges))
	for k, v := range optimalRanges {
		out[k] = v
	}
	return out
}

// GrowthPercent is the relative change from the last observed leaf count
// to the largest forecast value, in percent.
func GrowthPercent(series growth.Series, frame growth.Frame) (float64, error) {
	if len(series) == 0 {
		return 0, ErrEmptyInput
	}
	peak, ok := frame.MaxPredicted()
	if !ok {
		return 0, ErrEmptyInput
	}
	last := series.Last().Target
	if last == 0 {
		return 0, ErrZeroBaseline
	}
	return (peak - last) / last * 100, nil
}

// BuildSummary collects the figures for Summarize. A zero baseline is
// reported as both a nil GrowthPercent and ErrZeroBaseline; the summary is
// still usable.
func BuildSummary(series growth.Series, frame growth.Frame) (growth.Summary, error) {
	if len(series) == 0 || len(frame) == 0 {
		return growth.Summary{}, ErrEmptyInput
	}
	peak, _ := frame.MaxPredicted()
	s := growth.Summary{
		LastObserved: series.Last().Target,
		MaxForecast:  peak,
		HorizonDays:  len(frame),
	}
	pct, err := GrowthPercent(series, frame)
	if err != nil {
		return s, err
	}
	s.GrowthPercent = &pct
	return s, nil
}

// Summarize renders the summary as one sentence.
func Summarize(s growth.Summary) string {
	if s.GrowthPercent == nil {
		return fmt.Sprintf(
			"Growth percentage is unavailable because the last observed leaf count is zero; the forecast peaks at %.2f leaves within %d days.",
			s.MaxForecast, s.HorizonDays)
	}
	verb := "grow"
	if *s.GrowthPercent < 0 {
		verb = "shrink"
	}
	return fmt.Sprintf(
		"Leaf count is forecast to %s by %.2f%% from %.2f to a maximum of %.2f leaves within %d days.",
		verb, math.Abs(*s.GrowthPercent), s.LastObserved, s.MaxForecast, s.HorizonDays)
}
