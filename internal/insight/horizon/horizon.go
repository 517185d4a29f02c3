// Package horizon builds the future frame a forecast is evaluated on and
// enforces the horizon policy.
package horizon

import (
	"errors"
	"fmt"
	"sort"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

// MaxDay is the last day of a grow cycle. The default horizon runs from the
// observed days up to it.
const MaxDay = 40

// ErrEmptySeries is returned when there is no observation to extend.
var ErrEmptySeries = errors.New("cannot build a horizon from an empty series")

// InvalidHorizonError reports a horizon length that cannot be used.
type InvalidHorizonError struct {
	Periods int
	Min     int
	Max     int
}

func (e *InvalidHorizonError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("invalid horizon: %d day(s), allowed %d to %d", e.Periods, e.Min, e.Max)
	}
	return fmt.Sprintf("invalid horizon: %d day(s), must be at least 1", e.Periods)
}

// Policy bounds the horizon a caller may request.
type Policy struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// DefaultPolicy allows 5 to 40 days.
func DefaultPolicy() Policy {
	return Policy{Min: 5, Max: MaxDay}
}

// Check returns an *InvalidHorizonError when periods is outside the policy.
func (p Policy) Check(periods int) error {
	if periods < 1 || periods < p.Min || (p.Max > 0 && periods > p.Max) {
		return &InvalidHorizonError{Periods: periods, Min: p.Min, Max: p.Max}
	}
	return nil
}

// RemainingDays is the default horizon: the days left until maxDay given
// the number of days already observed, kept within the policy.
func (p Policy) RemainingDays(maxDay, uniqueDays int) int {
	n := maxDay - uniqueDays
	if n < p.Min {
		n = p.Min
	}
	if p.Max > 0 && n > p.Max {
		n = p.Max
	}
	if n < 1 {
		n = 1
	}
	return n
}

// BuildFuture returns periods daily rows starting one day after the last
// observation. Regressors are held at their last observed values and cap,
// when non-nil, is attached to every row.
func BuildFuture(series growth.Series, periods int, cap *float64) (growth.Future, error) {
	if periods < 1 {
		return nil, &InvalidHorizonError{Periods: periods}
	}
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	last := series.Last()
	future := make(growth.Future, periods)
	for i := range future {
		regs := make(map[string]float64, len(last.Regressors))
		for k, v := range last.Regressors {
			regs[k] = v
		}
		row := growth.FutureRow{
			Timestamp:  last.Timestamp.AddDate(0, 0, i+1),
			Regressors: regs,
		}
		if cap != nil {
			c := *cap
			row.Cap = &c
		}
		future[i] = row
	}
	return future, nil
}

// CapTable maps harvest weight in grams to a leaf-count capacity.
type CapTable map[int]float64

// DefaultCapTable is the weight selector of the dashboard.
func DefaultCapTable() CapTable {
	return CapTable{100: 18, 150: 23}
}

// UnknownWeightError reports a weight missing from the cap table.
type UnknownWeightError struct {
	Grams int
	Known []int
}

func (e *UnknownWeightError) Error() string {
	return fmt.Sprintf("no capacity for %d g, known weights %v", e.Grams, e.Known)
}

// CapForWeight returns the capacity for a target weight.
func (t CapTable) CapForWeight(grams int) (float64, error) {
	c, ok := t[grams]
	if !ok {
		return 0, &UnknownWeightError{Grams: grams, Known: t.Weights()}
	}
	return c, nil
}

// Weights returns the known weights in ascending order.
func (t CapTable) Weights() []int {
	out := make([]int, 0, len(t))
	for w := range t {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}
