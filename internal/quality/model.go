// Package quality classifies a single environmental reading into a
// growth-quality label with a gradient-boosted ensemble.
package quality

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/HerbHall/hydrosim/internal/quality/gbm"
	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/stat"
)

// Label is a growth-quality class.
type Label string

// Labels in class-index order.
const (
	LabelNormal    Label = "Normal"
	LabelIdeal     Label = "Ideal"
	LabelExcessive Label = "Excessive"
)

// Labels lists every class; a label's index is its ensemble class.
var Labels = []Label{LabelNormal, LabelIdeal, LabelExcessive}

// Features are the classifier inputs in vector order. The hole identifier
// is not a feature.
var Features = []string{
	growth.Temperature,
	growth.Humidity,
	growth.Light,
	growth.PH,
	growth.EC,
	growth.TDS,
	growth.WaterTemp,
}

// Reading is one feature vector in Features order.
type Reading [7]float64

// ErrModelNotLoaded is returned when predicting before a model is trained
// or loaded.
var ErrModelNotLoaded = errors.New("quality model is not trained or loaded")

// ParseLabel accepts a label name (case-insensitive) or its class index.
func ParseLabel(s string) (Label, error) {
	for i, l := range Labels {
		if strings.EqualFold(s, string(l)) || s == strconv.Itoa(i) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q", s)
}

func (l Label) index() int {
	for i, v := range Labels {
		if v == l {
			return i
		}
	}
	return -1
}

// Scaler standardizes features to zero mean and unit variance using
// population statistics. A constant feature keeps a scale of 1.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-column mean and scale from rows.
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, errors.New("fit scaler: no rows")
	}
	cols := len(rows[0])
	s := &Scaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s, nil
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// Model pairs the scaler with the ensemble and the diagnostics gathered at
// training time. It is read-only once built.
type Model struct {
	Scaler   *Scaler       `json:"scaler"`
	Ensemble *gbm.Ensemble `json:"ensemble"`
	Report   *Report       `json:"report,omitempty"`
}

// Predict classifies one reading.
func (m *Model) Predict(r Reading) Label {
	return Labels[m.Ensemble.Predict(m.Scaler.Transform(r[:]))]
}

// Probabilities returns the class probabilities keyed by label.
func (m *Model) Probabilities(r Reading) map[Label]float64 {
	p := m.Ensemble.Proba(m.Scaler.Transform(r[:]))
	out := make(map[Label]float64, len(Labels))
	for i, l := range Labels {
		out[l] = p[i]
	}
	return out
}

func (m *Model) validate() error {
	if m.Scaler == nil || m.Ensemble == nil {
		return errors.New("model is missing its scaler or ensemble")
	}
	if len(m.Scaler.Mean) != len(Features) || len(m.Scaler.Scale) != len(Features) {
		return fmt.Errorf("scaler has %d features, want %d", len(m.Scaler.Mean), len(Features))
	}
	for j := range Features {
		mean, scale := m.Scaler.Mean[j], m.Scaler.Scale[j]
		if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(scale) || math.IsInf(scale, 0) {
			return fmt.Errorf("scaler feature %s is not finite", Features[j])
		}
		if scale == 0 {
			return errors.New("scaler has a zero scale")
		}
	}
	if m.Ensemble.Classes != len(Labels) || m.Ensemble.Features != len(Features) {
		return fmt.Errorf("ensemble shape %dx%d, want %dx%d",
			m.Ensemble.Classes, m.Ensemble.Features, len(Labels), len(Features))
	}
	return m.Ensemble.Validate()
}
