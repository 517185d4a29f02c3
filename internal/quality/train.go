package quality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/HerbHall/hydrosim/internal/insight/ingest"
	"github.com/HerbHall/hydrosim/internal/quality/gbm"
)

// Sample is one labelled reading.
type Sample struct {
	Reading Reading
	Label   Label
}

// TrainConfig controls offline training.
type TrainConfig struct {
	TestFraction float64    `mapstructure:"test_fraction"`
	Seed         uint64     `mapstructure:"seed"`
	Boosting     gbm.Params `mapstructure:"boosting"`
}

// DefaultTrainConfig holds out 20% with a fixed seed.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestFraction: 0.2,
		Seed:         42,
		Boosting:     gbm.DefaultParams(),
	}
}

// Report holds held-out diagnostics. Precision, recall and F1 are macro
// averages over the labels.
type Report struct {
	Labels    []Label `json:"labels"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Confusion [][]int `json:"confusion"` // [actual][predicted]
}

// ReadSamples reads labelled readings from CSV. Every feature column and
// the label column must be present.
func ReadSamples(r io.Reader, labelColumn string) ([]Sample, error) {
	t, err := ingest.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, c := range append(append([]string(nil), Features...), labelColumn) {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &ingest.FormatError{Columns: missing, Reason: "missing required column"}
	}

	out := make([]Sample, 0, t.Len())
	var bad []int
	for i := 0; i < t.Len(); i++ {
		var s Sample
		ok := true
		for j, name := range Features {
			v, err := strconv.ParseFloat(t.Cell(i, name), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			s.Reading[j] = v
		}
		label, err := ParseLabel(t.Cell(i, labelColumn))
		if err != nil {
			ok = false
		}
		s.Label = label
		if !ok {
			bad = append(bad, t.Line(i))
			continue
		}
		out = append(out, s)
	}
	if len(bad) > 0 {
		return nil, &ingest.FormatError{Rows: bad, Reason: "unparseable feature or label"}
	}
	if len(out) == 0 {
		return nil, &ingest.FormatError{Reason: "no data rows"}
	}
	return out, nil
}

// Split shuffles a copy of samples with a seeded generator and returns the
// train and test parts. The test part has round(n*fraction) samples and is
// at least one when n > 1.
func Split(samples []Sample, fraction float64, seed uint64) (train, test []Sample) {
	shuffled := append([]Sample(nil), samples...)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := len(shuffled)
	nTest := int(float64(n)*fraction + 0.5)
	if nTest < 1 && n > 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}
	return shuffled[nTest:], shuffled[:nTest]
}

// Train fits the scaler on the training split only, boosts the ensemble
// and evaluates it on the held-out split.
func Train(samples []Sample, cfg TrainConfig) (*Model, error) {
	if len(samples) < 2 {
		return nil, errors.New("train: need at least 2 samples")
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		return nil, fmt.Errorf("train: test fraction %v must be within (0, 1)", cfg.TestFraction)
	}
	train, test := Split(samples, cfg.TestFraction, cfg.Seed)

	raw := make([][]float64, len(train))
	for i, s := range train {
		raw[i] = append([]float64(nil), s.Reading[:]...)
	}
	scaler, err := FitScaler(raw)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	x := make([][]float64, len(train))
	y := make([]int, len(train))
	for i, s := range train {
		x[i] = scaler.Transform(s.Reading[:])
		y[i] = s.Label.index()
	}
	ens, err := gbm.Fit(x, y, len(Labels), cfg.Boosting)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	m := &Model{Scaler: scaler, Ensemble: ens}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	m.Report = Evaluate(m, test)
	m.Report.TrainSize = len(train)
	return m, nil
}

// Evaluate scores the model on labelled samples.
func Evaluate(m *Model, samples []Sample) *Report {
	k := len(Labels)
	r := &Report{
		Labels:    append([]Label(nil), Labels...),
		TestSize:  len(samples),
		Confusion: make([][]int, k),
	}
	for i := range r.Confusion {
		r.Confusion[i] = make([]int, k)
	}
	if len(samples) == 0 {
		return r
	}

	correct := 0
	for _, s := range samples {
		actual, predicted := s.Label.index(), m.Predict(s.Reading).index()
		r.Confusion[actual][predicted]++
		if actual == predicted {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(len(samples))

	// Classes absent from both truth and prediction score zero, matching
	// the zero_division=0 convention.
	for c := 0; c < k; c++ {
		var predicted, actual int
		for j := 0; j < k; j++ {
			predicted += r.Confusion[j][c]
			actual += r.Confusion[c][j]
		}
		tp := r.Confusion[c][c]
		var p, rc, f float64
		if predicted > 0 {
			p = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			rc = float64(tp) / float64(actual)
		}
		if p+rc > 0 {
			f = 2 * p * rc / (p + rc)
		}
		r.Precision += p / float64(k)
		r.Recall += rc / float64(k)
		r.F1 += f / float64(k)
	}
	return r
}

// LoadSamples reads labelled readings from a file path or URL.
func LoadSamples(ctx context.Context, f *ingest.Fetcher, descriptor, labelColumn string) ([]Sample, error) {
	rc, err := f.Open(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	samples, err := ReadSamples(rc, labelColumn)
	if err != nil {
		return nil, fmt.Errorf("read samples from %s: %w", descriptor, err)
	}
	return samples, nil
}
