package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Growth modes for the trend component.
const (
	GrowthLinear   = "linear"
	GrowthLogistic = "logistic"
)

// logisticEpsilon keeps y/cap away from 0 and 1 before taking the logit.
const logisticEpsilon = 1e-4

// Estimate is one raw model output before any clipping.
type Estimate struct {
	Yhat  float64
	Lower float64
	Upper float64
}

// Model is a forecaster over timestamps and exogenous regressors. The
// engine drives it; alternative algorithms plug in behind this interface.
type Model interface {
	AddRegressor(name string) error
	Regressors() []string
	Fit(history growth.Series) error
	Predict(future growth.Future) ([]Estimate, error)
}

// additiveState is everything needed to reproduce predictions. It is the
// persisted form of an AdditiveModel.
type additiveState struct {
	Growth        string    `json:"growth"`
	Capacity      float64   `json:"capacity,omitempty"`
	FourierOrder  int       `json:"fourier_order"`
	Ridge         float64   `json:"ridge"`
	IntervalWidth float64   `json:"interval_width"`
	Regressors    []string  `json:"regressors"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	SpanDays      float64   `json:"span_days"`
	YScale        float64   `json:"y_scale"`
	Mean          []float64 `json:"regressor_mean"`
	Std           []float64 `json:"regressor_std"`
	Coef          []float64 `json:"coef"`
	Sigma         float64   `json:"sigma"`
	N             int       `json:"n"`
}

// AdditiveModel decomposes the target into a trend, a daily Fourier
// seasonality and a linear term per standardized regressor:
//
//	y(t) = trend(t) + Σk [a_k sin(2πkd) + b_k cos(2πkd)] + Σi β_i z_i(t)
//
// where d is the fraction of the day. Coefficients are found by ridge
// least squares. In logistic mode the model is fit on logit(y/cap) and
// predictions saturate at the capacity.
type AdditiveModel struct {
	st     additiveState
	fitted bool
}

// NewAdditiveModel creates an unfitted model with no regressors.
func NewAdditiveModel(cfg Config) *AdditiveModel {
	return &AdditiveModel{st: additiveState{
		Growth:        cfg.Growth,
		Capacity:      cfg.Cap,
		FourierOrder:  cfg.FourierOrder,
		Ridge:         cfg.Ridge,
		IntervalWidth: cfg.IntervalWidth,
	}}
}

// AddRegressor registers an exogenous regressor. Registration must happen
// before Fit.
func (m *AdditiveModel) AddRegressor(name string) error {
	if m.fitted {
		return ErrAlreadyTrained
	}
	if name == "" {
		return &ConfigError{Field: "regressor", Reason: "name must not be empty"}
	}
	for _, r := range m.st.Regressors {
		if r == name {
			return &ConfigError{Field: "regressor", Reason: fmt.Sprintf("%q registered twice", name)}
		}
	}
	m.st.Regressors = append(m.st.Regressors, name)
	return nil
}

// Regressors returns the registered regressor names in registration order.
func (m *AdditiveModel) Regressors() []string {
	out := make([]string, len(m.st.Regressors))
	copy(out, m.st.Regressors)
	return out
}

// Fit estimates the model from history. The history must be sorted and
// span at least two distinct days.
func (m *AdditiveModel) Fit(history growth.Series) error {
	if m.fitted {
		return ErrAlreadyTrained
	}
	if days := distinctDays(history); days < minDistinctDays {
		return &InsufficientDataError{Days: days, Required: minDistinctDays}
	}
	if err := m.checkRegressors(history.AsFuture()); err != nil {
		return err
	}

	st := m.st
	n := len(history)
	st.Start = history[0].Timestamp
	st.End = history.Last().Timestamp
	st.SpanDays = st.End.Sub(st.Start).Hours() / 24
	st.N = n

	st.Mean = make([]float64, len(st.Regressors))
	st.Std = make([]float64, len(st.Regressors))
	for i, name := range st.Regressors {
		mean, std := stat.MeanStdDev(history.Column(name), nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		st.Mean[i], st.Std[i] = mean, std
	}

	target := make([]float64, n)
	switch st.Growth {
	case GrowthLogistic:
		for i, o := range history {
			target[i] = logit(o.Target / st.Capacity)
		}
	default:
		st.YScale = 0
		for _, o := range history {
			st.YScale = math.Max(st.YScale, math.Abs(o.Target))
		}
		if st.YScale == 0 {
			st.YScale = 1
		}
		for i, o := range history {
			target[i] = o.Target / st.YScale
		}
	}

	p := st.features()
	x := mat.NewDense(n, p, nil)
	row := make([]float64, p)
	for i, o := range history {
		st.design(row, o.Timestamp, o.Regressors)
		x.SetRow(i, row)
	}
	y := mat.NewVecDense(n, target)

	coef, err := solveRidge(x, y, st.Ridge)
	if err != nil {
		return err
	}
	st.Coef = coef

	var fitted mat.VecDense
	fitted.MulVec(x, mat.NewVecDense(p, coef))
	var ssr float64
	for i := 0; i < n; i++ {
		r := target[i] - fitted.AtVec(i)
		ssr += r * r
	}
	st.Sigma = math.Sqrt(ssr / float64(n))

	m.st = st
	m.fitted = true
	return nil
}

// Predict evaluates the fitted model on future rows. Output is raw: no
// bounds are applied.
func (m *AdditiveModel) Predict(future growth.Future) ([]Estimate, error) {
	if !m.fitted {
		return nil, ErrModelNotLoaded
	}
	if err := m.checkRegressors(future); err != nil {
		return nil, err
	}

	st := &m.st
	zq := distuv.UnitNormal.Quantile(0.5 + st.IntervalWidth/2)
	row := make([]float64, st.features())
	out := make([]Estimate, len(future))
	for i, f := range future {
		st.design(row, f.Timestamp, f.Regressors)
		var z float64
		for j, c := range st.Coef {
			z += c * row[j]
		}

		h := math.Max(0, f.Timestamp.Sub(st.End).Hours()/24)
		w := zq * st.Sigma * math.Sqrt(1+h/float64(st.N))

		switch st.Growth {
		case GrowthLogistic:
			capacity := st.Capacity
			if f.Cap != nil {
				capacity = *f.Cap
			}
			out[i] = Estimate{
				Yhat:  capacity * sigmoid(z),
				Lower: capacity * sigmoid(z-w),
				Upper: capacity * sigmoid(z+w),
			}
		default:
			out[i] = Estimate{
				Yhat:  z * st.YScale,
				Lower: (z - w) * st.YScale,
				Upper: (z + w) * st.YScale,
			}
		}
	}
	return out, nil
}

func (m *AdditiveModel) checkRegressors(rows growth.Future) error {
	for i, r := range rows {
		for _, name := range m.st.Regressors {
			if _, ok := r.Regressors[name]; !ok {
				return fmt.Errorf("row %d, %q: %w", i, name, ErrMissingRegressor)
			}
		}
	}
	return nil
}

// features returns the number of design matrix columns: intercept, trend,
// two per Fourier order and one per regressor.
func (st *additiveState) features() int {
	return 2 + 2*st.FourierOrder + len(st.Regressors)
}

// design fills row with the feature vector for one instant.
func (st *additiveState) design(row []float64, ts time.Time, regs map[string]float64) {
	row[0] = 1
	row[1] = ts.Sub(st.Start).Hours() / 24 / st.SpanDays

	h, mi, s := ts.Clock()
	frac := float64(h*3600+mi*60+s) / 86400
	col := 2
	for k := 1; k <= st.FourierOrder; k++ {
		arg := 2 * math.Pi * float64(k) * frac
		row[col] = math.Sin(arg)
		row[col+1] = math.Cos(arg)
		col += 2
	}
	for i, name := range st.Regressors {
		row[col+i] = (regs[name] - st.Mean[i]) / st.Std[i]
	}
}

// solveRidge solves (XᵀX + λD)β = Xᵀy where D is the identity with the
// intercept entry zeroed.
func solveRidge(x *mat.Dense, y *mat.VecDense, lambda float64) ([]float64, error) {
	_, p := x.Dims()
	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, x.T())
	for j := 1; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, fmt.Errorf("normal equations are not positive definite (ridge %g)", lambda)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	return mat.Col(nil, 0, &beta), nil
}

func logit(p float64) float64 {
	p = math.Min(math.Max(p, logisticEpsilon), 1-logisticEpsilon)
	return math.Log(p / (1 - p))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
