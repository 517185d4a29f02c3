// Package forecast fits and applies the additive leaf-count forecaster.
//
// An Engine wraps a Model. It is either fitted on an observation series or
// loaded from a persisted artifact, never both, and after that it is
// read-only and safe for concurrent Predict calls.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HerbHall/hydrosim/pkg/growth"
)

// minDistinctDays is the shortest history, in calendar days, that can be fit.
const minDistinctDays = 2

// Config holds forecaster settings.
type Config struct {
	Growth        string  `mapstructure:"growth"`
	Cap           float64 `mapstructure:"cap"`
	FourierOrder  int     `mapstructure:"fourier_order"`
	Ridge         float64 `mapstructure:"ridge"`
	IntervalWidth float64 `mapstructure:"interval_width"`
}

// DefaultConfig returns the default forecaster settings.
func DefaultConfig() Config {
	return Config{
		Growth:        GrowthLinear,
		FourierOrder:  4,
		Ridge:         0.1,
		IntervalWidth: 0.8,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Growth {
	case GrowthLinear:
	case GrowthLogistic:
		if c.Cap <= 0 {
			return &ConfigError{Field: "cap", Reason: "logistic growth needs a positive capacity"}
		}
	default:
		return &ConfigError{Field: "growth", Reason: fmt.Sprintf("unknown mode %q", c.Growth)}
	}
	if c.FourierOrder < 0 {
		return &ConfigError{Field: "fourier_order", Reason: "must not be negative"}
	}
	if c.Ridge <= 0 {
		return &ConfigError{Field: "ridge", Reason: "must be positive"}
	}
	if c.IntervalWidth <= 0 || c.IntervalWidth >= 1 {
		return &ConfigError{Field: "interval_width", Reason: "must be within (0, 1)"}
	}
	return nil
}

type engineState int

const (
	stateFresh engineState = iota
	stateFitted
	stateLoaded
)

func (s engineState) String() string {
	switch s {
	case stateFitted:
		return "fitted"
	case stateLoaded:
		return "loaded"
	default:
		return "fresh"
	}
}

// Engine owns one forecaster instance.
type Engine struct {
	cfg Config

	mu    sync.RWMutex
	model Model
	state engineState
}

// NewEngine returns an engine with a fresh additive model and every
// required regressor registered.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := New(cfg, NewAdditiveModel(cfg))
	if err := e.Initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

// New wraps an arbitrary model. Regressors are not registered; call
// Initialize or register them on the model directly.
func New(cfg Config, m Model) *Engine {
	return &Engine{cfg: cfg, model: m}
}

// Initialize registers the required regressors on the model.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range growth.Regressors {
		if err := e.model.AddRegressor(name); err != nil {
			return fmt.Errorf("register regressor %s: %w", name, err)
		}
	}
	return nil
}

// State reports "fresh", "fitted" or "loaded".
func (e *Engine) State() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.String()
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Fit estimates the model on the series.
func (e *Engine) Fit(series growth.Series) error {
	start := time.Now()
	err := e.fit(series)
	observeFit(start, err)
	return err
}

func (e *Engine) fit(series growth.Series) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateFresh {
		return ErrAlreadyTrained
	}
	if err := checkRegistration(e.model.Regressors()); err != nil {
		return err
	}
	if days := distinctDays(series); days < minDistinctDays {
		return &InsufficientDataError{Days: days, Required: minDistinctDays}
	}
	if err := e.model.Fit(series); err != nil {
		return fmt.Errorf("fit model: %w", err)
	}
	e.state = stateFitted
	return nil
}

// LoadPersisted replaces the fresh model with one read from path.
func (e *Engine) LoadPersisted(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateFresh {
		return ErrAlreadyTrained
	}
	m, err := ReadArtifact(path)
	if err != nil {
		return err
	}
	if err := checkRegistration(m.Regressors()); err != nil {
		return &ModelLoadError{Path: path, Err: err}
	}
	e.model = m
	e.state = stateLoaded
	return nil
}

// Save writes the fitted or loaded model to path.
func (e *Engine) Save(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == stateFresh {
		return ErrModelNotLoaded
	}
	m, ok := e.model.(*AdditiveModel)
	if !ok {
		return fmt.Errorf("save model: %T does not support persistence", e.model)
	}
	return WriteArtifact(path, m)
}

// Predict forecasts the future rows. Predicted, Lower and Upper are
// clipped at zero after the model runs.
func (e *Engine) Predict(future growth.Future) (growth.Frame, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == stateFresh {
		return nil, ErrModelNotLoaded
	}
	est, err := e.model.Predict(future)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(est) != len(future) {
		return nil, fmt.Errorf("predict: model returned %d rows for %d inputs", len(est), len(future))
	}
	predictionsTotal.Add(float64(len(future)))

	frame := make(growth.Frame, len(future))
	for i, f := range future {
		frame[i] = growth.ForecastPoint{
			Timestamp:  f.Timestamp,
			Predicted:  math.Max(0, est[i].Yhat),
			Lower:      math.Max(0, est[i].Lower),
			Upper:      math.Max(0, est[i].Upper),
			Cap:        f.Cap,
			Regressors: f.Regressors,
		}
	}
	return frame, nil
}

// PredictHistory evaluates the model at the observed timestamps.
func (e *Engine) PredictHistory(series growth.Series) (growth.Frame, error) {
	return e.Predict(series.AsFuture())
}

func checkRegistration(registered []string) error {
	have := make(map[string]bool, len(registered))
	for _, r := range registered {
		have[r] = true
	}
	var missing []string
	for _, r := range growth.Regressors {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Field: "regressors", Reason: fmt.Sprintf("not registered: %v", missing)}
	}
	if len(registered) != len(growth.Regressors) {
		extra := make([]string, 0)
		required := make(map[string]bool, len(growth.Regressors))
		for _, r := range growth.Regressors {
			required[r] = true
		}
		for _, r := range registered {
			if !required[r] {
				extra = append(extra, r)
			}
		}
		sort.Strings(extra)
		return &ConfigError{Field: "regressors", Reason: fmt.Sprintf("unexpected: %v", extra)}
	}
	return nil
}

func distinctDays(series growth.Series) int {
	days := make(map[string]struct{})
	for _, o := range series {
		days[o.Timestamp.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
