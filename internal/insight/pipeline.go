package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/hydrosim/internal/insight/analytics"
	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/horizon"
	"github.com/HerbHall/hydrosim/pkg/growth"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

// Forecast modes.
const (
	ModeFit        = "fit"
	ModePretrained = "pretrained"
)

// Optimality windows.
const (
	WindowHistory  = "history"
	WindowForecast = "forecast"
)

// ForecastRequest selects how a session is forecast. Every field is
// optional.
type ForecastRequest struct {
	// Periods defaults to the days remaining until the last growth day.
	Periods *int `json:"periods,omitempty" example:"14"`
	// WeightGrams picks the capacity from the weight table.
	WeightGrams *int `json:"weight_grams,omitempty" example:"100"`
	// Cap sets the capacity directly and wins over WeightGrams.
	Cap *float64 `json:"cap,omitempty" example:"18"`
	// Mode is "fit" (default) or "pretrained".
	Mode string `json:"mode,omitempty" example:"fit"`
	// OptimalityWindow is "history" (default) or "forecast".
	OptimalityWindow string `json:"optimality_window,omitempty" example:"history"`
}

// RequestError reports an unusable forecast request field.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// HistoryPoint pairs an observation with the in-sample model fit.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Observed  float64   `json:"observed"`
	Fitted    float64   `json:"fitted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// ForecastResult is the complete output of one pipeline run.
type ForecastResult struct {
	SessionID        string            `json:"session_id"`
	Mode             string            `json:"mode"`
	Periods          int               `json:"periods"`
	Cap              *float64          `json:"cap,omitempty"`
	Forecast         growth.Frame      `json:"forecast"`
	History          []HistoryPoint    `json:"history"`
	Summary          growth.Summary    `json:"summary"`
	SummaryText      string            `json:"summary_text"`
	GrowthError      string            `json:"growth_error,omitempty"`
	OptimalityWindow string            `json:"optimality_window"`
	Advisories       []growth.Advisory `json:"advisories"`
	Trend            *analytics.Trend  `json:"trend,omitempty"`
}

// plan is a validated ForecastRequest.
type plan struct {
	mode    string
	periods int
	cap     *float64
	window  string
}

func (m *Module) plan(req ForecastRequest, uniqueDays int) (plan, error) {
	p := plan{mode: req.Mode, window: req.OptimalityWindow}
	switch p.mode {
	case "":
		p.mode = ModeFit
	case ModeFit, ModePretrained:
	default:
		return plan{}, &RequestError{Field: "mode", Reason: fmt.Sprintf("%q is not fit or pretrained", req.Mode)}
	}
	switch p.window {
	case "":
		p.window = WindowHistory
	case WindowHistory, WindowForecast:
	default:
		return plan{}, &RequestError{Field: "optimality_window", Reason: fmt.Sprintf("%q is not history or forecast", req.OptimalityWindow)}
	}

	if req.Periods == nil {
		p.periods = m.cfg.Horizon.RemainingDays(m.cfg.MaxDay, uniqueDays)
	} else {
		if err := m.cfg.Horizon.Check(*req.Periods); err != nil {
			return plan{}, err
		}
		p.periods = *req.Periods
	}

	switch {
	case req.Cap != nil:
		if *req.Cap <= 0 {
			return plan{}, &RequestError{Field: "cap", Reason: "must be positive"}
		}
		c := *req.Cap
		p.cap = &c
	case req.WeightGrams != nil:
		c, err := m.cfg.CapTable.CapForWeight(*req.WeightGrams)
		if err != nil {
			return plan{}, err
		}
		p.cap = &c
	}
	return p, nil
}

// runForecast executes the pipeline for a session. Each stage is reported
// on the bus; the first failing stage aborts the run.
func (m *Module) runForecast(ctx context.Context, tr *tracker, sess *Session, req ForecastRequest) (*ForecastResult, error) {
	start := time.Now()
	p, err := m.plan(req, sess.UniqueDays)
	if err != nil {
		return nil, err
	}

	res, err := m.execute(ctx, tr, sess, p)
	result := "success"
	if err != nil {
		result = "error"
	}
	pipelineRuns.WithLabelValues(p.mode, result).Inc()
	pipelineDuration.WithLabelValues(p.mode).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	tr.done()
	m.logger.Info("forecast completed",
		zap.String("session_id", sess.ID),
		zap.String("mode", p.mode),
		zap.Int("periods", p.periods),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (m *Module) execute(ctx context.Context, tr *tracker, sess *Session, p plan) (*ForecastResult, error) {
	var engine *forecast.Engine
	if p.mode == ModePretrained {
		err := tr.run(StageLoadModel, func() error {
			var err error
			engine, err = m.pretrained.Get(ctx, m.cfg.PretrainedModel)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		err := tr.run(StageFit, func() error {
			var err error
			engine, err = forecast.NewEngine(m.forecastConfig(p.cap))
			if err != nil {
				return err
			}
			return engine.Fit(sess.Series)
		})
		if err != nil {
			return nil, err
		}
	}

	var future growth.Future
	err := tr.run(StageHorizon, func() error {
		var err error
		future, err = horizon.BuildFuture(sess.Series, p.periods, p.cap)
		return err
	})
	if err != nil {
		return nil, err
	}

	var frame, fitted growth.Frame
	err = tr.run(StagePredict, func() error {
		var err error
		if frame, err = engine.Predict(future); err != nil {
			return err
		}
		fitted, err = engine.PredictHistory(sess.Series)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &ForecastResult{
		SessionID:        sess.ID,
		Mode:             p.mode,
		Periods:          p.periods,
		Cap:              p.cap,
		Forecast:         frame,
		History:          mergeHistory(sess.Series, fitted),
		OptimalityWindow: p.window,
	}
	err = tr.run(StageAnalyze, func() error {
		summary, err := analytics.BuildSummary(sess.Series, frame)
		switch {
		case errors.Is(err, analytics.ErrZeroBaseline):
			res.GrowthError = err.Error()
		case err != nil:
			return err
		}
		res.Summary = summary
		res.SummaryText = analytics.Summarize(summary)

		window := fitted.Window()
		if p.window == WindowForecast {
			window = frame.Window()
		}
		res.Advisories = analytics.CheckOptimality(window)
		if res.Advisories == nil {
			res.Advisories = []growth.Advisory{}
		}

		var capacity float64
		if p.cap != nil {
			capacity = *p.cap
		}
		res.Trend = analytics.DailyTrend(analytics.DailyAverages(sess.Series), capacity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Module) forecastConfig(capacity *float64) forecast.Config {
	return m.cfg.EngineConfig(capacity)
}

func mergeHistory(series growth.Series, fitted growth.Frame) []HistoryPoint {
	out := make([]HistoryPoint, len(series))
	for i, o := range series {
		out[i] = HistoryPoint{
			Timestamp: o.Timestamp,
			Observed:  o.Target,
			Fitted:    fitted[i].Predicted,
			Lower:     fitted[i].Lower,
			Upper:     fitted[i].Upper,
		}
	}
	return out
}

// tracker publishes stage transitions for one pipeline run.
type tracker struct {
	ctx       context.Context
	bus       plugin.EventBus
	sessionID string
	step      int
	total     int
	logger    *zap.Logger
}

func (m *Module) newTracker(ctx context.Context, sessionID string, total int) *tracker {
	return &tracker{
		ctx:       ctx,
		bus:       m.bus,
		sessionID: sessionID,
		total:     total,
		logger:    m.logger,
	}
}

// run reports stage as started, runs fn and reports completion or failure.
func (t *tracker) run(stage Stage, fn func() error) error {
	t.step++
	t.publish(stage, StatusStarted, "")
	if err := fn(); err != nil {
		t.publish(stage, StatusFailed, err.Error())
		t.logger.Debug("pipeline stage failed",
			zap.String("session_id", t.sessionID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return err
	}
	t.publish(stage, StatusCompleted, "")
	return nil
}

func (t *tracker) done() {
	t.step = t.total
	t.publish(StageDone, StatusCompleted, "")
}

func (t *tracker) publish(stage Stage, status, errMsg string) {
	if t.bus == nil {
		return
	}
	_ = t.bus.Publish(t.ctx, plugin.Event{
		Topic:  TopicPipelineProgress,
		Source: pluginName,
		Payload: &ProgressEvent{
			SessionID: t.sessionID,
			Stage:     stage,
			Status:    status,
			Step:      t.step,
			Total:     t.total,
			Error:     errMsg,
		},
	})
}
