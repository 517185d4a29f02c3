// Package insight is the forecasting plugin: it normalizes uploaded sensor
// logs into sessions and runs the leaf-count forecast pipeline over them.
package insight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/hydrosim/internal/cache"
	"github.com/HerbHall/hydrosim/internal/insight/analytics"
	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/ingest"
	"github.com/HerbHall/hydrosim/pkg/growth"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

const pluginName = "insight"

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Module implements the insight plugin.
type Module struct {
	logger     *zap.Logger
	cfg        Config
	bus        plugin.EventBus
	normalizer *ingest.Normalizer
	fetcher    *ingest.Fetcher
	sessions   *sessionStore

	samples    *cache.Memo[growth.Series]
	pretrained *cache.Memo[*forecast.Engine]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new insight plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        pluginName,
		Version:     "0.1.0",
		Description: "Leaf-count forecasting and growth analytics",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal insight config: %w", err)
		}
	}

	m.normalizer = m.cfg.Normalizer()
	m.fetcher = ingest.NewFetcher()
	m.sessions = newSessionStore(max(m.cfg.MaxSessions, 1))
	m.samples = cache.NewMemo("sample_data", m.loadSample, m.logger)
	m.pretrained = cache.NewMemo("pretrained_forecaster", m.loadPretrained, m.logger)

	m.logger.Info("insight module initialized",
		zap.String("anchor", m.cfg.Anchor),
		zap.Int("max_day", m.cfg.MaxDay),
		zap.Int("horizon_min", m.cfg.Horizon.Min),
		zap.Int("horizon_max", m.cfg.Horizon.Max),
		zap.String("growth", m.cfg.Forecast.Growth),
		zap.String("sample_data", m.cfg.SampleData),
		zap.String("pretrained_model", m.cfg.PretrainedModel),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startMaintenance()
	m.logger.Info("insight module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("insight module stopped")
	return nil
}

// HasSession reports whether an upload session exists. The progress
// stream uses it to reject unknown sessions. The sample session counts as
// existing whenever a sample dataset is configured.
func (m *Module) HasSession(id string) bool {
	if id == SampleSessionID && m.cfg.SampleData != "" {
		return true
	}
	return m.sessions != nil && m.sessions.Has(id)
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{
		"sessions": "0",
	}
	if m.sessions != nil {
		details["sessions"] = strconv.Itoa(m.sessions.Len())
	}
	if m.pretrained != nil {
		details["pretrained_loaded"] = strconv.FormatBool(m.pretrained.Len() > 0)
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Ingest normalizes a CSV upload and stores it as a new session.
func (m *Module) Ingest(source string, t *ingest.Table) (*Session, error) {
	series, err := m.normalizer.Normalize(t)
	if err != nil {
		return nil, err
	}
	sess := m.sessions.Create(source, series, analytics.UniqueDays(series))
	m.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("source", source),
		zap.Int("rows", len(series)),
		zap.Int("unique_days", sess.UniqueDays),
	)
	return sess, nil
}

// Forecast runs the pipeline over an existing session.
func (m *Module) Forecast(ctx context.Context, sessionID string, req ForecastRequest) (*ForecastResult, error) {
	sess, ok := m.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.runForecast(ctx, m.newTracker(ctx, sess.ID, 5), sess, req)
}

// SampleSessionID is the fixed session every sample forecast runs in.
// Clients can open its progress stream before the first run.
const SampleSessionID = "sample"

// ForecastSample runs the pipeline over the sample dataset in the shared
// sample session, so repeated runs hold one LRU slot. The normalize stage
// is reported because the sample may be fetched on first use.
func (m *Module) ForecastSample(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	if m.cfg.SampleData == "" {
		return nil, fmt.Errorf("%w: none configured", ErrSampleUnavailable)
	}
	id := SampleSessionID
	tr := m.newTracker(ctx, id, 6)
	var series growth.Series
	err := tr.run(StageNormalize, func() error {
		var err error
		series, err = m.samples.Get(ctx, m.cfg.SampleData)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSampleUnavailable, err)
	}
	sess := m.sessions.CreateWithID(id, "sample", series, analytics.UniqueDays(series))
	return m.runForecast(ctx, tr, sess, req)
}

// ErrSessionNotFound is returned for an unknown or reaped session.
var ErrSessionNotFound = errors.New("session not found")

// ErrSampleUnavailable is returned when the sample dataset is not
// configured or cannot be loaded.
var ErrSampleUnavailable = errors.New("sample dataset unavailable")

func (m *Module) loadSample(ctx context.Context, descriptor string) (growth.Series, error) {
	t, err := m.fetcher.LoadTable(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	return m.normalizer.Normalize(t)
}

// loadPretrained reads the persisted forecaster. When the artifact does not
// exist and bootstrapping is enabled, a model is fitted on the sample
// dataset and saved to path.
func (m *Module) loadPretrained(ctx context.Context, path string) (*forecast.Engine, error) {
	if path == "" {
		return nil, &forecast.ModelLoadError{Path: path, Err: errors.New("no pretrained model configured")}
	}
	engine, err := forecast.NewEngine(m.forecastConfig(nil))
	if err != nil {
		return nil, &forecast.ModelLoadError{Path: path, Err: err}
	}
	err = engine.LoadPersisted(path)
	if err == nil {
		m.logger.Info("pretrained forecaster loaded", zap.String("path", path))
		return engine, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || !m.cfg.BootstrapPretrained || m.cfg.SampleData == "" {
		return nil, err
	}

	start := time.Now()
	series, serr := m.samples.Get(ctx, m.cfg.SampleData)
	if serr != nil {
		return nil, &forecast.ModelLoadError{Path: path, Err: fmt.Errorf("bootstrap from sample: %w", serr)}
	}
	fresh, err := forecast.NewEngine(m.forecastConfig(nil))
	if err != nil {
		return nil, &forecast.ModelLoadError{Path: path, Err: err}
	}
	if err := fresh.Fit(series); err != nil {
		return nil, &forecast.ModelLoadError{Path: path, Err: fmt.Errorf("bootstrap from sample: %w", err)}
	}
	if err := fresh.Save(path); err != nil {
		m.logger.Warn("bootstrapped forecaster could not be saved", zap.String("path", path), zap.Error(err))
	}
	m.logger.Info("pretrained forecaster bootstrapped from sample data",
		zap.String("path", path),
		zap.Int("rows", len(series)),
		zap.Duration("duration", time.Since(start)),
	)
	return fresh, nil
}
