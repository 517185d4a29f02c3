package quality

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/hydrosim/internal/cache"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the quality classifier plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	models *cache.Memo[*Model]

	mu      sync.RWMutex
	model   *Model
	loadErr error
}

// New creates a new quality plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "quality",
		Version:     "0.1.0",
		Description: "Growth-quality classification of single sensor readings",
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal quality config: %w", err)
		}
	}
	m.models = cache.NewMemo("quality_model", func(_ context.Context, path string) (*Model, error) {
		return Load(path)
	}, m.logger)

	m.logger.Info("quality module initialized",
		zap.String("model_path", m.cfg.ModelPath),
	)
	return nil
}

// Start loads the persisted classifier. A missing or unreadable model is
// not fatal: the module reports itself degraded and rejects predictions.
func (m *Module) Start(ctx context.Context) error {
	if m.cfg.ModelPath == "" {
		m.logger.Info("quality module started without a model path")
		return nil
	}
	model, err := m.models.Get(ctx, m.cfg.ModelPath)

	m.mu.Lock()
	m.model, m.loadErr = model, err
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("quality model unavailable", zap.Error(err))
		return nil
	}
	m.logger.Info("quality module started", zap.String("model_path", m.cfg.ModelPath))
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("quality module stopped")
	}
	return nil
}

// SetModel installs a trained model, replacing any loaded one. A model
// with an inconsistent scaler or ensemble is rejected.
func (m *Module) SetModel(model *Model) error {
	if model == nil {
		return errors.New("set model: nil model")
	}
	if err := model.validate(); err != nil {
		return fmt.Errorf("set model: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model, m.loadErr = model, nil
	return nil
}

// Predict classifies one reading.
func (m *Module) Predict(r Reading) (Label, map[Label]float64, error) {
	m.mu.RLock()
	model := m.model
	m.mu.RUnlock()
	if model == nil {
		return "", nil, ErrModelNotLoaded
	}
	return model.Predict(r), model.Probabilities(r), nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	details := map[string]string{"model_path": m.cfg.ModelPath}
	if m.model != nil {
		return plugin.HealthStatus{Status: "healthy", Details: details}
	}
	msg := ErrModelNotLoaded.Error()
	var mle *ModelLoadError
	if errors.As(m.loadErr, &mle) {
		msg = mle.Error()
	}
	return plugin.HealthStatus{Status: "degraded", Message: msg, Details: details}
}
