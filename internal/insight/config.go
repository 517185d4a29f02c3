package insight

import (
	"fmt"
	"time"

	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/horizon"
	"github.com/HerbHall/hydrosim/internal/insight/ingest"
)

// anchorLayout is the date format of Config.Anchor.
const anchorLayout = "2006-01-02"

// Config holds configuration for the insight plugin.
type Config struct {
	// Anchor is the calendar date of day 1 for day/time uploads.
	Anchor   string           `mapstructure:"anchor"`
	MaxDay   int              `mapstructure:"max_day"`
	Horizon  horizon.Policy   `mapstructure:"horizon"`
	CapTable horizon.CapTable `mapstructure:"cap_table"`
	Forecast forecast.Config  `mapstructure:"forecast"`

	// SampleData is the file path or URL of the example dataset.
	SampleData string `mapstructure:"sample_data"`
	// PretrainedModel is the forecaster artifact used in pretrained mode.
	PretrainedModel string `mapstructure:"pretrained_model"`
	// BootstrapPretrained fits and saves the pretrained model from the
	// sample dataset when the artifact does not exist yet.
	BootstrapPretrained bool `mapstructure:"bootstrap_pretrained"`

	OutlierZScore       float64       `mapstructure:"outlier_zscore"`
	SessionTTL          time.Duration `mapstructure:"session_ttl"`
	MaxSessions         int           `mapstructure:"max_sessions"`
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig returns the defaults for the insight plugin.
func DefaultConfig() Config {
	return Config{
		Anchor:              "2024-07-01",
		MaxDay:              horizon.MaxDay,
		Horizon:             horizon.DefaultPolicy(),
		CapTable:            horizon.DefaultCapTable(),
		Forecast:            forecast.DefaultConfig(),
		SampleData:          "data/sample.csv",
		PretrainedModel:     "models/forecast.json",
		BootstrapPretrained: true,
		OutlierZScore:       3.0,
		SessionTTL:          2 * time.Hour,
		MaxSessions:         256,
		MaxUploadBytes:      10 << 20,
		MaintenanceInterval: 5 * time.Minute,
	}
}

// Validate checks the settings Init cannot repair.
func (c Config) Validate() error {
	if _, err := c.anchor(); err != nil {
		return err
	}
	if c.MaxDay < 1 {
		return fmt.Errorf("max_day must be positive, got %d", c.MaxDay)
	}
	if c.Horizon.Min < 1 || (c.Horizon.Max > 0 && c.Horizon.Max < c.Horizon.Min) {
		return fmt.Errorf("horizon policy %d..%d is empty", c.Horizon.Min, c.Horizon.Max)
	}
	if c.SessionTTL <= 0 || c.MaintenanceInterval <= 0 {
		return fmt.Errorf("session_ttl and maintenance_interval must be positive")
	}
	if c.MaxSessions < 1 || c.MaxUploadBytes < 1 {
		return fmt.Errorf("max_sessions and max_upload_bytes must be positive")
	}
	// Logistic capacity may come per request, so only the shape of the
	// forecaster settings is checked here.
	fc := c.Forecast
	if fc.Growth == forecast.GrowthLogistic && fc.Cap <= 0 {
		fc.Cap = 1
	}
	return fc.Validate()
}

// EngineConfig returns the forecaster settings for one run. A logistic
// model without an explicit capacity uses the largest weight-table
// capacity.
func (c Config) EngineConfig(capacity *float64) forecast.Config {
	fc := c.Forecast
	if capacity != nil {
		fc.Cap = *capacity
	}
	if fc.Growth == forecast.GrowthLogistic && fc.Cap <= 0 {
		for _, v := range c.CapTable {
			fc.Cap = max(fc.Cap, v)
		}
	}
	return fc
}

// Normalizer returns a normalizer anchored at Anchor. An unparseable
// anchor falls back to the package default; Validate reports it.
func (c Config) Normalizer() *ingest.Normalizer {
	n := ingest.NewNormalizer()
	if t, err := c.anchor(); err == nil {
		n.Anchor = t
	}
	return n
}

func (c Config) anchor() (time.Time, error) {
	t, err := time.Parse(anchorLayout, c.Anchor)
	if err != nil {
		return time.Time{}, fmt.Errorf("anchor %q: %w", c.Anchor, err)
	}
	return t, nil
}
