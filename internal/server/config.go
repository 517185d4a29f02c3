package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the HTTP server settings.
type Config struct {
	Host           string          `mapstructure:"host"`
	Port           int             `mapstructure:"port"`
	DevMode        bool            `mapstructure:"dev_mode"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// envKeyReplacer maps nested keys to environment names.
var envKeyReplacer = strings.NewReplacer(".", "_")

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		RateLimit:    RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from defaults, an optional YAML file,
// a .env file in the working directory and HS_ environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hydrosim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hydrosim")
	}

	// HS_SERVER_PORT=9090 overrides server.port.
	v.SetEnvPrefix("HS")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.dev_mode", d.DevMode)
	v.SetDefault("server.read_timeout", d.ReadTimeout)
	v.SetDefault("server.write_timeout", d.WriteTimeout)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("server.rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("plugins.insight.enabled", true)
	v.SetDefault("plugins.insight.anchor", "2024-07-01")
	v.SetDefault("plugins.insight.max_day", 40)
	v.SetDefault("plugins.insight.horizon.min", 5)
	v.SetDefault("plugins.insight.horizon.max", 40)
	v.SetDefault("plugins.insight.forecast.growth", "linear")
	v.SetDefault("plugins.insight.forecast.fourier_order", 4)
	v.SetDefault("plugins.insight.forecast.ridge", 0.1)
	v.SetDefault("plugins.insight.forecast.interval_width", 0.8)
	v.SetDefault("plugins.insight.sample_data", "data/sample.csv")
	v.SetDefault("plugins.insight.pretrained_model", "models/forecast.json")
	v.SetDefault("plugins.insight.bootstrap_pretrained", true)
	v.SetDefault("plugins.insight.outlier_zscore", 3.0)
	v.SetDefault("plugins.insight.session_ttl", "2h")
	v.SetDefault("plugins.insight.max_sessions", 256)
	v.SetDefault("plugins.insight.max_upload_bytes", 10<<20)
	v.SetDefault("plugins.insight.maintenance_interval", "5m")

	v.SetDefault("plugins.quality.enabled", true)
	v.SetDefault("plugins.quality.model_path", "models/quality.json")
	v.SetDefault("plugins.quality.label_column", "label")
	v.SetDefault("plugins.quality.training.test_fraction", 0.2)
	v.SetDefault("plugins.quality.training.seed", 42)
}
