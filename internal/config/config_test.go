package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestViperConfig_SubAndUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("plugins.insight.max_day", 40)
	v.Set("plugins.insight.session_ttl", "30m")

	cfg := New(v)
	sub := cfg.Sub("plugins.insight")

	if got := sub.GetInt("max_day"); got != 40 {
		t.Errorf("max_day = %d, want 40", got)
	}
	if got := sub.GetDuration("session_ttl"); got != 30*time.Minute {
		t.Errorf("session_ttl = %v, want 30m", got)
	}

	var target struct {
		MaxDay int `mapstructure:"max_day"`
	}
	if err := sub.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if target.MaxDay != 40 {
		t.Errorf("MaxDay = %d, want 40", target.MaxDay)
	}
}

func TestViperConfig_MissingSubIsEmpty(t *testing.T) {
	cfg := New(nil)
	sub := cfg.Sub("plugins.quality")
	if sub == nil {
		t.Fatal("Sub() returned nil")
	}
	if sub.IsSet("model_path") {
		t.Error("empty section should not report keys as set")
	}
}

func TestViperConfig_SubSeesEnvOverrides(t *testing.T) {
	t.Setenv("HS_PLUGINS_INSIGHT_MAX_DAY", "35")

	v := viper.New()
	v.SetDefault("plugins.insight.max_day", 40)
	v.SetDefault("plugins.insightful.max_day", 1)
	v.SetEnvPrefix("HS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	sub := New(v).Sub("plugins.insight")
	if got := sub.GetInt("max_day"); got != 35 {
		t.Errorf("max_day = %d, want env override 35", got)
	}
	if sub.IsSet("insightful.max_day") {
		t.Error("sibling section leaked into Sub")
	}
}
