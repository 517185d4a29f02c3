package quality

// Config holds configuration for the quality plugin.
type Config struct {
	ModelPath   string      `mapstructure:"model_path"`
	LabelColumn string      `mapstructure:"label_column"`
	Training    TrainConfig `mapstructure:"training"`
}

// DefaultConfig returns the defaults for the quality plugin.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/quality.json",
		LabelColumn: "label",
		Training:    DefaultTrainConfig(),
	}
}
