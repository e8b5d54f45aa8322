package config

import (
	"log/slog"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "LOGSENTRY"

// DefaultModel is the LLM model used when none is configured.
const DefaultModel = "google/gemini-3-flash-preview"

// Config is the resolved CLI configuration.
type Config struct {
	DB              string `mapstructure:"db"`
	State           bool   `mapstructure:"state"`
	StateName       string `mapstructure:"state_name"`
	PatternCapacity int    `mapstructure:"pattern_capacity"`
	BatchLines      int    `mapstructure:"batch_lines"`
	Pushgateway     string `mapstructure:"pushgateway"`
	Job             string `mapstructure:"job"`
	Model           string `mapstructure:"model"`
	Focus           string `mapstructure:"focus"`
	LogLevel        string `mapstructure:"log_level"`
}

// NewViper returns a viper instance with defaults and environment binding.
// Keys use underscores; flags use dashes and are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("db", "logsentry.duckdb")
	v.SetDefault("state", false)
	v.SetDefault("state_name", "default")
	v.SetDefault("pattern_capacity", 0)
	v.SetDefault("batch_lines", 0)
	v.SetDefault("pushgateway", "")
	v.SetDefault("job", "logsentry")
	v.SetDefault("model", DefaultModel)
	v.SetDefault("focus", "anomaly")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// MODEL_NAME is shared with other OpenRouter tooling.
	_ = v.BindEnv("model", EnvPrefix+"_MODEL", "MODEL_NAME")
	return v
}

// Load reads the config file into v and unmarshals the result. An empty
// path searches ./logsentry.yaml and $HOME/.logsentry/logsentry.yaml and
// tolerates neither existing; an explicit path must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("logsentry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.logsentry")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Errorf("unmarshal config: %w", err)
	}
	if cfg.PatternCapacity < 0 {
		return nil, errors.Errorf("pattern_capacity must be >= 0, got %d", cfg.PatternCapacity)
	}
	if cfg.BatchLines < 0 {
		return nil, errors.Errorf("batch_lines must be >= 0, got %d", cfg.BatchLines)
	}
	return &cfg, nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, errors.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
