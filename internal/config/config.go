package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds client-side settings for the casetrack desktop client
type Config struct {
	ServerURL    string        `mapstructure:"server_url"`
	DatabaseURL  string        `mapstructure:"database_url"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	DismissDelay time.Duration `mapstructure:"dismiss_delay"`
	LogLevel     string        `mapstructure:"log_level"`
}

// Load reads configuration from casetrack.yaml (working directory or the user
// config directory) with CASETRACK_* environment overrides. Missing file is
// not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("casetrack")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/casetrack")

	v.SetEnvPrefix("casetrack")
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("database_url", "")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("dismiss_delay", 3*time.Second)
	v.SetDefault("log_level", "INFO")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.DismissDelay <= 0 {
		cfg.DismissDelay = 3 * time.Second
	}

	return &cfg, nil
}
