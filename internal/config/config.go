// Package config loads runtime configuration from environment
// variables with sane defaults. All keys can be overridden with the
// AICOMPLY_ prefix, e.g. AICOMPLY_BACKEND_MODE=proxy.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finpulse/aicomply/internal/fairness"
)

// Backend modes.
const (
	BackendModeMock  = "mock"
	BackendModeProxy = "proxy"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	BackendMode    string        `mapstructure:"backend_mode"`
	BackendURL     string        `mapstructure:"backend_url"`
	BackendAPIKey  string        `mapstructure:"backend_api_key"`
	BackendTimeout time.Duration `mapstructure:"backend_timeout"`
	BackendRetries int           `mapstructure:"backend_retries"`

	MaxRounds int `mapstructure:"max_rounds"`

	Thresholds fairness.Thresholds `mapstructure:"thresholds"`
}

// Load resolves the configuration from defaults and environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AICOMPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("backend_mode", BackendModeMock)
	v.SetDefault("backend_url", "http://localhost:4000")
	v.SetDefault("backend_api_key", "")
	v.SetDefault("backend_timeout", 60*time.Second)
	v.SetDefault("backend_retries", 2)

	v.SetDefault("max_rounds", 10)

	defaults := fairness.DefaultThresholds()
	v.SetDefault("thresholds.demographic_parity", defaults.DemographicParity)
	v.SetDefault("thresholds.equalized_odds", defaults.EqualizedOdds)
	v.SetDefault("thresholds.psi", defaults.PSI)
	v.SetDefault("thresholds.approval_rate_cv", defaults.ApprovalRateCV)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
