package restaurant

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"coaster-restaurant/internal/observability"
)

// Config carries the coordinator's tunables. Embedding programs can load
// it from the environment with LoadConfig, or ignore it entirely and
// call New directly.
type Config struct {
	Workers       int           `envconfig:"COASTER_WORKERS" default:"4"`
	ClientTimeout time.Duration `envconfig:"COASTER_CLIENT_TIMEOUT" default:"1s"`
	LogLevel      string        `envconfig:"COASTER_LOG_LEVEL" default:"info"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewFromConfig builds a logger at the configured level and opens the
// system with it.
func NewFromConfig(cfg *Config, machines map[string]Machine) (*System, error) {
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return New(logger, machines, cfg.Workers, cfg.ClientTimeout), nil
}
