package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven orchestrator settings. All fields
// have working defaults, so a missing environment is never an error.
type Config struct {
	// LogLevel is the minimum slog level: debug, info, warn or error.
	LogLevel string `env:"PHASE_LOG_LEVEL" envDefault:"info"`

	// Trace enables debug logging of every pipeline dispatch attempt.
	Trace bool `env:"PHASE_TRACE" envDefault:"false"`

	// EventCapacity is the initial capacity of each per-type event channel.
	EventCapacity int `env:"PHASE_EVENT_CAPACITY" envDefault:"4"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
