/*
Package config loads server configuration from environment variables.

PURPOSE:
  One struct, populated once at startup via envconfig. Defaults are
  development-friendly; production deployments override through the
  environment.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config contains every tunable of the server process.
type Config struct {
	// --- HTTP ---
	Port            int      `envconfig:"PORT" default:"8080"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`

	// --- Database ---
	// Use ":memory:" for a throwaway database.
	DBPath string `envconfig:"DB_PATH" default:"./data/activity.db"`

	// --- Logging ---
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// --- Scheduler ---
	// When enabled, the previous month is recomputed for every club on
	// the cron spec below (default: 03:00 on the 1st).
	SchedulerEnabled bool   `envconfig:"SCHEDULER_ENABLED" default:"true"`
	SchedulerSpec    string `envconfig:"SCHEDULER_SPEC" default:"0 3 1 * *"`

	// --- Policies ---
	// Optional JSON file overriding the built-in multiplier tiers.
	// Ignored when the policy table is already populated.
	PolicyFile string `envconfig:"POLICY_FILE" default:""`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be 1-65535, got %d", c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.SchedulerEnabled && strings.TrimSpace(c.SchedulerSpec) == "" {
		return fmt.Errorf("SCHEDULER_SPEC must not be empty when the scheduler is enabled")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be > 0")
	}
	return nil
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
