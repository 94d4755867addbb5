// Package config loads runner configuration from a YAML file with
// environment overrides for the logging settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config contains all simulator runner settings.
type Config struct {
	// Scenario is the path of the scenario document to load.
	Scenario string `yaml:"scenario"`

	// Output is where the final state is saved after the run. Empty
	// disables saving.
	Output string `yaml:"output,omitempty"`

	// MaxSteps bounds the run; 0 means run until every train arrives.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// TraceDB is the SQLite trace database path. Empty disables the
	// recorder.
	TraceDB string `yaml:"trace_db,omitempty"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`
	// Format is json or text.
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MaxSteps: 10000,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, layering it over Default and applying
// LOG_LEVEL / LOG_FORMAT environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}
