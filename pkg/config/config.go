// Package config loads the daemon configuration from YAML and applies
// defaults and validation. Flags overlay the loaded values in pkg/cli.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// Listen is the address the host server binds.
	Listen string `yaml:"listen"`

	// LogDir is the directory reporter log files live in.
	LogDir string `yaml:"logDir"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Reporters configures registration-time defaults and autostart.
	Reporters ReportersConfig `yaml:"reporters"`
}

// LoggingConfig selects the process log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReportersConfig names the reporters enabled at startup and their
// per-reporter option defaults. Runtime toggles via the management API
// are deliberately not written back here.
type ReportersConfig struct {
	Enabled []string                  `yaml:"enabled"`
	Options map[string]map[string]any `yaml:"options"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		LogDir: "logs",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses the YAML file at path, overlaying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot start
// with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen must not be empty")
	}
	if c.LogDir == "" {
		return fmt.Errorf("config: logDir must not be empty")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json")
	}
	return nil
}
