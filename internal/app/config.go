package app

import (
	"errors"
	"fmt"
)

// Config holds the process-level settings for an App instance.
type Config struct {
	// ConfigPaths are .hcl files or directories. May be empty for commands
	// that need no case.
	ConfigPaths []string
	// WorkDir resolves a relative case root. Defaults to the process
	// working directory.
	WorkDir string
	// SummaryPath, when set, receives a YAML summary of the run.
	SummaryPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if !ValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	for _, p := range cfg.ConfigPaths {
		if p == "" {
			return nil, errors.New("config path must not be empty")
		}
	}
	return &cfg, nil
}
