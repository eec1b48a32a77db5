package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath string // a .ng.hcl file or a directory of them
	Output    string // node name to render; empty uses each definition's declared output

	LogFormat    string
	LogLevel     string
	CacheEntries int
	CacheBytes   int
}

// NewConfig validates and returns the configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
