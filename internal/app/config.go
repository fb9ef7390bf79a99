package app

import (
	"errors"

	"github.com/vk/fmriprep-go/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Options is the run-wide option set for the workflow builders.
	Options *config.Options

	LogFormat string
	LogLevel  string
	// DryRun builds and validates the workflow graph, prints the node
	// listing, and skips execution.
	DryRun bool
}

// NewConfig validates and returns an application configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Options == nil {
		return nil, errors.New("run options are required")
	}
	return &cfg, nil
}
