// Package bootstrap wires configuration, storage, streams, and pipeline
// components into the runnable triage services. The API server and the
// worker share the same construction paths so a combined process and the
// split binaries stay identical in behavior.
package bootstrap

import (
	"fmt"
	"log"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
)

// LoadConfig loads configuration. Uses defaults if the file doesn't exist.
func LoadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config file (%s), using defaults: %v", configPath, err)
		return config.Default(), nil
	}
	return cfg, nil
}

// CreateLogger creates a logger instance from configuration, tagged with the
// service name so combined-process logs stay attributable.
func CreateLogger(cfg *config.Config, service string) (logger.Logger, error) {
	base, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return base.With(logger.String("service", service)), nil
}
