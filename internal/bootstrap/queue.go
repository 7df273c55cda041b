package bootstrap

import (
	"fmt"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/queue"
)

// SetupStreams connects to Redis. The client verifies the connection with a
// bounded ping before it is returned.
func SetupStreams(cfg *config.Config, log logger.Logger) (*queue.StreamsClient, error) {
	log.Info("Connecting to Redis",
		logger.String("address", cfg.Redis.Address),
		logger.Int("db", cfg.Redis.DB),
	)

	client, err := queue.NewStreamsClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully")
	return client, nil
}
