package bootstrap

import (
	"context"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/search"
)

// searchSetupTimeout bounds index creation at startup.
const searchSetupTimeout = 10 * time.Second

// SetupSearch creates the optional Elasticsearch indexer behind the outbox
// relay. Returns nil if search is disabled or unavailable: the pipeline and
// the lifecycle API keep running, and the outbox holds rows until a relay
// with a working indexer drains them.
func SetupSearch(cfg *config.Config, log logger.Logger) *search.Indexer {
	if !cfg.Search.Enabled {
		log.Info("Search indexing disabled")
		return nil
	}

	client, err := search.NewClient(cfg.Search)
	if err != nil {
		log.Warn("Failed to connect to Elasticsearch", logger.Error(err))
		log.Info("Report search indexing will not be available")
		return nil
	}

	indexer := search.NewIndexer(client, cfg.Search.IndexName)

	ctx, cancel := context.WithTimeout(context.Background(), searchSetupTimeout)
	defer cancel()

	if err := indexer.EnsureIndex(ctx); err != nil {
		log.Warn("Failed to ensure report index", logger.Error(err))
		log.Info("Report search indexing will not be available")
		return nil
	}

	log.Info("Elasticsearch connected successfully",
		logger.String("index", cfg.Search.IndexName))
	return indexer
}
