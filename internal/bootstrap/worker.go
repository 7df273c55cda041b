package bootstrap

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/classify"
	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/dedup"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/notify"
	"github.com/civicgrid/triage/internal/processor"
	"github.com/civicgrid/triage/internal/queue"
	"github.com/civicgrid/triage/internal/search"
	"github.com/civicgrid/triage/internal/telemetry"
	"github.com/civicgrid/triage/internal/zeroshot"
)

// WorkerComponents holds the assembled triage worker. The database and
// streams connections are owned by the caller so a combined process can
// share them with the API server.
type WorkerComponents struct {
	WorkerID  string
	Processor *processor.Processor
	Sweeper   *processor.Sweeper
	// Relay is nil when search indexing is disabled or unavailable.
	Relay *search.Relay
}

// NewWorkerComponents assembles the triage worker: the consumer loop over
// the processing stream, the classification pipeline it runs, the DLQ
// sweeper, and the optional outbox relay into Elasticsearch.
func NewWorkerComponents(
	cfg *config.Config,
	dbComps *DatabaseComponents,
	streams *queue.StreamsClient,
	log logger.Logger,
	tp *telemetry.Provider,
) (*WorkerComponents, error) {
	workerID := consumerID(cfg)
	log = log.With(logger.String("worker_id", workerID))

	consumer, err := queue.NewConsumer(streams, cfg.Queue, workerID, log)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	producer := queue.NewProducer(streams, cfg.Queue)
	heartbeat := queue.NewHeartbeat(streams, cfg.Worker, workerID, log)

	pipe := buildPipeline(dbComps, cfg, log, tp)
	notifier := notify.NewDispatcher(streams, cfg.Queue, log)

	proc := processor.NewProcessor(
		consumer,
		producer,
		dbComps.Reports,
		dbComps.DeadLetters,
		pipe,
		notifier,
		heartbeat,
		cfg,
		log,
		tp,
	)
	sweeper := processor.NewSweeper(dbComps.DeadLetters, producer, log, tp)

	var relay *search.Relay
	if indexer := SetupSearch(cfg, log); indexer != nil {
		relay = search.NewRelay(dbComps.Outbox, indexer, cfg.Search, tp, log)
	}

	return &WorkerComponents{
		WorkerID:  workerID,
		Processor: proc,
		Sweeper:   sweeper,
		Relay:     relay,
	}, nil
}

// buildPipeline assembles the classification stages over the zero-shot and
// embedding sidecars. A missing embedding URL leaves the detector on its
// sparse similarity fallback.
func buildPipeline(dbComps *DatabaseComponents, cfg *config.Config, log logger.Logger, tp *telemetry.Provider) *classify.Pipeline {
	zs := zeroshot.NewClient(cfg.ZeroShot)

	var embedder dedup.Embedder
	if cfg.Embedding.URL != "" {
		embedder = zeroshot.NewEmbedClient(cfg.Embedding)
	}
	detector := dedup.NewDetector(dbComps.Reports, embedder, cfg.Pipeline.Dedup, log)

	return classify.NewPipeline(zs, detector, cfg, log, tp)
}

// consumerID returns the configured consumer name or derives one from the
// hostname with a random suffix so parallel workers never collide inside the
// consumer group.
func consumerID(cfg *config.Config) string {
	if cfg.Worker.ConsumerName != "" {
		return cfg.Worker.ConsumerName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "triage-worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}
