package search

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/database"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/telemetry"
)

const (
	defaultRelayInterval = 5 * time.Second
	defaultRelayBatch    = 100
	indexTimeout         = 10 * time.Second
)

// OutboxSource is the slice of the outbox repository the relay drains.
type OutboxSource interface {
	FetchUnsent(ctx context.Context, limit int) ([]database.OutboxEntry, error)
	MarkSent(ctx context.Context, ids []int64) error
	PendingCount(ctx context.Context) (int64, error)
}

// DocumentIndexer indexes one document body under an id.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, docID string, body []byte) error
}

// Relay drains the transactional outbox into the search index. A failed
// index leaves the row pending for the next pass; classification never
// waits on Elasticsearch.
type Relay struct {
	outbox    OutboxSource
	indexer   DocumentIndexer
	telemetry *telemetry.Provider
	logger    logger.Logger

	interval  time.Duration
	batchSize int

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewRelay creates a relay over the outbox and indexer.
func NewRelay(
	outbox OutboxSource,
	indexer DocumentIndexer,
	cfg config.SearchConfig,
	tp *telemetry.Provider,
	log logger.Logger,
) *Relay {
	interval := cfg.RelayInterval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	batchSize := cfg.RelayBatchSize
	if batchSize <= 0 {
		batchSize = defaultRelayBatch
	}

	return &Relay{
		outbox:    outbox,
		indexer:   indexer,
		telemetry: tp,
		logger:    log,
		interval:  interval,
		batchSize: batchSize,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the outbox polling loop.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("search relay started",
		logger.Duration("interval", r.interval),
		logger.Int("batch_size", r.batchSize))
}

// Stop gracefully stops the relay.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("search relay stopped")
}

// IsRunning returns whether the relay is currently running.
func (r *Relay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Drain immediately on start
	r.drainOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.drainOnce(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// drainOnce fetches one batch of unsent rows and indexes them one at a
// time. Rows that fail stay pending; rows that index are marked sent in one
// update. A crash between index and mark re-indexes the same document id,
// which overwrites harmlessly.
func (r *Relay) drainOnce(ctx context.Context) {
	entries, err := r.outbox.FetchUnsent(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch unsent outbox entries", logger.Error(err))
		return
	}
	if len(entries) == 0 {
		r.refreshBacklog(ctx)
		return
	}

	sent := make([]int64, 0, len(entries))
	for idx := range entries {
		entry := &entries[idx]

		indexCtx, cancel := context.WithTimeout(ctx, indexTimeout)
		indexErr := r.indexer.IndexDocument(indexCtx, strconv.FormatInt(entry.ReportID, 10), entry.Payload)
		cancel()

		if r.telemetry != nil {
			r.telemetry.RecordOutboxPublish(ctx, entry.CreatedAt, indexErr == nil)
		}
		if indexErr != nil {
			r.logger.Warn("search indexing failed, leaving outbox row pending",
				logger.Int64("report_id", entry.ReportID),
				logger.Error(indexErr))
			continue
		}
		sent = append(sent, entry.ID)
	}

	if len(sent) > 0 {
		if err := r.outbox.MarkSent(ctx, sent); err != nil {
			r.logger.Error("failed to mark outbox entries sent",
				logger.Int("count", len(sent)),
				logger.Error(err))
		}
	}
	r.refreshBacklog(ctx)
}

func (r *Relay) refreshBacklog(ctx context.Context) {
	if r.telemetry == nil {
		return
	}
	count, err := r.outbox.PendingCount(ctx)
	if err != nil {
		return
	}
	r.telemetry.SetOutboxBacklog(int(count))
}
