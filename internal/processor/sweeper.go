package processor

import (
	"context"
	"sync"
	"time"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/telemetry"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 50
	cleanupInterval      = time.Hour
	// Exhausted entries are kept for a week so operators can inspect and
	// replay them before they are pruned.
	exhaustedRetention = 7 * 24 * time.Hour
	// Requeued entries keep their error context; only the message notes the
	// handoff.
	requeueNote = "requeued for retry"
)

// SweepStore is the DLQ table surface the sweeper drives.
type SweepStore interface {
	FetchRetryable(ctx context.Context, limit int) ([]domain.DeadLetterEntry, error)
	UpdateRetryCount(ctx context.Context, reportID int64, errorMsg string) error
	CleanupExhausted(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Enqueuer pushes report ids back onto the processing stream.
type Enqueuer interface {
	Enqueue(ctx context.Context, reportID int64) (string, error)
}

// Sweeper periodically requeues dead-lettered reports whose backoff elapsed
// and prunes entries that burned through every retry. The requeued report
// flows through the normal worker path; a repeat failure lands back in the
// DLQ with its retry count bumped.
type Sweeper struct {
	store     SweepStore
	enqueuer  Enqueuer
	telemetry *telemetry.Provider
	logger    logger.Logger

	interval  time.Duration
	batchSize int

	lastCleanup time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewSweeper creates a sweeper. Zero interval or batch size fall back to the
// defaults.
func NewSweeper(store SweepStore, enqueuer Enqueuer, log logger.Logger, tp *telemetry.Provider) *Sweeper {
	return &Sweeper{
		store:     store,
		enqueuer:  enqueuer,
		telemetry: tp,
		logger:    log,
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatch,
		stopChan:  make(chan struct{}),
	}
}

// WithInterval overrides the sweep cadence. Intended for tests and ops
// tuning; call before Start.
func (s *Sweeper) WithInterval(interval time.Duration, batchSize int) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.wg.Add(1)
	go s.run(ctx)

	s.started = true
	s.logger.Info("DLQ sweeper started",
		logger.Duration("interval", s.interval),
		logger.Int("batch_size", s.batchSize))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("DLQ sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce requeues one batch of ready entries and, at most hourly, prunes
// exhausted ones.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	entries, err := s.store.FetchRetryable(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("failed to fetch retryable DLQ entries", logger.Error(err))
		return
	}

	requeued := 0
	for _, entry := range entries {
		if _, err := s.enqueuer.Enqueue(ctx, entry.ReportID); err != nil {
			s.logger.Error("failed to requeue dead-lettered report",
				logger.Int64("report_id", entry.ReportID),
				logger.Int("retry_count", entry.RetryCount),
				logger.Error(err))
			continue
		}
		// Bumping the count before the retry outcome is known keeps a
		// crashed worker from requeueing the same report every sweep.
		if err := s.store.UpdateRetryCount(ctx, entry.ReportID, requeueNote); err != nil {
			s.logger.Warn("failed to bump DLQ retry count",
				logger.Int64("report_id", entry.ReportID),
				logger.Error(err))
		}
		requeued++
	}

	if requeued > 0 {
		s.logger.Info("requeued dead-lettered reports", logger.Int("count", requeued))
	}

	if time.Since(s.lastCleanup) >= cleanupInterval {
		s.cleanup(ctx)
		s.lastCleanup = time.Now()
	}
}

func (s *Sweeper) cleanup(ctx context.Context) {
	removed, err := s.store.CleanupExhausted(ctx, exhaustedRetention)
	if err != nil {
		s.logger.Error("failed to prune exhausted DLQ entries", logger.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned exhausted DLQ entries", logger.Int64("count", removed))
	}
}
