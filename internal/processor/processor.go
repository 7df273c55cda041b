// Package processor runs the triage worker: it consumes report ids from the
// processing stream, executes the classification pipeline, and commits the
// result. Failure handling is split between the stream and the database:
// transient errors ride the consumer group's redelivery, persistent ones are
// parked in the dead-letter queue for the sweeper.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/notify"
	"github.com/civicgrid/triage/internal/queue"
	"github.com/civicgrid/triage/internal/retry"
	"github.com/civicgrid/triage/internal/search"
	"github.com/civicgrid/triage/internal/telemetry"
)

const (
	drainTimeout   = 30 * time.Second
	gaugeInterval  = 15 * time.Second
	readRetryPause = time.Second
)

// ReportStore loads reports and commits classification results.
type ReportStore interface {
	GetReport(ctx context.Context, id int64) (*domain.Report, error)
	ApplyClassification(ctx context.Context, report *domain.Report, res *domain.ClassificationResult, outboxPayload []byte) error
}

// DeadLetterStore parks failed reports and clears them on recovery.
type DeadLetterStore interface {
	Enqueue(ctx context.Context, entry *domain.DeadLetterEntry) error
	Remove(ctx context.Context, reportID int64) error
	MarkExhausted(ctx context.Context, reportID int64) error
	GetStats(ctx context.Context) (*domain.DLQStats, error)
}

// Classifier runs the classification pipeline for one report.
type Classifier interface {
	Process(ctx context.Context, report *domain.Report) (*domain.ClassificationResult, error)
}

// IntentEmitter publishes notification intents for committed outcomes.
type IntentEmitter interface {
	Emit(ctx context.Context, intent domain.NotificationIntent) error
}

// Processor is the single-consumer worker loop. One report is in flight at a
// time; horizontal scale comes from running more workers in the same consumer
// group, each with its own consumer name.
type Processor struct {
	consumer    *queue.Consumer
	producer    *queue.Producer
	reports     ReportStore
	deadLetters DeadLetterStore
	pipeline    Classifier
	notifier    IntentEmitter
	heartbeat   *queue.Heartbeat
	telemetry   *telemetry.Provider
	logger      logger.Logger

	queueName     string
	maxDeliveries int64
	retryCfg      retry.Config

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewProcessor creates a worker around an initialized consumer group. A nil
// notifier skips intent emission, a nil heartbeat skips liveness keys, and a
// nil telemetry provider disables metrics and spans.
func NewProcessor(
	consumer *queue.Consumer,
	producer *queue.Producer,
	reports ReportStore,
	deadLetters DeadLetterStore,
	pipe Classifier,
	notifier IntentEmitter,
	heartbeat *queue.Heartbeat,
	cfg *config.Config,
	log logger.Logger,
	tp *telemetry.Provider,
) *Processor {
	maxDeliveries := int64(cfg.Worker.MaxRetries)
	if maxDeliveries <= 0 {
		maxDeliveries = 3
	}

	return &Processor{
		consumer:      consumer,
		producer:      producer,
		reports:       reports,
		deadLetters:   deadLetters,
		pipeline:      pipe,
		notifier:      notifier,
		heartbeat:     heartbeat,
		telemetry:     tp,
		logger:        log,
		queueName:     cfg.Queue.ProcessingStream,
		maxDeliveries: maxDeliveries,
		retryCfg: retry.Config{
			MaxAttempts:  cfg.Worker.MaxRetries,
			InitialDelay: cfg.Worker.RetryInitialDelay,
			MaxDelay:     cfg.Worker.RetryMaxDelay,
			Multiplier:   cfg.Worker.RetryMultiplier,
		},
	}
}

// Start creates the consumer group if needed and launches the consume loop,
// the gauge refresher, and the heartbeat.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if err := p.consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize consumer group: %w", err)
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.wg.Add(1)
	go p.refreshGauges(ctx)

	if p.heartbeat != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.heartbeat.Run(ctx)
		}()
	}

	if p.telemetry != nil {
		p.telemetry.SetActiveWorkers(1)
	}

	p.started = true
	p.logger.Info("processor started",
		logger.String("consumer", p.consumer.ConsumerID()),
		logger.Int64("max_deliveries", p.maxDeliveries))
	return nil
}

// Stop cancels the loops and waits for the in-flight report to finish. An
// interrupted report is left unacked and redelivered to the next worker.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("processor stopped")
	case <-time.After(drainTimeout):
		p.logger.Warn("processor stop timed out")
	}

	if p.telemetry != nil {
		p.telemetry.SetActiveWorkers(0)
	}
}

// IsStarted reports whether the worker loop is running.
func (p *Processor) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue read failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryPause):
			}
			continue
		}
		if msg == nil {
			continue
		}

		p.handle(ctx, msg)
	}
}

// handle processes one delivery end to end. Acks are deliberately last: a
// crash at any earlier point redelivers the message, and the
// ai_processed_at guard in the commit turns the redo into a no-op.
func (p *Processor) handle(ctx context.Context, msg *queue.Message) {
	start := time.Now()

	if p.telemetry != nil {
		var span trace.Span
		ctx, span = p.telemetry.StartSpan(ctx, "processor.report",
			attribute.Int64("report_id", msg.ReportID),
			attribute.Int64("delivery", msg.Delivery))
		defer span.End()
	}

	report, err := p.reports.GetReport(ctx, msg.ReportID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("report missing, dropping message",
				logger.Int64("report_id", msg.ReportID),
				logger.String("message_id", msg.ID))
			p.ack(ctx, msg)
			p.recordOutcome(ctx, "missing", start)
			return
		}
		p.retryOrPark(ctx, msg, err, start)
		return
	}

	var result *domain.ClassificationResult
	err = retry.Do(ctx, p.retryCfg, func() error {
		var perr error
		result, perr = p.pipeline.Process(ctx, report)
		return perr
	})
	if err != nil {
		if domain.ClassifyError(err) == domain.ErrorCodeMalformedReport {
			// Retrying malformed input can never succeed.
			p.park(ctx, msg, err, true)
			p.recordOutcome(ctx, "failed", start)
			return
		}
		p.retryOrPark(ctx, msg, err, start)
		return
	}

	// Duplicates are frozen, not searchable outcomes, so they stage no
	// outbox row.
	var payload []byte
	if !result.Duplicate.IsDuplicate {
		payload, err = json.Marshal(search.BuildDocument(report, result))
		if err != nil {
			p.logger.Error("failed to encode search document, skipping index",
				logger.Int64("report_id", report.ID),
				logger.Error(err))
			payload = nil
		}
	}

	if err := p.reports.ApplyClassification(ctx, report, result, payload); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			p.logger.Debug("report already classified, acking redelivery",
				logger.Int64("report_id", report.ID),
				logger.String("message_id", msg.ID))
			p.ack(ctx, msg)
			p.recordOutcome(ctx, "already_processed", start)
			return
		}
		p.retryOrPark(ctx, msg, err, start)
		return
	}

	p.clearDeadLetter(ctx, msg.ReportID)
	p.emitIntent(ctx, report, result)
	p.ack(ctx, msg)

	outcome := "classified"
	if result.Duplicate.IsDuplicate {
		outcome = "duplicate"
	}
	p.recordOutcome(ctx, outcome, start)

	p.logger.Info("report processed",
		logger.Int64("report_id", report.ID),
		logger.String("outcome", outcome),
		logger.String("action", string(result.Action)),
		logger.Duration("duration", time.Since(start)))
}

// retryOrPark leaves the message pending when deliveries remain, so the
// claim loop redelivers it after the idle threshold. Out of deliveries, the
// report is parked in the DLQ.
func (p *Processor) retryOrPark(ctx context.Context, msg *queue.Message, cause error, start time.Time) {
	if msg.Delivery < p.maxDeliveries {
		p.logger.Warn("processing failed, leaving message pending for redelivery",
			logger.Int64("report_id", msg.ReportID),
			logger.Int64("delivery", msg.Delivery),
			logger.Int64("max_deliveries", p.maxDeliveries),
			logger.Error(cause))
		p.recordOutcome(ctx, "requeued", start)
		return
	}

	p.park(ctx, msg, cause, false)
	p.recordOutcome(ctx, "failed", start)
}

// park records the failure in the DLQ table and the failed stream, then acks.
// When the table write fails the message stays pending instead, otherwise the
// report would be lost. permanent marks entries the sweeper must never retry.
func (p *Processor) park(ctx context.Context, msg *queue.Message, cause error, permanent bool) {
	errorCode := domain.ClassifyError(cause)

	entry, err := domain.NewDeadLetterEntry(msg.ReportID, p.queueName, cause.Error(), errorCode)
	if err != nil {
		p.logger.Error("failed to build DLQ entry",
			logger.Int64("report_id", msg.ReportID),
			logger.Error(err))
		return
	}
	if err := p.deadLetters.Enqueue(ctx, entry); err != nil {
		p.logger.Error("failed to park report in DLQ, leaving message pending",
			logger.Int64("report_id", msg.ReportID),
			logger.Error(err))
		return
	}
	if permanent {
		if err := p.deadLetters.MarkExhausted(ctx, msg.ReportID); err != nil {
			p.logger.Warn("failed to mark DLQ entry exhausted",
				logger.Int64("report_id", msg.ReportID),
				logger.Error(err))
		}
	}

	// The table row is authoritative; the failed stream is an alerting tap.
	if _, err := p.producer.DeadLetter(ctx, msg.ReportID, cause.Error(), int(msg.Delivery)); err != nil {
		p.logger.Warn("failed to publish to failed stream",
			logger.Int64("report_id", msg.ReportID),
			logger.Error(err))
	}

	if p.telemetry != nil {
		p.telemetry.RecordDLQEnqueue(ctx, string(errorCode))
		if permanent {
			p.telemetry.RecordDLQExhausted(ctx)
		}
	}

	p.ack(ctx, msg)

	p.logger.Error("report dead-lettered",
		logger.Int64("report_id", msg.ReportID),
		logger.Int64("delivery", msg.Delivery),
		logger.String("error_code", string(errorCode)),
		logger.Bool("permanent", permanent),
		logger.Error(cause))
}

// clearDeadLetter removes a stale DLQ entry once its report finally lands.
// Most reports were never parked, so a missing entry is the normal case.
func (p *Processor) clearDeadLetter(ctx context.Context, reportID int64) {
	err := p.deadLetters.Remove(ctx, reportID)
	switch {
	case err == nil:
		if p.telemetry != nil {
			p.telemetry.RecordDLQProcessed(ctx)
		}
		p.logger.Info("cleared DLQ entry after successful reprocess",
			logger.Int64("report_id", reportID))
	case errors.Is(err, domain.ErrNotFound):
	default:
		p.logger.Warn("failed to clear DLQ entry",
			logger.Int64("report_id", reportID),
			logger.Error(err))
	}
}

// emitIntent publishes the citizen-facing outcome. Emission is best effort;
// the classification is already committed.
func (p *Processor) emitIntent(ctx context.Context, report *domain.Report, result *domain.ClassificationResult) {
	if p.notifier == nil {
		return
	}

	var intent domain.NotificationIntent
	if result.Duplicate.IsDuplicate {
		intent = notify.DuplicateNotice(report, result.Duplicate)
	} else {
		intent = notify.ClassificationOutcome(report, result)
	}

	if err := p.notifier.Emit(ctx, intent); err != nil {
		p.logger.Warn("failed to emit notification intent",
			logger.Int64("report_id", report.ID),
			logger.String("template", intent.Template),
			logger.Error(err))
	}
}

func (p *Processor) ack(ctx context.Context, msg *queue.Message) {
	if err := p.consumer.Ack(ctx, msg); err != nil {
		p.logger.Warn("ack failed, message may be redelivered",
			logger.Int64("report_id", msg.ReportID),
			logger.String("message_id", msg.ID),
			logger.Error(err))
	}
}

func (p *Processor) recordOutcome(ctx context.Context, outcome string, start time.Time) {
	if p.telemetry != nil {
		p.telemetry.RecordReportProcessed(ctx, outcome, time.Since(start))
	}
}

// refreshGauges keeps the depth gauges and the liveness timestamp current
// while the loop may sit idle between reports.
func (p *Processor) refreshGauges(ctx context.Context) {
	defer p.wg.Done()

	if p.telemetry == nil {
		return
	}

	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	p.updateGauges(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.updateGauges(ctx)
		}
	}
}

func (p *Processor) updateGauges(ctx context.Context) {
	p.telemetry.RecordHeartbeat()

	if depth, err := p.producer.QueueDepth(ctx); err == nil {
		p.telemetry.SetQueueDepth(int(depth))
	}
	if stats, err := p.deadLetters.GetStats(ctx); err == nil {
		p.telemetry.SetDLQDepth(int(stats.Pending))
	}
}
