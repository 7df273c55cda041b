package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/civicgrid/triage/internal/config"
)

// Stream message field names. Messages carry only the report id and
// bookkeeping; the worker loads the report row itself so a replayed message
// always sees current state.
const (
	reportIDField   = "report_id"
	enqueuedAtField = "enqueued_at"
	causeField      = "cause"
	attemptsField   = "attempts"
	failedAtField   = "failed_at"
)

// Producer enqueues report ids for processing and records exhausted
// deliveries on the dead-letter stream.
type Producer struct {
	client *StreamsClient
	cfg    config.QueueConfig
}

// NewProducer creates a producer over the configured streams.
func NewProducer(client *StreamsClient, cfg config.QueueConfig) *Producer {
	return &Producer{client: client, cfg: cfg}
}

// Enqueue adds a report id to the processing stream and returns the message
// id.
func (p *Producer) Enqueue(ctx context.Context, reportID int64) (string, error) {
	if reportID <= 0 {
		return "", fmt.Errorf("report id must be positive, got %d", reportID)
	}

	id, err := p.client.XAdd(ctx, p.cfg.ProcessingStream, map[string]any{
		reportIDField:   strconv.FormatInt(reportID, 10),
		enqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue report %d: %w", reportID, err)
	}
	return id, nil
}

// DeadLetter records a report whose processing attempts are exhausted. The
// report id is preserved so an operator can replay it onto the processing
// stream unchanged.
func (p *Producer) DeadLetter(ctx context.Context, reportID int64, cause string, attempts int) (string, error) {
	id, err := p.client.XAdd(ctx, p.cfg.FailedStream, map[string]any{
		reportIDField: strconv.FormatInt(reportID, 10),
		causeField:    cause,
		attemptsField: strconv.Itoa(attempts),
		failedAtField: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("dead-letter report %d: %w", reportID, err)
	}
	return id, nil
}

// QueueDepth returns the processing stream length.
func (p *Producer) QueueDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.cfg.ProcessingStream)
}

// DeadLetterDepth returns the dead-letter stream length.
func (p *Producer) DeadLetterDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.cfg.FailedStream)
}
