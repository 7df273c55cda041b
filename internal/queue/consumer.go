package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
)

// maxPendingCheck caps how many pending entries one reclaim pass inspects.
const maxPendingCheck = 100

// Message is one delivery from the processing stream.
type Message struct {
	// ID is the stream entry id, needed to acknowledge the delivery.
	ID       string
	ReportID int64
	// Delivery counts how many times this entry has been handed to a
	// consumer. 1 on first read; higher after reclaims.
	Delivery   int64
	EnqueuedAt time.Time
}

// Consumer reads report ids from the processing stream one at a time,
// reclaiming stale pending entries from dead workers before reading new
// ones.
type Consumer struct {
	client     *StreamsClient
	cfg        config.QueueConfig
	consumerID string
	logger     logger.Logger
}

// NewConsumer creates a consumer identified by consumerID within the
// configured group.
func NewConsumer(client *StreamsClient, cfg config.QueueConfig, consumerID string, log logger.Logger) (*Consumer, error) {
	if consumerID == "" {
		return nil, errors.New("consumer id is required")
	}
	return &Consumer{
		client:     client,
		cfg:        cfg,
		consumerID: consumerID,
		logger:     log,
	}, nil
}

// Initialize creates the consumer group on the processing stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	return c.client.CreateConsumerGroup(ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup)
}

// Next returns the next message to process, or nil when the block timeout
// elapsed with nothing to do. Stale pending entries are claimed ahead of new
// messages so a crashed worker's reports are not starved.
func (c *Consumer) Next(ctx context.Context) (*Message, error) {
	if msg := c.reclaimStale(ctx); msg != nil {
		return msg, nil
	}

	streams, err := c.client.XReadGroup(
		ctx, c.cfg.ConsumerGroup, c.consumerID, c.cfg.ProcessingStream, 1, c.cfg.BlockTimeout,
	)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from %s: %w", c.cfg.ProcessingStream, err)
	}

	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, parseErr := parseMessage(raw, 1)
			if parseErr != nil {
				// A malformed entry can never succeed. Ack it away and keep
				// reading.
				c.logger.Warn("dropping malformed queue message",
					logger.String("message_id", raw.ID),
					logger.Error(parseErr))
				c.ackQuietly(ctx, raw.ID)
				continue
			}
			return msg, nil
		}
	}
	return nil, nil
}

// Ack acknowledges a processed delivery.
func (c *Consumer) Ack(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	return c.client.XAck(ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup, msg.ID)
}

// PendingCount returns how many deliveries are awaiting acknowledgement
// across the group.
func (c *Consumer) PendingCount(ctx context.Context) (int64, error) {
	entries, err := c.client.XPendingExt(ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup, maxPendingCheck)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("pending entries: %w", err)
	}
	return int64(len(entries)), nil
}

// ConsumerID returns this consumer's identity within the group.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}

// reclaimStale claims the first pending entry that has sat idle past the
// configured threshold. Errors are logged and swallowed; reclaim is an
// opportunistic path and new-message reads must not be blocked by it.
func (c *Consumer) reclaimStale(ctx context.Context) *Message {
	pending, err := c.client.XPendingExt(ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup, maxPendingCheck)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("pending entries lookup failed", logger.Error(err))
		}
		return nil
	}

	deliveries := make(map[string]int64, len(pending))
	var stale []string
	for _, entry := range pending {
		if entry.Idle >= c.cfg.ClaimMinIdle {
			stale = append(stale, entry.ID)
			deliveries[entry.ID] = entry.RetryCount
		}
	}
	if len(stale) == 0 {
		return nil
	}

	claimed, err := c.client.XClaim(
		ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup, c.consumerID, c.cfg.ClaimMinIdle, stale...,
	)
	if err != nil {
		c.logger.Warn("claim of stale deliveries failed", logger.Error(err))
		return nil
	}

	for _, raw := range claimed {
		// The claim itself counts as a delivery.
		msg, parseErr := parseMessage(raw, deliveries[raw.ID]+1)
		if parseErr != nil {
			c.logger.Warn("dropping malformed reclaimed message",
				logger.String("message_id", raw.ID),
				logger.Error(parseErr))
			c.ackQuietly(ctx, raw.ID)
			continue
		}
		c.logger.Info("reclaimed stale delivery",
			logger.String("message_id", msg.ID),
			logger.Int64("report_id", msg.ReportID),
			logger.Int64("delivery", msg.Delivery))
		return msg
	}
	return nil
}

func (c *Consumer) ackQuietly(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.ProcessingStream, c.cfg.ConsumerGroup, id); err != nil {
		c.logger.Warn("ack failed", logger.String("message_id", id), logger.Error(err))
	}
}

func parseMessage(raw redis.XMessage, delivery int64) (*Message, error) {
	idStr, ok := raw.Values[reportIDField].(string)
	if !ok {
		return nil, errors.New("missing report_id field")
	}
	reportID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse report_id %q: %w", idStr, err)
	}

	msg := &Message{
		ID:       raw.ID,
		ReportID: reportID,
		Delivery: delivery,
	}
	if enqueuedStr, has := raw.Values[enqueuedAtField].(string); has {
		if t, parseErr := time.Parse(time.RFC3339, enqueuedStr); parseErr == nil {
			msg.EnqueuedAt = t
		}
	}
	return msg, nil
}
