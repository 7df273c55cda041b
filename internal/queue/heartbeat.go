package queue

import (
	"context"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
)

// Heartbeat periodically writes a TTL'd liveness key for one worker. The
// monitoring surface reads key freshness; an expired key means the worker
// stopped beating.
type Heartbeat struct {
	client   *StreamsClient
	key      string
	prefix   string
	interval time.Duration
	ttl      time.Duration
	logger   logger.Logger
}

// NewHeartbeat creates a heartbeat for the given worker id.
func NewHeartbeat(client *StreamsClient, cfg config.WorkerConfig, workerID string, log logger.Logger) *Heartbeat {
	return &Heartbeat{
		client:   client,
		key:      cfg.HeartbeatPrefix + workerID,
		prefix:   cfg.HeartbeatPrefix,
		interval: cfg.HeartbeatInterval,
		ttl:      cfg.HeartbeatTTL,
		logger:   log,
	}
}

// Key returns the Redis key this heartbeat writes.
func (h *Heartbeat) Key() string {
	return h.key
}

// Beat writes one liveness timestamp with the configured TTL.
func (h *Heartbeat) Beat(ctx context.Context) error {
	return h.client.SetEx(ctx, h.key, time.Now().UTC().Format(time.RFC3339), h.ttl)
}

// Run beats until the context is cancelled. Failures are logged and the next
// tick tries again; a missed beat only shortens the key's remaining TTL.
func (h *Heartbeat) Run(ctx context.Context) {
	if err := h.Beat(ctx); err != nil {
		h.logger.Warn("heartbeat write failed", logger.String("key", h.key), logger.Error(err))
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Beat(ctx); err != nil {
				h.logger.Warn("heartbeat write failed", logger.String("key", h.key), logger.Error(err))
			}
		}
	}
}

// Workers lists the worker ids with a live heartbeat key and when each last
// beat, keyed by worker id.
func Workers(ctx context.Context, client *StreamsClient, prefix string) (map[string]time.Time, error) {
	keys, err := client.ScanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		value, getErr := client.Get(ctx, key)
		if getErr != nil {
			// Key expired between scan and read.
			continue
		}
		beat, parseErr := time.Parse(time.RFC3339, value)
		if parseErr != nil {
			continue
		}
		out[key[len(prefix):]] = beat
	}
	return out, nil
}
