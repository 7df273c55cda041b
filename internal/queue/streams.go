// Package queue provides the Redis Streams intake for the processing
// pipeline: report ids enqueued by the intake service, consumed one at a
// time by workers under a consumer group, with a dead-letter stream for
// exhausted deliveries and key-based worker heartbeats.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicgrid/triage/internal/config"
)

// connectionTimeout bounds the startup ping.
const connectionTimeout = 2 * time.Second

// StreamsClient wraps a Redis client with the stream operations the
// producer, consumer, and heartbeat need.
type StreamsClient struct {
	client *redis.Client
}

// NewStreamsClient connects to Redis and verifies the connection.
func NewStreamsClient(cfg config.RedisConfig) (*StreamsClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &StreamsClient{client: client}, nil
}

// NewStreamsClientFromRedis wraps an existing Redis client.
func NewStreamsClientFromRedis(client *redis.Client) *StreamsClient {
	return &StreamsClient{client: client}
}

// Close closes the underlying Redis client.
func (c *StreamsClient) Close() error {
	return c.client.Close()
}

// Ping checks whether Redis is reachable.
func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client.
func (c *StreamsClient) Client() *redis.Client {
	return c.client
}

// CreateConsumerGroup creates a consumer group on a stream, tolerating the
// group already existing.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// XAdd appends a message to a stream.
func (c *StreamsClient) XAdd(ctx context.Context, stream string, values map[string]any) (string, error) {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
}

// XReadGroup reads messages from a stream on behalf of a consumer group.
func (c *StreamsClient) XReadGroup(
	ctx context.Context, group, consumer, stream string, count int64, block time.Duration,
) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck acknowledges messages in a stream.
func (c *StreamsClient) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return c.client.XAck(ctx, stream, group, ids...).Err()
}

// XPendingExt returns detailed pending entries for a stream.
func (c *StreamsClient) XPendingExt(
	ctx context.Context, stream, group string, count int64,
) ([]redis.XPendingExt, error) {
	return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
}

// XClaim transfers ownership of pending messages to a consumer.
func (c *StreamsClient) XClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
}

// XLen returns the length of a stream.
func (c *StreamsClient) XLen(ctx context.Context, stream string) (int64, error) {
	return c.client.XLen(ctx, stream).Result()
}

// SetEx stores a key with a TTL.
func (c *StreamsClient) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.SetEx(ctx, key, value, ttl).Err()
}

// Get reads a key, returning redis.Nil when absent.
func (c *StreamsClient) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// ScanKeys collects every key matching pattern.
func (c *StreamsClient) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}
