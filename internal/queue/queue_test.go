package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/queue"
)

func newTestQueue(t *testing.T) (*miniredis.Miniredis, *queue.StreamsClient, config.QueueConfig) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default().Queue
	cfg.BlockTimeout = 20 * time.Millisecond
	cfg.ClaimMinIdle = time.Millisecond
	return mr, queue.NewStreamsClientFromRedis(client), cfg
}

func newTestConsumer(t *testing.T, client *queue.StreamsClient, cfg config.QueueConfig, id string) *queue.Consumer {
	t.Helper()

	consumer, err := queue.NewConsumer(client, cfg, id, logger.NewNop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := consumer.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return consumer
}

func TestProducer_Enqueue(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg)
	ctx := context.Background()

	id, err := producer.Enqueue(ctx, 41)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Error("expected a stream message id")
	}
	if _, err := producer.Enqueue(ctx, 42); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	depth, err := producer.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("queue depth = %d, want 2", depth)
	}
}

func TestProducer_EnqueueRejectsBadID(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg)

	if _, err := producer.Enqueue(context.Background(), 0); err == nil {
		t.Error("expected an error for a non-positive report id")
	}
}

func TestProducer_DeadLetter(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg)
	ctx := context.Background()

	if _, err := producer.DeadLetter(ctx, 77, "retries exhausted: classify: model sidecar unavailable", 3); err != nil {
		t.Fatalf("dead-letter: %v", err)
	}

	depth, err := producer.DeadLetterDepth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("dead-letter depth = %d, want 1", depth)
	}
	if qd, _ := producer.QueueDepth(ctx); qd != 0 {
		t.Errorf("processing depth = %d, want 0", qd)
	}
}

func TestConsumer_RoundTrip(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg)
	consumer := newTestConsumer(t, client, cfg, "worker-1")
	ctx := context.Background()

	if _, err := producer.Enqueue(ctx, 41); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	msg, err := consumer.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.ReportID != 41 {
		t.Errorf("report id = %d, want 41", msg.ReportID)
	}
	if msg.Delivery != 1 {
		t.Errorf("delivery = %d, want 1", msg.Delivery)
	}
	if msg.EnqueuedAt.IsZero() || time.Since(msg.EnqueuedAt) > time.Minute {
		t.Errorf("enqueued_at = %v, want recent", msg.EnqueuedAt)
	}

	if err := consumer.Ack(ctx, msg); err != nil {
		t.Fatalf("ack: %v", err)
	}
	pending, err := consumer.PendingCount(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d after ack, want 0", pending)
	}
}

func TestConsumer_EmptyStreamReturnsNil(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	consumer := newTestConsumer(t, client, cfg, "worker-1")

	msg, err := consumer.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg != nil {
		t.Errorf("expected no message, got %+v", msg)
	}
}

func TestConsumer_ReclaimsStaleDelivery(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	producer := queue.NewProducer(client, cfg)
	crashed := newTestConsumer(t, client, cfg, "worker-crashed")
	successor := newTestConsumer(t, client, cfg, "worker-successor")
	ctx := context.Background()

	if _, err := producer.Enqueue(ctx, 55); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First worker reads but never acknowledges.
	first, err := crashed.Next(ctx)
	if err != nil || first == nil {
		t.Fatalf("first read: msg=%v err=%v", first, err)
	}

	// Wait past the claim threshold, then a second worker picks it up.
	time.Sleep(10 * time.Millisecond)
	reclaimed, err := successor.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if reclaimed == nil {
		t.Fatal("expected the stale delivery to be reclaimed")
	}
	if reclaimed.ReportID != 55 {
		t.Errorf("report id = %d, want 55", reclaimed.ReportID)
	}
	if reclaimed.Delivery != 2 {
		t.Errorf("delivery = %d, want 2", reclaimed.Delivery)
	}

	if err := successor.Ack(ctx, reclaimed); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if pending, _ := successor.PendingCount(ctx); pending != 0 {
		t.Errorf("pending = %d after ack, want 0", pending)
	}
}

func TestConsumer_DropsMalformedMessage(t *testing.T) {
	_, client, cfg := newTestQueue(t)
	consumer := newTestConsumer(t, client, cfg, "worker-1")
	ctx := context.Background()

	// An entry without a report_id can never be processed.
	if _, err := client.XAdd(ctx, cfg.ProcessingStream, map[string]any{"garbage": "x"}); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	producer := queue.NewProducer(client, cfg)
	if _, err := producer.Enqueue(ctx, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// The malformed entry is acked away; the cycle yields nothing.
	msg, err := consumer.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected the malformed entry to be dropped, got %+v", msg)
	}

	// The next cycle reaches the good message.
	msg, err = consumer.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg == nil || msg.ReportID != 9 {
		t.Fatalf("expected report 9, got %+v", msg)
	}
	if pending, _ := consumer.PendingCount(ctx); pending != 1 {
		t.Errorf("pending = %d, want only the good delivery", pending)
	}
}

func TestHeartbeat(t *testing.T) {
	mr, client, _ := newTestQueue(t)
	workerCfg := config.Default().Worker
	hb := queue.NewHeartbeat(client, workerCfg, "worker-1", logger.NewNop())
	ctx := context.Background()

	if err := hb.Beat(ctx); err != nil {
		t.Fatalf("beat: %v", err)
	}
	if hb.Key() != workerCfg.HeartbeatPrefix+"worker-1" {
		t.Errorf("key = %q", hb.Key())
	}

	workers, err := queue.Workers(ctx, client, workerCfg.HeartbeatPrefix)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	beat, ok := workers["worker-1"]
	if !ok {
		t.Fatalf("worker-1 missing from %v", workers)
	}
	if time.Since(beat) > time.Minute {
		t.Errorf("stale beat timestamp %v", beat)
	}

	// The key carries a TTL: a worker that stops beating disappears.
	mr.FastForward(workerCfg.HeartbeatTTL + time.Second)
	workers, err = queue.Workers(ctx, client, workerCfg.HeartbeatPrefix)
	if err != nil {
		t.Fatalf("workers after expiry: %v", err)
	}
	if len(workers) != 0 {
		t.Errorf("expected no live workers after TTL, got %v", workers)
	}
}
