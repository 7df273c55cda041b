package processor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/processor"
	"github.com/civicgrid/triage/internal/queue"
)

type fakeSweepStore struct {
	mu        sync.Mutex
	retryable []domain.DeadLetterEntry
	bumped    []int64
	cleanups  []time.Duration
}

func (f *fakeSweepStore) FetchRetryable(_ context.Context, limit int) ([]domain.DeadLetterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.retryable
	if len(out) > limit {
		out = out[:limit]
	}
	// Requeued entries leave the ready set until their next backoff window.
	f.retryable = nil
	return out, nil
}

func (f *fakeSweepStore) UpdateRetryCount(_ context.Context, reportID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumped = append(f.bumped, reportID)
	return nil
}

func (f *fakeSweepStore) CleanupExhausted(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, olderThan)
	return 0, nil
}

func (f *fakeSweepStore) bumpedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.bumped...)
}

func (f *fakeSweepStore) cleanupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cleanups)
}

func (f *fakeSweepStore) lastCleanupRetention() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanups[len(f.cleanups)-1]
}

type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, reportID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.ids = append(f.ids, reportID)
	return "1-1", nil
}

func retryableEntry(reportID int64) domain.DeadLetterEntry {
	return *domain.MustNewDeadLetterEntry(
		reportID, "queue:ai_processing", "zero-shot request timed out", domain.ErrorCodeZeroShotTimeout)
}

func TestSweeper_RequeuesReadyEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default().Queue
	producer := queue.NewProducer(queue.NewStreamsClientFromRedis(client), cfg)

	store := &fakeSweepStore{retryable: []domain.DeadLetterEntry{retryableEntry(61), retryableEntry(62)}}
	sweeper := processor.NewSweeper(store, producer, logger.NewNop(), nil).
		WithInterval(5*time.Millisecond, 10)

	sweeper.Start(context.Background())
	t.Cleanup(sweeper.Stop)

	waitFor(t, 2*time.Second, func() bool { return len(store.bumpedIDs()) == 2 })

	depth, err := producer.QueueDepth(context.Background())
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("queue depth = %d, want 2", depth)
	}

	bumped := store.bumpedIDs()
	if bumped[0] != 61 || bumped[1] != 62 {
		t.Errorf("bumped ids = %v, want [61 62]", bumped)
	}
}

func TestSweeper_EnqueueFailureSkipsRetryBump(t *testing.T) {
	store := &fakeSweepStore{retryable: []domain.DeadLetterEntry{retryableEntry(63)}}
	enqueuer := &fakeEnqueuer{err: errors.New("redis: connection refused")}
	sweeper := processor.NewSweeper(store, enqueuer, logger.NewNop(), nil).
		WithInterval(5*time.Millisecond, 10)

	sweeper.Start(context.Background())
	t.Cleanup(sweeper.Stop)

	// Cleanup runs on the first sweep, so its call marks the sweep done.
	waitFor(t, 2*time.Second, func() bool { return store.cleanupCount() >= 1 })

	if got := store.bumpedIDs(); len(got) != 0 {
		t.Errorf("retry count must not change when requeue fails, bumped %v", got)
	}
}

func TestSweeper_CleanupUsesRetention(t *testing.T) {
	store := &fakeSweepStore{}
	sweeper := processor.NewSweeper(store, &fakeEnqueuer{}, logger.NewNop(), nil).
		WithInterval(5*time.Millisecond, 10)

	sweeper.Start(context.Background())
	t.Cleanup(sweeper.Stop)

	waitFor(t, 2*time.Second, func() bool { return store.cleanupCount() >= 1 })

	if got := store.lastCleanupRetention(); got != 7*24*time.Hour {
		t.Errorf("cleanup retention = %v, want %v", got, 7*24*time.Hour)
	}
}

func TestSweeper_StartStopIdempotent(t *testing.T) {
	sweeper := processor.NewSweeper(&fakeSweepStore{}, &fakeEnqueuer{}, logger.NewNop(), nil).
		WithInterval(time.Millisecond, 1)

	ctx := context.Background()
	sweeper.Start(ctx)
	sweeper.Start(ctx)
	sweeper.Stop()
	sweeper.Stop()
}
