package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/civicgrid/triage/internal/telemetry"
)

// providerOnce ensures we only create one Provider per test run to avoid
// duplicate Prometheus metric registration errors from promauto's global registry
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func getTestProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

func TestNewProvider(t *testing.T) {
	provider := getTestProvider(t)
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
	if provider.Tracer == nil {
		t.Error("expected non-nil tracer")
	}
	if provider.Metrics == nil {
		t.Error("expected non-nil metrics")
	}
}

func TestRecordReportProcessed(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordReportProcessed(ctx, "classified", 800*time.Millisecond)
	provider.RecordReportProcessed(ctx, "duplicate", 120*time.Millisecond)
	provider.RecordReportProcessed(ctx, "failed", 2*time.Second)
}

func TestRecordClassification(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordClassification(ctx, "roads", "keyword_boost", "high", 0.87)
	provider.RecordClassification(ctx, "other", "zero_shot_only", "low", 0.31)
	provider.RecordDuplicate(ctx)
	provider.RecordDispatchAction(ctx, "assign_department")
}

func TestRecordStageDuration(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordStageDuration(ctx, "category", 150*time.Millisecond)
	provider.RecordStageDuration(ctx, "dedup", 40*time.Millisecond)
}

func TestRecordTransition(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordTransition(ctx, "classified", "assigned_to_department")
	provider.RecordInvalidTransition(ctx)
}

func TestSetGauges(t *testing.T) {
	provider := getTestProvider(t)

	// Should not panic
	provider.SetQueueDepth(100)
	provider.SetActiveWorkers(5)
	provider.SetDLQDepth(3)
	provider.SetOutboxBacklog(12)
	provider.RecordHeartbeat()
}
