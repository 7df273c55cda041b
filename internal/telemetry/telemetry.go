// Package telemetry provides OpenTelemetry instrumentation for the triage service.
// It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "triage"

// Metrics holds all triage Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	ReportsProcessed   *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	StageDuration      *prometheus.HistogramVec

	// Classification metrics
	Classifications    *prometheus.CounterVec
	SeverityTotal      *prometheus.CounterVec
	DuplicatesDetected prometheus.Counter
	OverallConfidence  prometheus.Histogram
	DispatchActions    *prometheus.CounterVec

	// Lifecycle metrics
	Transitions        *prometheus.CounterVec
	InvalidTransitions prometheus.Counter

	// Worker metrics
	QueueDepth      prometheus.Gauge
	ActiveWorkers   prometheus.Gauge
	WorkerHeartbeat prometheus.Gauge

	// DLQ metrics
	DLQDepth     prometheus.Gauge
	DLQEnqueued  *prometheus.CounterVec
	DLQProcessed prometheus.Counter
	DLQExhausted prometheus.Counter

	// Search outbox metrics
	OutboxBacklog    prometheus.Gauge
	OutboxPublished  prometheus.Counter
	OutboxPublishLag prometheus.Histogram
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics
func NewProvider() *Provider {
	metrics := initMetrics()
	tracer := otel.Tracer(serviceName)

	return &Provider{
		Tracer:  tracer,
		Metrics: metrics,
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initPipelineMetrics(m)
	initClassificationMetrics(m)
	initLifecycleMetrics(m)
	initWorkerMetrics(m)
	initDLQMetrics(m)
	initOutboxMetrics(m)
	return m
}

func initPipelineMetrics(m *Metrics) {
	m.ReportsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_reports_processed_total",
		Help: "Total reports processed by outcome (classified, duplicate, already_processed, missing, requeued, failed)",
	}, []string{"outcome"})

	m.ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_processing_duration_seconds",
		Help:    "End-to-end time to triage a single report, including persistence",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0, 30.0},
	})

	m.StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triage_stage_duration_seconds",
		Help:    "Time spent per pipeline stage (dedup, category, severity, routing)",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"stage"})
}

func initClassificationMetrics(m *Metrics) {
	m.Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_classifications_total",
		Help: "Total classifications by category and method (keyword_override, keyword_boost, zero_shot_only)",
	}, []string{"category", "method"})

	m.SeverityTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_severity_total",
		Help: "Total classified reports by severity",
	}, []string{"severity"})

	m.DuplicatesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_duplicates_detected_total",
		Help: "Total reports short-circuited as duplicates of an open report",
	})

	m.OverallConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_overall_confidence",
		Help:    "Distribution of weighted overall confidence across the dispatch bands",
		Buckets: []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
	})

	m.DispatchActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_dispatch_actions_total",
		Help: "Total dispatcher decisions by action (assign_officer, assign_department, classify_only, manual_review, duplicate)",
	}, []string{"action"})
}

func initLifecycleMetrics(m *Metrics) {
	m.Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_transitions_total",
		Help: "Total applied status transitions by from/to status",
	}, []string{"from", "to"})

	m.InvalidTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_invalid_transitions_total",
		Help: "Total transition requests rejected by the status state machine",
	})
}

func initWorkerMetrics(m *Metrics) {
	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_queue_depth",
		Help: "Current pending reports in the processing queue",
	})

	m.ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_active_workers",
		Help: "Currently active worker goroutines",
	})

	m.WorkerHeartbeat = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_worker_heartbeat_timestamp_seconds",
		Help: "Unix timestamp of the last worker heartbeat",
	})
}

func initDLQMetrics(m *Metrics) {
	m.DLQDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_dlq_depth",
		Help: "Current reports in the dead-letter queue",
	})

	m.DLQEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_dlq_enqueued_total",
		Help: "Total reports added to the DLQ by error code",
	}, []string{"error_code"})

	m.DLQProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_dlq_processed_total",
		Help: "Total reports successfully reprocessed from the DLQ",
	})

	m.DLQExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_dlq_exhausted_total",
		Help: "Total reports that exhausted all DLQ retries",
	})
}

func initOutboxMetrics(m *Metrics) {
	m.OutboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triage_outbox_backlog",
		Help: "Current unindexed documents in the search outbox",
	})

	m.OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triage_outbox_published_total",
		Help: "Total documents indexed from the search outbox",
	})

	m.OutboxPublishLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_outbox_publish_lag_seconds",
		Help:    "Time between outbox insert and search indexing",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
}

// RecordReportProcessed records the final outcome and duration for one report
func (p *Provider) RecordReportProcessed(ctx context.Context, outcome string, duration time.Duration) {
	p.Metrics.ReportsProcessed.WithLabelValues(outcome).Inc()
	p.Metrics.ProcessingDuration.Observe(duration.Seconds())
}

// RecordStageDuration records time spent in a single pipeline stage
func (p *Provider) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	p.Metrics.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordClassification records a completed classification with its confidence
func (p *Provider) RecordClassification(ctx context.Context, category, method, severity string, confidence float64) {
	p.Metrics.Classifications.WithLabelValues(category, method).Inc()
	p.Metrics.SeverityTotal.WithLabelValues(severity).Inc()
	p.Metrics.OverallConfidence.Observe(confidence)
}

// RecordDuplicate records a report short-circuited as a duplicate
func (p *Provider) RecordDuplicate(ctx context.Context) {
	p.Metrics.DuplicatesDetected.Inc()
}

// RecordDispatchAction records the dispatcher's decision for a report
func (p *Provider) RecordDispatchAction(ctx context.Context, action string) {
	p.Metrics.DispatchActions.WithLabelValues(action).Inc()
}

// RecordTransition records an applied status transition
func (p *Provider) RecordTransition(ctx context.Context, from, to string) {
	p.Metrics.Transitions.WithLabelValues(from, to).Inc()
}

// RecordInvalidTransition records a transition rejected by the state machine
func (p *Provider) RecordInvalidTransition(ctx context.Context) {
	p.Metrics.InvalidTransitions.Inc()
}

// RecordDLQEnqueue records a DLQ enqueue event
func (p *Provider) RecordDLQEnqueue(ctx context.Context, errorCode string) {
	p.Metrics.DLQEnqueued.WithLabelValues(errorCode).Inc()
	p.Metrics.DLQDepth.Inc()
}

// RecordDLQProcessed records a successful DLQ reprocessing
func (p *Provider) RecordDLQProcessed(ctx context.Context) {
	p.Metrics.DLQProcessed.Inc()
	p.Metrics.DLQDepth.Dec()
}

// RecordDLQExhausted records a DLQ entry that exhausted retries
func (p *Provider) RecordDLQExhausted(ctx context.Context) {
	p.Metrics.DLQExhausted.Inc()
	p.Metrics.DLQDepth.Dec()
}

// RecordOutboxPublish records search outbox publish metrics
func (p *Provider) RecordOutboxPublish(ctx context.Context, insertedAt time.Time, success bool) {
	lag := time.Since(insertedAt)
	p.Metrics.OutboxPublishLag.Observe(lag.Seconds())
	if success {
		p.Metrics.OutboxPublished.Inc()
		p.Metrics.OutboxBacklog.Dec()
	}
}

// RecordHeartbeat sets the worker heartbeat gauge to the current time
func (p *Provider) RecordHeartbeat() {
	p.Metrics.WorkerHeartbeat.SetToCurrentTime()
}

// SetQueueDepth sets the current queue depth
func (p *Provider) SetQueueDepth(depth int) {
	p.Metrics.QueueDepth.Set(float64(depth))
}

// SetActiveWorkers sets the current active worker count
func (p *Provider) SetActiveWorkers(count int) {
	p.Metrics.ActiveWorkers.Set(float64(count))
}

// SetDLQDepth sets the current DLQ depth
func (p *Provider) SetDLQDepth(depth int) {
	p.Metrics.DLQDepth.Set(float64(depth))
}

// SetOutboxBacklog sets the current search outbox backlog
func (p *Provider) SetOutboxBacklog(backlog int) {
	p.Metrics.OutboxBacklog.Set(float64(backlog))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
