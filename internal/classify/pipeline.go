package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/telemetry"
)

// DuplicateDetector reports whether a new report duplicates an existing open
// one. Implementations must fail open: an error means the signal is absent,
// never that the pipeline should abort.
type DuplicateDetector interface {
	Detect(ctx context.Context, report *domain.Report) (domain.DuplicateMatch, error)
}

// Pipeline runs the triage stages for one report strictly in order:
// duplicate, category, severity, routing, aggregate. Each stage's output can
// gate or bias the next, so there is no intra-report parallelism; worker
// instances parallelize across reports instead.
type Pipeline struct {
	dedup        DuplicateDetector
	category     *CategoryClassifier
	severity     *SeverityScorer
	router       *DepartmentRouter
	aggregator   *Aggregator
	modelVersion string
	logger       logger.Logger
	telemetry    *telemetry.Provider
}

// NewPipeline assembles the full pipeline from configuration. A nil detector
// disables duplicate detection; a nil telemetry provider disables stage
// spans and metrics.
func NewPipeline(zs ZeroShot, dedup DuplicateDetector, cfg *config.Config, log logger.Logger, tp *telemetry.Provider) *Pipeline {
	return &Pipeline{
		dedup:        dedup,
		category:     NewCategoryClassifier(zs, cfg.Pipeline.Category, log),
		severity:     NewSeverityScorer(zs, cfg.Pipeline.Severity, log),
		router:       NewDepartmentRouter(cfg.Pipeline.Routing, log),
		aggregator:   NewAggregator(cfg.Pipeline.Dispatch),
		modelVersion: cfg.ZeroShot.ModelVersion,
		logger:       log,
		telemetry:    tp,
	}
}

// Process classifies one report. It never mutates the report; the returned
// result is folded into the row by the caller in a single transaction, which
// keeps reprocessing idempotent.
func (p *Pipeline) Process(ctx context.Context, report *domain.Report) (*domain.ClassificationResult, error) {
	start := time.Now()

	if strings.TrimSpace(report.Title) == "" && strings.TrimSpace(report.Description) == "" {
		return nil, fmt.Errorf("malformed report %d: empty title and description", report.ID)
	}

	result := &domain.ClassificationResult{
		ReportID:     report.ID,
		ModelVersion: p.modelVersion,
	}

	// Duplicate gate, fail-open: detection failure degrades to "no duplicate
	// found" rather than blocking classification.
	if p.dedup != nil {
		dedupCtx, dedupDone := p.startStage(ctx, "dedup")
		match, err := p.dedup.Detect(dedupCtx, report)
		dedupDone()
		switch {
		case err != nil:
			p.logger.Warn("duplicate detection failed, continuing without the signal",
				logger.Int64("report_id", report.ID),
				logger.Error(err))
		case match.IsDuplicate:
			result.Duplicate = match
			result.Action = domain.ActionDuplicate
			result.TargetStatus = domain.StatusReceived
			p.finish(ctx, result, start)
			return result, nil
		default:
			result.Duplicate = match
		}
	}

	text := report.Text()

	categoryCtx, categoryDone := p.startStage(ctx, "category")
	category, err := p.category.Classify(categoryCtx, text)
	categoryDone()
	if err != nil {
		return nil, err
	}
	result.Category = category

	severityCtx, severityDone := p.startStage(ctx, "severity")
	severity, err := p.severity.Score(severityCtx, text, category.Category)
	severityDone()
	if err != nil {
		return nil, err
	}
	result.Severity = severity

	_, routingDone := p.startStage(ctx, "routing")
	result.Routing = p.router.Route(category.Category, text)
	routingDone()

	result.OverallConfidence = p.aggregator.Overall(
		category.Confidence, severity.Confidence, result.Routing.Confidence)
	result.Action, result.TargetStatus = p.aggregator.Dispatch(result.OverallConfidence)

	if category.ReviewReason != "" {
		result.NeedsReview = true
		result.ReviewReason = category.ReviewReason
	}
	if result.Action == domain.ActionManualReview {
		result.NeedsReview = true
		if result.ReviewReason == "" {
			result.ReviewReason = domain.ReviewReasonLowConfidence
		}
	}

	p.finish(ctx, result, start)
	return result, nil
}

// startStage opens a trace span for one pipeline stage and returns a done
// func that ends the span and records the stage duration.
func (p *Pipeline) startStage(ctx context.Context, stage string) (context.Context, func()) {
	if p.telemetry == nil {
		return ctx, func() {}
	}
	start := time.Now()
	spanCtx, span := p.telemetry.StartSpan(ctx, "pipeline."+stage)
	return spanCtx, func() {
		span.End()
		p.telemetry.RecordStageDuration(ctx, stage, time.Since(start))
	}
}

func (p *Pipeline) finish(ctx context.Context, result *domain.ClassificationResult, start time.Time) {
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.ClassifiedAt = time.Now().UTC()

	if p.telemetry != nil {
		if result.Duplicate.IsDuplicate {
			p.telemetry.RecordDuplicate(ctx)
		} else {
			p.telemetry.RecordClassification(ctx,
				string(result.Category.Category), result.Category.Method,
				string(result.Severity.Severity), result.OverallConfidence)
		}
		p.telemetry.RecordDispatchAction(ctx, string(result.Action))
	}

	p.logger.Info("report triaged",
		logger.Int64("report_id", result.ReportID),
		logger.String("action", string(result.Action)),
		logger.String("target_status", string(result.TargetStatus)),
		logger.String("category", string(result.Category.Category)),
		logger.String("severity", string(result.Severity.Severity)),
		logger.String("department", string(result.Routing.Department)),
		logger.Float64("overall_confidence", result.OverallConfidence),
		logger.Bool("is_duplicate", result.Duplicate.IsDuplicate),
		logger.Int64("processing_ms", result.ProcessingTimeMs))
}
