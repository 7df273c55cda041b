package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/telemetry"
)

// StatusChange is one atomic status update: the edge, the acting user, and
// the optimistic concurrency guard.
type StatusChange struct {
	ReportID        int64
	ExpectedVersion int64
	From            domain.Status
	To              domain.Status
	// ChangedBy is nil for system and derived transitions.
	ChangedBy *int64
	Notes     string
}

// ReportStore loads reports and applies status changes.
type ReportStore interface {
	GetReport(ctx context.Context, id int64) (*domain.Report, error)
	// ApplyTransition updates the report's status and appends exactly one
	// StatusHistory row in a single transaction. It fails with
	// domain.ErrStaleReport when ExpectedVersion no longer matches the row.
	ApplyTransition(ctx context.Context, change StatusChange) error
}

// Notifier accepts notification intents for external delivery.
type Notifier interface {
	Emit(ctx context.Context, intent domain.NotificationIntent) error
}

// Service drives report lifecycle transitions and the appeal, feedback, and
// escalation flows around them.
type Service struct {
	reports     ReportStore
	appeals     AppealStore
	feedback    FeedbackStore
	escalations EscalationStore
	notifier    Notifier
	cfg         config.LifecycleConfig
	logger      logger.Logger
	telemetry   *telemetry.Provider
}

// NewService wires the lifecycle service. A nil notifier drops intents and a
// nil telemetry provider disables metrics.
func NewService(
	reports ReportStore,
	appeals AppealStore,
	feedback FeedbackStore,
	escalations EscalationStore,
	notifier Notifier,
	cfg config.LifecycleConfig,
	log logger.Logger,
	tp *telemetry.Provider,
) *Service {
	return &Service{
		reports:     reports,
		appeals:     appeals,
		feedback:    feedback,
		escalations: escalations,
		notifier:    notifier,
		cfg:         cfg,
		logger:      log,
		telemetry:   tp,
	}
}

func (s *Service) recordTransition(ctx context.Context, from, to domain.Status) {
	if s.telemetry != nil {
		s.telemetry.RecordTransition(ctx, string(from), string(to))
	}
}

func (s *Service) recordInvalidTransition(ctx context.Context) {
	if s.telemetry != nil {
		s.telemetry.RecordInvalidTransition(ctx)
	}
}

// RequestTransition applies a direct status change requested by an actor.
// Derived-only edges (leaving resolved, closed, or rejected) are refused
// here; they happen only through feedback submission and appeal review.
func (s *Service) RequestTransition(ctx context.Context, reportID int64, to domain.Status, actorID *int64, notes string) (*domain.Report, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", reportID, err)
	}
	if report.Frozen() {
		return nil, domain.NewValidationError("report_not_duplicate",
			"report %d is a duplicate and its lifecycle is frozen", report.ID)
	}
	if !to.Valid() {
		return nil, domain.NewValidationError("status_known", "unknown status %q", to)
	}
	if DerivedOnly(report.Status) {
		s.recordInvalidTransition(ctx)
		return nil, &domain.InvalidTransitionError{
			From:   report.Status,
			To:     to,
			Reason: "leaving this status requires citizen feedback or an approved appeal",
		}
	}
	if err := ValidateTransition(report.Status, to); err != nil {
		s.recordInvalidTransition(ctx)
		return nil, err
	}

	change := StatusChange{
		ReportID:        report.ID,
		ExpectedVersion: report.Version,
		From:            report.Status,
		To:              to,
		ChangedBy:       actorID,
		Notes:           notes,
	}
	if err := s.reports.ApplyTransition(ctx, change); err != nil {
		return nil, fmt.Errorf("apply transition %s -> %s: %w", report.Status, to, err)
	}
	s.recordTransition(ctx, report.Status, to)

	s.logger.Info("report status changed",
		logger.Int64("report_id", report.ID),
		logger.String("from", string(report.Status)),
		logger.String("to", string(to)))
	s.notifyStatus(ctx, report, to)

	updated, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("reload report %d: %w", reportID, err)
	}
	return updated, nil
}

// notifyStatus emits a citizen-facing intent for a committed status change.
// Intent failures are logged, never propagated: the transition already
// happened.
func (s *Service) notifyStatus(ctx context.Context, report *domain.Report, to domain.Status) {
	if s.notifier == nil {
		return
	}
	intent := domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   report.ReporterID,
		RecipientRole: domain.RoleCitizen,
		Template:      templateForStatus(to),
		ReportID:      report.ID,
		Data: map[string]string{
			"previous_status": string(report.Status),
			"new_status":      string(to),
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifier.Emit(ctx, intent); err != nil {
		s.logger.Warn("notification intent dropped",
			logger.Int64("report_id", report.ID),
			logger.String("template", intent.Template),
			logger.Error(err))
	}
}

func templateForStatus(to domain.Status) string {
	switch to {
	case domain.StatusClassified:
		return domain.TemplateClassified
	case domain.StatusAssignedToDepartment, domain.StatusAssignedToOfficer:
		return domain.TemplateAssigned
	case domain.StatusReopened:
		return domain.TemplateReopened
	case domain.StatusClosed:
		return domain.TemplateClosed
	default:
		return domain.TemplateStatusChanged
	}
}
