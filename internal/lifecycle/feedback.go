package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// FeedbackStore persists citizen feedback.
type FeedbackStore interface {
	// FeedbackForReport returns the report's feedback or domain.ErrNotFound.
	FeedbackForReport(ctx context.Context, reportID int64) (*domain.Feedback, error)
	// CreateFeedback inserts fb and, when change is non-nil, applies the
	// derived status change in the same transaction.
	CreateFeedback(ctx context.Context, fb *domain.Feedback, change *StatusChange) error
}

// SubmitFeedback validates and records the citizen's resolution feedback.
// Satisfied and very_satisfied levels close a resolved report in the same
// transaction as the feedback insert; dissatisfied levels leave the status
// unchanged.
func (s *Service) SubmitFeedback(ctx context.Context, fb *domain.Feedback) (*domain.Feedback, error) {
	if fb.Rating < domain.MinRating || fb.Rating > domain.MaxRating {
		return nil, domain.NewValidationError("rating_in_range",
			"rating must be between %d and %d, got %d", domain.MinRating, domain.MaxRating, fb.Rating)
	}
	if !fb.SatisfactionLevel.Valid() {
		return nil, domain.NewValidationError("satisfaction_known",
			"unknown satisfaction level %q", fb.SatisfactionLevel)
	}

	report, err := s.reports.GetReport(ctx, fb.ReportID)
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", fb.ReportID, err)
	}
	if report.Frozen() {
		return nil, domain.NewValidationError("report_not_duplicate",
			"report %d is a duplicate and does not take feedback", report.ID)
	}
	if !CanFeedback(report.Status) {
		return nil, domain.NewValidationError("report_resolved",
			"feedback requires status %s or %s, report is %s",
			domain.StatusResolved, domain.StatusClosed, report.Status)
	}
	if fb.SubmittedBy != report.ReporterID {
		return nil, domain.NewValidationError("reporter_only",
			"feedback may only be submitted by the original reporter")
	}

	existing, err := s.feedback.FeedbackForReport(ctx, report.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load feedback for report %d: %w", report.ID, err)
	}
	if existing != nil {
		return nil, domain.NewValidationError("single_feedback",
			"report %d already has feedback", report.ID)
	}

	var change *StatusChange
	tr, derived := DeriveTransition(Event{
		Status:   report.Status,
		Feedback: &FeedbackEvent{Satisfaction: fb.SatisfactionLevel},
	})
	if derived {
		if err := ValidateTransition(tr.From, tr.To); err != nil {
			return nil, err
		}
		change = &StatusChange{
			ReportID:        report.ID,
			ExpectedVersion: report.Version,
			From:            tr.From,
			To:              tr.To,
			Notes:           tr.Notes,
		}
	}

	if err := s.feedback.CreateFeedback(ctx, fb, change); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	if derived {
		s.recordTransition(ctx, tr.From, tr.To)
	}

	s.logger.Info("feedback submitted",
		logger.Int64("report_id", report.ID),
		logger.String("satisfaction", string(fb.SatisfactionLevel)),
		logger.Int("rating", fb.Rating),
		logger.Bool("closed_report", derived))
	s.notifyFeedbackReceipt(ctx, report, fb)
	if derived {
		s.notifyStatus(ctx, report, tr.To)
	}
	return fb, nil
}

func (s *Service) notifyFeedbackReceipt(ctx context.Context, report *domain.Report, fb *domain.Feedback) {
	if s.notifier == nil {
		return
	}
	intent := domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   fb.SubmittedBy,
		RecipientRole: domain.RoleCitizen,
		Template:      domain.TemplateFeedbackReceipt,
		ReportID:      report.ID,
		Data: map[string]string{
			"satisfaction": string(fb.SatisfactionLevel),
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
