package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// AppealStore persists appeals.
type AppealStore interface {
	GetAppeal(ctx context.Context, id int64) (*domain.Appeal, error)
	CountAppeals(ctx context.Context, reportID int64) (int, error)
	CreateAppeal(ctx context.Context, appeal *domain.Appeal) error
	// ResolveAppeal records the decision and, when change is non-nil, applies
	// the derived status change in the same transaction.
	ResolveAppeal(ctx context.Context, appeal *domain.Appeal, change *StatusChange) error
}

// SubmitAppeal validates and records a new appeal. The report must be in a
// status the appeal type allows, below the per-report appeal cap, and not a
// frozen duplicate.
func (s *Service) SubmitAppeal(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error) {
	if !appeal.AppealType.Valid() {
		return nil, domain.NewValidationError("appeal_type_known", "unknown appeal type %q", appeal.AppealType)
	}
	if appeal.Reason == "" {
		return nil, domain.NewValidationError("appeal_reason_present", "an appeal must state its reason")
	}

	report, err := s.reports.GetReport(ctx, appeal.ReportID)
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", appeal.ReportID, err)
	}
	if report.Frozen() {
		return nil, domain.NewValidationError("report_not_duplicate",
			"report %d is a duplicate and cannot be appealed", report.ID)
	}
	if !CanAppeal(appeal.AppealType, report.Status) {
		return nil, domain.NewValidationError("appeal_eligible_status",
			"a %s appeal requires report status in %v, report is %s",
			appeal.AppealType, AppealableStatuses(appeal.AppealType), report.Status)
	}

	count, err := s.appeals.CountAppeals(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("count appeals for report %d: %w", report.ID, err)
	}
	if count >= s.cfg.MaxAppealsPerReport {
		return nil, domain.NewValidationError("appeal_cap",
			"report %d already has %d appeals, the maximum", report.ID, count)
	}

	appeal.Status = domain.AppealSubmitted
	if err := s.appeals.CreateAppeal(ctx, appeal); err != nil {
		return nil, fmt.Errorf("create appeal: %w", err)
	}

	s.logger.Info("appeal submitted",
		logger.Int64("report_id", report.ID),
		logger.Int64("appeal_id", appeal.ID),
		logger.String("appeal_type", string(appeal.AppealType)))
	return appeal, nil
}

// ReviewAppeal records an admin decision on an open appeal. Approving an
// outcome-challenging appeal reopens the report in the same transaction and
// then advances it to in_progress for rework.
func (s *Service) ReviewAppeal(ctx context.Context, appealID, reviewerID int64, decision domain.AppealStatus, notes string) (*domain.Appeal, error) {
	if !reviewDecision(decision) {
		return nil, domain.NewValidationError("appeal_decision_known",
			"appeal review must decide approved, rejected, or withdrawn, got %q", decision)
	}

	appeal, err := s.appeals.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, fmt.Errorf("load appeal %d: %w", appealID, err)
	}
	if appeal.Status.Resolved() {
		return nil, domain.NewValidationError("appeal_open",
			"appeal %d is already %s", appeal.ID, appeal.Status)
	}

	report, err := s.reports.GetReport(ctx, appeal.ReportID)
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", appeal.ReportID, err)
	}

	now := time.Now().UTC()
	appeal.Status = decision
	appeal.ReviewedBy = &reviewerID
	appeal.ReviewNotes = notes
	appeal.ResolvedAt = &now

	var change *StatusChange
	tr, derived := DeriveTransition(Event{
		Status: report.Status,
		Appeal: &AppealEvent{Type: appeal.AppealType, Decision: decision},
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

	if err := s.appeals.ResolveAppeal(ctx, appeal, change); err != nil {
		return nil, fmt.Errorf("resolve appeal %d: %w", appeal.ID, err)
	}
	if derived {
		s.recordTransition(ctx, tr.From, tr.To)
	}

	s.logger.Info("appeal reviewed",
		logger.Int64("appeal_id", appeal.ID),
		logger.Int64("report_id", report.ID),
		logger.String("decision", string(decision)),
		logger.Bool("reopened", derived))
	s.notifyAppealDecision(ctx, report, appeal)

	if derived {
		s.notifyStatus(ctx, report, tr.To)
		s.advanceReopened(ctx, report.ID)
	}
	return appeal, nil
}

func reviewDecision(d domain.AppealStatus) bool {
	return d == domain.AppealApproved || d == domain.AppealRejected || d == domain.AppealWithdrawn
}

// advanceReopened moves a just-reopened report onto the working edge. A
// failure leaves the report at reopened, which is legal; the next actor can
// advance it manually.
func (s *Service) advanceReopened(ctx context.Context, reportID int64) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		s.logger.Warn("reload after reopen failed",
			logger.Int64("report_id", reportID), logger.Error(err))
		return
	}
	if report.Status != domain.StatusReopened {
		return
	}

	change := StatusChange{
		ReportID:        report.ID,
		ExpectedVersion: report.Version,
		From:            domain.StatusReopened,
		To:              domain.StatusInProgress,
		Notes:           "rework after reopen",
	}
	if err := s.reports.ApplyTransition(ctx, change); err != nil {
		s.logger.Warn("advance to in_progress failed",
			logger.Int64("report_id", reportID), logger.Error(err))
		return
	}
	s.recordTransition(ctx, domain.StatusReopened, domain.StatusInProgress)
	s.notifyStatus(ctx, report, domain.StatusInProgress)
}

func (s *Service) notifyAppealDecision(ctx context.Context, report *domain.Report, appeal *domain.Appeal) {
	if s.notifier == nil {
		return
	}
	intent := domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   appeal.SubmittedBy,
		RecipientRole: roleForAppeal(appeal.AppealType),
		Template:      domain.TemplateAppealDecision,
		ReportID:      report.ID,
		Data: map[string]string{
			"appeal_type": string(appeal.AppealType),
			"decision":    string(appeal.Status),
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

func roleForAppeal(t domain.AppealType) domain.RecipientRole {
	switch t {
	case domain.AppealOfficerAssignment:
		return domain.RoleOfficer
	case domain.AppealAdminReassignment:
		return domain.RoleAdmin
	default:
		return domain.RoleCitizen
	}
}
