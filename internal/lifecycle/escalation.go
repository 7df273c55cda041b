package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// EscalationStore persists escalations.
type EscalationStore interface {
	GetEscalation(ctx context.Context, id int64) (*domain.Escalation, error)
	CreateEscalation(ctx context.Context, esc *domain.Escalation) error
	UpdateEscalation(ctx context.Context, esc *domain.Escalation) error
}

// RaiseEscalation opens an escalation against an active report. Escalations
// are advisory: they never move the report's own status.
func (s *Service) RaiseEscalation(ctx context.Context, esc *domain.Escalation) (*domain.Escalation, error) {
	if !esc.Level.Valid() {
		return nil, domain.NewValidationError("escalation_level_known",
			"unknown escalation level %q", esc.Level)
	}
	switch esc.Trigger {
	case domain.TriggerSLABreach, domain.TriggerQualityDispute, domain.TriggerManual:
	default:
		return nil, domain.NewValidationError("escalation_trigger_known",
			"unknown escalation trigger %q", esc.Trigger)
	}
	if strings.TrimSpace(esc.Reason) == "" {
		return nil, domain.NewValidationError("escalation_reason_present",
			"escalation reason must not be empty")
	}

	report, err := s.reports.GetReport(ctx, esc.ReportID)
	if err != nil {
		return nil, fmt.Errorf("load report %d: %w", esc.ReportID, err)
	}
	if report.Frozen() {
		return nil, domain.NewValidationError("report_not_duplicate",
			"report %d is a duplicate and cannot be escalated", report.ID)
	}
	if report.Status.Terminal() {
		return nil, domain.NewValidationError("report_active",
			"report %d is %s and cannot be escalated", report.ID, report.Status)
	}

	esc.Status = domain.EscalationEscalated
	if err := s.escalations.CreateEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("create escalation: %w", err)
	}

	s.logger.Info("escalation raised",
		logger.Int64("report_id", report.ID),
		logger.String("level", string(esc.Level)),
		logger.String("trigger", string(esc.Trigger)))
	s.notifyEscalation(ctx, report, esc)
	return esc, nil
}

// ProgressEscalation advances an escalation along its progression chain.
func (s *Service) ProgressEscalation(ctx context.Context, escalationID int64, to domain.EscalationStatus, notes string) (*domain.Escalation, error) {
	esc, err := s.escalations.GetEscalation(ctx, escalationID)
	if err != nil {
		return nil, fmt.Errorf("load escalation %d: %w", escalationID, err)
	}
	if !esc.Status.CanProgressTo(to) {
		return nil, domain.NewValidationError("escalation_progression",
			"escalation cannot move from %s to %s", esc.Status, to)
	}

	esc.Status = to
	if notes != "" {
		esc.Notes = notes
	}
	if to.Resolved() {
		now := time.Now().UTC()
		esc.ResolvedAt = &now
	}
	if err := s.escalations.UpdateEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("update escalation %d: %w", escalationID, err)
	}

	s.logger.Info("escalation progressed",
		logger.Int64("escalation_id", esc.ID),
		logger.Int64("report_id", esc.ReportID),
		logger.String("status", string(to)))
	return esc, nil
}

func (s *Service) notifyEscalation(ctx context.Context, report *domain.Report, esc *domain.Escalation) {
	if s.notifier == nil || esc.AssignedTo == nil {
		return
	}
	intent := domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   *esc.AssignedTo,
		RecipientRole: domain.RoleAdmin,
		Template:      domain.TemplateEscalated,
		ReportID:      report.ID,
		Data: map[string]string{
			"level":   string(esc.Level),
			"trigger": string(esc.Trigger),
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
