package api

import (
	"time"

	"github.com/civicgrid/triage/internal/database"
	"github.com/civicgrid/triage/internal/domain"
)

// TransitionRequest asks for a direct status change on a report.
type TransitionRequest struct {
	To domain.Status `json:"to" binding:"required"`
	// ActorID is nil for system-initiated changes.
	ActorID *int64 `json:"actor_id"`
	Notes   string `json:"notes"`
}

// AppealRequest files an appeal against a report's classification, outcome,
// or assignment.
type AppealRequest struct {
	AppealType  domain.AppealType `json:"appeal_type" binding:"required"`
	Reason      string            `json:"reason" binding:"required"`
	Evidence    *string           `json:"evidence"`
	SubmittedBy int64             `json:"submitted_by" binding:"required"`
}

// AppealReviewRequest records an admin decision on an open appeal.
type AppealReviewRequest struct {
	ReviewerID int64               `json:"reviewer_id" binding:"required"`
	Decision   domain.AppealStatus `json:"decision" binding:"required"`
	Notes      string              `json:"notes"`
}

// FeedbackRequest records the reporter's satisfaction with a resolution.
type FeedbackRequest struct {
	SubmittedBy              int64                    `json:"submitted_by" binding:"required"`
	Rating                   int                      `json:"rating" binding:"required"`
	SatisfactionLevel        domain.SatisfactionLevel `json:"satisfaction_level" binding:"required"`
	ResolutionTimeAcceptable bool                     `json:"resolution_time_acceptable"`
	WorkQualityAcceptable    bool                     `json:"work_quality_acceptable"`
	StaffBehaviorAcceptable  bool                     `json:"staff_behavior_acceptable"`
	RequiresFollowup         bool                     `json:"requires_followup"`
	Comments                 string                   `json:"comments"`
}

// EscalationRequest raises an escalation on a report.
type EscalationRequest struct {
	Level      domain.EscalationLevel   `json:"level" binding:"required"`
	Trigger    domain.EscalationTrigger `json:"trigger" binding:"required"`
	Reason     string                   `json:"reason" binding:"required"`
	RaisedBy   *int64                   `json:"raised_by"`
	AssignedTo *int64                   `json:"assigned_to"`
}

// EscalationProgressRequest advances an escalation along its chain.
type EscalationProgressRequest struct {
	To    domain.EscalationStatus `json:"to" binding:"required"`
	Notes string                  `json:"notes"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryResponse wraps a report's status history, oldest first.
type HistoryResponse struct {
	ReportID int64                  `json:"report_id"`
	History  []domain.StatusHistory `json:"history"`
	Total    int                    `json:"total"`
}

// AllowedNextResponse lists the statuses a direct transition request may
// target from the report's current status. Derived-only and frozen states
// list nothing: their exits happen through feedback and appeals, not through
// the transition endpoint.
type AllowedNextResponse struct {
	ReportID    int64           `json:"report_id"`
	Status      domain.Status   `json:"status"`
	Next        []domain.Status `json:"next"`
	DerivedOnly bool            `json:"derived_only"`
	Terminal    bool            `json:"terminal"`
}

// WorkerStatus is one worker's last heartbeat reading.
type WorkerStatus struct {
	WorkerID   string    `json:"worker_id"`
	LastBeat   time.Time `json:"last_beat"`
	AgeSeconds float64   `json:"age_seconds"`
}

// HeartbeatResponse reports worker liveness. Workers whose heartbeat key has
// expired do not appear; an empty list means no worker is beating.
type HeartbeatResponse struct {
	Workers []WorkerStatus `json:"workers"`
	Alive   int            `json:"alive"`
}

// QueueResponse reports processing stream depth and dead-letter state.
type QueueResponse struct {
	QueueDepth      int64                  `json:"queue_depth"`
	DeadLetterDepth int64                  `json:"dead_letter_depth"`
	DLQ             *domain.DLQStats       `json:"dlq"`
	ErrorCounts     []domain.DLQErrorCount `json:"error_counts"`
}

// AccuracyResponse reports rolling per-category classification confidence
// over the requested window.
type AccuracyResponse struct {
	WindowHours int                         `json:"window_hours"`
	Categories  []database.CategoryAccuracy `json:"categories"`
}
