package domain

import "time"

// RecipientRole identifies who a notification intent targets.
type RecipientRole string

const (
	RoleCitizen RecipientRole = "citizen"
	RoleOfficer RecipientRole = "officer"
	RoleAdmin   RecipientRole = "admin"
)

// Notification template names. Delivery, channel selection, and per-user
// preference enforcement are external; the triage service only produces
// intents.
const (
	TemplateDuplicateNotice = "duplicate_notice"
	TemplateClassified      = "report_classified"
	TemplateAssigned        = "report_assigned"
	TemplateStatusChanged   = "status_changed"
	TemplateAppealDecision  = "appeal_decision"
	TemplateFeedbackReceipt = "feedback_receipt"
	TemplateReopened        = "report_reopened"
	TemplateClosed          = "report_closed"
	TemplateEscalated       = "report_escalated"
)

// NotificationIntent is a request for the external notification service to
// deliver a message. The intent carries everything delivery needs; it never
// carries channel or preference decisions.
type NotificationIntent struct {
	ID            string            `json:"id"`
	RecipientID   int64             `json:"recipient_id"`
	RecipientRole RecipientRole     `json:"recipient_role"`
	Template      string            `json:"template"`
	ReportID      int64             `json:"report_id"`
	Data          map[string]string `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
