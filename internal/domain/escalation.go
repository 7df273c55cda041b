package domain

import "time"

// EscalationLevel is the closed three-tier escalation ladder.
type EscalationLevel string

const (
	EscalationL1 EscalationLevel = "l1"
	EscalationL2 EscalationLevel = "l2"
	EscalationL3 EscalationLevel = "l3"
)

// EscalationLevels lists the ladder from lowest to highest.
var EscalationLevels = []EscalationLevel{EscalationL1, EscalationL2, EscalationL3}

// Valid reports whether l is a member of the ladder.
func (l EscalationLevel) Valid() bool {
	return l == EscalationL1 || l == EscalationL2 || l == EscalationL3
}

// Next returns the level above l, or l itself at the top of the ladder.
func (l EscalationLevel) Next() EscalationLevel {
	switch l {
	case EscalationL1:
		return EscalationL2
	case EscalationL2:
		return EscalationL3
	default:
		return l
	}
}

// EscalationStatus is the closed set of escalation progress states.
type EscalationStatus string

const (
	EscalationEscalated    EscalationStatus = "escalated"
	EscalationAcknowledged EscalationStatus = "acknowledged"
	EscalationUnderReview  EscalationStatus = "under_review"
	EscalationActionTaken  EscalationStatus = "action_taken"
	EscalationResolved     EscalationStatus = "resolved"
	EscalationDeEscalated  EscalationStatus = "de_escalated"
)

// Resolved reports whether the escalation is settled.
func (s EscalationStatus) Resolved() bool {
	return s == EscalationResolved || s == EscalationDeEscalated
}

// EscalationTrigger names what raised the escalation.
type EscalationTrigger string

const (
	TriggerSLABreach      EscalationTrigger = "sla_breach"
	TriggerQualityDispute EscalationTrigger = "quality_dispute"
	TriggerManual         EscalationTrigger = "manual"
)

// Escalation flags a report for higher-level attention when an SLA is
// breached or quality is disputed. Escalations are advisory and audit
// entities: they never change the report's lifecycle status themselves.
type Escalation struct {
	ID       int64             `db:"id"        json:"id"`
	ReportID int64             `db:"report_id" json:"report_id"`
	Level    EscalationLevel   `db:"level"     json:"level"`
	Trigger  EscalationTrigger `db:"trigger"   json:"trigger"`
	Reason   string            `db:"reason"    json:"reason"`
	Status   EscalationStatus  `db:"status"    json:"status"`
	// RaisedBy is nil when the escalation was raised automatically.
	RaisedBy   *int64     `db:"raised_by"   json:"raised_by,omitempty"`
	AssignedTo *int64     `db:"assigned_to" json:"assigned_to,omitempty"`
	Notes      string     `db:"notes"       json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"  json:"updated_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// escalationStatusNext defines the legal forward progression of an
// escalation. Both resolved and de_escalated terminate the chain.
var escalationStatusNext = map[EscalationStatus][]EscalationStatus{
	EscalationEscalated:    {EscalationAcknowledged, EscalationDeEscalated},
	EscalationAcknowledged: {EscalationUnderReview, EscalationDeEscalated},
	EscalationUnderReview:  {EscalationActionTaken, EscalationDeEscalated},
	EscalationActionTaken:  {EscalationResolved, EscalationDeEscalated},
	EscalationResolved:     {},
	EscalationDeEscalated:  {},
}

// CanProgressTo reports whether an escalation may move from its current
// status to next.
func (s EscalationStatus) CanProgressTo(next EscalationStatus) bool {
	for _, allowed := range escalationStatusNext[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
