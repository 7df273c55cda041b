package domain

import "time"

// StatusHistory is one row of the append-only transition log. Exactly one row
// is written per successful transition; rows are never mutated or deleted.
type StatusHistory struct {
	ID             int64  `db:"id"              json:"id"`
	ReportID       int64  `db:"report_id"       json:"report_id"`
	PreviousStatus Status `db:"previous_status" json:"previous_status"`
	NewStatus      Status `db:"new_status"      json:"new_status"`
	// ChangedBy references the acting user; nil means the change was made by
	// the system or the classification pipeline.
	ChangedBy *int64    `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
	Notes     string    `db:"notes"      json:"notes,omitempty"`
}
