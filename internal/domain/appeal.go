package domain

import "time"

// AppealType is the closed set of appeal variants, namespaced by the actor
// raising them.
type AppealType string

const (
	// Citizen appeals.
	AppealCitizenClassification AppealType = "citizen_classification"
	AppealCitizenResolution     AppealType = "citizen_resolution"
	AppealCitizenRejection      AppealType = "citizen_rejection"
	// Officer appeals.
	AppealOfficerAssignment AppealType = "officer_assignment"
	// Admin appeals.
	AppealAdminReassignment AppealType = "admin_reassignment"
)

// AppealTypes lists every appeal variant.
var AppealTypes = []AppealType{
	AppealCitizenClassification,
	AppealCitizenResolution,
	AppealCitizenRejection,
	AppealOfficerAssignment,
	AppealAdminReassignment,
}

// Valid reports whether t is a member of the closed appeal type set.
func (t AppealType) Valid() bool {
	for _, known := range AppealTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ChallengesOutcome reports whether an approved appeal of this type reopens
// the report. Only appeals against the resolution or the rejection do;
// classification and assignment appeals are corrected in place.
func (t AppealType) ChallengesOutcome() bool {
	return t == AppealCitizenResolution || t == AppealCitizenRejection
}

// AppealStatus is the closed set of appeal review states.
type AppealStatus string

const (
	AppealSubmitted   AppealStatus = "submitted"
	AppealUnderReview AppealStatus = "under_review"
	AppealApproved    AppealStatus = "approved"
	AppealRejected    AppealStatus = "rejected"
	AppealWithdrawn   AppealStatus = "withdrawn"
)

// Resolved reports whether the appeal has reached a final decision.
func (s AppealStatus) Resolved() bool {
	return s == AppealApproved || s == AppealRejected || s == AppealWithdrawn
}

// Appeal is a challenge raised against a report's classification, resolution,
// rejection, or assignment. Appeals are reviewed by an admin; approving an
// outcome-challenging appeal drives the report to REOPENED.
type Appeal struct {
	ID         int64        `db:"id"          json:"id"`
	ReportID   int64        `db:"report_id"   json:"report_id"`
	AppealType AppealType   `db:"appeal_type" json:"appeal_type"`
	Status     AppealStatus `db:"status"      json:"status"`
	Reason     string       `db:"reason"      json:"reason"`
	// Evidence is an optional reference to supporting material held by the
	// external media store.
	Evidence    *string    `db:"evidence"     json:"evidence,omitempty"`
	SubmittedBy int64      `db:"submitted_by" json:"submitted_by"`
	ReviewedBy  *int64     `db:"reviewed_by"  json:"reviewed_by,omitempty"`
	ReviewNotes string     `db:"review_notes" json:"review_notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
	ResolvedAt  *time.Time `db:"resolved_at"  json:"resolved_at,omitempty"`
}
