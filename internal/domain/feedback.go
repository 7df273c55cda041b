package domain

import "time"

// SatisfactionLevel is the closed 5-point scale a citizen rates a resolution
// on.
type SatisfactionLevel string

const (
	SatisfactionVeryDissatisfied SatisfactionLevel = "very_dissatisfied"
	SatisfactionDissatisfied     SatisfactionLevel = "dissatisfied"
	SatisfactionNeutral          SatisfactionLevel = "neutral"
	SatisfactionSatisfied        SatisfactionLevel = "satisfied"
	SatisfactionVerySatisfied    SatisfactionLevel = "very_satisfied"
)

// SatisfactionLevels lists the scale from worst to best.
var SatisfactionLevels = []SatisfactionLevel{
	SatisfactionVeryDissatisfied,
	SatisfactionDissatisfied,
	SatisfactionNeutral,
	SatisfactionSatisfied,
	SatisfactionVerySatisfied,
}

// Valid reports whether l is a member of the scale.
func (l SatisfactionLevel) Valid() bool {
	for _, known := range SatisfactionLevels {
		if l == known {
			return true
		}
	}
	return false
}

// Satisfied reports whether the level closes the report: satisfied and
// very_satisfied feedback deterministically transitions RESOLVED to CLOSED.
func (l SatisfactionLevel) Satisfied() bool {
	return l == SatisfactionSatisfied || l == SatisfactionVerySatisfied
}

// Rating bounds for feedback.
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is the citizen's assessment of a resolution. At most one feedback
// exists per report, submitted only by the original reporter and only while
// the report is RESOLVED or CLOSED.
type Feedback struct {
	ID       int64 `db:"id"        json:"id"`
	ReportID int64 `db:"report_id" json:"report_id"`
	// SubmittedBy must match the report's ReporterID.
	SubmittedBy       int64             `db:"submitted_by"       json:"submitted_by"`
	Rating            int               `db:"rating"             json:"rating"`
	SatisfactionLevel SatisfactionLevel `db:"satisfaction_level" json:"satisfaction_level"`

	ResolutionTimeAcceptable bool `db:"resolution_time_acceptable" json:"resolution_time_acceptable"`
	WorkQualityAcceptable    bool `db:"work_quality_acceptable"    json:"work_quality_acceptable"`
	StaffBehaviorAcceptable  bool `db:"staff_behavior_acceptable"  json:"staff_behavior_acceptable"`

	RequiresFollowup bool      `db:"requires_followup" json:"requires_followup"`
	Comments         string    `db:"comments"          json:"comments,omitempty"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}
