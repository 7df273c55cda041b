// Package domain contains the core domain models for the triage service.
package domain

import "time"

// Category is the closed set of issue categories a report can be classified
// into. The "other" member is the explicit no-confident-match sink.
type Category string

const (
	CategoryRoads          Category = "roads"
	CategoryWaterSupply    Category = "water_supply"
	CategoryElectricity    Category = "electricity"
	CategoryDrainage       Category = "drainage"
	CategoryStreetlight    Category = "streetlight"
	CategoryWaste          Category = "waste_management"
	CategoryPublicProperty Category = "public_property"
	CategoryOther          Category = "other"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryRoads,
	CategoryWaterSupply,
	CategoryElectricity,
	CategoryDrainage,
	CategoryStreetlight,
	CategoryWaste,
	CategoryPublicProperty,
	CategoryOther,
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity is the closed, ordered set of urgency levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most urgent.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// severityRank orders severities for comparison and priority mapping.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether s is a member of the closed severity set.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Priority returns the sort priority for the severity. Higher means more
// urgent; unknown severities sort last.
func (s Severity) Priority() int {
	return severityRank[s]
}

// AtLeast reports whether s is as urgent as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Department is the closed roster of municipal departments a report can be
// routed to. DepartmentManualReview is the sink for reports classified as
// CategoryOther.
type Department string

const (
	DepartmentPublicWorks    Department = "public_works"
	DepartmentWaterAuthority Department = "water_authority"
	DepartmentPowerUtility   Department = "power_utility"
	DepartmentStreetLighting Department = "street_lighting"
	DepartmentSanitation     Department = "sanitation"
	DepartmentParks          Department = "parks_recreation"
	DepartmentManualReview   Department = "manual_review"
)

// Departments lists the full roster in a stable order, manual-review sink last.
var Departments = []Department{
	DepartmentPublicWorks,
	DepartmentWaterAuthority,
	DepartmentPowerUtility,
	DepartmentStreetLighting,
	DepartmentSanitation,
	DepartmentParks,
	DepartmentManualReview,
}

// departmentIDs assigns each department a stable row id matching the seeded
// departments table.
var departmentIDs = map[Department]int64{
	DepartmentPublicWorks:    1,
	DepartmentWaterAuthority: 2,
	DepartmentPowerUtility:   3,
	DepartmentStreetLighting: 4,
	DepartmentSanitation:     5,
	DepartmentParks:          6,
	DepartmentManualReview:   7,
}

// Valid reports whether d is a member of the roster.
func (d Department) Valid() bool {
	_, ok := departmentIDs[d]
	return ok
}

// ID returns the stable row id for the department, or 0 if unknown.
func (d Department) ID() int64 {
	return departmentIDs[d]
}

// DepartmentFromID resolves a row id back to the roster member.
func DepartmentFromID(id int64) (Department, bool) {
	for dept, deptID := range departmentIDs {
		if deptID == id {
			return dept, true
		}
	}
	return "", false
}

// Status is the closed set of lifecycle states a report moves through.
type Status string

const (
	StatusReceived              Status = "received"
	StatusPendingClassification Status = "pending_classification"
	StatusClassified            Status = "classified"
	StatusAssignedToDepartment  Status = "assigned_to_department"
	StatusAssignedToOfficer     Status = "assigned_to_officer"
	StatusAcknowledged          Status = "acknowledged"
	StatusInProgress            Status = "in_progress"
	StatusOnHold                Status = "on_hold"
	StatusPendingVerification   Status = "pending_verification"
	StatusResolved              Status = "resolved"
	StatusClosed                Status = "closed"
	StatusRejected              Status = "rejected"
	StatusReopened              Status = "reopened"
)

// Statuses lists every lifecycle state.
var Statuses = []Status{
	StatusReceived,
	StatusPendingClassification,
	StatusClassified,
	StatusAssignedToDepartment,
	StatusAssignedToOfficer,
	StatusAcknowledged,
	StatusInProgress,
	StatusOnHold,
	StatusPendingVerification,
	StatusResolved,
	StatusClosed,
	StatusRejected,
	StatusReopened,
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions may leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// Report is the central entity: a citizen-submitted civic complaint carried
// from intake through classification and the resolution lifecycle.
type Report struct {
	ID          int64  `db:"id"          json:"id"`
	Title       string `db:"title"       json:"title"`
	Description string `db:"description" json:"description"`

	// Geolocation is immutable after submission.
	Latitude  float64 `db:"latitude"  json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
	Address   string  `db:"address"   json:"address"`

	// ReporterID references the citizen who filed the report.
	ReporterID int64 `db:"reporter_id" json:"reporter_id"`

	// Citizen-declared classification, optional.
	CitizenCategory *Category `db:"citizen_category" json:"citizen_category,omitempty"`
	CitizenSeverity *Severity `db:"citizen_severity" json:"citizen_severity,omitempty"`

	// Pipeline-derived classification.
	AICategory   *Category  `db:"ai_category"     json:"ai_category,omitempty"`
	AISeverity   *Severity  `db:"ai_severity"     json:"ai_severity,omitempty"`
	AIConfidence *float64   `db:"ai_confidence"   json:"ai_confidence,omitempty"`
	ModelVersion *string    `db:"model_version"   json:"model_version,omitempty"`
	ProcessedAt  *time.Time `db:"ai_processed_at" json:"ai_processed_at,omitempty"`

	Status Status `db:"status" json:"status"`

	// Duplicate link: a weak back-reference, never an ownership edge.
	// A duplicate report is flagged and linked, not deleted.
	IsDuplicate         bool   `db:"is_duplicate"           json:"is_duplicate"`
	DuplicateOfReportID *int64 `db:"duplicate_of_report_id" json:"duplicate_of_report_id,omitempty"`

	NeedsReview  bool    `db:"needs_review"  json:"needs_review"`
	ReviewReason *string `db:"review_reason" json:"review_reason,omitempty"`

	DepartmentID *int64 `db:"department_id" json:"department_id,omitempty"`
	OfficerID    *int64 `db:"officer_id"    json:"officer_id,omitempty"`

	// Version guards human-triggered transitions with optimistic concurrency.
	Version int64 `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the report is still an active duplicate-detection
// candidate: not resolved, closed, rejected, and not itself a duplicate.
func (r *Report) Open() bool {
	if r.IsDuplicate {
		return false
	}
	switch r.Status {
	case StatusResolved, StatusClosed, StatusRejected:
		return false
	default:
		return true
	}
}

// Frozen reports whether the report's lifecycle is frozen. Duplicates never
// transition past RECEIVED.
func (r *Report) Frozen() bool {
	return r.IsDuplicate
}

// Text returns the free text used for classification, with the title
// duplicated ahead of the description: titles carry the highest-signal
// keywords and duplication weights them accordingly.
func (r *Report) Text() string {
	return r.Title + ". " + r.Title + ". " + r.Description
}
