package domain

import "time"

// Classification method constants. The method records which path produced the
// category decision.
const (
	MethodKeywordOverride = "keyword_override"
	MethodKeywordBoost    = "keyword_boost"
	MethodZeroShotOnly    = "zero_shot_only"
)

// Severity tier constants. The tier records which decision tier produced the
// severity.
const (
	SeverityTierKeyword         = "keyword_rule"
	SeverityTierCategoryDefault = "category_default"
	SeverityTierZeroShot        = "zero_shot_fallback"
)

// ReviewReasonAmbiguous marks a report forced into CategoryOther because the
// top two zero-shot scores were too close to call.
const ReviewReasonAmbiguous = "ambiguous_classification"

// ReviewReasonLowConfidence marks a report whose aggregated confidence fell
// below the manual-review band.
const ReviewReasonLowConfidence = "low_overall_confidence"

// DispatchAction is the outcome the dispatcher chooses from the aggregated
// confidence.
type DispatchAction string

const (
	// ActionDuplicate short-circuits the pipeline: the report is flagged and
	// frozen at RECEIVED.
	ActionDuplicate DispatchAction = "duplicate"
	// ActionManualReview rejects the AI output and queues the report for a
	// human classifier.
	ActionManualReview DispatchAction = "manual_review"
	// ActionClassifyOnly records category and severity but assigns no
	// department.
	ActionClassifyOnly DispatchAction = "classify_only"
	// ActionAssignDepartment records the classification and routes the report
	// to the responsible department.
	ActionAssignDepartment DispatchAction = "assign_department"
	// ActionAssignOfficer additionally requests officer assignment from the
	// external workload balancer.
	ActionAssignOfficer DispatchAction = "assign_officer"
)

// LabelScore pairs a candidate label with its raw model score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// DuplicateMatch is the duplicate detector's verdict for a report.
type DuplicateMatch struct {
	IsDuplicate         bool    `json:"is_duplicate"`
	DuplicateOfReportID *int64  `json:"duplicate_of_report_id,omitempty"`
	Similarity          float64 `json:"similarity"`
	DistanceMeters      float64 `json:"distance_meters"`
}

// CategoryResult holds the category stage output.
type CategoryResult struct {
	Category       Category `json:"category"`
	Confidence     float64  `json:"confidence"`
	Method         string   `json:"method"`
	KeywordMatches int      `json:"keyword_matches"`
	// Candidates records the top zero-shot labels when the ambiguity guard
	// fires, for manual review.
	Candidates   []LabelScore `json:"candidates,omitempty"`
	ReviewReason string       `json:"review_reason,omitempty"`
}

// SeverityResult holds the severity stage output.
type SeverityResult struct {
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Tier       string   `json:"tier"`
	Priority   int      `json:"priority"`
	// Overridden is set when a post-hoc category override corrected the
	// keyword decision.
	Overridden bool `json:"overridden,omitempty"`
}

// RoutingResult holds the department routing stage output.
type RoutingResult struct {
	Department Department `json:"department"`
	Confidence float64    `json:"confidence"`
	// KeywordDisambiguated is set when a secondary keyword match moved the
	// report off the category's default department.
	KeywordDisambiguated bool `json:"keyword_disambiguated,omitempty"`
}

// ClassificationResult is the transient output of the full pipeline for one
// report. It is folded into the Report row on commit, not persisted as its
// own entity.
type ClassificationResult struct {
	ReportID int64 `json:"report_id"`

	Duplicate DuplicateMatch `json:"duplicate"`

	Category CategoryResult `json:"category"`
	Severity SeverityResult `json:"severity"`
	Routing  RoutingResult  `json:"routing"`

	// OverallConfidence is the weighted combination of the three stage
	// confidences (category 50%, severity 30%, department 20% by default).
	OverallConfidence float64        `json:"overall_confidence"`
	Action            DispatchAction `json:"action"`
	// TargetStatus is the lifecycle status the dispatcher selected.
	TargetStatus Status `json:"target_status"`
	NeedsReview  bool   `json:"needs_review"`
	ReviewReason string `json:"review_reason,omitempty"`

	ModelVersion     string    `json:"model_version"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ClassifiedAt     time.Time `json:"classified_at"`
}
