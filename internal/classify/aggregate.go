package classify

import (
	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
)

// Aggregator combines the three stage confidences into one overall score and
// maps it onto a dispatch action. Both the weights and the band boundaries
// are configuration; Dispatch is a pure function of the overall score and
// the configured thresholds.
type Aggregator struct {
	cfg config.DispatchConfig
}

// NewAggregator builds the aggregator from configuration.
func NewAggregator(cfg config.DispatchConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Overall returns the weighted combination of the stage confidences.
func (a *Aggregator) Overall(category, severity, department float64) float64 {
	return a.cfg.CategoryWeight*category +
		a.cfg.SeverityWeight*severity +
		a.cfg.DepartmentWeight*department
}

// Dispatch maps the overall confidence onto an action and target status.
// Band boundaries are inclusive on the upper band: a score exactly on
// AssignDeptAt assigns the department, exactly on AssignOfficerAt assigns
// the officer, and exactly on ReviewBelow escapes manual review.
func (a *Aggregator) Dispatch(overall float64) (domain.DispatchAction, domain.Status) {
	switch {
	case overall < a.cfg.ReviewBelow:
		return domain.ActionManualReview, domain.StatusPendingClassification
	case overall < a.cfg.AssignDeptAt:
		return domain.ActionClassifyOnly, domain.StatusClassified
	case overall < a.cfg.AssignOfficerAt:
		return domain.ActionAssignDepartment, domain.StatusAssignedToDepartment
	default:
		return domain.ActionAssignOfficer, domain.StatusAssignedToOfficer
	}
}
