package classify

import (
	"strings"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// DepartmentRouter deterministically maps a resolved category to a
// department. A secondary keyword pass only disambiguates categories that
// legitimately span two departments, such as drainage splitting between
// public works and sanitation on sewage keywords.
type DepartmentRouter struct {
	cfg    config.RoutingConfig
	logger logger.Logger
}

// NewDepartmentRouter builds the router from configuration.
func NewDepartmentRouter(cfg config.RoutingConfig, log logger.Logger) *DepartmentRouter {
	return &DepartmentRouter{cfg: cfg, logger: log}
}

// Route resolves the department for a classified report. The sink category
// and any unmapped or misconfigured category land in manual review with low
// confidence rather than a guessed department.
func (r *DepartmentRouter) Route(category domain.Category, text string) domain.RoutingResult {
	if category == domain.CategoryOther {
		return domain.RoutingResult{
			Department: domain.DepartmentManualReview,
			Confidence: r.cfg.ManualReviewConfidence,
		}
	}

	name, ok := r.cfg.CategoryDepartments[string(category)]
	department := domain.Department(name)
	if !ok || !department.Valid() {
		if r.logger != nil {
			r.logger.Warn("no department mapping for category, routing to manual review",
				logger.String("category", string(category)),
				logger.String("mapped", name))
		}
		return domain.RoutingResult{
			Department: domain.DepartmentManualReview,
			Confidence: r.cfg.ManualReviewConfidence,
		}
	}

	if override, ok := r.disambiguate(category, text); ok {
		return domain.RoutingResult{
			Department:           override,
			Confidence:           r.cfg.DisambiguatedConfidence,
			KeywordDisambiguated: true,
		}
	}

	return domain.RoutingResult{
		Department: department,
		Confidence: r.cfg.RoutedConfidence,
	}
}

// disambiguate checks the secondary keyword rules for the category. The
// first rule with a keyword hit wins.
func (r *DepartmentRouter) disambiguate(category domain.Category, text string) (domain.Department, bool) {
	normalized := NormalizeText(text)
	for _, rule := range r.cfg.Disambiguation {
		if rule.Category != string(category) {
			continue
		}
		department := domain.Department(rule.Department)
		if !department.Valid() {
			continue
		}
		for _, kw := range rule.Keywords {
			k := normalizeKeyword(kw)
			if k != "" && strings.Contains(normalized, k) {
				return department, true
			}
		}
	}
	return "", false
}
