package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// severityBump raises a severity one level; critical stays critical.
var severityBump = map[domain.Severity]domain.Severity{
	domain.SeverityLow:      domain.SeverityMedium,
	domain.SeverityMedium:   domain.SeverityHigh,
	domain.SeverityHigh:     domain.SeverityCritical,
	domain.SeverityCritical: domain.SeverityCritical,
}

// SeverityScorer resolves severity through three tiers. Tier 1 matches
// per-level keyword rules, most severe level first. Tier 2 falls back to the
// category's default severity, nudged one level up when urgency phrases are
// present. Tier 3 asks the zero-shot model to pick between short, maximally
// distinctive level descriptions. A post-hoc override table corrects known
// noisy category+severity combinations afterwards.
type SeverityScorer struct {
	zeroShot ZeroShot
	rules    *RuleEngine
	cfg      config.SeverityConfig
	logger   logger.Logger
}

// NewSeverityScorer builds the scorer and its tier-1 rule engine from
// configuration.
func NewSeverityScorer(zs ZeroShot, cfg config.SeverityConfig, log logger.Logger) *SeverityScorer {
	return &SeverityScorer{
		zeroShot: zs,
		rules:    NewRuleEngine(severityRules(cfg.KeywordRules), log),
		cfg:      cfg,
		logger:   log,
	}
}

// severityRules orders the per-level keyword rules most severe first, so the
// engine's declaration-order FirstMatch implements "first level whose
// keyword set matches wins" with critical checked before low.
func severityRules(keywordRules map[string][]string) []KeywordRule {
	rules := make([]KeywordRule, 0, len(domain.Severities))
	for i := len(domain.Severities) - 1; i >= 0; i-- {
		level := string(domain.Severities[i])
		if kws, ok := keywordRules[level]; ok && len(kws) > 0 {
			rules = append(rules, KeywordRule{Label: level, Keywords: kws})
		}
	}
	return rules
}

// UpdateRules hot-reloads the tier-1 keyword rules.
func (s *SeverityScorer) UpdateRules(keywordRules map[string][]string) {
	s.rules.Update(severityRules(keywordRules))
}

// Score resolves the severity for a report text already classified into
// category.
func (s *SeverityScorer) Score(ctx context.Context, text string, category domain.Category) (domain.SeverityResult, error) {
	result, err := s.score(ctx, text, category)
	if err != nil {
		return domain.SeverityResult{}, err
	}

	// Post-hoc category override.
	for _, o := range s.cfg.Overrides {
		if o.Category != string(category) || result.Severity != domain.Severity(o.From) {
			continue
		}
		if to := domain.Severity(o.To); to.Valid() {
			result.Severity = to
			result.Priority = to.Priority()
			result.Overridden = true
		}
		break
	}

	if s.logger != nil {
		s.logger.Debug("severity resolved",
			logger.String("severity", string(result.Severity)),
			logger.String("tier", result.Tier),
			logger.Float64("confidence", result.Confidence),
			logger.Bool("overridden", result.Overridden))
	}
	return result, nil
}

func (s *SeverityScorer) score(ctx context.Context, text string, category domain.Category) (domain.SeverityResult, error) {
	// Tier 1: per-level keyword rules.
	if m, ok := s.rules.FirstMatch(text); ok {
		severity := domain.Severity(m.Label)
		return domain.SeverityResult{
			Severity:   severity,
			Confidence: s.cfg.KeywordConfidence,
			Tier:       domain.SeverityTierKeyword,
			Priority:   severity.Priority(),
		}, nil
	}

	// Tier 2: category default, nudged by urgency phrases.
	if def, ok := s.cfg.CategoryDefaults[string(category)]; ok {
		if severity := domain.Severity(def); severity.Valid() {
			confidence := s.cfg.DefaultConfidence
			if s.urgencyPresent(text) {
				severity = severityBump[severity]
				confidence = s.cfg.NudgedConfidence
			}
			return domain.SeverityResult{
				Severity:   severity,
				Confidence: confidence,
				Tier:       domain.SeverityTierCategoryDefault,
				Priority:   severity.Priority(),
			}, nil
		}
	}

	// Tier 3: zero-shot over the simple level descriptions.
	return s.zeroShotScore(ctx, text)
}

// urgencyPresent reports whether any configured urgency phrase occurs in the
// normalized text.
func (s *SeverityScorer) urgencyPresent(text string) bool {
	normalized := NormalizeText(text)
	for _, phrase := range s.cfg.UrgencyPhrases {
		p := normalizeKeyword(phrase)
		if p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

func (s *SeverityScorer) zeroShotScore(ctx context.Context, text string) (domain.SeverityResult, error) {
	labels := make([]string, 0, len(s.cfg.ZeroShotLabels))
	byDescription := make(map[string]domain.Severity, len(s.cfg.ZeroShotLabels))
	for i := len(domain.Severities) - 1; i >= 0; i-- {
		level := domain.Severities[i]
		desc, ok := s.cfg.ZeroShotLabels[string(level)]
		if !ok {
			continue
		}
		labels = append(labels, desc)
		byDescription[desc] = level
	}
	if len(labels) == 0 {
		return domain.SeverityResult{}, fmt.Errorf("severity scoring: no zero-shot labels configured")
	}

	raw, err := s.zeroShot.Classify(ctx, text, labels)
	if err != nil {
		return domain.SeverityResult{}, fmt.Errorf("zero-shot severity scoring: %w", err)
	}
	if len(raw) == 0 {
		return domain.SeverityResult{}, fmt.Errorf("zero-shot severity scoring: empty score list")
	}

	top := sortedScores(raw)[0]
	severity, ok := byDescription[top.Label]
	if !ok {
		return domain.SeverityResult{}, fmt.Errorf("zero-shot severity scoring: unknown label %q", top.Label)
	}
	return domain.SeverityResult{
		Severity:   severity,
		Confidence: top.Score,
		Tier:       domain.SeverityTierZeroShot,
		Priority:   severity.Priority(),
	}, nil
}
