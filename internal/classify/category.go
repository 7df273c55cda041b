package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// ZeroShot scores a text against candidate labels. Scores are not required
// to be sorted or normalized; callers sort defensively.
type ZeroShot interface {
	Classify(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error)
}

// CategoryClassifier resolves a report's category from a zero-shot model
// biased by per-category keyword evidence. Decision paths in priority order:
// keyword override, keyword boost, ambiguity guard, raw zero-shot.
type CategoryClassifier struct {
	zeroShot ZeroShot
	rules    *RuleEngine
	cfg      config.CategoryConfig
	labels   []string
	logger   logger.Logger
}

// NewCategoryClassifier builds the classifier and its keyword rule engine
// from configuration. The sink category carries no keywords and is never a
// zero-shot candidate; it is only ever forced by the ambiguity guard.
func NewCategoryClassifier(zs ZeroShot, cfg config.CategoryConfig, log logger.Logger) *CategoryClassifier {
	labels := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		if c == domain.CategoryOther {
			continue
		}
		labels = append(labels, string(c))
	}

	return &CategoryClassifier{
		zeroShot: zs,
		rules:    NewRuleEngine(RulesFromKeywords(cfg.Keywords), log),
		cfg:      cfg,
		labels:   labels,
		logger:   log,
	}
}

// UpdateKeywords hot-reloads the category keyword lists.
func (c *CategoryClassifier) UpdateKeywords(keywords map[string][]string) {
	c.rules.Update(RulesFromKeywords(keywords))
}

// Classify resolves the category for an already text-constructed report.
func (c *CategoryClassifier) Classify(ctx context.Context, text string) (domain.CategoryResult, error) {
	raw, err := c.zeroShot.Classify(ctx, text, c.labels)
	if err != nil {
		return domain.CategoryResult{}, fmt.Errorf("zero-shot category classification: %w", err)
	}
	if len(raw) == 0 {
		return domain.CategoryResult{}, fmt.Errorf("zero-shot category classification: empty score list")
	}

	scores := sortedScores(raw)
	matches := c.rules.MatchesByLabel(text)
	top := scores[0]
	if !domain.Category(top.Label).Valid() {
		return domain.CategoryResult{}, fmt.Errorf("zero-shot category classification: unknown label %q", top.Label)
	}

	// Keyword override: strong keyword evidence for a close runner-up beats
	// the model's top pick.
	if override, ok := c.findOverride(scores, matches); ok {
		m := matches[override.Label]
		result := domain.CategoryResult{
			Category:       domain.Category(override.Label),
			Confidence:     c.boosted(override.Score, m.UniqueMatches),
			Method:         domain.MethodKeywordOverride,
			KeywordMatches: m.UniqueMatches,
		}
		c.logDecision(result, top)
		return result, nil
	}

	// Keyword boost: the model's own pick gains bounded confidence from
	// corroborating keywords.
	if m, ok := matches[top.Label]; ok && m.UniqueMatches >= 1 {
		result := domain.CategoryResult{
			Category:       domain.Category(top.Label),
			Confidence:     c.boosted(top.Score, m.UniqueMatches),
			Method:         domain.MethodKeywordBoost,
			KeywordMatches: m.UniqueMatches,
		}
		c.logDecision(result, top)
		return result, nil
	}

	// Ambiguity guard: without keyword support, a near-tie between the top
	// two labels is not a decision.
	if len(scores) > 1 && top.Score-scores[1].Score < c.cfg.AmbiguityMargin {
		result := domain.CategoryResult{
			Category:     domain.CategoryOther,
			Confidence:   top.Score,
			Method:       domain.MethodZeroShotOnly,
			Candidates:   topN(scores, c.cfg.TopNCandidates),
			ReviewReason: domain.ReviewReasonAmbiguous,
		}
		c.logDecision(result, top)
		return result, nil
	}

	result := domain.CategoryResult{
		Category:   domain.Category(top.Label),
		Confidence: top.Score,
		Method:     domain.MethodZeroShotOnly,
	}
	c.logDecision(result, top)
	return result, nil
}

// findOverride looks for a non-top category with enough keyword matches and
// a zero-shot score within the override margin of the top score. The
// strongest keyword evidence wins; ties break by higher score, then label.
func (c *CategoryClassifier) findOverride(scores []domain.LabelScore, matches map[string]RuleMatch) (domain.LabelScore, bool) {
	top := scores[0]
	var best domain.LabelScore
	bestMatches := 0

	for _, candidate := range scores[1:] {
		if !domain.Category(candidate.Label).Valid() {
			continue
		}
		m, ok := matches[candidate.Label]
		if !ok || m.UniqueMatches < c.cfg.OverrideMinMatches {
			continue
		}
		if top.Score-candidate.Score > c.cfg.OverrideScoreMargin {
			continue
		}
		if m.UniqueMatches > bestMatches ||
			(m.UniqueMatches == bestMatches && candidate.Score > best.Score) {
			best = candidate
			bestMatches = m.UniqueMatches
		}
	}

	return best, bestMatches > 0
}

// boosted adds the per-match confidence boost, bounded by the cap and the
// global ceiling.
func (c *CategoryClassifier) boosted(base float64, uniqueMatches int) float64 {
	boost := c.cfg.BoostPerMatch * float64(uniqueMatches)
	if boost > c.cfg.BoostCap {
		boost = c.cfg.BoostCap
	}
	score := base + boost
	if score > c.cfg.ConfidenceCeiling {
		score = c.cfg.ConfidenceCeiling
	}
	return score
}

func (c *CategoryClassifier) logDecision(result domain.CategoryResult, top domain.LabelScore) {
	if c.logger == nil {
		return
	}
	c.logger.Debug("category resolved",
		logger.String("category", string(result.Category)),
		logger.String("method", result.Method),
		logger.Float64("confidence", result.Confidence),
		logger.String("zero_shot_top", top.Label),
		logger.Float64("zero_shot_score", top.Score),
		logger.Int("keyword_matches", result.KeywordMatches))
}

// sortedScores returns a copy sorted by score descending, label ascending on
// ties, so decisions are deterministic regardless of model output order.
func sortedScores(raw []domain.LabelScore) []domain.LabelScore {
	scores := make([]domain.LabelScore, len(raw))
	copy(scores, raw)
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
	return scores
}

func topN(scores []domain.LabelScore, n int) []domain.LabelScore {
	if n <= 0 || n > len(scores) {
		n = len(scores)
	}
	out := make([]domain.LabelScore, n)
	copy(out, scores[:n])
	return out
}
