package classify_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/civicgrid/triage/internal/classify"
	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
)

// unexpectedZeroShot errors on any call; tiers 1 and 2 must resolve without
// the model.
func unexpectedZeroShot() zeroShotFunc {
	return func(context.Context, string, []string) ([]domain.LabelScore, error) {
		return nil, errors.New("unexpected zero-shot call")
	}
}

func TestSeverityScorer_KeywordTiers(t *testing.T) {
	cfg := config.Default().Pipeline.Severity

	testCases := []struct {
		name       string
		text       string
		category   domain.Category
		expected   domain.Severity
		tier       string
		confidence float64
	}{
		{
			name:       "critical keyword outranks lower tiers",
			text:       "Transformer caught fire, wires broken everywhere",
			category:   domain.CategoryElectricity,
			expected:   domain.SeverityCritical,
			tier:       domain.SeverityTierKeyword,
			confidence: cfg.KeywordConfidence,
		},
		{
			name:       "high keyword wins over medium",
			text:       "Sewage overflow has damaged the lane",
			category:   domain.CategoryDrainage,
			expected:   domain.SeverityHigh,
			tier:       domain.SeverityTierKeyword,
			confidence: cfg.KeywordConfidence,
		},
		{
			name:       "medium keyword",
			text:       "The bench slats are cracked",
			category:   domain.CategoryRoads,
			expected:   domain.SeverityMedium,
			tier:       domain.SeverityTierKeyword,
			confidence: cfg.KeywordConfidence,
		},
		{
			name:       "category default when no keyword matches",
			text:       "Tap water has an unusual taste in our locality",
			category:   domain.CategoryWaterSupply,
			expected:   domain.SeverityHigh,
			tier:       domain.SeverityTierCategoryDefault,
			confidence: cfg.DefaultConfidence,
		},
		{
			name:       "urgency phrase nudges the default up",
			text:       "Streetlight out on our lane, please attend urgently",
			category:   domain.CategoryStreetlight,
			expected:   domain.SeverityHigh,
			tier:       domain.SeverityTierCategoryDefault,
			confidence: cfg.NudgedConfidence,
		},
		{
			name:       "nudge caps at critical",
			text:       "No current since morning, entire area affected",
			category:   domain.CategoryElectricity,
			expected:   domain.SeverityCritical,
			tier:       domain.SeverityTierCategoryDefault,
			confidence: cfg.NudgedConfidence,
		},
	}

	scorer := classify.NewSeverityScorer(unexpectedZeroShot(), cfg, nil)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := scorer.Score(context.Background(), tc.text, tc.category)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Severity != tc.expected {
				t.Errorf("expected severity %q, got %q", tc.expected, result.Severity)
			}
			if result.Tier != tc.tier {
				t.Errorf("expected tier %q, got %q", tc.tier, result.Tier)
			}
			if math.Abs(result.Confidence-tc.confidence) > 1e-9 {
				t.Errorf("expected confidence %f, got %f", tc.confidence, result.Confidence)
			}
			if result.Priority != result.Severity.Priority() {
				t.Errorf("priority %d does not match severity %q", result.Priority, result.Severity)
			}
		})
	}
}

func TestSeverityScorer_PostHocOverride(t *testing.T) {
	cfg := config.Default().Pipeline.Severity
	scorer := classify.NewSeverityScorer(unexpectedZeroShot(), cfg, nil)

	// "broken" resolves medium by keyword, then the public_property override
	// downgrades it: cosmetic park issues are rarely urgent.
	result, err := scorer.Score(context.Background(), "Park bench has a broken plank", domain.CategoryPublicProperty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Severity != domain.SeverityLow {
		t.Errorf("expected severity low after override, got %q", result.Severity)
	}
	if !result.Overridden {
		t.Errorf("expected the override marker to be set")
	}
	if result.Priority != domain.SeverityLow.Priority() {
		t.Errorf("expected priority %d, got %d", domain.SeverityLow.Priority(), result.Priority)
	}
	if result.Tier != domain.SeverityTierKeyword {
		t.Errorf("expected tier to record the original decision path, got %q", result.Tier)
	}
}

func TestSeverityScorer_OverrideLeavesOtherCategoriesAlone(t *testing.T) {
	cfg := config.Default().Pipeline.Severity
	scorer := classify.NewSeverityScorer(unexpectedZeroShot(), cfg, nil)

	result, err := scorer.Score(context.Background(), "The signboard is broken", domain.CategoryRoads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Severity != domain.SeverityMedium {
		t.Errorf("expected severity medium, got %q", result.Severity)
	}
	if result.Overridden {
		t.Errorf("override must only fire for its configured category")
	}
}

func TestSeverityScorer_ZeroShotFallback(t *testing.T) {
	base := config.Default().Pipeline.Severity
	cfg := config.SeverityConfig{
		KeywordRules:      map[string][]string{},
		CategoryDefaults:  map[string]string{},
		ZeroShotLabels:    base.ZeroShotLabels,
		KeywordConfidence: base.KeywordConfidence,
		DefaultConfidence: base.DefaultConfidence,
		NudgedConfidence:  base.NudgedConfidence,
	}

	highLabel := base.ZeroShotLabels[string(domain.SeverityHigh)]
	lowLabel := base.ZeroShotLabels[string(domain.SeverityLow)]

	zs := fixedScores(
		domain.LabelScore{Label: highLabel, Score: 0.72},
		domain.LabelScore{Label: lowLabel, Score: 0.11},
	)
	scorer := classify.NewSeverityScorer(zs, cfg, nil)

	result, err := scorer.Score(context.Background(), "Water main trouble on Fifth Street", domain.CategoryWaterSupply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Severity != domain.SeverityHigh {
		t.Errorf("expected severity high, got %q", result.Severity)
	}
	if result.Tier != domain.SeverityTierZeroShot {
		t.Errorf("expected tier %q, got %q", domain.SeverityTierZeroShot, result.Tier)
	}
	if math.Abs(result.Confidence-0.72) > 1e-9 {
		t.Errorf("expected model confidence 0.72, got %f", result.Confidence)
	}
}

func TestSeverityScorer_ZeroShotErrorPropagates(t *testing.T) {
	cfg := config.SeverityConfig{
		KeywordRules:     map[string][]string{},
		CategoryDefaults: map[string]string{},
		ZeroShotLabels:   config.Default().Pipeline.Severity.ZeroShotLabels,
	}

	wantErr := errors.New("sidecar unreachable")
	zs := zeroShotFunc(func(context.Context, string, []string) ([]domain.LabelScore, error) {
		return nil, wantErr
	})
	scorer := classify.NewSeverityScorer(zs, cfg, nil)

	if _, err := scorer.Score(context.Background(), "anything", domain.CategoryRoads); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped sidecar error, got %v", err)
	}
}
