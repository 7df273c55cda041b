package classify_test

import (
	"reflect"
	"testing"

	"github.com/civicgrid/triage/internal/classify"
)

func TestRuleEngine_Match_KeywordsMatchContent(t *testing.T) {
	rules := []classify.KeywordRule{
		{
			Label:    "roads",
			Keywords: []string{"pothole", "road", "pavement"},
			Priority: 10,
		},
		{
			Label:    "waste_management",
			Keywords: []string{"garbage", "trash", "litter"},
			Priority: 5,
		},
	}

	engine := classify.NewRuleEngine(rules, nil)

	testCases := []struct {
		name           string
		text           string
		expectedLabels []string // Expected labels in order
	}{
		{
			name:           "road keywords match",
			text:           "A deep pothole is damaging the road pavement.",
			expectedLabels: []string{"roads"},
		},
		{
			name:           "waste keywords match",
			text:           "Garbage and litter pile up at the corner.",
			expectedLabels: []string{"waste_management"},
		},
		{
			name:           "multiple rules match sorted by priority",
			text:           "Trash dumped into the pothole on the road.",
			expectedLabels: []string{"roads", "waste_management"},
		},
		{
			name:           "no match",
			text:           "The weather is sunny with clear skies.",
			expectedLabels: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matches := engine.Match(tc.text)

			if len(matches) != len(tc.expectedLabels) {
				t.Errorf("expected %d matches, got %d", len(tc.expectedLabels), len(matches))
				return
			}

			for i, expected := range tc.expectedLabels {
				if matches[i].Label != expected {
					t.Errorf("match %d: expected label %q, got %q", i, expected, matches[i].Label)
				}
			}
		})
	}
}

func TestRuleEngine_MatchScoring(t *testing.T) {
	rules := []classify.KeywordRule{
		{
			Label:    "water_supply",
			Keywords: []string{"water", "pipeline", "leak", "supply", "tap"},
		},
	}

	engine := classify.NewRuleEngine(rules, nil)

	matches := engine.Match("Water pipeline leak near the tap, water supply cut.")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	match := matches[0]

	if match.UniqueMatches != 5 {
		t.Errorf("expected 5 unique matches, got %d", match.UniqueMatches)
	}

	if match.Coverage != 1.0 {
		t.Errorf("expected full coverage, got %f", match.Coverage)
	}

	if match.Score <= 0 {
		t.Errorf("expected positive score, got %f", match.Score)
	}

	if len(match.MatchedKeywords) != 5 {
		t.Errorf("expected 5 matched keywords, got %d", len(match.MatchedKeywords))
	}
}

func TestRuleEngine_NormalizesAccentsAndPunctuation(t *testing.T) {
	rules := []classify.KeywordRule{
		{
			Label:    "roads",
			Keywords: []string{"pothole", "road", "speed bump"},
		},
	}

	engine := classify.NewRuleEngine(rules, nil)

	testCases := []struct {
		name string
		text string
	}{
		{name: "accented input folds to plain keywords", text: "Énorme pothölé on the róad"},
		{name: "punctuation becomes word boundaries", text: "ROAD!!! (pothole?)"},
		{name: "punctuation inside a phrase keyword", text: "the speed, bump is unmarked"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			matches := engine.Match(tc.text)
			if len(matches) != 1 {
				t.Fatalf("expected 1 match, got %d", len(matches))
			}
			if matches[0].Label != "roads" {
				t.Errorf("expected label roads, got %q", matches[0].Label)
			}
		})
	}
}

func TestRuleEngine_UpdateRulesDynamically(t *testing.T) {
	engine := classify.NewRuleEngine([]classify.KeywordRule{
		{Label: "electricity", Keywords: []string{"transformer", "voltage"}},
	}, nil)

	if engine.RuleCount() != 1 {
		t.Errorf("expected 1 rule initially, got %d", engine.RuleCount())
	}

	matches := engine.Match("The transformer sparked at high voltage.")
	if len(matches) != 1 {
		t.Errorf("expected 1 match initially, got %d", len(matches))
	}

	engine.Update([]classify.KeywordRule{
		{Label: "drainage", Keywords: []string{"sewage", "manhole"}},
	})

	matches = engine.Match("The transformer sparked at high voltage.")
	if len(matches) != 0 {
		t.Errorf("expected 0 matches after rules swapped, got %d", len(matches))
	}

	matches = engine.Match("Open manhole leaking sewage.")
	if len(matches) != 1 {
		t.Errorf("expected 1 match for new rule, got %d", len(matches))
	}
	if len(matches) > 0 && matches[0].Label != "drainage" {
		t.Errorf("expected match for drainage, got %q", matches[0].Label)
	}
}

func TestRuleEngine_EmptyRules(t *testing.T) {
	engine := classify.NewRuleEngine(nil, nil)

	if engine.RuleCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RuleCount())
	}

	if engine.KeywordCount() != 0 {
		t.Errorf("expected 0 keywords, got %d", engine.KeywordCount())
	}

	matches := engine.Match("Any content here.")
	if len(matches) != 0 {
		t.Errorf("expected 0 matches with no rules, got %d", len(matches))
	}
}

func TestRuleEngine_FirstMatchFollowsDeclarationOrder(t *testing.T) {
	rules := []classify.KeywordRule{
		{Label: "critical", Keywords: []string{"fire", "collapse"}},
		{Label: "high", Keywords: []string{"burst", "overflow"}},
		{Label: "medium", Keywords: []string{"cracked", "broken"}},
	}

	engine := classify.NewRuleEngine(rules, nil)

	testCases := []struct {
		name          string
		text          string
		expectedLabel string
		expectMatch   bool
	}{
		{
			name:          "most severe declared first wins on overlap",
			text:          "Pipe burst after the wall collapse, everything broken.",
			expectedLabel: "critical",
			expectMatch:   true,
		},
		{
			name:          "later rule wins when earlier ones miss",
			text:          "The lid is cracked at the edge.",
			expectedLabel: "medium",
			expectMatch:   true,
		},
		{
			name:        "no rule matches",
			text:        "All quiet on this street.",
			expectMatch: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			match, ok := engine.FirstMatch(tc.text)
			if ok != tc.expectMatch {
				t.Fatalf("expected match=%v, got %v", tc.expectMatch, ok)
			}
			if ok && match.Label != tc.expectedLabel {
				t.Errorf("expected label %q, got %q", tc.expectedLabel, match.Label)
			}
		})
	}
}

func TestRulesFromKeywords_StableOrder(t *testing.T) {
	rules := classify.RulesFromKeywords(map[string][]string{
		"waste_management": {"garbage"},
		"drainage":         {"sewage"},
		"roads":            {"pothole"},
	})

	labels := make([]string, 0, len(rules))
	for _, r := range rules {
		labels = append(labels, r.Label)
	}

	expected := []string{"drainage", "roads", "waste_management"}
	if !reflect.DeepEqual(labels, expected) {
		t.Errorf("expected labels %v, got %v", expected, labels)
	}
}

func TestNormalizeText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation runs",
			input:    "Broken STREETLIGHT!!!  (again)",
			expected: "broken streetlight again ",
		},
		{
			name:     "folds diacritics",
			input:    "Pothölé near café",
			expected: "pothole near cafe",
		},
		{
			name:     "keeps digits",
			input:    "House 42, Sector 9",
			expected: "house 42 sector 9",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify.NormalizeText(tc.input); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
