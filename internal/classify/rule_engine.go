// Package classify implements the report triage pipeline: duplicate
// detection gating, category classification, severity scoring, department
// routing, and confidence-based dispatch.
package classify

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/civicgrid/triage/internal/logger"
)

// Rule engine constants.
const (
	estimatedKeywordsPerRule = 16  // Used for initial slice capacity
	tfNormalizationFactor    = 3.0 // log1p(hits) saturates near 19 hits
	tfWeight                 = 0.4
	coverageWeight           = 0.6
)

// KeywordRule binds a label to the keyword list that argues for it.
type KeywordRule struct {
	Label    string
	Keywords []string
	Priority int
}

// RuleMatch reports how strongly one rule matched a text.
type RuleMatch struct {
	Label           string
	MatchCount      int      // Total keyword hits
	UniqueMatches   int      // Unique keywords matched
	Coverage        float64  // UniqueMatches / len(rule.Keywords)
	Score           float64  // Log-scaled TF plus coverage
	MatchedKeywords []string // Which keywords matched, in hit order
}

// RuleEngine matches every rule's keywords against a text in a single
// Aho-Corasick pass. This is significantly faster than the naive
// O(rules x keywords x text) scan when many labels carry long keyword lists.
type RuleEngine struct {
	mu        sync.RWMutex
	matcher   *ahocorasick.Matcher
	rules     []KeywordRule
	keywords  []string                  // All keywords in automaton order
	kwToRules map[string][]*ruleMapping // keyword -> rule mappings
	logger    logger.Logger
}

type ruleMapping struct {
	ruleIndex    int
	keywordIndex int
}

type matchAccumulator struct {
	ruleIndex       int
	matchedKeywords map[int]bool // keyword index within the rule -> matched
	keywordTexts    []string
	totalHits       int
}

// NewRuleEngine builds the Aho-Corasick automaton from rules.
func NewRuleEngine(rules []KeywordRule, log logger.Logger) *RuleEngine {
	engine := &RuleEngine{
		rules:     rules,
		kwToRules: make(map[string][]*ruleMapping),
		logger:    log,
	}
	// No lock needed in constructor, engine not yet shared.
	engine.rebuildLocked()

	if log != nil {
		log.Debug("rule engine initialized",
			logger.Int("rules", len(rules)),
			logger.Int("keywords", len(engine.keywords)))
	}

	return engine
}

// RulesFromKeywords converts a label -> keyword-list map into rules with a
// stable label order.
func RulesFromKeywords(keywords map[string][]string) []KeywordRule {
	labels := make([]string, 0, len(keywords))
	for label := range keywords {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rules := make([]KeywordRule, 0, len(labels))
	for _, label := range labels {
		rules = append(rules, KeywordRule{Label: label, Keywords: keywords[label]})
	}
	return rules
}

// rebuildLocked constructs the Aho-Corasick automaton.
// MUST be called with e.mu held, except from the constructor.
func (e *RuleEngine) rebuildLocked() {
	e.keywords = make([]string, 0, len(e.rules)*estimatedKeywordsPerRule)
	e.kwToRules = make(map[string][]*ruleMapping)

	for ruleIdx := range e.rules {
		for kwIdx, kw := range e.rules[ruleIdx].Keywords {
			normalized := normalizeKeyword(kw)
			if normalized == "" {
				continue
			}
			e.keywords = append(e.keywords, normalized)
			e.kwToRules[normalized] = append(e.kwToRules[normalized], &ruleMapping{
				ruleIndex:    ruleIdx,
				keywordIndex: kwIdx,
			})
		}
	}

	if len(e.keywords) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(e.keywords)
	} else {
		e.matcher = nil
	}
}

// Match finds all matching rules in a single pass through the text.
// Returns matches sorted by priority (desc), then score (desc), then label.
func (e *RuleEngine) Match(text string) []RuleMatch {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil {
		return nil
	}

	normalized := NormalizeText(text)
	hits := e.matcher.Match([]byte(normalized))

	accum := make(map[int]*matchAccumulator)
	for _, hitIndex := range hits {
		if hitIndex >= len(e.keywords) {
			continue
		}
		keyword := e.keywords[hitIndex]
		for _, m := range e.kwToRules[keyword] {
			acc, exists := accum[m.ruleIndex]
			if !exists {
				acc = &matchAccumulator{
					ruleIndex:       m.ruleIndex,
					matchedKeywords: make(map[int]bool),
					keywordTexts:    make([]string, 0),
				}
				accum[m.ruleIndex] = acc
			}
			if !acc.matchedKeywords[m.keywordIndex] {
				acc.keywordTexts = append(acc.keywordTexts, keyword)
			}
			acc.matchedKeywords[m.keywordIndex] = true
			acc.totalHits++
		}
	}

	results := make([]RuleMatch, 0, len(accum))
	for _, acc := range accum {
		rule := &e.rules[acc.ruleIndex]
		totalKeywords := len(rule.Keywords)
		if totalKeywords == 0 {
			continue
		}

		uniqueMatched := len(acc.matchedKeywords)
		coverage := float64(uniqueMatched) / float64(totalKeywords)

		// Log-scaled term frequency plus coverage rewards both frequency
		// and breadth of matches.
		logTF := math.Min(1.0, math.Log1p(float64(acc.totalHits))/tfNormalizationFactor)
		score := (logTF * tfWeight) + (coverage * coverageWeight)

		results = append(results, RuleMatch{
			Label:           rule.Label,
			MatchCount:      acc.totalHits,
			UniqueMatches:   uniqueMatched,
			Coverage:        coverage,
			Score:           score,
			MatchedKeywords: acc.keywordTexts,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		pi := e.priorityOf(results[i].Label)
		pj := e.priorityOf(results[j].Label)
		if pi != pj {
			return pi > pj
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Label < results[j].Label
	})

	return results
}

func (e *RuleEngine) priorityOf(label string) int {
	for i := range e.rules {
		if e.rules[i].Label == label {
			return e.rules[i].Priority
		}
	}
	return 0
}

// MatchesByLabel indexes Match output by label for direct lookup.
func (e *RuleEngine) MatchesByLabel(text string) map[string]RuleMatch {
	matches := e.Match(text)
	byLabel := make(map[string]RuleMatch, len(matches))
	for _, m := range matches {
		byLabel[m.Label] = m
	}
	return byLabel
}

// FirstMatch returns the first rule, in rule declaration order, with at
// least one keyword hit. Severity tier-1 rules depend on declaration order:
// the most severe level is declared first and wins outright.
func (e *RuleEngine) FirstMatch(text string) (RuleMatch, bool) {
	byLabel := e.MatchesByLabel(text)
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.rules {
		if m, ok := byLabel[e.rules[i].Label]; ok {
			return m, true
		}
	}
	return RuleMatch{}, false
}

// Update hot-reloads rules without restart.
// Thread-safe: acquires the write lock to swap rules and rebuild atomically.
func (e *RuleEngine) Update(rules []KeywordRule) {
	e.mu.Lock()
	e.rules = rules
	e.rebuildLocked()
	keywordCount := len(e.keywords)
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("rule engine updated",
			logger.Int("rules", len(rules)),
			logger.Int("keywords", keywordCount))
	}
}

// RuleCount returns the number of loaded rules.
func (e *RuleEngine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// KeywordCount returns total keywords across all rules.
func (e *RuleEngine) KeywordCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keywords)
}

func normalizeKeyword(kw string) string {
	return NormalizeText(strings.TrimSpace(kw))
}

// NormalizeText lowercases, strips diacritics, and replaces every
// non-alphanumeric run with a single space so keyword matching sees clean
// word boundaries regardless of punctuation or accents in citizen input.
// Multi-word keywords such as "power outage" rely on the run collapsing.
func NormalizeText(text string) string {
	text = strings.ToLower(removeAccents(text))

	var result strings.Builder
	result.Grow(len(text))

	lastWasSpace := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasSpace = false
		} else if !lastWasSpace {
			result.WriteByte(' ')
			lastWasSpace = true
		}
	}

	return result.String()
}

// removeAccents strips diacritical marks from a string.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}
