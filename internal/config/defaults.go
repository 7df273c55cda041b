package config

// Default keyword lists, radii, and routing tables. These are starting
// points: operators override them per deployment through YAML, and the test
// suite pins the mechanics against them.

// defaultCategoryKeywords maps each category to the keyword list that backs
// the override and boost paths. CategoryOther has no keywords: it is the
// no-confident-match sink, never keyword-selected.
var defaultCategoryKeywords = map[string][]string{
	"roads": {
		"pothole", "potholes", "road", "asphalt", "pavement", "speed bump",
		"highway", "footpath", "sidewalk", "divider", "zebra crossing",
	},
	"water_supply": {
		"water", "pipeline", "pipe", "tap", "leak", "leakage", "burst",
		"supply", "tanker", "contaminated", "borewell",
	},
	"electricity": {
		"electricity", "power", "transformer", "wire", "cable", "voltage",
		"outage", "short circuit", "electric pole", "meter",
	},
	"drainage": {
		"drain", "drainage", "sewage", "sewer", "gutter", "manhole",
		"blockage", "clogged", "stagnant", "waterlogging",
	},
	"streetlight": {
		"streetlight", "street light", "lamp", "lamppost", "bulb",
		"dark street", "light pole", "fused",
	},
	"waste_management": {
		"garbage", "trash", "waste", "litter", "rubbish", "dump", "dumping",
		"bin", "collection", "sweeping",
	},
	"public_property": {
		"park", "bench", "playground", "fence", "wall", "statue", "signboard",
		"vandalism", "graffiti", "public toilet", "bus stop",
	},
}

// defaultSeverityKeywords maps each severity level to its tier-1 keyword
// set. Levels are consulted from critical down; the first match wins.
var defaultSeverityKeywords = map[string][]string{
	"critical": {
		"fire", "explosion", "collapse", "collapsed", "electrocution",
		"gas leak", "death", "fatal", "life threatening", "live wire",
	},
	"high": {
		"burst", "overflow", "overflowing", "power outage", "flooding",
		"accident", "accidents", "injury", "injured", "exposed wire",
		"no water", "sewage on road",
	},
	"medium": {
		"cracked", "broken", "damaged", "leaking", "needs repair",
		"not working", "malfunctioning",
	},
	"low": {
		"cosmetic", "aesthetic", "faded", "minor", "slightly", "paint",
	},
}

// defaultCategorySeverity maps each category to its tier-2 default severity.
// Utility failures default high: outages affect whole localities.
var defaultCategorySeverity = map[string]string{
	"roads":            "medium",
	"water_supply":     "high",
	"electricity":      "high",
	"drainage":         "high",
	"streetlight":      "medium",
	"waste_management": "medium",
	"public_property":  "low",
	"other":            "medium",
}

// defaultUrgencyPhrases nudge a tier-2 default one severity level up.
var defaultUrgencyPhrases = []string{
	"urgent", "urgently", "immediately", "asap", "emergency",
	"many people", "many people affected", "entire area", "whole area",
	"whole colony", "everyone", "dangerous",
}

// defaultSeverityLabels are the tier-3 zero-shot label descriptions. They
// are intentionally simple and maximally distinctive: elaborate descriptions
// collapse the scores together.
var defaultSeverityLabels = map[string]string{
	"critical": "a life threatening emergency",
	"high":     "a serious problem needing urgent repair",
	"medium":   "a moderate problem",
	"low":      "a minor cosmetic issue",
}

// defaultSeverityOverrides lists post-hoc category+severity corrections.
// Cosmetic park issues are rarely urgent regardless of keyword noise.
var defaultSeverityOverrides = []SeverityOverride{
	{Category: "public_property", From: "medium", To: "low"},
}

// defaultCategoryDepartments maps each category to its default department.
var defaultCategoryDepartments = map[string]string{
	"roads":            "public_works",
	"drainage":         "public_works",
	"water_supply":     "water_authority",
	"electricity":      "power_utility",
	"streetlight":      "street_lighting",
	"waste_management": "sanitation",
	"public_property":  "parks_recreation",
	"other":            "manual_review",
}

// defaultDisambiguation lists the secondary keyword rules for categories
// that legitimately span two departments.
var defaultDisambiguation = []DisambiguationRule{
	{
		Category:   "drainage",
		Keywords:   []string{"sewage", "sewer", "septic", "waste water", "toilet"},
		Department: "sanitation",
	},
}

// defaultCategoryRadius overrides the duplicate search radius per category:
// tight for point-like issues (a streetlight), wide for linear ones (a
// road).
var defaultCategoryRadius = map[string]float64{
	"streetlight":      100,
	"public_property":  150,
	"waste_management": 200,
	"water_supply":     300,
	"electricity":      300,
	"drainage":         400,
	"roads":            500,
}

func setPipelineDefaults(p *PipelineConfig) {
	setDedupDefaults(&p.Dedup)
	setCategoryDefaults(&p.Category)
	setSeverityDefaults(&p.Severity)
	setRoutingDefaults(&p.Routing)
	setDispatchDefaults(&p.Dispatch)
}

func setDedupDefaults(d *DedupConfig) {
	if d.WindowDays == 0 {
		d.WindowDays = defaultDedupWindowDays
	}
	if d.SimilarityThreshold == 0 {
		d.SimilarityThreshold = defaultDedupSimilarity
	}
	if d.DefaultRadiusMeters == 0 {
		d.DefaultRadiusMeters = defaultDedupRadiusMeters
	}
	if len(d.CategoryRadiusMeters) == 0 {
		d.CategoryRadiusMeters = defaultCategoryRadius
	}
}

func setCategoryDefaults(c *CategoryConfig) {
	if len(c.Keywords) == 0 {
		c.Keywords = defaultCategoryKeywords
	}
	if c.OverrideMinMatches == 0 {
		c.OverrideMinMatches = defaultOverrideMinMatches
	}
	if c.OverrideScoreMargin == 0 {
		c.OverrideScoreMargin = defaultOverrideMargin
	}
	if c.BoostPerMatch == 0 {
		c.BoostPerMatch = defaultBoostPerMatch
	}
	if c.BoostCap == 0 {
		c.BoostCap = defaultBoostCap
	}
	if c.AmbiguityMargin == 0 {
		c.AmbiguityMargin = defaultAmbiguityMargin
	}
	if c.TopNCandidates == 0 {
		c.TopNCandidates = defaultTopNCandidates
	}
	if c.ConfidenceCeiling == 0 {
		c.ConfidenceCeiling = defaultConfidenceCeiling
	}
}

func setSeverityDefaults(s *SeverityConfig) {
	if len(s.KeywordRules) == 0 {
		s.KeywordRules = defaultSeverityKeywords
	}
	if len(s.CategoryDefaults) == 0 {
		s.CategoryDefaults = defaultCategorySeverity
	}
	if len(s.UrgencyPhrases) == 0 {
		s.UrgencyPhrases = defaultUrgencyPhrases
	}
	if len(s.ZeroShotLabels) == 0 {
		s.ZeroShotLabels = defaultSeverityLabels
	}
	if len(s.Overrides) == 0 {
		s.Overrides = defaultSeverityOverrides
	}
	if s.KeywordConfidence == 0 {
		s.KeywordConfidence = defaultKeywordSevConf
	}
	if s.DefaultConfidence == 0 {
		s.DefaultConfidence = defaultDefaultSevConf
	}
	if s.NudgedConfidence == 0 {
		s.NudgedConfidence = defaultNudgedSevConf
	}
}

func setRoutingDefaults(r *RoutingConfig) {
	if len(r.CategoryDepartments) == 0 {
		r.CategoryDepartments = defaultCategoryDepartments
	}
	if len(r.Disambiguation) == 0 {
		r.Disambiguation = defaultDisambiguation
	}
	if r.RoutedConfidence == 0 {
		r.RoutedConfidence = defaultRoutedConf
	}
	if r.DisambiguatedConfidence == 0 {
		r.DisambiguatedConfidence = defaultDisambiguatedConf
	}
	if r.ManualReviewConfidence == 0 {
		r.ManualReviewConfidence = defaultManualRouteConf
	}
}

func setDispatchDefaults(d *DispatchConfig) {
	if d.CategoryWeight == 0 {
		d.CategoryWeight = defaultCategoryWeight
	}
	if d.SeverityWeight == 0 {
		d.SeverityWeight = defaultSeverityWeight
	}
	if d.DepartmentWeight == 0 {
		d.DepartmentWeight = defaultDepartmentWeight
	}
	if d.ReviewBelow == 0 {
		d.ReviewBelow = defaultReviewBelow
	}
	if d.AssignDeptAt == 0 {
		d.AssignDeptAt = defaultAssignDeptAt
	}
	if d.AssignOfficerAt == 0 {
		d.AssignOfficerAt = defaultAssignOfficerAt
	}
}
