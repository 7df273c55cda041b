package config

import (
	"fmt"
	"math"
	"time"
)

// Default configuration values.
const (
	defaultServiceName     = "triage"
	defaultServiceVersion  = "1.0.0"
	defaultHTTPPort        = 8085
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "triage"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultRedisAddress    = "localhost:6379"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultProcessingQueue = "queue:ai_processing"
	defaultFailedQueue     = "queue:ai_failed"
	defaultNotifyQueue     = "queue:notifications"
	defaultConsumerGroup   = "triage-workers"
	defaultBlockTimeout    = 5 * time.Second
	defaultClaimMinIdle    = time.Minute
	defaultMaxRetries      = 3
	defaultRetryDelay      = 2 * time.Second
	defaultRetryMaxDelay   = 30 * time.Second
	defaultRetryMultiplier = 2.0
	defaultHeartbeatEvery  = 15 * time.Second
	defaultHeartbeatTTL    = 45 * time.Second
	defaultHeartbeatPrefix = "worker:heartbeat:"
	defaultZeroShotURL     = "http://zero-shot:8090"
	defaultEmbeddingURL    = "http://embeddings:8091"
	defaultClientTimeout   = 10 * time.Second
	defaultRateLimit       = 10.0
	defaultRateBurst       = 20
	defaultModelVersion    = "bart-large-mnli-v1"
	defaultSearchIndex     = "triage_reports"
	defaultRelayInterval   = 10 * time.Second
	defaultRelayBatchSize  = 50
	defaultMaxAppeals      = 3
)

// Default pipeline tuning values. The override margin, boost cap, and
// ambiguity margin were tuned empirically against a small labelled sample;
// treat them as starting points to re-calibrate against production data.
const (
	defaultDedupWindowDays    = 30
	defaultDedupSimilarity    = 0.75
	defaultDedupRadiusMeters  = 250.0
	defaultOverrideMinMatches = 2
	defaultOverrideMargin     = 0.15
	defaultBoostPerMatch      = 0.03
	defaultBoostCap           = 0.15
	defaultAmbiguityMargin    = 0.10
	defaultTopNCandidates     = 3
	defaultConfidenceCeiling  = 0.99
	defaultKeywordSevConf     = 0.75
	defaultDefaultSevConf     = 0.60
	defaultNudgedSevConf      = 0.70
	defaultRoutedConf         = 0.95
	defaultDisambiguatedConf  = 0.85
	defaultManualRouteConf    = 0.20
	defaultCategoryWeight     = 0.50
	defaultSeverityWeight     = 0.30
	defaultDepartmentWeight   = 0.20
	defaultReviewBelow        = 0.40
	defaultAssignDeptAt       = 0.60
	defaultAssignOfficerAt    = 0.80
)

// weightTolerance bounds floating error when validating that the aggregation
// weights sum to one.
const weightTolerance = 1e-6

// Config holds all configuration for the triage services.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	ZeroShot  ZeroShotConfig  `yaml:"zero_shot"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"TRIAGE_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"   yaml:"debug"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// QueueConfig holds the Redis Streams intake configuration.
type QueueConfig struct {
	ProcessingStream   string        `env:"QUEUE_PROCESSING"    yaml:"processing_stream"`
	FailedStream       string        `env:"QUEUE_FAILED"        yaml:"failed_stream"`
	NotificationStream string        `env:"QUEUE_NOTIFICATIONS" yaml:"notification_stream"`
	ConsumerGroup      string        `env:"QUEUE_GROUP"         yaml:"consumer_group"`
	BlockTimeout       time.Duration `yaml:"block_timeout"`
	// ClaimMinIdle is how long a delivery may sit pending on a dead consumer
	// before another worker claims it.
	ClaimMinIdle time.Duration `yaml:"claim_min_idle"`
}

// WorkerConfig holds pipeline worker configuration.
type WorkerConfig struct {
	// ConsumerName identifies this worker in the consumer group; defaults to
	// hostname plus a random suffix.
	ConsumerName      string        `env:"WORKER_NAME" yaml:"consumer_name"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
	RetryMultiplier   float64       `yaml:"retry_multiplier"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTTL      time.Duration `yaml:"heartbeat_ttl"`
	HeartbeatPrefix   string        `yaml:"heartbeat_prefix"`
}

// ZeroShotConfig holds the zero-shot classification sidecar configuration.
type ZeroShotConfig struct {
	URL     string        `env:"ZEROSHOT_URL" yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// RateLimit caps sidecar calls per second; Burst allows short spikes.
	RateLimit    float64 `yaml:"rate_limit"`
	RateBurst    int     `yaml:"rate_burst"`
	ModelVersion string  `yaml:"model_version"`
}

// EmbeddingConfig holds the text-embedding sidecar configuration.
type EmbeddingConfig struct {
	URL     string        `env:"EMBEDDING_URL" yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig holds the Elasticsearch report index configuration.
type SearchConfig struct {
	Enabled        bool          `env:"SEARCH_ENABLED"    yaml:"enabled"`
	URL            string        `env:"ELASTICSEARCH_URL" yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	IndexName      string        `yaml:"index_name"`
	RelayInterval  time.Duration `yaml:"relay_interval"`
	RelayBatchSize int           `yaml:"relay_batch_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// LifecycleConfig holds lifecycle policy configuration.
type LifecycleConfig struct {
	// MaxAppealsPerReport caps how many appeals a single report accepts.
	MaxAppealsPerReport int `yaml:"max_appeals_per_report"`
}

// PipelineConfig collects every classification tunable in one versioned
// place. Keyword lists and thresholds are the primary accuracy lever and are
// deliberately configuration, not code constants.
type PipelineConfig struct {
	Dedup    DedupConfig    `yaml:"dedup"`
	Category CategoryConfig `yaml:"category"`
	Severity SeverityConfig `yaml:"severity"`
	Routing  RoutingConfig  `yaml:"routing"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// DedupConfig holds duplicate detection settings.
type DedupConfig struct {
	// Disabled turns duplicate detection off entirely. The zero value keeps
	// it on: detection is a quality improvement that fails open, never a
	// gate.
	Disabled            bool    `yaml:"disabled"`
	WindowDays          int     `yaml:"window_days"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// DefaultRadiusMeters applies when a category has no specific radius.
	DefaultRadiusMeters float64 `yaml:"default_radius_meters"`
	// CategoryRadiusMeters overrides the search radius per category: tight
	// for point-like issues, wide for linear ones.
	CategoryRadiusMeters map[string]float64 `yaml:"category_radius_meters"`
}

// RadiusFor returns the duplicate search radius for a category.
func (d *DedupConfig) RadiusFor(category string) float64 {
	if r, ok := d.CategoryRadiusMeters[category]; ok && r > 0 {
		return r
	}
	return d.DefaultRadiusMeters
}

// Window returns the temporal duplicate window as a duration.
func (d *DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowDays) * 24 * time.Hour
}

// CategoryConfig holds category classification settings.
type CategoryConfig struct {
	// Keywords maps each category to its keyword list.
	Keywords map[string][]string `yaml:"keywords"`
	// OverrideMinMatches is the minimum keyword hits for the override path.
	OverrideMinMatches int `yaml:"override_min_matches"`
	// OverrideScoreMargin is how close the keyword-matched category's
	// zero-shot score must be to the top score for an override.
	OverrideScoreMargin float64 `yaml:"override_score_margin"`
	BoostPerMatch       float64 `yaml:"boost_per_match"`
	BoostCap            float64 `yaml:"boost_cap"`
	// AmbiguityMargin forces CategoryOther when the top two zero-shot scores
	// are closer than this.
	AmbiguityMargin   float64 `yaml:"ambiguity_margin"`
	TopNCandidates    int     `yaml:"top_n_candidates"`
	ConfidenceCeiling float64 `yaml:"confidence_ceiling"`
}

// SeverityOverride corrects a category+severity combination post-hoc.
type SeverityOverride struct {
	Category string `yaml:"category"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// SeverityConfig holds severity scoring settings.
type SeverityConfig struct {
	// KeywordRules maps each severity level to its tier-1 keyword set.
	KeywordRules map[string][]string `yaml:"keyword_rules"`
	// CategoryDefaults maps each category to its tier-2 default severity.
	CategoryDefaults map[string]string `yaml:"category_defaults"`
	// UrgencyPhrases nudge the tier-2 default one level up when present.
	UrgencyPhrases []string `yaml:"urgency_phrases"`
	// ZeroShotLabels maps each severity to the intentionally simple label
	// description used by the tier-3 fallback. Elaborate labels collapse
	// scores together and degrade accuracy.
	ZeroShotLabels map[string]string `yaml:"zero_shot_labels"`
	// Overrides lists post-hoc category+severity corrections.
	Overrides []SeverityOverride `yaml:"overrides"`

	KeywordConfidence float64 `yaml:"keyword_confidence"`
	DefaultConfidence float64 `yaml:"default_confidence"`
	NudgedConfidence  float64 `yaml:"nudged_confidence"`
}

// DisambiguationRule routes a category to a different department when
// specific keywords are present.
type DisambiguationRule struct {
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	Department string   `yaml:"department"`
}

// RoutingConfig holds department routing settings.
type RoutingConfig struct {
	// CategoryDepartments maps each category to its default department.
	CategoryDepartments map[string]string `yaml:"category_departments"`
	// Disambiguation lists secondary keyword rules for categories that span
	// two departments.
	Disambiguation []DisambiguationRule `yaml:"disambiguation"`

	RoutedConfidence        float64 `yaml:"routed_confidence"`
	DisambiguatedConfidence float64 `yaml:"disambiguated_confidence"`
	ManualReviewConfidence  float64 `yaml:"manual_review_confidence"`
}

// DispatchConfig holds confidence aggregation weights and dispatch bands.
// Band semantics, with boundaries inclusive on the side shown:
//
//	overall <  ReviewBelow                   -> manual review
//	ReviewBelow <= overall < AssignDeptAt    -> classify only
//	AssignDeptAt <= overall < AssignOfficerAt -> assign department
//	overall >= AssignOfficerAt               -> assign department and officer
type DispatchConfig struct {
	CategoryWeight   float64 `yaml:"category_weight"`
	SeverityWeight   float64 `yaml:"severity_weight"`
	DepartmentWeight float64 `yaml:"department_weight"`

	ReviewBelow     float64 `yaml:"review_below"`
	AssignDeptAt    float64 `yaml:"assign_department_at"`
	AssignOfficerAt float64 `yaml:"assign_officer_at"`
}

// Load loads configuration from the specified path, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadFileWithDefaults[Config](path, SetDefaults)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the fully defaulted configuration without reading any file
// or environment. Tests use this as their baseline.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults applies default values to every section.
func SetDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setQueueDefaults(&cfg.Queue)
	setWorkerDefaults(&cfg.Worker)
	setZeroShotDefaults(&cfg.ZeroShot)
	setEmbeddingDefaults(&cfg.Embedding)
	setSearchDefaults(&cfg.Search)
	setLoggingDefaults(&cfg.Logging)
	setPipelineDefaults(&cfg.Pipeline)
	setLifecycleDefaults(&cfg.Lifecycle)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultHTTPPort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

func setQueueDefaults(q *QueueConfig) {
	if q.ProcessingStream == "" {
		q.ProcessingStream = defaultProcessingQueue
	}
	if q.FailedStream == "" {
		q.FailedStream = defaultFailedQueue
	}
	if q.NotificationStream == "" {
		q.NotificationStream = defaultNotifyQueue
	}
	if q.ConsumerGroup == "" {
		q.ConsumerGroup = defaultConsumerGroup
	}
	if q.BlockTimeout == 0 {
		q.BlockTimeout = defaultBlockTimeout
	}
	if q.ClaimMinIdle == 0 {
		q.ClaimMinIdle = defaultClaimMinIdle
	}
}

func setWorkerDefaults(w *WorkerConfig) {
	if w.MaxRetries == 0 {
		w.MaxRetries = defaultMaxRetries
	}
	if w.RetryInitialDelay == 0 {
		w.RetryInitialDelay = defaultRetryDelay
	}
	if w.RetryMaxDelay == 0 {
		w.RetryMaxDelay = defaultRetryMaxDelay
	}
	if w.RetryMultiplier == 0 {
		w.RetryMultiplier = defaultRetryMultiplier
	}
	if w.HeartbeatInterval == 0 {
		w.HeartbeatInterval = defaultHeartbeatEvery
	}
	if w.HeartbeatTTL == 0 {
		w.HeartbeatTTL = defaultHeartbeatTTL
	}
	if w.HeartbeatPrefix == "" {
		w.HeartbeatPrefix = defaultHeartbeatPrefix
	}
}

func setZeroShotDefaults(z *ZeroShotConfig) {
	if z.URL == "" {
		z.URL = defaultZeroShotURL
	}
	if z.Timeout == 0 {
		z.Timeout = defaultClientTimeout
	}
	if z.RateLimit == 0 {
		z.RateLimit = defaultRateLimit
	}
	if z.RateBurst == 0 {
		z.RateBurst = defaultRateBurst
	}
	if z.ModelVersion == "" {
		z.ModelVersion = defaultModelVersion
	}
}

func setEmbeddingDefaults(e *EmbeddingConfig) {
	if e.URL == "" {
		e.URL = defaultEmbeddingURL
	}
	if e.Timeout == 0 {
		e.Timeout = defaultClientTimeout
	}
}

func setSearchDefaults(s *SearchConfig) {
	if s.IndexName == "" {
		s.IndexName = defaultSearchIndex
	}
	if s.RelayInterval == 0 {
		s.RelayInterval = defaultRelayInterval
	}
	if s.RelayBatchSize == 0 {
		s.RelayBatchSize = defaultRelayBatchSize
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setLifecycleDefaults(l *LifecycleConfig) {
	if l.MaxAppealsPerReport == 0 {
		l.MaxAppealsPerReport = defaultMaxAppeals
	}
}

// Validate checks cross-field consistency of the loaded configuration.
func (c *Config) Validate() error {
	d := &c.Pipeline.Dispatch
	sum := d.CategoryWeight + d.SeverityWeight + d.DepartmentWeight
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("dispatch weights must sum to 1.0, got %.4f", sum)
	}
	if d.ReviewBelow <= 0 || d.ReviewBelow >= d.AssignDeptAt {
		return fmt.Errorf("review_below (%.2f) must be positive and below assign_department_at (%.2f)",
			d.ReviewBelow, d.AssignDeptAt)
	}
	if d.AssignDeptAt >= d.AssignOfficerAt {
		return fmt.Errorf("assign_department_at (%.2f) must be below assign_officer_at (%.2f)",
			d.AssignDeptAt, d.AssignOfficerAt)
	}
	if d.AssignOfficerAt > 1.0 {
		return fmt.Errorf("assign_officer_at (%.2f) must not exceed 1.0", d.AssignOfficerAt)
	}

	dd := &c.Pipeline.Dedup
	if dd.SimilarityThreshold <= 0 || dd.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup similarity_threshold (%.2f) must be in (0, 1]", dd.SimilarityThreshold)
	}
	if dd.WindowDays <= 0 {
		return fmt.Errorf("dedup window_days (%d) must be positive", dd.WindowDays)
	}
	if dd.DefaultRadiusMeters <= 0 {
		return fmt.Errorf("dedup default_radius_meters (%.0f) must be positive", dd.DefaultRadiusMeters)
	}

	cat := &c.Pipeline.Category
	if cat.OverrideMinMatches < 1 {
		return fmt.Errorf("category override_min_matches (%d) must be at least 1", cat.OverrideMinMatches)
	}
	if cat.AmbiguityMargin < 0 || cat.AmbiguityMargin >= 1 {
		return fmt.Errorf("category ambiguity_margin (%.2f) must be in [0, 1)", cat.AmbiguityMargin)
	}
	if cat.BoostCap < cat.BoostPerMatch {
		return fmt.Errorf("category boost_cap (%.2f) must be at least boost_per_match (%.2f)",
			cat.BoostCap, cat.BoostPerMatch)
	}

	if c.Lifecycle.MaxAppealsPerReport < 1 {
		return fmt.Errorf("lifecycle max_appeals_per_report (%d) must be at least 1", c.Lifecycle.MaxAppealsPerReport)
	}

	return nil
}
