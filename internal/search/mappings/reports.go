package mappings

// ReportMapping represents the Elasticsearch mapping for triaged reports
type ReportMapping struct {
	Settings ReportSettings `json:"settings"`
	Mappings ReportMappings `json:"mappings"`
}

// ReportSettings defines index-level settings
type ReportSettings struct {
	BaseSettings
}

// ReportMappings defines the field mappings for triaged reports
type ReportMappings struct {
	Properties ReportProperties `json:"properties"`
}

// ReportProperties defines the properties for each field in the report mapping
type ReportProperties struct {
	// Core identifiers
	ReportID   Field `json:"report_id"`
	ReporterID Field `json:"reporter_id"`

	// Free text
	Title       Field `json:"title"`
	Description Field `json:"description"`
	Address     Field `json:"address"`

	// Classification verdict
	Category          Field `json:"category"`
	Severity          Field `json:"severity"`
	Department        Field `json:"department"`
	Status            Field `json:"status"`
	OverallConfidence Field `json:"overall_confidence"`
	NeedsReview       Field `json:"needs_review"`
	ModelVersion      Field `json:"model_version"`

	// Geolocation
	Location Field `json:"location"`

	// Timestamps
	CreatedAt    Field `json:"created_at"`
	ClassifiedAt Field `json:"classified_at"`
}

// Field represents an Elasticsearch field mapping
type Field struct {
	Type     string `json:"type,omitempty"`
	Analyzer string `json:"analyzer,omitempty"`
	Format   string `json:"format,omitempty"`
}

// NewReportMapping creates a new report mapping with default settings
func NewReportMapping() *ReportMapping {
	return &ReportMapping{
		Settings: ReportSettings{
			BaseSettings: DefaultSettings(),
		},
		Mappings: ReportMappings{
			Properties: ReportProperties{
				ReportID: Field{
					Type: "long",
				},
				ReporterID: Field{
					Type: "long",
				},
				Title: Field{
					Type:     "text",
					Analyzer: "standard",
				},
				Description: Field{
					Type:     "text",
					Analyzer: "standard",
				},
				Address: Field{
					Type:     "text",
					Analyzer: "standard",
				},
				Category: Field{
					Type: "keyword",
				},
				Severity: Field{
					Type: "keyword",
				},
				Department: Field{
					Type: "keyword",
				},
				Status: Field{
					Type: "keyword",
				},
				OverallConfidence: Field{
					Type: "float",
				},
				NeedsReview: Field{
					Type: "boolean",
				},
				ModelVersion: Field{
					Type: "keyword",
				},
				Location: Field{
					Type: "geo_point",
				},
				CreatedAt: Field{
					Type:   "date",
					Format: "strict_date_optional_time||epoch_millis",
				},
				ClassifiedAt: Field{
					Type:   "date",
					Format: "strict_date_optional_time||epoch_millis",
				},
			},
		},
	}
}

// GetJSON returns the report mapping as a JSON string
func (m *ReportMapping) GetJSON() (string, error) {
	return ToJSON(m)
}

// Validate validates the report mapping configuration
func (m *ReportMapping) Validate() error {
	return ValidateSettings(m.Settings.BaseSettings)
}
