package search

import (
	"time"

	"github.com/civicgrid/triage/internal/domain"
)

// GeoPoint is the Elasticsearch geo_point shape.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReportDocument is the denormalized search view of one classified report,
// staged in the outbox at commit time and indexed by the relay.
type ReportDocument struct {
	ReportID          int64     `json:"report_id"`
	ReporterID        int64     `json:"reporter_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Address           string    `json:"address,omitempty"`
	Category          string    `json:"category"`
	Severity          string    `json:"severity"`
	Department        string    `json:"department"`
	Status            string    `json:"status"`
	OverallConfidence float64   `json:"overall_confidence"`
	NeedsReview       bool      `json:"needs_review"`
	ModelVersion      string    `json:"model_version"`
	Location          GeoPoint  `json:"location"`
	CreatedAt         time.Time `json:"created_at"`
	ClassifiedAt      time.Time `json:"classified_at"`
}

// BuildDocument flattens a report and its classification verdict into the
// search document. Duplicates are never staged; callers only build
// documents for classified reports.
func BuildDocument(report *domain.Report, result *domain.ClassificationResult) *ReportDocument {
	return &ReportDocument{
		ReportID:          report.ID,
		ReporterID:        report.ReporterID,
		Title:             report.Title,
		Description:       report.Description,
		Address:           report.Address,
		Category:          string(result.Category.Category),
		Severity:          string(result.Severity.Severity),
		Department:        string(result.Routing.Department),
		Status:            string(result.TargetStatus),
		OverallConfidence: result.OverallConfidence,
		NeedsReview:       result.NeedsReview,
		ModelVersion:      result.ModelVersion,
		Location: GeoPoint{
			Lat: report.Latitude,
			Lon: report.Longitude,
		},
		CreatedAt:    report.CreatedAt,
		ClassifiedAt: result.ClassifiedAt,
	}
}
