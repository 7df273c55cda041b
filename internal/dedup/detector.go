// Package dedup implements duplicate detection for incoming reports: a
// geospatial candidate prefilter followed by semantic text similarity, with a
// sparse TF-IDF fallback when the embedding sidecar is down. Detection is a
// quality signal that fails open; it never blocks the pipeline.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

// Embedder produces a dense vector for free text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CandidateQuery bounds the duplicate candidate search. Until is exclusive:
// only reports filed before the one under test can be its original.
type CandidateQuery struct {
	Lat          float64
	Lon          float64
	RadiusMeters float64
	Since        time.Time
	Until        time.Time
	ExcludeID    int64
}

// CandidateSource lists open, non-duplicate reports matching a query.
// Implementations may over-approximate the radius (a bounding box is fine);
// the detector re-checks the precise geodesic distance.
type CandidateSource interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]domain.Report, error)
}

// candidate pairs a prefiltered report with its distance and similarity.
type candidate struct {
	report     domain.Report
	distance   float64
	similarity float64
}

// Detector finds the open report an incoming one duplicates, if any.
type Detector struct {
	source   CandidateSource
	embedder Embedder
	cfg      config.DedupConfig
	logger   logger.Logger
}

// NewDetector creates a duplicate detector. A nil embedder skips the dense
// path and scores candidates with TF-IDF cosine only.
func NewDetector(source CandidateSource, embedder Embedder, cfg config.DedupConfig, log logger.Logger) *Detector {
	return &Detector{source: source, embedder: embedder, cfg: cfg, logger: log}
}

// Detect reports whether report duplicates an earlier open report. The best
// match is the highest similarity at or above the configured threshold, ties
// broken by smaller distance, then earlier created_at.
func (d *Detector) Detect(ctx context.Context, report *domain.Report) (domain.DuplicateMatch, error) {
	var none domain.DuplicateMatch
	if d.cfg.Disabled {
		return none, nil
	}

	hint := ""
	if report.CitizenCategory != nil {
		hint = string(*report.CitizenCategory)
	}
	radius := d.cfg.RadiusFor(hint)

	ref := report.CreatedAt
	if ref.IsZero() {
		ref = time.Now().UTC()
	}

	rows, err := d.source.Candidates(ctx, CandidateQuery{
		Lat:          report.Latitude,
		Lon:          report.Longitude,
		RadiusMeters: radius,
		Since:        ref.Add(-d.cfg.Window()),
		Until:        ref,
		ExcludeID:    report.ID,
	})
	if err != nil {
		return none, fmt.Errorf("load duplicate candidates: %w", err)
	}

	cands := make([]candidate, 0, len(rows))
	for i := range rows {
		dist := distanceMeters(report.Latitude, report.Longitude, rows[i].Latitude, rows[i].Longitude)
		if dist > radius {
			continue
		}
		cands = append(cands, candidate{report: rows[i], distance: dist})
	}
	if len(cands) == 0 {
		return none, nil
	}

	sims := d.similarities(ctx, similarityText(report), cands)
	for i := range cands {
		cands[i].similarity = sims[i]
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].similarity != cands[j].similarity {
			return cands[i].similarity > cands[j].similarity
		}
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].report.CreatedAt.Before(cands[j].report.CreatedAt)
	})

	best := cands[0]
	if best.similarity < d.cfg.SimilarityThreshold {
		d.logger.Debug("no duplicate above threshold",
			logger.Int64("report_id", report.ID),
			logger.Int("candidates", len(cands)),
			logger.Float64("best_similarity", best.similarity),
			logger.Float64("threshold", d.cfg.SimilarityThreshold))
		return none, nil
	}

	originalID := best.report.ID
	d.logger.Info("duplicate detected",
		logger.Int64("report_id", report.ID),
		logger.Int64("duplicate_of", originalID),
		logger.Float64("similarity", best.similarity),
		logger.Float64("distance_meters", best.distance))
	return domain.DuplicateMatch{
		IsDuplicate:         true,
		DuplicateOfReportID: &originalID,
		Similarity:          best.similarity,
		DistanceMeters:      best.distance,
	}, nil
}

// similarities scores the query text against every candidate, preferring
// dense embeddings and degrading to TF-IDF when the sidecar fails.
func (d *Detector) similarities(ctx context.Context, text string, cands []candidate) []float64 {
	if d.embedder != nil {
		sims, err := d.denseSimilarities(ctx, text, cands)
		if err == nil {
			return sims
		}
		d.logger.Warn("embedding sidecar failed, using sparse text similarity", logger.Error(err))
	}
	texts := make([]string, len(cands))
	for i := range cands {
		texts[i] = similarityText(&cands[i].report)
	}
	return sparseSimilarities(text, texts)
}

func (d *Detector) denseSimilarities(ctx context.Context, text string, cands []candidate) ([]float64, error) {
	qv, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	sims := make([]float64, len(cands))
	for i := range cands {
		cv, embedErr := d.embedder.Embed(ctx, similarityText(&cands[i].report))
		if embedErr != nil {
			return nil, embedErr
		}
		sims[i] = denseCosine(qv, cv)
	}
	return sims, nil
}

// similarityText is the text compared between reports: title plus
// description, without the title doubling used for keyword classification.
func similarityText(r *domain.Report) string {
	return r.Title + ". " + r.Description
}
