package dedup_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/dedup"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
)

type sourceFunc func(ctx context.Context, q dedup.CandidateQuery) ([]domain.Report, error)

func (f sourceFunc) Candidates(ctx context.Context, q dedup.CandidateQuery) ([]domain.Report, error) {
	return f(ctx, q)
}

type embedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

func fixedCandidates(reports ...domain.Report) dedup.CandidateSource {
	return sourceFunc(func(_ context.Context, _ dedup.CandidateQuery) ([]domain.Report, error) {
		return reports, nil
	})
}

func dedupConfig() config.DedupConfig {
	return config.Default().Pipeline.Dedup
}

func TestDetector_FindsNearbyDuplicate(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	original := domain.Report{
		ID:          41,
		Title:       "Huge pothole on Main Street",
		Description: "Deep pothole near the bus stop damaging two-wheelers",
		Latitude:    12.97160,
		Longitude:   77.59460,
		Status:      domain.StatusReceived,
		CreatedAt:   base.Add(-1 * time.Hour),
	}
	unrelated := domain.Report{
		ID:          57,
		Title:       "Streetlight flickering",
		Description: "The lamp outside house 12 keeps flickering",
		Latitude:    12.97150,
		Longitude:   77.59450,
		Status:      domain.StatusReceived,
		CreatedAt:   base.Add(-2 * time.Hour),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Huge pothole on Main Street",
		Description: "Deep pothole near the bus stop",
		Latitude:    12.97155,
		Longitude:   77.59465,
		CreatedAt:   base,
	}

	emb := embedderFunc(func(_ context.Context, text string) ([]float64, error) {
		if strings.Contains(text, "pothole") {
			return []float64{1, 0.05}, nil
		}
		return []float64{0.05, 1}, nil
	})

	detector := dedup.NewDetector(fixedCandidates(original, unrelated), emb, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !match.IsDuplicate {
		t.Fatal("expected a duplicate match")
	}
	if match.DuplicateOfReportID == nil || *match.DuplicateOfReportID != 41 {
		t.Errorf("expected duplicate of report 41, got %v", match.DuplicateOfReportID)
	}
	if match.Similarity < 0.99 {
		t.Errorf("expected similarity near 1.0, got %f", match.Similarity)
	}
	if match.DistanceMeters <= 0 || match.DistanceMeters > 20 {
		t.Errorf("expected a small positive distance, got %f", match.DistanceMeters)
	}
}

func TestDetector_BelowThresholdIsNotDuplicate(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	candidate := domain.Report{
		ID:          12,
		Title:       "Garbage not collected",
		Description: "Bins overflowing for a week",
		Latitude:    12.9716,
		Longitude:   77.5946,
		CreatedAt:   base.Add(-3 * time.Hour),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Water pipe burst",
		Description: "Water flooding the street",
		Latitude:    12.9716,
		Longitude:   77.5946,
		CreatedAt:   base,
	}

	emb := embedderFunc(func(_ context.Context, text string) ([]float64, error) {
		if strings.Contains(text, "Water") {
			return []float64{1, 0}, nil
		}
		return []float64{0.1, 1}, nil
	})

	detector := dedup.NewDetector(fixedCandidates(candidate), emb, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if match.IsDuplicate {
		t.Errorf("expected no duplicate below threshold, got match of %v at %f",
			match.DuplicateOfReportID, match.Similarity)
	}
}

func TestDetector_RechecksPreciseDistance(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	// Roughly 2.2km north: inside a sloppy bounding box a source might use,
	// far outside the 250m default radius.
	farAway := domain.Report{
		ID:          12,
		Title:       "Water pipe burst",
		Description: "Water flooding the street",
		Latitude:    12.9916,
		Longitude:   77.5946,
		CreatedAt:   base.Add(-1 * time.Hour),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Water pipe burst",
		Description: "Water flooding the street",
		Latitude:    12.9716,
		Longitude:   77.5946,
		CreatedAt:   base,
	}

	embedderCalled := false
	emb := embedderFunc(func(_ context.Context, _ string) ([]float64, error) {
		embedderCalled = true
		return []float64{1, 0}, nil
	})

	detector := dedup.NewDetector(fixedCandidates(farAway), emb, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if match.IsDuplicate {
		t.Error("expected no duplicate outside the radius")
	}
	if embedderCalled {
		t.Error("expected no embedding calls when every candidate is out of range")
	}
}

func TestDetector_EmbedderFailureFallsBackToSparse(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	original := domain.Report{
		ID:          7,
		Title:       "Water pipe burst",
		Description: "Water flooding the street near the market",
		Latitude:    12.9716,
		Longitude:   77.5946,
		CreatedAt:   base.Add(-30 * time.Minute),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Water pipe burst",
		Description: "Water flooding the street near the market",
		Latitude:    12.9716,
		Longitude:   77.5946,
		CreatedAt:   base,
	}

	emb := embedderFunc(func(_ context.Context, _ string) ([]float64, error) {
		return nil, errors.New("embedding sidecar unavailable")
	})

	detector := dedup.NewDetector(fixedCandidates(original), emb, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !match.IsDuplicate {
		t.Fatal("expected sparse fallback to find the identical report")
	}
	if match.DuplicateOfReportID == nil || *match.DuplicateOfReportID != 7 {
		t.Errorf("expected duplicate of report 7, got %v", match.DuplicateOfReportID)
	}
	if match.Similarity < 0.99 {
		t.Errorf("expected similarity near 1.0 for identical text, got %f", match.Similarity)
	}
}

func TestDetector_TieBreaksBySmallerDistance(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	// Identical text on both candidates gives identical similarity; the
	// closer one must win.
	farther := domain.Report{
		ID:          21,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97250,
		Longitude:   77.59460,
		CreatedAt:   base.Add(-2 * time.Hour),
	}
	closer := domain.Report{
		ID:          22,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97165,
		Longitude:   77.59460,
		CreatedAt:   base.Add(-1 * time.Hour),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97160,
		Longitude:   77.59460,
		CreatedAt:   base,
	}

	detector := dedup.NewDetector(fixedCandidates(farther, closer), nil, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !match.IsDuplicate {
		t.Fatal("expected a duplicate match")
	}
	if match.DuplicateOfReportID == nil || *match.DuplicateOfReportID != 22 {
		t.Errorf("expected the closer report 22, got %v", match.DuplicateOfReportID)
	}
}

func TestDetector_TieBreaksByEarliestCreated(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	later := domain.Report{
		ID:          31,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97160,
		Longitude:   77.59460,
		CreatedAt:   base.Add(-1 * time.Hour),
	}
	earlier := domain.Report{
		ID:          32,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97160,
		Longitude:   77.59460,
		CreatedAt:   base.Add(-6 * time.Hour),
	}
	incoming := domain.Report{
		ID:          99,
		Title:       "Open manhole",
		Description: "Manhole cover missing on 5th Cross",
		Latitude:    12.97160,
		Longitude:   77.59460,
		CreatedAt:   base,
	}

	detector := dedup.NewDetector(fixedCandidates(later, earlier), nil, dedupConfig(), logger.NewNop())
	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !match.IsDuplicate {
		t.Fatal("expected a duplicate match")
	}
	if match.DuplicateOfReportID == nil || *match.DuplicateOfReportID != 32 {
		t.Errorf("expected the earlier report 32, got %v", match.DuplicateOfReportID)
	}
}

func TestDetector_QueryBoundsFromReport(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	hint := domain.CategoryStreetlight

	incoming := domain.Report{
		ID:              99,
		Title:           "Streetlight out",
		Description:     "Dark stretch outside house 12",
		Latitude:        12.9716,
		Longitude:       77.5946,
		CitizenCategory: &hint,
		CreatedAt:       base,
	}

	var got dedup.CandidateQuery
	source := sourceFunc(func(_ context.Context, q dedup.CandidateQuery) ([]domain.Report, error) {
		got = q
		return nil, nil
	})

	detector := dedup.NewDetector(source, nil, dedupConfig(), logger.NewNop())
	if _, err := detector.Detect(context.Background(), &incoming); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.RadiusMeters != 100 {
		t.Errorf("expected the streetlight radius 100m, got %f", got.RadiusMeters)
	}
	if got.ExcludeID != 99 {
		t.Errorf("expected the report itself excluded, got %d", got.ExcludeID)
	}
	if !got.Until.Equal(base) {
		t.Errorf("expected until=%v, got %v", base, got.Until)
	}
	if want := base.Add(-30 * 24 * time.Hour); !got.Since.Equal(want) {
		t.Errorf("expected since=%v, got %v", want, got.Since)
	}
}

func TestDetector_SourceErrorPropagates(t *testing.T) {
	source := sourceFunc(func(_ context.Context, _ dedup.CandidateQuery) ([]domain.Report, error) {
		return nil, errors.New("connection refused")
	})

	detector := dedup.NewDetector(source, nil, dedupConfig(), logger.NewNop())
	incoming := domain.Report{ID: 99, Title: "Pothole", Description: "Deep one", CreatedAt: time.Now()}

	match, err := detector.Detect(context.Background(), &incoming)
	if err == nil {
		t.Fatal("expected error when the candidate source fails")
	}
	if match.IsDuplicate {
		t.Error("expected no match alongside the error")
	}
}

func TestDetector_DisabledSkipsDetection(t *testing.T) {
	source := sourceFunc(func(_ context.Context, _ dedup.CandidateQuery) ([]domain.Report, error) {
		t.Error("candidate source must not be called when detection is disabled")
		return nil, nil
	})

	cfg := dedupConfig()
	cfg.Disabled = true

	detector := dedup.NewDetector(source, nil, cfg, logger.NewNop())
	incoming := domain.Report{ID: 99, Title: "Pothole", Description: "Deep one", CreatedAt: time.Now()}

	match, err := detector.Detect(context.Background(), &incoming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.IsDuplicate {
		t.Error("expected no match when detection is disabled")
	}
}
