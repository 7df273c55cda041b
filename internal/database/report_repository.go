package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/dedup"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/lifecycle"
)

// metersPerDegreeLat approximates one degree of latitude at the surface. The
// candidate query uses it to turn a search radius into a bounding box; the
// detector re-checks exact distances, so the box only has to over-approximate.
const metersPerDegreeLat = 111320.0

// reportColumns is the full report projection shared by the read queries.
const reportColumns = `id, title, description, latitude, longitude, address,
	reporter_id, citizen_category, citizen_severity, ai_category, ai_severity,
	ai_confidence, model_version, ai_processed_at, status, is_duplicate,
	duplicate_of_report_id, needs_review, review_reason, department_id,
	officer_id, version, created_at, updated_at`

// ReportRepository reads and mutates report rows.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GetReport loads one report by ID.
func (r *ReportRepository) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	var report domain.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}

	return &report, nil
}

// Candidates lists open, non-duplicate reports inside a bounding box around
// the query point, created within [Since, Until). Until is exclusive so the
// probe report never matches itself by timestamp.
func (r *ReportRepository) Candidates(ctx context.Context, q dedup.CandidateQuery) ([]domain.Report, error) {
	latDelta := q.RadiusMeters / metersPerDegreeLat
	lonDelta := 180.0
	if cosLat := math.Cos(q.Lat * math.Pi / 180); cosLat > 1e-6 {
		lonDelta = q.RadiusMeters / (metersPerDegreeLat * cosLat)
	}

	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND created_at >= $5
		  AND created_at < $6
		  AND id <> $7
		  AND is_duplicate = FALSE
		  AND status NOT IN ($8, $9, $10)
		ORDER BY created_at ASC`

	var reports []domain.Report
	err := r.db.SelectContext(ctx, &reports, query,
		q.Lat-latDelta, q.Lat+latDelta,
		q.Lon-lonDelta, q.Lon+lonDelta,
		q.Since, q.Until, q.ExcludeID,
		domain.StatusResolved, domain.StatusClosed, domain.StatusRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate candidates: %w", err)
	}

	return reports, nil
}

// ApplyClassification folds the pipeline result into the report row, appends
// the dispatch status change to history, and stages the search outbox row,
// all in one transaction. The ai_processed_at guard makes redelivered queue
// messages land exactly once: a second commit finds no matching row and
// returns domain.ErrAlreadyProcessed without writing anything.
func (r *ReportRepository) ApplyClassification(ctx context.Context, report *domain.Report, res *domain.ClassificationResult, outboxPayload []byte) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var result sql.Result
	if res.Duplicate.IsDuplicate {
		result, err = tx.ExecContext(ctx, `
			UPDATE reports
			SET is_duplicate = TRUE,
			    duplicate_of_report_id = $2,
			    model_version = $3,
			    ai_processed_at = $4,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $1 AND ai_processed_at IS NULL`,
			report.ID, res.Duplicate.DuplicateOfReportID, res.ModelVersion, res.ClassifiedAt)
	} else {
		var departmentID *int64
		if res.Action == domain.ActionAssignDepartment || res.Action == domain.ActionAssignOfficer {
			id := res.Routing.Department.ID()
			departmentID = &id
		}
		var reviewReason *string
		if res.ReviewReason != "" {
			reviewReason = &res.ReviewReason
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE reports
			SET ai_category = $2,
			    ai_severity = $3,
			    ai_confidence = $4,
			    model_version = $5,
			    ai_processed_at = $6,
			    status = $7,
			    department_id = $8,
			    needs_review = $9,
			    review_reason = $10,
			    version = version + 1,
			    updated_at = NOW()
			WHERE id = $1 AND ai_processed_at IS NULL`,
			report.ID, res.Category.Category, res.Severity.Severity,
			res.OverallConfidence, res.ModelVersion, res.ClassifiedAt,
			res.TargetStatus, departmentID, res.NeedsReview, reviewReason)
	}
	if err != nil {
		return fmt.Errorf("failed to update report %d: %w", report.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, report.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check report %d: %w", report.ID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyProcessed
	}

	// Duplicates stay frozen at their current status, so only real
	// classifications produce a history row.
	if !res.Duplicate.IsDuplicate {
		notes := fmt.Sprintf("auto-classification: %s (confidence %.2f)", res.Action, res.OverallConfidence)
		if err = insertHistoryTx(ctx, tx, report.ID, report.Status, res.TargetStatus, nil, notes); err != nil {
			return err
		}
	}

	if len(outboxPayload) > 0 {
		if err = insertOutboxTx(ctx, tx, report.ID, outboxPayload); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit classification for report %d: %w", report.ID, err)
	}

	return nil
}

// ApplyTransition moves the report to change.To and appends one history row,
// both in a single transaction. The version guard rejects writes computed
// against a stale read with domain.ErrStaleReport.
func (r *ReportRepository) ApplyTransition(ctx context.Context, change lifecycle.StatusChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = applyTransitionTx(ctx, tx, change); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for report %d: %w", change.ReportID, err)
	}

	return nil
}

// applyTransitionTx performs the guarded status UPDATE plus its history row
// inside an open transaction. The appeal and feedback repositories reuse it
// so derived transitions land atomically with their trigger row.
func applyTransitionTx(ctx context.Context, tx *sqlx.Tx, change lifecycle.StatusChange) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE reports
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		change.To, change.ReportID, change.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update status of report %d: %w", change.ReportID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, change.ReportID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check report %d: %w", change.ReportID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrStaleReport
	}

	return insertHistoryTx(ctx, tx, change.ReportID, change.From, change.To, change.ChangedBy, change.Notes)
}

// CategoryAccuracy aggregates classification quality for one category over a
// trailing window.
type CategoryAccuracy struct {
	Category      domain.Category `db:"category" json:"category"`
	Processed     int64           `db:"processed" json:"processed"`
	AvgConfidence float64         `db:"avg_confidence" json:"avg_confidence"`
	MinConfidence float64         `db:"min_confidence" json:"min_confidence"`
	MaxConfidence float64         `db:"max_confidence" json:"max_confidence"`
	NeedsReview   int64           `db:"needs_review" json:"needs_review"`
}

// AccuracyStats summarizes per-category confidence for reports classified in
// the trailing window. Duplicates carry no category and fall out of the
// aggregation naturally.
func (r *ReportRepository) AccuracyStats(ctx context.Context, window time.Duration) ([]CategoryAccuracy, error) {
	query := `
		SELECT ai_category AS category,
		       COUNT(*) AS processed,
		       COALESCE(AVG(ai_confidence), 0) AS avg_confidence,
		       COALESCE(MIN(ai_confidence), 0) AS min_confidence,
		       COALESCE(MAX(ai_confidence), 0) AS max_confidence,
		       COUNT(*) FILTER (WHERE needs_review) AS needs_review
		FROM reports
		WHERE ai_category IS NOT NULL
		  AND ai_processed_at >= NOW() - ($1 * INTERVAL '1 second')
		GROUP BY ai_category
		ORDER BY processed DESC`

	stats := []CategoryAccuracy{}
	if err := r.db.SelectContext(ctx, &stats, query, int64(window.Seconds())); err != nil {
		return nil, fmt.Errorf("failed to load accuracy stats: %w", err)
	}

	return stats, nil
}
