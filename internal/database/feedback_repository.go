package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/lifecycle"
)

// pgUniqueViolation is the Postgres error code raised when an insert breaks
// a unique constraint.
const pgUniqueViolation = "23505"

// FeedbackRepository persists citizen resolution feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// FeedbackForReport returns the report's feedback or domain.ErrNotFound.
func (r *FeedbackRepository) FeedbackForReport(ctx context.Context, reportID int64) (*domain.Feedback, error) {
	query := `
		SELECT id, report_id, submitted_by, rating, satisfaction_level,
		       resolution_time_acceptable, work_quality_acceptable, staff_behavior_acceptable,
		       requires_followup, comments, created_at
		FROM feedback
		WHERE report_id = $1`

	var fb domain.Feedback
	if err := r.db.GetContext(ctx, &fb, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get feedback for report %d: %w", reportID, err)
	}

	return &fb, nil
}

// CreateFeedback inserts fb and, when change is non-nil, applies the derived
// status change in the same transaction. The unique index on report_id backs
// up the one-feedback-per-report rule against concurrent submissions.
func (r *FeedbackRepository) CreateFeedback(ctx context.Context, fb *domain.Feedback, change *lifecycle.StatusChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO feedback (report_id, submitted_by, rating, satisfaction_level,
		                      resolution_time_acceptable, work_quality_acceptable, staff_behavior_acceptable,
		                      requires_followup, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		fb.ReportID, fb.SubmittedBy, fb.Rating, fb.SatisfactionLevel,
		fb.ResolutionTimeAcceptable, fb.WorkQualityAcceptable, fb.StaffBehaviorAcceptable,
		fb.RequiresFollowup, fb.Comments,
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return domain.NewValidationError("single_feedback",
				"report %d already has feedback", fb.ReportID)
		}
		return fmt.Errorf("failed to create feedback for report %d: %w", fb.ReportID, err)
	}

	if change != nil {
		if err = applyTransitionTx(ctx, tx, *change); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback for report %d: %w", fb.ReportID, err)
	}

	return nil
}
