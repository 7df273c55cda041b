package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/lifecycle"
)

// AppealRepository persists appeals and their review decisions.
type AppealRepository struct {
	db *sqlx.DB
}

// NewAppealRepository creates a new appeal repository.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

// GetAppeal loads one appeal by ID.
func (r *AppealRepository) GetAppeal(ctx context.Context, id int64) (*domain.Appeal, error) {
	query := `
		SELECT id, report_id, appeal_type, status, reason, evidence, submitted_by,
		       reviewed_by, review_notes, created_at, updated_at, resolved_at
		FROM appeals
		WHERE id = $1`

	var appeal domain.Appeal
	if err := r.db.GetContext(ctx, &appeal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appeal %d: %w", id, err)
	}

	return &appeal, nil
}

// CountAppeals returns how many appeals the report has accumulated, in any
// status. Withdrawn and rejected appeals still count toward the cap.
func (r *AppealRepository) CountAppeals(ctx context.Context, reportID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM appeals WHERE report_id = $1`, reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to count appeals for report %d: %w", reportID, err)
	}

	return count, nil
}

// CreateAppeal inserts a new appeal and fills in its generated fields.
func (r *AppealRepository) CreateAppeal(ctx context.Context, appeal *domain.Appeal) error {
	query := `
		INSERT INTO appeals (report_id, appeal_type, status, reason, evidence, submitted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		appeal.ReportID, appeal.AppealType, appeal.Status,
		appeal.Reason, appeal.Evidence, appeal.SubmittedBy,
	).Scan(&appeal.ID, &appeal.CreatedAt, &appeal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appeal for report %d: %w", appeal.ReportID, err)
	}

	return nil
}

// ResolveAppeal records the review decision and, when change is non-nil,
// applies the derived status change in the same transaction. The resolved_at
// guard rejects a second concurrent review of the same appeal.
func (r *AppealRepository) ResolveAppeal(ctx context.Context, appeal *domain.Appeal, change *lifecycle.StatusChange) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE appeals
		SET status = $2, reviewed_by = $3, review_notes = $4, resolved_at = $5, updated_at = NOW()
		WHERE id = $1 AND resolved_at IS NULL`,
		appeal.ID, appeal.Status, appeal.ReviewedBy, appeal.ReviewNotes, appeal.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to resolve appeal %d: %w", appeal.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM appeals WHERE id = $1)`, appeal.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check appeal %d: %w", appeal.ID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.NewValidationError("appeal_open", "appeal %d is already resolved", appeal.ID)
	}

	if change != nil {
		if err = applyTransitionTx(ctx, tx, *change); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolution of appeal %d: %w", appeal.ID, err)
	}

	return nil
}
