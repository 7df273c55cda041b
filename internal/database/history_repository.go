package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/domain"
)

// HistoryRepository reads the status audit trail of a report. Writes happen
// only inside report-mutating transactions via insertHistoryTx, so the trail
// can never disagree with the row it describes.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new status history repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// GetByReportID returns the report's status changes, oldest first.
func (r *HistoryRepository) GetByReportID(ctx context.Context, reportID int64) ([]domain.StatusHistory, error) {
	query := `
		SELECT id, report_id, previous_status, new_status, changed_by, changed_at, notes
		FROM status_history
		WHERE report_id = $1
		ORDER BY changed_at ASC, id ASC`

	var history []domain.StatusHistory
	if err := r.db.SelectContext(ctx, &history, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to get history for report %d: %w", reportID, err)
	}

	return history, nil
}

// insertHistoryTx appends one status change to the audit trail inside an
// open transaction.
func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, reportID int64, from, to domain.Status, changedBy *int64, notes string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO status_history (report_id, previous_status, new_status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, NOW(), $5)`,
		reportID, from, to, changedBy, notes)
	if err != nil {
		return fmt.Errorf("failed to insert status history for report %d: %w", reportID, err)
	}

	return nil
}
