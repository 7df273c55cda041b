package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/domain"
)

// EscalationRepository persists escalations raised against reports.
type EscalationRepository struct {
	db *sqlx.DB
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(db *sqlx.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// GetEscalation loads one escalation by ID.
func (r *EscalationRepository) GetEscalation(ctx context.Context, id int64) (*domain.Escalation, error) {
	query := `
		SELECT id, report_id, level, "trigger", reason, status, raised_by,
		       assigned_to, notes, created_at, updated_at, resolved_at
		FROM escalations
		WHERE id = $1`

	var esc domain.Escalation
	if err := r.db.GetContext(ctx, &esc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get escalation %d: %w", id, err)
	}

	return &esc, nil
}

// CreateEscalation inserts a new escalation and fills in its generated fields.
func (r *EscalationRepository) CreateEscalation(ctx context.Context, esc *domain.Escalation) error {
	query := `
		INSERT INTO escalations (report_id, level, "trigger", reason, status, raised_by, assigned_to, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		esc.ReportID, esc.Level, esc.Trigger, esc.Reason, esc.Status,
		esc.RaisedBy, esc.AssignedTo, esc.Notes,
	).Scan(&esc.ID, &esc.CreatedAt, &esc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escalation for report %d: %w", esc.ReportID, err)
	}

	return nil
}

// UpdateEscalation writes the mutable escalation fields back to the row.
func (r *EscalationRepository) UpdateEscalation(ctx context.Context, esc *domain.Escalation) error {
	query := `
		UPDATE escalations
		SET level = $2, status = $3, assigned_to = $4, notes = $5, resolved_at = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		esc.ID, esc.Level, esc.Status, esc.AssignedTo, esc.Notes, esc.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update escalation %d: %w", esc.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
