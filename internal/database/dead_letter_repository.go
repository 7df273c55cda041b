package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/domain"
)

// DeadLetterRepository manages the dead-letter table that parks reports the
// pipeline could not process.
type DeadLetterRepository struct {
	db *sqlx.DB
}

// NewDeadLetterRepository creates a new dead-letter repository.
func NewDeadLetterRepository(db *sqlx.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Enqueue adds a failed report to the DLQ. A repeat failure for the same
// report increments the existing row instead of inserting, with the next
// retry pushed out exponentially.
func (r *DeadLetterRepository) Enqueue(ctx context.Context, entry *domain.DeadLetterEntry) error {
	query := `
		INSERT INTO dead_letter_queue
			(report_id, queue_name, error_message, error_code, retry_count, max_retries, next_retry_at, created_at, last_attempt_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, NOW(), NOW())
		ON CONFLICT (report_id) DO UPDATE SET
			retry_count = dead_letter_queue.retry_count + 1,
			error_message = EXCLUDED.error_message,
			error_code = EXCLUDED.error_code,
			last_attempt_at = NOW(),
			next_retry_at = NOW() + (INTERVAL '1 second' * LEAST(POWER(2, dead_letter_queue.retry_count + 1) * 60, 3600))
		WHERE dead_letter_queue.retry_count < dead_letter_queue.max_retries`

	_, err := r.db.ExecContext(ctx, query,
		entry.ReportID,
		entry.QueueName,
		entry.ErrorMessage,
		entry.ErrorCode,
		entry.MaxRetries,
		entry.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue DLQ: %w", err)
	}
	return nil
}

// FetchRetryable returns reports ready for retry with row-level locking.
// Uses FOR UPDATE SKIP LOCKED to allow concurrent workers.
func (r *DeadLetterRepository) FetchRetryable(ctx context.Context, limit int) ([]domain.DeadLetterEntry, error) {
	query := `
		SELECT id, report_id, queue_name, error_message, error_code,
		       retry_count, max_retries, next_retry_at, created_at, last_attempt_at
		FROM dead_letter_queue
		WHERE next_retry_at <= NOW()
		  AND retry_count < max_retries
		ORDER BY next_retry_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	entries := make([]domain.DeadLetterEntry, 0, limit)
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("fetch retryable: %w", err)
	}
	return entries, nil
}

// Remove deletes a successfully reprocessed entry.
func (r *DeadLetterRepository) Remove(ctx context.Context, reportID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM dead_letter_queue WHERE report_id = $1`,
		reportID)
	if err != nil {
		return fmt.Errorf("remove from DLQ: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkExhausted flags an entry that must not be retried again, for alerting.
func (r *DeadLetterRepository) MarkExhausted(ctx context.Context, reportID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dead_letter_queue
		SET retry_count = max_retries,
		    last_attempt_at = NOW()
		WHERE report_id = $1`,
		reportID)
	if err != nil {
		return fmt.Errorf("mark exhausted: %w", err)
	}
	return nil
}

// UpdateRetryCount increments the retry count and schedules the next retry.
func (r *DeadLetterRepository) UpdateRetryCount(ctx context.Context, reportID int64, errorMsg string) error {
	query := `
		UPDATE dead_letter_queue
		SET retry_count = retry_count + 1,
		    error_message = $2,
		    last_attempt_at = NOW(),
		    next_retry_at = NOW() + (INTERVAL '1 second' * LEAST(POWER(2, retry_count + 1) * 60, 3600))
		WHERE report_id = $1
		  AND retry_count < max_retries`

	_, err := r.db.ExecContext(ctx, query, reportID, errorMsg)
	if err != nil {
		return fmt.Errorf("update retry count: %w", err)
	}
	return nil
}

// GetStats returns DLQ statistics for monitoring.
func (r *DeadLetterRepository) GetStats(ctx context.Context) (*domain.DLQStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE retry_count < max_retries) as pending,
			COUNT(*) FILTER (WHERE retry_count >= max_retries) as exhausted,
			COUNT(*) FILTER (WHERE next_retry_at <= NOW() AND retry_count < max_retries) as ready,
			COALESCE(AVG(retry_count), 0) as avg_retries,
			MIN(created_at) as oldest_entry
		FROM dead_letter_queue`

	var stats domain.DLQStats
	var oldestEntry sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Exhausted,
		&stats.Ready,
		&stats.AvgRetries,
		&oldestEntry,
	)
	if err != nil {
		return nil, fmt.Errorf("get DLQ stats: %w", err)
	}
	if oldestEntry.Valid {
		stats.OldestEntry = &oldestEntry.Time
	}
	return &stats, nil
}

// CountByErrorCode returns pending DLQ counts grouped by error code.
func (r *DeadLetterRepository) CountByErrorCode(ctx context.Context) ([]domain.DLQErrorCount, error) {
	query := `
		SELECT COALESCE(error_code, 'UNKNOWN') as error_code, COUNT(*) as count
		FROM dead_letter_queue
		WHERE retry_count < max_retries
		GROUP BY error_code
		ORDER BY COUNT(*) DESC`

	var result []domain.DLQErrorCount
	if err := r.db.SelectContext(ctx, &result, query); err != nil {
		return nil, fmt.Errorf("count by error code: %w", err)
	}
	return result, nil
}

// GetByReportID retrieves a single DLQ entry.
func (r *DeadLetterRepository) GetByReportID(ctx context.Context, reportID int64) (*domain.DeadLetterEntry, error) {
	query := `
		SELECT id, report_id, queue_name, error_message, error_code,
		       retry_count, max_retries, next_retry_at, created_at, last_attempt_at
		FROM dead_letter_queue
		WHERE report_id = $1`

	var e domain.DeadLetterEntry
	if err := r.db.GetContext(ctx, &e, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get DLQ entry for report %d: %w", reportID, err)
	}
	return &e, nil
}

// CleanupExhausted removes entries that burned through every retry and have
// not been touched for the retention period.
func (r *DeadLetterRepository) CleanupExhausted(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM dead_letter_queue
		WHERE retry_count >= max_retries
		  AND last_attempt_at < NOW() - ($1 * INTERVAL '1 second')`

	result, err := r.db.ExecContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("cleanup exhausted: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of entries in the DLQ.
func (r *DeadLetterRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM dead_letter_queue`)
	if err != nil {
		return 0, fmt.Errorf("count DLQ: %w", err)
	}
	return count, nil
}
