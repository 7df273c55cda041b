package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// OutboxEntry is one staged search-index update. Payload is the serialized
// index document, built at classification commit time so the relay never has
// to re-read the report.
type OutboxEntry struct {
	ID        int64      `db:"id"`
	ReportID  int64      `db:"report_id"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}

// OutboxRepository drains the transactional search outbox. Inserts happen
// only inside classification commits via insertOutboxTx, so an outbox row
// exists exactly when its report row carries the matching results.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// FetchUnsent returns the oldest staged entries not yet delivered to the
// search index.
func (r *OutboxRepository) FetchUnsent(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, report_id, payload, created_at, sent_at
		FROM search_outbox
		WHERE sent_at IS NULL
		ORDER BY id ASC
		LIMIT $1`

	entries := make([]OutboxEntry, 0, limit)
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("fetch unsent outbox entries: %w", err)
	}
	return entries, nil
}

// MarkSent stamps the entries as delivered to the search index.
func (r *OutboxRepository) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE search_outbox SET sent_at = NOW() WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox entries sent: %w", err)
	}
	return nil
}

// PendingCount returns how many staged entries still await delivery.
func (r *OutboxRepository) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM search_outbox WHERE sent_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return count, nil
}

// insertOutboxTx stages a search-index update inside an open transaction.
// The report_id conflict guard keeps a replayed classification commit from
// staging the same document twice.
func insertOutboxTx(ctx context.Context, tx *sqlx.Tx, reportID int64, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO search_outbox (report_id, payload, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (report_id) DO NOTHING`,
		reportID, payload)
	if err != nil {
		return fmt.Errorf("stage outbox entry for report %d: %w", reportID, err)
	}
	return nil
}
