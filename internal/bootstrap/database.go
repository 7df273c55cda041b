package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/database"
	"github.com/civicgrid/triage/internal/logger"
)

// DatabaseComponents holds the database connection and repositories.
type DatabaseComponents struct {
	DB          *sqlx.DB
	Reports     *database.ReportRepository
	History     *database.HistoryRepository
	DeadLetters *database.DeadLetterRepository
	Appeals     *database.AppealRepository
	Feedback    *database.FeedbackRepository
	Escalations *database.EscalationRepository
	Outbox      *database.OutboxRepository
}

// SetupDatabase creates the database connection and repositories.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*DatabaseComponents, error) {
	log.Info("Connecting to PostgreSQL database",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connected successfully")

	return &DatabaseComponents{
		DB:          db,
		Reports:     database.NewReportRepository(db),
		History:     database.NewHistoryRepository(db),
		DeadLetters: database.NewDeadLetterRepository(db),
		Appeals:     database.NewAppealRepository(db),
		Feedback:    database.NewFeedbackRepository(db),
		Escalations: database.NewEscalationRepository(db),
		Outbox:      database.NewOutboxRepository(db),
	}, nil
}
