// Package notify produces notification intents for the external delivery
// service. Intents are appended to a Redis stream and consumed downstream;
// channel selection, user preferences, and actual delivery never happen
// here.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/logger"
	"github.com/civicgrid/triage/internal/queue"
)

// Stream message field names. The full intent travels as one JSON payload;
// template and report id are duplicated as flat fields so consumers can
// filter without parsing.
const (
	intentField    = "intent"
	templateField  = "template"
	reportIDField  = "report_id"
	emittedAtField = "emitted_at"
)

// Dispatcher appends notification intents to the notification stream.
type Dispatcher struct {
	client *queue.StreamsClient
	stream string
	logger logger.Logger
}

// NewDispatcher creates a dispatcher over the configured notification
// stream.
func NewDispatcher(client *queue.StreamsClient, cfg config.QueueConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		stream: cfg.NotificationStream,
		logger: log,
	}
}

// Emit appends one intent to the stream, filling in the id and timestamp
// when the producer left them empty. Callers treat failures as advisory:
// committed report state never depends on delivery.
func (d *Dispatcher) Emit(ctx context.Context, intent domain.NotificationIntent) error {
	if intent.Template == "" {
		return fmt.Errorf("intent for report %d has no template", intent.ReportID)
	}
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("serialize intent %s: %w", intent.ID, err)
	}

	id, err := d.client.XAdd(ctx, d.stream, map[string]any{
		intentField:    string(data),
		templateField:  intent.Template,
		reportIDField:  strconv.FormatInt(intent.ReportID, 10),
		emittedAtField: intent.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("emit intent %s for report %d: %w", intent.ID, intent.ReportID, err)
	}

	d.logger.Debug("notification intent emitted",
		logger.String("intent_id", intent.ID),
		logger.String("template", intent.Template),
		logger.Int64("report_id", intent.ReportID),
		logger.String("message_id", id))
	return nil
}

// DuplicateNotice builds the citizen-facing intent for a report
// short-circuited as a duplicate of an earlier open report.
func DuplicateNotice(report *domain.Report, match domain.DuplicateMatch) domain.NotificationIntent {
	data := map[string]string{
		"similarity": strconv.FormatFloat(match.Similarity, 'f', 2, 64),
	}
	if match.DuplicateOfReportID != nil {
		data["duplicate_of_report_id"] = strconv.FormatInt(*match.DuplicateOfReportID, 10)
	}
	return domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   report.ReporterID,
		RecipientRole: domain.RoleCitizen,
		Template:      domain.TemplateDuplicateNotice,
		ReportID:      report.ID,
		Data:          data,
		CreatedAt:     time.Now().UTC(),
	}
}

// ClassificationOutcome builds the citizen-facing intent for a committed
// classification verdict.
func ClassificationOutcome(report *domain.Report, result *domain.ClassificationResult) domain.NotificationIntent {
	template := domain.TemplateClassified
	if result.Action == domain.ActionAssignDepartment || result.Action == domain.ActionAssignOfficer {
		template = domain.TemplateAssigned
	}
	return domain.NotificationIntent{
		ID:            uuid.New().String(),
		RecipientID:   report.ReporterID,
		RecipientRole: domain.RoleCitizen,
		Template:      template,
		ReportID:      report.ID,
		Data: map[string]string{
			"category":   string(result.Category.Category),
			"severity":   string(result.Severity.Severity),
			"department": string(result.Routing.Department),
			"new_status": string(result.TargetStatus),
		},
		CreatedAt: time.Now().UTC(),
	}
}
