// Package api exposes the report lifecycle operations and the read-only
// monitoring surface over HTTP. Classification itself never runs here; the
// API only enqueues, reads, and applies the synchronous lifecycle flows.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicgrid/triage/internal/database"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/lifecycle"
	"github.com/civicgrid/triage/internal/logger"
)

const (
	defaultAccuracyWindowHours = 24
	maxAccuracyWindowHours     = 24 * 30
)

// Lifecycle drives report transitions and the appeal, feedback, and
// escalation flows around them.
type Lifecycle interface {
	RequestTransition(ctx context.Context, reportID int64, to domain.Status, actorID *int64, notes string) (*domain.Report, error)
	SubmitAppeal(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error)
	ReviewAppeal(ctx context.Context, appealID, reviewerID int64, decision domain.AppealStatus, notes string) (*domain.Appeal, error)
	SubmitFeedback(ctx context.Context, fb *domain.Feedback) (*domain.Feedback, error)
	RaiseEscalation(ctx context.Context, esc *domain.Escalation) (*domain.Escalation, error)
	ProgressEscalation(ctx context.Context, escalationID int64, to domain.EscalationStatus, notes string) (*domain.Escalation, error)
}

// ReportReader serves the report read endpoints.
type ReportReader interface {
	GetReport(ctx context.Context, id int64) (*domain.Report, error)
	AccuracyStats(ctx context.Context, window time.Duration) ([]database.CategoryAccuracy, error)
}

// HistoryReader lists a report's status history.
type HistoryReader interface {
	GetByReportID(ctx context.Context, reportID int64) ([]domain.StatusHistory, error)
}

// StreamMonitor reads the processing and failed stream depths.
type StreamMonitor interface {
	QueueDepth(ctx context.Context) (int64, error)
	DeadLetterDepth(ctx context.Context) (int64, error)
}

// DLQMonitor reads dead-letter table state.
type DLQMonitor interface {
	GetStats(ctx context.Context) (*domain.DLQStats, error)
	CountByErrorCode(ctx context.Context) ([]domain.DLQErrorCount, error)
}

// WorkerLister returns the live worker heartbeats keyed by worker id.
type WorkerLister func(ctx context.Context) (map[string]time.Time, error)

// Handler holds the route handlers for the HTTP API.
type Handler struct {
	lifecycle Lifecycle
	reports   ReportReader
	history   HistoryReader
	streams   StreamMonitor
	dlq       DLQMonitor
	workers   WorkerLister
	logger    logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	lc Lifecycle,
	reports ReportReader,
	history HistoryReader,
	streams StreamMonitor,
	dlq DLQMonitor,
	workers WorkerLister,
	log logger.Logger,
) *Handler {
	return &Handler{
		lifecycle: lc,
		reports:   reports,
		history:   history,
		streams:   streams,
		dlq:       dlq,
		workers:   workers,
		logger:    log,
	}
}

// renderError maps service errors onto HTTP statuses. Illegal transitions are
// 422 because the request was well formed but the state machine refuses the
// edge; precondition failures are plain 400s.
func (h *Handler) renderError(c *gin.Context, err error) {
	var invalidTransition *domain.InvalidTransitionError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &invalidTransition):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: invalidTransition.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Error()})
	case errors.Is(err, domain.ErrStaleReport):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "report changed concurrently, reload and retry"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		h.logger.Error("request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// parseID reads a positive int64 path parameter or writes a 400.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s %q", name, c.Param(name))})
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body or writes a 400.
func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request body",
			logger.String("path", c.FullPath()),
			logger.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// GetReport handles GET /api/v1/reports/:id.
func (h *Handler) GetReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// History handles GET /api/v1/reports/:id/history.
func (h *Handler) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if _, err := h.reports.GetReport(c.Request.Context(), id); err != nil {
		h.renderError(c, err)
		return
	}

	history, err := h.history.GetByReportID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{ReportID: id, History: history, Total: len(history)})
}

// AllowedNext handles GET /api/v1/reports/:id/allowed-next.
func (h *Handler) AllowedNext(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}

	derivedOnly := lifecycle.DerivedOnly(report.Status)
	next := lifecycle.AllowedNext(report.Status)
	if report.Frozen() || derivedOnly {
		next = []domain.Status{}
	}

	c.JSON(http.StatusOK, AllowedNextResponse{
		ReportID:    report.ID,
		Status:      report.Status,
		Next:        next,
		DerivedOnly: derivedOnly,
		Terminal:    lifecycle.IsTerminal(report.Status),
	})
}

// Transition handles POST /api/v1/reports/:id/transition.
func (h *Handler) Transition(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	report, err := h.lifecycle.RequestTransition(c.Request.Context(), id, req.To, req.ActorID, req.Notes)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SubmitAppeal handles POST /api/v1/reports/:id/appeals.
func (h *Handler) SubmitAppeal(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req AppealRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appeal := &domain.Appeal{
		ReportID:    id,
		AppealType:  req.AppealType,
		Reason:      req.Reason,
		Evidence:    req.Evidence,
		SubmittedBy: req.SubmittedBy,
	}
	created, err := h.lifecycle.SubmitAppeal(c.Request.Context(), appeal)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ReviewAppeal handles POST /api/v1/appeals/:appeal_id/review.
func (h *Handler) ReviewAppeal(c *gin.Context) {
	appealID, ok := parseID(c, "appeal_id")
	if !ok {
		return
	}

	var req AppealReviewRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appeal, err := h.lifecycle.ReviewAppeal(c.Request.Context(), appealID, req.ReviewerID, req.Decision, req.Notes)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, appeal)
}

// SubmitFeedback handles POST /api/v1/reports/:id/feedback.
func (h *Handler) SubmitFeedback(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req FeedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}

	fb := &domain.Feedback{
		ReportID:                 id,
		SubmittedBy:              req.SubmittedBy,
		Rating:                   req.Rating,
		SatisfactionLevel:        req.SatisfactionLevel,
		ResolutionTimeAcceptable: req.ResolutionTimeAcceptable,
		WorkQualityAcceptable:    req.WorkQualityAcceptable,
		StaffBehaviorAcceptable:  req.StaffBehaviorAcceptable,
		RequiresFollowup:         req.RequiresFollowup,
		Comments:                 req.Comments,
	}
	created, err := h.lifecycle.SubmitFeedback(c.Request.Context(), fb)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// RaiseEscalation handles POST /api/v1/reports/:id/escalations.
func (h *Handler) RaiseEscalation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req EscalationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	esc := &domain.Escalation{
		ReportID:   id,
		Level:      req.Level,
		Trigger:    req.Trigger,
		Reason:     req.Reason,
		RaisedBy:   req.RaisedBy,
		AssignedTo: req.AssignedTo,
	}
	created, err := h.lifecycle.RaiseEscalation(c.Request.Context(), esc)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ProgressEscalation handles POST /api/v1/escalations/:escalation_id/progress.
func (h *Handler) ProgressEscalation(c *gin.Context) {
	escalationID, ok := parseID(c, "escalation_id")
	if !ok {
		return
	}

	var req EscalationProgressRequest
	if !h.bindJSON(c, &req) {
		return
	}

	esc, err := h.lifecycle.ProgressEscalation(c.Request.Context(), escalationID, req.To, req.Notes)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}

// Heartbeat handles GET /api/v1/monitoring/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	beats, err := h.workers(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	now := time.Now().UTC()
	workers := make([]WorkerStatus, 0, len(beats))
	for id, beat := range beats {
		workers = append(workers, WorkerStatus{
			WorkerID:   id,
			LastBeat:   beat,
			AgeSeconds: now.Sub(beat).Seconds(),
		})
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].WorkerID < workers[j].WorkerID })

	c.JSON(http.StatusOK, HeartbeatResponse{Workers: workers, Alive: len(workers)})
}

// Queue handles GET /api/v1/monitoring/queue.
func (h *Handler) Queue(c *gin.Context) {
	ctx := c.Request.Context()

	depth, err := h.streams.QueueDepth(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	failedDepth, err := h.streams.DeadLetterDepth(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	stats, err := h.dlq.GetStats(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	counts, err := h.dlq.CountByErrorCode(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, QueueResponse{
		QueueDepth:      depth,
		DeadLetterDepth: failedDepth,
		DLQ:             stats,
		ErrorCounts:     counts,
	})
}

// Accuracy handles GET /api/v1/monitoring/accuracy. The optional hours query
// parameter sizes the trailing window, default 24, capped at 30 days.
func (h *Handler) Accuracy(c *gin.Context) {
	hours := defaultAccuracyWindowHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxAccuracyWindowHours {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("hours must be an integer between 1 and %d", maxAccuracyWindowHours),
			})
			return
		}
		hours = parsed
	}

	stats, err := h.reports.AccuracyStats(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, AccuracyResponse{WindowHours: hours, Categories: stats})
}
