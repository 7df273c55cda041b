package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicgrid/triage/internal/api"
	"github.com/civicgrid/triage/internal/database"
	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/health"
	"github.com/civicgrid/triage/internal/logger"
)

type fakeLifecycle struct {
	transition func(reportID int64, to domain.Status, actorID *int64, notes string) (*domain.Report, error)
	appeal     func(appeal *domain.Appeal) (*domain.Appeal, error)
	review     func(appealID, reviewerID int64, decision domain.AppealStatus, notes string) (*domain.Appeal, error)
	feedback   func(fb *domain.Feedback) (*domain.Feedback, error)
	escalate   func(esc *domain.Escalation) (*domain.Escalation, error)
	progress   func(escalationID int64, to domain.EscalationStatus, notes string) (*domain.Escalation, error)
}

func (f *fakeLifecycle) RequestTransition(_ context.Context, reportID int64, to domain.Status, actorID *int64, notes string) (*domain.Report, error) {
	return f.transition(reportID, to, actorID, notes)
}

func (f *fakeLifecycle) SubmitAppeal(_ context.Context, appeal *domain.Appeal) (*domain.Appeal, error) {
	return f.appeal(appeal)
}

func (f *fakeLifecycle) ReviewAppeal(_ context.Context, appealID, reviewerID int64, decision domain.AppealStatus, notes string) (*domain.Appeal, error) {
	return f.review(appealID, reviewerID, decision, notes)
}

func (f *fakeLifecycle) SubmitFeedback(_ context.Context, fb *domain.Feedback) (*domain.Feedback, error) {
	return f.feedback(fb)
}

func (f *fakeLifecycle) RaiseEscalation(_ context.Context, esc *domain.Escalation) (*domain.Escalation, error) {
	return f.escalate(esc)
}

func (f *fakeLifecycle) ProgressEscalation(_ context.Context, escalationID int64, to domain.EscalationStatus, notes string) (*domain.Escalation, error) {
	return f.progress(escalationID, to, notes)
}

type fakeReports struct {
	reports    map[int64]*domain.Report
	accuracy   []database.CategoryAccuracy
	lastWindow time.Duration
}

func (f *fakeReports) GetReport(_ context.Context, id int64) (*domain.Report, error) {
	report, ok := f.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return report, nil
}

func (f *fakeReports) AccuracyStats(_ context.Context, window time.Duration) ([]database.CategoryAccuracy, error) {
	f.lastWindow = window
	return f.accuracy, nil
}

type fakeHistory struct {
	rows []domain.StatusHistory
}

func (f *fakeHistory) GetByReportID(_ context.Context, _ int64) ([]domain.StatusHistory, error) {
	return f.rows, nil
}

type fakeStreams struct {
	queueDepth  int64
	failedDepth int64
}

func (f *fakeStreams) QueueDepth(context.Context) (int64, error)      { return f.queueDepth, nil }
func (f *fakeStreams) DeadLetterDepth(context.Context) (int64, error) { return f.failedDepth, nil }

type fakeDLQ struct {
	stats  *domain.DLQStats
	counts []domain.DLQErrorCount
}

func (f *fakeDLQ) GetStats(context.Context) (*domain.DLQStats, error) { return f.stats, nil }

func (f *fakeDLQ) CountByErrorCode(context.Context) ([]domain.DLQErrorCount, error) {
	return f.counts, nil
}

type testAPI struct {
	lifecycle *fakeLifecycle
	reports   *fakeReports
	history   *fakeHistory
	beat      time.Time
	router    *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ta := &testAPI{
		lifecycle: &fakeLifecycle{},
		reports:   &fakeReports{reports: map[int64]*domain.Report{}},
		history:   &fakeHistory{},
		beat:      time.Now().UTC().Add(-10 * time.Second),
	}

	streams := &fakeStreams{queueDepth: 4, failedDepth: 1}
	dlq := &fakeDLQ{
		stats:  &domain.DLQStats{Pending: 2, Exhausted: 3, Ready: 1, AvgRetries: 1.5},
		counts: []domain.DLQErrorCount{{ErrorCode: domain.ErrorCodeZeroShotTimeout, Count: 2}},
	}
	workers := func(context.Context) (map[string]time.Time, error) {
		return map[string]time.Time{"worker-2": ta.beat, "worker-1": ta.beat}, nil
	}

	handler := api.NewHandler(ta.lifecycle, ta.reports, ta.history, streams, dlq, workers, logger.NewNop())
	ta.router = gin.New()
	api.RegisterRoutes(ta.router, handler, health.NewChecker(), nil)
	return ta
}

func (ta *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	return ta.doRaw(method, path, reader)
}

func (ta *testAPI) doRaw(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func sampleReport(id int64, status domain.Status) *domain.Report {
	return &domain.Report{
		ID:          id,
		Title:       "Streetlight out on Pine",
		Description: "The light has been dark for a week",
		ReporterID:  7,
		Status:      status,
		Version:     2,
	}
}

func TestTransitionEndpoint(t *testing.T) {
	t.Run("applies a legal transition", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.transition = func(reportID int64, to domain.Status, actorID *int64, notes string) (*domain.Report, error) {
			if reportID != 42 || to != domain.StatusInProgress {
				t.Errorf("RequestTransition(%d, %s)", reportID, to)
			}
			if actorID == nil || *actorID != 9 {
				t.Errorf("actor = %v, want 9", actorID)
			}
			if notes != "crew dispatched" {
				t.Errorf("notes = %q", notes)
			}
			return sampleReport(42, domain.StatusInProgress), nil
		}

		actor := int64(9)
		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/transition", api.TransitionRequest{
			To:      domain.StatusInProgress,
			ActorID: &actor,
			Notes:   "crew dispatched",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var report domain.Report
		decodeJSON(t, rec, &report)
		if report.ID != 42 || report.Status != domain.StatusInProgress {
			t.Errorf("response report = %d/%s", report.ID, report.Status)
		}
	})

	t.Run("illegal edge maps to 422", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.transition = func(int64, domain.Status, *int64, string) (*domain.Report, error) {
			return nil, domain.NewInvalidTransition(domain.StatusReceived, domain.StatusResolved)
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/transition",
			api.TransitionRequest{To: domain.StatusResolved})

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		var body api.ErrorResponse
		decodeJSON(t, rec, &body)
		if !strings.Contains(body.Error, "invalid status transition") {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("precondition failure maps to 400", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.transition = func(int64, domain.Status, *int64, string) (*domain.Report, error) {
			return nil, domain.NewValidationError("report_not_duplicate",
				"report 42 is a duplicate and its lifecycle is frozen")
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/transition",
			api.TransitionRequest{To: domain.StatusInProgress})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("stale version maps to 409", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.transition = func(int64, domain.Status, *int64, string) (*domain.Report, error) {
			return nil, domain.ErrStaleReport
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/transition",
			api.TransitionRequest{To: domain.StatusInProgress})

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("missing report maps to 404", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.transition = func(int64, domain.Status, *int64, string) (*domain.Report, error) {
			return nil, domain.ErrNotFound
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/transition",
			api.TransitionRequest{To: domain.StatusInProgress})

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("garbled body maps to 400", func(t *testing.T) {
		ta := newTestAPI(t)
		rec := ta.doRaw(http.MethodPost, "/api/v1/reports/42/transition", strings.NewReader("{not json"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("non-numeric id maps to 400", func(t *testing.T) {
		ta := newTestAPI(t)
		rec := ta.do(t, http.MethodPost, "/api/v1/reports/abc/transition",
			api.TransitionRequest{To: domain.StatusInProgress})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestAppealEndpoints(t *testing.T) {
	t.Run("submit returns 201", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.appeal = func(appeal *domain.Appeal) (*domain.Appeal, error) {
			if appeal.ReportID != 42 || appeal.AppealType != domain.AppealCitizenClassification {
				t.Errorf("SubmitAppeal(%d, %s)", appeal.ReportID, appeal.AppealType)
			}
			appeal.ID = 5
			appeal.Status = domain.AppealSubmitted
			return appeal, nil
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/appeals", api.AppealRequest{
			AppealType:  domain.AppealCitizenClassification,
			Reason:      "this is a pothole, not a streetlight issue",
			SubmittedBy: 7,
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var appeal domain.Appeal
		decodeJSON(t, rec, &appeal)
		if appeal.ID != 5 || appeal.Status != domain.AppealSubmitted {
			t.Errorf("appeal = %d/%s", appeal.ID, appeal.Status)
		}
	})

	t.Run("appeal cap maps to 400", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.appeal = func(*domain.Appeal) (*domain.Appeal, error) {
			return nil, domain.NewValidationError("appeal_cap", "report 42 already has 3 appeals, the maximum")
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/appeals", api.AppealRequest{
			AppealType:  domain.AppealCitizenClassification,
			Reason:      "wrong category",
			SubmittedBy: 7,
		})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("review returns the decided appeal", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.review = func(appealID, reviewerID int64, decision domain.AppealStatus, notes string) (*domain.Appeal, error) {
			if appealID != 5 || reviewerID != 3 || decision != domain.AppealApproved {
				t.Errorf("ReviewAppeal(%d, %d, %s)", appealID, reviewerID, decision)
			}
			return &domain.Appeal{ID: appealID, ReportID: 42, Status: decision, ReviewNotes: notes}, nil
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/appeals/5/review", api.AppealReviewRequest{
			ReviewerID: 3,
			Decision:   domain.AppealApproved,
			Notes:      "photo evidence supports the claim",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var appeal domain.Appeal
		decodeJSON(t, rec, &appeal)
		if appeal.Status != domain.AppealApproved {
			t.Errorf("appeal status = %s", appeal.Status)
		}
	})
}

func TestFeedbackEndpoint(t *testing.T) {
	ta := newTestAPI(t)
	ta.lifecycle.feedback = func(fb *domain.Feedback) (*domain.Feedback, error) {
		if fb.ReportID != 42 || fb.SubmittedBy != 7 {
			t.Errorf("SubmitFeedback(report %d, by %d)", fb.ReportID, fb.SubmittedBy)
		}
		if fb.Rating != 4 || fb.SatisfactionLevel != domain.SatisfactionSatisfied {
			t.Errorf("feedback = %d/%s", fb.Rating, fb.SatisfactionLevel)
		}
		fb.ID = 11
		return fb, nil
	}

	rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/feedback", api.FeedbackRequest{
		SubmittedBy:              7,
		Rating:                   4,
		SatisfactionLevel:        domain.SatisfactionSatisfied,
		ResolutionTimeAcceptable: true,
		WorkQualityAcceptable:    true,
		StaffBehaviorAcceptable:  true,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var fb domain.Feedback
	decodeJSON(t, rec, &fb)
	if fb.ID != 11 {
		t.Errorf("feedback id = %d, want 11", fb.ID)
	}
}

func TestEscalationEndpoints(t *testing.T) {
	t.Run("raise returns 201", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.escalate = func(esc *domain.Escalation) (*domain.Escalation, error) {
			if esc.ReportID != 42 || esc.Level != domain.EscalationL2 {
				t.Errorf("RaiseEscalation(%d, %s)", esc.ReportID, esc.Level)
			}
			esc.ID = 8
			esc.Status = domain.EscalationEscalated
			return esc, nil
		}

		raisedBy := int64(3)
		rec := ta.do(t, http.MethodPost, "/api/v1/reports/42/escalations", api.EscalationRequest{
			Level:    domain.EscalationL2,
			Trigger:  domain.TriggerSLABreach,
			Reason:   "open for 30 days past target",
			RaisedBy: &raisedBy,
		})

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var esc domain.Escalation
		decodeJSON(t, rec, &esc)
		if esc.ID != 8 || esc.Status != domain.EscalationEscalated {
			t.Errorf("escalation = %d/%s", esc.ID, esc.Status)
		}
	})

	t.Run("progress advances the chain", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.progress = func(escalationID int64, to domain.EscalationStatus, notes string) (*domain.Escalation, error) {
			if escalationID != 8 || to != domain.EscalationAcknowledged {
				t.Errorf("ProgressEscalation(%d, %s)", escalationID, to)
			}
			return &domain.Escalation{ID: escalationID, ReportID: 42, Status: to, Notes: notes}, nil
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/escalations/8/progress", api.EscalationProgressRequest{
			To:    domain.EscalationAcknowledged,
			Notes: "supervisor notified",
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var esc domain.Escalation
		decodeJSON(t, rec, &esc)
		if esc.Status != domain.EscalationAcknowledged {
			t.Errorf("escalation status = %s", esc.Status)
		}
	})

	t.Run("illegal progression maps to 400", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.lifecycle.progress = func(int64, domain.EscalationStatus, string) (*domain.Escalation, error) {
			return nil, domain.NewValidationError("escalation_progression",
				"escalation cannot move from escalated to resolved")
		}

		rec := ta.do(t, http.MethodPost, "/api/v1/escalations/8/progress", api.EscalationProgressRequest{
			To: domain.EscalationResolved,
		})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestReportReadEndpoints(t *testing.T) {
	t.Run("get returns the report", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.reports.reports[42] = sampleReport(42, domain.StatusAcknowledged)

		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var report domain.Report
		decodeJSON(t, rec, &report)
		if report.ID != 42 || report.Status != domain.StatusAcknowledged {
			t.Errorf("report = %d/%s", report.ID, report.Status)
		}
	})

	t.Run("missing report returns 404", func(t *testing.T) {
		ta := newTestAPI(t)
		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("history lists status changes", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.reports.reports[42] = sampleReport(42, domain.StatusInProgress)
		ta.history.rows = []domain.StatusHistory{
			{ID: 1, ReportID: 42, PreviousStatus: domain.StatusReceived, NewStatus: domain.StatusAssignedToDepartment},
			{ID: 2, ReportID: 42, PreviousStatus: domain.StatusAssignedToDepartment, NewStatus: domain.StatusAssignedToOfficer},
		}

		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42/history", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body api.HistoryResponse
		decodeJSON(t, rec, &body)
		if body.Total != 2 || len(body.History) != 2 {
			t.Fatalf("history total = %d, rows %d", body.Total, len(body.History))
		}
		if body.History[0].NewStatus != domain.StatusAssignedToDepartment {
			t.Errorf("first row = %s", body.History[0].NewStatus)
		}
	})

	t.Run("allowed-next lists direct edges", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.reports.reports[42] = sampleReport(42, domain.StatusInProgress)

		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42/allowed-next", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body api.AllowedNextResponse
		decodeJSON(t, rec, &body)
		want := []domain.Status{domain.StatusOnHold, domain.StatusPendingVerification}
		if len(body.Next) != len(want) || body.Next[0] != want[0] || body.Next[1] != want[1] {
			t.Errorf("next = %v, want %v", body.Next, want)
		}
		if body.DerivedOnly || body.Terminal {
			t.Errorf("flags = derived %v terminal %v", body.DerivedOnly, body.Terminal)
		}
	})

	t.Run("allowed-next is empty for derived-only status", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.reports.reports[42] = sampleReport(42, domain.StatusResolved)

		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42/allowed-next", nil)
		var body api.AllowedNextResponse
		decodeJSON(t, rec, &body)
		if len(body.Next) != 0 {
			t.Errorf("next = %v, want empty", body.Next)
		}
		if !body.DerivedOnly {
			t.Error("DerivedOnly = false, want true")
		}
	})

	t.Run("allowed-next is empty for frozen duplicates", func(t *testing.T) {
		ta := newTestAPI(t)
		dup := sampleReport(42, domain.StatusReceived)
		dup.IsDuplicate = true
		ta.reports.reports[42] = dup

		rec := ta.do(t, http.MethodGet, "/api/v1/reports/42/allowed-next", nil)
		var body api.AllowedNextResponse
		decodeJSON(t, rec, &body)
		if len(body.Next) != 0 {
			t.Errorf("next = %v, want empty", body.Next)
		}
	})
}

func TestMonitoringEndpoints(t *testing.T) {
	t.Run("heartbeat lists live workers sorted", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodGet, "/api/v1/monitoring/heartbeat", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body api.HeartbeatResponse
		decodeJSON(t, rec, &body)
		if body.Alive != 2 || len(body.Workers) != 2 {
			t.Fatalf("alive = %d, workers %d", body.Alive, len(body.Workers))
		}
		if body.Workers[0].WorkerID != "worker-1" || body.Workers[1].WorkerID != "worker-2" {
			t.Errorf("worker order = %s, %s", body.Workers[0].WorkerID, body.Workers[1].WorkerID)
		}
		if body.Workers[0].AgeSeconds < 9 {
			t.Errorf("age = %v, want >= 9s", body.Workers[0].AgeSeconds)
		}
	})

	t.Run("queue reports depths and DLQ state", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodGet, "/api/v1/monitoring/queue", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body api.QueueResponse
		decodeJSON(t, rec, &body)
		if body.QueueDepth != 4 || body.DeadLetterDepth != 1 {
			t.Errorf("depths = %d/%d", body.QueueDepth, body.DeadLetterDepth)
		}
		if body.DLQ == nil || body.DLQ.Pending != 2 {
			t.Errorf("dlq = %+v", body.DLQ)
		}
		if len(body.ErrorCounts) != 1 || body.ErrorCounts[0].ErrorCode != domain.ErrorCodeZeroShotTimeout {
			t.Errorf("error counts = %+v", body.ErrorCounts)
		}
	})

	t.Run("accuracy defaults to 24 hours", func(t *testing.T) {
		ta := newTestAPI(t)
		ta.reports.accuracy = []database.CategoryAccuracy{
			{Category: domain.CategoryRoads, Processed: 31, AvgConfidence: 0.87, NeedsReview: 4},
		}

		rec := ta.do(t, http.MethodGet, "/api/v1/monitoring/accuracy", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body api.AccuracyResponse
		decodeJSON(t, rec, &body)
		if body.WindowHours != 24 {
			t.Errorf("window = %d, want 24", body.WindowHours)
		}
		if ta.reports.lastWindow != 24*time.Hour {
			t.Errorf("query window = %v", ta.reports.lastWindow)
		}
		if len(body.Categories) != 1 || body.Categories[0].Category != domain.CategoryRoads {
			t.Errorf("categories = %+v", body.Categories)
		}
	})

	t.Run("accuracy honors the hours parameter", func(t *testing.T) {
		ta := newTestAPI(t)

		rec := ta.do(t, http.MethodGet, "/api/v1/monitoring/accuracy?hours=48", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ta.reports.lastWindow != 48*time.Hour {
			t.Errorf("query window = %v, want 48h", ta.reports.lastWindow)
		}
	})

	t.Run("accuracy rejects a bad window", func(t *testing.T) {
		ta := newTestAPI(t)
		for _, hours := range []string{"0", "-3", "notanumber", "100000"} {
			rec := ta.do(t, http.MethodGet, "/api/v1/monitoring/accuracy?hours="+hours, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("hours=%s: status = %d, want 400", hours, rec.Code)
			}
		}
	})
}
