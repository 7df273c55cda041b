package lifecycle_test

import (
	"testing"

	"github.com/civicgrid/triage/internal/domain"
	"github.com/civicgrid/triage/internal/lifecycle"
)

func TestDeriveTransition_Appeals(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.Status
		appealType domain.AppealType
		decision   domain.AppealStatus
		wantTo     domain.Status
		derived    bool
	}{
		{"approved resolution appeal reopens resolved", domain.StatusResolved, domain.AppealCitizenResolution, domain.AppealApproved, domain.StatusReopened, true},
		{"approved resolution appeal reopens closed", domain.StatusClosed, domain.AppealCitizenResolution, domain.AppealApproved, domain.StatusReopened, true},
		{"approved rejection appeal reopens rejected", domain.StatusRejected, domain.AppealCitizenRejection, domain.AppealApproved, domain.StatusReopened, true},

		{"rejected resolution appeal changes nothing", domain.StatusResolved, domain.AppealCitizenResolution, domain.AppealRejected, "", false},
		{"withdrawn resolution appeal changes nothing", domain.StatusResolved, domain.AppealCitizenResolution, domain.AppealWithdrawn, "", false},

		// Approved appeals that do not challenge the outcome are corrected in
		// place and never move the status.
		{"approved classification appeal changes nothing", domain.StatusClassified, domain.AppealCitizenClassification, domain.AppealApproved, "", false},
		{"approved officer assignment appeal changes nothing", domain.StatusAssignedToOfficer, domain.AppealOfficerAssignment, domain.AppealApproved, "", false},
		{"approved admin reassignment appeal changes nothing", domain.StatusAssignedToDepartment, domain.AppealAdminReassignment, domain.AppealApproved, "", false},

		// Outcome appeals only fire from the outcome statuses.
		{"approved resolution appeal from in_progress changes nothing", domain.StatusInProgress, domain.AppealCitizenResolution, domain.AppealApproved, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, derived := lifecycle.DeriveTransition(lifecycle.Event{
				Status: tt.status,
				Appeal: &lifecycle.AppealEvent{Type: tt.appealType, Decision: tt.decision},
			})
			if derived != tt.derived {
				t.Fatalf("derived = %v, want %v", derived, tt.derived)
			}
			if !derived {
				return
			}
			if tr.From != tt.status || tr.To != tt.wantTo {
				t.Errorf("transition %s -> %s, want %s -> %s", tr.From, tr.To, tt.status, tt.wantTo)
			}
			if tr.Notes == "" {
				t.Error("derived transition should carry a history note")
			}
		})
	}
}

func TestDeriveTransition_Feedback(t *testing.T) {
	tests := []struct {
		name         string
		status       domain.Status
		satisfaction domain.SatisfactionLevel
		derived      bool
	}{
		{"satisfied feedback closes resolved", domain.StatusResolved, domain.SatisfactionSatisfied, true},
		{"very satisfied feedback closes resolved", domain.StatusResolved, domain.SatisfactionVerySatisfied, true},
		{"neutral feedback leaves resolved", domain.StatusResolved, domain.SatisfactionNeutral, false},
		{"dissatisfied feedback leaves resolved", domain.StatusResolved, domain.SatisfactionDissatisfied, false},
		{"very dissatisfied feedback leaves resolved", domain.StatusResolved, domain.SatisfactionVeryDissatisfied, false},

		// Feedback on an already closed report never re-fires the edge.
		{"satisfied feedback on closed changes nothing", domain.StatusClosed, domain.SatisfactionSatisfied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, derived := lifecycle.DeriveTransition(lifecycle.Event{
				Status:   tt.status,
				Feedback: &lifecycle.FeedbackEvent{Satisfaction: tt.satisfaction},
			})
			if derived != tt.derived {
				t.Fatalf("derived = %v, want %v", derived, tt.derived)
			}
			if derived && tr.To != domain.StatusClosed {
				t.Errorf("feedback derives %s -> %s, want close", tr.From, tr.To)
			}
		})
	}
}

func TestDeriveTransition_EmptyEvent(t *testing.T) {
	if _, derived := lifecycle.DeriveTransition(lifecycle.Event{Status: domain.StatusResolved}); derived {
		t.Error("an event with neither appeal nor feedback must not derive a transition")
	}
}
