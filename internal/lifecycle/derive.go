package lifecycle

import (
	"fmt"

	"github.com/civicgrid/triage/internal/domain"
)

// Transition is one status edge together with the note recorded on its
// history row.
type Transition struct {
	From  domain.Status
	To    domain.Status
	Notes string
}

// AppealEvent is a settled appeal decision.
type AppealEvent struct {
	Type     domain.AppealType
	Decision domain.AppealStatus
}

// FeedbackEvent is a submitted citizen feedback.
type FeedbackEvent struct {
	Satisfaction domain.SatisfactionLevel
}

// Event is an appeal decision or feedback submission against a report in
// Status. Exactly one of Appeal or Feedback is set.
type Event struct {
	Status   domain.Status
	Appeal   *AppealEvent
	Feedback *FeedbackEvent
}

// DeriveTransition maps an event to the status transition it implies, if
// any. It is the single source of truth for derived edges: satisfied
// feedback closes a resolved report, and an approved outcome appeal reopens
// a resolved, closed, or rejected one. Everything else implies no change.
func DeriveTransition(e Event) (Transition, bool) {
	switch {
	case e.Appeal != nil:
		if e.Appeal.Decision != domain.AppealApproved || !e.Appeal.Type.ChallengesOutcome() {
			return Transition{}, false
		}
		if !DerivedOnly(e.Status) {
			return Transition{}, false
		}
		return Transition{
			From:  e.Status,
			To:    domain.StatusReopened,
			Notes: fmt.Sprintf("approved %s appeal", e.Appeal.Type),
		}, true

	case e.Feedback != nil:
		if e.Status != domain.StatusResolved || !e.Feedback.Satisfaction.Satisfied() {
			return Transition{}, false
		}
		return Transition{
			From:  e.Status,
			To:    domain.StatusClosed,
			Notes: fmt.Sprintf("citizen feedback: %s", e.Feedback.Satisfaction),
		}, true
	}
	return Transition{}, false
}
