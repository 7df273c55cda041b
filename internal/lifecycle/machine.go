// Package lifecycle implements the report status state machine and the human
// flows that drive it after classification: direct transitions by officers
// and admins, citizen appeals and feedback, and advisory escalations.
package lifecycle

import "github.com/civicgrid/triage/internal/domain"

// transitions is the adjacency table of legal status edges. A transition not
// listed here always fails and is never coerced.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusReceived: {
		domain.StatusPendingClassification, // pipeline: confidence below review band
		domain.StatusClassified,            // pipeline: classify-only band
		domain.StatusAssignedToDepartment,  // pipeline: department band
		domain.StatusAssignedToOfficer,     // pipeline: officer band
	},
	domain.StatusPendingClassification: {
		domain.StatusClassified,           // manual classification
		domain.StatusAssignedToDepartment, // manual classification with assignment
		domain.StatusAssignedToOfficer,
	},
	domain.StatusClassified: {
		domain.StatusAssignedToDepartment,
		domain.StatusAssignedToOfficer,
	},
	domain.StatusAssignedToDepartment: {
		domain.StatusAssignedToOfficer,
	},
	domain.StatusAssignedToOfficer: {
		domain.StatusAcknowledged,
	},
	domain.StatusAcknowledged: {
		domain.StatusInProgress,
	},
	domain.StatusInProgress: {
		domain.StatusOnHold,
		domain.StatusPendingVerification,
	},
	domain.StatusOnHold: {
		domain.StatusInProgress,
	},
	domain.StatusPendingVerification: {
		domain.StatusResolved,
		domain.StatusRejected,
		domain.StatusInProgress, // verification failed, rework
	},
	// Every edge out of resolved, closed, and rejected is derived: satisfied
	// feedback or an approved outcome appeal, never a direct request.
	domain.StatusResolved: {
		domain.StatusClosed,   // satisfied feedback
		domain.StatusReopened, // approved resolution appeal
	},
	domain.StatusClosed: {
		domain.StatusReopened, // approved resolution appeal
	},
	domain.StatusRejected: {
		domain.StatusReopened, // approved rejection appeal
	},
	domain.StatusReopened: {
		domain.StatusInProgress,
	},
}

// ValidateTransition checks the from -> to edge against the adjacency table.
func ValidateTransition(from, to domain.Status) error {
	allowed, exists := transitions[from]
	if !exists {
		return &domain.InvalidTransitionError{From: from, To: to, Reason: "unknown source status"}
	}
	for _, next := range allowed {
		if next == to {
			return nil
		}
	}
	return domain.NewInvalidTransition(from, to)
}

// AllowedNext returns the statuses reachable from s, in table order.
func AllowedNext(s domain.Status) []domain.Status {
	next := transitions[s]
	out := make([]domain.Status, len(next))
	copy(out, next)
	return out
}

// DerivedOnly reports whether edges leaving s may only be taken as derived
// transitions. Direct transition requests out of these statuses are refused.
func DerivedOnly(s domain.Status) bool {
	return s == domain.StatusResolved || s == domain.StatusClosed || s == domain.StatusRejected
}

// CanAppeal reports whether an appeal of type t may be raised while the
// report is in status s.
func CanAppeal(t domain.AppealType, s domain.Status) bool {
	switch t {
	case domain.AppealCitizenClassification:
		return s == domain.StatusClassified ||
			s == domain.StatusAssignedToDepartment ||
			s == domain.StatusAssignedToOfficer
	case domain.AppealCitizenResolution:
		return s == domain.StatusResolved || s == domain.StatusClosed
	case domain.AppealCitizenRejection:
		return s == domain.StatusRejected
	case domain.AppealOfficerAssignment:
		return s == domain.StatusAssignedToOfficer
	case domain.AppealAdminReassignment:
		return s == domain.StatusAssignedToDepartment || s == domain.StatusAssignedToOfficer
	default:
		return false
	}
}

// AppealableStatuses returns the statuses in which an appeal of type t may be
// raised, for validation messages.
func AppealableStatuses(t domain.AppealType) []domain.Status {
	var out []domain.Status
	for _, s := range domain.Statuses {
		if CanAppeal(t, s) {
			out = append(out, s)
		}
	}
	return out
}

// CanFeedback reports whether citizen feedback may be submitted in status s.
func CanFeedback(s domain.Status) bool {
	return s == domain.StatusResolved || s == domain.StatusClosed
}

// IsTerminal reports whether s ends the normal lifecycle. A terminal report
// can still be reopened by an approved outcome appeal.
func IsTerminal(s domain.Status) bool {
	return s.Terminal()
}
