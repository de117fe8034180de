// Package appointment implements the appointment workflow state machine:
// the allowed status transitions and the side effects each one applies.
package appointment

import "time"

// Status is an appointment's position in the shop workflow.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
	StatusCanceled   Status = "canceled"
)

// ValidStatus reports whether s is one of the six recognized statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusReady, StatusCompleted, StatusNoShow, StatusCanceled:
		return true
	default:
		return false
	}
}

// terminal states have no outgoing transitions.
var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusNoShow:    true,
	StatusCanceled:  true,
}

// IsTerminal reports whether s has no allowed outgoing transitions.
func IsTerminal(s Status) bool {
	return terminal[s]
}

// allowedTransitions is the full from -> {to} table. READY -> IN_PROGRESS
// covers rework and NO_SHOW is reachable only from SCHEDULED; both are
// deliberate product decisions, not omissions (see DESIGN.md).
var allowedTransitions = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusInProgress: true,
		StatusNoShow:     true,
		StatusCanceled:   true,
	},
	StatusInProgress: {
		StatusReady:    true,
		StatusCompleted: true,
		StatusCanceled: true,
	},
	StatusReady: {
		StatusCompleted:  true,
		StatusInProgress: true,
	},
}

// CanTransition reports whether moving from `from` to `to` is permitted.
// A status equal to itself is always "permitted" here (repositioning
// only); callers that care about state-change-vs-no-op distinguish that
// separately.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// SideEffects is the set of timestamp mutations a transition applies, on
// top of whatever fields the caller already has staged.
type SideEffects struct {
	SetCheckInAt  bool
	SetCheckOutAt bool
}

// Apply computes the side effects of moving from `from` to `to`, given
// whether check-in/check-out are already set. Per spec: SCHEDULED ->
// IN_PROGRESS sets check_in_at if null; any transition to COMPLETED sets
// check_out_at if null; transitions to CANCELED/NO_SHOW never set or
// clear either timestamp (already-set values are preserved for audit).
func Apply(from, to Status, checkInSet, checkOutSet bool) SideEffects {
	var eff SideEffects
	if from == StatusScheduled && to == StatusInProgress && !checkInSet {
		eff.SetCheckInAt = true
	}
	if to == StatusCompleted && !checkOutSet {
		eff.SetCheckOutAt = true
	}
	return eff
}

// Now is overridable in tests; production code always uses time.Now.
var Now = func() time.Time { return time.Now().UTC() }
