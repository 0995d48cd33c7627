// Package domain holds the session state machine and the reschedule policy
// engine. Everything here is pure: no I/O, no clocks except those passed in.
package domain

// Status is the lifecycle state of a scheduled session.
type Status string

const (
	// StatusPending is the initial state after enrollment creation, before
	// any calendar event exists.
	StatusPending Status = "pending"
	// StatusScheduled means the session has a committed calendar slot.
	StatusScheduled Status = "scheduled"
	// StatusInProgress means the meeting has started.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal. Cancellation is a status, never a row removal.
	StatusCancelled Status = "cancelled"
	// StatusNoShow is terminal.
	StatusNoShow Status = "no_show"
)

// SessionType distinguishes the kinds of meetings within an enrollment.
type SessionType string

const (
	TypeCoaching   SessionType = "coaching"
	TypeCheckIn    SessionType = "check_in"
	TypeDiagnostic SessionType = "diagnostic"
)

// transitions lists the allowed forward edges of the state machine.
// scheduled→scheduled is handled separately: it is only legal as a reschedule.
var transitions = map[Status][]Status{
	StatusPending:    {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a session may move from one status to
// another. viaReschedule marks the scheduled→scheduled self-loop, which is
// only legal when an old calendar event is superseded by a new one.
func CanTransition(from, to Status, viaReschedule bool) bool {
	if from == StatusScheduled && to == StatusScheduled {
		return viaReschedule
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known session status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ValidType reports whether t is a known session type.
func ValidType(t SessionType) bool {
	switch t {
	case TypeCoaching, TypeCheckIn, TypeDiagnostic:
		return true
	}
	return false
}
