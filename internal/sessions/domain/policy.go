package domain

import (
	"fmt"
	"time"
)

// DefaultMaxReschedules is the quota applied when an enrollment doesn't
// carry an explicit one.
const DefaultMaxReschedules = 3

// RescheduleInput carries everything the policy engine needs to decide one
// reschedule request. All values are read before the call; the engine itself
// never touches storage.
type RescheduleInput struct {
	SessionStatus   Status
	SessionAt       time.Time
	RequestedAt     time.Time
	ReschedulesUsed int
	MaxReschedules  int
	Now             time.Time
}

// Decision is the outcome of a policy evaluation. Reason is caller-facing
// and actionable; Remaining is the quota left after this decision.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int
}

// EvaluateReschedule applies the reschedule rules in order:
// session must be scheduled, must lie in the future, the requested time must
// lie in the future, and quota must not be exhausted.
func EvaluateReschedule(in RescheduleInput) Decision {
	maxReschedules := in.MaxReschedules
	if maxReschedules <= 0 {
		maxReschedules = DefaultMaxReschedules
	}

	remaining := maxReschedules - in.ReschedulesUsed
	if remaining < 0 {
		remaining = 0
	}

	if in.SessionStatus != StatusScheduled {
		return Decision{
			Reason:    fmt.Sprintf("session is %s; only scheduled sessions can be rescheduled", in.SessionStatus),
			Remaining: remaining,
		}
	}

	if !in.SessionAt.After(in.Now) {
		return Decision{
			Reason:    "session has already started or passed",
			Remaining: remaining,
		}
	}

	if !in.RequestedAt.After(in.Now) {
		return Decision{
			Reason:    "requested time must be in the future",
			Remaining: remaining,
		}
	}

	if in.ReschedulesUsed >= maxReschedules {
		return Decision{
			Reason:    fmt.Sprintf("reschedule quota exhausted (%d of %d used)", in.ReschedulesUsed, maxReschedules),
			Remaining: 0,
		}
	}

	return Decision{Allowed: true, Remaining: remaining - 1}
}
