package domain

import (
	"strings"
	"testing"
	"time"
)

func futureInput(now time.Time) RescheduleInput {
	return RescheduleInput{
		SessionStatus:   StatusScheduled,
		SessionAt:       now.Add(48 * time.Hour),
		RequestedAt:     now.Add(72 * time.Hour),
		ReschedulesUsed: 0,
		MaxReschedules:  3,
		Now:             now,
	}
}

func TestEvaluateRescheduleAllowsWithQuotaLeft(t *testing.T) {
	now := time.Now()
	in := futureInput(now)
	in.ReschedulesUsed = 2

	decision := EvaluateReschedule(in)
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny: %s", decision.Reason)
	}
	if decision.Remaining != 0 {
		t.Fatalf("expected remaining=0 after third reschedule, got %d", decision.Remaining)
	}
}

func TestEvaluateRescheduleDeniesWhenQuotaExhausted(t *testing.T) {
	now := time.Now()
	in := futureInput(now)
	in.ReschedulesUsed = 3

	decision := EvaluateReschedule(in)
	if decision.Allowed {
		t.Fatalf("expected deny when quota exhausted")
	}
	if !strings.Contains(decision.Reason, "quota") {
		t.Fatalf("expected quota reason, got %q", decision.Reason)
	}
	if decision.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", decision.Remaining)
	}
}

func TestEvaluateRescheduleDeniesNonScheduledSession(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow} {
		in := futureInput(now)
		in.SessionStatus = status

		decision := EvaluateReschedule(in)
		if decision.Allowed {
			t.Fatalf("expected deny for status %s", status)
		}
	}
}

func TestEvaluateRescheduleDeniesPastSession(t *testing.T) {
	now := time.Now()
	in := futureInput(now)
	in.SessionAt = now.Add(-time.Hour)

	if decision := EvaluateReschedule(in); decision.Allowed {
		t.Fatalf("expected deny for a session already in the past")
	}
}

func TestEvaluateRescheduleDeniesPastTarget(t *testing.T) {
	now := time.Now()
	in := futureInput(now)
	in.RequestedAt = now.Add(-time.Minute)

	decision := EvaluateReschedule(in)
	if decision.Allowed {
		t.Fatalf("expected deny for a requested time in the past")
	}
	if !strings.Contains(decision.Reason, "future") {
		t.Fatalf("expected future-time reason, got %q", decision.Reason)
	}
}

func TestEvaluateRescheduleRuleOrderStatusBeforeQuota(t *testing.T) {
	// A cancelled session with exhausted quota must report the status
	// problem, not the quota problem.
	now := time.Now()
	in := futureInput(now)
	in.SessionStatus = StatusCancelled
	in.ReschedulesUsed = 5

	decision := EvaluateReschedule(in)
	if decision.Allowed {
		t.Fatalf("expected deny")
	}
	if strings.Contains(decision.Reason, "quota") {
		t.Fatalf("status rule should fire before quota rule, got %q", decision.Reason)
	}
}

func TestEvaluateRescheduleDefaultsQuota(t *testing.T) {
	now := time.Now()
	in := futureInput(now)
	in.MaxReschedules = 0
	in.ReschedulesUsed = DefaultMaxReschedules

	if decision := EvaluateReschedule(in); decision.Allowed {
		t.Fatalf("expected default quota of %d to apply", DefaultMaxReschedules)
	}
}
