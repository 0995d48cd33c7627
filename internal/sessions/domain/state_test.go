package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	steps := []struct {
		from, to Status
	}{
		{StatusPending, StatusScheduled},
		{StatusScheduled, StatusInProgress},
		{StatusInProgress, StatusCompleted},
	}
	for _, step := range steps {
		if !CanTransition(step.from, step.to, false) {
			t.Fatalf("expected %s -> %s to be allowed", step.from, step.to)
		}
	}
}

func TestCanTransitionRescheduleSelfLoop(t *testing.T) {
	if CanTransition(StatusScheduled, StatusScheduled, false) {
		t.Fatalf("scheduled -> scheduled must require a reschedule")
	}
	if !CanTransition(StatusScheduled, StatusScheduled, true) {
		t.Fatalf("scheduled -> scheduled via reschedule must be allowed")
	}
}

func TestCanTransitionTerminalStatesAreFinal(t *testing.T) {
	terminals := []Status{StatusCompleted, StatusCancelled, StatusNoShow}
	targets := []Status{StatusPending, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow}

	for _, from := range terminals {
		if !IsTerminal(from) {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range targets {
			if CanTransition(from, to, false) || CanTransition(from, to, true) {
				t.Fatalf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestCancellationReachableFromActiveStates(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusScheduled, StatusInProgress} {
		if !CanTransition(from, StatusCancelled, false) {
			t.Fatalf("expected %s -> cancelled to be allowed", from)
		}
	}
}

func TestNoShowOnlyFromScheduled(t *testing.T) {
	if !CanTransition(StatusScheduled, StatusNoShow, false) {
		t.Fatalf("expected scheduled -> no_show to be allowed")
	}
	for _, from := range []Status{StatusPending, StatusInProgress} {
		if CanTransition(from, StatusNoShow, false) {
			t.Fatalf("unexpected %s -> no_show", from)
		}
	}
}
