package appointment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCheckedIn, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusCheckedIn, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusCheckedIn, StatusNoShow, false},
		{StatusInProgress, StatusConfirmed, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusInProgress, StatusRescheduled, false},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusNoShow, StatusCompleted, false},
		{StatusRescheduled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		err := CanTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("%s -> %s: expected error", tt.from, tt.to)
			} else if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
			}
		}
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled} {
		a := booked(uuid.New(), at(10, 0), 30, s)

		ops := map[string]func() error{
			"confirm":  func() error { return a.Confirm("x", at(9, 0)) },
			"check-in": func() error { return a.CheckIn("x", at(9, 0)) },
			"start":    func() error { return a.Start("x", at(9, 0)) },
			"complete": func() error { return a.Complete("", "x", at(9, 0)) },
			"cancel":   func() error { return a.Cancel("reason", "x", at(9, 0)) },
			"no-show":  func() error { return a.MarkNoShow("x", at(9, 0)) },
		}
		for name, op := range ops {
			if err := op(); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s from %s: expected ErrInvalidTransition, got %v", name, s, err)
			}
			if a.Status != s {
				t.Fatalf("%s from %s changed status to %s", name, s, a.Status)
			}
		}
	}
}

func TestLifecycleStampsActor(t *testing.T) {
	a := booked(uuid.New(), at(10, 0), 30, StatusScheduled)

	if err := a.Cancel("  ", "desk", at(9, 0)); err == nil {
		t.Fatal("expected cancel without reason to fail")
	}
	if a.Status != StatusScheduled {
		t.Fatalf("failed cancel changed status to %s", a.Status)
	}

	if err := a.Cancel("patient ill", "desk", at(9, 0)); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if a.CancelledBy != "desk" || a.CancellationReason != "patient ill" || a.CancelledAt == nil {
		t.Errorf("cancel did not record who and why: %+v", a)
	}
	if a.StatusChangedBy != "desk" || !a.StatusChangedAt.Equal(at(9, 0)) {
		t.Errorf("expected status change stamped, got %q at %v", a.StatusChangedBy, a.StatusChangedAt)
	}

	b := booked(uuid.New(), at(10, 0), 30, StatusInProgress)
	if err := b.Complete(" fine ", "dr", at(10, 30)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if b.CompletedBy != "dr" || b.CompletionNotes != "fine" {
		t.Errorf("unexpected completion %+v", b)
	}

	c := booked(uuid.New(), at(10, 0), 30, StatusConfirmed)
	next := uuid.New()
	if err := c.MarkRescheduled(next, "desk", at(8, 0)); err != nil {
		t.Fatalf("MarkRescheduled: %v", err)
	}
	if c.RescheduledToID == nil || *c.RescheduledToID != next {
		t.Error("expected link to the replacement")
	}
}
