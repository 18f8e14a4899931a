package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// forward path ranks; skipping ahead is allowed, moving back is not
var forwardRank = map[Status]int{
	StatusScheduled:  0,
	StatusConfirmed:  1,
	StatusCheckedIn:  2,
	StatusInProgress: 3,
}

func (s Status) Valid() bool {
	_, ok := forwardRank[s]
	return ok || s.Terminal()
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// CanTransition reports whether an appointment in from may move to to.
func CanTransition(from, to Status) error {
	if from.Terminal() {
		return &TransitionError{From: from, To: to, Reason: "appointment is " + string(from)}
	}
	switch to {
	case StatusCancelled, StatusCompleted:
		return nil
	case StatusNoShow:
		if from == StatusScheduled || from == StatusConfirmed {
			return nil
		}
		return &TransitionError{From: from, To: to, Reason: "patient already arrived"}
	case StatusRescheduled:
		if from == StatusInProgress {
			return &TransitionError{From: from, To: to, Reason: "appointment already started"}
		}
		return nil
	}
	toRank, ok := forwardRank[to]
	if !ok {
		return &TransitionError{From: from, To: to, Reason: "unknown status"}
	}
	if toRank <= forwardRank[from] {
		return &TransitionError{From: from, To: to, Reason: "cannot move backwards"}
	}
	return nil
}

func (a *Appointment) transition(to Status, actor string, at time.Time) error {
	if err := CanTransition(a.Status, to); err != nil {
		return err
	}
	a.Status = to
	a.StatusChangedBy = actor
	a.StatusChangedAt = &at
	a.UpdatedAt = at
	return nil
}

func (a *Appointment) Confirm(actor string, at time.Time) error {
	return a.transition(StatusConfirmed, actor, at)
}

func (a *Appointment) CheckIn(actor string, at time.Time) error {
	return a.transition(StatusCheckedIn, actor, at)
}

func (a *Appointment) Start(actor string, at time.Time) error {
	return a.transition(StatusInProgress, actor, at)
}

func (a *Appointment) Complete(notes, actor string, at time.Time) error {
	if err := a.transition(StatusCompleted, actor, at); err != nil {
		return err
	}
	a.CompletedBy = actor
	a.CompletedAt = &at
	a.CompletionNotes = strings.TrimSpace(notes)
	return nil
}

func (a *Appointment) Cancel(reason, actor string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError("cancellation reason is required")
	}
	if err := a.transition(StatusCancelled, actor, at); err != nil {
		return err
	}
	a.CancelledBy = actor
	a.CancelledAt = &at
	a.CancellationReason = reason
	return nil
}

func (a *Appointment) MarkNoShow(actor string, at time.Time) error {
	return a.transition(StatusNoShow, actor, at)
}

func (a *Appointment) MarkRescheduled(replacementID uuid.UUID, actor string, at time.Time) error {
	if err := a.transition(StatusRescheduled, actor, at); err != nil {
		return err
	}
	a.RescheduledToID = &replacementID
	return nil
}
