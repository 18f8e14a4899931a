package appointment

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type ConflictKind string

const (
	ConflictOverlap       ConflictKind = "OVERLAP"
	ConflictDoubleBooking ConflictKind = "DOUBLE_BOOKING"
	ConflictOutsideHours  ConflictKind = "OUTSIDE_HOURS"
)

// Conflict is one reason a candidate interval cannot be booked.
// DOUBLE_BOOKING is an overlap whose interval matches the candidate exactly;
// use Overlapping to match both kinds.
type Conflict struct {
	Kind          ConflictKind `json:"kind"`
	Message       string       `json:"message"`
	AppointmentID *uuid.UUID   `json:"appointment_id,omitempty"`
}

// Overlapping reports whether the conflict is with another booking, either
// OVERLAP or DOUBLE_BOOKING.
func (c Conflict) Overlapping() bool {
	return c.Kind == ConflictOverlap || c.Kind == ConflictDoubleBooking
}

// DetectConflicts checks candidate against the provider's existing bookings
// and the working-hours policy. It returns every conflict found, ordered by
// the start of the conflicting appointment, with OUTSIDE_HOURS last. It has
// no side effects and reads no clock.
func DetectConflicts(providerID uuid.UUID, candidate Interval, existing []Appointment, excludeID *uuid.UUID, policy Policy) []Conflict {
	relevant := make([]Appointment, 0, len(existing))
	for _, a := range existing {
		if a.ProviderID != providerID || !a.Occupying() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		relevant = append(relevant, a)
	}
	sortByStart(relevant)

	var conflicts []Conflict
	for i := range relevant {
		a := relevant[i]
		iv := a.Interval()
		if !Overlaps(iv, candidate) {
			continue
		}
		id := a.ID
		if iv.Start.Equal(candidate.Start) && iv.End.Equal(candidate.End) {
			conflicts = append(conflicts, Conflict{
				Kind:          ConflictDoubleBooking,
				Message:       fmt.Sprintf("provider already has appointment %s at exactly %s-%s", a.Reference, iv.Start.Format("15:04"), iv.End.Format("15:04")),
				AppointmentID: &id,
			})
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:          ConflictOverlap,
			Message:       fmt.Sprintf("overlaps appointment %s (%s-%s)", a.Reference, iv.Start.Format("2006-01-02 15:04"), iv.End.Format("15:04")),
			AppointmentID: &id,
		})
	}

	if !policy.Within(candidate) {
		conflicts = append(conflicts, Conflict{
			Kind: ConflictOutsideHours,
			Message: fmt.Sprintf("outside working hours (%02d:00-%02d:00 on working days)",
				policy.OpenHour, policy.CloseHour),
		})
	}

	return conflicts
}

// sortByStart orders appointments by ScheduledAt, then id, so every caller
// sees the same order for the same input.
func sortByStart(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].ScheduledAt.Equal(appts[j].ScheduledAt) {
			return appts[i].ScheduledAt.Before(appts[j].ScheduledAt)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}
