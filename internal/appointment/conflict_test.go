package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func booked(providerID uuid.UUID, start time.Time, minutes int, status Status) Appointment {
	return Appointment{
		ID:              uuid.New(),
		Reference:       "APT-TEST",
		ProviderID:      providerID,
		PatientID:       uuid.New(),
		Status:          status,
		ScheduledAt:     start,
		DurationMinutes: minutes,
	}
}

func TestDetectConflicts(t *testing.T) {
	provider := uuid.New()
	other := uuid.New()
	p := DefaultPolicy()

	a := booked(provider, at(10, 0), 60, StatusScheduled)
	b := booked(provider, at(11, 0), 30, StatusConfirmed)
	cancelled := booked(provider, at(12, 0), 30, StatusCancelled)
	rescheduled := booked(provider, at(12, 30), 30, StatusRescheduled)
	noShow := booked(provider, at(13, 0), 30, StatusNoShow)
	elsewhere := booked(other, at(14, 0), 30, StatusScheduled)
	existing := []Appointment{b, a, cancelled, rescheduled, noShow, elsewhere}

	tests := []struct {
		name      string
		candidate Interval
		exclude   *uuid.UUID
		want      []ConflictKind
	}{
		{"free", NewInterval(at(15, 0), 30), nil, nil},
		{"back to back", NewInterval(at(11, 30), 30), nil, nil},
		{"spans two", NewInterval(at(10, 30), 60), nil, []ConflictKind{ConflictOverlap, ConflictOverlap}},
		{"exact", NewInterval(at(11, 0), 30), nil, []ConflictKind{ConflictDoubleBooking}},
		{"cancelled frees time", NewInterval(at(12, 0), 30), nil, nil},
		{"rescheduled frees time", NewInterval(at(12, 30), 30), nil, nil},
		{"no-show still occupies", NewInterval(at(13, 0), 15), nil, []ConflictKind{ConflictOverlap}},
		{"other provider", NewInterval(at(14, 0), 30), nil, nil},
		{"excluded self", NewInterval(at(10, 0), 60), &a.ID, nil},
		{"outside hours", NewInterval(at(16, 30), 60), nil, []ConflictKind{ConflictOutsideHours}},
		{"overlap and outside", NewInterval(at(8, 30), 120), nil, []ConflictKind{ConflictOverlap, ConflictOutsideHours}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectConflicts(provider, tt.candidate, existing, tt.exclude, p)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i := range got {
				if got[i].Kind != tt.want[i] {
					t.Errorf("conflict %d: expected %s, got %s", i, tt.want[i], got[i].Kind)
				}
			}
		})
	}
}

func TestDetectConflicts_OrderedByStart(t *testing.T) {
	provider := uuid.New()
	late := booked(provider, at(11, 0), 30, StatusScheduled)
	early := booked(provider, at(10, 0), 30, StatusScheduled)

	got := DetectConflicts(provider, NewInterval(at(9, 30), 150), []Appointment{late, early}, nil, DefaultPolicy())
	if len(got) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(got))
	}
	if *got[0].AppointmentID != early.ID || *got[1].AppointmentID != late.ID {
		t.Error("expected conflicts ordered by appointment start")
	}
}

func TestConflict_Overlapping(t *testing.T) {
	provider := uuid.New()
	existing := []Appointment{booked(provider, at(10, 0), 30, StatusScheduled)}

	exact := DetectConflicts(provider, NewInterval(at(10, 0), 30), existing, nil, DefaultPolicy())
	if len(exact) != 1 || exact[0].Kind != ConflictDoubleBooking || !exact[0].Overlapping() {
		t.Errorf("expected an overlapping DOUBLE_BOOKING, got %+v", exact)
	}

	partial := DetectConflicts(provider, NewInterval(at(10, 15), 30), existing, nil, DefaultPolicy())
	if len(partial) != 1 || !partial[0].Overlapping() {
		t.Errorf("expected an overlapping OVERLAP, got %+v", partial)
	}

	if (Conflict{Kind: ConflictOutsideHours}).Overlapping() {
		t.Error("OUTSIDE_HOURS is not an overlap")
	}
}
