package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestBuildSchedule(t *testing.T) {
	provider := uuid.New()
	p := DefaultPolicy()
	appt := booked(provider, at(10, 0), 30, StatusScheduled)

	sched := BuildSchedule(provider, at(0, 0), p, []Appointment{appt}, nil, zerolog.Nop())

	if len(sched.Booked) != 1 || len(sched.Available) != 15 || len(sched.Blocked) != 0 {
		t.Fatalf("expected 1/15/0, got %d/%d/%d", len(sched.Booked), len(sched.Available), len(sched.Blocked))
	}
	if *sched.Booked[0].AppointmentID != appt.ID {
		t.Errorf("expected booked slot to reference %s", appt.ID)
	}
	if !sched.Available[0].Start.Equal(at(9, 0)) {
		t.Errorf("expected first slot at 09:00, got %s", sched.Available[0].Start)
	}
	if !sched.Date.Equal(at(0, 0)) {
		t.Errorf("expected schedule date at midnight, got %s", sched.Date)
	}
}

func TestBuildSchedule_SlotCountAlwaysFull(t *testing.T) {
	provider := uuid.New()
	p := DefaultPolicy()
	existing := []Appointment{
		booked(provider, at(9, 15), 60, StatusScheduled),   // touches three slots
		booked(provider, at(16, 0), 60, StatusInProgress),  // last two slots
		booked(provider, at(12, 0), 30, StatusCancelled),   // ignored
		booked(uuid.New(), at(13, 0), 30, StatusScheduled), // other provider
	}
	blocks := []Block{{Interval: NewInterval(at(13, 0), 60), Reason: "training"}}

	sched := BuildSchedule(provider, at(0, 0), p, existing, blocks, zerolog.Nop())

	total := len(sched.Booked) + len(sched.Available) + len(sched.Blocked)
	if total != p.SlotsPerDay() {
		t.Fatalf("expected %d slots, got %d", p.SlotsPerDay(), total)
	}
	if len(sched.Booked) != 5 {
		t.Errorf("expected 5 booked slots, got %d", len(sched.Booked))
	}
	if len(sched.Blocked) != 2 || sched.Blocked[0].BlockReason != "training" {
		t.Errorf("expected 2 training slots, got %+v", sched.Blocked)
	}
}

func TestBuildSchedule_BookedBeatsBlocked(t *testing.T) {
	provider := uuid.New()
	appt := booked(provider, at(13, 0), 30, StatusConfirmed)
	blocks := []Block{{Interval: NewInterval(at(13, 0), 60), Reason: "maintenance"}}

	sched := BuildSchedule(provider, at(0, 0), DefaultPolicy(), []Appointment{appt}, blocks, zerolog.Nop())
	if len(sched.Booked) != 1 || len(sched.Blocked) != 1 {
		t.Fatalf("expected 1 booked and 1 blocked, got %d and %d", len(sched.Booked), len(sched.Blocked))
	}
}

func TestBuildSchedule_ClosedDay(t *testing.T) {
	sunday := time.Date(2030, time.January, 13, 0, 0, 0, 0, time.UTC)
	sched := BuildSchedule(uuid.New(), sunday, DefaultPolicy(), nil, nil, zerolog.Nop())

	if len(sched.Blocked) != 16 || len(sched.Available) != 0 {
		t.Fatalf("expected every slot blocked on a closed day, got %d blocked / %d available",
			len(sched.Blocked), len(sched.Available))
	}
	if sched.Blocked[0].BlockReason != blockReasonClosed {
		t.Errorf("expected reason %q, got %q", blockReasonClosed, sched.Blocked[0].BlockReason)
	}
}

func TestBuildSchedule_OverlappingOccupants(t *testing.T) {
	provider := uuid.New()
	first := booked(provider, at(10, 0), 30, StatusScheduled)
	second := booked(provider, at(10, 15), 30, StatusScheduled)

	sched := BuildSchedule(provider, at(0, 0), DefaultPolicy(), []Appointment{second, first}, nil, zerolog.Nop())

	var slot *TimeSlot
	for i := range sched.Booked {
		if sched.Booked[i].Start.Equal(at(10, 0)) {
			slot = &sched.Booked[i]
		}
	}
	if slot == nil {
		t.Fatal("expected 10:00 to be booked")
	}
	if *slot.AppointmentID != first.ID {
		t.Errorf("expected earliest appointment to own the slot")
	}
	if len(slot.OverlappingIDs) != 1 || slot.OverlappingIDs[0] != second.ID {
		t.Errorf("expected the later appointment in OverlappingIDs, got %v", slot.OverlappingIDs)
	}
}
