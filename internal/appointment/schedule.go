package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const blockReasonClosed = "closed"

// BuildSchedule partitions the policy's working window on date into fixed
// slots and classifies each one as booked, blocked or available.
//
// A slot overlapped by more than one booking should not exist. If it does,
// the earliest booking (then lowest id) is the occupant, the rest are kept in
// OverlappingIDs and the anomaly is logged.
func BuildSchedule(providerID uuid.UUID, date time.Time, policy Policy, existing []Appointment, blocks []Block, log zerolog.Logger) ProviderSchedule {
	window := policy.WorkingWindow(date)
	step := time.Duration(policy.SlotGranularityMinutes) * time.Minute

	occupying := make([]Appointment, 0, len(existing))
	for _, a := range existing {
		if a.ProviderID != providerID || !a.Occupying() {
			continue
		}
		if !Overlaps(a.Interval(), window) {
			continue
		}
		occupying = append(occupying, a)
	}
	sortByStart(occupying)

	closed := !policy.AllowsWeekday(window.Start.Weekday())

	y, m, d := window.Start.Date()
	sched := ProviderSchedule{
		ProviderID: providerID,
		Date:       time.Date(y, m, d, 0, 0, 0, 0, window.Start.Location()),
		Available:  []TimeSlot{},
		Booked:     []TimeSlot{},
		Blocked:    []TimeSlot{},
	}

	for i := 0; i < policy.SlotsPerDay(); i++ {
		start := window.Start.Add(time.Duration(i) * step)
		slot := TimeSlot{Start: start, End: start.Add(step)}
		iv := Interval{Start: slot.Start, End: slot.End}

		var occupants []uuid.UUID
		for _, a := range occupying {
			if Overlaps(a.Interval(), iv) {
				occupants = append(occupants, a.ID)
			}
		}

		if len(occupants) > 0 {
			id := occupants[0]
			slot.AppointmentID = &id
			if len(occupants) > 1 {
				slot.OverlappingIDs = occupants[1:]
				log.Warn().
					Str("provider_id", providerID.String()).
					Time("slot_start", slot.Start).
					Str("occupant_id", id.String()).
					Int("extra_occupants", len(occupants)-1).
					Msg("slot has more than one booking")
			}
			sched.Booked = append(sched.Booked, slot)
			continue
		}

		if closed {
			slot.BlockReason = blockReasonClosed
			sched.Blocked = append(sched.Blocked, slot)
			continue
		}
		if reason, ok := blockedBy(iv, blocks); ok {
			slot.BlockReason = reason
			sched.Blocked = append(sched.Blocked, slot)
			continue
		}

		slot.Available = true
		sched.Available = append(sched.Available, slot)
	}

	return sched
}

func blockedBy(iv Interval, blocks []Block) (string, bool) {
	for _, b := range blocks {
		if Overlaps(b.Interval, iv) {
			return b.Reason, true
		}
	}
	return "", false
}
