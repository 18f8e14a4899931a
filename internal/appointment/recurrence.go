package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

const (
	MaxSeriesOccurrences = 100
	MaxSeriesHorizon     = 366 * 24 * time.Hour
)

// RecurrencePattern repeats an appointment every Interval units of
// Frequency. An Interval of 0 means the default of 1. Exactly one of Until
// and Count terminates it; Count includes the base appointment.
type RecurrencePattern struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	Until     *time.Time `json:"until,omitempty"`
	Count     *int       `json:"count,omitempty"`
}

func (p RecurrencePattern) Validate(start time.Time) error {
	switch p.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return validationError("unsupported recurrence frequency %q", p.Frequency)
	}
	if p.Interval < 0 {
		return validationError("recurrence interval must not be negative")
	}
	if (p.Until == nil) == (p.Count == nil) {
		return validationError("recurrence needs exactly one of until or count")
	}
	if p.Count != nil {
		if *p.Count < 1 {
			return validationError("recurrence count must be at least 1")
		}
		if *p.Count > MaxSeriesOccurrences {
			return validationError("recurrence count must not exceed %d", MaxSeriesOccurrences)
		}
	}
	if p.Until != nil {
		if p.Until.Before(start) {
			return validationError("recurrence until must not be before the first appointment")
		}
		if p.Until.Sub(start) > MaxSeriesHorizon {
			return validationError("recurrence until must be within 366 days of the first appointment")
		}
	}
	return nil
}

func (p RecurrencePattern) step() int {
	if p.Interval < 1 {
		return 1
	}
	return p.Interval
}

// occurrence returns the start of the k-th repetition after base.
func (p RecurrencePattern) occurrence(base time.Time, k int) time.Time {
	n := k * p.step()
	switch p.Frequency {
	case FrequencyDaily:
		return base.AddDate(0, 0, n)
	case FrequencyWeekly:
		return base.AddDate(0, 0, 7*n)
	default:
		return addMonthsClamped(base, n)
	}
}

// addMonthsClamped keeps the wall-clock time and pins days past the end of
// the target month to its last day, so Jan 31 + 1 month is Feb 28/29.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Expand produces the repetitions of base described by pattern, in order.
// The base itself is not part of the result. Each instance keeps the base
// duration, patient, provider and details and is SCHEDULED with no id.
func Expand(base Appointment, pattern RecurrencePattern) ([]Appointment, error) {
	if err := pattern.Validate(base.ScheduledAt); err != nil {
		return nil, err
	}

	var out []Appointment
	for k := 1; ; k++ {
		if pattern.Count != nil && k >= *pattern.Count {
			break
		}
		start := pattern.occurrence(base.ScheduledAt, k)
		if pattern.Until != nil && start.After(*pattern.Until) {
			break
		}
		if len(out) >= MaxSeriesOccurrences-1 {
			return nil, validationError("recurrence produces more than %d appointments", MaxSeriesOccurrences)
		}
		out = append(out, instanceOf(base, start))
	}
	return out, nil
}

func instanceOf(base Appointment, start time.Time) Appointment {
	inst := base
	inst.ID = uuid.Nil
	inst.Reference = ""
	inst.Status = StatusScheduled
	inst.ScheduledAt = start
	inst.Recurrence = nil
	inst.RescheduledFromID = nil
	inst.RescheduledToID = nil
	inst.StatusChangedBy = ""
	inst.StatusChangedAt = nil
	if base.Metadata != nil {
		md := make(map[string]any, len(base.Metadata))
		for k, v := range base.Metadata {
			md[k] = v
		}
		inst.Metadata = md
	}
	return inst
}

// SeriesResult reports what happened to one instance of a recurring series.
// Instances that conflict are skipped; the rest of the series continues.
type SeriesResult struct {
	Index       int          `json:"index"`
	ScheduledAt time.Time    `json:"scheduled_at"`
	Appointment *Appointment `json:"-"`
	Conflicts   []Conflict   `json:"conflicts,omitempty"`
	Err         error        `json:"-"`
}

func (r SeriesResult) Booked() bool {
	return r.Appointment != nil && r.Err == nil
}
