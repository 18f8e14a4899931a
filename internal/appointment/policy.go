package appointment

import (
	"fmt"
	"time"
)

// Policy states when a provider can be booked. It is a plain value and is
// passed to every check that needs it.
type Policy struct {
	OpenHour               int
	CloseHour              int
	AllowedWeekdays        []time.Weekday
	SlotGranularityMinutes int
	Location               *time.Location
}

// DefaultPolicy is Mon-Fri, 09:00-17:00, 30 minute slots, UTC.
func DefaultPolicy() Policy {
	return Policy{
		OpenHour:  9,
		CloseHour: 17,
		AllowedWeekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		SlotGranularityMinutes: 30,
		Location:               time.UTC,
	}
}

func (p Policy) Validate() error {
	if p.OpenHour < 0 || p.OpenHour > 23 {
		return fmt.Errorf("open hour %d out of range", p.OpenHour)
	}
	if p.CloseHour < 1 || p.CloseHour > 24 {
		return fmt.Errorf("close hour %d out of range", p.CloseHour)
	}
	if p.OpenHour >= p.CloseHour {
		return fmt.Errorf("open hour %d must be before close hour %d", p.OpenHour, p.CloseHour)
	}
	if p.SlotGranularityMinutes <= 0 {
		return fmt.Errorf("slot granularity must be positive")
	}
	if ((p.CloseHour-p.OpenHour)*60)%p.SlotGranularityMinutes != 0 {
		return fmt.Errorf("slot granularity %dm does not divide the working day", p.SlotGranularityMinutes)
	}
	if len(p.AllowedWeekdays) == 0 {
		return fmt.Errorf("at least one working weekday is required")
	}
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) AllowsWeekday(wd time.Weekday) bool {
	for _, d := range p.AllowedWeekdays {
		if d == wd {
			return true
		}
	}
	return false
}

// WorkingWindow returns [open, close) on the calendar day of date, evaluated
// in the policy location.
func (p Policy) WorkingWindow(date time.Time) Interval {
	loc := p.location()
	d := date.In(loc)
	return Interval{
		Start: time.Date(d.Year(), d.Month(), d.Day(), p.OpenHour, 0, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), p.CloseHour, 0, 0, 0, loc),
	}
}

// SlotsPerDay is the number of granularity slots between open and close.
func (p Policy) SlotsPerDay() int {
	if p.SlotGranularityMinutes <= 0 {
		return 0
	}
	return (p.CloseHour - p.OpenHour) * 60 / p.SlotGranularityMinutes
}

// Within reports whether iv lies inside working hours: it must start on an
// allowed weekday no earlier than open and end no later than close on that
// same day.
func (p Policy) Within(iv Interval) bool {
	if !iv.Valid() {
		return false
	}
	start := iv.Start.In(p.location())
	if !p.AllowsWeekday(start.Weekday()) {
		return false
	}
	window := p.WorkingWindow(start)
	return !start.Before(window.Start) && !iv.End.After(window.End)
}
