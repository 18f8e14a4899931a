package appointment

import (
	"testing"
	"time"
)

func TestPolicyWithin(t *testing.T) {
	p := DefaultPolicy()
	saturday := time.Date(2030, time.January, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"morning", NewInterval(at(9, 0), 30), true},
		{"ends at close", NewInterval(at(16, 30), 30), true},
		{"runs past close", NewInterval(at(16, 45), 30), false},
		{"before open", NewInterval(at(8, 30), 60), false},
		{"weekend", NewInterval(saturday, 30), false},
		{"empty", Interval{Start: at(10, 0), End: at(10, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Within(tt.iv); got != tt.want {
				t.Errorf("Within() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	p := DefaultPolicy()
	p.Location = ny

	// 14:00 UTC is 09:00 in New York in January
	start := time.Date(2030, time.January, 7, 14, 0, 0, 0, time.UTC)
	if !p.Within(NewInterval(start, 30)) {
		t.Error("expected 09:00 New York to be inside working hours")
	}
	if p.Within(NewInterval(start.Add(-time.Hour), 30)) {
		t.Error("expected 08:00 New York to be outside working hours")
	}

	w := p.WorkingWindow(start)
	if w.Start.Hour() != 9 || w.Start.Location() != ny {
		t.Errorf("unexpected window %s", w.Start)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if DefaultPolicy().SlotsPerDay() != 16 {
		t.Errorf("expected 16 slots, got %d", DefaultPolicy().SlotsPerDay())
	}

	bad := []func(p *Policy){
		func(p *Policy) { p.OpenHour, p.CloseHour = 17, 9 },
		func(p *Policy) { p.SlotGranularityMinutes = 0 },
		func(p *Policy) { p.SlotGranularityMinutes = 25 },
		func(p *Policy) { p.AllowedWeekdays = nil },
		func(p *Policy) { p.CloseHour = 25 },
	}
	for i, mutate := range bad {
		p := DefaultPolicy()
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
