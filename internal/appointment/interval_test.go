package appointment

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2030, time.January, 7, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(10, 0), at(10, 30)}, Interval{at(10, 0), at(10, 30)}, true},
		{"partial", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 30), at(11, 30)}, true},
		{"contained", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(10, 15)}, true},
		{"back to back", Interval{at(10, 0), at(10, 30)}, Interval{at(10, 30), at(11, 0)}, false},
		{"disjoint", Interval{at(9, 0), at(9, 30)}, Interval{at(14, 0), at(15, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlaps(a, b) = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("Overlaps(b, a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterval(t *testing.T) {
	iv := NewInterval(at(10, 0), 45)
	if !iv.End.Equal(at(10, 45)) {
		t.Errorf("expected end 10:45, got %s", iv.End)
	}
	if iv.Duration() != 45*time.Minute {
		t.Errorf("expected 45m, got %s", iv.Duration())
	}
	if !iv.Contains(at(10, 0)) || iv.Contains(at(10, 45)) {
		t.Error("expected start inclusive and end exclusive")
	}
	if !Adjacent(iv, NewInterval(at(10, 45), 15)) {
		t.Error("expected intervals meeting at 10:45 to be adjacent")
	}
	if (Interval{Start: at(10, 0), End: at(10, 0)}).Valid() {
		t.Error("expected empty interval to be invalid")
	}
}
