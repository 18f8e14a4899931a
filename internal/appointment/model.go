package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCheckedIn   Status = "checked_in"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

type AppointmentType string

const (
	TypeConsultation   AppointmentType = "consultation"
	TypeFollowUp       AppointmentType = "follow_up"
	TypeEmergency      AppointmentType = "emergency"
	TypeRoutineCheckup AppointmentType = "routine_checkup"
	TypeProcedure      AppointmentType = "procedure"
	TypeSurgery        AppointmentType = "surgery"
	TypeTherapy        AppointmentType = "therapy"
	TypeVaccination    AppointmentType = "vaccination"
	TypeLabWork        AppointmentType = "lab_work"
	TypeImaging        AppointmentType = "imaging"
)

var validTypes = map[AppointmentType]bool{
	TypeConsultation: true, TypeFollowUp: true, TypeEmergency: true,
	TypeRoutineCheckup: true, TypeProcedure: true, TypeSurgery: true,
	TypeTherapy: true, TypeVaccination: true, TypeLabWork: true, TypeImaging: true,
}

func (t AppointmentType) Valid() bool { return validTypes[t] }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type LocationKind string

const (
	LocationInPerson LocationKind = "in_person"
	LocationVirtual  LocationKind = "virtual"
)

// Location describes where the appointment happens. Virtual appointments
// carry a meeting URL instead of a room.
type Location struct {
	Kind       LocationKind `json:"kind,omitempty"`
	Room       string       `json:"room,omitempty"`
	Address    string       `json:"address,omitempty"`
	MeetingURL string       `json:"meeting_url,omitempty"`
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID              uuid.UUID
	Reference       string
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	Type            AppointmentType
	Status          Status
	Priority        Priority
	ScheduledAt     time.Time
	DurationMinutes int
	Location        Location
	Notes           string
	Metadata        map[string]any
	Recurrence      *RecurrencePattern

	SeriesID          *uuid.UUID
	RescheduledFromID *uuid.UUID
	RescheduledToID   *uuid.UUID

	CreatedBy          string
	StatusChangedBy    string
	StatusChangedAt    *time.Time
	CancelledBy        string
	CancelledAt        *time.Time
	CancellationReason string
	CompletedBy        string
	CompletedAt        *time.Time
	CompletionNotes    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndTime is always derived from ScheduledAt and DurationMinutes.
func (a *Appointment) EndTime() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.ScheduledAt, End: a.EndTime()}
}

// Occupying reports whether the appointment still holds its time on the
// provider's calendar. Cancelled instances free the time; rescheduled ones
// hand it over to their replacement.
func (a *Appointment) Occupying() bool {
	return a.Status != StatusCancelled && a.Status != StatusRescheduled
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// TimeSlot is one fixed-width bucket of a provider's day.
type TimeSlot struct {
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Available      bool        `json:"available"`
	AppointmentID  *uuid.UUID  `json:"appointment_id,omitempty"`
	BlockReason    string      `json:"block_reason,omitempty"`
	OverlappingIDs []uuid.UUID `json:"overlapping_ids,omitempty"`
}

type ProviderSchedule struct {
	ProviderID uuid.UUID  `json:"provider_id"`
	Date       time.Time  `json:"date"`
	Available  []TimeSlot `json:"available"`
	Booked     []TimeSlot `json:"booked"`
	Blocked    []TimeSlot `json:"blocked"`
}

// Block is a period in which a provider cannot be booked for reasons other
// than an appointment (leave, training, maintenance).
type Block struct {
	Interval Interval
	Reason   string
}
