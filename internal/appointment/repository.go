package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrProviderNotFound    = fmt.Errorf("provider %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)

	// ErrOverlap is returned by InsertAppointment and RescheduleAppointment
	// when an occupying appointment for the same provider now overlaps.
	ErrOverlap = errors.New("provider already has an overlapping appointment")
	// ErrStatusChanged is returned when a compare-and-set status update finds
	// a different status than expected.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// Identity checks
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListProviderAppointments returns the occupying appointments of a
	// provider that overlap [windowStart, windowEnd), ordered by start.
	ListProviderAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]Appointment, error)

	// Conditional writes
	InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appt *Appointment, from Status) (*Appointment, error)
	UpdateAppointmentDetails(ctx context.Context, appt *Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, old *Appointment, from Status, replacement *Appointment) (*Appointment, error)

	// No-show sweeper
	FindNoShowCandidates(ctx context.Context, endedBefore time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// ReminderScheduler accepts fire-and-forget reminder requests.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, appointmentID uuid.UUID, remindAt time.Time) error
}

// BlockSource supplies periods a provider is unavailable outside of
// appointments. It is optional.
type BlockSource interface {
	ListBlocks(ctx context.Context, providerID uuid.UUID, window Interval) ([]Block, error)
}
