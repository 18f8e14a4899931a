package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. It backs the service
// when STORAGE_DRIVER=memory and in tests. Inserts refuse overlapping
// occupying appointments the same way the Postgres exclusion constraint
// does.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// UpsertPatient and UpsertProvider mirror the Postgres seeding helpers.
func (r *MemoryRepository) UpsertPatient(_ context.Context, p Patient) error {
	r.AddPatient(p)
	return nil
}

func (r *MemoryRepository) UpsertProvider(_ context.Context, p Provider) error {
	r.AddProvider(p)
	return nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListProviderAppointments(_ context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window := Interval{Start: windowStart, End: windowEnd}
	out := []Appointment{}
	for _, a := range r.appointments {
		if a.ProviderID != providerID || !a.Occupying() {
			continue
		}
		if !Overlaps(a.Interval(), window) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

// overlapsLocked reports whether appt collides with another occupying
// appointment of the same provider. Callers hold r.mu.
func (r *MemoryRepository) overlapsLocked(appt Appointment, ignore ...uuid.UUID) bool {
	if !appt.Occupying() {
		return false
	}
	iv := appt.Interval()
outer:
	for id, other := range r.appointments {
		for _, skip := range ignore {
			if id == skip {
				continue outer
			}
		}
		if id == appt.ID || other.ProviderID != appt.ProviderID || !other.Occupying() {
			continue
		}
		if Overlaps(other.Interval(), iv) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[appt.PatientID]; !ok {
		return nil, ErrPatientNotFound
	}
	if _, ok := r.providers[appt.ProviderID]; !ok {
		return nil, ErrProviderNotFound
	}
	if r.overlapsLocked(*appt) {
		return nil, ErrOverlap
	}

	stored := *appt
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	r.appointments[stored.ID] = stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, appt *Appointment, from Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if current.Status != from {
		return nil, ErrStatusChanged
	}

	current.Status = appt.Status
	current.StatusChangedBy = appt.StatusChangedBy
	current.StatusChangedAt = appt.StatusChangedAt
	current.CancelledBy = appt.CancelledBy
	current.CancelledAt = appt.CancelledAt
	current.CancellationReason = appt.CancellationReason
	current.CompletedBy = appt.CompletedBy
	current.CompletedAt = appt.CompletedAt
	current.CompletionNotes = appt.CompletionNotes
	current.RescheduledToID = appt.RescheduledToID
	current.UpdatedAt = appt.UpdatedAt
	r.appointments[current.ID] = current

	out := current
	return &out, nil
}

func (r *MemoryRepository) UpdateAppointmentDetails(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	current.Type = appt.Type
	current.Priority = appt.Priority
	current.Location = appt.Location
	current.Notes = appt.Notes
	current.Metadata = appt.Metadata
	current.UpdatedAt = appt.UpdatedAt
	r.appointments[current.ID] = current

	out := current
	return &out, nil
}

func (r *MemoryRepository) RescheduleAppointment(_ context.Context, old *Appointment, from Status, replacement *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.appointments[old.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if current.Status != from {
		return nil, ErrStatusChanged
	}
	if r.overlapsLocked(*replacement, old.ID) {
		return nil, ErrOverlap
	}

	current.Status = old.Status
	current.StatusChangedBy = old.StatusChangedBy
	current.StatusChangedAt = old.StatusChangedAt
	current.RescheduledToID = old.RescheduledToID
	current.UpdatedAt = old.UpdatedAt
	r.appointments[current.ID] = current

	stored := *replacement
	r.appointments[stored.ID] = stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) FindNoShowCandidates(_ context.Context, endedBefore time.Time, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Appointment{}
	for _, a := range r.appointments {
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if a.EndTime().After(endedBefore) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextEventID++
	ev.ID = r.nextEventID
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
