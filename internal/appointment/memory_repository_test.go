package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryRepository_RefusesOverlap(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	patient, provider := uuid.New(), uuid.New()
	repo.AddPatient(Patient{ID: patient})
	repo.AddProvider(Provider{ID: provider})

	first := booked(provider, at(10, 0), 30, StatusScheduled)
	first.PatientID = patient
	if _, err := repo.InsertAppointment(ctx, &first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	clash := booked(provider, at(10, 15), 30, StatusScheduled)
	clash.PatientID = patient
	if _, err := repo.InsertAppointment(ctx, &clash); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}

	next := booked(provider, at(10, 30), 30, StatusScheduled)
	next.PatientID = patient
	if _, err := repo.InsertAppointment(ctx, &next); err != nil {
		t.Fatalf("insert adjacent: %v", err)
	}

	stranger := booked(uuid.New(), at(11, 0), 30, StatusScheduled)
	stranger.PatientID = patient
	if _, err := repo.InsertAppointment(ctx, &stranger); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestMemoryRepository_StatusCompareAndSet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	patient, provider := uuid.New(), uuid.New()
	repo.AddPatient(Patient{ID: patient})
	repo.AddProvider(Provider{ID: provider})

	a := booked(provider, at(10, 0), 30, StatusScheduled)
	a.PatientID = patient
	if _, err := repo.InsertAppointment(ctx, &a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	confirmed := a
	confirmed.Status = StatusConfirmed
	if _, err := repo.UpdateAppointmentStatus(ctx, &confirmed, StatusScheduled); err != nil {
		t.Fatalf("first update: %v", err)
	}

	cancelled := a
	cancelled.Status = StatusCancelled
	if _, err := repo.UpdateAppointmentStatus(ctx, &cancelled, StatusScheduled); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged on stale update, got %v", err)
	}

	missing := a
	missing.ID = uuid.New()
	if _, err := repo.UpdateAppointmentStatus(ctx, &missing, StatusScheduled); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_ListFiltersWindow(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	patient, provider := uuid.New(), uuid.New()
	repo.AddPatient(Patient{ID: patient})
	repo.AddProvider(Provider{ID: provider})

	for _, start := range []int{9, 11, 15} {
		a := booked(provider, at(start, 0), 60, StatusScheduled)
		a.PatientID = patient
		if _, err := repo.InsertAppointment(ctx, &a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := repo.ListProviderAppointments(ctx, provider, at(10, 0), at(12, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || !got[0].ScheduledAt.Equal(at(11, 0)) {
		t.Errorf("expected only the 11:00 appointment, got %+v", got)
	}
}
