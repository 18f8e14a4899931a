package appointment

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling-engine/internal/db"
)

// newPgRepository connects to SCHEDULER_TEST_POSTGRES_DSN, applies the
// migrations and skips the test when the variable is unset.
func newPgRepository(t *testing.T) *PgRepository {
	t.Helper()
	dsn := os.Getenv("SCHEDULER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCHEDULER_TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewPgRepository(pool)
}

func seedParties(t *testing.T, repo *PgRepository) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	patient, provider := uuid.New(), uuid.New()
	if err := repo.UpsertPatient(ctx, Patient{ID: patient, Name: "Integration Patient"}); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	if err := repo.UpsertProvider(ctx, Provider{ID: provider, Name: "Integration Provider"}); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	return patient, provider
}

func newPgAppointment(patient, provider uuid.UUID, start time.Time, minutes int) *Appointment {
	return &Appointment{
		ID:              uuid.New(),
		Reference:       newReference(start),
		PatientID:       patient,
		ProviderID:      provider,
		Type:            TypeConsultation,
		Status:          StatusScheduled,
		Priority:        PriorityMedium,
		ScheduledAt:     start,
		DurationMinutes: minutes,
		Location:        Location{Kind: LocationInPerson, Room: "2B"},
		Metadata:        map[string]any{"source": "test"},
		CreatedBy:       "test",
	}
}

func TestPgRepository_ExclusionConstraint(t *testing.T) {
	repo := newPgRepository(t)
	ctx := context.Background()
	patient, provider := seedParties(t, repo)

	first, err := repo.InsertAppointment(ctx, newPgAppointment(patient, provider, at(10, 0), 30))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.Location.Room != "2B" || first.Metadata["source"] != "test" {
		t.Errorf("json columns did not round trip: %+v", first)
	}

	if _, err := repo.InsertAppointment(ctx, newPgAppointment(patient, provider, at(10, 15), 30)); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if _, err := repo.InsertAppointment(ctx, newPgAppointment(patient, provider, at(10, 30), 30)); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}

	list, err := repo.ListProviderAppointments(ctx, provider, at(0, 0), at(23, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 appointments, got %d", len(list))
	}
}

func TestPgRepository_StatusAndReschedule(t *testing.T) {
	repo := newPgRepository(t)
	ctx := context.Background()
	patient, provider := seedParties(t, repo)

	appt, err := repo.InsertAppointment(ctx, newPgAppointment(patient, provider, at(11, 0), 30))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	stale := *appt
	stale.Status = StatusCancelled
	if _, err := repo.UpdateAppointmentStatus(ctx, &stale, StatusConfirmed); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}

	replacement := newPgAppointment(patient, provider, at(11, 15), 30)
	replacement.RescheduledFromID = &appt.ID
	old := *appt
	if err := old.MarkRescheduled(replacement.ID, "test", time.Now()); err != nil {
		t.Fatalf("MarkRescheduled: %v", err)
	}

	out, err := repo.RescheduleAppointment(ctx, &old, StatusScheduled, replacement)
	if err != nil {
		t.Fatalf("reschedule onto own interval: %v", err)
	}

	got, err := repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRescheduled || got.RescheduledToID == nil || *got.RescheduledToID != out.ID {
		t.Errorf("unexpected original after reschedule %+v", got)
	}
}
