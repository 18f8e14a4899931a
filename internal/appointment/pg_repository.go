package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const overlapConstraint = "appointments_no_overlap"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, reference, patient_id, provider_id, type, status, priority,
	scheduled_at, duration_minutes, location, notes, metadata, recurrence,
	series_id, rescheduled_from_id, rescheduled_to_id,
	created_by, status_changed_by, status_changed_at,
	cancelled_by, cancelled_at, cancellation_reason,
	completed_by, completed_at, completion_notes,
	created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider

	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var location, metadata, recurrence []byte

	err := row.Scan(
		&a.ID,
		&a.Reference,
		&a.PatientID,
		&a.ProviderID,
		&a.Type,
		&a.Status,
		&a.Priority,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&location,
		&a.Notes,
		&metadata,
		&recurrence,
		&a.SeriesID,
		&a.RescheduledFromID,
		&a.RescheduledToID,
		&a.CreatedBy,
		&a.StatusChangedBy,
		&a.StatusChangedAt,
		&a.CancelledBy,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.CompletedBy,
		&a.CompletedAt,
		&a.CompletionNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if len(location) > 0 {
		if err := json.Unmarshal(location, &a.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(recurrence) > 0 {
		var p RecurrencePattern
		if err := json.Unmarshal(recurrence, &p); err != nil {
			return nil, fmt.Errorf("decode recurrence: %w", err)
		}
		a.Recurrence = &p
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// mapWriteError turns the exclusion-constraint violation into ErrOverlap.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint {
		return ErrOverlap
	}
	return err
}

// inProviderTx runs fn in a transaction that holds the provider's advisory
// lock until commit.
func (r *PgRepository) inProviderTx(ctx context.Context, providerID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, providerID.String()); err != nil {
		return fmt.Errorf("lock provider calendar: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status NOT IN ('cancelled', 'rescheduled')
		  AND scheduled_at < $3
		  AND end_time > $2
		ORDER BY scheduled_at, id
	`, providerID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func insertAppointment(ctx context.Context, q pgx.Tx, appt *Appointment) (*Appointment, error) {
	location, err := jsonColumn(appt.Location)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	var metadata, recurrence []byte
	if appt.Metadata != nil {
		if metadata, err = jsonColumn(appt.Metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}
	if appt.Recurrence != nil {
		if recurrence, err = jsonColumn(appt.Recurrence); err != nil {
			return nil, fmt.Errorf("encode recurrence: %w", err)
		}
	}

	row := q.QueryRow(ctx, `
		INSERT INTO appointments (
			id, reference, patient_id, provider_id, type, status, priority,
			scheduled_at, duration_minutes, end_time, location, notes, metadata, recurrence,
			series_id, rescheduled_from_id, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			COALESCE($18, now()), COALESCE($18, now()))
		RETURNING `+appointmentColumns,
		appt.ID, appt.Reference, appt.PatientID, appt.ProviderID, appt.Type, appt.Status, appt.Priority,
		appt.ScheduledAt, appt.DurationMinutes, appt.EndTime(), location, appt.Notes, metadata, recurrence,
		appt.SeriesID, appt.RescheduledFromID, appt.CreatedBy, nullableTime(appt.CreatedAt),
	)

	out, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return out, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	var out *Appointment
	err := r.inProviderTx(ctx, appt.ProviderID, func(tx pgx.Tx) error {
		var err error
		out, err = insertAppointment(ctx, tx, appt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func updateStatus(ctx context.Context, q pgx.Tx, appt *Appointment, from Status) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    status_changed_by = $4,
		    status_changed_at = $5,
		    cancelled_by = $6,
		    cancelled_at = $7,
		    cancellation_reason = $8,
		    completed_by = $9,
		    completed_at = $10,
		    completion_notes = $11,
		    rescheduled_to_id = $12,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		appt.ID, appt.Status, from,
		appt.StatusChangedBy, appt.StatusChangedAt,
		appt.CancelledBy, appt.CancelledAt, appt.CancellationReason,
		appt.CompletedBy, appt.CompletedAt, appt.CompletionNotes,
		appt.RescheduledToID,
	)

	out, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// either gone or the status moved underneath us
		var exists bool
		if qerr := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, appt.ID).Scan(&exists); qerr != nil {
			return nil, qerr
		}
		if exists {
			return nil, ErrStatusChanged
		}
		return nil, ErrAppointmentNotFound
	}
	return out, err
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, appt *Appointment, from Status) (*Appointment, error) {
	var out *Appointment
	err := r.inProviderTx(ctx, appt.ProviderID, func(tx pgx.Tx) error {
		var err error
		out, err = updateStatus(ctx, tx, appt, from)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) UpdateAppointmentDetails(ctx context.Context, appt *Appointment) (*Appointment, error) {
	location, err := jsonColumn(appt.Location)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	var metadata []byte
	if appt.Metadata != nil {
		if metadata, err = jsonColumn(appt.Metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET type = $2,
		    priority = $3,
		    location = $4,
		    notes = $5,
		    metadata = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		appt.ID, appt.Type, appt.Priority, location, appt.Notes, metadata,
	)
	return scanAppointment(row)
}

// RescheduleAppointment retires old and inserts its replacement in one
// transaction. The exclusion constraint is checked against the replacement
// after old has stopped occupying its interval.
func (r *PgRepository) RescheduleAppointment(ctx context.Context, old *Appointment, from Status, replacement *Appointment) (*Appointment, error) {
	var out *Appointment
	err := r.inProviderTx(ctx, old.ProviderID, func(tx pgx.Tx) error {
		// rescheduled_to_id references the replacement, so link it after the insert
		retired := *old
		retired.RescheduledToID = nil
		if _, err := updateStatus(ctx, tx, &retired, from); err != nil {
			return err
		}

		var err error
		out, err = insertAppointment(ctx, tx, replacement)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET rescheduled_to_id = $2
			WHERE id = $1
		`, old.ID, out.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) FindNoShowCandidates(ctx context.Context, endedBefore time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND end_time <= $1
		ORDER BY scheduled_at, id
		LIMIT $2
	`, endedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// Seeding helpers used by cmd/seed.

func (r *PgRepository) UpsertPatient(ctx context.Context, p Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()
	`, p.ID, p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) UpsertProvider(ctx context.Context, p Provider) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, name, specialty, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, specialty = EXCLUDED.specialty, updated_at = now()
	`, p.ID, p.Name, p.Specialty)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
