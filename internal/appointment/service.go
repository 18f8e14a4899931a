package appointment

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/provider-scheduling-engine/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted     = "APPOINTMENT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentReminderDue = "APPOINTMENT_REMINDER_DUE"
)

const (
	SystemActor = "system"

	maxDurationMinutes = 24 * 60
	readAttempts       = 3
	readBackoff        = 50 * time.Millisecond
	reminderTimeout    = 5 * time.Second
	noShowBatch        = 200
)

// Settings are the scheduling knobs the service needs from configuration.
type Settings struct {
	Policy       Policy
	ReminderLead time.Duration
	NoShowGrace  time.Duration
}

type Service struct {
	repo      Repository
	locker    ProviderLocker
	reminders ReminderScheduler
	blocks    BlockSource
	settings  Settings
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithReminders(r ReminderScheduler) Option {
	return func(s *Service) { s.reminders = r }
}

func WithBlockSource(b BlockSource) Option {
	return func(s *Service) { s.blocks = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker ProviderLocker, settings Settings, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		locker:   locker,
		settings: settings,
		log:      log.With().Str("component", "appointment.service").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.settings.Policy
}

type CreateRequest struct {
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	Type            AppointmentType
	Priority        Priority
	ScheduledAt     time.Time
	DurationMinutes int
	Location        Location
	Notes           string
	Metadata        map[string]any
	Recurrence      *RecurrencePattern
	Actor           string
}

// Booking is the outcome of a create request: the base appointment and, for
// recurring requests, one result per further instance.
type Booking struct {
	Appointment *Appointment
	Series      []SeriesResult
}

func (s *Service) validateCreate(req *CreateRequest) error {
	if req.PatientID == uuid.Nil {
		return validationError("patient_id is required")
	}
	if req.ProviderID == uuid.Nil {
		return validationError("provider_id is required")
	}
	if req.ScheduledAt.IsZero() {
		return validationError("scheduled_at is required")
	}
	if req.DurationMinutes <= 0 {
		return validationError("duration_minutes must be positive")
	}
	if req.DurationMinutes > maxDurationMinutes {
		return validationError("duration_minutes must not exceed %d", maxDurationMinutes)
	}
	if req.Type == "" {
		req.Type = TypeConsultation
	}
	if !req.Type.Valid() {
		return validationError("invalid appointment type %q", req.Type)
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return validationError("invalid priority %q", req.Priority)
	}
	if err := validateLocation(req.Location); err != nil {
		return err
	}
	req.ScheduledAt = req.ScheduledAt.In(s.settings.Policy.location())
	iv := NewInterval(req.ScheduledAt, req.DurationMinutes)
	if !s.settings.Policy.Within(iv) {
		return validationError("appointment %s-%s is outside working hours", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	if req.Recurrence != nil {
		if err := req.Recurrence.Validate(req.ScheduledAt); err != nil {
			return err
		}
	}
	return nil
}

func validateLocation(loc Location) error {
	switch loc.Kind {
	case "", LocationInPerson:
		return nil
	case LocationVirtual:
		if strings.TrimSpace(loc.MeetingURL) == "" {
			return validationError("virtual appointments need a meeting_url")
		}
		return nil
	}
	return validationError("invalid location kind %q", loc.Kind)
}

// CreateAppointment books an appointment for a patient with a provider. The
// conflict check and the insert run under the provider lock, and the insert
// itself refuses overlaps, so concurrent requests cannot double-book.
//
// Recurring requests book every further instance independently: an instance
// that conflicts is skipped and reported, the rest of the series continues.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Booking, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, internalError("load patient", err)
	}
	if _, err := s.repo.GetProviderByID(ctx, req.ProviderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, internalError("load provider", err)
	}

	base := Appointment{
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		Type:            req.Type,
		Status:          StatusScheduled,
		Priority:        req.Priority,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           strings.TrimSpace(req.Notes),
		Metadata:        req.Metadata,
		Recurrence:      req.Recurrence,
		CreatedBy:       req.Actor,
	}
	// expand before any write: an oversized series must leave nothing booked
	var instances []Appointment
	if req.Recurrence != nil {
		seriesID := uuid.New()
		base.SeriesID = &seriesID

		var err error
		if instances, err = Expand(base, *req.Recurrence); err != nil {
			return nil, err
		}
	}

	created, err := s.book(ctx, base)
	if err != nil {
		return nil, err
	}

	booking := &Booking{Appointment: created}
	for i, inst := range instances {
		res := SeriesResult{Index: i + 1, ScheduledAt: inst.ScheduledAt}
		appt, err := s.book(ctx, inst)
		if err != nil {
			var cErr *ConflictError
			if errors.As(err, &cErr) {
				res.Conflicts = cErr.Conflicts
			}
			res.Err = err
			s.log.Info().
				Err(err).
				Str("series_id", created.SeriesID.String()).
				Int("index", res.Index).
				Time("scheduled_at", inst.ScheduledAt).
				Msg("series instance skipped")
		} else {
			res.Appointment = appt
		}
		booking.Series = append(booking.Series, res)
	}

	return booking, nil
}

// book runs the check-then-insert for one appointment inside the provider's
// critical section.
func (s *Service) book(ctx context.Context, appt Appointment) (*Appointment, error) {
	now := s.now()
	appt.ID = uuid.New()
	appt.Reference = newReference(appt.ScheduledAt)
	appt.CreatedAt = now
	appt.UpdatedAt = now

	var created *Appointment

	err := s.withProviderLock(ctx, appt.ProviderID, func(lockCtx context.Context) error {
		iv := appt.Interval()
		conflicts, err := s.conflictsFor(lockCtx, appt.ProviderID, iv, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		out, err := s.repo.InsertAppointment(lockCtx, &appt)
		if err != nil {
			if errors.Is(err, ErrOverlap) {
				return s.overlapError(lockCtx, appt.ProviderID, iv, nil)
			}
			return internalError("insert appointment", err)
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"provider_id":  created.ProviderID.String(),
		"patient_id":   created.PatientID.String(),
		"scheduled_at": created.ScheduledAt,
		"duration":     created.DurationMinutes,
		"actor":        created.CreatedBy,
	})
	s.scheduleReminder(created)

	return created, nil
}

// conflictsFor loads the provider's bookings around iv and runs the
// detector. It is used inside the critical section, so no retries.
func (s *Service) conflictsFor(ctx context.Context, providerID uuid.UUID, iv Interval, excludeID *uuid.UUID) ([]Conflict, error) {
	existing, err := s.repo.ListProviderAppointments(ctx, providerID, iv.Start, iv.End)
	if err != nil {
		return nil, internalError("list provider appointments", err)
	}
	return DetectConflicts(providerID, iv, existing, excludeID, s.settings.Policy), nil
}

// overlapError builds the ConflictError for an insert refused by storage.
func (s *Service) overlapError(ctx context.Context, providerID uuid.UUID, iv Interval, excludeID *uuid.UUID) error {
	conflicts, err := s.conflictsFor(ctx, providerID, iv, excludeID)
	if err != nil || len(conflicts) == 0 {
		conflicts = []Conflict{{
			Kind:    ConflictOverlap,
			Message: "provider already has an overlapping appointment",
		}}
	}
	return &ConflictError{Conflicts: conflicts}
}

func (s *Service) withProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithProviderLock(ctx, providerID, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) && !errors.Is(err, ErrProviderBusy) {
		return fmt.Errorf("%w: %v", ErrProviderBusy, err)
	}
	return err
}

// Changes lists the fields an update may touch. A change of ScheduledAt or
// DurationMinutes reschedules the appointment.
type Changes struct {
	Type            *AppointmentType
	Priority        *Priority
	Location        *Location
	Notes           *string
	Metadata        map[string]any
	ScheduledAt     *time.Time
	DurationMinutes *int
	Actor           string
}

func (c Changes) reschedules(a *Appointment) bool {
	if c.ScheduledAt != nil && !c.ScheduledAt.Equal(a.ScheduledAt) {
		return true
	}
	return c.DurationMinutes != nil && *c.DurationMinutes != a.DurationMinutes
}

// UpdateAppointment applies detail changes in place. When the interval
// changes, the appointment is rescheduled instead: the new interval is
// checked against the provider's other bookings, the current instance
// becomes RESCHEDULED and a replacement is returned.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, changes Changes) (*Appointment, error) {
	current, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *Appointment
	var rescheduled bool

	err = s.withProviderLock(ctx, current.ProviderID, func(lockCtx context.Context) error {
		appt, err := s.loadAppointment(lockCtx, id)
		if err != nil {
			return err
		}
		if appt.Status.Terminal() {
			return &TransitionError{From: appt.Status, To: appt.Status, Reason: "appointment can no longer be changed"}
		}

		updated := *appt
		if err := applyDetailChanges(&updated, changes); err != nil {
			return err
		}

		now := s.now()
		if !changes.reschedules(appt) {
			updated.UpdatedAt = now
			out, err := s.repo.UpdateAppointmentDetails(lockCtx, &updated)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return ErrAppointmentNotFound
				}
				return internalError("update appointment", err)
			}
			result = out
			return nil
		}

		if changes.ScheduledAt != nil {
			updated.ScheduledAt = changes.ScheduledAt.In(s.settings.Policy.location())
		}
		if changes.DurationMinutes != nil {
			updated.DurationMinutes = *changes.DurationMinutes
		}
		if updated.DurationMinutes <= 0 || updated.DurationMinutes > maxDurationMinutes {
			return validationError("duration_minutes must be between 1 and %d", maxDurationMinutes)
		}
		iv := updated.Interval()
		if !s.settings.Policy.Within(iv) {
			return validationError("appointment %s-%s is outside working hours", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
		}

		excludeID := appt.ID
		conflicts, err := s.conflictsFor(lockCtx, appt.ProviderID, iv, &excludeID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		replacement := updated
		replacement.ID = uuid.New()
		replacement.Reference = newReference(replacement.ScheduledAt)
		replacement.Status = StatusScheduled
		replacement.RescheduledFromID = &appt.ID
		replacement.RescheduledToID = nil
		replacement.StatusChangedBy = ""
		replacement.StatusChangedAt = nil
		replacement.CreatedBy = changes.Actor
		replacement.CreatedAt = now
		replacement.UpdatedAt = now

		old := *appt
		from := old.Status
		if err := old.MarkRescheduled(replacement.ID, changes.Actor, now); err != nil {
			return err
		}

		out, err := s.repo.RescheduleAppointment(lockCtx, &old, from, &replacement)
		if err != nil {
			switch {
			case errors.Is(err, ErrOverlap):
				return s.overlapError(lockCtx, appt.ProviderID, iv, &excludeID)
			case errors.Is(err, ErrStatusChanged):
				return &TransitionError{From: from, To: StatusRescheduled, Reason: "status changed concurrently"}
			case errors.Is(err, ErrNotFound):
				return ErrAppointmentNotFound
			}
			return internalError("reschedule appointment", err)
		}
		result = out
		rescheduled = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rescheduled {
		s.logEvent(ctx, id, EventAppointmentRescheduled, map[string]any{
			"replacement_id": result.ID.String(),
			"scheduled_at":   result.ScheduledAt,
			"duration":       result.DurationMinutes,
			"actor":          changes.Actor,
		})
		s.scheduleReminder(result)
	} else {
		s.logEvent(ctx, id, EventAppointmentUpdated, map[string]any{"actor": changes.Actor})
	}

	return result, nil
}

func applyDetailChanges(a *Appointment, c Changes) error {
	if c.Type != nil {
		if !c.Type.Valid() {
			return validationError("invalid appointment type %q", *c.Type)
		}
		a.Type = *c.Type
	}
	if c.Priority != nil {
		if !c.Priority.Valid() {
			return validationError("invalid priority %q", *c.Priority)
		}
		a.Priority = *c.Priority
	}
	if c.Location != nil {
		if err := validateLocation(*c.Location); err != nil {
			return err
		}
		a.Location = *c.Location
	}
	if c.Notes != nil {
		a.Notes = strings.TrimSpace(*c.Notes)
	}
	if c.Metadata != nil {
		a.Metadata = c.Metadata
	}
	return nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID, actor string) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentConfirmed, func(a *Appointment, now time.Time) error {
		return a.Confirm(actor, now)
	})
}

func (s *Service) CheckInAppointment(ctx context.Context, id uuid.UUID, actor string) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentCheckedIn, func(a *Appointment, now time.Time) error {
		return a.CheckIn(actor, now)
	})
}

func (s *Service) StartAppointment(ctx context.Context, id uuid.UUID, actor string) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentStarted, func(a *Appointment, now time.Time) error {
		return a.Start(actor, now)
	})
}

func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID, notes, actor string) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentCompleted, func(a *Appointment, now time.Time) error {
		return a.Complete(notes, actor, now)
	})
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason, actor string) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("cancellation reason is required")
	}
	return s.transition(ctx, id, EventAppointmentCancelled, func(a *Appointment, now time.Time) error {
		return a.Cancel(reason, actor, now)
	})
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actor string) (*Appointment, error) {
	return s.transition(ctx, id, EventAppointmentNoShow, func(a *Appointment, now time.Time) error {
		return a.MarkNoShow(actor, now)
	})
}

// transition applies one lifecycle step and persists it with a
// compare-and-set on the previous status. Failures are returned as is and
// never retried.
func (s *Service) transition(ctx context.Context, id uuid.UUID, eventType string, apply func(a *Appointment, now time.Time) error) (*Appointment, error) {
	current, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *Appointment
	err = s.withProviderLock(ctx, current.ProviderID, func(lockCtx context.Context) error {
		appt, err := s.loadAppointment(lockCtx, id)
		if err != nil {
			return err
		}
		from := appt.Status
		if err := apply(appt, s.now()); err != nil {
			return err
		}
		out, err := s.repo.UpdateAppointmentStatus(lockCtx, appt, from)
		if err != nil {
			switch {
			case errors.Is(err, ErrStatusChanged):
				return &TransitionError{From: from, To: appt.Status, Reason: "status changed concurrently"}
			case errors.Is(err, ErrNotFound):
				return ErrAppointmentNotFound
			}
			return internalError("update appointment status", err)
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, result.ID, eventType, map[string]any{
		"status": string(result.Status),
		"actor":  result.StatusChangedBy,
	})
	return result, nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, internalError("load appointment", err)
	}
	return appt, nil
}

// GetAppointment retrieves an appointment by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.readWithRetry(ctx, "get appointment", func(ctx context.Context) error {
		var err error
		appt, err = s.repo.GetAppointmentByID(ctx, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	return appt, err
}

// GetProviderSchedule builds the provider's day view for date. It reads
// without the provider lock, so it may trail a concurrent booking.
func (s *Service) GetProviderSchedule(ctx context.Context, providerID uuid.UUID, date time.Time) (*ProviderSchedule, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return nil, err
	}

	window := s.settings.Policy.WorkingWindow(date)

	var existing []Appointment
	err := s.readWithRetry(ctx, "list provider appointments", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.ListProviderAppointments(ctx, providerID, window.Start, window.End)
		return err
	})
	if err != nil {
		return nil, err
	}

	var blocks []Block
	if s.blocks != nil {
		err := s.readWithRetry(ctx, "list provider blocks", func(ctx context.Context) error {
			var err error
			blocks, err = s.blocks.ListBlocks(ctx, providerID, window)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	sched := BuildSchedule(providerID, date, s.settings.Policy, existing, blocks, s.log)
	return &sched, nil
}

// CheckConflicts reports what would stop iv from being booked for the
// provider, without booking anything.
func (s *Service) CheckConflicts(ctx context.Context, providerID uuid.UUID, iv Interval, excludeID *uuid.UUID) ([]Conflict, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if !iv.Valid() {
		return nil, validationError("interval end must be after start")
	}
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return nil, err
	}

	var existing []Appointment
	err := s.readWithRetry(ctx, "list provider appointments", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.ListProviderAppointments(ctx, providerID, iv.Start, iv.End)
		return err
	})
	if err != nil {
		return nil, err
	}

	conflicts := DetectConflicts(providerID, iv, existing, excludeID, s.settings.Policy)
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	return conflicts, nil
}

func (s *Service) ensureProvider(ctx context.Context, providerID uuid.UUID) error {
	err := s.readWithRetry(ctx, "load provider", func(ctx context.Context) error {
		_, err := s.repo.GetProviderByID(ctx, providerID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return ErrProviderNotFound
	}
	return err
}

// readWithRetry retries read-only storage calls a bounded number of times.
// Validation and not-found errors are returned at once.
func (s *Service) readWithRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == readAttempts {
			break
		}
		s.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("read failed, retrying")
		select {
		case <-ctx.Done():
			return internalError(op, ctx.Err())
		case <-time.After(time.Duration(attempt) * readBackoff):
		}
	}
	return internalError(op, err)
}

// MarkNoShows moves appointments whose end passed more than the grace period
// ago without the patient arriving to NO_SHOW. It is called periodically by
// the worker.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.settings.NoShowGrace)
	candidates, err := s.repo.FindNoShowCandidates(ctx, cutoff, noShowBatch)
	if err != nil {
		return 0, internalError("find no-show candidates", err)
	}

	marked := 0
	for _, appt := range candidates {
		if _, err := s.MarkNoShow(ctx, appt.ID, SystemActor); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			continue
		}
		marked++
	}
	return marked, nil
}

// ProcessReminder is called by the worker when a reminder falls due. It
// reports false when the appointment no longer needs a reminder.
func (s *Service) ProcessReminder(ctx context.Context, id uuid.UUID) (bool, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return false, err
	}
	if appt.Status.Terminal() {
		return false, nil
	}
	s.logEvent(ctx, appt.ID, EventAppointmentReminderDue, map[string]any{
		"patient_id":   appt.PatientID.String(),
		"provider_id":  appt.ProviderID.String(),
		"scheduled_at": appt.ScheduledAt,
		"reference":    appt.Reference,
	})
	return true, nil
}

// scheduleReminder hands the reminder to the notification collaborator
// without waiting. A failure is logged and never affects the booking.
func (s *Service) scheduleReminder(appt *Appointment) {
	if s.reminders == nil {
		return
	}
	remindAt := appt.ScheduledAt.Add(-s.settings.ReminderLead)
	if now := s.now(); remindAt.Before(now) {
		remindAt = now
	}
	id := appt.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
		defer cancel()
		if err := s.reminders.ScheduleReminder(ctx, id, remindAt); err != nil {
			s.log.Warn().Err(err).Str("appointment_id", id.String()).Msg("failed to schedule reminder")
		}
	}()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newReference returns a human-readable code such as APT-20261017-K7Q2MX.
func newReference(at time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, uuid.New().String())
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("APT-%s-%s", at.UTC().Format("20060102"), buf)
}
