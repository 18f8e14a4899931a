package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID       string                         `json:"patient_id"`
	ProviderID      string                         `json:"provider_id"`
	Type            string                         `json:"type"`
	Priority        string                         `json:"priority"`
	ScheduledAt     time.Time                      `json:"scheduled_at"`
	DurationMinutes int                            `json:"duration_minutes"`
	Location        *appointment.Location          `json:"location,omitempty"`
	Notes           string                         `json:"notes"`
	Metadata        map[string]any                 `json:"metadata,omitempty"`
	Recurrence      *appointment.RecurrencePattern `json:"recurrence,omitempty"`
}

type UpdateAppointmentRequest struct {
	Type            *string               `json:"type,omitempty"`
	Priority        *string               `json:"priority,omitempty"`
	Location        *appointment.Location `json:"location,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
	ScheduledAt     *time.Time            `json:"scheduled_at,omitempty"`
	DurationMinutes *int                  `json:"duration_minutes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID                      `json:"id"`
	Reference          string                         `json:"reference"`
	PatientID          uuid.UUID                      `json:"patient_id"`
	ProviderID         uuid.UUID                      `json:"provider_id"`
	Type               string                         `json:"type"`
	Status             string                         `json:"status"`
	Priority           string                         `json:"priority"`
	ScheduledAt        time.Time                      `json:"scheduled_at"`
	EndTime            time.Time                      `json:"end_time"`
	DurationMinutes    int                            `json:"duration_minutes"`
	Location           appointment.Location           `json:"location"`
	Notes              string                         `json:"notes,omitempty"`
	Metadata           map[string]any                 `json:"metadata,omitempty"`
	Recurrence         *appointment.RecurrencePattern `json:"recurrence,omitempty"`
	SeriesID           *uuid.UUID                     `json:"series_id,omitempty"`
	RescheduledFromID  *uuid.UUID                     `json:"rescheduled_from_id,omitempty"`
	RescheduledToID    *uuid.UUID                     `json:"rescheduled_to_id,omitempty"`
	CreatedBy          string                         `json:"created_by,omitempty"`
	StatusChangedBy    string                         `json:"status_changed_by,omitempty"`
	StatusChangedAt    *time.Time                     `json:"status_changed_at,omitempty"`
	CancellationReason string                         `json:"cancellation_reason,omitempty"`
	CompletionNotes    string                         `json:"completion_notes,omitempty"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		Reference:          a.Reference,
		PatientID:          a.PatientID,
		ProviderID:         a.ProviderID,
		Type:               string(a.Type),
		Status:             string(a.Status),
		Priority:           string(a.Priority),
		ScheduledAt:        a.ScheduledAt,
		EndTime:            a.EndTime(),
		DurationMinutes:    a.DurationMinutes,
		Location:           a.Location,
		Notes:              a.Notes,
		Metadata:           a.Metadata,
		Recurrence:         a.Recurrence,
		SeriesID:           a.SeriesID,
		RescheduledFromID:  a.RescheduledFromID,
		RescheduledToID:    a.RescheduledToID,
		CreatedBy:          a.CreatedBy,
		StatusChangedBy:    a.StatusChangedBy,
		StatusChangedAt:    a.StatusChangedAt,
		CancellationReason: a.CancellationReason,
		CompletionNotes:    a.CompletionNotes,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type SeriesInstanceResponse struct {
	Index         int                    `json:"index"`
	ScheduledAt   time.Time              `json:"scheduled_at"`
	Booked        bool                   `json:"booked"`
	AppointmentID *uuid.UUID             `json:"appointment_id,omitempty"`
	Conflicts     []appointment.Conflict `json:"conflicts,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

type CreateAppointmentResponse struct {
	Appointment AppointmentResponse      `json:"appointment"`
	Series      []SeriesInstanceResponse `json:"series,omitempty"`
}

func toCreateResponse(b *appointment.Booking) CreateAppointmentResponse {
	resp := CreateAppointmentResponse{Appointment: toAppointmentResponse(b.Appointment)}
	for _, r := range b.Series {
		item := SeriesInstanceResponse{
			Index:       r.Index,
			ScheduledAt: r.ScheduledAt,
			Booked:      r.Booked(),
			Conflicts:   r.Conflicts,
		}
		if r.Appointment != nil {
			id := r.Appointment.ID
			item.AppointmentID = &id
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		resp.Series = append(resp.Series, item)
	}
	return resp
}

type ConflictsResponse struct {
	ProviderID uuid.UUID              `json:"provider_id"`
	Start      time.Time              `json:"start"`
	End        time.Time              `json:"end"`
	Available  bool                   `json:"available"`
	Conflicts  []appointment.Conflict `json:"conflicts"`
}

type ErrorResponse struct {
	Error     string                 `json:"error"`
	Details   string                 `json:"details,omitempty"`
	Conflicts []appointment.Conflict `json:"conflicts,omitempty"`
}
