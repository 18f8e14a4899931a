package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		in := appointment.CreateRequest{
			PatientID:       patientID,
			ProviderID:      providerID,
			Type:            appointment.AppointmentType(req.Type),
			Priority:        appointment.Priority(req.Priority),
			ScheduledAt:     req.ScheduledAt,
			DurationMinutes: req.DurationMinutes,
			Notes:           req.Notes,
			Metadata:        req.Metadata,
			Recurrence:      req.Recurrence,
			Actor:           GetActor(r.Context()),
		}
		if req.Location != nil {
			in.Location = *req.Location
		}

		booking, err := svc.CreateAppointment(r.Context(), in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCreateResponse(booking))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		changes := appointment.Changes{
			Location:        req.Location,
			Notes:           req.Notes,
			Metadata:        req.Metadata,
			ScheduledAt:     req.ScheduledAt,
			DurationMinutes: req.DurationMinutes,
			Actor:           GetActor(r.Context()),
		}
		if req.Type != nil {
			t := appointment.AppointmentType(*req.Type)
			changes.Type = &t
		}
		if req.Priority != nil {
			p := appointment.Priority(*req.Priority)
			changes.Priority = &p
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, changes)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// transitionHandler runs one lifecycle operation. The operation reports
// false when it already wrote a response.
func transitionHandler(op func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, ok, err := op(w, r, id)
		if !ok {
			return
		}
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		appt, err := svc.ConfirmAppointment(r.Context(), id, GetActor(r.Context()))
		return appt, true, err
	})
}

func checkInAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		appt, err := svc.CheckInAppointment(r.Context(), id, GetActor(r.Context()))
		return appt, true, err
	})
}

func startAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		appt, err := svc.StartAppointment(r.Context(), id, GetActor(r.Context()))
		return appt, true, err
	})
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		var req CompleteAppointmentRequest
		if !decodeOptionalBody(w, r, &req) {
			return nil, false, nil
		}
		appt, err := svc.CompleteAppointment(r.Context(), id, req.Notes, GetActor(r.Context()))
		return appt, true, err
	})
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		var req CancelAppointmentRequest
		if !decodeBody(w, r, &req) {
			return nil, false, nil
		}
		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason, GetActor(r.Context()))
		return appt, true, err
	})
}

func noShowAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return transitionHandler(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*appointment.Appointment, bool, error) {
		appt, err := svc.MarkNoShow(r.Context(), id, GetActor(r.Context()))
		return appt, true, err
	})
}

func providerScheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		loc := svc.Policy().Location
		if loc == nil {
			loc = time.UTC
		}

		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "date is required (YYYY-MM-DD)")
			return
		}
		date, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		sched, err := svc.GetProviderSchedule(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, sched)
	}
}

func providerConflictsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseUUIDParam(w, r, "providerID", "invalid_provider_id")
		if !ok {
			return
		}

		q := r.URL.Query()
		start, err := time.Parse(time.RFC3339, q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC3339 timestamp")
			return
		}
		duration, err := strconv.Atoi(q.Get("duration"))
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}

		var excludeID *uuid.UUID
		if raw := q.Get("exclude_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude_id must be a valid UUID")
				return
			}
			excludeID = &id
		}

		iv := appointment.NewInterval(start, duration)
		conflicts, err := svc.CheckConflicts(r.Context(), providerID, iv, excludeID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, ConflictsResponse{
			ProviderID: providerID,
			Start:      iv.Start,
			End:        iv.End,
			Available:  len(conflicts) == 0,
			Conflicts:  conflicts,
		})
	}
}
