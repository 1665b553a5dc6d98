package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appointly/appointment-booking/internal/booking"
	redisclient "github.com/appointly/appointment-booking/internal/redis"
)

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		customerID, err := uuid.Parse(req.CustomerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a valid UUID")
			return
		}

		if req.ScheduledAt.IsZero() {
			writeError(w, http.StatusBadRequest, "missing_scheduled_at", "scheduled_at is required")
			return
		}

		appt, err := svc.Create(r.Context(), customerID, req.ScheduledAt, req.Notes)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var patch booking.UpdatePatch

		if req.CustomerID != nil {
			customerID, err := uuid.Parse(*req.CustomerID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a valid UUID")
				return
			}
			patch.CustomerID = &customerID
		}
		patch.ScheduledAt = req.ScheduledAt
		patch.Notes = req.Notes
		if req.Status != nil {
			status, err := booking.ParseStatus(*req.Status)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
				return
			}
			patch.Status = &status
		}

		appt, err := svc.Update(r.Context(), id, patch)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListAll(r.Context())
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func listAppointmentsByCustomerHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := uuid.Parse(chi.URLParam(r, "customerId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_customer_id", "customerId must be a valid UUID")
			return
		}

		appts, err := svc.ListByCustomer(r.Context(), customerID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func listAppointmentsByStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := booking.ParseStatus(chi.URLParam(r, "status"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		appts, err := svc.ListByStatus(r.Context(), status)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func listAppointmentsByDateHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.ListByDate(r.Context(), day)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func listAppointmentsInRangeHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339")
			return
		}
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC 3339")
			return
		}
		if !end.After(start) {
			writeError(w, http.StatusBadRequest, "invalid_range", "end must be after start")
			return
		}

		appts, err := svc.ListInRange(r.Context(), start, end)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func availabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := time.Parse(time.RFC3339, r.URL.Query().Get("at"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_at", "at must be RFC 3339")
			return
		}

		available, err := svc.IsSlotAvailable(r.Context(), at)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{ScheduledAt: at.UTC(), Available: available})
	}
}

// deleteAppointmentHandler removes a row outright. Deletion is an
// administrative action that bypasses the engine, so it talks to the store
// directly.
func deleteAppointmentHandler(store booking.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		if err := store.Delete(r.Context(), id); err != nil {
			handleBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", err.Error())
	case errors.Is(err, booking.ErrScheduledInPast):
		writeError(w, http.StatusBadRequest, "scheduled_in_past", err.Error())
	case errors.Is(err, booking.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "time slot is already booked, please select another time")
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, booking.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, booking.ErrCompleteCancelled):
		writeError(w, http.StatusConflict, "complete_cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
