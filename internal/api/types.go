package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/appointly/appointment-booking/internal/booking"
	"github.com/appointly/appointment-booking/internal/customer"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type CreateAppointmentRequest struct {
	CustomerID  string    `json:"customer_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

// UpdateAppointmentRequest carries an optional-field patch: omitted fields
// are left unchanged, so nil pointers and "not sent" are distinguishable
// from zero values.
type UpdateAppointmentRequest struct {
	CustomerID  *string    `json:"customer_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       *string    `json:"notes"`
	Status      *string    `json:"status"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		CustomerID:  a.CustomerID,
		ScheduledAt: a.ScheduledAt,
		Notes:       a.Notes,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAppointmentList(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(appts))
	for i := range appts {
		out[i] = toAppointmentResponse(&appts[i])
	}
	return out
}

type CustomerRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type CustomerResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Available   bool      `json:"available"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
