package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrCustomerNotFound    = errors.New("customer not found")
)

// Repository contains all DB interactions needed by the engine. The store
// assigns the ID on Insert and is the only component allowed to write
// appointment rows.
type Repository interface {
	Insert(ctx context.Context, appt Appointment) (*Appointment, error)
	Update(ctx context.Context, appt Appointment) (*Appointment, error)
	// UpdateStatus is a compare-and-swap on the status column.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetScheduledAt returns the scheduled appointment occupying the exact
	// instant, or ErrAppointmentNotFound. At most one can exist.
	GetScheduledAt(ctx context.Context, at time.Time) (*Appointment, error)

	ListAll(ctx context.Context) ([]Appointment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Appointment, error)
	ListByStatus(ctx context.Context, status Status) ([]Appointment, error)
	// ListScheduledInRange returns scheduled appointments with
	// start <= scheduled_at < end, ordered by time.
	ListScheduledInRange(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// Delete removes a row outright. It exists for the administrative surface
	// only; the engine never calls it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// CustomerDirectory resolves customer references. The engine only needs
// existence checks; customer records themselves live elsewhere.
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
}
