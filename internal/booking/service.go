package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/appointly/appointment-booking/internal/redis"
)

var (
	ErrSlotTaken         = errors.New("time slot is already booked")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrScheduledInPast   = errors.New("scheduled time must be in the future")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrAlreadyCancelled  = errors.New("appointment is already cancelled")
	ErrAlreadyCompleted  = errors.New("appointment is already completed")
	ErrCompleteCancelled = errors.New("cannot complete a cancelled appointment")
)

// Service is the booking engine. It is the sole mutator of appointment state:
// it owns the status state machine and guarantees that at most one scheduled
// appointment exists per exact instant, even under concurrent requests.
type Service struct {
	repo      Repository
	customers CustomerDirectory
	locker    redisclient.Locker
}

func NewService(repo Repository, customers CustomerDirectory, locker redisclient.Locker) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		locker:    locker,
	}
}

// Create books a new appointment in the scheduled state. The slot lock covers
// the conflict check and the insert so two concurrent creates for the same
// instant cannot both observe an empty slot.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, scheduledAt time.Time, notes string) (*Appointment, error) {
	at := scheduledAt.UTC()
	if !at.After(time.Now()) {
		return nil, ErrScheduledInPast
	}

	ok, err := s.customers.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}
	if !ok {
		return nil, ErrCustomerNotFound
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, at, func(lockCtx context.Context) error {
		existing, err := s.repo.GetScheduledAt(lockCtx, at)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.repo.Insert(lockCtx, Appointment{
			CustomerID:  customerID,
			ScheduledAt: at,
			Notes:       notes,
			Status:      StatusScheduled,
		})
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Update applies an optional-field patch. Absent fields are left unchanged.
// A changed scheduled time goes through the same conflict check as Create,
// excluding the appointment itself so a no-op or unrelated-field update never
// self-conflicts.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.CustomerID != nil {
		ok, err := s.customers.CustomerExists(ctx, *patch.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
		if !ok {
			return nil, ErrCustomerNotFound
		}
		appt.CustomerID = *patch.CustomerID
	}

	if patch.Notes != nil {
		appt.Notes = *patch.Notes
	}

	if patch.Status != nil {
		if _, err := ParseStatus(string(*patch.Status)); err != nil {
			return nil, err
		}
		appt.Status = *patch.Status
	}

	if patch.ScheduledAt != nil {
		newAt := patch.ScheduledAt.UTC()
		if !newAt.Equal(appt.ScheduledAt) {
			if !newAt.After(time.Now()) {
				return nil, ErrScheduledInPast
			}
			return s.reschedule(ctx, appt, newAt)
		}
	}

	updated, err := s.repo.Update(ctx, *appt)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return updated, nil
}

func (s *Service) reschedule(ctx context.Context, appt *Appointment, newAt time.Time) (*Appointment, error) {
	var updated *Appointment

	err := s.locker.WithSlotLock(ctx, newAt, func(lockCtx context.Context) error {
		existing, err := s.repo.GetScheduledAt(lockCtx, newAt)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot: %w", err)
		}
		if existing != nil && existing.ID != appt.ID {
			return ErrSlotTaken
		}

		appt.ScheduledAt = newAt
		updated, err = s.repo.Update(lockCtx, *appt)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// Cancel transitions an appointment to cancelled from any state except
// cancelled itself. Cancelling a completed appointment is permitted; the
// freed slot becomes bookable again.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	return updated, nil
}

// Complete transitions a scheduled appointment to completed. Completed and
// cancelled appointments are rejected; nothing ever returns to scheduled.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusCompleted:
		return nil, ErrAlreadyCompleted
	case StatusCancelled:
		return nil, ErrCompleteCancelled
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	return updated, nil
}

// IsSlotAvailable reports whether no scheduled appointment occupies the exact
// instant. Advisory outside the slot lock: Create re-checks under the lock.
func (s *Service) IsSlotAvailable(ctx context.Context, at time.Time) (bool, error) {
	_, err := s.repo.GetScheduledAt(ctx, at.UTC())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("check slot: %w", err)
	}
	return false, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]Appointment, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListByDate returns scheduled appointments within the UTC day containing
// day, ordered by time.
func (s *Service) ListByDate(ctx context.Context, day time.Time) ([]Appointment, error) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.ListScheduledInRange(ctx, start, start.AddDate(0, 0, 1))
}

// ListInRange returns scheduled appointments with start <= t < end, ordered
// by time.
func (s *Service) ListInRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return s.repo.ListScheduledInRange(ctx, start.UTC(), end.UTC())
}
