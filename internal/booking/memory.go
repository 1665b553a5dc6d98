package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/appointly/appointment-booking/internal/redis"
)

// MemoryRepository is an in-process Repository used by tests and the
// simulator's dry-run mode. It enforces the same one-scheduled-row-per-instant
// constraint the Postgres partial index does, so a write that slips past the
// slot lock still fails with ErrSlotTaken.
type MemoryRepository struct {
	mu    sync.Mutex
	appts map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appts: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) slotTakenLocked(at time.Time, exclude uuid.UUID) bool {
	for _, a := range r.appts {
		if a.ID != exclude && a.Status == StatusScheduled && a.ScheduledAt.Equal(at) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Insert(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.Status == StatusScheduled && r.slotTakenLocked(appt.ScheduledAt, uuid.Nil) {
		return nil, ErrSlotTaken
	}

	now := time.Now().UTC()
	appt.ID = uuid.New()
	appt.ScheduledAt = appt.ScheduledAt.UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appts[appt.ID] = appt

	out := appt
	return &out, nil
}

func (r *MemoryRepository) Update(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appts[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	if appt.Status == StatusScheduled && r.slotTakenLocked(appt.ScheduledAt.UTC(), appt.ID) {
		return nil, ErrSlotTaken
	}

	appt.ScheduledAt = appt.ScheduledAt.UTC()
	appt.CreatedAt = stored.CreatedAt
	appt.UpdatedAt = time.Now().UTC()
	r.appts[appt.ID] = appt

	out := appt
	return &out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appts[id]
	if !ok || stored.Status != from {
		return nil, ErrAppointmentNotFound
	}

	stored.Status = to
	stored.UpdatedAt = time.Now().UTC()
	r.appts[id] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetScheduledAt(_ context.Context, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appts {
		if a.Status == StatusScheduled && a.ScheduledAt.Equal(at) {
			out := a
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, a)
	}
	sortByTime(out)
	return out, nil
}

func (r *MemoryRepository) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sortByTime(out)
	return out, nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, status Status) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sortByTime(out)
	return out, nil
}

func (r *MemoryRepository) ListScheduledInRange(_ context.Context, start, end time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.Status == StatusScheduled && !a.ScheduledAt.Before(start) && a.ScheduledAt.Before(end) {
			out = append(out, a)
		}
	}
	sortByTime(out)
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return nil
}

func sortByTime(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].ScheduledAt.Before(appts[j].ScheduledAt)
	})
}

// LocalLocker serializes slot access with an in-process mutex per instant.
// It covers single-process deployments and tests; multi-process deployments
// use the Redis locker.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]*sync.Mutex)}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, at time.Time, fn func(ctx context.Context) error) error {
	key := at.UTC().Unix()

	l.mu.Lock()
	m, ok := l.slots[key]
	if !ok {
		m = &sync.Mutex{}
		l.slots[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}

var _ redisclient.Locker = (*LocalLocker)(nil)
