package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	existing map[uuid.UUID]bool
	calls    int32
}

func (f *fakeDirectory) CustomerExists(_ context.Context, id uuid.UUID) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.existing[id], nil
}

// countingRepo wraps a Repository to observe which store operations ran.
type countingRepo struct {
	Repository
	inserts    int32
	slotChecks int32
}

func (c *countingRepo) Insert(ctx context.Context, appt Appointment) (*Appointment, error) {
	atomic.AddInt32(&c.inserts, 1)
	return c.Repository.Insert(ctx, appt)
}

func (c *countingRepo) GetScheduledAt(ctx context.Context, at time.Time) (*Appointment, error) {
	atomic.AddInt32(&c.slotChecks, 1)
	return c.Repository.GetScheduledAt(ctx, at)
}

// noopLocker lets everything through so the repository's own uniqueness
// guard is the only protection left.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(customerIDs ...uuid.UUID) (*Service, *fakeDirectory) {
	dir := &fakeDirectory{existing: make(map[uuid.UUID]bool)}
	for _, id := range customerIDs {
		dir.existing[id] = true
	}
	return NewService(NewMemoryRepository(), dir, NewLocalLocker()), dir
}

func futureSlot(hours int) time.Time {
	return time.Now().UTC().Truncate(time.Second).Add(time.Duration(hours) * time.Hour)
}

func TestCreate_BooksScheduledAppointment(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	at := futureSlot(24)
	appt, err := svc.Create(context.Background(), cust, at, "first visit")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Fatal("expected store-assigned id")
	}
	if appt.Status != StatusScheduled {
		t.Fatalf("status = %q, want %q", appt.Status, StatusScheduled)
	}
	if !appt.ScheduledAt.Equal(at) {
		t.Fatalf("scheduled_at = %v, want %v", appt.ScheduledAt, at)
	}
	if appt.Notes != "first visit" {
		t.Fatalf("notes = %q", appt.Notes)
	}
}

func TestCreate_SameSlotConflicts(t *testing.T) {
	custA, custB := uuid.New(), uuid.New()
	svc, _ := newTestService(custA, custB)

	at := futureSlot(24)
	if _, err := svc.Create(context.Background(), custA, at, ""); err != nil {
		t.Fatalf("first Create error: %v", err)
	}

	_, err := svc.Create(context.Background(), custB, at, "")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("error = %v, want ErrSlotTaken", err)
	}
}

func TestCreate_CancelFreesSlot(t *testing.T) {
	custA, custB := uuid.New(), uuid.New()
	svc, _ := newTestService(custA, custB)

	at := futureSlot(24)
	appt, err := svc.Create(context.Background(), custA, at, "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	if _, err := svc.Create(context.Background(), custB, at, ""); err != nil {
		t.Fatalf("Create after cancel error: %v", err)
	}
}

func TestCreate_UnknownCustomerNoStoreWrite(t *testing.T) {
	dir := &fakeDirectory{existing: map[uuid.UUID]bool{}}
	repo := &countingRepo{Repository: NewMemoryRepository()}
	svc := NewService(repo, dir, NewLocalLocker())

	_, err := svc.Create(context.Background(), uuid.New(), futureSlot(24), "")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("error = %v, want ErrCustomerNotFound", err)
	}
	if n := atomic.LoadInt32(&repo.inserts); n != 0 {
		t.Fatalf("inserts = %d, want 0", n)
	}
}

func TestCreate_PastTimestampNoStoreInteraction(t *testing.T) {
	cust := uuid.New()
	dir := &fakeDirectory{existing: map[uuid.UUID]bool{cust: true}}
	repo := &countingRepo{Repository: NewMemoryRepository()}
	svc := NewService(repo, dir, NewLocalLocker())

	_, err := svc.Create(context.Background(), cust, time.Now().Add(-time.Hour), "")
	if !errors.Is(err, ErrScheduledInPast) {
		t.Fatalf("error = %v, want ErrScheduledInPast", err)
	}
	if n := atomic.LoadInt32(&repo.inserts); n != 0 {
		t.Fatalf("inserts = %d, want 0", n)
	}
	if n := atomic.LoadInt32(&repo.slotChecks); n != 0 {
		t.Fatalf("slot checks = %d, want 0", n)
	}
	if n := atomic.LoadInt32(&dir.calls); n != 0 {
		t.Fatalf("directory lookups = %d, want 0", n)
	}
}

func TestUpdate_NoOpPatchLeavesRecordUnchanged(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "keep me")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.Update(context.Background(), appt.ID, UpdatePatch{})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.CustomerID != appt.CustomerID ||
		!updated.ScheduledAt.Equal(appt.ScheduledAt) ||
		updated.Notes != appt.Notes ||
		updated.Status != appt.Status {
		t.Fatalf("no-op update changed record: %+v vs %+v", updated, appt)
	}
}

func TestUpdate_NotesOnlyNeverSelfConflicts(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "old")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	notes := "new notes"
	updated, err := svc.Update(context.Background(), appt.ID, UpdatePatch{Notes: &notes})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Notes != "new notes" {
		t.Fatalf("notes = %q", updated.Notes)
	}
}

func TestUpdate_SameTimestampPatchIsNoConflict(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	at := futureSlot(24)
	appt, err := svc.Create(context.Background(), cust, at, "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	same := at
	if _, err := svc.Update(context.Background(), appt.ID, UpdatePatch{ScheduledAt: &same}); err != nil {
		t.Fatalf("Update with unchanged timestamp error: %v", err)
	}
}

func TestUpdate_RescheduleToOccupiedSlotConflicts(t *testing.T) {
	custA, custB := uuid.New(), uuid.New()
	svc, _ := newTestService(custA, custB)

	atA := futureSlot(24)
	atB := futureSlot(25)
	if _, err := svc.Create(context.Background(), custA, atA, ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	apptB, err := svc.Create(context.Background(), custB, atB, "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = svc.Update(context.Background(), apptB.ID, UpdatePatch{ScheduledAt: &atA})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("error = %v, want ErrSlotTaken", err)
	}
}

func TestUpdate_RescheduleToFreeSlot(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	newAt := futureSlot(30)
	updated, err := svc.Update(context.Background(), appt.ID, UpdatePatch{ScheduledAt: &newAt})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !updated.ScheduledAt.Equal(newAt) {
		t.Fatalf("scheduled_at = %v, want %v", updated.ScheduledAt, newAt)
	}

	// old slot is free again
	if ok, err := svc.IsSlotAvailable(context.Background(), futureSlot(24)); err != nil || !ok {
		t.Fatalf("IsSlotAvailable = %v, %v; want true", ok, err)
	}
}

func TestUpdate_RescheduleToPastRejected(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	_, err = svc.Update(context.Background(), appt.ID, UpdatePatch{ScheduledAt: &past})
	if !errors.Is(err, ErrScheduledInPast) {
		t.Fatalf("error = %v, want ErrScheduledInPast", err)
	}
}

func TestUpdate_UnknownCustomerRejected(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	stranger := uuid.New()
	_, err = svc.Update(context.Background(), appt.ID, UpdatePatch{CustomerID: &stranger})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("error = %v, want ErrCustomerNotFound", err)
	}
}

func TestUpdate_InvalidStatusRejected(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	bogus := Status("postponed")
	_, err = svc.Update(context.Background(), appt.ID, UpdatePatch{Status: &bogus})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestUpdate_MissingAppointment(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), uuid.New(), UpdatePatch{})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("error = %v, want ErrAppointmentNotFound", err)
	}
}

func TestComplete_ThenCompleteAgainFails(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	done, err := svc.Complete(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q, want %q", done.Status, StatusCompleted)
	}

	_, err = svc.Complete(context.Background(), appt.ID)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("error = %v, want ErrAlreadyCompleted", err)
	}
}

func TestCancel_AfterCompletePermitted(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Complete(context.Background(), appt.ID); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("Cancel after complete error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %q, want %q", cancelled.Status, StatusCancelled)
	}
}

func TestCancel_TwicePreconditionFails(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	_, err = svc.Cancel(context.Background(), appt.ID)
	if !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("error = %v, want ErrAlreadyCancelled", err)
	}
}

func TestComplete_CancelledPreconditionFails(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	appt, err := svc.Create(context.Background(), cust, futureSlot(24), "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	_, err = svc.Complete(context.Background(), appt.ID)
	if !errors.Is(err, ErrCompleteCancelled) {
		t.Fatalf("error = %v, want ErrCompleteCancelled", err)
	}
}

func TestIsSlotAvailable(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	at := futureSlot(24)
	if ok, err := svc.IsSlotAvailable(context.Background(), at); err != nil || !ok {
		t.Fatalf("IsSlotAvailable = %v, %v; want true", ok, err)
	}

	appt, err := svc.Create(context.Background(), cust, at, "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if ok, _ := svc.IsSlotAvailable(context.Background(), at); ok {
		t.Fatal("slot should be unavailable after booking")
	}

	if _, err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if ok, _ := svc.IsSlotAvailable(context.Background(), at); !ok {
		t.Fatal("slot should be available after cancel")
	}
}

func TestConcurrentCreates_ExactlyOneWins(t *testing.T) {
	const goroutines = 32

	cust := uuid.New()
	svc, _ := newTestService(cust)
	at := futureSlot(24)

	var wg sync.WaitGroup
	var wins, conflicts int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), cust, at, "")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrSlotTaken):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	if conflicts != goroutines-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, goroutines-1)
	}
}

func TestConcurrentCreates_StoreConstraintIsLastResort(t *testing.T) {
	// Without any locker the repository's own uniqueness guard must still
	// reject every racing write but one.
	const goroutines = 32

	cust := uuid.New()
	dir := &fakeDirectory{existing: map[uuid.UUID]bool{cust: true}}
	svc := NewService(NewMemoryRepository(), dir, noopLocker{})
	at := futureSlot(24)

	var wg sync.WaitGroup
	var wins int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Create(context.Background(), cust, at, ""); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestListByDate_UTCDayBounds(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	day := time.Now().UTC().AddDate(0, 0, 7)
	inside1 := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)
	inside2 := time.Date(day.Year(), day.Month(), day.Day(), 17, 30, 0, 0, time.UTC)
	outside := inside1.AddDate(0, 0, 1)

	// booked out of order to verify time ordering of the listing
	for _, at := range []time.Time{inside2, outside, inside1} {
		if _, err := svc.Create(context.Background(), cust, at, ""); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	got, err := svc.ListByDate(context.Background(), day)
	if err != nil {
		t.Fatalf("ListByDate error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].ScheduledAt.Equal(inside1) || !got[1].ScheduledAt.Equal(inside2) {
		t.Fatalf("unexpected order: %v, %v", got[0].ScheduledAt, got[1].ScheduledAt)
	}
}

func TestListInRange_ExcludesNonScheduled(t *testing.T) {
	cust := uuid.New()
	svc, _ := newTestService(cust)

	start := futureSlot(24)
	a1, err := svc.Create(context.Background(), cust, start, "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(context.Background(), cust, start.Add(time.Hour), ""); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a1.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	got, err := svc.ListInRange(context.Background(), start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListInRange error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (cancelled rows excluded)", len(got))
	}
}

func TestListByStatus_RejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.ListByStatus(context.Background(), Status("archived"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]Status{
		"scheduled": StatusScheduled,
		"Completed": StatusCompleted,
		"CANCELLED": StatusCancelled,
	} {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParseStatus("pending"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}
}
