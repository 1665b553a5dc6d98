package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts the wire form of a status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusScheduled:
		return StatusScheduled, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Appointment is a point-in-time booking. ScheduledAt carries no duration;
// two appointments at adjacent-but-distinct instants never conflict.
type Appointment struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	ScheduledAt time.Time
	Notes       string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpdatePatch is an optional-field merge for Update. A nil field means leave
// unchanged; a present field is applied as-is (an empty Notes string clears
// the notes).
type UpdatePatch struct {
	CustomerID  *uuid.UUID
	ScheduledAt *time.Time
	Notes       *string
	Status      *Status
}
