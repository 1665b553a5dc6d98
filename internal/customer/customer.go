package customer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrEmailTaken       = errors.New("email already exists")
)

type Customer struct {
	ID          uuid.UUID
	Name        string
	PhoneNumber string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	Insert(ctx context.Context, c Customer) (*Customer, error)
	Update(ctx context.Context, c Customer) (*Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	ListAll(ctx context.Context) ([]Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
