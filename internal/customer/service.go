package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service owns customer records. The booking engine only consumes it through
// the CustomerExists directory method.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	Name        string
	PhoneNumber string
	Email       string
}

func (in *CreateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.TrimSpace(in.Email)

	if in.Name == "" {
		return validationError("name is required")
	}
	if in.PhoneNumber == "" {
		return validationError("phone_number is required")
	}
	if in.Email == "" {
		return validationError("email is required")
	}
	if !strings.Contains(in.Email, "@") {
		return validationError("email must be valid")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	return s.repo.Insert(ctx, Customer{
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
	})
}

// Update is a full replace of the mutable fields, matching the admin form.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in CreateInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = in.Name
	existing.PhoneNumber = in.PhoneNumber
	existing.Email = in.Email

	return s.repo.Update(ctx, *existing)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]Customer, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CustomerExists satisfies the booking engine's directory dependency.
func (s *Service) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
