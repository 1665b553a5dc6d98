package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.PhoneNumber,
		&c.Email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	return &c, nil
}

func isEmailViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) Insert(ctx context.Context, c Customer) (*Customer, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, phone_number, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, phone_number, email, created_at, updated_at
	`, id, c.Name, c.PhoneNumber, c.Email)

	created, err := scanCustomer(row)
	if err != nil {
		if isEmailViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, c Customer) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $2,
		    phone_number = $3,
		    email = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, phone_number, email, created_at, updated_at
	`, c.ID, c.Name, c.PhoneNumber, c.Email)

	updated, err := scanCustomer(row)
	if err != nil {
		if isEmailViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone_number, email, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id)
	return scanCustomer(row)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone_number, email, created_at, updated_at
		FROM customers
		WHERE email = $1
	`, email)
	return scanCustomer(row)
}

func (r *PgRepository) ListAll(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone_number, email, created_at, updated_at
		FROM customers
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
