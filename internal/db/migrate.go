package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The partial unique index on appointments is the storage-level guard for the
// one-scheduled-appointment-per-instant rule. Even if a writer slips past the
// application-level slot lock, the insert fails instead of double-booking.
const schema = `
CREATE TABLE IF NOT EXISTS admins (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id           UUID PRIMARY KEY,
	customer_id  UUID NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'scheduled',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS appointments_scheduled_slot_uq
	ON appointments (scheduled_at)
	WHERE status = 'scheduled';

CREATE INDEX IF NOT EXISTS appointments_customer_idx
	ON appointments (customer_id);
`

// Migrate applies the schema. Statements are idempotent so this runs on every
// startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
