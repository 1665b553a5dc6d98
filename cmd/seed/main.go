package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appointly/appointment-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	customerIDs, err := seedCustomers(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed customers: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, customerIDs, 200); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d customers", count)

	const batchSize = 100
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			phone := gofakeit.Phone()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO customers (id, name, phone_number, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
				ON CONFLICT (email) DO NOTHING
			`, id, name, phone, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("customers seeded: %d/%d", end, count)
	}

	return ids, nil
}

// seedAppointments books each appointment on its own future half-hour slot so
// the seed never trips the scheduled-slot uniqueness index.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, customerIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		customerID := customerIDs[gofakeit.Number(0, len(customerIDs)-1)]
		at := base.Add(time.Duration(i) * 30 * time.Minute)
		notes := gofakeit.Sentence(6)

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, customer_id, scheduled_at, notes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'scheduled', now(), now())
		`, id, customerID, at, notes)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
