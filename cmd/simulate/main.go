package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appointly/appointment-booking/internal/db"
)

// simulate hammers the booking API with concurrent create requests aimed at a
// small set of slots, then checks the database for duplicate scheduled slots.
// With contention this high most requests must come back 409, and the final
// duplicate count must be zero.

type simConfig struct {
	APIBaseURL    string
	PostgresDSN   string
	AdminEmail    string
	AdminPassword string
	Workers       int
	Duration      time.Duration
	SlotCount     int
	CustomerLimit int
}

type metrics struct {
	total    int64
	success  int64
	conflict int64
	errors   int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()
	log.Printf("simulate: base_url=%s workers=%d duration=%s slots=%d",
		cfg.APIBaseURL, cfg.Workers, cfg.Duration, cfg.SlotCount)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	customers, err := loadCustomerIDs(ctx, pool, cfg.CustomerLimit)
	if err != nil {
		log.Fatalf("load customers: %v", err)
	}
	if len(customers) == 0 {
		log.Fatal("no customers found, run cmd/seed first")
	}

	token, err := login(cfg)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	// All workers fight over the same handful of future slots.
	base := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	slots := make([]time.Time, cfg.SlotCount)
	for i := range slots {
		slots[i] = base.Add(time.Duration(i) * time.Hour)
	}

	var m metrics
	deadline := time.Now().Add(cfg.Duration)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			httpc := &http.Client{Timeout: 10 * time.Second}

			for time.Now().Before(deadline) {
				slot := slots[rng.Intn(len(slots))]
				cust := customers[rng.Intn(len(customers))]
				bookOnce(httpc, cfg.APIBaseURL, token, cust, slot, &m)
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	log.Printf("requests: total=%d success=%d conflict=%d errors=%d",
		atomic.LoadInt64(&m.total),
		atomic.LoadInt64(&m.success),
		atomic.LoadInt64(&m.conflict),
		atomic.LoadInt64(&m.errors),
	)

	dupes, err := duplicateScheduledSlots(ctx, pool)
	if err != nil {
		log.Fatalf("verify invariant: %v", err)
	}
	if dupes > 0 {
		log.Fatalf("INVARIANT VIOLATED: %d timestamps hold more than one scheduled appointment", dupes)
	}
	log.Println("invariant holds: no timestamp has more than one scheduled appointment")
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		APIBaseURL:    getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@system.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		Workers:       getInt("SIM_WORKERS", 16),
		Duration:      getDuration("SIM_DURATION", 15*time.Second),
		SlotCount:     getInt("SIM_SLOTS", 5),
		CustomerLimit: getInt("SIM_CUSTOMERS", 100),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func login(cfg simConfig) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    cfg.AdminEmail,
		"password": cfg.AdminPassword,
	})
	resp, err := http.Post(cfg.APIBaseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login returned %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func bookOnce(httpc *http.Client, baseURL, token string, customerID uuid.UUID, slot time.Time, m *metrics) {
	payload, _ := json.Marshal(map[string]any{
		"customer_id":  customerID.String(),
		"scheduled_at": slot.Format(time.RFC3339),
		"notes":        "simulated booking",
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(payload))
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	atomic.AddInt64(&m.total, 1)

	resp, err := httpc.Do(req)
	if err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errors, 1)
	}
}

func loadCustomerIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM customers LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func duplicateScheduledSlots(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var dupes int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT scheduled_at
			FROM appointments
			WHERE status = 'scheduled'
			GROUP BY scheduled_at
			HAVING count(*) > 1
		) d
	`).Scan(&dupes)
	return dupes, err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
