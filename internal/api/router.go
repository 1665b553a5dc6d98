package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/appointly/appointment-booking/internal/booking"
	"github.com/appointly/appointment-booking/internal/customer"
)

type RouterConfig struct {
	Booking   *booking.Service
	Store     booking.Repository
	Customers *customer.Service
	Admins    AdminDirectory

	JWTSecret string
	TokenTTL  time.Duration

	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string

	Logger             *zap.Logger
	CORSAllowedOrigins []string
	LoginRPS           float64
	LoginBurst         int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(WithCORS(cfg.CORSAllowedOrigins))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Login, rate limited per client IP
	rl := NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)
	r.With(rl.Middleware).Post("/api/auth/login", loginHandler(cfg.Admins, cfg.JWTSecret, cfg.TokenTTL))

	// Everything below requires an admin token
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAdmin(cfg.JWTSecret))

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", createCustomerHandler(cfg.Customers))
			r.Get("/", listCustomersHandler(cfg.Customers))
			r.Get("/{id}", getCustomerHandler(cfg.Customers))
			r.Put("/{id}", updateCustomerHandler(cfg.Customers))
			r.Delete("/{id}", deleteCustomerHandler(cfg.Customers))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Booking))
			r.Get("/", listAppointmentsHandler(cfg.Booking))
			r.Get("/range", listAppointmentsInRangeHandler(cfg.Booking))
			r.Get("/availability", availabilityHandler(cfg.Booking))
			r.Get("/customer/{customerId}", listAppointmentsByCustomerHandler(cfg.Booking))
			r.Get("/status/{status}", listAppointmentsByStatusHandler(cfg.Booking))
			r.Get("/date/{date}", listAppointmentsByDateHandler(cfg.Booking))
			r.Get("/{id}", getAppointmentHandler(cfg.Booking))
			r.Put("/{id}", updateAppointmentHandler(cfg.Booking))
			r.Put("/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
			r.Put("/{id}/complete", completeAppointmentHandler(cfg.Booking))
			r.Delete("/{id}", deleteAppointmentHandler(cfg.Store))
		})
	})

	return r
}
