package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/appointly/appointment-booking/internal/api"
	"github.com/appointly/appointment-booking/internal/auth"
	"github.com/appointly/appointment-booking/internal/booking"
	"github.com/appointly/appointment-booking/internal/config"
	"github.com/appointly/appointment-booking/internal/customer"
	"github.com/appointly/appointment-booking/internal/db"
	redisclient "github.com/appointly/appointment-booking/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	var logger *zap.Logger
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("schema up to date")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	// Default admin bootstrap runs before the server accepts requests.
	admins := auth.NewAdminStore(pgPool)
	bootCtx, cancelBoot := context.WithTimeout(rootCtx, 10*time.Second)
	err = auth.EnsureDefaultAdmin(bootCtx, admins, logger, cfg.AdminEmail, cfg.AdminPassword)
	cancelBoot()
	if err != nil {
		logger.Fatal("admin bootstrap error", zap.Error(err))
	}

	apptRepo := booking.NewPgRepository(pgPool)
	customers := customer.NewService(customer.NewPgRepository(pgPool))
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	engine := booking.NewService(apptRepo, customers, locker)

	router := api.NewRouter(api.RouterConfig{
		Booking:            engine,
		Store:              apptRepo,
		Customers:          customers,
		Admins:             admins,
		JWTSecret:          cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		PgPool:             pgPool,
		Redis:              rdb,
		Env:                cfg.Env,
		Version:            version,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LoginRPS:           cfg.LoginRPS,
		LoginBurst:         cfg.LoginBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
