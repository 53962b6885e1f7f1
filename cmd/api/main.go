package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/visitor-desk/internal/http/middleware"
	"github.com/diagnosis/visitor-desk/internal/http/router"
	"github.com/diagnosis/visitor-desk/internal/platform/metrics"
	"github.com/diagnosis/visitor-desk/internal/platform/photo"
	"github.com/diagnosis/visitor-desk/internal/platform/sms"
	"github.com/diagnosis/visitor-desk/internal/repo/postgres"
	"github.com/diagnosis/visitor-desk/internal/service"
	"github.com/diagnosis/visitor-desk/pkg/cache"
	"github.com/diagnosis/visitor-desk/pkg/config"
	"github.com/diagnosis/visitor-desk/pkg/database"
	"github.com/diagnosis/visitor-desk/pkg/events"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	mw "github.com/diagnosis/visitor-desk/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const cleanupInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger.Setup(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), "visitor-desk")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Visitor desk stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	healthChecks := map[string]mw.HealthCheck{"postgres": pool.Ping}

	loc := cfg.Reports.Location()

	// Repositories
	visitorRepo := postgres.NewVisitorRepo(pool, loc)
	usersRepo := postgres.NewUsersRepo(pool)
	otpRepo := postgres.NewOTPRepo(pool)
	idemRepo := postgres.NewIdempotencyRepo(pool)

	var idempotency mw.IdempotencyStore = idemRepo
	if cfg.Redis.URL != "" {
		rdb, err := cache.New(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, using Postgres for idempotency keys", "error", err)
		} else {
			defer rdb.Close()
			idempotency = rdb
			healthChecks["redis"] = rdb.Health
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL, "visitor-desk")
		if err != nil {
			logger.Warn("NATS unavailable, visitor events disabled", "error", err)
		} else {
			publisher = bus
		}
	}
	defer publisher.Close()

	photos, err := photo.NewLocalStore(cfg.Storage.PhotoDir, cfg.Storage.MaxPhotoSize, cfg.Storage.MaxDimension)
	if err != nil {
		return err
	}

	var sender sms.Sender = sms.NewDevSender()
	if !cfg.SMS.DevMode && cfg.SMS.MailerSendKey != "" {
		sender = sms.NewMailerSendSender(cfg.SMS.MailerSendKey, cfg.SMS.From)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Services
	visitorSvc := service.NewVisitorService(visitorRepo, photos, publisher, m)
	reportSvc := service.NewReportService(visitorRepo, loc, m)
	authSvc := service.NewAuthService(usersRepo, otpRepo, sender, cfg.Auth, cfg.SMS.DevMode, m)

	if err := authSvc.EnsureBootstrapUser(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword); err != nil {
		return err
	}

	handler := router.New(router.Deps{
		Visitors:       visitorSvc,
		Reports:        reportSvc,
		Auth:           authSvc,
		JWTSecret:      cfg.Auth.JWTSecret,
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		MaxBodyBytes:   cfg.Storage.MaxPhotoSize * 2,
		Location:       loc,
		PhotoDir:       cfg.Storage.PhotoDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		RateCounter:    middleware.NewPostgresCounter(pool),
		OTPRateLimit:   cfg.Auth.OTPRateLimit,
		OTPRateWindow:  cfg.Auth.OTPRateWindow,
		Observer:       m,
		MetricsHandler: promhttp.Handler(),
		HealthChecks:   healthChecks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting visitor desk", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down visitor desk...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				cleanup(gctx, otpRepo, idemRepo)
			}
		}
	})

	return g.Wait()
}

// cleanup drops expired login codes and idempotency keys.
func cleanup(ctx context.Context, otps postgres.OTPRepo, idem postgres.IdempotencyRepo) {
	if n, err := otps.DeleteExpired(ctx, time.Now()); err != nil {
		logger.Error("Failed to delete expired login codes", "error", err)
	} else if n > 0 {
		logger.Info("Deleted expired login codes", "count", n)
	}
	if n, err := idem.CleanupExpired(ctx); err != nil {
		logger.Error("Failed to delete expired idempotency keys", "error", err)
	} else if n > 0 {
		logger.Info("Deleted expired idempotency keys", "count", n)
	}
}
