package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calderapay/connector/internal/capture"
	"github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/internal/credentials"
	"github.com/calderapay/connector/internal/cron"
	"github.com/calderapay/connector/internal/gateway"
	"github.com/calderapay/connector/internal/idempotency"
	"github.com/calderapay/connector/pkg/config"
	"github.com/calderapay/connector/pkg/db"
	"github.com/calderapay/connector/pkg/logger"
	"github.com/calderapay/connector/pkg/metrics"
	"github.com/calderapay/connector/pkg/migrate"
	"github.com/calderapay/connector/pkg/redis"
	pkgstripe "github.com/calderapay/connector/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "capture-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "capture-worker"

	logg = logger.New(logger.Options{
		ServiceName: "capture-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	credentialRepo := credentials.NewRepository(dbClient.DB())
	credentialService, err := credentials.NewService(credentials.ServiceParams{
		Repo:   credentialRepo,
		DB:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credential service", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewGuard(idempotency.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	chargeRepo := charges.NewRepository(dbClient.DB())
	chargeService, err := charges.NewService(charges.ServiceParams{
		Repo:        chargeRepo,
		DB:          dbClient,
		Credentials: credentialService,
		Guard:       guard,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create charge service", err)
		os.Exit(1)
	}

	submitters := []gateway.Submitter{gateway.NewSandboxSubmitter()}
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}
		submitters = append(submitters, gateway.NewStripeSubmitter(stripeClient))
	}
	if cfg.Worldpay.URL != "" {
		submitters = append(submitters, gateway.NewWorldpaySubmitter(cfg.Worldpay))
	}
	if cfg.Epdq.URL != "" {
		submitters = append(submitters, gateway.NewEpdqSubmitter(cfg.Epdq))
	}
	registry := gateway.NewRegistry(submitters...)

	captureMetrics := metrics.NewCaptureMetrics(prometheus.DefaultRegisterer)
	coordinator, err := capture.NewCoordinator(capture.CoordinatorParams{
		Charges:     chargeService,
		Finder:      chargeRepo,
		Credentials: credentialRepo,
		Registry:    registry,
		Metrics:     captureMetrics,
		Logger:      logg,
		Config:      cfg.Capture,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create capture coordinator", err)
		os.Exit(1)
	}

	expunger, err := capture.NewExpunger(capture.ExpungerParams{
		Repo:    chargeRepo,
		DB:      dbClient,
		Metrics: captureMetrics,
		Logger:  logg,
		Config:  cfg.Expunge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expunger", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewCaptureSweepJob(cron.CaptureSweepJobParams{
		Logger:      logg,
		Coordinator: coordinator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create capture sweep job", err)
		os.Exit(1)
	}
	expungeJob, err := cron.NewExpungeJob(cron.ExpungeJobParams{
		Logger:   logg,
		Expunger: expunger,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expunge job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("capture-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, expungeJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Capture.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting capture worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "capture worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "capture worker shutting down gracefully")
}
