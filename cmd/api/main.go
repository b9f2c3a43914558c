package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnosalud/booking-platform/internal/api/router"
	"github.com/turnosalud/booking-platform/internal/auth"
	"github.com/turnosalud/booking-platform/internal/booking"
	appconfig "github.com/turnosalud/booking-platform/internal/config"
	"github.com/turnosalud/booking-platform/internal/http/handlers"
	"github.com/turnosalud/booking-platform/internal/notify"
	"github.com/turnosalud/booking-platform/internal/observability/metrics"
	"github.com/turnosalud/booking-platform/internal/professionals"
	"github.com/turnosalud/booking-platform/internal/schedule"
	pgstore "github.com/turnosalud/booking-platform/internal/schedule/postgres"
	"github.com/turnosalud/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.ClinicTimezone,
	)

	ctx := context.Background()

	clock, err := schedule.NewClock(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("failed to load clinic timezone", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	// Stores
	scheduleStore := pgstore.NewStore(pool, clock)
	professionalStore := professionals.NewStore(pool)
	cache := schedule.NewCache(redisClient, cfg.AvailabilityCacheTTL, logger)

	// Metrics
	registry := prometheus.DefaultRegisterer
	availabilityMetrics := metrics.NewAvailabilityMetrics(registry)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Availability engine
	availability := schedule.NewService(scheduleStore, clock, logger,
		schedule.WithCache(cache),
		schedule.WithMetrics(availabilityMetrics),
		schedule.WithDefaults(schedule.Defaults{
			SlotMinutes:   cfg.DefaultSlotMinutes,
			BufferMinutes: cfg.DefaultBufferMinutes,
		}),
	)

	// Cancel tokens
	var tokens *auth.CancelTokenIssuer
	if cfg.CancelTokenSecret != "" {
		tokens, err = auth.NewCancelTokenIssuer(cfg.CancelTokenSecret, 0)
		if err != nil {
			logger.Error("failed to configure cancel tokens", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("CANCEL_TOKEN_SECRET not set, self-service cancellation disabled")
	}

	notifier := notify.NewService(buildEmailSender(ctx, cfg, logger), clock, logger)

	bookingService := booking.NewService(booking.Config{
		Store:         scheduleStore,
		Professionals: professionalStore,
		Policy:        schedule.NewCancellationPolicy(clock, cfg.CancelMinBusinessHour),
		Tokens:        tokens,
		Notifier:      notifier,
		Cache:         cache,
		Metrics:       bookingMetrics,
		Logger:        logger,
		HoldTTL:       cfg.HoldTTL,
		CancelBaseURL: cfg.CancelBaseURL,
	})

	routerCfg := &router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(professionalStore, availability, clock, cfg.BookingWindowDays, logger),
		Bookings:           booking.NewHandler(bookingService, tokens, logger),
		ScheduleAdmin:      schedule.NewHandler(scheduleStore, cache, clock, logger),
		Professionals:      professionals.NewHandler(professionalStore, logger),
		AdminAuthSecret:    cfg.AdminAuthSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PingDB:             pool.Ping,
		PingRedis: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildEmailSender picks the configured email transport; the stub keeps
// booking flows working in environments without outbound email.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but not configured, falling back to stub")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config for SES", "error", err)
			break
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}
