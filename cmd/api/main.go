package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/oakdental/booking-platform/internal/admin"
	"github.com/oakdental/booking-platform/internal/api/router"
	"github.com/oakdental/booking-platform/internal/clinics"
	appconfig "github.com/oakdental/booking-platform/internal/config"
	"github.com/oakdental/booking-platform/internal/notify"
	"github.com/oakdental/booking-platform/internal/observability/metrics"
	"github.com/oakdental/booking-platform/internal/store"
	"github.com/oakdental/booking-platform/internal/widget"
	"github.com/oakdental/booking-platform/pkg/logging"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store_driver", cfg.StoreDriver,
	)

	ctx := context.Background()

	st, pool := buildStore(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	var cache *clinics.Cache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = clinics.NewCache(redis.NewClient(opts), cfg.DirectoryCacheTTL)
		logger.Info("clinic directory cache enabled", "addr", cfg.RedisAddr)
	}

	var notifier *notify.Service
	if cfg.ClinicNotifyEnabled {
		notifier = notify.NewService(buildEmailSender(ctx, cfg, logger), logger)
	}

	reg := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(reg)

	widgetHandler := widget.NewHandler(st, cache, notifier, bookingMetrics, widget.Script, cfg.SessionTTL, logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	widgetHandler.StartSweeper(sweepCtx, time.Minute)

	var adminHandler *admin.AppointmentsHandler
	if cfg.DatabaseURL != "" && cfg.AdminJWTSecret != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open reporting database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		adminHandler = admin.NewAppointmentsHandler(db, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler,
		AdminAppointments:  adminHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

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

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (store.Client, *pgxpool.Pool) {
	switch cfg.StoreDriver {
	case "supabase":
		st, err := store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			logger.Error("failed to create supabase store", "error", err)
			os.Exit(1)
		}
		return st, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		return store.NewPostgres(pool), pool
	case "memory":
		logger.Warn("using in-memory store; bookings will not survive restarts")
		return store.NewMemory(), nil
	default:
		logger.Error("unknown store driver", "driver", cfg.StoreDriver)
		os.Exit(1)
		return nil, nil
	}
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("sendgrid not configured, falling back to stub email sender")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("failed to load AWS config, falling back to stub email sender", "error", err)
			break
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); s != nil {
			return s
		}
	}
	return notify.NewStubEmailSender(logger)
}
