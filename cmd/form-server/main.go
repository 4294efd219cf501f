// cmd/form-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lead-capture/internal/backend"
	"lead-capture/internal/common/aws"
	"lead-capture/internal/common/config"
	"lead-capture/internal/common/database"
	commonhttp "lead-capture/internal/common/http"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/common/observability"
	"lead-capture/internal/form/session"
	"lead-capture/internal/leadlog"
	"lead-capture/internal/notify"
	"lead-capture/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// healthChecker reports the state of everything the engine depends on.
type healthChecker struct {
	redis    *database.RedisClient
	postgres *database.PostgresClient
	api      *backend.Client
}

func (h *healthChecker) Check(ctx context.Context) map[string]string {
	checks := map[string]string{"redis": "ok", "postgres": "ok", "backend": "ok"}
	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
	}
	if err := h.postgres.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
	}
	if err := h.api.Health(ctx); err != nil {
		checks["backend"] = err.Error()
	}
	return checks
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting form server...")

	obs := observability.New(cfg.App.Name, cfg.App.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Backend API client ---
	apiClient := backend.NewClient(
		cfg.Backend.BaseURL,
		commonhttp.NewClient(config.GetDuration(cfg.Backend.Timeout)),
		log,
	)

	// --- Confirmation notifier (channels are optional) ---
	var sesClient notify.SESService
	var snsClient notify.SNSService
	if cfg.Notifications.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		sesClient = client
	}
	if cfg.Notifications.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		snsClient = client
	}
	notifier := notify.New(cfg.Notifications, sesClient, snsClient, log)

	// --- Session manager ---
	auditLog := leadlog.NewRepository(pg.DB, log)
	registry := session.NewRegistry(rdb, config.GetDuration(cfg.Session.TTL))
	manager := session.NewManager(
		registry,
		rdb,
		apiClient,
		config.GetDuration(cfg.Session.TokenTTL),
		log,
		session.WithAuditTrail(auditLog),
		session.WithNotifier(notifier),
		session.WithObservability(obs),
	)

	// --- HTTP server ---
	srv := server.New(cfg.Server, manager, &healthChecker{
		redis:    rdb,
		postgres: pg,
		api:      apiClient,
	}, log)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			zapLog.Error("http server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Form server stopped gracefully")
}
