package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ordinaut/ordinaut/config"
	"github.com/ordinaut/ordinaut/internal/alerting"
	"github.com/ordinaut/ordinaut/internal/email"
	"github.com/ordinaut/ordinaut/internal/health"
	"github.com/ordinaut/ordinaut/internal/lifecycle"
	ctxlog "github.com/ordinaut/ordinaut/internal/log"
	"github.com/ordinaut/ordinaut/internal/metrics"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store/postgres"
	httptransport "github.com/ordinaut/ordinaut/internal/transport/http"
	"github.com/ordinaut/ordinaut/internal/transport/http/handler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	st := postgres.NewStore(pool)

	// sched.Arm/Cancel/RunNow/Snooze are called synchronously by every
	// lifecycle mutation regardless of topology. Only the self-healing
	// reconcile sweep (Start) is gated behind EmbedScheduler: running it
	// in more than one process at once would have two schedulers race to
	// enqueue the same firing, since only dedupe-keyed tasks are
	// protected against double-enqueue.
	reconcileInterval := time.Duration(cfg.ReconcileIntervalSec) * time.Second
	sched := scheduler.New(st, st, logger, reconcileInterval)
	if cfg.EmbedScheduler {
		go sched.Start(ctx)
	}

	svc := lifecycle.New(st, sched)

	metrics.Register()
	maxLag := time.Duration(cfg.MaxSchedulerLagSec) * time.Second
	checker := health.NewChecker(pool, sched, maxLag, logger, prometheus.DefaultRegisterer)

	notifier := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	evaluator := alerting.New(st, sched, notifier, cfg.AlertNotifyTo, logger)
	go evaluator.Start(ctx)

	taskHandler := handler.NewTaskHandler(svc, logger)
	runHandler := handler.NewRunHandler(svc, logger)
	eventHandler := handler.NewEventHandler(svc, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, taskHandler, runHandler, eventHandler, checker, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
