// scheduler runs the timer-registry process standalone: it reconciles the
// active task set against Postgres on a fixed cadence and enqueues firings,
// without exposing the HTTP API. Deployments that want immediate Arm/Cancel
// semantics on every mutation run the scheduler embedded in cmd/server
// instead (see DESIGN.md); this binary is for topologies that split the
// timer registry onto its own process and accept the reconcile interval as
// the upper bound on pickup latency for out-of-band mutations.
package main

import (
	"context"
	"encoding/json"
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
	"github.com/ordinaut/ordinaut/internal/health"
	ctxlog "github.com/ordinaut/ordinaut/internal/log"
	"github.com/ordinaut/ordinaut/internal/metrics"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store/postgres"
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

	logger.Info("db connected")

	st := postgres.NewStore(pool)

	reconcileInterval := time.Duration(cfg.ReconcileIntervalSec) * time.Second
	sched := scheduler.New(st, st, logger, reconcileInterval)
	go sched.Start(ctx)

	metrics.Register()
	maxLag := time.Duration(cfg.MaxSchedulerLagSec) * time.Second
	checker := health.NewChecker(pool, sched, maxLag, logger, prometheus.DefaultRegisterer)

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	r := http.NewServeMux()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeHealth(w, checker.Liveness(req.Context()))
	})
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		result := checker.Readiness(req.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeHealth(w, result)
	})
	healthSrv := http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("health server started", "port", cfg.Port)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
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
