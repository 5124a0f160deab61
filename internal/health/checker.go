// Package health exposes liveness/readiness checks for the scheduler,
// worker, and server binaries, each wrapping the same dependency pings
// behind a small JSON-friendly result shape.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LagReporter is satisfied by *scheduler.Scheduler.
type LagReporter interface {
	Lag(ctx context.Context) (time.Duration, error)
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that all dependencies are reachable and that the
// scheduler is not falling behind its own backlog.
type Checker struct {
	db        Pinger
	scheduler LagReporter
	maxLag    time.Duration
	logger    *slog.Logger
	gauge     *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
// scheduler may be nil for binaries (the worker) that do not run the
// in-process scheduler loop; lag is then skipped in Readiness.
func NewChecker(db Pinger, sched LagReporter, maxLag time.Duration, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ordinaut",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		db:        db,
		scheduler: sched,
		maxLag:    maxLag,
		logger:    logger.With("component", "health"),
		gauge:     gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult),
	}

	if err := c.db.Ping(checkCtx); err != nil {
		c.logger.Warn("postgres health check failed", "error", err)
		result.Status = "down"
		result.Checks["postgres"] = CheckResult{Status: "down", Error: err.Error()}
		c.gauge.WithLabelValues("postgres").Set(0)
	} else {
		result.Checks["postgres"] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues("postgres").Set(1)
	}

	if c.scheduler != nil {
		lag, err := c.scheduler.Lag(checkCtx)
		switch {
		case err != nil:
			c.logger.Warn("scheduler lag check failed", "error", err)
			result.Status = "down"
			result.Checks["scheduler_lag"] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues("scheduler_lag").Set(0)
		case lag > c.maxLag:
			result.Status = "down"
			result.Checks["scheduler_lag"] = CheckResult{Status: "down", Error: "lag exceeds threshold"}
			c.gauge.WithLabelValues("scheduler_lag").Set(0)
		default:
			result.Checks["scheduler_lag"] = CheckResult{Status: "up"}
			c.gauge.WithLabelValues("scheduler_lag").Set(1)
		}
	}

	return result
}
