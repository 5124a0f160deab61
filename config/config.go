package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds every tunable shared across the server, scheduler, and
// worker binaries. Each binary loads the same struct and only reads the
// fields relevant to it.
type Config struct {
	Env  string `env:"ENV"  envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080"  validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// WorkerCount is the number of goroutines independently leasing and
	// executing firings.
	WorkerCount int `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=200"`
	// LeaseDurationSec bounds how long a worker holds a firing lease
	// before it is eligible for reclaim by another worker.
	LeaseDurationSec int `env:"LEASE_DURATION_SEC" envDefault:"30" validate:"min=1,max=600"`
	// LeasePollIntervalSec is the first sleep of an idle worker before it
	// retries LeaseNext; later idle sleeps double from it, capped at 1s.
	LeasePollIntervalSec int `env:"LEASE_POLL_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`

	// ReconcileIntervalSec is the scheduler's periodic sweep cadence that
	// catches timers missed across a process restart or clock jump.
	ReconcileIntervalSec int `env:"RECONCILE_INTERVAL_SEC" envDefault:"60" validate:"min=1,max=3600"`
	// EmbedScheduler controls whether cmd/server runs the scheduler's
	// startup and periodic reconcile sweep (the default, single-binary
	// deployment). Set false when a standalone cmd/scheduler process runs
	// the sweep instead. cmd/server arms and cancels timers on its own
	// lifecycle mutations either way.
	EmbedScheduler bool `env:"EMBED_SCHEDULER" envDefault:"true"`
	// MaxSchedulerLagSec is the readiness probe's scheduler-lag limit. The
	// SchedulerLagWarning/Critical alert thresholds are fixed in
	// internal/alerting and do not read it.
	MaxSchedulerLagSec int `env:"MAX_SCHEDULER_LAG_SEC" envDefault:"30" validate:"min=1"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required"`

	// AlertIntervalSec is parsed and validated but not read: the alert
	// evaluator polls every 30s, fixed in internal/alerting.
	AlertIntervalSec int    `env:"ALERT_INTERVAL_SEC" envDefault:"30" validate:"min=5,max=3600"`
	AlertNotifyTo    string `env:"ALERT_NOTIFY_TO"    validate:"required_if=Env production,required_if=Env staging"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
