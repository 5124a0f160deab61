// Package alerting periodically evaluates a small set of fixed operational
// rules over the store and the scheduler, tracking each rule's own
// pending/firing/resolved state and notifying through the email channel
// when a rule transitions.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ordinaut/ordinaut/internal/email"
	"github.com/ordinaut/ordinaut/internal/metrics"
	"github.com/ordinaut/ordinaut/internal/store"
)

// LagReporter is satisfied by *scheduler.Scheduler.
type LagReporter interface {
	Lag(ctx context.Context) (time.Duration, error)
}

// state is a rule's in-memory lifecycle: a condition must hold for
// sustainFor before the rule is considered firing, mirroring the
// PENDING -> FIRING -> RESOLVED transitions of the rule evaluator this is
// grounded on.
type state string

const (
	stateOK      state = "ok"
	statePending state = "pending"
	stateFiring  state = "firing"
)

// Rule is one operational threshold: a value-producing check, a
// comparison against threshold, and how long the condition must hold
// before the rule fires.
type Rule struct {
	Name        string
	Threshold   float64
	SustainFor  time.Duration
	Check       func(ctx context.Context) (float64, error)
	Description string
}

type ruleState struct {
	state     state
	since     time.Time
	lastValue float64
}

// Evaluator runs every rule on a fixed interval and notifies on
// pending->firing and firing->resolved transitions.
type Evaluator struct {
	rules    []Rule
	interval time.Duration
	notifier email.Sender
	notifyTo string
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*ruleState
}

// New builds the evaluator with the three fixed rules this system ships:
// run failure ratio, scheduler lag (warning threshold), and scheduler lag
// (critical threshold) — see DESIGN.md for why a fourth rule ("missing
// worker heartbeats") has no home here.
func New(st store.RunStore, sched LagReporter, notifier email.Sender, notifyTo string, logger *slog.Logger) *Evaluator {
	rules := []Rule{
		{
			Name:        "HighRunFailureRate",
			Threshold:   0.2,
			SustainFor:  5 * time.Minute,
			Description: "run failure ratio exceeds 20% over the trailing 10 minutes",
			Check: func(ctx context.Context) (float64, error) {
				return st.FailureRatio(ctx, 10*time.Minute)
			},
		},
		{
			Name:        "SchedulerLagWarning",
			Threshold:   30,
			SustainFor:  time.Minute,
			Description: "oldest eligible firing is more than 30 seconds overdue",
			Check: func(ctx context.Context) (float64, error) {
				lag, err := sched.Lag(ctx)
				return lag.Seconds(), err
			},
		},
		{
			Name:        "SchedulerLagCritical",
			Threshold:   300,
			SustainFor:  time.Minute,
			Description: "oldest eligible firing is more than 5 minutes overdue",
			Check: func(ctx context.Context) (float64, error) {
				lag, err := sched.Lag(ctx)
				return lag.Seconds(), err
			},
		},
	}

	states := make(map[string]*ruleState, len(rules))
	for _, r := range rules {
		states[r.Name] = &ruleState{state: stateOK}
	}

	return &Evaluator{
		rules:    rules,
		interval: 30 * time.Second,
		notifier: notifier,
		notifyTo: notifyTo,
		logger:   logger.With("component", "alerting"),
		states:   states,
	}
}

// Start evaluates every rule immediately, then on a fixed interval until
// ctx is canceled.
func (e *Evaluator) Start(ctx context.Context) {
	e.evaluateAll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluateAll(ctx)
		}
	}
}

func (e *Evaluator) evaluateAll(ctx context.Context) {
	for _, rule := range e.rules {
		value, err := rule.Check(ctx)
		if err != nil {
			e.logger.Error("rule evaluation failed", "rule", rule.Name, "error", err)
			continue
		}
		e.update(ctx, rule, value)
	}
}

func (e *Evaluator) update(ctx context.Context, rule Rule, value float64) {
	e.mu.Lock()
	st := e.states[rule.Name]
	now := time.Now()
	shouldFire := value > rule.Threshold

	var transitionedFiring, transitionedResolved bool

	switch {
	case shouldFire && st.state == stateOK:
		st.state = statePending
		st.since = now
	case shouldFire && st.state == statePending:
		if now.Sub(st.since) >= rule.SustainFor {
			st.state = stateFiring
			transitionedFiring = true
		}
	case !shouldFire && st.state != stateOK:
		wasFiring := st.state == stateFiring
		st.state = stateOK
		transitionedResolved = wasFiring
	}
	st.lastValue = value
	firingNow := st.state == stateFiring
	e.mu.Unlock()

	gaugeValue := 0.0
	if firingNow {
		gaugeValue = 1
	}
	metrics.AlertsFiringGauge.WithLabelValues(rule.Name).Set(gaugeValue)

	if transitionedFiring {
		e.logger.Error("alert firing", "rule", rule.Name, "value", value, "threshold", rule.Threshold)
		e.notify(ctx, rule, value, true)
	}
	if transitionedResolved {
		e.logger.Info("alert resolved", "rule", rule.Name, "value", value)
		e.notify(ctx, rule, value, false)
	}
}

func (e *Evaluator) notify(ctx context.Context, rule Rule, value float64, firing bool) {
	if e.notifier == nil || e.notifyTo == "" {
		return
	}
	subject := fmt.Sprintf("[RESOLVED] %s", rule.Name)
	body := fmt.Sprintf("%s is back under threshold (current value %.3f).", rule.Description, value)
	if firing {
		subject = fmt.Sprintf("[FIRING] %s", rule.Name)
		body = fmt.Sprintf("%s (current value %.3f, threshold %.3f).", rule.Description, value, rule.Threshold)
	}
	if err := e.notifier.Send(ctx, e.notifyTo, subject, body); err != nil {
		e.logger.Error("alert notification failed", "rule", rule.Name, "error", err)
	}
}
