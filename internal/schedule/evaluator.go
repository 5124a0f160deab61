// Package schedule computes the next occurrence of a task's schedule. It is
// pure and performs no I/O: every function here is deterministic for a
// given input tuple, which is what lets the scheduler and its tests reason
// about firings without a database.
package schedule

import (
	"errors"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

var (
	ErrInvalidExpression = errors.New("invalid schedule expression")
	ErrInvalidZone       = errors.New("invalid IANA timezone")
)

// NextAfter returns the next instant, strictly after ref and localized to
// zone, at which a task of the given kind and expression should fire. A
// zero time with a nil error means the schedule has no future occurrence
// (exhausted COUNT/UNTIL, or a "once" whose instant has passed).
func NextAfter(kind domain.ScheduleKind, expr string, zone string, ref time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, ErrInvalidZone
	}

	switch kind {
	case domain.ScheduleCron:
		return nextCron(expr, loc, ref)
	case domain.ScheduleRRule:
		return nextRRule(expr, loc, ref)
	case domain.ScheduleOnce:
		return nextOnce(expr, loc, ref)
	case domain.ScheduleEvent:
		return nextEvent(expr, loc, ref)
	default:
		return time.Time{}, ErrInvalidExpression
	}
}
