package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// nextCron evaluates a five-field POSIX cron expression in loc, returning
// the first match strictly after ref. Unlike the fixed-interval batch
// claim this is grounded on, it never falls back to a made-up instant on a
// parse error — a malformed expression is rejected outright, since it
// should have been caught at task-create time.
func nextCron(expr string, loc *time.Location, ref time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, ErrInvalidExpression
	}

	next := sched.Next(ref.In(loc))
	if next.IsZero() {
		return time.Time{}, nil
	}
	return next, nil
}
