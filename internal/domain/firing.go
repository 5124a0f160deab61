package domain

import (
	"errors"
	"time"
)

var (
	ErrFiringNotFound  = errors.New("firing not found")
	ErrFiringNotLeased = errors.New("firing is not leased by this owner")
	ErrLeaseExpired    = errors.New("lease has expired")
)

// Firing is a single due occurrence of a task waiting to be leased and run —
// the durable queue row (due_work).
type Firing struct {
	ID     string
	TaskID string

	RunAt time.Time

	// LockedBy and LockedUntil are set together when a worker leases the
	// firing; both are zero-value when the firing is unclaimed.
	LockedBy    string
	LockedUntil time.Time

	Attempt int

	CreatedAt time.Time
}

// Leased reports whether the firing currently holds an unexpired lease.
func (f *Firing) Leased(now time.Time) bool {
	return f.LockedBy != "" && now.Before(f.LockedUntil)
}
